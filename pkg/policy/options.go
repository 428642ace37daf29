package policy

import (
	"time"

	"go.uber.org/zap"
)

// Options tune the full/incremental decision.
type Options struct {
	// SnapshottingIntroducedAt is when daily snapshots were rolled out. Integrations last
	// aggregated before this are given one full run to migrate.
	SnapshottingIntroducedAt time.Time

	// FrequencyOverrides maps pipeline name -> periodic full rescan frequency, replacing the
	// definition's own frequency.
	FrequencyOverrides map[string]time.Duration

	Logger *zap.SugaredLogger
}

func (o *Options) SetDefaults() {
	if o.FrequencyOverrides == nil {
		o.FrequencyOverrides = map[string]time.Duration{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
}

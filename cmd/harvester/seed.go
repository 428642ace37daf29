package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voidshard/harvester/internal/utils"
	"github.com/voidshard/harvester/pkg/database"
	"github.com/voidshard/harvester/pkg/errors"
	"github.com/voidshard/harvester/pkg/structs"
)

const (
	docSeed = `Create job definitions from a YAML file`

	defaultSeedMaxAttempts = 3
)

type optsSeed struct {
	optsGeneral
	optsDatabase

	File string `long:"file" short:"f" env:"SEED_FILE" description:"YAML file of definitions" required:"true"`
}

// seedFile is the layout of a seed YAML file.
type seedFile struct {
	Definitions []*structs.JobDefinition `yaml:"definitions"`
}

func (c *optsSeed) Execute(args []string) error {
	log, err := newLogger(c.Debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	defs, err := loadSeed(f)
	if err != nil {
		return err
	}

	store, err := database.New(c.optsDatabase.options())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	for _, def := range defs {
		if err := store.InsertDefinition(ctx, def); err != nil {
			return fmt.Errorf("failed to insert definition %s: %w", def.ID, err)
		}
		log.Infow("definition created", "id", def.ID, "tenant", def.TenantID, "integration", def.IntegrationID, "pipeline", def.Pipeline)
	}
	return nil
}

// loadSeed reads & validates definitions, filling in ids & defaults.
func loadSeed(r io.Reader) ([]*structs.JobDefinition, error) {
	in := &seedFile{}
	if err := yaml.NewDecoder(r).Decode(in); err != nil {
		return nil, fmt.Errorf("%w bad seed file: %v", errors.ErrInvalidArg, err)
	}

	now := time.Now().UTC()
	for i, def := range in.Definitions {
		if def.TenantID == "" || def.IntegrationID == "" || def.Pipeline == "" {
			return nil, fmt.Errorf("%w definition %d requires tenant_id, integration_id & pipeline", errors.ErrInvalidArg, i)
		}
		if def.ID == "" {
			def.ID = utils.NewRandomID()
		} else if !utils.IsValidID(def.ID) {
			return nil, fmt.Errorf("%w definition %d has bad id %q", errors.ErrInvalidArg, i, def.ID)
		}
		if def.MaxAttempts <= 0 {
			def.MaxAttempts = defaultSeedMaxAttempts
		}
		def.CreatedAt = now
		def.UpdatedAt = now
	}
	return in.Definitions, nil
}

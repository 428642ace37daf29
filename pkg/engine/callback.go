package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// callback POSTs the job's final state to its callback url. Failures are logged, never retried.
func (e *Engine) callback(job *Job) {
	url := job.jc.CallbackURL
	log := e.log.With("job", job.ID(), "url", url)

	body, err := json.Marshal(job.Info())
	if err != nil {
		log.Warnw("failed to encode callback", "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.CallbackTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Warnw("failed to build callback request", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.opts.HTTPClient.Do(req)
	if err != nil {
		log.Warnw("callback failed", "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Warnw("callback rejected", "err", fmt.Errorf("status %d", resp.StatusCode))
	}
}

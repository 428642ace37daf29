package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/voidshard/harvester/pkg/api"
	"github.com/voidshard/harvester/pkg/api/http/client"
)

const (
	docTrigger = `Ask a worker to schedule an instance of a definition now`
)

type optsTrigger struct {
	Addr string `long:"addr" env:"ADDR" description:"Worker API address" default:"http://localhost:8100"`

	DefinitionID string `long:"definition" short:"d" description:"Definition to schedule" required:"true"`
	Full         bool   `long:"full" description:"Force a full run"`
	Incremental  bool   `long:"incremental" description:"Force an incremental run"`
	Reprocessing bool   `long:"reprocessing" description:"Process every fresh upstream result again"`
}

func (c *optsTrigger) Execute(args []string) error {
	cli, err := client.New(c.Addr)
	if err != nil {
		return err
	}

	req := &api.ScheduleRequest{DefinitionID: c.DefinitionID, Reprocessing: c.Reprocessing}
	switch {
	case c.Full:
		full := true
		req.Full = &full
	case c.Incremental:
		full := false
		req.Full = &full
	}
	if err := req.Validate(); err != nil {
		return err
	}

	in, err := cli.Schedule(context.Background(), req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(in)
}

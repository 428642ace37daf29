package main

import (
	"github.com/voidshard/harvester/pkg/database"
)

const (
	docMigrate = `Apply database schema migrations`
)

type optsMigrate struct {
	optsGeneral
	optsDatabase
}

func (c *optsMigrate) Execute(args []string) error {
	log, err := newLogger(c.Debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	err = database.Migrate(c.optsDatabase.options())
	if err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}

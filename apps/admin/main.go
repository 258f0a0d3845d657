package main

import (
	"log"
	"os"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
	"github.com/pblportal/registry/core/registration"
	logsvc "github.com/pblportal/registry/services/logger"
	"github.com/pblportal/registry/storage/database"
	boiledrepos "github.com/pblportal/registry/storage/database/sqlboiler"
	sqlxrepos "github.com/pblportal/registry/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	if conf.Storage.Driver == core.StorageDriverMemory {
		logger.Fatal("the admin commands need the postgres store")
	}

	// set up DB
	errAndDie(database.CreateIfNotExist(conf))
	db, err := database.Open(conf)
	errAndDie(err)

	// start CLI
	recorder := audit.NewRecorder(boiledrepos.NewAuditRepository(db), logger)
	cli := commandLine{
		db:     db.DB,
		regSvc: registration.NewService(sqlxrepos.NewRegistrationRepository(db), recorder, nil, logger, conf),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("command failed: "+err.Error(), err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}

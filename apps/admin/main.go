package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/edumvp/backend/core"
	"github.com/edumvp/backend/core/user"
	emailsvc "github.com/edumvp/backend/services/email"
	"github.com/edumvp/backend/storage/kvstore"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	store, closeStore, err := openStore(conf)
	errAndDie(err)
	defer func() { _ = closeStore() }()

	validate := validator.New()
	usrSvc := user.NewService(store, emailsvc.NewConsoleServiceMock(conf), core.NewStdLogger(logger), validate)
	errAndDie(usrSvc.Init())

	// start CLI
	cli := commandLine{usrSvc: usrSvc}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func openStore(conf *core.Config) (kvstore.Store, func() error, error) {
	noop := func() error { return nil }
	switch conf.Storage.Backend {
	case "sqlite":
		store, err := kvstore.NewSQLiteStore(conf.Storage.DSN)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	case "memory":
		return kvstore.NewMemStore(), noop, nil
	default:
		store, err := kvstore.NewFileStore(conf.Storage.Dir)
		return store, noop, err
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}

package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/edumvp/backend/apps/api/echo"
	"github.com/edumvp/backend/core"
	"github.com/edumvp/backend/core/course"
	"github.com/edumvp/backend/core/gamification"
	"github.com/edumvp/backend/core/homework"
	"github.com/edumvp/backend/core/user"
	emailsvc "github.com/edumvp/backend/services/email"
	logsvc "github.com/edumvp/backend/services/logger"
	"github.com/edumvp/backend/storage/kvstore"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	store, closeStore, err := setUpStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	defer func() {
		if err = closeStore(); err != nil {
			logger.Error(fmt.Sprintf("closing storage: %v", err), err)
		}
	}()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	broker := core.NewBroker()

	usrSvc := user.NewService(store, mailSvc, logger, validate)
	courseSvc, err := course.NewService(store, broker, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("loading course seed data: %v", err), err)
	}
	gamSvc := gamification.NewService(store, usrSvc, logger)
	hwSvc := homework.NewService(store, usrSvc, courseSvc, logger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	if err = usrSvc.Init(); err != nil {
		logger.Fatal(fmt.Sprintf("seeding default admin: %v", err), err)
	}

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			UserSvc:     usrSvc,
			CourseSvc:   courseSvc,
			GamSvc:      gamSvc,
			HomeworkSvc: hwSvc,
			Validate:    validate,
			Translator:  translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpStore(conf *core.Config) (kvstore.Store, func() error, error) {
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

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/edumvp/backend/core"
	"github.com/edumvp/backend/core/user"
)

// RollbarLogger reports Warn and above to Rollbar; Debug and Info only
// reach the local logger. A user.User passed in args becomes the report's
// person context instead of being logged.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	l.local(msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	l.local(msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	l.report(rollbar.WARN, msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	l.report(rollbar.ERR, msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.CRIT, msg, args)
	l.std.Fatal(msg)
}

func (l RollbarLogger) local(msg string, args []interface{}) {
	l.std.Println(msg)
	for _, arg := range args {
		if _, ok := arg.(user.User); ok {
			continue
		}
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) report(level, msg string, args []interface{}) {
	payload := []interface{}{msg}
	person := false
	for _, arg := range args {
		usr, ok := arg.(user.User)
		if !ok {
			payload = append(payload, arg)
			continue
		}
		if !person {
			// accounts have no numeric id; the username is the stable handle
			rollbar.SetPerson(usr.Username, usr.FullName(), usr.Email)
			person = true
		}
	}
	if !person {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, payload...)
	l.local(msg, args)
}

package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Address)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, audit.Actor
func (l RollbarLogger) prepare(msg string, args []interface{}) (rollbarArgs, printArgs []interface{}) {
	var actorSet bool
	rollbarArgs = make([]interface{}, 0, len(args)+1)
	rollbarArgs = append(rollbarArgs, msg)
	for _, arg := range args {
		actor, ok := arg.(audit.Actor)
		if !ok {
			rollbarArgs = append(rollbarArgs, arg)
			printArgs = append(printArgs, arg)
			continue
		}
		if !actorSet && actor.UserID != "" {
			rollbar.SetPerson(actor.UserID, actor.Username, "")
			actorSet = true
		}
		printArgs = append(printArgs, "actor: "+actor.Username)
	}
	if !actorSet {
		rollbar.ClearPerson()
	}
	return rollbarArgs, printArgs
}

func (l RollbarLogger) print(level, msg string, args []interface{}) {
	l.std.Printf("%s: %s\n", level, msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rArgs, pArgs := l.prepare(msg, args)
	rollbar.Debug(rArgs...)
	l.print("DEBUG", msg, pArgs)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rArgs, pArgs := l.prepare(msg, args)
	rollbar.Info(rArgs...)
	l.print("INFO", msg, pArgs)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rArgs, pArgs := l.prepare(msg, args)
	rollbar.Warning(rArgs...)
	l.print("WARN", msg, pArgs)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rArgs, pArgs := l.prepare(msg, args)
	rollbar.Error(rArgs...)
	l.print("ERROR", msg, pArgs)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rArgs, pArgs := l.prepare(msg, args)
	rollbar.Critical(rArgs...)
	rollbar.Wait()
	l.print("FATAL", msg, pArgs)
	l.std.Fatal(msg)
}

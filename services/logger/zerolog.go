package logsvc

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/AntoVGreco/app-instituto-MCV/core"
	"github.com/AntoVGreco/app-instituto-MCV/core/user"
)

type ZeroLogger struct {
	zl zerolog.Logger
}

var _ core.Logger = (*ZeroLogger)(nil)

// NewZeroLogger writes to out (stderr when nil), as JSON lines or through a console writer when conf.Log.Pretty.
func NewZeroLogger(out io.Writer, conf *core.Config) *ZeroLogger {
	if out == nil {
		out = os.Stderr
	}
	if conf.Log.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(conf.Log.Level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if conf.Debug && lvl > zerolog.DebugLevel {
		lvl = zerolog.DebugLevel
	}

	zl := zerolog.New(out).Level(lvl).With().
		Timestamp().
		Str("app", conf.AppName).
		Str("env", conf.Env).
		Logger()
	return &ZeroLogger{zl: zl}
}

// NewDiscard returns a logger that drops everything.
func NewDiscard() *ZeroLogger {
	return &ZeroLogger{zl: zerolog.Nop()}
}

// expected fmt: msg | error, map[string]interface{}, user.Account, anything else
func (l *ZeroLogger) prepare(evt *zerolog.Event, args []interface{}) *zerolog.Event {
	var accSet bool
	rest := make([]string, 0)
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			evt = evt.Err(a)
		case map[string]interface{}:
			evt = evt.Fields(a)
		case user.Account:
			if !accSet { // only log one Account
				evt = evt.Str("identity", a.Base().Identity).Str("profile", string(a.Profile()))
				accSet = true
			}
		default:
			rest = append(rest, fmt.Sprintf("%+v", a))
		}
	}
	if len(rest) > 0 {
		evt = evt.Strs("args", rest)
	}
	return evt
}

func (l *ZeroLogger) Debug(msg string, args ...interface{}) {
	l.prepare(l.zl.Debug(), args).Msg(msg)
}

func (l *ZeroLogger) Info(msg string, args ...interface{}) {
	l.prepare(l.zl.Info(), args).Msg(msg)
}

func (l *ZeroLogger) Warn(msg string, args ...interface{}) {
	l.prepare(l.zl.Warn(), args).Msg(msg)
}

func (l *ZeroLogger) Error(msg string, args ...interface{}) {
	l.prepare(l.zl.Error(), args).Msg(msg)
}

// Fatal logs then exits the process.
func (l *ZeroLogger) Fatal(msg string, args ...interface{}) {
	l.prepare(l.zl.Fatal(), args).Msg(msg)
}

package logsvc

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"

	"github.com/AntoVGreco/app-instituto-MCV/core"
	"github.com/AntoVGreco/app-instituto-MCV/core/user"
)

func newTestLogger(level string) (*ZeroLogger, *bytes.Buffer) {
	conf := new(core.Config)
	conf.AppName = "Instituto"
	conf.Env = "TEST"
	conf.Log.Level = level
	buf := new(bytes.Buffer)
	return NewZeroLogger(buf, conf), buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := map[string]interface{}{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line %q is not JSON: %v", buf.String(), err)
	}
	return line
}

func TestZeroLogger_prepare(t *testing.T) {
	lgr, buf := newTestLogger("debug")
	std := &user.Student{User: user.User{Identity: "12345678"}}
	adm := &user.Administrator{User: user.User{Identity: "1234"}}

	lgr.Info("enrolled", std, adm, map[string]interface{}{"course": "Algebra"}, errors.New("boom"), 42)
	line := decode(t, buf)

	want := map[string]interface{}{
		"level":    "info",
		"message":  "enrolled",
		"app":      "Instituto",
		"env":      "TEST",
		"identity": "12345678",
		"profile":  "student",
		"course":   "Algebra",
		"error":    "boom",
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s = %v, want %v", k, line[k], v)
		}
	}
	args, ok := line["args"].([]interface{})
	if !ok || len(args) != 1 || args[0] != "42" {
		t.Errorf("args = %v, want [42]", line["args"])
	}
}

func TestZeroLogger_level(t *testing.T) {
	tests := []struct {
		level   string
		log     func(*ZeroLogger)
		wantOut bool
	}{
		{level: "info", log: func(l *ZeroLogger) { l.Debug("x") }, wantOut: false},
		{level: "info", log: func(l *ZeroLogger) { l.Warn("x") }, wantOut: true},
		{level: "error", log: func(l *ZeroLogger) { l.Info("x") }, wantOut: false},
		{level: "nonsense", log: func(l *ZeroLogger) { l.Info("x") }, wantOut: true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			lgr, buf := newTestLogger(tt.level)
			tt.log(lgr)
			if got := buf.Len() > 0; got != tt.wantOut {
				t.Errorf("wrote = %v, want %v", got, tt.wantOut)
			}
		})
	}
}

func TestNewDiscard(t *testing.T) {
	lgr := NewDiscard()
	lgr.Error("dropped", errors.New("nothing happens"))
}

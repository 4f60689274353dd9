package core

// Logger is the logging contract used across the app.
// expected args: error, map[string]interface{}, user.Account (see services/logger).
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

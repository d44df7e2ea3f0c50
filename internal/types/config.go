package types

// RunMode is the mode the application entrypoint runs in
type RunMode string

const (
	ModeLocal     RunMode = "local"
	ModeServer    RunMode = "server"
	ModeScheduler RunMode = "scheduler"
)

// LogLevel is the log level for the application
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

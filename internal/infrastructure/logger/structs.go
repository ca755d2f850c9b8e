package logger

import "io"

// Console implements a console based logger.
type Console struct {
	Enabled          bool `env:"CONSOLE_ENABLED" envDefault:"true"`
	UseConsoleWriter bool `env:"CONSOLE_PRETTY" envDefault:"false"`

	// Out replaces stdout and stderr when set (tests).
	Out io.Writer
}

// LogFile implements a file based logger split by level.
type LogFile struct {
	Enabled bool   `env:"FILE_ENABLED" envDefault:"false"`
	Path    string `env:"FILE_PATH" envDefault:"data/logs"`

	InfoLog        string `env:"FILE_INFO" envDefault:"info.log"`
	InfoMaxSize    int    `env:"FILE_INFO_MAX_SIZE" envDefault:"10"`
	InfoMaxBackups int    `env:"FILE_INFO_MAX_BACKUPS" envDefault:"5"`
	InfoMaxAge     int    `env:"FILE_INFO_MAX_AGE" envDefault:"30"`

	WarnLog        string `env:"FILE_WARN" envDefault:"warn.log"`
	WarnMaxSize    int    `env:"FILE_WARN_MAX_SIZE" envDefault:"10"`
	WarnMaxBackups int    `env:"FILE_WARN_MAX_BACKUPS" envDefault:"5"`
	WarnMaxAge     int    `env:"FILE_WARN_MAX_AGE" envDefault:"30"`

	ErrorLog        string `env:"FILE_ERROR" envDefault:"error.log"`
	ErrorMaxSize    int    `env:"FILE_ERROR_MAX_SIZE" envDefault:"10"`
	ErrorMaxBackups int    `env:"FILE_ERROR_MAX_BACKUPS" envDefault:"5"`
	ErrorMaxAge     int    `env:"FILE_ERROR_MAX_AGE" envDefault:"30"`
}

// Log implements the logger config.
type Log struct {
	LogLevel     string `env:"LEVEL" envDefault:"info"` // trace, debug, info, warn, error.
	ReportCaller bool   `env:"REPORT_CALLER" envDefault:"false"`

	AppName     string `env:"APP_NAME" envDefault:"macrobot"`
	ServiceName string `env:"SERVICE_NAME" envDefault:"bot"`

	Console Console
	File    LogFile
}

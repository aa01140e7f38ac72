package config

import "go.uber.org/zap/zapcore"

// LogEncoder defines a log encoder kind.
type LogEncoder = string

const (
	defaultLoggingLevel = zapcore.InfoLevel
	// ConsoleLogEncoder represents logging with plain text.
	ConsoleLogEncoder LogEncoder = "console"
	// JSONLogEncoder represents logging with JSON.
	JSONLogEncoder LogEncoder = "json"
)

// LoggerConfig holds the logging level for each module.
type LoggerConfig struct {
	Encoder          LogEncoder `mapstructure:"log-encoder"`
	AppLoggerLevel   string     `mapstructure:"app"`
	SyncLoggerLevel  string     `mapstructure:"sync"`
	RelayLoggerLevel string     `mapstructure:"relay"`
	StoreLoggerLevel string     `mapstructure:"store"`
	NIP11LoggerLevel string     `mapstructure:"nip11"`
	ServeLoggerLevel string     `mapstructure:"serve"`
}

// DefaultLoggingConfig returns the default logging configuration.
func DefaultLoggingConfig() LoggerConfig {
	return LoggerConfig{
		Encoder:          ConsoleLogEncoder,
		AppLoggerLevel:   defaultLoggingLevel.String(),
		SyncLoggerLevel:  defaultLoggingLevel.String(),
		RelayLoggerLevel: zapcore.WarnLevel.String(),
		StoreLoggerLevel: zapcore.WarnLevel.String(),
		NIP11LoggerLevel: zapcore.WarnLevel.String(),
		ServeLoggerLevel: defaultLoggingLevel.String(),
	}
}

package config

import (
	"time"

	"go.uber.org/zap/zapcore"
)

type Option func(*Config)

func WithLogLevel(level zapcore.Level) Option {
	return func(c *Config) {
		c.Log.LogLevel = level
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Server.WriteTimeout = d
	}
}

// WithMigrate toggles migrations on connect.
func WithMigrate(migrate bool) Option {
	return func(c *Config) {
		c.Database.Migrate = migrate
	}
}

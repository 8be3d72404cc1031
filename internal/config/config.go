package config

import "time"

// StoreConfig selects and parametrizes the credential store backend.
type StoreConfig struct {
	// Backend is "file" or "sqlite".
	Backend      string `mapstructure:"backend" yaml:"backend"`
	UsersFile    string `mapstructure:"users_file" yaml:"users_file"`
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
}

// Config holds server configuration values.
type Config struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	HistoryLimit    int           `mapstructure:"history_limit" yaml:"history_limit"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	Store           StoreConfig   `mapstructure:"store" yaml:"store"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:            ":12345",
		HistoryLimit:    50,
		LogLevel:        "info",
		ShutdownTimeout: 5 * time.Second,
		Store: StoreConfig{
			Backend:      "file",
			UsersFile:    "users.txt",
			DatabasePath: "linechat.db",
		},
	}
}

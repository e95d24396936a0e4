package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	Platform   string `mapstructure:"platform"`
	SocketPath string `mapstructure:"socket_path"`
	LogLevel   string `mapstructure:"log_level"`
}

// Load builds the configuration from viper's current state. Defaults keep
// the service runnable with no config file at all: loopback listener,
// docker platform, socket resolved from the engine client's environment.
func Load() (*Config, error) {
	var cfg Config

	viper.SetDefault("server.listen_addr", "127.0.0.1:3030")
	viper.SetDefault("server.platform", "docker")
	viper.SetDefault("server.socket_path", "")
	viper.SetDefault("server.log_level", "info")

	if err := viper.UnmarshalKey("server", &cfg.Server); err != nil {
		return nil, fmt.Errorf("unable to decode server config: %w", err)
	}

	if cfg.Server.ListenAddr == "" {
		return nil, fmt.Errorf("server.listen_addr must not be empty")
	}
	if cfg.Server.Platform == "" {
		return nil, fmt.Errorf("server.platform must not be empty")
	}

	return &cfg, nil
}

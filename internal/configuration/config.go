package configuration

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

type MongoConfig struct {
	Uri      string `json:"uri" env:"LOFTWIRE_MONGO_URI"`
	Database string `json:"database" env:"LOFTWIRE_MONGO_DATABASE"`
}

type ServerConfig struct {
	AppPort     int    `json:"app_port" env:"LOFTWIRE_APP_PORT"`
	SocketPort  int    `json:"socket_port" env:"LOFTWIRE_SOCKET_PORT"`
	SocketRoute string `json:"socket_route" env:"LOFTWIRE_SOCKET_ROUTE"`
}

type AuthConfig struct {
	Secret string `json:"secret" env:"LOFTWIRE_AUTH_SECRET"`
	Issuer string `json:"issuer" env:"LOFTWIRE_AUTH_ISSUER"`
}

type PushConfig struct {
	// Endpoint of the push relay; empty disables push dispatch.
	Endpoint string `json:"endpoint" env:"LOFTWIRE_PUSH_ENDPOINT"`
}

type CorsConfig struct {
	AllowedOrigins []string `json:"allowed_origins" env:"LOFTWIRE_ALLOWED_ORIGINS"`
}

type Config struct {
	ChatDatabase MongoConfig  `json:"mongo"`
	Server       ServerConfig `json:"server"`
	Auth         AuthConfig   `json:"auth"`
	Push         PushConfig   `json:"push"`
	Cors         CorsConfig   `json:"cors"`
}

// LoadConfig reads the JSON config file, then applies environment
// overrides on top. Deployment secrets come in through the
// environment, never the file.
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := json.Unmarshal(file, &config); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("parse config environment: %w", err)
	}

	applyDefaults(&config)

	if config.Auth.Secret == "" {
		return nil, fmt.Errorf("auth secret is required")
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Server.AppPort == 0 {
		config.Server.AppPort = 8080
	}
	if config.Server.SocketPort == 0 {
		config.Server.SocketPort = 8081
	}
	if config.Server.SocketRoute == "" {
		config.Server.SocketRoute = "ws"
	}
	if config.ChatDatabase.Uri == "" {
		config.ChatDatabase.Uri = "mongodb://localhost:27017"
	}
	if config.ChatDatabase.Database == "" {
		config.ChatDatabase.Database = "loftwire"
	}
	if config.Auth.Issuer == "" {
		config.Auth.Issuer = "loftwire"
	}
}

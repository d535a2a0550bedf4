package config

import "time"

type Config interface {
	EnvConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
}

type SessionConfig interface {
	GetAuthorityURL() string
	GetAuthCacheTTL() time.Duration
	GetReconnectDelay() time.Duration
	GetDataFolder() string
}

type mainConfig struct {
	EnvVars
	SessionVars
}

func New() Config {
	return mainConfig{}
}

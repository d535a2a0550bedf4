package config

import (
	"fmt"
	"os"
	"time"
)

const (
	portEnvVar   = "PORT"
	appNameVar   = "APP_NAME"
	folderEnvVar = "FOLDER"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" || port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Zap Session Server")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

type SessionVars struct{}

var _ SessionConfig = SessionVars{}

// GetAuthorityURL is the endpoint serving the authorized-matricula list.
func (SessionVars) GetAuthorityURL() string {
	return GetEnv("AUTHORITY_URL", "")
}

func (SessionVars) GetAuthCacheTTL() time.Duration {
	return getDuration("AUTH_CACHE_TTL", 2*time.Minute)
}

func (SessionVars) GetReconnectDelay() time.Duration {
	return getDuration("RECONNECT_DELAY", 2*time.Second)
}

// GetDataFolder is the root under which each matricula's credential
// directory lives.
func (SessionVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./whatsapp_auth_data")
}

func GetEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

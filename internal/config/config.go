// Package config holds the application configuration document.
package config

import (
	"crypto/rand"
	"fmt"
)

const sessionKeyLen = 32

// AppConfig is persisted as the app_config document. Fields absent from
// an existing document keep their defaults.
type AppConfig struct {
	// Hostname the server is reachable at, for generated absolute URLs.
	Hostname string `json:"hostname"`
	// Port the server listens on.
	Port int `json:"port"`
	// RoutePrefix is prepended by a path-rewriting reverse proxy. The
	// router scopes all routes under it so forwarded paths resolve.
	RoutePrefix string `json:"route_prefix"`
	// SessionKey signs session cookies. Generated on first start.
	SessionKey []byte `json:"session_key"`
}

// Default returns the configuration used when no document exists.
func Default() AppConfig {
	return AppConfig{
		Hostname: "localhost",
		Port:     8443,
	}
}

// BindAddr is the listen address derived from the configured port.
func (c *AppConfig) BindAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

// EnsureSessionKey generates a fresh master key if the document did not
// carry one. Reports whether it generated a key, so the caller knows to
// save the document back.
func (c *AppConfig) EnsureSessionKey() (bool, error) {
	if len(c.SessionKey) == sessionKeyLen {
		return false, nil
	}
	key := make([]byte, sessionKeyLen)
	if _, err := rand.Read(key); err != nil {
		return false, fmt.Errorf("generating session key: %w", err)
	}
	c.SessionKey = key
	return true, nil
}

// ApplyDefaults fills fields an older document left empty.
func (c *AppConfig) ApplyDefaults() {
	if c.Hostname == "" {
		c.Hostname = "localhost"
	}
	if c.Port == 0 {
		c.Port = 8443
	}
}

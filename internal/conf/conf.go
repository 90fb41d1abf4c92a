// Package conf holds the typed configuration scanned from the YAML bootstrap
// file by the kratos config loader.
package conf

import "time"

// Duration is a human-readable duration scalar ("24h", "500ms") as it appears
// in the config file.
type Duration string

// AsDuration parses the scalar, returning zero on malformed input so a bad
// config entry falls back to the caller's default instead of panicking.
func (d Duration) AsDuration() time.Duration {
	if d == "" {
		return 0
	}
	v, err := time.ParseDuration(string(d))
	if err != nil {
		return 0
	}
	return v
}

// Bootstrap is the root configuration object.
type Bootstrap struct {
	Server      *Server      `json:"server"`
	Data        *Data        `json:"data"`
	Auth        *Auth        `json:"auth"`
	Catalog     *Catalog     `json:"catalog"`
	Entitlement *Entitlement `json:"entitlement"`
}

// Server configures the HTTP transport.
type Server struct {
	Http *HTTP `json:"http"`
}

// HTTP listener settings.
type HTTP struct {
	Network string   `json:"network"`
	Addr    string   `json:"addr"`
	Timeout Duration `json:"timeout"`
}

// Data configures storage backends.
type Data struct {
	Database *Database `json:"database"`
	Redis    *Redis    `json:"redis"`
}

// Database holds the PostgreSQL DSN.
type Database struct {
	Source string `json:"source"`
}

// Redis holds cache connection settings. Redis is optional: an unreachable
// instance downgrades the service to cache-less operation.
type Redis struct {
	Addr         string   `json:"addr"`
	ReadTimeout  Duration `json:"read_timeout"`
	WriteTimeout Duration `json:"write_timeout"`
}

// Auth configures token signing for authenticated sessions and signed
// anonymous identities. Both token kinds are HMAC-signed with TokenSecret.
type Auth struct {
	TokenSecret     string   `json:"token_secret"`
	SessionTokenTTL Duration `json:"session_token_ttl"`
	AnonTokenTTL    Duration `json:"anon_token_ttl"`
}

// Catalog configures the external catalog lookup collaborator.
type Catalog struct {
	Url        string   `json:"url"`
	ApiKey     string   `json:"api_key"`
	Timeout    Duration `json:"timeout"`
	MaxRetries int32    `json:"max_retries"`
}

// Entitlement configures the rental and grace windows.
type Entitlement struct {
	RentalDuration Duration `json:"rental_duration"`
	GracePeriod    Duration `json:"grace_period"`
}

package config

import "time"

// PushConfig holds the push gateway settings.
type PushConfig struct {
	// Endpoint receives one JSON POST per device token.
	Endpoint string `env:"ENDPOINT"`

	// ServerKey is sent as "Authorization: key=<ServerKey>". Never serialized.
	ServerKey string `env:"SERVER_KEY" json:"-"`

	Timeout    time.Duration `env:"TIMEOUT" envDefault:"10s"`
	MaxRetries uint          `env:"MAX_RETRIES" envDefault:"5"`
}

// IsEnabled returns true if a gateway endpoint is configured.
func (c *PushConfig) IsEnabled() bool {
	return c.Endpoint != ""
}

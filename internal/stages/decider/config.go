// internal/stages/decider/config.go
package decider

import "time"

// Config bounds the explanation-generation call.
type Config struct {
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}

// internal/stages/inferencer/config.go
package inferencer

import "time"

// Config bounds the classifier call.
type Config struct {
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}

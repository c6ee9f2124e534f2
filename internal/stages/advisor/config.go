// internal/stages/advisor/config.go
package advisor

import "time"

// Config holds the pathway thresholds and the generation timeout.
type Config struct {
	Timeout time.Duration

	// IncomeThreshold is the monthly income below which financial
	// support is preferred.
	IncomeThreshold float64
	// SeverityThreshold is the medical severity above which financial
	// support is preferred.
	SeverityThreshold int
	// DependentsThreshold is the dependent count above which financial
	// support is preferred.
	DependentsThreshold int
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:             30 * time.Second,
		IncomeThreshold:     10000,
		SeverityThreshold:   3,
		DependentsThreshold: 3,
	}
}

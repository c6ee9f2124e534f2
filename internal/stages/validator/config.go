// internal/stages/validator/config.go
package validator

// Config holds the validator thresholds.
type Config struct {
	// IncomeTolerance is the maximum allowed absolute difference, in
	// currency units, between the bank-statement and credit-report
	// income figures. Differences strictly greater than this reject.
	IncomeTolerance float64
}

func DefaultConfig() *Config {
	return &Config{
		IncomeTolerance: 500,
	}
}

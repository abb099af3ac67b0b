// Package workers runs the background jobs that drive points awards.
package workers

import "time"

// Config holds worker settings
type Config struct {
	// Consumer names this process on the result feed
	Consumer string
	// PollInterval is how often the award worker reads the feed
	PollInterval time.Duration
	// BatchSize caps the events read per poll
	BatchSize int
	// SweepInterval is how often unawarded results are re-driven
	SweepInterval time.Duration
	// SweepGrace is how old an unawarded result must be before the sweep
	// touches it, leaving fresh ones to the award worker
	SweepGrace time.Duration
}

// DefaultConfig returns the default worker configuration
func DefaultConfig() Config {
	return Config{
		Consumer:      "award-worker",
		PollInterval:  2 * time.Second,
		BatchSize:     16,
		SweepInterval: 5 * time.Minute,
		SweepGrace:    2 * time.Minute,
	}
}

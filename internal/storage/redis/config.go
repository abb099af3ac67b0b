package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// MaxTxRetries bounds optimistic transaction attempts on WATCH conflicts
	MaxTxRetries int

	// Backoff between conflicting attempts starts at TxRetryBackoff and
	// grows, with jitter, up to TxRetryMaxBackoff
	TxRetryBackoff    time.Duration
	TxRetryMaxBackoff time.Duration

	// Result feed settings
	ConsumerGroup     string
	RedeliveryTimeout time.Duration // Pending events idle this long are claimed by the next reader
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:               "redis://localhost:6379",
		PoolSize:          10,
		MinIdleConns:      2,
		MaxTxRetries:      32,
		TxRetryBackoff:    2 * time.Millisecond,
		TxRetryMaxBackoff: 100 * time.Millisecond,
		ConsumerGroup:     "points-awarder",
		RedeliveryTimeout: 30 * time.Second,
	}
}

package gate

import "time"

// Config holds configuration for a Gate.
type Config struct {
	// MinSpacing is the minimum delay between consecutive execution
	// starts. This is the backpressure protecting the upstream's own
	// rate limit.
	MinSpacing time.Duration

	// QueueWaitTimeout is how long an operation may wait in the queue
	// before being dropped undispatched.
	QueueWaitTimeout time.Duration

	// ExecutionTimeout is the hard deadline for a single execution.
	ExecutionTimeout time.Duration

	// RateLimitThreshold is how many consecutive rate-limit failures
	// open the circuit.
	RateLimitThreshold int

	// CircuitCooldown is how long the circuit stays open once tripped.
	CircuitCooldown time.Duration

	// SubmitRate is the maximum sustained submissions per second
	// accepted into the queue. Zero disables submission throttling.
	SubmitRate float64

	// SubmitBurst is the burst size for the submission token bucket.
	// Defaults to 1 if SubmitRate is set but SubmitBurst is zero.
	SubmitBurst int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinSpacing:         5 * time.Second,
		QueueWaitTimeout:   120 * time.Second,
		ExecutionTimeout:   120 * time.Second,
		RateLimitThreshold: 3,
		CircuitCooldown:    60 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinSpacing <= 0 {
		c.MinSpacing = def.MinSpacing
	}
	if c.QueueWaitTimeout <= 0 {
		c.QueueWaitTimeout = def.QueueWaitTimeout
	}
	if c.ExecutionTimeout <= 0 {
		c.ExecutionTimeout = def.ExecutionTimeout
	}
	if c.RateLimitThreshold <= 0 {
		c.RateLimitThreshold = def.RateLimitThreshold
	}
	if c.CircuitCooldown <= 0 {
		c.CircuitCooldown = def.CircuitCooldown
	}
	return c
}

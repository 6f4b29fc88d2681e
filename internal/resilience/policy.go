package resilience

import "time"

type Config struct {
	// MaxAttempts bounds the total number of calls (initial + retries).
	MaxAttempts int

	// EmptyResultDelay is waited after an attempt that produced no usable
	// value; NetworkDelay after a transport failure. Network failures get
	// the longer pause so a briefly unreachable backend can recover.
	EmptyResultDelay time.Duration
	NetworkDelay     time.Duration

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:      4, // 1 initial + 3 retries
		EmptyResultDelay: 2 * time.Second,
		NetworkDelay:     3 * time.Second,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.EmptyResultDelay < 0 {
		out.EmptyResultDelay = def.EmptyResultDelay
	}
	if out.NetworkDelay < 0 {
		out.NetworkDelay = def.NetworkDelay
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return out
}

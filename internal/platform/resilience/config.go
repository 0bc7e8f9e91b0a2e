package resilience

import "time"

// Defaults observed for each dependency class: the relational store gets
// longer backoff, blob uploads retry fast, outbound mail barely retries.
func DefaultDatabaseRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
}

func DefaultUploadRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}
}

func DefaultEmailRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, BaseDelay: time.Second}
}

func NormalizeRetryPolicy(p, fallback RetryPolicy) RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = fallback.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = fallback.BaseDelay
	}
	return p
}

type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenMaxReq   int
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:          true,
		FailureThreshold: 5,
		OpenTimeout:      15 * time.Second,
		HalfOpenMaxReq:   2,
	}
}

func NormalizeCircuitBreakerConfig(cfg CircuitBreakerConfig) CircuitBreakerConfig {
	defaults := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaults.OpenTimeout
	}
	if cfg.HalfOpenMaxReq < 1 {
		cfg.HalfOpenMaxReq = defaults.HalfOpenMaxReq
	}
	return cfg
}

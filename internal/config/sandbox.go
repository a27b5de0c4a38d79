package config

import (
	"math"
	"time"
)

type SandboxConfig struct {
	Url             string
	Timeout         time.Duration
	MaxAttempts     int
	RetryBaseDelay  time.Duration
	RuntimeCacheTTL time.Duration
}

func NewSandboxConfig() *SandboxConfig {
	cfg := &SandboxConfig{
		Url:             getString("SANDBOX_URL", "http://localhost:2000/api/v2"),
		Timeout:         getDuration("SANDBOX_TIMEOUT", 30*time.Second),
		MaxAttempts:     getInt("SANDBOX_MAX_ATTEMPTS", 3),
		RetryBaseDelay:  getDuration("SANDBOX_RETRY_BASE_DELAY", 500*time.Millisecond),
		RuntimeCacheTTL: getDuration("RUNTIME_CACHE_TTL", 10*time.Minute),
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return cfg
}

// WorstCaseExecution bounds one test case: every attempt timing out plus the
// longest randomized backoff between attempts (multiplier 1.5, jitter 0.5, 60s cap).
func (c *SandboxConfig) WorstCaseExecution() time.Duration {
	total := c.Timeout * time.Duration(c.MaxAttempts)
	for k := 0; k < c.MaxAttempts-1; k++ {
		interval := math.Min(float64(c.RetryBaseDelay)*math.Pow(1.5, float64(k)), float64(time.Minute))
		total += time.Duration(interval * 1.5)
	}
	return total
}

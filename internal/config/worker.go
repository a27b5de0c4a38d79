package config

import "time"

type WorkerConfig struct {
	Concurrency   int
	ShutdownGrace time.Duration
}

func NewWorkerConfig() *WorkerConfig {
	cfg := &WorkerConfig{
		Concurrency:   getInt("WORKER_CONCURRENCY", 4),
		ShutdownGrace: getDuration("WORKER_SHUTDOWN_GRACE", 30*time.Second),
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return cfg
}

type SweepConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
}

func NewSweepConfig() *SweepConfig {
	return &SweepConfig{
		Interval:   getDuration("SWEEP_INTERVAL", time.Minute),
		StaleAfter: getDuration("SWEEP_STALE_AFTER", 10*time.Minute),
		BatchSize:  getInt("SWEEP_BATCH_SIZE", 100),
	}
}

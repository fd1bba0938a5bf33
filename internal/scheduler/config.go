package scheduler

import "time"

// Config controls the charge job loop.
type Config struct {
	BatchSize     int
	Workers       int
	ChargeTimeout time.Duration
	PollInterval  time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		Workers:       8,
		ChargeTimeout: 30 * time.Second,
		PollInterval:  time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if c.ChargeTimeout <= 0 {
		c.ChargeTimeout = defaults.ChargeTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	return c
}

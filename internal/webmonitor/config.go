package webmonitor

import (
	"time"
)

// Config defines the runtime configuration for the live monitor server.
type Config struct {
	Addr           string
	JPEGQuality    int
	HistorySize    int
	StatusInterval time.Duration
	KeepAlive      time.Duration
	BlankInterval  time.Duration
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		JPEGQuality:    75,
		HistorySize:    8,
		StatusInterval: 2 * time.Second,
		KeepAlive:      30 * time.Second,
		BlankInterval:  5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.JPEGQuality <= 0 || c.JPEGQuality > 100 {
		c.JPEGQuality = d.JPEGQuality
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = d.StatusInterval
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = d.KeepAlive
	}
	if c.BlankInterval <= 0 {
		c.BlankInterval = d.BlankInterval
	}
	return c
}

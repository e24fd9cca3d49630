package client

import (
	"math"
	"math/rand"
	"time"

	"github.com/danmuck/sealdrop/internal/protocol"
	"github.com/danmuck/sealdrop/internal/protocol/frame"
)

// BackoffConfig defines the delay between attempts of one exchange.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config controls how the client talks to one server.
type Config struct {
	Address        string
	ConnectTimeout time.Duration
	IOTimeout      time.Duration
	// Attempts bounds retries of a single request/response exchange.
	Attempts int
	// ChecksumRetries is how many times a file is resent after a mismatch.
	ChecksumRetries int
	ChunkSize       int
	Limits          frame.Limits
	Backoff         BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:  5 * time.Second,
		IOTimeout:       15 * time.Second,
		Attempts:        3,
		ChecksumRetries: 3,
		ChunkSize:       protocol.MaxChunkContent,
		Limits:          frame.DefaultLimits(),
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero fields from DefaultConfig. ChecksumRetries may be
// zero on purpose and is left alone unless negative.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.IOTimeout <= 0 {
		c.IOTimeout = d.IOTimeout
	}
	if c.Attempts <= 0 {
		c.Attempts = d.Attempts
	}
	if c.ChecksumRetries < 0 {
		c.ChecksumRetries = d.ChecksumRetries
	}
	if c.ChunkSize <= 0 || c.ChunkSize > protocol.MaxChunkContent {
		c.ChunkSize = d.ChunkSize
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = d.Limits
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = d.Backoff
	}
	return c
}

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}

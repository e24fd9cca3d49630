package server

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/sealdrop/internal/protocol/frame"
	"github.com/danmuck/sealdrop/internal/storage"
)

// DefaultPort is used when no port is configured or the port file is unusable.
const DefaultPort = 1256

// Config is the runtime shape of the transfer service.
type Config struct {
	ListenAddr     string
	AdminAddr      string
	CORSOrigins    []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Limits         frame.Limits
	StorageBackend string
	StorageRoot    string
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:     net.JoinHostPort("", strconv.Itoa(DefaultPort)),
		AdminAddr:      "",
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		Limits:         frame.DefaultLimits(),
		StorageBackend: storage.BackendFS,
		StorageRoot:    storage.DefaultRoot,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = d.ListenAddr
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = d.Limits
	}
	if strings.TrimSpace(c.StorageBackend) == "" {
		c.StorageBackend = d.StorageBackend
	}
	if strings.TrimSpace(c.StorageRoot) == "" {
		c.StorageRoot = d.StorageRoot
	}
	return c
}

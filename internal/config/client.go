package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/danmuck/sealdrop/internal/client"
	"github.com/danmuck/sealdrop/internal/protocol"
	"github.com/pelletier/go-toml/v2"
)

// ClientProfile is the on-disk shape of a sealdrop client profile.
type ClientProfile struct {
	Server          string `toml:"server"`
	Name            string `toml:"name"`
	Identity        string `toml:"identity"`
	Attempts        int    `toml:"attempts"`
	ChecksumRetries *int   `toml:"checksum_retries"`
	ChunkSize       int    `toml:"chunk_size"`
	ConnectTimeout  string `toml:"connect_timeout"`
	IOTimeout       string `toml:"io_timeout"`
}

func LoadClientProfile(path string) (ClientProfile, error) {
	var p ClientProfile
	if err := loadToml(path, &p); err != nil {
		return ClientProfile{}, err
	}
	p.Server = strings.TrimSpace(p.Server)
	p.Name = strings.TrimSpace(p.Name)
	if strings.TrimSpace(p.Identity) == "" {
		p.Identity = client.IdentityFile
	}
	if err := ValidateClientProfile(p); err != nil {
		return ClientProfile{}, err
	}
	return p, nil
}

func ValidateClientProfile(p ClientProfile) error {
	if p.Server == "" {
		return fmt.Errorf("client profile missing server")
	}
	if _, port, err := net.SplitHostPort(p.Server); err != nil || port == "" {
		return fmt.Errorf("client profile server %q must be host:port", p.Server)
	}
	if p.Name != "" && !protocol.ValidName(p.Name) {
		return fmt.Errorf("client profile name %q must be 1-%d letters, digits or spaces", p.Name, protocol.MaxNameLen)
	}
	if p.Attempts < 0 {
		return fmt.Errorf("client profile attempts must not be negative")
	}
	if p.ChecksumRetries != nil && *p.ChecksumRetries < 0 {
		return fmt.Errorf("client profile checksum_retries must not be negative")
	}
	if p.ChunkSize < 0 || p.ChunkSize > protocol.MaxChunkContent {
		return fmt.Errorf("client profile chunk_size must be within 0-%d", protocol.MaxChunkContent)
	}
	for key, raw := range map[string]string{"connect_timeout": p.ConnectTimeout, "io_timeout": p.IOTimeout} {
		if _, err := parseDuration(raw); err != nil {
			return fmt.Errorf("client profile %s: %w", key, err)
		}
	}
	return nil
}

// ClientConfig maps the profile onto client.Config, keeping defaults for
// anything left unset.
func (p ClientProfile) ClientConfig() (client.Config, error) {
	cfg := client.DefaultConfig()
	cfg.Address = p.Server
	if p.Attempts > 0 {
		cfg.Attempts = p.Attempts
	}
	if p.ChecksumRetries != nil {
		cfg.ChecksumRetries = *p.ChecksumRetries
	}
	if p.ChunkSize > 0 {
		cfg.ChunkSize = p.ChunkSize
	}
	connect, err := parseDuration(p.ConnectTimeout)
	if err != nil {
		return client.Config{}, err
	}
	if connect > 0 {
		cfg.ConnectTimeout = connect
	}
	io, err := parseDuration(p.IOTimeout)
	if err != nil {
		return client.Config{}, err
	}
	if io > 0 {
		cfg.IOTimeout = io
	}
	return cfg, nil
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

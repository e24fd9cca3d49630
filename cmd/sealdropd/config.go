package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/sealdrop/internal/server"
	"github.com/danmuck/sealdrop/internal/storage"
	"github.com/rs/zerolog/log"
)

// sealdropd config.toml key mapping to server runtime settings.
type fileConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	PortFile        string   `toml:"port_file"`
	StorageBackend  string   `toml:"storage_backend"`
	StorageRoot     string   `toml:"storage_root"`
	AdminAddr       string   `toml:"admin_addr"`
	CORSOrigins     []string `toml:"cors_origins"`
	ReadTimeout     string   `toml:"read_timeout"`
	WriteTimeout    string   `toml:"write_timeout"`
	MaxPayloadBytes int64    `toml:"max_payload_bytes"`
}

// loadServiceConfig overlays the keys present in path onto server defaults.
// An empty path yields the defaults.
func loadServiceConfig(path string) (server.Config, error) {
	cfg := server.DefaultConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return server.Config{}, fmt.Errorf("load sealdropd config: %w", err)
	}

	host, port, err := net.SplitHostPort(cfg.ListenAddr)
	if err != nil {
		return server.Config{}, err
	}
	if meta.IsDefined("host") {
		host = strings.TrimSpace(raw.Host)
	}
	if meta.IsDefined("port") {
		if raw.Port <= 0 || raw.Port > 65535 {
			return server.Config{}, fmt.Errorf("load sealdropd config: port %d out of range", raw.Port)
		}
		port = strconv.Itoa(raw.Port)
	}
	if meta.IsDefined("port_file") {
		portFile := resolveRelative(path, strings.TrimSpace(raw.PortFile))
		p, err := readPortFile(portFile)
		switch {
		case err == nil:
			port = strconv.Itoa(p)
		case errors.Is(err, fs.ErrNotExist):
			log.Warn().Str("port_file", portFile).Str("port", port).Msg("port file missing, using configured port")
		default:
			return server.Config{}, fmt.Errorf("load sealdropd config: %w", err)
		}
	}
	cfg.ListenAddr = net.JoinHostPort(host, port)

	if meta.IsDefined("storage_backend") {
		cfg.StorageBackend = strings.ToLower(strings.TrimSpace(raw.StorageBackend))
		if cfg.StorageBackend != storage.BackendFS && cfg.StorageBackend != storage.BackendMemory {
			return server.Config{}, fmt.Errorf(
				"load sealdropd config: unsupported storage_backend %q (expected %s or %s)",
				raw.StorageBackend,
				storage.BackendFS,
				storage.BackendMemory,
			)
		}
	}
	if meta.IsDefined("storage_root") {
		cfg.StorageRoot = strings.TrimSpace(raw.StorageRoot)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = raw.CORSOrigins
	}
	if meta.IsDefined("read_timeout") {
		if cfg.ReadTimeout, err = parseTimeout("read_timeout", raw.ReadTimeout); err != nil {
			return server.Config{}, err
		}
	}
	if meta.IsDefined("write_timeout") {
		if cfg.WriteTimeout, err = parseTimeout("write_timeout", raw.WriteTimeout); err != nil {
			return server.Config{}, err
		}
	}
	if meta.IsDefined("max_payload_bytes") {
		if raw.MaxPayloadBytes <= 0 || raw.MaxPayloadBytes > int64(^uint32(0)) {
			return server.Config{}, fmt.Errorf("load sealdropd config: max_payload_bytes %d out of range", raw.MaxPayloadBytes)
		}
		cfg.Limits.MaxPayloadBytes = uint32(raw.MaxPayloadBytes)
	}
	return cfg.WithDefaults(), nil
}

// readPortFile returns the first whitespace-separated token of path as a port.
func readPortFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, fmt.Errorf("port file %q is empty", path)
	}
	port, err := strconv.Atoi(fields[0])
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("port file %q: invalid port %q", path, fields[0])
	}
	return port, nil
}

func parseTimeout(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("load sealdropd config: %s %q must be a positive duration", key, raw)
	}
	return d, nil
}

func resolveRelative(configPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}

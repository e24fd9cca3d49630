package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	KindServer = "server"
	KindClient = "client"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case KindServer:
		return serverTemplate, nil
	case KindClient:
		return clientTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const serverTemplate = `host = ""
port = 1256
# port_file = "port.info"
storage_backend = "fs"
storage_root = "local/received"
admin_addr = "127.0.0.1:7256"
cors_origins = ["http://localhost:3000"]
read_timeout = "15s"
write_timeout = "15s"
max_payload_bytes = 16777216
`

const clientTemplate = `server = "127.0.0.1:1256"
name = "Alice"
identity = "me.info"
attempts = 3
checksum_retries = 3
connect_timeout = "5s"
io_timeout = "15s"
`

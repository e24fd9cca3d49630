package client

import (
	"bufio"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/sealdrop/internal/protocol"
)

const (
	IdentityFile = "me.info"
	TransferFile = "transfer.info"
)

var (
	ErrInvalidIdentity = errors.New("client: invalid identity file")
	ErrInvalidTransfer = errors.New("client: invalid transfer file")
)

// Identity is what a registered client keeps between runs.
type Identity struct {
	Name       string
	ID         protocol.ClientID
	PrivateKey *rsa.PrivateKey
}

// LoadIdentity reads the three-line identity file: name, hex client id and
// the base64 PKCS#1 private key.
func LoadIdentity(path string) (Identity, error) {
	lines, err := readLines(path, 3)
	if err != nil {
		return Identity{}, err
	}
	name := lines[0]
	if !protocol.ValidName(name) {
		return Identity{}, fmt.Errorf("%w: name %q", ErrInvalidIdentity, name)
	}
	id, err := protocol.ParseClientID(lines[1])
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	der, err := base64.StdEncoding.DecodeString(lines[2])
	if err != nil {
		return Identity{}, fmt.Errorf("%w: private key: %v", ErrInvalidIdentity, err)
	}
	priv, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: private key: %v", ErrInvalidIdentity, err)
	}
	return Identity{Name: name, ID: id, PrivateKey: priv}, nil
}

// SaveIdentity writes ident to path, readable by the owner only.
func SaveIdentity(path string, ident Identity) error {
	if ident.PrivateKey == nil {
		return fmt.Errorf("%w: missing private key", ErrInvalidIdentity)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	body := strings.Join([]string{
		ident.Name,
		ident.ID.String(),
		base64.StdEncoding.EncodeToString(x509.MarshalPKCS1PrivateKey(ident.PrivateKey)),
	}, "\n") + "\n"
	return os.WriteFile(path, []byte(body), 0o600)
}

// TransferInfo names the server, the client and the file to send.
type TransferInfo struct {
	Address  string
	Name     string
	FilePath string
}

// LoadTransferInfo reads host:port, client name and file path, one per line.
func LoadTransferInfo(path string) (TransferInfo, error) {
	lines, err := readLines(path, 3)
	if err != nil {
		return TransferInfo{}, err
	}
	info := TransferInfo{Address: lines[0], Name: lines[1], FilePath: lines[2]}
	if _, port, err := net.SplitHostPort(info.Address); err != nil || port == "" {
		return TransferInfo{}, fmt.Errorf("%w: address %q", ErrInvalidTransfer, info.Address)
	}
	if !protocol.ValidName(info.Name) {
		return TransferInfo{}, fmt.Errorf("%w: name %q", ErrInvalidTransfer, info.Name)
	}
	if base := filepath.Base(info.FilePath); len(base) > protocol.FileNameSize || base == "." {
		return TransferInfo{}, fmt.Errorf("%w: file path %q", ErrInvalidTransfer, info.FilePath)
	}
	return info, nil
}

func readLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lines := make([]string, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), 64*1024)
	for sc.Scan() && len(lines) < n {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(lines) < n {
		return nil, fmt.Errorf("%s: expected %d lines, found %d", path, n, len(lines))
	}
	return lines, nil
}

package keytest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"sync"
	"testing"

	"github.com/danmuck/sealdrop/internal/protocol"
)

// ClientKey is an RSA-1024 key pair plus its zero-padded wire blob.
type ClientKey struct {
	Private *rsa.PrivateKey
	Blob    []byte
}

var (
	sharedOnce sync.Once
	shared     *rsa.PrivateKey
	sharedErr  error
)

// NewClientKey returns a key pair shared by every caller in the test binary.
func NewClientKey(t testing.TB) ClientKey {
	t.Helper()
	sharedOnce.Do(func() {
		shared, sharedErr = rsa.GenerateKey(rand.Reader, 1024)
	})
	if sharedErr != nil {
		t.Fatalf("generate client key: %v", sharedErr)
	}
	return ClientKey{Private: shared, Blob: blob(t, &shared.PublicKey)}
}

// NewDistinctClientKey always generates a fresh key pair.
func NewDistinctClientKey(t testing.TB) ClientKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	return ClientKey{Private: key, Blob: blob(t, &key.PublicKey)}
}

func blob(t testing.TB, pub *rsa.PublicKey) []byte {
	t.Helper()
	der := x509.MarshalPKCS1PublicKey(pub)
	if len(der) > protocol.PublicKeySize {
		t.Fatalf("public key does not fit field: %d bytes", len(der))
	}
	out := make([]byte, protocol.PublicKeySize)
	copy(out, der)
	return out
}

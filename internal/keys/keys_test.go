package keys

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/x509"
	"testing"

	"github.com/danmuck/sealdrop/internal/protocol"
	"github.com/danmuck/sealdrop/internal/testutil/keytest"
	"github.com/danmuck/sealdrop/internal/testutil/testlog"
)

func TestWrapUnwrapSessionKey(t *testing.T) {
	testlog.Start(t)
	client := keytest.NewClientKey(t)

	key, err := NewSessionKey()
	if err != nil {
		t.Fatalf("new session key: %v", err)
	}
	wrapped, err := WrapSessionKey(client.Blob, key)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if len(wrapped) != 128 {
		t.Fatalf("expected 128-byte wrapped key for RSA-1024, got %d", len(wrapped))
	}
	got, err := UnwrapSessionKey(client.Private, wrapped)
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if got != key {
		t.Fatalf("session key mismatch")
	}
}

func TestParsePublicKeyAcceptsPKIXAndPKCS1(t *testing.T) {
	testlog.Start(t)
	client := keytest.NewClientKey(t)
	pub := &client.Private.PublicKey

	pkcs1 := make([]byte, protocol.PublicKeySize)
	copy(pkcs1, x509.MarshalPKCS1PublicKey(pub))
	parsed, err := ParsePublicKey(pkcs1)
	if err != nil {
		t.Fatalf("parse pkcs1: %v", err)
	}
	if parsed.N.Cmp(pub.N) != 0 || parsed.E != pub.E {
		t.Fatalf("pkcs1 key mismatch")
	}

	pkix, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshal pkix: %v", err)
	}
	parsed, err = ParsePublicKey(pkix)
	if err != nil {
		t.Fatalf("parse pkix: %v", err)
	}
	if parsed.N.Cmp(pub.N) != 0 {
		t.Fatalf("pkix key mismatch")
	}
}

func TestParsePublicKeyRejectsGarbage(t *testing.T) {
	cases := map[string][]byte{
		"zeros":    make([]byte, protocol.PublicKeySize),
		"random":   bytes.Repeat([]byte{0x42}, protocol.PublicKeySize),
		"sequence": append([]byte{0x30, 0x03, 0x02, 0x01, 0x05}, make([]byte, 155)...),
	}
	for name, blob := range cases {
		if _, err := ParsePublicKey(blob); !IsKind(err, KindMalformedKey) {
			t.Fatalf("%s: expected malformed key error, got %v", name, err)
		}
		if _, err := WrapSessionKey(blob, SessionKey{}); !IsKind(err, KindMalformedKey) {
			t.Fatalf("%s: wrap should fail as malformed key, got %v", name, err)
		}
	}
}

func TestParsePublicKeyRejectsTrailingData(t *testing.T) {
	client := keytest.NewClientKey(t)
	blob := append([]byte(nil), client.Blob...)
	blob[len(blob)-1] = 0x01
	if _, err := ParsePublicKey(blob); !IsKind(err, KindMalformedKey) {
		t.Fatalf("expected malformed key error, got %v", err)
	}
}

func TestMarshalPublicKeyFitsField(t *testing.T) {
	client := keytest.NewClientKey(t)
	blob, err := MarshalPublicKey(&client.Private.PublicKey)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(blob) != protocol.PublicKeySize {
		t.Fatalf("unexpected blob size: %d", len(blob))
	}
	if _, err := ParsePublicKey(blob); err != nil {
		t.Fatalf("parse marshalled key: %v", err)
	}
}

func TestEncryptDecrypt(t *testing.T) {
	key, err := NewSessionKey()
	if err != nil {
		t.Fatalf("new session key: %v", err)
	}
	for _, n := range []int{0, 1, 15, 16, 17, 734, 5000} {
		plain := bytes.Repeat([]byte{byte(n)}, n)
		ct, err := Encrypt(key, plain)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		if len(ct)%aes.BlockSize != 0 || len(ct) <= n {
			t.Fatalf("n=%d: unexpected ciphertext length %d", n, len(ct))
		}
		out, err := Decrypt(key, ct)
		if err != nil {
			t.Fatalf("n=%d: decrypt: %v", n, err)
		}
		if !bytes.Equal(out, plain) {
			t.Fatalf("n=%d: plaintext mismatch", n)
		}
	}
}

func TestEncryptUsesZeroIV(t *testing.T) {
	var key SessionKey
	copy(key[:], "0123456789abcdef")
	plain := []byte("sixteen byte msg")

	block, err := aes.NewCipher(key[:])
	if err != nil {
		t.Fatalf("aes: %v", err)
	}
	want := append(append([]byte(nil), plain...), bytes.Repeat([]byte{16}, 16)...)
	cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(want, want)

	got, err := Encrypt(key, plain)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("ciphertext mismatch")
	}
}

func TestDecryptRejectsBadInput(t *testing.T) {
	var key SessionKey
	if _, err := Decrypt(key, nil); !IsKind(err, KindDecrypt) {
		t.Fatalf("expected decrypt error for empty input, got %v", err)
	}
	if _, err := Decrypt(key, make([]byte, 17)); !IsKind(err, KindDecrypt) {
		t.Fatalf("expected decrypt error for unaligned input, got %v", err)
	}

	ct, err := Encrypt(key, []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	var other SessionKey
	other[0] = 1
	// A wrong key almost always breaks the padding; check the kind when it does.
	if _, err := Decrypt(other, ct); err != nil && !IsKind(err, KindPadding) {
		t.Fatalf("expected padding error, got %v", err)
	}
}

func TestUnpadRejectsZeroAndOversize(t *testing.T) {
	block := make([]byte, 16)
	if _, err := unpad(block, 16); !IsKind(err, KindPadding) {
		t.Fatalf("expected padding error for zero pad byte, got %v", err)
	}
	block[15] = 17
	if _, err := unpad(block, 16); !IsKind(err, KindPadding) {
		t.Fatalf("expected padding error for oversize pad, got %v", err)
	}
	block[15] = 2
	block[14] = 3
	if _, err := unpad(block, 16); !IsKind(err, KindPadding) {
		t.Fatalf("expected padding error for inconsistent pad, got %v", err)
	}
}

// Package keys holds the session-key exchange and file cipher: RSA-OAEP
// (SHA-1) wrapping of a random AES-128 key under the client's public key, and
// AES-CBC with an all-zero IV and PKCS#7 padding for file content.
package keys

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"fmt"

	"github.com/danmuck/sealdrop/internal/protocol"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

const SessionKeySize = 16

// SessionKey is the per-client AES-128 key.
type SessionKey [SessionKeySize]byte

// NewSessionKey draws a key from crypto/rand.
func NewSessionKey() (SessionKey, error) {
	var k SessionKey
	if _, err := rand.Read(k[:]); err != nil {
		return k, wrap(KindRandom, "read session key", err)
	}
	return k, nil
}

// ParsePublicKey reads the DER element at the start of a fixed-size key
// blob. Both SubjectPublicKeyInfo and PKCS#1 RSAPublicKey are accepted;
// anything after the element must be zero padding.
func ParsePublicKey(blob []byte) (*rsa.PublicKey, error) {
	input := cryptobyte.String(blob)
	var elem cryptobyte.String
	if !input.ReadASN1Element(&elem, asn1.SEQUENCE) {
		return nil, newError(KindMalformedKey, "public key is not a DER sequence")
	}
	for _, b := range input {
		if b != 0 {
			return nil, newError(KindMalformedKey, "public key has trailing data")
		}
	}

	if pub, err := x509.ParsePKIXPublicKey(elem); err == nil {
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, newError(KindMalformedKey, fmt.Sprintf("unsupported public key type %T", pub))
		}
		return rsaPub, nil
	}
	pub, err := x509.ParsePKCS1PublicKey(elem)
	if err != nil {
		return nil, wrap(KindMalformedKey, "parse public key", err)
	}
	return pub, nil
}

// MarshalPublicKey renders pub into the fixed wire blob, zero padded.
// SubjectPublicKeyInfo is used when it fits, PKCS#1 otherwise.
func MarshalPublicKey(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, wrap(KindMalformedKey, "marshal public key", err)
	}
	if len(der) > protocol.PublicKeySize {
		der = x509.MarshalPKCS1PublicKey(pub)
	}
	if len(der) > protocol.PublicKeySize {
		return nil, newError(KindMalformedKey,
			fmt.Sprintf("public key needs %d bytes, field holds %d", len(der), protocol.PublicKeySize))
	}
	blob := make([]byte, protocol.PublicKeySize)
	copy(blob, der)
	return blob, nil
}

// WrapSessionKey encrypts key under the public key blob.
func WrapSessionKey(publicKey []byte, key SessionKey) ([]byte, error) {
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return nil, err
	}
	out, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, pub, key[:], nil)
	if err != nil {
		return nil, wrap(KindWrap, "encrypt session key", err)
	}
	return out, nil
}

// UnwrapSessionKey is the client-side inverse of WrapSessionKey.
func UnwrapSessionKey(priv *rsa.PrivateKey, wrapped []byte) (SessionKey, error) {
	var k SessionKey
	raw, err := rsa.DecryptOAEP(sha1.New(), nil, priv, wrapped, nil)
	if err != nil {
		return k, wrap(KindUnwrap, "decrypt session key", err)
	}
	if len(raw) != SessionKeySize {
		return k, newError(KindUnwrap, fmt.Sprintf("session key has %d bytes", len(raw)))
	}
	copy(k[:], raw)
	return k, nil
}

// Encrypt pads plaintext and encrypts it in CBC mode with a zero IV.
func Encrypt(key SessionKey, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, wrap(KindDecrypt, "aes cipher", err)
	}
	out := pad(plaintext, aes.BlockSize)
	var iv [aes.BlockSize]byte
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(out, out)
	return out, nil
}

// Decrypt reverses Encrypt. Ciphertext must be a non-empty multiple of the
// block size and carry valid padding.
func Decrypt(key SessionKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, newError(KindDecrypt,
			fmt.Sprintf("ciphertext length %d is not a positive multiple of %d", len(ciphertext), aes.BlockSize))
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, wrap(KindDecrypt, "aes cipher", err)
	}
	out := make([]byte, len(ciphertext))
	var iv [aes.BlockSize]byte
	cipher.NewCBCDecrypter(block, iv[:]).CryptBlocks(out, ciphertext)
	return unpad(out, aes.BlockSize)
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, newError(KindPadding, "invalid padding length")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, newError(KindPadding, "invalid padding bytes")
		}
	}
	return b[:len(b)-n], nil
}

// Package client is the reference peer for the sealdrop server: it registers
// or reconnects, obtains a session key and uploads files chunk by chunk,
// answering the server's checksum with a verdict.
package client

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	mrand "math/rand"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/sealdrop/internal/checksum"
	"github.com/danmuck/sealdrop/internal/keys"
	"github.com/danmuck/sealdrop/internal/protocol"
	"github.com/danmuck/sealdrop/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

// RSAKeyBits matches the 160-byte public key field.
const RSAKeyBits = 1024

var (
	ErrAddressRequired    = errors.New("client: server address required")
	ErrRegistrationFailed = errors.New("client: registration failed")
	ErrReconnectDenied    = errors.New("client: reconnection denied")
	ErrServerError        = errors.New("client: server answered with a generic error")
	ErrUnexpectedResponse = errors.New("client: unexpected response")
	ErrNotRegistered      = errors.New("client: not registered")
	ErrNoSessionKey       = errors.New("client: no session key")
	ErrChecksumMismatch   = errors.New("client: checksum mismatch")
	ErrUploadFailed       = errors.New("client: upload interrupted")
)

type Client struct {
	cfg Config
	rng *mrand.Rand

	name string
	id   protocol.ClientID
	priv *rsa.PrivateKey
	key  *keys.SessionKey
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	return &Client{
		cfg: cfg.WithDefaults(),
		rng: mrand.New(mrand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Identity returns what should be saved to resume later with Reconnect.
func (c *Client) Identity() Identity {
	return Identity{Name: c.name, ID: c.id, PrivateKey: c.priv}
}

func (c *Client) ID() protocol.ClientID {
	return c.id
}

// Register claims name and stores the issued client id.
func (c *Client) Register(ctx context.Context, name string) error {
	if !protocol.ValidName(name) {
		return fmt.Errorf("%w: invalid name %q", ErrRegistrationFailed, name)
	}
	resp, err := c.exchange(ctx, protocol.RegistrationRequest{Head: c.head(), Name: name})
	if err != nil {
		return err
	}
	switch r := resp.(type) {
	case protocol.ClientIDResponse:
		if r.Status != protocol.CodeRegistrationSucceeded {
			return unexpected(resp, protocol.CodeRegistrationSucceeded)
		}
		c.name = name
		c.id = r.ClientID
		log.Info().Str("name", name).Str("client_id", r.ClientID.String()).Msg("registered")
		return nil
	case protocol.StatusResponse:
		if r.Status == protocol.CodeRegistrationFailed {
			return fmt.Errorf("%w: name %q", ErrRegistrationFailed, name)
		}
	}
	return unexpected(resp, protocol.CodeRegistrationSucceeded)
}

// ExchangeKeys sends the client's public key, generating an RSA key pair
// first if none is loaded, and unwraps the issued session key.
func (c *Client) ExchangeKeys(ctx context.Context) error {
	if c.id.IsZero() {
		return ErrNotRegistered
	}
	if c.priv == nil {
		priv, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
		if err != nil {
			return fmt.Errorf("generate rsa key: %w", err)
		}
		c.priv = priv
	}
	blob, err := keys.MarshalPublicKey(&c.priv.PublicKey)
	if err != nil {
		return err
	}
	resp, err := c.exchange(ctx, protocol.PublicKeyRequest{Head: c.head(), Name: c.name, PublicKey: blob})
	if err != nil {
		return err
	}
	return c.acceptSessionKey(resp, protocol.CodeSessionKeyIssued)
}

// Reconnect resumes ident and obtains a fresh session key under its stored
// public key.
func (c *Client) Reconnect(ctx context.Context, ident Identity) error {
	if ident.PrivateKey == nil {
		return fmt.Errorf("%w: missing private key", ErrInvalidIdentity)
	}
	c.name = ident.Name
	c.id = ident.ID
	c.priv = ident.PrivateKey
	c.key = nil

	resp, err := c.exchange(ctx, protocol.ReconnectionRequest{Head: c.head(), Name: c.name})
	if err != nil {
		return err
	}
	if resp.Code() == protocol.CodeReconnectDenied {
		return fmt.Errorf("%w: name %q", ErrReconnectDenied, c.name)
	}
	return c.acceptSessionKey(resp, protocol.CodeReconnectApproved)
}

func (c *Client) acceptSessionKey(resp protocol.Response, want protocol.ResponseCode) error {
	r, ok := resp.(protocol.SessionKeyResponse)
	if !ok || r.Status != want {
		return unexpected(resp, want)
	}
	if r.ClientID != c.id {
		return fmt.Errorf("%w: session key for %s, expected %s", ErrUnexpectedResponse, r.ClientID, c.id)
	}
	key, err := keys.UnwrapSessionKey(c.priv, r.WrappedKey)
	if err != nil {
		return err
	}
	c.key = &key
	log.Info().Str("name", c.name).Str("client_id", c.id.String()).Str("response", want.String()).Msg("session key received")
	return nil
}

// SendFile encrypts plaintext and uploads it one chunk per connection,
// returning the checksum the server computed.
func (c *Client) SendFile(ctx context.Context, fileName string, plaintext []byte) (uint32, error) {
	if c.key == nil {
		return 0, ErrNoSessionKey
	}
	ciphertext, err := keys.Encrypt(*c.key, plaintext)
	if err != nil {
		return 0, err
	}
	chunks, err := protocol.SplitFile(c.head(), fileName, uint32(len(plaintext)), ciphertext, c.cfg.ChunkSize)
	if err != nil {
		return 0, err
	}

	// chunks are never retried one by one: the server appends whatever
	// arrives, so a repeated chunk would corrupt the file
	for _, chunk := range chunks {
		resp, err := c.send(ctx, chunk, 1)
		if err != nil {
			return 0, fmt.Errorf("%w: packet %d/%d: %w", ErrUploadFailed, chunk.PacketNumber, chunk.TotalPackets, err)
		}
		if !chunk.Final() {
			if resp.Code() != protocol.CodeAcknowledged {
				return 0, fmt.Errorf("%w: %w", ErrUploadFailed, unexpected(resp, protocol.CodeAcknowledged))
			}
			continue
		}
		r, ok := resp.(protocol.FileReceivedResponse)
		if !ok {
			return 0, fmt.Errorf("%w: %w", ErrUploadFailed, unexpected(resp, protocol.CodeFileReceived))
		}
		if r.FileName != fileName {
			return 0, fmt.Errorf("%w: checksum for %q, expected %q", ErrUnexpectedResponse, r.FileName, fileName)
		}
		return r.Checksum, nil
	}
	return 0, fmt.Errorf("%w: no terminal chunk", ErrUnexpectedResponse)
}

// upload runs SendFile until it completes or Attempts runs out. Before each
// restart from packet 1 a retry verdict tells the server to drop what the
// interrupted attempt left in its buffer.
func (c *Client) upload(ctx context.Context, fileName string, plaintext []byte) (uint32, error) {
	for attempt := 1; ; attempt++ {
		sum, err := c.SendFile(ctx, fileName, plaintext)
		if err == nil {
			return sum, nil
		}
		if !errors.Is(err, ErrUploadFailed) || attempt >= c.cfg.Attempts || ctx.Err() != nil {
			return 0, err
		}
		log.Warn().Str("file", fileName).Int("attempt", attempt).Err(err).Msg("upload failed, restarting")
		if err := c.verdict(ctx, fileName, protocol.CodeChecksumInvalidRetry, 1); err != nil {
			log.Debug().Str("file", fileName).Err(err).Msg("reset verdict not accepted")
		}
		if err := c.sleepBackoff(ctx, attempt); err != nil {
			return 0, err
		}
	}
}

// SendVerdict reports the checksum outcome for fileName.
func (c *Client) SendVerdict(ctx context.Context, fileName string, outcome protocol.RequestCode) error {
	switch outcome {
	case protocol.CodeChecksumValid, protocol.CodeChecksumInvalidRetry, protocol.CodeChecksumInvalidAbort:
	default:
		return fmt.Errorf("client: %s is not a checksum verdict", outcome)
	}
	return c.verdict(ctx, fileName, outcome, c.cfg.Attempts)
}

func (c *Client) verdict(ctx context.Context, fileName string, outcome protocol.RequestCode, attempts int) error {
	head := c.head()
	head.Code = outcome
	resp, err := c.send(ctx, protocol.ChecksumAckRequest{Head: head, FileName: fileName}, attempts)
	if err != nil {
		return err
	}
	if resp.Code() != protocol.CodeAcknowledged {
		return unexpected(resp, protocol.CodeAcknowledged)
	}
	return nil
}

// Transfer uploads plaintext under fileName and runs the checksum handshake,
// resending up to ChecksumRetries times before giving up. An interrupted
// upload is restarted from packet 1 up to Attempts times.
func (c *Client) Transfer(ctx context.Context, fileName string, plaintext []byte) error {
	fileName = filepath.Base(fileName)
	want := checksum.Sum(plaintext)
	for attempt := 0; ; attempt++ {
		got, err := c.upload(ctx, fileName, plaintext)
		if err != nil {
			return err
		}
		if got == want {
			log.Info().Str("file", fileName).Uint32("checksum", got).Msg("checksum verified")
			return c.SendVerdict(ctx, fileName, protocol.CodeChecksumValid)
		}
		log.Warn().
			Str("file", fileName).
			Uint32("local", want).
			Uint32("server", got).
			Int("attempt", attempt+1).
			Msg("checksum mismatch")
		if attempt >= c.cfg.ChecksumRetries {
			if err := c.SendVerdict(ctx, fileName, protocol.CodeChecksumInvalidAbort); err != nil {
				return err
			}
			return fmt.Errorf("%w: %q local=%d server=%d", ErrChecksumMismatch, fileName, want, got)
		}
		if err := c.SendVerdict(ctx, fileName, protocol.CodeChecksumInvalidRetry); err != nil {
			return err
		}
	}
}

func (c *Client) head() protocol.RequestHeader {
	return protocol.RequestHeader{ClientID: c.id, Version: protocol.Version}
}

// exchange runs one request/response on a fresh connection, retrying
// transport failures and generic errors.
func (c *Client) exchange(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	return c.send(ctx, req, c.cfg.Attempts)
}

func (c *Client) send(ctx context.Context, req protocol.Request, attempts int) (protocol.Response, error) {
	raw := req.Encode()
	label := "invalid"
	if h, err := protocol.DecodeRequestHeader(raw); err == nil {
		label = h.Code.String()
	}

	var attempt int
	for {
		attempt++
		resp, err := c.roundTrip(ctx, raw)
		if err == nil && resp.Code() == protocol.CodeGenericError {
			err = fmt.Errorf("%w: %s", ErrServerError, label)
		}
		if err == nil {
			return resp, nil
		}
		log.Warn().Str("request", label).Int("attempt", attempt).Err(err).Msg("exchange failed")
		if attempt >= attempts || ctx.Err() != nil {
			return nil, err
		}
		if err := c.sleepBackoff(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, raw []byte) (protocol.Response, error) {
	dialer := net.Dialer{Timeout: c.cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.cfg.IOTimeout))
	if _, err := conn.Write(raw); err != nil {
		return nil, err
	}
	return frame.ReadResponse(conn, c.cfg.Limits)
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	delay := NextBackoffDelay(c.cfg.Backoff, attempt, c.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func unexpected(resp protocol.Response, want protocol.ResponseCode) error {
	return fmt.Errorf("%w: got %s, expected %s", ErrUnexpectedResponse, resp.Code(), want)
}

// Package dispatch implements the per-client state machine behind each
// request kind: registration, key exchange, reconnection, chunked file
// reception and the checksum handshake.
//
// Explicit refusals (registration failed, reconnection denied) come back as
// responses with a nil error. Any other failure is returned as an error and
// the caller answers with a generic error response.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/danmuck/sealdrop/internal/checksum"
	"github.com/danmuck/sealdrop/internal/keys"
	"github.com/danmuck/sealdrop/internal/observability"
	"github.com/danmuck/sealdrop/internal/protocol"
	"github.com/danmuck/sealdrop/internal/session"
	"github.com/danmuck/sealdrop/internal/storage"
	"github.com/rs/zerolog/log"
)

type Dispatcher struct {
	store     session.Store
	persister storage.Persister
	newKey    func() (keys.SessionKey, error)
	wrapKey   func(publicKey []byte, key keys.SessionKey) ([]byte, error)
}

var _ protocol.Handler = (*Dispatcher)(nil)

type Option func(*Dispatcher)

// WithKeySource replaces the session key generator.
func WithKeySource(fn func() (keys.SessionKey, error)) Option {
	return func(d *Dispatcher) {
		d.newKey = fn
	}
}

// WithKeyWrapper replaces RSA-OAEP wrapping.
func WithKeyWrapper(fn func(publicKey []byte, key keys.SessionKey) ([]byte, error)) Option {
	return func(d *Dispatcher) {
		d.wrapKey = fn
	}
}

func New(store session.Store, persister storage.Persister, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		persister: persister,
		newKey:    keys.NewSessionKey,
		wrapKey:   keys.WrapSessionKey,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle routes req to its handler method.
func (d *Dispatcher) Handle(req protocol.Request) (protocol.Response, error) {
	return req.Dispatch(d)
}

func (d *Dispatcher) Register(req protocol.RegistrationRequest) (protocol.Response, error) {
	if !protocol.ValidName(req.Name) {
		log.Warn().Str("name", req.Name).Msg("registration rejected: invalid name")
		return protocol.StatusResponse{Status: protocol.CodeRegistrationFailed}, nil
	}
	rec, err := d.store.Register(req.Name)
	if errors.Is(err, session.ErrNameTaken) {
		log.Warn().Str("name", req.Name).Msg("registration rejected: name taken")
		return protocol.StatusResponse{Status: protocol.CodeRegistrationFailed}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("register %q: %w", req.Name, err)
	}
	log.Info().Str("name", rec.Name).Str("client_id", rec.ID.String()).Msg("client registered")
	return protocol.ClientIDResponse{Status: protocol.CodeRegistrationSucceeded, ClientID: rec.ID}, nil
}

func (d *Dispatcher) SubmitPublicKey(req protocol.PublicKeyRequest) (protocol.Response, error) {
	id, err := d.resolve(req.Name, req.Head.ClientID)
	if err != nil {
		return nil, err
	}
	key, err := d.newKey()
	if err != nil {
		return nil, err
	}
	wrapped, err := d.wrapKey(req.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("wrap session key for %q: %w", req.Name, err)
	}

	publicKey := append([]byte(nil), req.PublicKey...)
	if err := d.store.Update(id, func(r *session.ClientRecord) error {
		r.PublicKey = publicKey
		r.SessionKey = &key
		return nil
	}); err != nil {
		return nil, err
	}
	log.Info().Str("name", req.Name).Str("client_id", id.String()).Msg("session key issued")
	return protocol.SessionKeyResponse{
		Status:     protocol.CodeSessionKeyIssued,
		ClientID:   id,
		WrappedKey: wrapped,
	}, nil
}

func (d *Dispatcher) Reconnect(req protocol.ReconnectionRequest) (protocol.Response, error) {
	denied := protocol.StatusResponse{Status: protocol.CodeReconnectDenied}
	id, err := d.resolve(req.Name, req.Head.ClientID)
	if err != nil {
		log.Warn().Str("name", req.Name).Err(err).Msg("reconnection denied")
		return denied, nil
	}

	var wrapped []byte
	err = d.store.Update(id, func(r *session.ClientRecord) error {
		if !r.HasPublicKey() {
			return errReconnectNoPublicKey
		}
		key, err := d.newKey()
		if err != nil {
			return err
		}
		out, err := d.wrapKey(r.PublicKey, key)
		if err != nil {
			return fmt.Errorf("wrap session key for %q: %w", r.Name, err)
		}
		wrapped = out
		r.SessionKey = &key
		return nil
	})
	if errors.Is(err, errReconnectNoPublicKey) {
		log.Warn().Str("name", req.Name).Err(err).Msg("reconnection denied")
		return denied, nil
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("name", req.Name).Str("client_id", id.String()).Msg("client reconnected")
	return protocol.SessionKeyResponse{
		Status:     protocol.CodeReconnectApproved,
		ClientID:   id,
		WrappedKey: wrapped,
	}, nil
}

func (d *Dispatcher) ReceiveChunk(req protocol.FileChunkRequest) (protocol.Response, error) {
	if req.PacketNumber > req.TotalPackets {
		return nil, fmt.Errorf("%w: %d > %d", ErrPacketOutOfRange, req.PacketNumber, req.TotalPackets)
	}
	id := req.Head.ClientID

	var resp protocol.Response
	accepted := false
	err := d.store.Update(id, func(r *session.ClientRecord) error {
		if !r.Ready() {
			return ErrKeyExchangeIncomplete
		}
		buf := append(r.Pending[req.FileName], req.Content...)
		r.Pending[req.FileName] = buf
		accepted = true
		observability.RecordChunk(len(req.Content))

		if !req.Final() {
			log.Debug().
				Str("name", r.Name).
				Str("file", req.FileName).
				Uint16("packet", req.PacketNumber).
				Uint16("total", req.TotalPackets).
				Msg("chunk received")
			resp = protocol.ClientIDResponse{Status: protocol.CodeAcknowledged, ClientID: r.ID}
			return nil
		}

		// decrypt or persist failures leave the buffer as is
		plain, err := keys.Decrypt(*r.SessionKey, buf)
		if err != nil {
			return fmt.Errorf("decrypt %q: %w", req.FileName, err)
		}
		if err := d.persister.Persist(req.FileName, plain); err != nil {
			return fmt.Errorf("persist %q: %w", req.FileName, err)
		}
		r.Pending[req.FileName] = []byte{}

		sum := checksum.Sum(plain)
		log.Info().
			Str("name", r.Name).
			Str("file", req.FileName).
			Int("bytes", len(plain)).
			Uint32("checksum", sum).
			Msg("file received")
		resp = protocol.FileReceivedResponse{
			ClientID:    r.ID,
			ContentSize: req.ContentSize,
			FileName:    req.FileName,
			Checksum:    sum,
		}
		return nil
	})
	if accepted && req.Final() {
		observability.RecordTransfer(err == nil)
	}
	if errors.Is(err, session.ErrClientNotFound) {
		return nil, fmt.Errorf("%w: id=%s", ErrUnknownClient, id)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (d *Dispatcher) AcknowledgeChecksum(req protocol.ChecksumAckRequest) (protocol.Response, error) {
	id := req.Head.ClientID
	var name string
	err := d.store.Update(id, func(r *session.ClientRecord) error {
		if !r.HasPublicKey() {
			return ErrKeyExchangeIncomplete
		}
		if _, ok := r.Pending[req.FileName]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownTransfer, req.FileName)
		}
		// a verdict closes the file; whatever a failed upload left behind
		// is dropped so the next packet 1 starts from an empty buffer
		r.Pending[req.FileName] = []byte{}
		name = r.Name
		return nil
	})
	if errors.Is(err, session.ErrClientNotFound) {
		return nil, fmt.Errorf("%w: id=%s", ErrUnknownClient, id)
	}
	if err != nil {
		return nil, err
	}

	outcome := req.Head.Code.String()
	observability.RecordVerdict(outcome)
	event := log.Info()
	if req.Head.Code != protocol.CodeChecksumValid {
		event = log.Warn()
	}
	event.Str("name", name).Str("file", req.FileName).Str("outcome", outcome).Msg("checksum verdict")
	return protocol.ClientIDResponse{Status: protocol.CodeAcknowledged, ClientID: id}, nil
}

// resolve checks that name is registered under id.
func (d *Dispatcher) resolve(name string, id protocol.ClientID) (protocol.ClientID, error) {
	got, ok := d.store.Resolve(name)
	if !ok {
		return protocol.ClientID{}, fmt.Errorf("%w: name=%q", ErrUnknownClient, name)
	}
	if got != id {
		return protocol.ClientID{}, fmt.Errorf("%w: name=%q", ErrClientIDMismatch, name)
	}
	return got, nil
}

// Package session holds the volatile per-client registry: identity, key
// material and in-flight file buffers. Nothing survives a restart.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/danmuck/sealdrop/internal/keys"
	"github.com/danmuck/sealdrop/internal/protocol"
	"github.com/google/uuid"
)

const maxIDAttempts = 8

// ClientRecord is everything the server knows about one registered client.
type ClientRecord struct {
	ID         protocol.ClientID
	Name       string
	PublicKey  []byte
	SessionKey *keys.SessionKey
	// Pending maps file name to ciphertext received so far.
	Pending      map[string][]byte
	RegisteredAt time.Time
	LastSeenAt   time.Time
}

func (r *ClientRecord) HasPublicKey() bool {
	return len(r.PublicKey) > 0
}

// Ready reports whether the client finished key exchange.
func (r *ClientRecord) Ready() bool {
	return r.HasPublicKey() && r.SessionKey != nil
}

func (r *ClientRecord) clone() ClientRecord {
	out := *r
	out.PublicKey = append([]byte(nil), r.PublicKey...)
	if r.SessionKey != nil {
		k := *r.SessionKey
		out.SessionKey = &k
	}
	out.Pending = make(map[string][]byte, len(r.Pending))
	for name, buf := range r.Pending {
		out.Pending[name] = append([]byte{}, buf...)
	}
	return out
}

// Summary is the admin view of a record; key material is left out.
type Summary struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	HasPublicKey  bool           `json:"has_public_key"`
	HasSessionKey bool           `json:"has_session_key"`
	Pending       map[string]int `json:"pending"`
	RegisteredAt  time.Time      `json:"registered_at"`
	LastSeenAt    time.Time      `json:"last_seen_at"`
}

// Store is the registry boundary used by the dispatcher.
type Store interface {
	// Register inserts a new record under a fresh unique id.
	Register(name string) (ClientRecord, error)
	// Resolve maps a registered name to its id.
	Resolve(name string) (protocol.ClientID, bool)
	// Lookup returns a detached copy of the record.
	Lookup(id protocol.ClientID) (ClientRecord, bool)
	// Update runs fn with exclusive access to one record. fn mutates in
	// place; LastSeenAt only advances when fn returns nil.
	Update(id protocol.ClientID, fn func(*ClientRecord) error) error
	Snapshot() []Summary
	Len() int
}

type entry struct {
	mu  sync.Mutex
	rec ClientRecord
}

// MemoryStore keeps records in process memory. The registry lock guards the
// indexes; each record carries its own lock.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[protocol.ClientID]*entry
	byName  map[string]protocol.ClientID
	newID   func() (protocol.ClientID, error)
	nowFunc func() time.Time
}

type Option func(*MemoryStore)

// WithIDSource replaces the random id generator.
func WithIDSource(fn func() (protocol.ClientID, error)) Option {
	return func(s *MemoryStore) {
		s.newID = fn
	}
}

// WithClock replaces time.Now for record timestamps.
func WithClock(fn func() time.Time) Option {
	return func(s *MemoryStore) {
		s.nowFunc = fn
	}
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID:    make(map[protocol.ClientID]*entry),
		byName:  make(map[string]protocol.ClientID),
		newID:   NewClientID,
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClientID draws 16 random bytes via a version 4 UUID.
func NewClientID() (protocol.ClientID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return protocol.ClientID{}, err
	}
	return protocol.ClientID(u), nil
}

func (s *MemoryStore) Register(name string) (ClientRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[name]; ok {
		return ClientRecord{}, ErrNameTaken
	}

	var id protocol.ClientID
	allocated := false
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		candidate, err := s.newID()
		if err != nil {
			return ClientRecord{}, err
		}
		if _, taken := s.byID[candidate]; taken || candidate.IsZero() {
			continue
		}
		id = candidate
		allocated = true
		break
	}
	if !allocated {
		return ClientRecord{}, ErrIDExhausted
	}

	now := s.nowFunc()
	e := &entry{rec: ClientRecord{
		ID:           id,
		Name:         name,
		Pending:      make(map[string][]byte),
		RegisteredAt: now,
		LastSeenAt:   now,
	}}
	s.byID[id] = e
	s.byName[name] = id
	return e.rec.clone(), nil
}

func (s *MemoryStore) Resolve(name string) (protocol.ClientID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[name]
	return id, ok
}

func (s *MemoryStore) Lookup(id protocol.ClientID) (ClientRecord, bool) {
	e, ok := s.entry(id)
	if !ok {
		return ClientRecord{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.clone(), true
}

func (s *MemoryStore) Update(id protocol.ClientID, fn func(*ClientRecord) error) error {
	e, ok := s.entry(id)
	if !ok {
		return ErrClientNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(&e.rec); err != nil {
		return err
	}
	e.rec.LastSeenAt = s.nowFunc()
	return nil
}

func (s *MemoryStore) Snapshot() []Summary {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.byID))
	for _, e := range s.byID {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		pending := make(map[string]int, len(e.rec.Pending))
		for name, buf := range e.rec.Pending {
			pending[name] = len(buf)
		}
		out = append(out, Summary{
			ID:            e.rec.ID.String(),
			Name:          e.rec.Name,
			HasPublicKey:  e.rec.HasPublicKey(),
			HasSessionKey: e.rec.SessionKey != nil,
			Pending:       pending,
			RegisteredAt:  e.rec.RegisteredAt,
			LastSeenAt:    e.rec.LastSeenAt,
		})
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *MemoryStore) entry(id protocol.ClientID) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	return e, ok
}

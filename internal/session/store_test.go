package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/sealdrop/internal/keys"
	"github.com/danmuck/sealdrop/internal/protocol"
	"github.com/danmuck/sealdrop/internal/testutil/testlog"
)

func TestRegisterRejectsDuplicateName(t *testing.T) {
	testlog.Start(t)
	s := NewMemoryStore()
	rec, err := s.Register("Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if rec.ID.IsZero() || rec.Name != "Alice" || rec.Pending == nil {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if _, err := s.Register("Alice"); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("duplicate registration must not insert: len=%d", s.Len())
	}
	id, ok := s.Resolve("Alice")
	if !ok || id != rec.ID {
		t.Fatalf("resolve mismatch")
	}
}

func TestRegisterAssignsDistinctIDsConcurrently(t *testing.T) {
	s := NewMemoryStore()
	const n = 64
	ids := make(chan protocol.ClientID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := s.Register("client " + string(rune('A'+i%26)) + string(rune('a'+i/26)))
			if err != nil {
				t.Errorf("register %d: %v", i, err)
				return
			}
			ids <- rec.ID
		}(i)
	}
	wg.Wait()
	close(ids)
	seen := make(map[protocol.ClientID]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d ids, got %d", n, len(seen))
	}
}

func TestRegisterRetriesOnIDCollision(t *testing.T) {
	var fixed protocol.ClientID
	fixed[0] = 1
	var other protocol.ClientID
	other[0] = 2
	calls := 0
	s := NewMemoryStore(WithIDSource(func() (protocol.ClientID, error) {
		calls++
		if calls <= 2 {
			return fixed, nil
		}
		return other, nil
	}))
	a, err := s.Register("A")
	if err != nil || a.ID != fixed {
		t.Fatalf("first register: id=%s err=%v", a.ID, err)
	}
	b, err := s.Register("B")
	if err != nil {
		t.Fatalf("second register: %v", err)
	}
	if b.ID != other {
		t.Fatalf("expected regenerated id, got %s", b.ID)
	}
}

func TestRegisterGivesUpWhenIDsCollide(t *testing.T) {
	var fixed protocol.ClientID
	fixed[0] = 1
	s := NewMemoryStore(WithIDSource(func() (protocol.ClientID, error) { return fixed, nil }))
	if _, err := s.Register("A"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := s.Register("B"); !errors.Is(err, ErrIDExhausted) {
		t.Fatalf("expected ErrIDExhausted, got %v", err)
	}
	if _, ok := s.Resolve("B"); ok {
		t.Fatalf("failed registration must not index name")
	}
}

func TestUpdateErrorLeavesRecordAndTimestamp(t *testing.T) {
	now := time.Unix(1000, 0)
	s := NewMemoryStore(WithClock(func() time.Time { return now }))
	rec, err := s.Register("Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	now = now.Add(time.Minute)
	boom := errors.New("boom")
	if err := s.Update(rec.ID, func(*ClientRecord) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	got, _ := s.Lookup(rec.ID)
	if !got.LastSeenAt.Equal(time.Unix(1000, 0)) {
		t.Fatalf("failed update must not touch LastSeenAt: %v", got.LastSeenAt)
	}

	if err := s.Update(rec.ID, func(r *ClientRecord) error {
		r.PublicKey = []byte{1}
		k := keys.SessionKey{}
		r.SessionKey = &k
		return nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.Lookup(rec.ID)
	if !got.Ready() || !got.LastSeenAt.Equal(now) {
		t.Fatalf("unexpected record after update: %+v", got)
	}
}

func TestUpdateUnknownClient(t *testing.T) {
	s := NewMemoryStore()
	err := s.Update(protocol.ClientID{9}, func(*ClientRecord) error { return nil })
	if !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestLookupReturnsDetachedCopy(t *testing.T) {
	s := NewMemoryStore()
	rec, _ := s.Register("Alice")
	_ = s.Update(rec.ID, func(r *ClientRecord) error {
		r.Pending["a.txt"] = []byte("abc")
		return nil
	})
	got, _ := s.Lookup(rec.ID)
	got.Pending["a.txt"][0] = 'z'
	got.Pending["b.txt"] = nil
	again, _ := s.Lookup(rec.ID)
	if string(again.Pending["a.txt"]) != "abc" {
		t.Fatalf("lookup copy aliased store buffer")
	}
	if _, ok := again.Pending["b.txt"]; ok {
		t.Fatalf("lookup copy aliased pending map")
	}
}

func TestSnapshotSortedAndSized(t *testing.T) {
	s := NewMemoryStore()
	bob, _ := s.Register("Bob")
	_, _ = s.Register("Alice")
	_ = s.Update(bob.ID, func(r *ClientRecord) error {
		r.Pending["f.bin"] = make([]byte, 48)
		return nil
	})
	snap := s.Snapshot()
	if len(snap) != 2 || snap[0].Name != "Alice" || snap[1].Name != "Bob" {
		t.Fatalf("unexpected snapshot order: %+v", snap)
	}
	if snap[1].Pending["f.bin"] != 48 || snap[1].ID != bob.ID.String() {
		t.Fatalf("unexpected bob summary: %+v", snap[1])
	}
}

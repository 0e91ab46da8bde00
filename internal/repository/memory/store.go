// Package memory is a thread-safe in-memory implementation of the
// repository ports, used for local development without Postgres and in
// tests. State is lost on restart.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/NordCoder/Reelpass/internal/domain/auth"
	"github.com/NordCoder/Reelpass/internal/domain/outbox"
	"github.com/NordCoder/Reelpass/internal/domain/user"
)

type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	now  func() time.Time

	nextUserID  int64
	nextTokenID int64

	users  map[int64]*user.User
	tokens map[string]*auth.RefreshToken // key: token hash
	events map[string]*outbox.Message
	order  []string
}

func New(now func() time.Time) *Store {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		now:    now,
		users:  make(map[int64]*user.User),
		tokens: make(map[string]*auth.RefreshToken),
		events: make(map[string]*outbox.Message),
	}
}

type snapshot struct {
	nextUserID  int64
	nextTokenID int64
	users       map[int64]*user.User
	tokens      map[string]*auth.RefreshToken
	events      map[string]*outbox.Message
	order       []string
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool { return ctx.Value(txKey{}) == s }

// lock takes the write lock. A write outside a transaction first waits for
// the running one to finish, so a rollback only ever undoes that
// transaction's own writes.
func (s *Store) lock(ctx context.Context) (unlock func()) {
	if s.inTx(ctx) {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

// WithTx serializes transactions and restores the state captured at begin
// when function fails. Writes must use the context handed to function; a
// write made with any other context blocks until the transaction ends. A
// nested call joins the outer transaction.
func (s *Store) WithTx(ctx context.Context, function func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return function(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := function(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		nextUserID:  s.nextUserID,
		nextTokenID: s.nextTokenID,
		users:       make(map[int64]*user.User, len(s.users)),
		tokens:      make(map[string]*auth.RefreshToken, len(s.tokens)),
		events:      make(map[string]*outbox.Message, len(s.events)),
		order:       append([]string(nil), s.order...),
	}
	for k, v := range s.users {
		cp := *v
		snap.users[k] = &cp
	}
	for k, v := range s.tokens {
		cp := *v
		snap.tokens[k] = &cp
	}
	for k, v := range s.events {
		cp := *v
		snap.events[k] = &cp
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextUserID = snap.nextUserID
	s.nextTokenID = snap.nextTokenID
	s.users = maps.Clone(snap.users)
	s.tokens = maps.Clone(snap.tokens)
	s.events = maps.Clone(snap.events)
	s.order = snap.order
}

func (s *Store) Ping(context.Context) error { return nil }

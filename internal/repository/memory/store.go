// Package memory holds in-process implementations of the repository interfaces.
// It backs STORAGE_BACKEND=memory and the service tests.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/repositories"
)

// Store is the shared state behind all memory repositories.
//
// Reads take mu. Writes additionally take txMu unless they run inside ExecTx,
// which holds txMu for the whole transaction; that makes transactions
// serializable against every other writer and lets rollback restore a snapshot.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	businesses    map[string]models.Business
	users         map[string]models.User
	grants        map[string]models.BusinessAccess
	conversations map[string]models.Conversation
	messages      map[string]models.Message
	chunks        map[string]models.RagChunk
	queries       map[string]models.RagQuery

	now func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		businesses:    make(map[string]models.Business),
		users:         make(map[string]models.User),
		grants:        make(map[string]models.BusinessAccess),
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string]models.Message),
		chunks:        make(map[string]models.RagChunk),
		queries:       make(map[string]models.RagQuery),
		now:           time.Now,
	}
}

// SetClock replaces the timestamp source used for created_at / updated_at
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

type inTxKey struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(inTxKey{}).(bool)
	return v
}

// lockWrite serializes a write against open transactions
func (s *Store) lockWrite(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

type snapshot struct {
	businesses    map[string]models.Business
	users         map[string]models.User
	grants        map[string]models.BusinessAccess
	conversations map[string]models.Conversation
	messages      map[string]models.Message
	chunks        map[string]models.RagChunk
	queries       map[string]models.RagQuery
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot{
		businesses:    maps.Clone(s.businesses),
		users:         maps.Clone(s.users),
		grants:        maps.Clone(s.grants),
		conversations: maps.Clone(s.conversations),
		messages:      maps.Clone(s.messages),
		chunks:        maps.Clone(s.chunks),
		queries:       maps.Clone(s.queries),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses = snap.businesses
	s.users = snap.users
	s.grants = snap.grants
	s.conversations = snap.conversations
	s.messages = snap.messages
	s.chunks = snap.chunks
	s.queries = snap.queries
}

// TransactionManager implements repositories.TransactionManager for the memory store
type TransactionManager struct {
	store *Store
}

// NewTransactionManager creates a transaction manager over store
func NewTransactionManager(store *Store) repositories.TransactionManager {
	return &TransactionManager{store: store}
}

// ExecTx runs fn with exclusive write access. A non-nil error (or panic)
// restores the state captured before fn started.
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) (err error) {
	if inTx(ctx) {
		// nested call joins the outer transaction
		return fn(ctx)
	}

	tm.store.txMu.Lock()
	defer tm.store.txMu.Unlock()

	snap := tm.store.snapshot()
	defer func() {
		if p := recover(); p != nil {
			tm.store.restore(snap)
			panic(p)
		}
		if err != nil {
			tm.store.restore(snap)
		}
	}()

	return fn(context.WithValue(ctx, inTxKey{}, true))
}

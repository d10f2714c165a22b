package state

import (
	"errors"
	"sync"

	"agentvault/storage"
)

// Manager provides serialized, transactional access to the vault state tree.
// Every state-mutating operation runs inside Update: writes are buffered in a
// transaction and either commit fully or leave the store untouched. The mutex
// makes the store single-writer-at-a-time, matching the host execution model
// where one operation completes fully before the next begins.
type Manager struct {
	mu sync.Mutex
	db storage.Database
}

// NewManager wraps the provided key-value backend.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Update runs fn against a buffered transaction and commits the buffered
// writes only when fn returns nil. Any error discards every buffered mutation.
func (m *Manager) Update(fn func(txn *Txn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn := newTxn(m.db)
	if err := fn(txn); err != nil {
		return err
	}
	return txn.commit()
}

// View runs fn against a read-only snapshot of current committed state. Writes
// made by fn are discarded.
func (m *Manager) View(fn func(txn *Txn) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(newTxn(m.db))
}

// Txn is a buffered overlay over the backing store. Reads observe buffered
// writes first, then fall through to committed state.
type Txn struct {
	db      storage.Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

func newTxn(db storage.Database) *Txn {
	return &Txn{
		db:      db,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (t *Txn) get(key []byte) ([]byte, bool, error) {
	if value, ok := t.writes[string(key)]; ok {
		return value, true, nil
	}
	if _, ok := t.deletes[string(key)]; ok {
		return nil, false, nil
	}
	value, err := t.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (t *Txn) put(key, value []byte) {
	delete(t.deletes, string(key))
	t.writes[string(key)] = append([]byte(nil), value...)
}

func (t *Txn) commit() error {
	for key := range t.deletes {
		if err := t.db.Delete([]byte(key)); err != nil {
			return err
		}
	}
	for key, value := range t.writes {
		if err := t.db.Put([]byte(key), value); err != nil {
			return err
		}
	}
	return nil
}

package storage

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// MemoryStore implements Store using an in-memory map. Used in tests.
type MemoryStore struct {
	mu     sync.Mutex
	writer sync.Mutex
	data   map[string][]byte
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]byte),
	}
}

// Begin opens a transaction. Writes are staged in an overlay and applied
// atomically on Commit; the writer lock serializes write transactions.
func (m *MemoryStore) Begin(update bool) (Tx, error) {
	if update {
		m.writer.Lock()
	}
	return &memTx{
		store:   m,
		update:  update,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}, nil
}

// Close closes the store.
func (m *MemoryStore) Close() error {
	return nil
}

type memTx struct {
	store   *MemoryStore
	update  bool
	writes  map[string][]byte
	deletes map[string]struct{}
	done    bool
}

func (t *memTx) Table(def TableDef) Table {
	return &memTable{tx: t, def: def}
}

func (t *memTx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	if !t.update {
		return nil
	}
	t.store.mu.Lock()
	for k := range t.deletes {
		delete(t.store.data, k)
	}
	for k, v := range t.writes {
		t.store.data[k] = v
	}
	t.store.mu.Unlock()
	t.store.writer.Unlock()
	return nil
}

func (t *memTx) Discard() {
	if t.done {
		return
	}
	t.done = true
	if t.update {
		t.store.writer.Unlock()
	}
}

type memTable struct {
	tx  *memTx
	def TableDef
}

func (t *memTable) prefixed(key []byte) string {
	return t.def.Prefix + string(key)
}

func (t *memTable) Get(key []byte) ([]byte, error) {
	k := t.prefixed(key)
	if _, deleted := t.tx.deletes[k]; deleted {
		return nil, nil
	}
	if v, ok := t.tx.writes[k]; ok {
		return append([]byte(nil), v...), nil
	}
	t.tx.store.mu.Lock()
	defer t.tx.store.mu.Unlock()
	v, ok := t.tx.store.data[k]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (t *memTable) Put(key, value []byte) error {
	if !t.tx.update {
		return errors.New("put on read-only transaction")
	}
	k := t.prefixed(key)
	delete(t.tx.deletes, k)
	t.tx.writes[k] = append([]byte(nil), value...)
	return nil
}

func (t *memTable) Delete(key []byte) error {
	if !t.tx.update {
		return errors.New("delete on read-only transaction")
	}
	k := t.prefixed(key)
	delete(t.tx.writes, k)
	t.tx.deletes[k] = struct{}{}
	return nil
}

func (t *memTable) Take(key []byte) ([]byte, error) {
	val, err := t.Get(key)
	if err != nil || val == nil {
		return nil, err
	}
	if err := t.Delete(key); err != nil {
		return nil, err
	}
	return val, nil
}

// visible collects the transaction's view of the table's keys, sorted.
func (t *memTable) visible() []string {
	seen := make(map[string]struct{})
	var keys []string

	t.tx.store.mu.Lock()
	for k := range t.tx.store.data {
		if strings.HasPrefix(k, t.def.Prefix) {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	t.tx.store.mu.Unlock()

	for k := range t.tx.writes {
		if strings.HasPrefix(k, t.def.Prefix) {
			if _, ok := seen[k]; !ok {
				keys = append(keys, k)
			}
		}
	}

	filtered := keys[:0]
	for _, k := range keys {
		if _, deleted := t.tx.deletes[k]; !deleted {
			filtered = append(filtered, k)
		}
	}
	sort.Strings(filtered)
	return filtered
}

func (t *memTable) Ascend(lo, hi []byte, fn func(key, value []byte) error) error {
	lower := t.prefixed(lo)
	upper := t.prefixed(hi)
	for _, k := range t.visible() {
		if k < lower || k > upper {
			continue
		}
		key := []byte(k[len(t.def.Prefix):])
		val, err := t.Get(key)
		if err != nil {
			return err
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return nil
}

func (t *memTable) Last() ([]byte, []byte, error) {
	keys := t.visible()
	if len(keys) == 0 {
		return nil, nil, nil
	}
	k := keys[len(keys)-1]
	key := []byte(k[len(t.def.Prefix):])
	val, err := t.Get(key)
	if err != nil {
		return nil, nil, err
	}
	return key, val, nil
}

// Compile-time interface checks shared by both backends.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*BadgerStore)(nil)
)

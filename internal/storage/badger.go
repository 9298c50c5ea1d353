package storage

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore implements Store using Badger.
type BadgerStore struct {
	db     *badger.DB
	writer sync.Mutex
}

// NewBadger opens a Badger database at the given path.
func NewBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger's built-in logging.

	db, err := badger.Open(opts)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "Cannot acquire directory lock") ||
			strings.Contains(errMsg, "resource temporarily unavailable") {
			return nil, fmt.Errorf("database at %s is locked by another process (is another satindexd instance running?): %w", path, err)
		}
		return nil, fmt.Errorf("open database at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// Begin opens a transaction. Write transactions hold the writer lock until
// Commit or Discard, giving single-writer semantics.
func (b *BadgerStore) Begin(update bool) (Tx, error) {
	if update {
		b.writer.Lock()
	}
	return &badgerTx{store: b, txn: b.db.NewTransaction(update), update: update}, nil
}

// Close closes the database.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

type badgerTx struct {
	store  *BadgerStore
	txn    *badger.Txn
	update bool
	done   sync.Once
}

func (t *badgerTx) finish() {
	t.done.Do(func() {
		if t.update {
			t.store.writer.Unlock()
		}
	})
}

func (t *badgerTx) Table(def TableDef) Table {
	return &badgerTable{txn: t.txn, def: def}
}

func (t *badgerTx) Commit() error {
	defer t.finish()
	if err := t.txn.Commit(); err != nil {
		return fmt.Errorf("badger commit: %w", err)
	}
	return nil
}

func (t *badgerTx) Discard() {
	t.txn.Discard()
	t.finish()
}

type badgerTable struct {
	txn *badger.Txn
	def TableDef
}

// prefixed returns key with the table prefix prepended.
func (t *badgerTable) prefixed(key []byte) []byte {
	out := make([]byte, len(t.def.Prefix)+len(key))
	copy(out, t.def.Prefix)
	copy(out[len(t.def.Prefix):], key)
	return out
}

func (t *badgerTable) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(t.prefixed(key))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s get: %w", t.def.Name, err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("%s get: %w", t.def.Name, err)
	}
	return val, nil
}

func (t *badgerTable) Put(key, value []byte) error {
	if err := t.txn.Set(t.prefixed(key), value); err != nil {
		return fmt.Errorf("%s put: %w", t.def.Name, err)
	}
	return nil
}

func (t *badgerTable) Delete(key []byte) error {
	if err := t.txn.Delete(t.prefixed(key)); err != nil {
		return fmt.Errorf("%s delete: %w", t.def.Name, err)
	}
	return nil
}

func (t *badgerTable) Take(key []byte) ([]byte, error) {
	val, err := t.Get(key)
	if err != nil || val == nil {
		return nil, err
	}
	if err := t.Delete(key); err != nil {
		return nil, err
	}
	return val, nil
}

func (t *badgerTable) Ascend(lo, hi []byte, fn func(key, value []byte) error) error {
	prefix := []byte(t.def.Prefix)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	upper := t.prefixed(hi)
	for it.Seek(t.prefixed(lo)); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		if bytes.Compare(key, upper) > 0 {
			break
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("%s scan: %w", t.def.Name, err)
		}
		if err := fn(key[len(prefix):], val); err != nil {
			return err
		}
	}
	return nil
}

func (t *badgerTable) Last() ([]byte, []byte, error) {
	prefix := []byte(t.def.Prefix)

	// Seek to the first key past the table's prefix region; in reverse mode
	// the iterator lands on the highest key at or below the seek key.
	seek := make([]byte, len(prefix))
	copy(seek, prefix)
	seek[len(seek)-1]++

	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	it := t.txn.NewIterator(opts)
	defer it.Close()

	it.Seek(seek)
	if !it.Valid() {
		return nil, nil, nil
	}
	item := it.Item()
	key := item.KeyCopy(nil)
	if !bytes.HasPrefix(key, prefix) {
		return nil, nil, nil
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%s last: %w", t.def.Name, err)
	}
	return key[len(prefix):], val, nil
}

// Package storage provides the transactional table store backing the index.
package storage

// TableDef names a table and fixes the key prefix that isolates it inside
// the underlying key-value store.
type TableDef struct {
	Prefix string
	Name   string
}

// The index's tables. Keys under integer-keyed tables are big-endian so
// lexicographic order matches numeric order; outpoint and satpoint keys use
// their fixed-width wire encodings.
var (
	HeightToHash          = TableDef{"h/", "height_to_hash"}
	TxStartTimes          = TableDef{"t/", "tx_start_times"}
	OutpointToRanges      = TableDef{"o/", "outpoint_to_ranges"}
	SatToSatpoint         = TableDef{"s/", "sat_to_satpoint"}
	SatToInscription      = TableDef{"n/", "sat_to_inscription"}
	InscriptionToSatpoint = TableDef{"i/", "inscription_to_satpoint"}
	SatpointToInscription = TableDef{"p/", "satpoint_to_inscription"}
	Statistics            = TableDef{"c/", "statistics"}
)

// Store is a transactional store of ordered binary tables.
// Write transactions are serialized: a second Begin(true) blocks until the
// first commits or discards.
type Store interface {
	// Begin opens a transaction. Pass update=true for a write transaction.
	Begin(update bool) (Tx, error)
	Close() error
}

// Tx is a single transaction. Readers within a write transaction observe
// their own writes. Commit or Discard must be called exactly once.
type Tx interface {
	// Table returns a view of the named table. Calling it twice for the
	// same table yields equivalent views.
	Table(def TableDef) Table
	Commit() error
	Discard()
}

// Table is a view of one table inside a transaction.
type Table interface {
	// Get returns the value for key, or (nil, nil) when the key is absent.
	// Absence is never an error.
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Take deletes key and returns its prior value, or (nil, nil) when the
	// key was absent.
	Take(key []byte) ([]byte, error)
	// Ascend calls fn for every key in [lo, hi], in ascending key order.
	// A non-nil error from fn stops iteration and is returned.
	Ascend(lo, hi []byte, fn func(key, value []byte) error) error
	// Last returns the highest key in the table and its value, or
	// (nil, nil, nil) when the table is empty.
	Last() (key, value []byte, err error)
}

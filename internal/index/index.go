package index

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/satlabs/satindex/internal/storage"
)

// Client is the chain source the index consumes. Absence (past the tip)
// must be distinguishable from transport failure: GetBlockHash returns
// (nil, nil) when no block exists at the height.
type Client interface {
	GetBlockCount() (uint64, error)
	GetBlockHash(height uint64) (*chainhash.Hash, error)
	GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error)
	GetBlockHeader(hash *chainhash.Hash) (*wire.BlockHeader, error)
}

// Options configures an Index.
type Options struct {
	// IndexSats enables per-satoshi range tracking in addition to
	// inscription tracking.
	IndexSats bool

	// Mainnet marks the source chain as mainnet. Off mainnet, full
	// transactions are always fetched; on mainnet with sat indexing
	// disabled, only block headers are fetched, so no transactions and no
	// inscriptions are indexed.
	Mainnet bool

	// HeightLimit stops indexing before this height. Zero means no limit.
	HeightLimit uint64
}

// Index owns the store and chain source and runs update passes against
// them. A single consumer goroutine holds the write transaction; the block
// fetcher never touches the store.
type Index struct {
	store   storage.Store
	client  Client
	opts    Options
	retry   bool
	reorged atomic.Bool
}

// Open creates an Index over an opened store and chain source.
func Open(store storage.Store, client Client, opts Options) *Index {
	return &Index{
		store:  store,
		client: client,
		opts:   opts,
		retry:  true,
	}
}

// Reorged reports whether a reorg was detected by any update pass.
func (i *Index) Reorged() bool {
	return i.reorged.Load()
}

// Height returns the next height to index: one past the highest indexed
// block, or zero for a fresh store.
func (i *Index) Height() (uint64, error) {
	tx, err := i.store.Begin(false)
	if err != nil {
		return 0, err
	}
	defer tx.Discard()
	return nextHeight(tx)
}

// Update runs one indexing pass: it resumes from the stored height and
// indexes until the source runs out of blocks, the height limit is
// reached, an interrupt is requested, or an error occurs.
func (i *Index) Update() error {
	wtx, err := i.store.Begin(true)
	if err != nil {
		return err
	}

	height, err := nextHeight(wtx)
	if err != nil {
		wtx.Discard()
		return err
	}
	if err := writeStartTime(wtx, height); err != nil {
		wtx.Discard()
		return err
	}

	u := &Updater{
		cache:     make(map[[OutpointSize]byte][]byte),
		height:    height,
		indexSats: i.opts.IndexSats,
	}
	return u.run(i, wtx)
}

// nextHeight reads the resume height from the height table.
func nextHeight(tx storage.Tx) (uint64, error) {
	key, _, err := tx.Table(storage.HeightToHash).Last()
	if err != nil {
		return 0, err
	}
	if key == nil {
		return 0, nil
	}
	return binary.BigEndian.Uint64(key) + 1, nil
}

// writeStartTime records the wallclock at the start of a write batch.
// The value is a 16-byte big-endian epoch-millisecond count.
func writeStartTime(tx storage.Tx, height uint64) error {
	value := make([]byte, 16)
	binary.BigEndian.PutUint64(value[8:], uint64(time.Now().UnixMilli()))
	return tx.Table(storage.TxStartTimes).Put(u64Key(height), value)
}

// interrupts counts interrupt requests process-wide so arbitrary host
// signal handlers can stop the indexer without any plumbing.
var interrupts atomic.Int64

// Interrupt requests a clean stop: the consumer finishes the current
// block, commits pending work, and returns.
func Interrupt() {
	interrupts.Add(1)
}

// Interrupted reports whether an interrupt has been requested.
func Interrupted() bool {
	return interrupts.Load() > 0
}

package index

import (
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/satlabs/satindex/internal/storage"
)

// zeroHash is the all-zero previous-block hash of a genesis block.
var zeroHash chainhash.Hash

// fakeClient serves a scripted chain: blocks[h] is the block at height h.
type fakeClient struct {
	blocks []*wire.MsgBlock
	errs   map[uint64]error // transport failure per height
}

func (f *fakeClient) GetBlockCount() (uint64, error) {
	if len(f.blocks) == 0 {
		return 0, nil
	}
	return uint64(len(f.blocks) - 1), nil
}

func (f *fakeClient) GetBlockHash(height uint64) (*chainhash.Hash, error) {
	if err, ok := f.errs[height]; ok {
		return nil, err
	}
	if height >= uint64(len(f.blocks)) {
		return nil, nil
	}
	hash := f.blocks[height].BlockHash()
	return &hash, nil
}

func (f *fakeClient) GetBlock(hash *chainhash.Hash) (*wire.MsgBlock, error) {
	for _, b := range f.blocks {
		if b.BlockHash() == *hash {
			return b, nil
		}
	}
	return nil, errors.New("block not found")
}

func (f *fakeClient) GetBlockHeader(hash *chainhash.Hash) (*wire.BlockHeader, error) {
	for _, b := range f.blocks {
		if b.BlockHash() == *hash {
			header := b.Header
			return &header, nil
		}
	}
	return nil, errors.New("header not found")
}

// coinbaseTx builds a coinbase paying value to a single output. The height
// in the signature script keeps txids unique across blocks.
func coinbaseTx(height uint64, value int64) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: ^uint32(0)},
		SignatureScript:  []byte{byte(height), byte(height >> 8), byte(height >> 16)},
	})
	tx.AddTxOut(&wire.TxOut{Value: value, PkScript: []byte{0x51}})
	return tx
}

// spendTx builds a transaction spending prev into one output per value.
func spendTx(prev wire.OutPoint, values ...int64) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: prev})
	for _, v := range values {
		tx.AddTxOut(&wire.TxOut{Value: v, PkScript: []byte{0x51}})
	}
	return tx
}

// buildBlock builds a block on prev containing the given transactions,
// coinbase first.
func buildBlock(prev chainhash.Hash, txs ...*wire.MsgTx) *wire.MsgBlock {
	return &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:    1,
			PrevBlock:  prev,
			MerkleRoot: txs[0].TxHash(),
			Timestamp:  time.Unix(1231006505, 0),
			Bits:       0x1d00ffff,
		},
		Transactions: txs,
	}
}

// testIndex opens an Index over a fresh in-memory store with fetch retries
// disabled.
func testIndex(t *testing.T, client Client, indexSats bool) (*Index, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemory()
	idx := Open(store, client, Options{IndexSats: indexSats, Mainnet: true})
	idx.retry = false
	return idx, store
}

// readTable fetches one value outside any write transaction.
func readTable(t *testing.T, store storage.Store, def storage.TableDef, key []byte) []byte {
	t.Helper()
	tx, err := store.Begin(false)
	if err != nil {
		t.Fatalf("begin read tx: %v", err)
	}
	defer tx.Discard()
	val, err := tx.Table(def).Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	return val
}

// outpointRanges decodes the stored range list of an outpoint, or nil when
// the outpoint has no row.
func outpointRanges(t *testing.T, store storage.Store, op wire.OutPoint) [][2]uint64 {
	t.Helper()
	key := EncodeOutpoint(op)
	val := readTable(t, store, storage.OutpointToRanges, key[:])
	if val == nil {
		return nil
	}
	return decodeRangeList(t, val)
}

func decodeRangeList(t *testing.T, list []byte) [][2]uint64 {
	t.Helper()
	if len(list)%RangeSize != 0 {
		t.Fatalf("range list length %d not a multiple of %d", len(list), RangeSize)
	}
	var out [][2]uint64
	for off := 0; off < len(list); off += RangeSize {
		start, end, err := DecodeRange(list[off : off+RangeSize])
		if err != nil {
			t.Fatalf("decode range: %v", err)
		}
		out = append(out, [2]uint64{start, end})
	}
	return out
}

func TestOpenDefaults(t *testing.T) {
	idx := Open(storage.NewMemory(), &fakeClient{}, Options{})
	if !idx.retry {
		t.Error("retry should default to enabled")
	}
	if idx.Reorged() {
		t.Error("fresh index should not report a reorg")
	}
}

func TestHeightEmptyStore(t *testing.T) {
	idx, _ := testIndex(t, &fakeClient{}, false)
	height, err := idx.Height()
	if err != nil {
		t.Fatalf("Height() error: %v", err)
	}
	if height != 0 {
		t.Errorf("Height() = %d, want 0 for empty store", height)
	}
}

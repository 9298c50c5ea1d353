package index

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/satlabs/satindex/internal/inscription"
	"github.com/satlabs/satindex/internal/log"
	"github.com/satlabs/satindex/internal/storage"
)

// commitInterval is the number of indexed blocks per write transaction.
const commitInterval = 5000

// progressInterval rate-limits progress reporting.
const progressInterval = 10 * time.Second

// Updater runs a single indexing pass. The cache holds the sat ranges of
// outpoints created since the last flush: it is authoritative for those,
// with the outpoint table as fallback. Spending an outpoint created in the
// same batch never touches the store.
type Updater struct {
	cache     map[[OutpointSize]byte][]byte
	height    uint64
	indexSats bool

	satRangesSinceFlush       uint64
	outputsCached             uint64
	outputsInsertedSinceFlush uint64
	outputsTraversed          uint64
}

// satRange is a half-open run of consecutive sats.
type satRange struct {
	start, end uint64
}

// rangeDeque is a double-ended queue of sat ranges. The front index keeps
// the split path's push-front cheap: it always follows a pop.
type rangeDeque struct {
	ranges []satRange
	front  int
}

func (d *rangeDeque) Len() int {
	return len(d.ranges) - d.front
}

func (d *rangeDeque) Front() satRange {
	return d.ranges[d.front]
}

func (d *rangeDeque) PushBack(r satRange) {
	d.ranges = append(d.ranges, r)
}

func (d *rangeDeque) PushFront(r satRange) {
	if d.front > 0 {
		d.front--
		d.ranges[d.front] = r
		return
	}
	d.ranges = append([]satRange{r}, d.ranges...)
}

func (d *rangeDeque) PopFront() satRange {
	r := d.ranges[d.front]
	d.front++
	return r
}

// run consumes fetched blocks until the chain ends, the interrupt counter
// is raised, or an error occurs. It owns the write transaction throughout.
func (u *Updater) run(i *Index, wtx storage.Tx) error {
	chainTip, err := i.client.GetBlockCount()
	if err != nil {
		wtx.Discard()
		return fmt.Errorf("get block count: %w", err)
	}

	withTransactions := u.indexSats || !i.opts.Mainnet
	blocks, done := fetchBlocks(i.client, u.height, i.opts.HeightLimit, withTransactions, i.retry)
	defer close(done)

	progressEnabled := os.Getenv("ORD_DISABLE_PROGRESS_BAR") == ""
	lastProgress := time.Now()

	uncommitted := 0
	for block := range blocks {
		if err := u.indexBlock(i, wtx, block); err != nil {
			wtx.Discard()
			return err
		}

		if progressEnabled && time.Since(lastProgress) >= progressInterval {
			if u.height > chainTip {
				if tip, err := i.client.GetBlockCount(); err == nil {
					chainTip = tip
				}
			}
			log.Index.Info().
				Uint64("height", u.height).
				Uint64("tip", chainTip).
				Msg("Indexing blocks")
			lastProgress = time.Now()
		}

		uncommitted++
		if uncommitted == commitInterval {
			if err := u.commit(wtx); err != nil {
				return err
			}
			uncommitted = 0

			wtx, err = i.store.Begin(true)
			if err != nil {
				return err
			}
			height, err := nextHeight(wtx)
			if err != nil {
				wtx.Discard()
				return err
			}
			if height != u.height {
				// Another update ran between committing and beginning the
				// new write transaction.
				wtx.Discard()
				return nil
			}
			if err := writeStartTime(wtx, u.height); err != nil {
				wtx.Discard()
				return err
			}
		}

		if Interrupted() {
			break
		}
	}

	if uncommitted > 0 {
		return u.commit(wtx)
	}
	wtx.Discard()
	return nil
}

// indexBlock applies one block inside the open write transaction.
func (u *Updater) indexBlock(i *Index, wtx storage.Tx, block BlockData) error {
	start := time.Now()
	var satRangesWritten, outputsInBlock uint64

	heightToHash := wtx.Table(storage.HeightToHash)

	if u.height > 0 {
		prev, err := heightToHash.Get(u64Key(u.height - 1))
		if err != nil {
			return err
		}
		if prev == nil {
			return fmt.Errorf("missing hash for block %d", u.height-1)
		}
		if !bytes.Equal(prev, block.Header.PrevBlock[:]) {
			i.reorged.Store(true)
			return fmt.Errorf("%w at or before height %d", ErrReorgDetected, u.height-1)
		}
	}

	inscriptionToSatpoint := wtx.Table(storage.InscriptionToSatpoint)
	satpointToInscription := wtx.Table(storage.SatpointToInscription)

	if u.indexSats {
		satToSatpoint := wtx.Table(storage.SatToSatpoint)
		satToInscription := wtx.Table(storage.SatToInscription)
		outpointToRanges := wtx.Table(storage.OutpointToRanges)

		var coinbaseInputs rangeDeque

		h := Height(u.height)
		if subsidy := h.Subsidy(); subsidy > 0 {
			first := uint64(h.StartingSat())
			coinbaseInputs.PushFront(satRange{first, first + subsidy})
			u.satRangesSinceFlush++
		}

		for txOffset := 1; txOffset < len(block.TxData); txOffset++ {
			entry := block.TxData[txOffset]

			var inputRanges rangeDeque
			for _, in := range entry.Tx.TxIn {
				key := EncodeOutpoint(in.PreviousOutPoint)

				ranges, cached := u.cache[key]
				if cached {
					delete(u.cache, key)
					u.outputsCached++
				} else {
					var err error
					ranges, err = outpointToRanges.Take(key[:])
					if err != nil {
						return err
					}
					if ranges == nil {
						return fmt.Errorf("%w: %s", ErrMissingOutpoint, in.PreviousOutPoint)
					}
				}

				if len(ranges)%RangeSize != 0 {
					return fmt.Errorf("malformed range list for %s: %d bytes", in.PreviousOutPoint, len(ranges))
				}
				for off := 0; off < len(ranges); off += RangeSize {
					s, e, err := DecodeRange(ranges[off : off+RangeSize])
					if err != nil {
						return err
					}
					inputRanges.PushBack(satRange{s, e})
				}
			}

			if err := u.indexTransactionSats(entry.Tx, entry.TxID,
				satToSatpoint, satToInscription, inscriptionToSatpoint, satpointToInscription,
				&inputRanges, &satRangesWritten, &outputsInBlock); err != nil {
				return err
			}

			// Whatever the transaction did not assign is its fee; the
			// coinbase sweeps it.
			for inputRanges.Len() > 0 {
				coinbaseInputs.PushBack(inputRanges.PopFront())
			}
		}

		if len(block.TxData) > 0 {
			cb := block.TxData[0]
			if err := u.indexTransactionSats(cb.Tx, cb.TxID,
				satToSatpoint, satToInscription, inscriptionToSatpoint, satpointToInscription,
				&coinbaseInputs, &satRangesWritten, &outputsInBlock); err != nil {
				return err
			}
		}
	} else {
		for _, entry := range block.TxData {
			if _, err := u.indexTransactionInscriptions(entry.Tx, entry.TxID,
				inscriptionToSatpoint, satpointToInscription); err != nil {
				return err
			}
		}
	}

	hash := block.Header.BlockHash()
	if err := heightToHash.Put(u64Key(u.height), hash[:]); err != nil {
		return err
	}

	u.height++
	u.outputsTraversed += outputsInBlock

	log.Index.Debug().
		Uint64("height", u.height-1).
		Int("txs", len(block.TxData)).
		Uint64("sat_ranges", satRangesWritten).
		Uint64("outputs", outputsInBlock).
		Dur("elapsed", time.Since(start)).
		Msg("Indexed block")

	return nil
}

// indexTransactionSats distributes the transaction's input ranges across
// its outputs in order, splitting the last consumed range when an output
// is only partially covered. Unassigned ranges remain in inputRanges.
func (u *Updater) indexTransactionSats(
	tx *wire.MsgTx,
	txid chainhash.Hash,
	satToSatpoint, satToInscription, inscriptionToSatpoint, satpointToInscription storage.Table,
	inputRanges *rangeDeque,
	satRangesWritten, outputsTraversed *uint64,
) error {
	inscribed, err := u.indexTransactionInscriptions(tx, txid, inscriptionToSatpoint, satpointToInscription)
	if err != nil {
		return err
	}
	if inscribed && inputRanges.Len() > 0 {
		// The inscription is made on the first sat of the first input
		// range, recorded before output assignment consumes it.
		if err := satToInscription.Put(u64Key(inputRanges.Front().start), txid[:]); err != nil {
			return err
		}
	}

	for vout, out := range tx.TxOut {
		outpoint := wire.OutPoint{Hash: txid, Index: uint32(vout)}
		value := uint64(out.Value)
		ranges := make([]byte, 0, RangeSize)

		remaining := value
		for remaining > 0 {
			if inputRanges.Len() == 0 {
				return fmt.Errorf("%w: output %s", ErrInsufficientInputs, outpoint.String())
			}
			r := inputRanges.PopFront()

			if !Sat(r.start).IsCommon() {
				sp := EncodeSatPoint(SatPoint{OutPoint: outpoint, Offset: value - remaining})
				if err := satToSatpoint.Put(u64Key(r.start), sp[:]); err != nil {
					return err
				}
			}

			assigned := r
			if r.end-r.start > remaining {
				u.satRangesSinceFlush++
				middle := r.start + remaining
				inputRanges.PushFront(satRange{middle, r.end})
				assigned = satRange{r.start, middle}
			}

			ranges = AppendRange(ranges, assigned.start, assigned.end)
			remaining -= assigned.end - assigned.start
			*satRangesWritten++
		}

		*outputsTraversed++
		u.cache[EncodeOutpoint(outpoint)] = ranges
		u.outputsInsertedSinceFlush++
	}

	return nil
}

// indexTransactionInscriptions records a new inscription made by the
// transaction, if any, and migrates every inscription resting in a spent
// output onto the first sat of the transaction's first output.
func (u *Updater) indexTransactionInscriptions(
	tx *wire.MsgTx,
	txid chainhash.Hash,
	inscriptionToSatpoint, satpointToInscription storage.Table,
) (bool, error) {
	inscribed := inscription.FromTransaction(tx) != nil

	destination := EncodeSatPoint(SatPoint{
		OutPoint: wire.OutPoint{Hash: txid, Index: 0},
		Offset:   0,
	})

	if inscribed {
		if err := inscriptionToSatpoint.Put(txid[:], destination[:]); err != nil {
			return false, err
		}
		if err := satpointToInscription.Put(destination[:], txid[:]); err != nil {
			return false, err
		}
	}

	for _, in := range tx.TxIn {
		lo := EncodeSatPoint(SatPoint{OutPoint: in.PreviousOutPoint, Offset: 0})
		hi := EncodeSatPoint(SatPoint{OutPoint: in.PreviousOutPoint, Offset: math.MaxUint64})

		type hit struct {
			satpoint []byte
			id       []byte
		}
		var hits []hit
		err := satpointToInscription.Ascend(lo[:], hi[:], func(key, value []byte) error {
			hits = append(hits, hit{
				satpoint: append([]byte(nil), key...),
				id:       append([]byte(nil), value...),
			})
			return nil
		})
		if err != nil {
			return false, err
		}

		for _, h := range hits {
			if err := satpointToInscription.Delete(h.satpoint); err != nil {
				return false, err
			}
			if err := satpointToInscription.Put(destination[:], h.id); err != nil {
				return false, err
			}
			if err := inscriptionToSatpoint.Put(h.id, destination[:]); err != nil {
				return false, err
			}
		}
	}

	return inscribed, nil
}

// commit flushes the write cache into the outpoint table, accumulates
// statistics, and commits the write transaction.
func (u *Updater) commit(wtx storage.Tx) error {
	log.Index.Info().
		Uint64("height", u.height).
		Uint64("outputs_traversed", u.outputsTraversed).
		Int("cached_entries", len(u.cache)).
		Uint64("cache_hits", u.outputsCached).
		Msg("Committing")

	if u.indexSats {
		outpointToRanges := wtx.Table(storage.OutpointToRanges)
		for key, ranges := range u.cache {
			if err := outpointToRanges.Put(key[:], ranges); err != nil {
				wtx.Discard()
				return err
			}
		}
		u.cache = make(map[[OutpointSize]byte][]byte)
		u.outputsInsertedSinceFlush = 0
	}

	if err := incrementStatistic(wtx, StatisticOutputsTraversed, u.outputsTraversed); err != nil {
		wtx.Discard()
		return err
	}
	u.outputsTraversed = 0
	if err := incrementStatistic(wtx, StatisticSatRanges, u.satRangesSinceFlush); err != nil {
		wtx.Discard()
		return err
	}
	u.satRangesSinceFlush = 0
	if err := incrementStatistic(wtx, StatisticCommits, 1); err != nil {
		wtx.Discard()
		return err
	}

	return wtx.Commit()
}

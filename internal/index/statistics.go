package index

import (
	"encoding/binary"

	"github.com/satlabs/satindex/internal/storage"
)

// Statistic tags the accumulating counters in the statistics table.
type Statistic uint32

const (
	StatisticCommits Statistic = iota
	StatisticOutputsTraversed
	StatisticSatRanges
)

func (s Statistic) key() []byte {
	key := make([]byte, 4)
	binary.BigEndian.PutUint32(key, uint32(s))
	return key
}

// incrementStatistic adds delta to the named counter within the
// transaction.
func incrementStatistic(tx storage.Tx, s Statistic, delta uint64) error {
	table := tx.Table(storage.Statistics)
	var current uint64
	val, err := table.Get(s.key())
	if err != nil {
		return err
	}
	if val != nil {
		current = binary.BigEndian.Uint64(val)
	}
	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, current+delta)
	return table.Put(s.key(), next)
}

// readStatistic returns the counter's current value within the
// transaction, zero when unset.
func readStatistic(tx storage.Tx, s Statistic) (uint64, error) {
	val, err := tx.Table(storage.Statistics).Get(s.key())
	if err != nil || val == nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(val), nil
}

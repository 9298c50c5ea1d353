package index

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Fixed widths of the binary encodings.
const (
	RangeSize    = 11
	OutpointSize = chainhash.HashSize + 4
	SatpointSize = OutpointSize + 8
)

const satMask = 1<<51 - 1

// AppendRange appends the 11-byte record for the half-open range
// [start, end): the low 11 bytes, little-endian, of
// start | (end-start) << 51.
func AppendRange(b []byte, start, end uint64) []byte {
	delta := end - start
	lo := start | delta<<51
	hi := delta >> 13

	var rec [RangeSize]byte
	binary.LittleEndian.PutUint64(rec[0:8], lo)
	rec[8] = byte(hi)
	rec[9] = byte(hi >> 8)
	rec[10] = byte(hi >> 16)
	return append(b, rec[:]...)
}

// DecodeRange unpacks an 11-byte record into its half-open range.
func DecodeRange(rec []byte) (start, end uint64, err error) {
	if len(rec) != RangeSize {
		return 0, 0, fmt.Errorf("sat range record must be %d bytes, got %d", RangeSize, len(rec))
	}
	lo := binary.LittleEndian.Uint64(rec[0:8])
	hi := uint64(rec[8]) | uint64(rec[9])<<8 | uint64(rec[10])<<16

	start = lo & satMask
	delta := (lo>>51 | hi<<13) & satMask
	return start, start + delta, nil
}

// EncodeOutpoint returns the 36-byte key txid || vout_le.
func EncodeOutpoint(op wire.OutPoint) [OutpointSize]byte {
	var key [OutpointSize]byte
	copy(key[:chainhash.HashSize], op.Hash[:])
	binary.LittleEndian.PutUint32(key[chainhash.HashSize:], op.Index)
	return key
}

// DecodeOutpoint unpacks a 36-byte outpoint key.
func DecodeOutpoint(key []byte) (wire.OutPoint, error) {
	if len(key) != OutpointSize {
		return wire.OutPoint{}, fmt.Errorf("outpoint key must be %d bytes, got %d", OutpointSize, len(key))
	}
	var op wire.OutPoint
	copy(op.Hash[:], key[:chainhash.HashSize])
	op.Index = binary.LittleEndian.Uint32(key[chainhash.HashSize:])
	return op, nil
}

// SatPoint identifies a sat within an output by the byte offset of its
// range.
type SatPoint struct {
	OutPoint wire.OutPoint
	Offset   uint64
}

// String returns "txid:vout:offset".
func (sp SatPoint) String() string {
	return fmt.Sprintf("%s:%d", sp.OutPoint.String(), sp.Offset)
}

// EncodeSatPoint returns the 44-byte key outpoint || offset_le. Keys for
// the same outpoint share a 36-byte prefix, which is what the satpoint
// table's prefix-range scans rely on.
func EncodeSatPoint(sp SatPoint) [SatpointSize]byte {
	var key [SatpointSize]byte
	op := EncodeOutpoint(sp.OutPoint)
	copy(key[:OutpointSize], op[:])
	binary.LittleEndian.PutUint64(key[OutpointSize:], sp.Offset)
	return key
}

// DecodeSatPoint unpacks a 44-byte satpoint key.
func DecodeSatPoint(key []byte) (SatPoint, error) {
	if len(key) != SatpointSize {
		return SatPoint{}, fmt.Errorf("satpoint key must be %d bytes, got %d", SatpointSize, len(key))
	}
	op, err := DecodeOutpoint(key[:OutpointSize])
	if err != nil {
		return SatPoint{}, err
	}
	return SatPoint{
		OutPoint: op,
		Offset:   binary.LittleEndian.Uint64(key[OutpointSize:]),
	}, nil
}

// u64Key encodes an integer table key big-endian so lexicographic order
// matches numeric order.
func u64Key(n uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, n)
	return key
}

package storage

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func u64be(n uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, n)
	return key
}

func beginWrite(t *testing.T, s Store) Tx {
	t.Helper()
	tx, err := s.Begin(true)
	if err != nil {
		t.Fatalf("begin write: %v", err)
	}
	return tx
}

func beginRead(t *testing.T, s Store) Tx {
	t.Helper()
	tx, err := s.Begin(false)
	if err != nil {
		t.Fatalf("begin read: %v", err)
	}
	return tx
}

func TestMemoryPutGet(t *testing.T) {
	s := NewMemory()

	tx := beginWrite(t, s)
	table := tx.Table(HeightToHash)
	if err := table.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx = beginRead(t, s)
	defer tx.Discard()
	got, err := tx.Table(HeightToHash).Get([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("v")) {
		t.Errorf("Get = %q, want %q", got, "v")
	}
}

func TestMemoryGetAbsent(t *testing.T) {
	s := NewMemory()
	tx := beginRead(t, s)
	defer tx.Discard()

	got, err := tx.Table(HeightToHash).Get([]byte("missing"))
	if err != nil {
		t.Fatalf("absence must not be an error, got %v", err)
	}
	if got != nil {
		t.Errorf("Get absent = %q, want nil", got)
	}
}

func TestMemoryReadYourWrites(t *testing.T) {
	s := NewMemory()
	tx := beginWrite(t, s)
	defer tx.Discard()

	table := tx.Table(OutpointToRanges)
	if err := table.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	got, err := table.Get([]byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("1")) {
		t.Error("uncommitted write not visible within its own transaction")
	}

	// Delete inside the same transaction hides the key again.
	if err := table.Delete([]byte("a")); err != nil {
		t.Fatal(err)
	}
	if got, _ := table.Get([]byte("a")); got != nil {
		t.Error("deleted key still visible")
	}
}

func TestMemoryDiscardDropsWrites(t *testing.T) {
	s := NewMemory()
	tx := beginWrite(t, s)
	tx.Table(HeightToHash).Put([]byte("k"), []byte("v"))
	tx.Discard()

	tx = beginRead(t, s)
	defer tx.Discard()
	if got, _ := tx.Table(HeightToHash).Get([]byte("k")); got != nil {
		t.Error("discarded write persisted")
	}
}

func TestMemoryTake(t *testing.T) {
	s := NewMemory()
	tx := beginWrite(t, s)
	table := tx.Table(OutpointToRanges)
	table.Put([]byte("a"), []byte("1"))
	tx.Commit()

	tx = beginWrite(t, s)
	defer tx.Discard()
	table = tx.Table(OutpointToRanges)

	val, err := table.Take([]byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(val, []byte("1")) {
		t.Errorf("Take = %q, want %q", val, "1")
	}
	if got, _ := table.Get([]byte("a")); got != nil {
		t.Error("key still present after Take")
	}

	// Taking an absent key is not an error.
	val, err = table.Take([]byte("b"))
	if err != nil || val != nil {
		t.Errorf("Take absent = (%q, %v), want (nil, nil)", val, err)
	}
}

func TestMemoryLast(t *testing.T) {
	s := NewMemory()

	tx := beginRead(t, s)
	k, _, err := tx.Table(HeightToHash).Last()
	tx.Discard()
	if err != nil || k != nil {
		t.Errorf("Last on empty table = (%q, %v), want (nil, nil)", k, err)
	}

	wtx := beginWrite(t, s)
	table := wtx.Table(HeightToHash)
	for _, h := range []uint64{3, 0, 7, 5} {
		table.Put(u64be(h), []byte{byte(h)})
	}
	wtx.Commit()

	tx = beginRead(t, s)
	defer tx.Discard()
	k, v, err := tx.Table(HeightToHash).Last()
	if err != nil {
		t.Fatal(err)
	}
	if binary.BigEndian.Uint64(k) != 7 || v[0] != 7 {
		t.Errorf("Last = height %d, want 7", binary.BigEndian.Uint64(k))
	}
}

func TestMemoryLastSeesPendingWrites(t *testing.T) {
	s := NewMemory()
	tx := beginWrite(t, s)
	defer tx.Discard()

	table := tx.Table(HeightToHash)
	table.Put(u64be(2), []byte("b"))
	table.Put(u64be(9), []byte("z"))

	k, _, err := table.Last()
	if err != nil {
		t.Fatal(err)
	}
	if binary.BigEndian.Uint64(k) != 9 {
		t.Errorf("Last = %d, want uncommitted 9", binary.BigEndian.Uint64(k))
	}
}

func TestMemoryAscendBounds(t *testing.T) {
	s := NewMemory()
	wtx := beginWrite(t, s)
	table := wtx.Table(SatpointToInscription)
	for _, k := range []string{"a1", "a2", "a3", "b1"} {
		table.Put([]byte(k), []byte(k))
	}
	wtx.Commit()

	tx := beginRead(t, s)
	defer tx.Discard()

	var seen []string
	err := tx.Table(SatpointToInscription).Ascend([]byte("a1"), []byte("a2"), func(k, v []byte) error {
		seen = append(seen, string(k))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != "a1" || seen[1] != "a2" {
		t.Errorf("Ascend[a1, a2] = %v, want [a1 a2] (inclusive bounds, in order)", seen)
	}
}

func TestTableIsolation(t *testing.T) {
	s := NewMemory()
	tx := beginWrite(t, s)
	tx.Table(HeightToHash).Put([]byte("k"), []byte("heights"))
	tx.Table(Statistics).Put([]byte("k"), []byte("stats"))
	tx.Commit()

	rtx := beginRead(t, s)
	defer rtx.Discard()
	a, _ := rtx.Table(HeightToHash).Get([]byte("k"))
	b, _ := rtx.Table(Statistics).Get([]byte("k"))
	if !bytes.Equal(a, []byte("heights")) || !bytes.Equal(b, []byte("stats")) {
		t.Errorf("tables share a keyspace: %q / %q", a, b)
	}
}

func TestBadgerStore(t *testing.T) {
	s, err := NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	defer s.Close()

	wtx := beginWrite(t, s)
	table := wtx.Table(HeightToHash)
	for _, h := range []uint64{1, 4, 2} {
		if err := table.Put(u64be(h), []byte{byte(h)}); err != nil {
			t.Fatal(err)
		}
	}

	// Read-your-writes before commit, including Last.
	if got, _ := table.Get(u64be(4)); got == nil {
		t.Error("pending write not visible")
	}
	k, _, err := table.Last()
	if err != nil {
		t.Fatal(err)
	}
	if binary.BigEndian.Uint64(k) != 4 {
		t.Errorf("Last = %d, want 4", binary.BigEndian.Uint64(k))
	}
	if err := wtx.Commit(); err != nil {
		t.Fatal(err)
	}

	wtx = beginWrite(t, s)
	defer wtx.Discard()
	table = wtx.Table(HeightToHash)

	val, err := table.Take(u64be(2))
	if err != nil || !bytes.Equal(val, []byte{2}) {
		t.Fatalf("Take = (%v, %v), want ([2], nil)", val, err)
	}
	if got, _ := table.Get(u64be(2)); got != nil {
		t.Error("taken key still present")
	}

	var seen []uint64
	err = table.Ascend(u64be(0), u64be(10), func(k, v []byte) error {
		seen = append(seen, binary.BigEndian.Uint64(k))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 4 {
		t.Errorf("Ascend = %v, want [1 4]", seen)
	}
}

// Package ledger implements the flat, address-sorted balance store:
// a single file of fixed-size entries, opened read-only for queries
// and replaced wholesale (via a sorted delta merge and atomic rename)
// on each committed block.
package ledger

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/haikuchain/haikunode/internal/verrors"
)

// AddrLen is the full address width: a 2144-byte WOTS public-key
// vector, two 32-byte salts, and a 12-byte tag overlay at offset 2196.
const AddrLen = 2208

// TagOffset and TagLen locate the tag overlay within an address.
const (
	TagOffset = 2196
	TagLen    = 12
)

// TagSentinel marks an address as untagged when it is the first byte
// of the tag field.
const TagSentinel = 0x42

// EntrySize is one ledger record: address plus an 8-byte little-endian
// balance.
const EntrySize = AddrLen + 8

// Entry is one decoded ledger record.
type Entry struct {
	Addr    [AddrLen]byte
	Balance uint64
}

// HasTag reports whether addr carries a bound tag (its sentinel byte
// is not 0x42).
func HasTag(addr [AddrLen]byte) bool {
	return addr[TagOffset] != TagSentinel
}

// Tag extracts the 12-byte tag field from addr.
func Tag(addr [AddrLen]byte) [TagLen]byte {
	var t [TagLen]byte
	copy(t[:], addr[TagOffset:TagOffset+TagLen])
	return t
}

func decodeEntry(b []byte) Entry {
	var e Entry
	copy(e.Addr[:], b[:AddrLen])
	e.Balance = binary.LittleEndian.Uint64(b[AddrLen : AddrLen+8])
	return e
}

func encodeEntry(e Entry, out []byte) {
	copy(out[:AddrLen], e.Addr[:])
	binary.LittleEndian.PutUint64(out[AddrLen:AddrLen+8], e.Balance)
}

// compareAddr orders two addresses byte-lexicographically, the order
// the ledger file and delta files are sorted in.
func compareAddr(a, b [AddrLen]byte) int {
	for i := 0; i < AddrLen; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Store is a read-only view over a ledger file, opened once and kept
// for the lifetime of a validation pass. Concurrent readers are safe;
// ApplyDeltas replaces the underlying file out from under them via an
// atomic rename, so callers must re-Open after a commit.
type Store struct {
	path    string
	entries []Entry // held fully in memory; real deployments mmap this
}

// Open reads path fully into memory, validating the file length is a
// whole multiple of EntrySize.
func Open(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, verrors.Faultf("ledger: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, verrors.Faultf("ledger: stat %s: %w", path, err)
	}
	if info.Size()%EntrySize != 0 {
		return nil, verrors.Faultf("ledger: %s size %d is not a multiple of entry size %d", path, info.Size(), EntrySize)
	}

	n := int(info.Size() / EntrySize)
	entries := make([]Entry, n)
	buf := make([]byte, EntrySize)
	r := bufio.NewReader(f)
	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, verrors.Faultf("ledger: read entry %d of %s: %w", i, path, err)
		}
		entries[i] = decodeEntry(buf)
	}

	return &Store{path: path, entries: entries}, nil
}

// Len returns the number of ledger entries.
func (s *Store) Len() int { return len(s.entries) }

// At returns the entry at position i, for full-scan callers like the
// tag index rebuild.
func (s *Store) At(i int) Entry { return s.entries[i] }

// Find binary-searches for addr, returning the entry and its position,
// or ok=false if the address has no ledger record.
func (s *Store) Find(addr [AddrLen]byte) (entry Entry, position int, ok bool) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return compareAddr(s.entries[i].Addr, addr) >= 0
	})
	if i < len(s.entries) && compareAddr(s.entries[i].Addr, addr) == 0 {
		return s.entries[i], i, true
	}
	return Entry{}, -1, false
}

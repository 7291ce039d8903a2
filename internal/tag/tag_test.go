package tag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/haikuchain/haikunode/internal/ledger"
)

func addrWithTag(seed byte, tagged bool, tag [ledger.TagLen]byte) [ledger.AddrLen]byte {
	var a [ledger.AddrLen]byte
	a[0] = seed
	if tagged {
		copy(a[ledger.TagOffset:], tag[:])
	} else {
		a[ledger.TagOffset] = ledger.TagSentinel
	}
	return a
}

func buildIndex(t *testing.T, entries []ledger.Entry) *Index {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.dat")
	buf := make([]byte, 0, len(entries)*ledger.EntrySize)
	for _, e := range entries {
		entryBuf := make([]byte, ledger.EntrySize)
		copy(entryBuf[:ledger.AddrLen], e.Addr[:])
		for i := 0; i < 8; i++ {
			entryBuf[ledger.AddrLen+i] = byte(e.Balance >> (8 * i))
		}
		buf = append(buf, entryBuf...)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := ledger.Open(path)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	return Build(store)
}

func TestBuildAndFind(t *testing.T) {
	tagA := [ledger.TagLen]byte{1, 2, 3}
	a := addrWithTag(1, true, tagA)
	b := addrWithTag(2, false, [ledger.TagLen]byte{})

	idx := buildIndex(t, []ledger.Entry{
		{Addr: a, Balance: 10},
		{Addr: b, Balance: 20},
	})

	if idx.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", idx.Len())
	}
	if pos, ok := idx.Find(tagA); !ok || pos != 0 {
		t.Fatalf("Find(tagA) = (%d, %v), want (0, true)", pos, ok)
	}
	if _, ok := idx.Find([ledger.TagLen]byte{9, 9}); ok {
		t.Fatal("Find should report false for an unbound tag")
	}
}

func TestValidUntaggedChangeAlwaysOK(t *testing.T) {
	idx := buildIndex(t, nil)
	src := addrWithTag(1, false, [ledger.TagLen]byte{})
	chg := addrWithTag(2, false, [ledger.TagLen]byte{})
	if !Valid(idx, src, chg) {
		t.Fatal("untagged change address should always be valid")
	}
}

func TestValidSameTagReassignmentOK(t *testing.T) {
	idx := buildIndex(t, nil)
	sharedTag := [ledger.TagLen]byte{5, 5, 5}
	src := addrWithTag(1, true, sharedTag)
	chg := addrWithTag(2, true, sharedTag)
	if !Valid(idx, src, chg) {
		t.Fatal("change address re-using the source's own tag should be valid")
	}
}

func TestValidTaggedSourceCannotRebind(t *testing.T) {
	idx := buildIndex(t, nil)
	srcTag := [ledger.TagLen]byte{1}
	chgTag := [ledger.TagLen]byte{2}
	src := addrWithTag(1, true, srcTag)
	chg := addrWithTag(2, true, chgTag)
	if Valid(idx, src, chg) {
		t.Fatal("a tagged source must not be able to bind a different tag to its change address")
	}
}

func TestValidRejectsHijackingBoundTag(t *testing.T) {
	boundTag := [ledger.TagLen]byte{7, 7, 7}
	ownerAddr := addrWithTag(3, true, boundTag)
	idx := buildIndex(t, []ledger.Entry{{Addr: ownerAddr, Balance: 100}})

	src := addrWithTag(1, false, [ledger.TagLen]byte{})
	chg := addrWithTag(2, true, boundTag)
	if Valid(idx, src, chg) {
		t.Fatal("an already-bound tag must not be assignable to a different address")
	}
}

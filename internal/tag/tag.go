// Package tag implements the address-tag index and the tag-binding
// policy a transaction's change address must satisfy. The index is
// rebuilt from a full ledger scan rather than maintained incrementally,
// mirroring the in-core rebuild the validator performs whenever it is
// stale or missing.
package tag

import (
	"bytes"

	"github.com/haikuchain/haikunode/internal/ledger"
)

// Index maps a 12-byte tag to the ledger position of the address it is
// currently bound to.
type Index struct {
	entries map[[ledger.TagLen]byte]int
}

// Build scans every entry in store and records the tag of each tagged
// address. A later entry with the same tag overwrites an earlier one,
// matching a full linear rebuild over the ledger's sorted order.
func Build(store *ledger.Store) *Index {
	idx := &Index{entries: make(map[[ledger.TagLen]byte]int, store.Len())}
	for i := 0; i < store.Len(); i++ {
		e := store.At(i)
		if ledger.HasTag(e.Addr) {
			idx.entries[ledger.Tag(e.Addr)] = i
		}
	}
	return idx
}

// Find reports the ledger position bound to tag, or ok=false if no
// address currently carries it.
func (idx *Index) Find(tag [ledger.TagLen]byte) (position int, ok bool) {
	p, ok := idx.entries[tag]
	return p, ok
}

// Len returns the number of distinct bound tags.
func (idx *Index) Len() int { return len(idx.entries) }

// Valid implements the four-rule tag-binding policy a transaction's
// source and change addresses must satisfy:
//
//  1. An untagged change address is always acceptable (nothing to bind).
//  2. A change address whose tag already matches the source address's
//     tag is acceptable (the owner is re-tagging their own funds).
//  3. Otherwise, the source address must itself be untagged (a tagged
//     source cannot rebind its funds to a different tag).
//  4. And the change address's tag must not already be bound to any
//     other address in the ledger (no tag hijacking).
func Valid(idx *Index, srcAddr, chgAddr [ledger.AddrLen]byte) bool {
	if !ledger.HasTag(chgAddr) {
		return true
	}
	srcTag := ledger.Tag(srcAddr)
	chgTag := ledger.Tag(chgAddr)
	if bytes.Equal(srcTag[:], chgTag[:]) {
		return true
	}
	if ledger.HasTag(srcAddr) {
		return false
	}
	if _, bound := idx.Find(chgTag); bound {
		return false
	}
	return true
}

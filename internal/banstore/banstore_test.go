package banstore

import (
	"testing"

	"github.com/haikuchain/haikunode/internal/storage"
)

func TestPinAndIsPinned(t *testing.T) {
	s := New(storage.NewMemory())

	if s.IsPinned("peerA", 5) {
		t.Fatal("unpinned peer should not report pinned")
	}
	if err := s.Pin("peerA", 5, "hostile block"); err != nil {
		t.Fatal(err)
	}
	if !s.IsPinned("peerA", 5) {
		t.Fatal("peer pinned for epoch 5 should be pinned at epoch 5")
	}
	if s.IsPinned("peerA", 6) {
		t.Fatal("a pin for epoch 5 should not apply to epoch 6")
	}
}

func TestPinNeverShortensExistingBan(t *testing.T) {
	s := New(storage.NewMemory())
	if err := s.Pin("peerA", 10, "first"); err != nil {
		t.Fatal(err)
	}
	if err := s.Pin("peerA", 3, "second, earlier epoch"); err != nil {
		t.Fatal(err)
	}
	rec, err := s.Get("peerA")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Epoch != 10 {
		t.Fatalf("epoch = %d, want 10 (later ban must not be shortened)", rec.Epoch)
	}
}

func TestPruneExpired(t *testing.T) {
	s := New(storage.NewMemory())
	if err := s.Pin("stale", 1, "old"); err != nil {
		t.Fatal(err)
	}
	if err := s.Pin("fresh", 9, "current"); err != nil {
		t.Fatal(err)
	}
	n, err := s.PruneExpired(5)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("pruned %d records, want 1", n)
	}
	if s.IsPinned("stale", 0) {
		t.Fatal("pruned record should no longer exist")
	}
	if !s.IsPinned("fresh", 9) {
		t.Fatal("unexpired record should survive a prune")
	}
}

package peerstore

import "testing"

func TestRecordAndRecallAdvert(t *testing.T) {
	s := New()
	s.RecordAdvert(Advert{PeerID: "p1", BlockNumber: 3})

	a, ok := s.RecentAdvert("p1")
	if !ok || a.BlockNumber != 3 {
		t.Fatalf("RecentAdvert(p1) = %v, %v", a, ok)
	}
	if _, ok := s.RecentAdvert("missing"); ok {
		t.Fatal("unknown peer should not be found")
	}
}

func TestCurrentRingTrackAndDrop(t *testing.T) {
	s := New()
	s.TrackCurrent(Advert{PeerID: "p1", BlockNumber: 5})
	s.TrackCurrent(Advert{PeerID: "p2", BlockNumber: 5})

	if got := len(s.CurrentAdverts()); got != 2 {
		t.Fatalf("len(CurrentAdverts()) = %d, want 2", got)
	}

	s.DropCurrent("p1")
	adverts := s.CurrentAdverts()
	if len(adverts) != 1 || adverts[0].PeerID != "p2" {
		t.Fatalf("CurrentAdverts() after drop = %v, want only p2", adverts)
	}
}

func TestRingOverflowEvictsOldest(t *testing.T) {
	s := NewSized(2)
	s.RecordAdvert(Advert{PeerID: "a"})
	s.RecordAdvert(Advert{PeerID: "b"})
	s.RecordAdvert(Advert{PeerID: "c"}) // evicts "a", the least recently used

	if _, ok := s.RecentAdvert("a"); ok {
		t.Fatal("oldest entry should have been evicted once the ring overflowed")
	}
	if _, ok := s.RecentAdvert("c"); !ok {
		t.Fatal("newest entry should still be present")
	}
}

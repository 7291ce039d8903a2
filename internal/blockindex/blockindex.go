// Package blockindex is the badger-backed trailer-history and block
// archive side-store: block-hash -> trailer for O(1) chain-of-custody
// lookups without rescanning the flat trailer log, plus the raw
// encoded block bytes keyed by block number so a peer's GETBLOCK
// request can be served without holding every committed block in
// memory. Neither index is consensus state; both are rebuilt from
// nothing worse than a resync if lost.
package blockindex

import (
	"encoding/binary"
	"fmt"

	"github.com/haikuchain/haikunode/internal/storage"
	"github.com/haikuchain/haikunode/pkg/blockfile"
)

const (
	blockKeyPrefix   = "blk/"
	trailerKeyPrefix = "trl/"
)

// Index persists the block archive and trailer-history lookup in a
// storage.DB.
type Index struct {
	db storage.DB
}

// New creates an Index backed by db.
func New(db storage.DB) *Index {
	return &Index{db: db}
}

func blockKey(bnum uint64) []byte {
	key := make([]byte, len(blockKeyPrefix)+8)
	copy(key, blockKeyPrefix)
	binary.BigEndian.PutUint64(key[len(blockKeyPrefix):], bnum)
	return key
}

func trailerKey(hash [32]byte) []byte {
	key := make([]byte, 0, len(trailerKeyPrefix)+32)
	key = append(key, trailerKeyPrefix...)
	key = append(key, hash[:]...)
	return key
}

// PutBlock archives the raw encoded bytes of a committed block under
// its block number, and its trailer under its block hash.
func (idx *Index) PutBlock(bnum uint64, blockBytes []byte, trailer blockfile.Trailer) error {
	if err := idx.db.Put(blockKey(bnum), blockBytes); err != nil {
		return fmt.Errorf("blockindex: put block %d: %w", bnum, err)
	}
	if err := idx.db.Put(trailerKey(trailer.BlockHash), blockfile.EncodeTrailer(trailer)); err != nil {
		return fmt.Errorf("blockindex: put trailer for block %d: %w", bnum, err)
	}
	return nil
}

// BlockAt returns the archived raw block bytes for bnum, if present.
func (idx *Index) BlockAt(bnum uint64) ([]byte, bool, error) {
	data, err := idx.db.Get(blockKey(bnum))
	if err != nil {
		return nil, false, nil
	}
	return data, true, nil
}

// TrailerByHash looks up a block's trailer by its hash without
// rescanning the ledger's committed block history.
func (idx *Index) TrailerByHash(hash [32]byte) (blockfile.Trailer, bool, error) {
	data, err := idx.db.Get(trailerKey(hash))
	if err != nil {
		return blockfile.Trailer{}, false, nil
	}
	trailer, err := blockfile.DecodeTrailer(data)
	if err != nil {
		return blockfile.Trailer{}, false, fmt.Errorf("blockindex: decode trailer: %w", err)
	}
	return trailer, true, nil
}

// Package blockfile implements the bit-exact on-disk block format: a
// fixed header, a canonical array of fixed-size transaction records,
// and a fixed trailer carrying the proof-of-work and chaining fields.
package blockfile

import (
	"encoding/binary"

	"github.com/haikuchain/haikunode/internal/ledger"
	"github.com/haikuchain/haikunode/internal/verrors"
)

// AddrLen mirrors ledger.AddrLen for callers that only import blockfile.
const AddrLen = ledger.AddrLen

const (
	wotsSigLen = 2144
	hashLen    = 32
)

// HeaderSize is the fixed-header length recorded at the start of a
// block file: a 4-byte length prefix, the miner address, and the
// miner's claimed reward.
const HeaderSize = 4 + AddrLen + 8

// TxSize is one canonical transaction record's on-disk width.
const TxSize = AddrLen*3 + 8*3 + wotsSigLen + hashLen

// TrailerSize is the fixed trailer's on-disk width.
const TrailerSize = hashLen + 8 + 8 + 4 + 4 + 4 + hashLen + hashLen + 4 + hashLen

// Header is the fixed preamble of a block file.
type Header struct {
	HdrLen      uint32
	MinerAddr   [AddrLen]byte
	MinerReward uint64
}

// Transaction is one canonical in-block transaction record.
type Transaction struct {
	Src    [AddrLen]byte
	Dst    [AddrLen]byte
	Chg    [AddrLen]byte
	Send   uint64
	Change uint64
	Fee    uint64
	Sig    [wotsSigLen]byte
	TxID   [hashLen]byte
}

// Trailer is the fixed suffix of a block file.
type Trailer struct {
	PrevHash  [hashLen]byte
	Bnum      uint64
	Mfee      uint64
	Tcount    uint32
	Time0     uint32
	Diff      uint32
	Mroot     [hashLen]byte
	Nonce     [hashLen]byte
	Stime     uint32
	BlockHash [hashLen]byte
}

// Block is a fully decoded block file.
type Block struct {
	Header Header
	Txs    []Transaction
	Trailer Trailer
}

// DecodeHeader parses the fixed header from the start of b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, verrors.Faultf("blockfile: header truncated: have %d bytes, want %d", len(b), HeaderSize)
	}
	var h Header
	h.HdrLen = binary.LittleEndian.Uint32(b[0:4])
	copy(h.MinerAddr[:], b[4:4+AddrLen])
	h.MinerReward = binary.LittleEndian.Uint64(b[4+AddrLen : 4+AddrLen+8])
	return h, nil
}

// EncodeHeader serializes h into a fresh HeaderSize-byte slice.
func EncodeHeader(h Header) []byte {
	out := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(out[0:4], h.HdrLen)
	copy(out[4:4+AddrLen], h.MinerAddr[:])
	binary.LittleEndian.PutUint64(out[4+AddrLen:4+AddrLen+8], h.MinerReward)
	return out
}

// DecodeTransaction parses one TxSize-byte record.
func DecodeTransaction(b []byte) (Transaction, error) {
	if len(b) < TxSize {
		return Transaction{}, verrors.Faultf("blockfile: transaction record truncated: have %d bytes, want %d", len(b), TxSize)
	}
	var t Transaction
	off := 0
	copy(t.Src[:], b[off:off+AddrLen])
	off += AddrLen
	copy(t.Dst[:], b[off:off+AddrLen])
	off += AddrLen
	copy(t.Chg[:], b[off:off+AddrLen])
	off += AddrLen
	t.Send = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	t.Change = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	t.Fee = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	copy(t.Sig[:], b[off:off+wotsSigLen])
	off += wotsSigLen
	copy(t.TxID[:], b[off:off+hashLen])
	return t, nil
}

// EncodeTransaction serializes t into a fresh TxSize-byte slice.
func EncodeTransaction(t Transaction) []byte {
	out := make([]byte, TxSize)
	off := 0
	copy(out[off:off+AddrLen], t.Src[:])
	off += AddrLen
	copy(out[off:off+AddrLen], t.Dst[:])
	off += AddrLen
	copy(out[off:off+AddrLen], t.Chg[:])
	off += AddrLen
	binary.LittleEndian.PutUint64(out[off:off+8], t.Send)
	off += 8
	binary.LittleEndian.PutUint64(out[off:off+8], t.Change)
	off += 8
	binary.LittleEndian.PutUint64(out[off:off+8], t.Fee)
	off += 8
	copy(out[off:off+wotsSigLen], t.Sig[:])
	off += wotsSigLen
	copy(out[off:off+hashLen], t.TxID[:])
	return out
}

// DecodeTrailer parses the fixed TrailerSize-byte trailer.
func DecodeTrailer(b []byte) (Trailer, error) {
	if len(b) < TrailerSize {
		return Trailer{}, verrors.Faultf("blockfile: trailer truncated: have %d bytes, want %d", len(b), TrailerSize)
	}
	var tr Trailer
	off := 0
	copy(tr.PrevHash[:], b[off:off+hashLen])
	off += hashLen
	tr.Bnum = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	tr.Mfee = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	tr.Tcount = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	tr.Time0 = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	tr.Diff = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	copy(tr.Mroot[:], b[off:off+hashLen])
	off += hashLen
	copy(tr.Nonce[:], b[off:off+hashLen])
	off += hashLen
	tr.Stime = binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	copy(tr.BlockHash[:], b[off:off+hashLen])
	return tr, nil
}

// EncodeTrailer serializes tr into a fresh TrailerSize-byte slice.
func EncodeTrailer(tr Trailer) []byte {
	out := make([]byte, TrailerSize)
	off := 0
	copy(out[off:off+hashLen], tr.PrevHash[:])
	off += hashLen
	binary.LittleEndian.PutUint64(out[off:off+8], tr.Bnum)
	off += 8
	binary.LittleEndian.PutUint64(out[off:off+8], tr.Mfee)
	off += 8
	binary.LittleEndian.PutUint32(out[off:off+4], tr.Tcount)
	off += 4
	binary.LittleEndian.PutUint32(out[off:off+4], tr.Time0)
	off += 4
	binary.LittleEndian.PutUint32(out[off:off+4], tr.Diff)
	off += 4
	copy(out[off:off+hashLen], tr.Mroot[:])
	off += hashLen
	copy(out[off:off+hashLen], tr.Nonce[:])
	off += hashLen
	binary.LittleEndian.PutUint32(out[off:off+4], tr.Stime)
	off += 4
	copy(out[off:off+hashLen], tr.BlockHash[:])
	return out
}

// EncodeTrailerMinusHash serializes tr without its trailing BlockHash
// field, the form hashed to compute trailer.block-hash.
func EncodeTrailerMinusHash(tr Trailer) []byte {
	full := EncodeTrailer(tr)
	return full[:TrailerSize-hashLen]
}

// Decode parses a complete block file.
func Decode(b []byte) (Block, error) {
	hdr, err := DecodeHeader(b)
	if err != nil {
		return Block{}, err
	}
	if int(hdr.HdrLen) != HeaderSize {
		return Block{}, verrors.Hostilef("blockfile: header length %d does not match fixed header size %d", hdr.HdrLen, HeaderSize)
	}

	rest := b[HeaderSize:]
	if len(rest) < TrailerSize {
		return Block{}, verrors.Faultf("blockfile: file shorter than trailer: have %d bytes after header", len(rest))
	}
	txBytes := rest[:len(rest)-TrailerSize]
	trailerBytes := rest[len(rest)-TrailerSize:]

	if len(txBytes)%TxSize != 0 {
		return Block{}, verrors.Hostilef("blockfile: transaction region length %d is not a multiple of record size %d", len(txBytes), TxSize)
	}
	n := len(txBytes) / TxSize

	trailer, err := DecodeTrailer(trailerBytes)
	if err != nil {
		return Block{}, err
	}
	if int(trailer.Tcount) != n {
		return Block{}, verrors.Hostilef("blockfile: trailer tcount %d does not match %d transaction records present", trailer.Tcount, n)
	}

	txs := make([]Transaction, n)
	for i := 0; i < n; i++ {
		tx, err := DecodeTransaction(txBytes[i*TxSize : (i+1)*TxSize])
		if err != nil {
			return Block{}, err
		}
		txs[i] = tx
	}

	return Block{Header: hdr, Txs: txs, Trailer: trailer}, nil
}

// Encode serializes a full block file, recomputing HdrLen and Tcount
// from the Header/Txs/Trailer given.
func Encode(blk Block) []byte {
	blk.Header.HdrLen = HeaderSize
	blk.Trailer.Tcount = uint32(len(blk.Txs))

	out := make([]byte, 0, HeaderSize+len(blk.Txs)*TxSize+TrailerSize)
	out = append(out, EncodeHeader(blk.Header)...)
	for _, tx := range blk.Txs {
		out = append(out, EncodeTransaction(tx)...)
	}
	out = append(out, EncodeTrailer(blk.Trailer)...)
	return out
}

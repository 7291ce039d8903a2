// Package wire implements the fixed-size peer-to-peer frame: a constant
// 8824-byte packet carrying a handshake/query opcode, the sender's
// chain-tip view, and an optional transaction body. It mirrors
// internal/p2p's libp2p stream handlers at the byte-layout layer;
// internal/p2p carries the actual connection and gossip-topic plumbing.
package wire

import (
	"encoding/binary"

	"github.com/haikuchain/haikunode/internal/verrors"
)

const (
	// Magic and Trailer bracket every frame.
	Magic   uint16 = 0x0539
	Trailer uint16 = 0xabcd

	// FrameSize is the fixed, non-negotiable length of every frame on
	// the wire.
	FrameSize = 8824

	// PORT1 is the protocol's well-known TCP port.
	PORT1 = 2095

	// ProtocolVersion is the single version byte advertised in HELLO.
	ProtocolVersion byte = 1
)

// Opcode identifies the purpose of a frame.
type Opcode uint16

const (
	OpHello Opcode = iota
	OpHelloAck
	OpTx
	OpFound
	OpGetBlock
	OpSendBlock
	OpBalance
	OpSendBalance
	OpGetIPList
	OpSendIPList
	OpResolve
	OpNack
	OpBusy
)

// txBodyLen is the size of the optional transaction-body region: the
// remainder of the fixed frame once every other field is accounted
// for. It is zero-filled on every opcode except OpTx, where callers
// interpret a non-zero length prefix inside it as wallet-submitted
// transaction bytes, and OpHello/OpHelloAck, where internal/p2p packs
// the handshake challenge (nonce, public key, signature) into it (see
// Open Questions: the same field is reused
// across opcodes with different meaning, inherited rather than
// redesigned here).
const txBodyLen = FrameSize - fixedFieldsLen

// fixedFieldsLen is every frame byte outside the body: magic, two
// session IDs, opcode, tip block-number, tip hash, previous hash,
// weight, CRC, and trailer.
const fixedFieldsLen = 2 + 2 + 2 + 2 + 8 + 32 + 32 + 32 + 2 + 2

// Frame layout, little-endian throughout:
//
//	magic        u16
//	session_id   u16
//	session_id2  u16
//	opcode       u16
//	tip_bnum     u64
//	tip_hash     [32]byte
//	prev_hash    [32]byte
//	weight       [32]byte  (256-bit LE cumulative weight)
//	body         [txBodyLen]byte (zero-filled unless Opcode is OpTx, OpHello or OpHelloAck)
//	crc16        u16       (over every preceding byte)
//	trailer      u16
const (
	offMagic     = 0
	offSession1  = 2
	offSession2  = 4
	offOpcode    = 6
	offTipBnum   = 8
	offTipHash   = 16
	offPrevHash  = 48
	offWeight    = 80
	offBody      = 112
	offCRC       = offBody + txBodyLen
	offTrailer   = offCRC + 2
	headerCsum   = offCRC // number of leading bytes the CRC covers
	expectedSize = offTrailer + 2
)

func init() {
	if expectedSize != FrameSize {
		panic("wire: frame layout does not sum to FrameSize")
	}
}

// Frame is a decoded wire packet.
type Frame struct {
	Session1  uint16
	Session2  uint16
	Opcode    Opcode
	TipBnum   uint64
	TipHash   [32]byte
	PrevHash  [32]byte
	Weight    [32]byte
	Body      [txBodyLen]byte
}

// Encode serializes f into a FrameSize-byte packet with a correct CRC.
func Encode(f Frame) [FrameSize]byte {
	var buf [FrameSize]byte
	binary.LittleEndian.PutUint16(buf[offMagic:], Magic)
	binary.LittleEndian.PutUint16(buf[offSession1:], f.Session1)
	binary.LittleEndian.PutUint16(buf[offSession2:], f.Session2)
	binary.LittleEndian.PutUint16(buf[offOpcode:], uint16(f.Opcode))
	binary.LittleEndian.PutUint64(buf[offTipBnum:], f.TipBnum)
	copy(buf[offTipHash:], f.TipHash[:])
	copy(buf[offPrevHash:], f.PrevHash[:])
	copy(buf[offWeight:], f.Weight[:])
	copy(buf[offBody:], f.Body[:])

	crc := CRC16(buf[:headerCsum])
	binary.LittleEndian.PutUint16(buf[offCRC:], crc)
	binary.LittleEndian.PutUint16(buf[offTrailer:], Trailer)
	return buf
}

// Decode parses a FrameSize-byte packet, verifying magic, trailer, and
// CRC. A mismatch on any of these is a hostile frame: a well-behaved
// peer never emits one.
func Decode(buf []byte) (Frame, error) {
	if len(buf) != FrameSize {
		return Frame{}, verrors.Hostilef("wire: frame length %d != %d", len(buf), FrameSize)
	}
	if got := binary.LittleEndian.Uint16(buf[offMagic:]); got != Magic {
		return Frame{}, verrors.Hostilef("wire: bad magic %#x", got)
	}
	if got := binary.LittleEndian.Uint16(buf[offTrailer:]); got != Trailer {
		return Frame{}, verrors.Hostilef("wire: bad trailer %#x", got)
	}
	wantCRC := CRC16(buf[:headerCsum])
	if got := binary.LittleEndian.Uint16(buf[offCRC:]); got != wantCRC {
		return Frame{}, verrors.Hostilef("wire: CRC mismatch, got %#x want %#x", got, wantCRC)
	}

	var f Frame
	f.Session1 = binary.LittleEndian.Uint16(buf[offSession1:])
	f.Session2 = binary.LittleEndian.Uint16(buf[offSession2:])
	f.Opcode = Opcode(binary.LittleEndian.Uint16(buf[offOpcode:]))
	f.TipBnum = binary.LittleEndian.Uint64(buf[offTipBnum:])
	copy(f.TipHash[:], buf[offTipHash:offPrevHash])
	copy(f.PrevHash[:], buf[offPrevHash:offWeight])
	copy(f.Weight[:], buf[offWeight:offBody])
	copy(f.Body[:], buf[offBody:offCRC])
	return f, nil
}

package node

import (
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/haikuchain/haikunode/internal/puzzle"
	"github.com/haikuchain/haikunode/internal/validator"
	"github.com/haikuchain/haikunode/pkg/blockfile"
)

// MineCandidate assembles a candidate block from pending transactions,
// solves the proof-of-work puzzle against the current tip, and
// returns the encoded block ready to broadcast. It reports ok=false if
// the puzzle was not solved within maxTries, or if a non-neogenesis
// block has no pending transactions to include.
func (n *Node) MineCandidate(minerAddr [blockfile.AddrLen]byte, maxTries int) (blockBytes []byte, ok bool, err error) {
	local := n.LocalTip()
	diff := n.Difficulty()
	bnum := local.BlockNumber + 1
	neogenesis := bnum&0xFFFF == 0

	var txs []blockfile.Transaction
	if !neogenesis {
		txs = n.PendingTransactions(validator.MaxBlTx)
		if len(txs) == 0 {
			return nil, false, nil
		}
	}

	header := blockfile.Header{
		HdrLen:      blockfile.HeaderSize,
		MinerAddr:   minerAddr,
		MinerReward: validator.RewardAt(bnum),
	}

	merkleHash := sha256.New()
	blockHash := sha256.New()
	blockHash.Write(blockfile.EncodeHeader(header))
	for _, tx := range txs {
		b := blockfile.EncodeTransaction(tx)
		merkleHash.Write(b)
		blockHash.Write(b)
	}
	var mroot [32]byte
	copy(mroot[:], merkleHash.Sum(nil))

	time0 := uint32(time.Now().Unix())

	var bnumBytes [8]byte
	binary.LittleEndian.PutUint64(bnumBytes[:], bnum)
	nonce, _, found := puzzle.Generate(local.BlockHash, byte(diff), bnumBytes, maxTries)
	if !found {
		return nil, false, nil
	}

	stime := uint32(time.Now().Unix())
	if stime <= time0 {
		stime = time0 + 1
	}

	trailer := blockfile.Trailer{
		PrevHash: local.BlockHash,
		Bnum:     bnum,
		Mfee:     validator.ProtocolFee,
		Tcount:   uint32(len(txs)),
		Time0:    time0,
		Diff:     diff,
		Mroot:    mroot,
		Nonce:    nonce,
		Stime:    stime,
	}
	blockHash.Write(blockfile.EncodeTrailerMinusHash(trailer))
	copy(trailer.BlockHash[:], blockHash.Sum(nil))

	return blockfile.Encode(blockfile.Block{Header: header, Txs: txs, Trailer: trailer}), true, nil
}

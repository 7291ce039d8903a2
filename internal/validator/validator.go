// Package validator implements the central block-validator algorithm:
// given a candidate block file and the current chain tip, it either
// produces a sorted ledger-delta file and the new trailer, or fails
// with a classified error (internal/verrors) that tells the caller
// whether to retry, drop silently, or pinklist the source peer.
package validator

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"github.com/haikuchain/haikunode/internal/ledger"
	"github.com/haikuchain/haikunode/internal/limb"
	"github.com/haikuchain/haikunode/internal/puzzle"
	"github.com/haikuchain/haikunode/internal/tag"
	"github.com/haikuchain/haikunode/internal/verrors"
	"github.com/haikuchain/haikunode/internal/wots"
	"github.com/haikuchain/haikunode/pkg/blockfile"
)

// Tip is the caller-supplied view of the current chain tip a
// candidate block is validated against.
type Tip struct {
	BlockNumber uint64
	BlockHash   [32]byte
	Difficulty  uint32
	Weight      limb.Value256
}

// Result carries what a successful validation produced: the path of
// the sorted delta file ready for internal/ledger.ApplyDeltas, the
// accepted trailer, and the tip state the caller should advance to.
type Result struct {
	DeltaPath     string
	Trailer       blockfile.Trailer
	NewWeight     limb.Value256
	NewDifficulty uint32
}

// Validator holds the ledger and tag-index state a sequence of block
// validations share. It rebuilds the tag index only when told the
// ledger has moved (Invalidate), matching the "rebuild on any ledger
// mutation" rule; a stale index is never silently reused across a
// commit.
type Validator struct {
	ledgerPath string
	store      *ledger.Store
	tagIdx     *tag.Index
}

// New creates a Validator bound to a ledger file path. The ledger and
// tag index are lazily loaded on first use.
func New(ledgerPath string) *Validator {
	return &Validator{ledgerPath: ledgerPath}
}

// Invalidate marks the cached ledger and tag index stale, forcing a
// reload on the next Validate call. Callers must invoke this after
// every committed block.
func (v *Validator) Invalidate() {
	v.store = nil
	v.tagIdx = nil
}

// Balance reports the current balance bound to addr, for read-only
// callers (the RPC stand-in's BALANCE query) that need the committed
// ledger state without running a full validation pass.
func (v *Validator) Balance(addr [blockfile.AddrLen]byte) (uint64, bool, error) {
	if err := v.ensureLoaded(); err != nil {
		return 0, false, err
	}
	entry, _, found := v.store.Find(addr)
	return entry.Balance, found, nil
}

// Resolve maps a 12-byte tag to the ledger address it is currently
// bound to, for the RESOLVE query.
func (v *Validator) Resolve(tag [ledger.TagLen]byte) ([blockfile.AddrLen]byte, bool, error) {
	if err := v.ensureLoaded(); err != nil {
		return [blockfile.AddrLen]byte{}, false, err
	}
	pos, ok := v.tagIdx.Find(tag)
	if !ok {
		return [blockfile.AddrLen]byte{}, false, nil
	}
	return v.store.At(pos).Addr, true, nil
}

func (v *Validator) ensureLoaded() error {
	if v.store != nil && v.tagIdx != nil {
		return nil
	}
	store, err := ledger.Open(v.ledgerPath)
	if err != nil {
		return err
	}
	v.store = store
	v.tagIdx = tag.Build(store)
	return nil
}

// signingBytes is the portion of a transaction a WOTS signature
// authorizes: the destination, change, and amount fields. The source
// address is excluded deliberately — it carries the public key being
// verified against, fixed at key-generation time, not part of the
// message the key signs.
func signingBytes(tx blockfile.Transaction) []byte {
	var buf bytes.Buffer
	buf.Write(tx.Dst[:])
	buf.Write(tx.Chg[:])
	var amt [24]byte
	binary.LittleEndian.PutUint64(amt[0:8], tx.Send)
	binary.LittleEndian.PutUint64(amt[8:16], tx.Change)
	binary.LittleEndian.PutUint64(amt[16:24], tx.Fee)
	buf.Write(amt[:])
	return buf.Bytes()
}

// isNeogenesis reports whether a block number's low 16 bits are zero.
func isNeogenesis(bnum uint64) bool {
	return bnum&0xFFFF == 0
}

// Validate runs the full pipeline against blockBytes, writing the
// sorted delta file to deltaOutPath on success.
func (v *Validator) Validate(blockBytes []byte, tip Tip, deltaOutPath string) (Result, error) {
	if err := v.ensureLoaded(); err != nil {
		return Result{}, err
	}

	// Steps 2-3: parse and check the trailer against the tip.
	blk, err := blockfile.Decode(blockBytes)
	if err != nil {
		return Result{}, err
	}
	tr := blk.Trailer

	if tr.Mfee != ProtocolFee {
		return Result{}, verrors.Hostilef("validator: mining fee %d != protocol fee %d", tr.Mfee, uint64(ProtocolFee))
	}
	if tr.Diff != tip.Difficulty {
		return Result{}, verrors.Hostilef("validator: trailer difficulty %d != expected %d", tr.Diff, tip.Difficulty)
	}
	if tr.Time0 >= tr.Stime {
		return Result{}, verrors.Hostilef("validator: solve-time %d not strictly after time0 %d", tr.Stime, tr.Time0)
	}
	if tr.Bnum != tip.BlockNumber+1 {
		return Result{}, verrors.Hostilef("validator: block-number %d != tip+1 (%d)", tr.Bnum, tip.BlockNumber+1)
	}
	if tr.PrevHash != tip.BlockHash {
		return Result{}, verrors.Hostilef("validator: prev-hash does not match tip block-hash")
	}

	neogenesis := isNeogenesis(tr.Bnum)
	switch {
	case neogenesis && len(blk.Txs) != 0:
		return Result{}, verrors.Hostilef("validator: neogenesis block %d carries %d transactions, want 0", tr.Bnum, len(blk.Txs))
	case !neogenesis && len(blk.Txs) == 0:
		return Result{}, verrors.Invalidf("validator: block %d has no transactions and is not a neogenesis block", tr.Bnum)
	case !neogenesis && len(blk.Txs) > MaxBlTx:
		return Result{}, verrors.Hostilef("validator: block %d has %d transactions, exceeds MAXBLTX=%d", tr.Bnum, len(blk.Txs), MaxBlTx)
	}

	// Step 4: PoW, before any per-transaction work.
	var bnumBytes [8]byte
	binary.LittleEndian.PutUint64(bnumBytes[:], tr.Bnum)
	var nonce puzzle.Nonce
	copy(nonce[:], tr.Nonce[:])
	if _, ok := puzzle.Check(tip.BlockHash, byte(tr.Diff), bnumBytes, nonce); !ok {
		return Result{}, verrors.Hostilef("validator: proof-of-work check failed for block %d", tr.Bnum)
	}

	// Step 5: miner reward against the schedule.
	wantReward := RewardAt(tr.Bnum)
	if blk.Header.MinerReward != wantReward {
		return Result{}, verrors.Invalidf("validator: miner reward %d != schedule reward %d for block %d", blk.Header.MinerReward, wantReward, tr.Bnum)
	}

	// Step 6: per-transaction loop.
	deltas := make([]ledger.Delta, 0, len(blk.Txs)*2+1)
	merkleHash := sha256.New()
	blockHash := sha256.New()
	blockHash.Write(blockfile.EncodeHeader(blk.Header))

	var prevTxID [32]byte
	var feesAccum uint64

	for i, tx := range blk.Txs {
		txBytes := blockfile.EncodeTransaction(tx)
		merkleHash.Write(txBytes)
		blockHash.Write(txBytes)

		if tx.Src == tx.Dst || tx.Src == tx.Chg {
			return Result{}, verrors.Invalidf("validator: tx %d: source equals destination or change", i)
		}
		if tx.Fee != ProtocolFee {
			return Result{}, verrors.Invalidf("validator: tx %d: fee %d != protocol fee", i, tx.Fee)
		}

		wantID := sha256.Sum256(tx.Src[:])
		if tx.TxID != wantID {
			return Result{}, verrors.Invalidf("validator: tx %d: tx_id does not equal SHA-256(source)", i)
		}
		if i > 0 && bytes.Compare(tx.TxID[:], prevTxID[:]) <= 0 {
			return Result{}, verrors.Hostilef("validator: tx %d: tx_id not strictly ascending (duplicate or out of order)", i)
		}

		digest := sha256.Sum256(signingBytes(tx))
		var salts wots.Salts
		copy(salts.Salt1[:], tx.Src[2144:2176])
		copy(salts.Salt2[:], tx.Src[2176:2208])
		var wantPub wots.PublicKey
		copy(wantPub[:], tx.Src[:2144])
		var sig wots.Signature
		copy(sig[:], tx.Sig[:])
		if !wots.Verify(sig, digest, salts, wantPub) {
			return Result{}, verrors.Hostilef("validator: tx %d: WOTS signature verification failed", i)
		}

		entry, _, found := v.store.Find(tx.Src)
		if !found {
			return Result{}, verrors.Invalidf("validator: tx %d: source address not in ledger", i)
		}

		total, overflow := sum3(tx.Send, tx.Change, tx.Fee)
		if overflow {
			return Result{}, verrors.Invalidf("validator: tx %d: send+change+fee overflows 64 bits", i)
		}
		if entry.Balance < total {
			return Result{}, verrors.Invalidf("validator: tx %d: balance %d below required %d", i, entry.Balance, total)
		}

		if !tag.Valid(v.tagIdx, tx.Src, tx.Chg) {
			return Result{}, verrors.Invalidf("validator: tx %d: tag binding rejected", i)
		}

		deltas = append(deltas, ledger.Delta{Addr: tx.Src, Op: ledger.OpDebit, Amount: total})
		if tx.Send != 0 {
			deltas = append(deltas, ledger.Delta{Addr: tx.Dst, Op: ledger.OpCredit, Amount: tx.Send})
		}
		if tx.Change != 0 {
			deltas = append(deltas, ledger.Delta{Addr: tx.Chg, Op: ledger.OpCredit, Amount: tx.Change})
		}

		newFees, overflow := sum2(feesAccum, ProtocolFee)
		if overflow {
			return Result{}, verrors.Invalidf("validator: accumulated mining fees overflow at tx %d", i)
		}
		feesAccum = newFees
		prevTxID = tx.TxID
	}

	// Step 7: Merkle root.
	var gotMerkle [32]byte
	copy(gotMerkle[:], merkleHash.Sum(nil))
	if gotMerkle != tr.Mroot {
		return Result{}, verrors.Invalidf("validator: merkle root mismatch for block %d", tr.Bnum)
	}

	// Step 8: block hash.
	blockHash.Write(blockfile.EncodeTrailerMinusHash(tr))
	var gotBlockHash [32]byte
	copy(gotBlockHash[:], blockHash.Sum(nil))
	if gotBlockHash != tr.BlockHash {
		return Result{}, verrors.Invalidf("validator: block hash mismatch for block %d", tr.Bnum)
	}

	// Step 9: miner-reward delta (fees + reward).
	minerTotal, overflow := sum2(feesAccum, blk.Header.MinerReward)
	if overflow {
		return Result{}, verrors.Invalidf("validator: fee+reward overflow for block %d", tr.Bnum)
	}
	if minerTotal != 0 {
		deltas = append(deltas, ledger.Delta{Addr: blk.Header.MinerAddr, Op: ledger.OpCredit, Amount: minerTotal})
	}

	// Step 10: sort (in memory) and write the delta file.
	if err := ledger.WriteDeltaFile(deltaOutPath, deltas); err != nil {
		return Result{}, err
	}

	newWeight := tip.Weight
	if !neogenesis {
		newWeight.AddPowerOfTwo(int(tr.Diff))
	}
	newDiff := NextDifficulty(tr.Diff, int64(tr.Stime)-int64(tr.Time0))

	return Result{
		DeltaPath:     deltaOutPath,
		Trailer:       tr,
		NewWeight:     newWeight,
		NewDifficulty: newDiff,
	}, nil
}

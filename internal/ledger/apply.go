package ledger

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"

	"github.com/haikuchain/haikunode/internal/verrors"
)

// DeltaOp is the sign of a ledger delta: a debit ('-') or a credit
// ('+'). Deltas for the same address sort debit-before-credit so a
// source address's balance is checked before any change or reward
// credit lands on it.
type DeltaOp byte

const (
	OpDebit  DeltaOp = '-'
	OpCredit DeltaOp = '+'
)

// Delta is one pending ledger mutation, produced by the block
// validator for every transaction and for the miner's reward.
type Delta struct {
	Addr   [AddrLen]byte
	Op     DeltaOp
	Amount uint64
}

// deltaEntrySize is Addr + 1-byte op + 8-byte little-endian amount.
const deltaEntrySize = AddrLen + 1 + 8

func encodeDelta(d Delta, out []byte) {
	copy(out[:AddrLen], d.Addr[:])
	out[AddrLen] = byte(d.Op)
	binary.LittleEndian.PutUint64(out[AddrLen+1:AddrLen+9], d.Amount)
}

func decodeDelta(b []byte) Delta {
	var d Delta
	copy(d.Addr[:], b[:AddrLen])
	d.Op = DeltaOp(b[AddrLen])
	d.Amount = binary.LittleEndian.Uint64(b[AddrLen+1 : AddrLen+9])
	return d
}

// WriteDeltaFile sorts deltas by (address ascending, debit-before-credit)
// in memory and writes them to path; the validator calls it to hand a
// block's deltas to the ledger commit.
func WriteDeltaFile(path string, deltas []Delta) error {
	sorted := make([]Delta, len(deltas))
	copy(sorted, deltas)
	sort.SliceStable(sorted, func(i, j int) bool {
		c := compareAddr(sorted[i].Addr, sorted[j].Addr)
		if c != 0 {
			return c < 0
		}
		// Debits must be applied before credits for the same address
		// within one block, regardless of the ASCII order of '-'/'+'.
		return sorted[i].Op == OpDebit && sorted[j].Op == OpCredit
	})

	f, err := os.Create(path)
	if err != nil {
		return verrors.Faultf("ledger: create delta file %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, deltaEntrySize)
	for _, d := range sorted {
		encodeDelta(d, buf)
		if _, err := f.Write(buf); err != nil {
			return verrors.Faultf("ledger: write delta to %s: %w", path, err)
		}
	}
	return nil
}

// ReadDeltaFile decodes a delta file written by WriteDeltaFile.
func ReadDeltaFile(path string) ([]Delta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, verrors.Faultf("ledger: read delta file %s: %w", path, err)
	}
	if len(raw)%deltaEntrySize != 0 {
		return nil, verrors.Faultf("ledger: delta file %s size %d not a multiple of %d", path, len(raw), deltaEntrySize)
	}
	n := len(raw) / deltaEntrySize
	out := make([]Delta, n)
	for i := 0; i < n; i++ {
		out[i] = decodeDelta(raw[i*deltaEntrySize : (i+1)*deltaEntrySize])
	}
	return out, nil
}

// Create writes a fresh ledger file at path from entries, sorting them
// by address first. Used once, at genesis, to seed the ledger from a
// premine allocation; every later mutation goes through ApplyDeltas.
func Create(path string, entries []Entry) error {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return compareAddr(sorted[i].Addr, sorted[j].Addr) < 0
	})
	return writeLedgerFile(path, sorted)
}

// ApplyDeltas merges sortedDeltaPath into the ledger at ledgerPath,
// writing the result to a temporary file and atomically renaming it
// over ledgerPath on success. An address whose resulting balance is
// zero is dropped from the new ledger entirely. Any debit that would
// underflow a balance aborts the whole commit with no partial write:
// the caller's ledgerPath is left untouched.
func ApplyDeltas(ledgerPath, sortedDeltaPath string) error {
	store, err := Open(ledgerPath)
	if err != nil {
		return err
	}
	deltas, err := ReadDeltaFile(sortedDeltaPath)
	if err != nil {
		return err
	}

	merged, err := mergeApply(store.entries, deltas)
	if err != nil {
		return err
	}

	tmpPath := ledgerPath + ".tmp"
	if err := writeLedgerFile(tmpPath, merged); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, ledgerPath); err != nil {
		return verrors.Faultf("ledger: atomic rename %s -> %s: %w", tmpPath, ledgerPath, err)
	}
	return nil
}

// mergeApply walks the sorted ledger entries and the sorted deltas in
// lock step, producing the new sorted entry list. Deltas for an
// address not already in the ledger create one (the miner-reward and
// first-receive cases); a net-zero balance drops the entry.
func mergeApply(entries []Entry, deltas []Delta) ([]Entry, error) {
	out := make([]Entry, 0, len(entries)+16)
	di := 0

	flushAddr := func(addr [AddrLen]byte, balance uint64) (uint64, error) {
		for di < len(deltas) && compareAddr(deltas[di].Addr, addr) == 0 {
			d := deltas[di]
			switch d.Op {
			case OpCredit:
				balance += d.Amount
			case OpDebit:
				if d.Amount > balance {
					return 0, verrors.Faultf("ledger: delta underflow for address ending %x: balance %d, debit %d",
						addr[AddrLen-8:], balance, d.Amount)
				}
				balance -= d.Amount
			default:
				return 0, verrors.Faultf("ledger: unknown delta op %q", byte(d.Op))
			}
			di++
		}
		return balance, nil
	}

	for _, e := range entries {
		// Deltas for new addresses that sort before e create fresh
		// entries before e's own deltas are consumed.
		for di < len(deltas) && compareAddr(deltas[di].Addr, e.Addr) < 0 {
			addr := deltas[di].Addr
			bal, err := flushAddr(addr, 0)
			if err != nil {
				return nil, err
			}
			if bal != 0 {
				out = append(out, Entry{Addr: addr, Balance: bal})
			}
		}
		bal, err := flushAddr(e.Addr, e.Balance)
		if err != nil {
			return nil, err
		}
		if bal != 0 {
			out = append(out, Entry{Addr: e.Addr, Balance: bal})
		}
	}

	// Any remaining deltas are for addresses with no existing ledger
	// entry: each run of same-address deltas creates a fresh entry.
	for di < len(deltas) {
		addr := deltas[di].Addr
		bal, err := flushAddr(addr, 0)
		if err != nil {
			return nil, err
		}
		if bal != 0 {
			out = append(out, Entry{Addr: addr, Balance: bal})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return compareAddr(out[i].Addr, out[j].Addr) < 0
	})
	return out, nil
}

func writeLedgerFile(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return verrors.Faultf("ledger: mkdir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return verrors.Faultf("ledger: create %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, EntrySize)
	for _, e := range entries {
		encodeEntry(e, buf)
		if _, err := f.Write(buf); err != nil {
			return verrors.Faultf("ledger: write %s: %w", path, err)
		}
	}
	return f.Sync()
}

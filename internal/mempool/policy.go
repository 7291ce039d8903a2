package mempool

import (
	"fmt"

	"github.com/haikuchain/haikunode/internal/validator"
	"github.com/haikuchain/haikunode/pkg/blockfile"
)

// Policy defines transaction acceptance rules ahead of full block
// validation. Policy rules can vary per node; the fee floor below is
// not itself a consensus rule, unlike validator.ProtocolFee.
type Policy struct {
	MinFee uint64 // Minimum accepted fee in base units.
}

// DefaultPolicy returns a policy requiring at least the protocol's
// fixed mining fee.
func DefaultPolicy() *Policy {
	return &Policy{MinFee: validator.ProtocolFee}
}

// Check validates a transaction against policy rules. This mirrors,
// as defense-in-depth, a subset of the checks the validator itself
// performs so the pool doesn't fill up with transactions certain to
// be rejected at block-assembly time.
func (p *Policy) Check(tx blockfile.Transaction) error {
	if tx.Fee < p.MinFee {
		return fmt.Errorf("fee %d below minimum %d", tx.Fee, p.MinFee)
	}
	if tx.Send == 0 {
		return fmt.Errorf("send amount must be positive")
	}
	return nil
}

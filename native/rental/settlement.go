package rental

import (
	"fmt"
	"math/big"
)

var basisPoints = big.NewInt(10_000)

// FeePolicy names the account collecting the platform fee and the fee rate
// in basis points of rent. Only the current collector may update the policy.
type FeePolicy struct {
	Collector [20]byte
	FeeBps    uint32
}

// Sanitize validates the policy bounds.
func (p *FeePolicy) Sanitize() (*FeePolicy, error) {
	if p == nil {
		return nil, fmt.Errorf("nil fee policy")
	}
	if p.FeeBps > MaxFeeBps {
		return nil, fmt.Errorf("%w: %d > %d", ErrFeeBpsOutOfRange, p.FeeBps, MaxFeeBps)
	}
	clone := *p
	return &clone, nil
}

// SplitRent divides the rent portion of a payment into the owner share and
// the platform fee. The split is exact: ownerShare + feeShare == totalRent,
// with any integer-division remainder accruing to the owner.
func SplitRent(totalRent *big.Int, feeBps uint32) (ownerShare, feeShare *big.Int, err error) {
	if totalRent == nil || totalRent.Sign() < 0 {
		return nil, nil, fmt.Errorf("rental: rent must be non-negative")
	}
	if feeBps > MaxFeeBps {
		return nil, nil, fmt.Errorf("%w: %d > %d", ErrFeeBpsOutOfRange, feeBps, MaxFeeBps)
	}
	feeShare = new(big.Int).Mul(totalRent, new(big.Int).SetUint64(uint64(feeBps)))
	feeShare.Div(feeShare, basisPoints)
	ownerShare = new(big.Int).Sub(totalRent, feeShare)
	return ownerShare, feeShare, nil
}

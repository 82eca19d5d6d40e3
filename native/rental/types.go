package rental

import (
	"fmt"
	"math/big"

	"leasehub/native/assets"
)

// Status represents the lifecycle states of a rental record. A record never
// regresses: Listed moves forward to Rented or Cancelled, Rented only to
// Completed.
type Status uint8

const (
	StatusListed Status = iota
	StatusRented
	StatusCompleted
	StatusCancelled
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusListed, StatusRented, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusListed:
		return "listed"
	case StatusRented:
		return "rented"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Terminal reports whether the status resolves the rental; terminal records
// release their asset's listing slot.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

const (
	// UnitSeconds is the length of one rental unit. Prices are quoted per
	// unit and durations counted in units.
	UnitSeconds int64 = 86_400

	// CollateralMultiple is the minimum collateral expressed as a multiple
	// of the per-unit price, so a renter who vanishes forfeits at least a
	// week's equivalent rent.
	CollateralMultiple = 7

	// MaxTermUnits caps a listing's maximum duration at a century of units.
	// The cap keeps endTime = startTime + duration*UnitSeconds well inside
	// int64 range; without it the product wraps and an expiry lands in the
	// past the moment the rental starts.
	MaxTermUnits uint64 = 36_500

	// MaxFeeBps caps the platform fee at 20% of rent.
	MaxFeeBps uint32 = 2_000

	// DefaultFeeBps is the platform fee applied when no policy update has
	// been made.
	DefaultFeeBps uint32 = 500
)

// Terms are the owner-chosen rental parameters, fixed at listing time and
// immutable thereafter.
type Terms struct {
	PricePerUnit *big.Int
	Collateral   *big.Int
	MinDuration  uint64
	MaxDuration  uint64
}

// Validate enforces the listing policy: positive price, consistent duration
// bounds and collateral of at least CollateralMultiple times the price.
func (t Terms) Validate() error {
	if t.PricePerUnit == nil || t.PricePerUnit.Sign() <= 0 {
		return fmt.Errorf("%w: price per unit must be positive", ErrInvalidTerms)
	}
	if t.Collateral == nil || t.Collateral.Sign() < 0 {
		return fmt.Errorf("%w: collateral must be non-negative", ErrInvalidTerms)
	}
	if t.MinDuration < 1 {
		return fmt.Errorf("%w: minimum duration must be at least one unit", ErrInvalidTerms)
	}
	if t.MinDuration > t.MaxDuration {
		return fmt.Errorf("%w: minimum duration exceeds maximum", ErrInvalidTerms)
	}
	if t.MaxDuration > MaxTermUnits {
		return fmt.Errorf("%w: maximum duration exceeds %d units", ErrInvalidTerms, MaxTermUnits)
	}
	floor := new(big.Int).Mul(t.PricePerUnit, big.NewInt(CollateralMultiple))
	if t.Collateral.Cmp(floor) < 0 {
		return fmt.Errorf("%w: collateral below %dx price per unit", ErrInvalidTerms, CollateralMultiple)
	}
	return nil
}

// Rental is the canonical record of one custody agreement. The ledger
// exclusively owns record storage; the listing index and account indices
// hold only the identifier.
type Rental struct {
	ID           uint64
	Asset        assets.Ref
	Owner        [20]byte
	Renter       [20]byte
	PricePerUnit *big.Int
	Collateral   *big.Int
	MinDuration  uint64
	MaxDuration  uint64
	StartTime    int64
	EndTime      int64
	CreatedAt    int64
	Status       Status
	Active       bool
}

// Clone returns a deep copy of the rental so callers can safely mutate the
// copy without affecting the stored instance.
func (r *Rental) Clone() *Rental {
	if r == nil {
		return nil
	}
	clone := *r
	if r.PricePerUnit != nil {
		clone.PricePerUnit = new(big.Int).Set(r.PricePerUnit)
	} else {
		clone.PricePerUnit = big.NewInt(0)
	}
	if r.Collateral != nil {
		clone.Collateral = new(big.Int).Set(r.Collateral)
	} else {
		clone.Collateral = big.NewInt(0)
	}
	return &clone
}

// Sanitize validates and normalises the supplied record, returning a cloned
// instance with non-nil amount fields. The function does not mutate the
// original value.
func Sanitize(r *Rental) (*Rental, error) {
	if r == nil {
		return nil, fmt.Errorf("nil rental")
	}
	clone := r.Clone()
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid rental status: %d", clone.Status)
	}
	if clone.PricePerUnit.Sign() < 0 {
		return nil, fmt.Errorf("rental price must be non-negative")
	}
	if clone.Collateral.Sign() < 0 {
		return nil, fmt.Errorf("rental collateral must be non-negative")
	}
	if clone.Status.Terminal() && clone.Active {
		return nil, fmt.Errorf("terminal rental cannot remain active")
	}
	return clone, nil
}

package rental

import "errors"

// Error taxonomy for the rental lifecycle. Every action failure surfaces one
// of these kinds so callers can distinguish "try again later"
// (ErrRentalNotExpired) from "this will never succeed" (ErrNotOwner).
var (
	// ErrInvalidTerms rejects listing parameters that violate policy.
	ErrInvalidTerms = errors.New("rental: invalid terms")
	// ErrNotOwner rejects a caller that is not the asset owner for an
	// owner-only action.
	ErrNotOwner = errors.New("rental: caller is not the owner")
	// ErrNotAuthorized rejects a caller lacking the required role.
	ErrNotAuthorized = errors.New("rental: caller not authorized")
	// ErrAlreadyListed rejects a second open listing for the same asset.
	ErrAlreadyListed = errors.New("rental: asset already listed")
	// ErrNotFound is returned for an unknown rental identifier.
	ErrNotFound = errors.New("rental: not found")
	// ErrInvalidTransition is returned when the record status does not match
	// the expected predecessor of the requested action.
	ErrInvalidTransition = errors.New("rental: invalid status transition")
	// ErrInvalidDuration rejects a rent duration outside the listing bounds.
	ErrInvalidDuration = errors.New("rental: invalid duration")
	// ErrInsufficientPayment rejects a rent payment below rent plus
	// collateral.
	ErrInsufficientPayment = errors.New("rental: insufficient payment")
	// ErrRentalNotExpired is returned when settlement is attempted before
	// the rental term has elapsed.
	ErrRentalNotExpired = errors.New("rental: term not yet expired")
	// ErrPaymentFailed wraps a payment rail failure; the whole action is
	// aborted.
	ErrPaymentFailed = errors.New("rental: payment failed")
	// ErrCustodyTransferFailed wraps a custody registry failure; the whole
	// action is aborted.
	ErrCustodyTransferFailed = errors.New("rental: custody transfer failed")
	// ErrFeeBpsOutOfRange rejects a platform fee above MaxFeeBps.
	ErrFeeBpsOutOfRange = errors.New("rental: fee bps out of range")
	// ErrReentrantCall rejects a nested call into a rental while an action
	// on it is still executing.
	ErrReentrantCall = errors.New("rental: reentrant call rejected")
)

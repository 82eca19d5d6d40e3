package rental

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"leasehub/core/events"
	"leasehub/native/assets"
	nativecommon "leasehub/native/common"
)

var (
	errNilState     = errors.New("rental engine: state not configured")
	errNilCustody   = errors.New("rental engine: custody registry not configured")
	errNilPayments  = errors.New("rental engine: payment rail not configured")
	errNilCollector = errors.New("rental engine: fee collector not configured")
)

const moduleName = "rental"

// CustodyRegistry is the external token-ownership collaborator. The engine
// escrows assets under its vault address while a record is open.
type CustodyRegistry interface {
	CurrentHolder(asset assets.Ref) ([20]byte, error)
	TransferCustody(asset assets.Ref, from, to [20]byte) error
}

// PaymentRail moves funds in and out of the engine vault. Either call fully
// succeeds or fails with no funds moved.
type PaymentRail interface {
	Collect(from [20]byte, amount *big.Int) error
	Pay(to [20]byte, amount *big.Int) error
}

type engineState interface {
	RentalPut(*Rental) error
	RentalGet(id uint64) (*Rental, bool, error)
	RentalNextID() (uint64, error)
	ListingGet(asset assets.Ref) (uint64, bool, error)
	ListingPut(asset assets.Ref, id uint64) error
	ListingClear(asset assets.Ref) error
	AccountRentalsAppend(addr [20]byte, id uint64) error
	FeePolicyGet() (*FeePolicy, bool, error)
	FeePolicyPut(*FeePolicy) error
}

// Engine enforces the rental lifecycle: List -> Rent -> Completed, with
// Cancel from Listed and Claim as the owner's default remedy from Rented.
// Each action validates against the ledger and listing index, performs the
// custody and fund movements, then commits the new record state. The caller
// is expected to serialize actions; the engine additionally rejects nested
// re-entry into a record that is mid-transition.
type Engine struct {
	state    engineState
	custody  CustodyRegistry
	payments PaymentRail
	vault    [20]byte
	emitter  events.Emitter
	nowFn    func() int64
	pauses   nativecommon.PauseView

	mu       sync.Mutex
	inFlight map[uint64]struct{}
	listing  map[assets.Ref]struct{}
}

// NewEngine creates a rental engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine(vault [20]byte) *Engine {
	return &Engine{
		vault:    vault,
		emitter:  events.NoopEmitter{},
		nowFn:    func() int64 { return time.Now().Unix() },
		inFlight: make(map[uint64]struct{}),
		listing:  make(map[assets.Ref]struct{}),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetCustody configures the token-ownership collaborator.
func (e *Engine) SetCustody(custody CustodyRegistry) { e.custody = custody }

// SetPayments configures the fund-movement rail.
func (e *Engine) SetPayments(rail PaymentRail) { e.payments = rail }

// SetPauses configures the operator pause switches.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source used by the engine. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Vault returns the escrow custodian address.
func (e *Engine) Vault() [20]byte { return e.vault }

// OnAssetReceived acknowledges custody transfers into the vault so the asset
// registry treats the escrow as a willing receiver.
func (e *Engine) OnAssetReceived(assets.Ref, [20]byte) [4]byte { return assets.ReceiveAck }

func (e *Engine) emit(event *events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.custody == nil:
		return errNilCustody
	case e.payments == nil:
		return errNilPayments
	}
	return nativecommon.Guard(e.pauses, moduleName)
}

// beginRental marks the record as mid-transition. A second entry before
// endRental means a collaborator called back into the engine; partially
// applied state must never be observable, so the nested call is rejected.
func (e *Engine) beginRental(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[id]; busy {
		return fmt.Errorf("%w: rental %d", ErrReentrantCall, id)
	}
	e.inFlight[id] = struct{}{}
	return nil
}

func (e *Engine) endRental(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, id)
}

func (e *Engine) beginAsset(asset assets.Ref) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.listing[asset]; busy {
		return fmt.Errorf("%w: asset %s", ErrReentrantCall, asset)
	}
	e.listing[asset] = struct{}{}
	return nil
}

func (e *Engine) endAsset(asset assets.Ref) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listing, asset)
}

func (e *Engine) loadRental(id uint64) (*Rental, error) {
	record, ok, err := e.state.RentalGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return record, nil
}

func (e *Engine) feePolicy() (*FeePolicy, error) {
	policy, ok, err := e.state.FeePolicyGet()
	if err != nil {
		return nil, err
	}
	if !ok || policy == nil {
		return &FeePolicy{FeeBps: DefaultFeeBps}, nil
	}
	return policy, nil
}

// List escrows the caller's asset and creates a Listed record. The caller
// must currently hold custody of the asset and the asset must not already
// have an open record.
func (e *Engine) List(caller [20]byte, asset assets.Ref, terms Terms) (*Rental, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.beginAsset(asset); err != nil {
		return nil, err
	}
	defer e.endAsset(asset)
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if _, open, err := e.state.ListingGet(asset); err != nil {
		return nil, err
	} else if open {
		return nil, fmt.Errorf("%w: asset %s", ErrAlreadyListed, asset)
	}
	holder, err := e.custody.CurrentHolder(asset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCustodyTransferFailed, err)
	}
	if holder != caller {
		return nil, fmt.Errorf("%w: asset held by other account", ErrNotOwner)
	}
	if err := e.custody.TransferCustody(asset, caller, e.vault); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCustodyTransferFailed, err)
	}
	id, err := e.state.RentalNextID()
	if err != nil {
		return nil, err
	}
	record := &Rental{
		ID:           id,
		Asset:        asset,
		Owner:        caller,
		PricePerUnit: new(big.Int).Set(terms.PricePerUnit),
		Collateral:   new(big.Int).Set(terms.Collateral),
		MinDuration:  terms.MinDuration,
		MaxDuration:  terms.MaxDuration,
		CreatedAt:    e.now(),
		Status:       StatusListed,
		Active:       true,
	}
	if err := e.state.RentalPut(record); err != nil {
		return nil, err
	}
	if err := e.state.ListingPut(asset, id); err != nil {
		return nil, err
	}
	if err := e.state.AccountRentalsAppend(caller, id); err != nil {
		return nil, err
	}
	e.emit(NewListedEvent(record))
	return record.Clone(), nil
}

// Rent starts the rental term: the caller pays rent plus collateral, the
// rent is split between owner and platform, the collateral stays in escrow
// and custody of the asset moves to the renter.
func (e *Engine) Rent(id uint64, caller [20]byte, duration uint64, paid *big.Int) (*Rental, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.beginRental(id); err != nil {
		return nil, err
	}
	defer e.endRental(id)
	record, err := e.loadRental(id)
	if err != nil {
		return nil, err
	}
	if record.Status != StatusListed {
		return nil, fmt.Errorf("%w: cannot rent in status %s", ErrInvalidTransition, record.Status)
	}
	if duration < 1 || duration < record.MinDuration || duration > record.MaxDuration || duration > MaxTermUnits {
		return nil, fmt.Errorf("%w: %d units outside [%d, %d]", ErrInvalidDuration, duration, record.MinDuration, record.MaxDuration)
	}
	rent := new(big.Int).Mul(record.PricePerUnit, new(big.Int).SetUint64(duration))
	required := new(big.Int).Add(rent, record.Collateral)
	if paid == nil || paid.Cmp(required) < 0 {
		return nil, fmt.Errorf("%w: need %s", ErrInsufficientPayment, required)
	}
	policy, err := e.feePolicy()
	if err != nil {
		return nil, err
	}
	ownerShare, feeShare, err := SplitRent(rent, policy.FeeBps)
	if err != nil {
		return nil, err
	}
	if feeShare.Sign() > 0 && policy.Collector == ([20]byte{}) {
		return nil, errNilCollector
	}
	// Only the required amount is collected; any excess tendered never
	// leaves the renter's account.
	if err := e.payments.Collect(caller, required); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	if err := e.payments.Pay(record.Owner, ownerShare); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	if feeShare.Sign() > 0 {
		if err := e.payments.Pay(policy.Collector, feeShare); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
		}
	}
	if err := e.custody.TransferCustody(record.Asset, e.vault, caller); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCustodyTransferFailed, err)
	}
	now := e.now()
	record.Status = StatusRented
	record.Renter = caller
	record.StartTime = now
	record.EndTime = now + int64(duration)*UnitSeconds
	if err := e.state.RentalPut(record); err != nil {
		return nil, err
	}
	if err := e.state.AccountRentalsAppend(caller, id); err != nil {
		return nil, err
	}
	e.emit(NewRentedEvent(record))
	return record.Clone(), nil
}

// Complete settles an expired rental on-time: the asset returns to the owner
// and the full collateral is refunded to the renter. Any caller may invoke
// it once the term has elapsed, which keeps settlement permissionless.
func (e *Engine) Complete(id uint64, caller [20]byte) (*Rental, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.beginRental(id); err != nil {
		return nil, err
	}
	defer e.endRental(id)
	record, err := e.loadRental(id)
	if err != nil {
		return nil, err
	}
	if record.Status != StatusRented {
		return nil, fmt.Errorf("%w: cannot complete in status %s", ErrInvalidTransition, record.Status)
	}
	if e.now() < record.EndTime {
		return nil, fmt.Errorf("%w: ends at %d", ErrRentalNotExpired, record.EndTime)
	}
	if err := e.custody.TransferCustody(record.Asset, record.Renter, record.Owner); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCustodyTransferFailed, err)
	}
	if err := e.payments.Pay(record.Renter, record.Collateral); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	return e.finalize(record, StatusCompleted, NewCompletedEvent)
}

// Cancel withdraws a listing before any rental began. Only the owner may
// cancel; custody returns to the owner and no funds move.
func (e *Engine) Cancel(id uint64, caller [20]byte) (*Rental, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.beginRental(id); err != nil {
		return nil, err
	}
	defer e.endRental(id)
	record, err := e.loadRental(id)
	if err != nil {
		return nil, err
	}
	if record.Status != StatusListed {
		return nil, fmt.Errorf("%w: cannot cancel in status %s", ErrInvalidTransition, record.Status)
	}
	if record.Owner != caller {
		return nil, fmt.Errorf("%w: only the owner may cancel", ErrNotOwner)
	}
	if err := e.custody.TransferCustody(record.Asset, e.vault, record.Owner); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCustodyTransferFailed, err)
	}
	return e.finalize(record, StatusCancelled, NewCancelledEvent)
}

// Claim is the owner's unilateral default remedy: strictly after the term
// ends, the asset is forced back to the owner and the collateral is
// forfeited to the owner instead of being refunded. Complete at the exact
// boundary wins over Claim; whichever transition lands first leaves the
// other failing on the status check.
func (e *Engine) Claim(id uint64, caller [20]byte) (*Rental, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.beginRental(id); err != nil {
		return nil, err
	}
	defer e.endRental(id)
	record, err := e.loadRental(id)
	if err != nil {
		return nil, err
	}
	if record.Status != StatusRented {
		return nil, fmt.Errorf("%w: cannot claim in status %s", ErrInvalidTransition, record.Status)
	}
	if record.Owner != caller {
		return nil, fmt.Errorf("%w: only the owner may claim", ErrNotAuthorized)
	}
	if e.now() <= record.EndTime {
		return nil, fmt.Errorf("%w: claim requires the term to be strictly past", ErrRentalNotExpired)
	}
	holder, err := e.custody.CurrentHolder(record.Asset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCustodyTransferFailed, err)
	}
	if holder != record.Renter {
		return nil, fmt.Errorf("%w: asset no longer held by renter", ErrCustodyTransferFailed)
	}
	if err := e.custody.TransferCustody(record.Asset, record.Renter, record.Owner); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCustodyTransferFailed, err)
	}
	if err := e.payments.Pay(record.Owner, record.Collateral); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	return e.finalize(record, StatusCompleted, NewClaimedEvent)
}

// finalize commits a terminal transition: the record is deactivated, stored,
// and the asset's listing slot released.
func (e *Engine) finalize(record *Rental, status Status, eventFn func(*Rental) *events.Event) (*Rental, error) {
	record.Status = status
	record.Active = false
	if err := e.state.RentalPut(record); err != nil {
		return nil, err
	}
	if err := e.state.ListingClear(record.Asset); err != nil {
		return nil, err
	}
	e.emit(eventFn(record))
	return record.Clone(), nil
}

// SetFeeBps updates the platform fee rate. Only the current collector may
// change it and the rate stays bounded by MaxFeeBps.
func (e *Engine) SetFeeBps(caller [20]byte, feeBps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	policy, err := e.feePolicy()
	if err != nil {
		return err
	}
	// An unset role cannot be exercised; seeding it goes through
	// InitFeePolicy, never through a zero-address caller matching the
	// zero-value policy.
	if policy.Collector == ([20]byte{}) || policy.Collector != caller {
		return fmt.Errorf("%w: only the fee collector may update the fee", ErrNotAuthorized)
	}
	if feeBps > MaxFeeBps {
		return fmt.Errorf("%w: %d > %d", ErrFeeBpsOutOfRange, feeBps, MaxFeeBps)
	}
	policy.FeeBps = feeBps
	if err := e.state.FeePolicyPut(policy); err != nil {
		return err
	}
	e.emit(NewFeePolicyUpdatedEvent(policy))
	return nil
}

// SetFeeCollector hands the collector role to a new account. Only the
// current holder of the role may transfer it.
func (e *Engine) SetFeeCollector(caller, collector [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	policy, err := e.feePolicy()
	if err != nil {
		return err
	}
	if policy.Collector == ([20]byte{}) || policy.Collector != caller {
		return fmt.Errorf("%w: only the fee collector may transfer the role", ErrNotAuthorized)
	}
	if collector == ([20]byte{}) {
		return fmt.Errorf("%w: collector address required", ErrNotAuthorized)
	}
	policy.Collector = collector
	if err := e.state.FeePolicyPut(policy); err != nil {
		return err
	}
	e.emit(NewFeePolicyUpdatedEvent(policy))
	return nil
}

// InitFeePolicy seeds the fee policy when none is stored yet. It is a no-op
// once a policy exists, so restarts never clobber an updated role.
func (e *Engine) InitFeePolicy(collector [20]byte, feeBps uint32) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if _, ok, err := e.state.FeePolicyGet(); err != nil {
		return err
	} else if ok {
		return nil
	}
	policy, err := (&FeePolicy{Collector: collector, FeeBps: feeBps}).Sanitize()
	if err != nil {
		return err
	}
	return e.state.FeePolicyPut(policy)
}

package rental

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"leasehub/core/events"
	"leasehub/native/assets"
	nativecommon "leasehub/native/common"
)

type mockState struct {
	rentals  map[uint64]*Rental
	nextID   uint64
	listings map[assets.Ref]uint64
	accounts map[[20]byte][]uint64
	policy   *FeePolicy
}

func newMockState() *mockState {
	return &mockState{
		rentals:  make(map[uint64]*Rental),
		nextID:   1,
		listings: make(map[assets.Ref]uint64),
		accounts: make(map[[20]byte][]uint64),
	}
}

func (m *mockState) RentalPut(r *Rental) error {
	sanitized, err := Sanitize(r)
	if err != nil {
		return err
	}
	m.rentals[sanitized.ID] = sanitized.Clone()
	return nil
}

func (m *mockState) RentalGet(id uint64) (*Rental, bool, error) {
	r, ok := m.rentals[id]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

func (m *mockState) RentalNextID() (uint64, error) {
	id := m.nextID
	m.nextID++
	return id, nil
}

func (m *mockState) ListingGet(asset assets.Ref) (uint64, bool, error) {
	id, ok := m.listings[asset]
	return id, ok, nil
}

func (m *mockState) ListingPut(asset assets.Ref, id uint64) error {
	m.listings[asset] = id
	return nil
}

func (m *mockState) ListingClear(asset assets.Ref) error {
	delete(m.listings, asset)
	return nil
}

func (m *mockState) AccountRentalsAppend(addr [20]byte, id uint64) error {
	m.accounts[addr] = append(m.accounts[addr], id)
	return nil
}

func (m *mockState) FeePolicyGet() (*FeePolicy, bool, error) {
	if m.policy == nil {
		return nil, false, nil
	}
	clone := *m.policy
	return &clone, true, nil
}

func (m *mockState) FeePolicyPut(p *FeePolicy) error {
	sanitized, err := p.Sanitize()
	if err != nil {
		return err
	}
	m.policy = sanitized
	return nil
}

type mockCustody struct {
	holders      map[assets.Ref][20]byte
	transferHook func(asset assets.Ref, from, to [20]byte) error
}

func newMockCustody() *mockCustody {
	return &mockCustody{holders: make(map[assets.Ref][20]byte)}
}

func (m *mockCustody) CurrentHolder(asset assets.Ref) ([20]byte, error) {
	holder, ok := m.holders[asset]
	if !ok {
		return [20]byte{}, errors.New("unknown asset")
	}
	return holder, nil
}

func (m *mockCustody) TransferCustody(asset assets.Ref, from, to [20]byte) error {
	if m.transferHook != nil {
		if err := m.transferHook(asset, from, to); err != nil {
			return err
		}
	}
	holder, ok := m.holders[asset]
	if !ok {
		return errors.New("unknown asset")
	}
	if !bytes.Equal(holder[:], from[:]) {
		return errors.New("sender does not hold asset")
	}
	m.holders[asset] = to
	return nil
}

type mockRail struct {
	balances map[[20]byte]*big.Int
	vault    *big.Int
	payHook  func(to [20]byte, amount *big.Int) error
}

func newMockRail() *mockRail {
	return &mockRail{balances: make(map[[20]byte]*big.Int), vault: big.NewInt(0)}
}

func (m *mockRail) balance(addr [20]byte) *big.Int {
	if b, ok := m.balances[addr]; ok {
		return b
	}
	return big.NewInt(0)
}

func (m *mockRail) credit(addr [20]byte, amount int64) {
	m.balances[addr] = new(big.Int).Add(m.balance(addr), big.NewInt(amount))
}

func (m *mockRail) Collect(from [20]byte, amount *big.Int) error {
	if m.balance(from).Cmp(amount) < 0 {
		return errors.New("insufficient funds")
	}
	m.balances[from] = new(big.Int).Sub(m.balance(from), amount)
	m.vault = new(big.Int).Add(m.vault, amount)
	return nil
}

func (m *mockRail) Pay(to [20]byte, amount *big.Int) error {
	if m.payHook != nil {
		if err := m.payHook(to, amount); err != nil {
			return err
		}
	}
	if m.vault.Cmp(amount) < 0 {
		return errors.New("vault underflow")
	}
	m.vault = new(big.Int).Sub(m.vault, amount)
	m.balances[to] = new(big.Int).Add(m.balance(to), amount)
	return nil
}

type recordingEmitter struct {
	emitted []*events.Event
}

func (r *recordingEmitter) Emit(evt *events.Event) { r.emitted = append(r.emitted, evt) }

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

var (
	vaultAddr     = newTestAddress(0xEE)
	ownerAddr     = newTestAddress(0x01)
	renterAddr    = newTestAddress(0x02)
	collectorAddr = newTestAddress(0x03)
	otherAddr     = newTestAddress(0x04)
)

type testEnv struct {
	engine  *Engine
	state   *mockState
	custody *mockCustody
	rail    *mockRail
	now     int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		state:   newMockState(),
		custody: newMockCustody(),
		rail:    newMockRail(),
		now:     1_000_000,
	}
	env.state.policy = &FeePolicy{Collector: collectorAddr, FeeBps: DefaultFeeBps}
	env.engine = NewEngine(vaultAddr)
	env.engine.SetState(env.state)
	env.engine.SetCustody(env.custody)
	env.engine.SetPayments(env.rail)
	env.engine.SetNowFunc(func() int64 { return env.now })
	return env
}

func defaultTerms() Terms {
	return Terms{
		PricePerUnit: big.NewInt(10),
		Collateral:   big.NewInt(100),
		MinDuration:  1,
		MaxDuration:  30,
	}
}

func (env *testEnv) listAsset(t *testing.T) (*Rental, assets.Ref) {
	t.Helper()
	asset := assets.Ref{Collection: newTestAddress(0xC0), TokenID: 7}
	env.custody.holders[asset] = ownerAddr
	record, err := env.engine.List(ownerAddr, asset, defaultTerms())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return record, asset
}

func (env *testEnv) rentAsset(t *testing.T, id uint64, duration uint64, paid int64) *Rental {
	t.Helper()
	env.rail.credit(renterAddr, paid)
	record, err := env.engine.Rent(id, renterAddr, duration, big.NewInt(paid))
	if err != nil {
		t.Fatalf("rent: %v", err)
	}
	return record
}

func TestListCreatesListing(t *testing.T) {
	env := newTestEnv(t)
	record, asset := env.listAsset(t)

	if record.ID != 1 {
		t.Fatalf("expected first id 1, got %d", record.ID)
	}
	if record.Status != StatusListed || !record.Active {
		t.Fatalf("unexpected record state: %s active=%v", record.Status, record.Active)
	}
	if env.custody.holders[asset] != vaultAddr {
		t.Fatalf("asset not escrowed in vault")
	}
	if id, ok := env.state.listings[asset]; !ok || id != record.ID {
		t.Fatalf("listing index not registered")
	}
	if ids := env.state.accounts[ownerAddr]; len(ids) != 1 || ids[0] != record.ID {
		t.Fatalf("owner index not updated: %v", ids)
	}
}

func TestListRejectsInvalidTerms(t *testing.T) {
	env := newTestEnv(t)
	asset := assets.Ref{Collection: newTestAddress(0xC0), TokenID: 7}
	env.custody.holders[asset] = ownerAddr

	cases := map[string]Terms{
		"zero price":          {PricePerUnit: big.NewInt(0), Collateral: big.NewInt(100), MinDuration: 1, MaxDuration: 30},
		"low collateral":      {PricePerUnit: big.NewInt(10), Collateral: big.NewInt(69), MinDuration: 1, MaxDuration: 30},
		"zero min duration":   {PricePerUnit: big.NewInt(10), Collateral: big.NewInt(100), MinDuration: 0, MaxDuration: 30},
		"min beyond max":      {PricePerUnit: big.NewInt(10), Collateral: big.NewInt(100), MinDuration: 10, MaxDuration: 5},
		"missing amounts":     {MinDuration: 1, MaxDuration: 30},
		"negative collateral": {PricePerUnit: big.NewInt(10), Collateral: big.NewInt(-1), MinDuration: 1, MaxDuration: 30},
	}
	for name, terms := range cases {
		if _, err := env.engine.List(ownerAddr, asset, terms); !errors.Is(err, ErrInvalidTerms) {
			t.Fatalf("%s: expected ErrInvalidTerms, got %v", name, err)
		}
	}
	// boundary: exactly 7x price is accepted
	terms := Terms{PricePerUnit: big.NewInt(10), Collateral: big.NewInt(70), MinDuration: 1, MaxDuration: 30}
	if _, err := env.engine.List(ownerAddr, asset, terms); err != nil {
		t.Fatalf("boundary collateral rejected: %v", err)
	}
}

func TestListRejectsNonHolder(t *testing.T) {
	env := newTestEnv(t)
	asset := assets.Ref{Collection: newTestAddress(0xC0), TokenID: 7}
	env.custody.holders[asset] = ownerAddr

	if _, err := env.engine.List(otherAddr, asset, defaultTerms()); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestListRejectsDoubleListing(t *testing.T) {
	env := newTestEnv(t)
	_, asset := env.listAsset(t)

	env.custody.holders[asset] = ownerAddr // even with custody restored
	if _, err := env.engine.List(ownerAddr, asset, defaultTerms()); !errors.Is(err, ErrAlreadyListed) {
		t.Fatalf("expected ErrAlreadyListed, got %v", err)
	}
}

func TestRentHappyPath(t *testing.T) {
	env := newTestEnv(t)
	listed, asset := env.listAsset(t)

	record := env.rentAsset(t, listed.ID, 5, 150)

	if record.Status != StatusRented || record.Renter != renterAddr {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.StartTime != env.now || record.EndTime != env.now+5*UnitSeconds {
		t.Fatalf("unexpected term: start=%d end=%d", record.StartTime, record.EndTime)
	}
	if env.custody.holders[asset] != renterAddr {
		t.Fatalf("custody not released to renter")
	}
	// rent 50 splits into fee 2 (5%) and owner share 48; collateral 100
	// stays in the vault
	if got := env.rail.balance(ownerAddr); got.Cmp(big.NewInt(48)) != 0 {
		t.Fatalf("owner share = %s, want 48", got)
	}
	if got := env.rail.balance(collectorAddr); got.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("fee share = %s, want 2", got)
	}
	if env.rail.vault.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("vault = %s, want 100 collateral", env.rail.vault)
	}
	if got := env.rail.balance(renterAddr); got.Sign() != 0 {
		t.Fatalf("renter balance = %s, want 0", got)
	}
	if ids := env.state.accounts[renterAddr]; len(ids) != 1 || ids[0] != record.ID {
		t.Fatalf("renter index not updated: %v", ids)
	}
}

func TestRentExactPaymentSucceeds(t *testing.T) {
	env := newTestEnv(t)
	listed, _ := env.listAsset(t)
	// required = 10*5 + 100 = 150 exactly
	env.rail.credit(renterAddr, 150)
	if _, err := env.engine.Rent(listed.ID, renterAddr, 5, big.NewInt(150)); err != nil {
		t.Fatalf("exact payment rejected: %v", err)
	}
}

func TestRentInsufficientPayment(t *testing.T) {
	env := newTestEnv(t)
	listed, _ := env.listAsset(t)
	env.rail.credit(renterAddr, 149)
	if _, err := env.engine.Rent(listed.ID, renterAddr, 5, big.NewInt(149)); !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
}

func TestRentUnfundedRenterFailsAtomically(t *testing.T) {
	env := newTestEnv(t)
	listed, asset := env.listAsset(t)
	// tendered amount claims 150 but the account holds nothing
	if _, err := env.engine.Rent(listed.ID, renterAddr, 5, big.NewInt(150)); !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("expected ErrPaymentFailed, got %v", err)
	}
	if env.custody.holders[asset] != vaultAddr {
		t.Fatalf("custody moved despite failed payment")
	}
	if env.state.rentals[listed.ID].Status != StatusListed {
		t.Fatalf("status changed despite failed payment")
	}
}

func TestRentInvalidDuration(t *testing.T) {
	env := newTestEnv(t)
	asset := assets.Ref{Collection: newTestAddress(0xC0), TokenID: 9}
	env.custody.holders[asset] = ownerAddr
	terms := Terms{PricePerUnit: big.NewInt(10), Collateral: big.NewInt(100), MinDuration: 2, MaxDuration: 10}
	listed, err := env.engine.List(ownerAddr, asset, terms)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	env.rail.credit(renterAddr, 1000)
	for _, duration := range []uint64{0, 1, 11} {
		if _, err := env.engine.Rent(listed.ID, renterAddr, duration, big.NewInt(1000)); !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("duration %d: expected ErrInvalidDuration, got %v", duration, err)
		}
	}
}

func TestRentUnknownID(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.engine.Rent(42, renterAddr, 1, big.NewInt(1000)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRentTwiceFails(t *testing.T) {
	env := newTestEnv(t)
	listed, _ := env.listAsset(t)
	env.rentAsset(t, listed.ID, 5, 150)
	env.rail.credit(otherAddr, 150)
	if _, err := env.engine.Rent(listed.ID, otherAddr, 5, big.NewInt(150)); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCompleteRefundsCollateral(t *testing.T) {
	env := newTestEnv(t)
	listed, asset := env.listAsset(t)
	env.rentAsset(t, listed.ID, 5, 150)

	env.now += 5 * UnitSeconds
	// permissionless settlement: a third party may complete once expired
	record, err := env.engine.Complete(listed.ID, otherAddr)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if record.Status != StatusCompleted || record.Active {
		t.Fatalf("unexpected record: %+v", record)
	}
	if env.custody.holders[asset] != ownerAddr {
		t.Fatalf("asset not returned to owner")
	}
	if got := env.rail.balance(renterAddr); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("collateral refund = %s, want 100", got)
	}
	if _, open := env.state.listings[asset]; open {
		t.Fatalf("listing index not cleared")
	}
}

func TestCompleteBeforeExpiry(t *testing.T) {
	env := newTestEnv(t)
	listed, _ := env.listAsset(t)
	env.rentAsset(t, listed.ID, 5, 150)

	env.now += 5*UnitSeconds - 1
	if _, err := env.engine.Complete(listed.ID, renterAddr); !errors.Is(err, ErrRentalNotExpired) {
		t.Fatalf("expected ErrRentalNotExpired, got %v", err)
	}
}

func TestCompleteAtBoundary(t *testing.T) {
	env := newTestEnv(t)
	listed, _ := env.listAsset(t)
	env.rentAsset(t, listed.ID, 5, 150)

	env.now += 5 * UnitSeconds
	if _, err := env.engine.Complete(listed.ID, renterAddr); err != nil {
		t.Fatalf("complete at exact end time should succeed: %v", err)
	}
}

func TestCompleteOnListedFails(t *testing.T) {
	env := newTestEnv(t)
	listed, _ := env.listAsset(t)
	if _, err := env.engine.Complete(listed.ID, ownerAddr); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancelReturnsCustody(t *testing.T) {
	env := newTestEnv(t)
	listed, asset := env.listAsset(t)

	record, err := env.engine.Cancel(listed.ID, ownerAddr)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if record.Status != StatusCancelled || record.Active {
		t.Fatalf("unexpected record: %+v", record)
	}
	if env.custody.holders[asset] != ownerAddr {
		t.Fatalf("asset not returned to owner")
	}
	if _, open := env.state.listings[asset]; open {
		t.Fatalf("listing index not cleared")
	}
	if env.rail.vault.Sign() != 0 {
		t.Fatalf("funds moved on cancel")
	}
}

func TestCancelByNonOwner(t *testing.T) {
	env := newTestEnv(t)
	listed, _ := env.listAsset(t)
	if _, err := env.engine.Cancel(listed.ID, otherAddr); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestCancelAfterRentFails(t *testing.T) {
	env := newTestEnv(t)
	listed, _ := env.listAsset(t)
	env.rentAsset(t, listed.ID, 5, 150)
	if _, err := env.engine.Cancel(listed.ID, ownerAddr); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestClaimForfeitsCollateral(t *testing.T) {
	env := newTestEnv(t)
	listed, asset := env.listAsset(t)
	env.rentAsset(t, listed.ID, 2, 120)

	// 3 days pass without a return
	env.now += 3 * UnitSeconds
	record, err := env.engine.Claim(listed.ID, ownerAddr)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if record.Status != StatusCompleted || record.Active {
		t.Fatalf("unexpected record: %+v", record)
	}
	if env.custody.holders[asset] != ownerAddr {
		t.Fatalf("asset not forced back to owner")
	}
	// collateral 100 goes to the owner, not the renter
	if got := env.rail.balance(renterAddr); got.Sign() != 0 {
		t.Fatalf("renter refunded %s on claim", got)
	}
	if got := env.rail.balance(ownerAddr); got.Cmp(big.NewInt(119)) != 0 {
		// 19 owner share of 20 rent (5% fee = 1) plus 100 collateral
		t.Fatalf("owner balance = %s, want 119", got)
	}
	// the renter's late Complete now fails on the status check
	if _, err := env.engine.Complete(listed.ID, renterAddr); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition after claim, got %v", err)
	}
}

func TestClaimAtBoundaryFails(t *testing.T) {
	env := newTestEnv(t)
	listed, _ := env.listAsset(t)
	env.rentAsset(t, listed.ID, 2, 120)

	// now == endTime qualifies for Complete but not Claim
	env.now += 2 * UnitSeconds
	if _, err := env.engine.Claim(listed.ID, ownerAddr); !errors.Is(err, ErrRentalNotExpired) {
		t.Fatalf("expected ErrRentalNotExpired, got %v", err)
	}
}

func TestClaimByNonOwner(t *testing.T) {
	env := newTestEnv(t)
	listed, _ := env.listAsset(t)
	env.rentAsset(t, listed.ID, 2, 120)
	env.now += 3 * UnitSeconds
	if _, err := env.engine.Claim(listed.ID, renterAddr); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestClaimRequiresRenterCustody(t *testing.T) {
	env := newTestEnv(t)
	listed, asset := env.listAsset(t)
	env.rentAsset(t, listed.ID, 2, 120)
	env.now += 3 * UnitSeconds
	// the renter passed the asset on out-of-band
	env.custody.holders[asset] = otherAddr
	if _, err := env.engine.Claim(listed.ID, ownerAddr); !errors.Is(err, ErrCustodyTransferFailed) {
		t.Fatalf("expected ErrCustodyTransferFailed, got %v", err)
	}
}

func TestFeePolicyRole(t *testing.T) {
	env := newTestEnv(t)

	if err := env.engine.SetFeeBps(otherAddr, 100); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if err := env.engine.SetFeeBps(collectorAddr, MaxFeeBps+1); !errors.Is(err, ErrFeeBpsOutOfRange) {
		t.Fatalf("expected ErrFeeBpsOutOfRange, got %v", err)
	}
	if err := env.engine.SetFeeBps(collectorAddr, 1000); err != nil {
		t.Fatalf("collector update rejected: %v", err)
	}
	if env.state.policy.FeeBps != 1000 {
		t.Fatalf("fee bps not stored")
	}

	if err := env.engine.SetFeeCollector(collectorAddr, otherAddr); err != nil {
		t.Fatalf("role transfer rejected: %v", err)
	}
	// the previous collector lost the role
	if err := env.engine.SetFeeBps(collectorAddr, 100); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized after transfer, got %v", err)
	}
	if err := env.engine.SetFeeBps(otherAddr, 100); err != nil {
		t.Fatalf("new collector update rejected: %v", err)
	}
}

func TestPauseGuard(t *testing.T) {
	env := newTestEnv(t)
	env.engine.SetPauses(nativecommon.StaticPauses{"rental": true})

	asset := assets.Ref{Collection: newTestAddress(0xC0), TokenID: 7}
	env.custody.holders[asset] = ownerAddr
	if _, err := env.engine.List(ownerAddr, asset, defaultTerms()); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}

func TestReentrantCallRejected(t *testing.T) {
	env := newTestEnv(t)
	listed, _ := env.listAsset(t)
	env.rail.credit(renterAddr, 150)

	var nested error
	env.rail.payHook = func([20]byte, *big.Int) error {
		// a collaborator calling back into the same rental mid-action
		_, nested = env.engine.Complete(listed.ID, renterAddr)
		return nested
	}
	_, err := env.engine.Rent(listed.ID, renterAddr, 5, big.NewInt(150))
	if !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("expected wrapped payment failure, got %v", err)
	}
	if !errors.Is(nested, ErrReentrantCall) {
		t.Fatalf("expected nested ErrReentrantCall, got %v", nested)
	}
}

func TestEventsEmittedPerTransition(t *testing.T) {
	env := newTestEnv(t)
	recorder := &recordingEmitter{}
	env.engine.SetEmitter(recorder)

	listed, _ := env.listAsset(t)
	env.rentAsset(t, listed.ID, 5, 150)
	env.now += 5 * UnitSeconds
	if _, err := env.engine.Complete(listed.ID, otherAddr); err != nil {
		t.Fatalf("complete: %v", err)
	}

	want := []string{EventTypeListed, EventTypeRented, EventTypeCompleted}
	if len(recorder.emitted) != len(want) {
		t.Fatalf("emitted %d events, want %d", len(recorder.emitted), len(want))
	}
	for i, evt := range recorder.emitted {
		if evt.Type != want[i] {
			t.Fatalf("event %d = %s, want %s", i, evt.Type, want[i])
		}
	}
	if recorder.emitted[1].Attributes["renter"] == "" {
		t.Fatalf("rented event missing renter attribute")
	}
}

func TestOverlongTermCannotWrapExpiry(t *testing.T) {
	env := newTestEnv(t)
	asset := assets.Ref{Collection: newTestAddress(0xC0), TokenID: 7}
	env.custody.holders[asset] = ownerAddr

	// A term long enough to overflow endTime arithmetic never reaches the
	// ledger: an expiry that wraps into the past would let the owner claim
	// the collateral the moment the rental starts.
	huge := uint64(106_751_991_167_302)
	terms := Terms{
		PricePerUnit: big.NewInt(1),
		Collateral:   big.NewInt(100),
		MinDuration:  huge,
		MaxDuration:  huge,
	}
	if _, err := env.engine.List(ownerAddr, asset, terms); !errors.Is(err, ErrInvalidTerms) {
		t.Fatalf("expected ErrInvalidTerms, got %v", err)
	}

	// even a record that bypassed listing validation cannot be rented past
	// the term cap
	env.custody.holders[asset] = vaultAddr
	env.state.rentals[1] = &Rental{
		ID:           1,
		Asset:        asset,
		Owner:        ownerAddr,
		PricePerUnit: big.NewInt(1),
		Collateral:   big.NewInt(100),
		MinDuration:  1,
		MaxDuration:  huge,
		CreatedAt:    env.now,
		Status:       StatusListed,
		Active:       true,
	}
	env.rail.credit(renterAddr, 1_000_000)
	if _, err := env.engine.Rent(1, renterAddr, huge, big.NewInt(1_000_000)); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	if record := env.state.rentals[1]; record.Status != StatusListed || record.EndTime != 0 {
		t.Fatalf("rejected rent mutated the record: %+v", record)
	}
	if got := env.rail.balance(renterAddr); got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("rejected rent moved funds: %s", got)
	}
}

func TestTermCapBoundary(t *testing.T) {
	env := newTestEnv(t)
	asset := assets.Ref{Collection: newTestAddress(0xC0), TokenID: 7}
	env.custody.holders[asset] = ownerAddr

	over := Terms{PricePerUnit: big.NewInt(10), Collateral: big.NewInt(100), MinDuration: 1, MaxDuration: MaxTermUnits + 1}
	if _, err := env.engine.List(ownerAddr, asset, over); !errors.Is(err, ErrInvalidTerms) {
		t.Fatalf("expected ErrInvalidTerms above cap, got %v", err)
	}

	at := Terms{PricePerUnit: big.NewInt(10), Collateral: big.NewInt(100), MinDuration: 1, MaxDuration: MaxTermUnits}
	listed, err := env.engine.List(ownerAddr, asset, at)
	if err != nil {
		t.Fatalf("cap-length term rejected: %v", err)
	}
	record := env.rentAsset(t, listed.ID, MaxTermUnits, 10*int64(MaxTermUnits)+100)
	if record.EndTime <= record.StartTime {
		t.Fatalf("expiry did not advance: start %d end %d", record.StartTime, record.EndTime)
	}
	if want := record.StartTime + int64(MaxTermUnits)*UnitSeconds; record.EndTime != want {
		t.Fatalf("end time = %d, want %d", record.EndTime, want)
	}
}

func TestUnsetFeeRoleCannotBeExercised(t *testing.T) {
	env := newTestEnv(t)
	env.state.policy = nil

	var zeroAddr [20]byte
	if err := env.engine.SetFeeCollector(zeroAddr, otherAddr); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("zero caller seized collector role: %v", err)
	}
	if err := env.engine.SetFeeBps(zeroAddr, 0); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("zero caller updated fee: %v", err)
	}
	if env.state.policy != nil {
		t.Fatalf("rejected role calls stored a policy: %+v", env.state.policy)
	}

	// the bootstrap path still works and the seeded role is exclusive
	if err := env.engine.InitFeePolicy(collectorAddr, DefaultFeeBps); err != nil {
		t.Fatalf("init fee policy: %v", err)
	}
	if err := env.engine.SetFeeBps(zeroAddr, 0); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("zero caller updated seeded policy: %v", err)
	}
	if err := env.engine.SetFeeBps(collectorAddr, 100); err != nil {
		t.Fatalf("collector update rejected: %v", err)
	}
}

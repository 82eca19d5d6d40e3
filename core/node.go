package core

import (
	"math/big"
	"sync"
	"time"

	"leasehub/core/events"
	"leasehub/core/state"
	"leasehub/native/assets"
	"leasehub/native/bank"
	nativecommon "leasehub/native/common"
	"leasehub/native/rental"
	"leasehub/observability"
	"leasehub/storage"
)

// VaultAddress is the module custodian account. Escrowed assets and retained
// collateral are held under this address while a rental is open.
var VaultAddress = [20]byte{
	0x1e, 0xa5, 0xeb, 0x0b, 0x1e, 0xa5, 0xeb, 0x0b, 0x1e, 0xa5,
	0xeb, 0x0b, 0x1e, 0xa5, 0xeb, 0x0b, 0x1e, 0xa5, 0xeb, 0x0b,
}

// Node owns the database, the state manager and the native engines, and
// serializes every external action: no two actions interleave their reads
// and writes to the same record or listing entry. Each action runs against a
// buffered state session which commits only after the whole action
// succeeded, so a failed action leaves no partial trace.
type Node struct {
	mu      sync.Mutex
	db      storage.Database
	manager *state.Manager
	rentals *rental.Engine
	assets  *assets.Registry
	bank    *bank.Ledger
	emitter events.Emitter
}

// NodeOption customises node construction.
type NodeOption func(*Node)

// WithEmitter installs the emitter receiving committed-action events.
func WithEmitter(emitter events.Emitter) NodeOption {
	return func(n *Node) {
		if emitter != nil {
			n.emitter = emitter
		}
	}
}

// WithPauses installs the operator pause switches.
func WithPauses(p nativecommon.PauseView) NodeOption {
	return func(n *Node) { n.rentals.SetPauses(p) }
}

// WithNowFunc overrides the engine time source; used in tests.
func WithNowFunc(now func() int64) NodeOption {
	return func(n *Node) { n.rentals.SetNowFunc(now) }
}

// vaultRail adapts the bank ledger to the engine's payment rail: Collect
// pulls funds into the vault, Pay disburses from it.
type vaultRail struct {
	ledger *bank.Ledger
	vault  [20]byte
}

func (r vaultRail) Collect(from [20]byte, amount *big.Int) error {
	return r.ledger.Transfer(from, r.vault, amount)
}

func (r vaultRail) Pay(to [20]byte, amount *big.Int) error {
	return r.ledger.Transfer(r.vault, to, amount)
}

// NewNode assembles the marketplace over the given database.
func NewNode(db storage.Database, opts ...NodeOption) *Node {
	n := &Node{
		db:      db,
		manager: state.NewManager(db),
		rentals: rental.NewEngine(VaultAddress),
		assets:  assets.NewRegistry(),
		bank:    bank.NewLedger(),
		emitter: events.NoopEmitter{},
	}
	n.rentals.SetCustody(n.assets)
	n.rentals.SetPayments(vaultRail{ledger: n.bank, vault: VaultAddress})
	n.assets.RegisterReceiver(VaultAddress, n.rentals)
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// InitFeePolicy seeds the fee policy on first boot; it never overwrites an
// existing policy.
func (n *Node) InitFeePolicy(collector [20]byte, feeBps uint32) error {
	return n.withAction("init_fee_policy", func() error {
		return n.rentals.InitFeePolicy(collector, feeBps)
	})
}

// bufferEmitter holds events raised during an action so they are delivered
// only after the session commits.
type bufferEmitter struct {
	pending []*events.Event
}

func (b *bufferEmitter) Emit(evt *events.Event) {
	b.pending = append(b.pending, evt)
}

// withAction runs fn as one indivisible action: it binds a fresh session to
// every engine, commits on success, discards on failure, and releases
// buffered events only once the commit landed.
func (n *Node) withAction(action string, fn func() error) error {
	start := time.Now()
	n.mu.Lock()
	defer n.mu.Unlock()
	session := n.manager.Session()
	buffer := &bufferEmitter{}
	n.rentals.SetState(session)
	n.rentals.SetEmitter(buffer)
	n.assets.SetState(session)
	n.bank.SetState(session)
	err := fn()
	if err == nil {
		err = session.Commit()
	} else {
		session.Discard()
	}
	if err == nil {
		for _, evt := range buffer.pending {
			n.emitter.Emit(evt)
		}
	}
	observability.Rental().Observe(action, start, err)
	return err
}

func (n *Node) readSession() *state.Session {
	return n.manager.Session()
}

// List escrows the caller's asset and opens a Listed record.
func (n *Node) List(caller [20]byte, asset assets.Ref, terms rental.Terms) (*rental.Rental, error) {
	var record *rental.Rental
	err := n.withAction("list", func() error {
		var err error
		record, err = n.rentals.List(caller, asset, terms)
		return err
	})
	return record, err
}

// Rent starts a rental term for the caller.
func (n *Node) Rent(id uint64, caller [20]byte, duration uint64, paid *big.Int) (*rental.Rental, error) {
	var record *rental.Rental
	err := n.withAction("rent", func() error {
		var err error
		record, err = n.rentals.Rent(id, caller, duration, paid)
		return err
	})
	return record, err
}

// Complete settles an expired rental, refunding the collateral.
func (n *Node) Complete(id uint64, caller [20]byte) (*rental.Rental, error) {
	var record *rental.Rental
	err := n.withAction("complete", func() error {
		var err error
		record, err = n.rentals.Complete(id, caller)
		return err
	})
	return record, err
}

// Cancel withdraws a listing before any rental began.
func (n *Node) Cancel(id uint64, caller [20]byte) (*rental.Rental, error) {
	var record *rental.Rental
	err := n.withAction("cancel", func() error {
		var err error
		record, err = n.rentals.Cancel(id, caller)
		return err
	})
	return record, err
}

// Claim forfeits the collateral to the owner after a renter default.
func (n *Node) Claim(id uint64, caller [20]byte) (*rental.Rental, error) {
	var record *rental.Rental
	err := n.withAction("claim", func() error {
		var err error
		record, err = n.rentals.Claim(id, caller)
		return err
	})
	return record, err
}

// SetFeeBps updates the platform fee; collector only.
func (n *Node) SetFeeBps(caller [20]byte, feeBps uint32) error {
	return n.withAction("set_fee_bps", func() error {
		return n.rentals.SetFeeBps(caller, feeBps)
	})
}

// SetFeeCollector hands the fee-collector role to another account; collector
// only.
func (n *Node) SetFeeCollector(caller, collector [20]byte) error {
	return n.withAction("set_fee_collector", func() error {
		return n.rentals.SetFeeCollector(caller, collector)
	})
}

// MintAsset registers a new token with its initial holder.
func (n *Node) MintAsset(asset assets.Ref, to [20]byte) error {
	return n.withAction("mint_asset", func() error {
		return n.assets.Mint(asset, to)
	})
}

// MintFunds credits an account with newly issued funds.
func (n *Node) MintFunds(addr [20]byte, amount *big.Int) error {
	return n.withAction("mint_funds", func() error {
		return n.bank.Mint(addr, amount)
	})
}

// Rental returns the record with the given identifier.
func (n *Node) Rental(id uint64) (*rental.Rental, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	record, ok, err := n.readSession().RentalGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, rental.ErrNotFound
	}
	return record, nil
}

// RentalsByAccount returns the ordered rental identifiers the account has
// participated in as owner or renter.
func (n *Node) RentalsByAccount(addr [20]byte) ([]uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.readSession().AccountRentals(addr)
}

// AssetHolder returns the current custody holder of the asset.
func (n *Node) AssetHolder(asset assets.Ref) ([20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assets.SetState(n.readSession())
	return n.assets.CurrentHolder(asset)
}

// Balance returns the account's fund balance.
func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bank.SetState(n.readSession())
	return n.bank.Balance(addr)
}

// FeePolicy returns the current fee policy.
func (n *Node) FeePolicy() (*rental.FeePolicy, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	policy, ok, err := n.readSession().FeePolicyGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return &rental.FeePolicy{FeeBps: rental.DefaultFeeBps}, nil
	}
	return policy, nil
}

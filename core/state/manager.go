package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"leasehub/native/assets"
	"leasehub/native/rental"
	"leasehub/storage"
)

// Manager provides typed access to the marketplace state stored in a
// key-value database. All mutation happens through a Session so that every
// external action commits its writes together or not at all.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Session opens a buffered view over the database. Reads see pending
// writes; nothing reaches the database until Commit.
func (m *Manager) Session() *Session {
	return &Session{
		mgr:     m,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

// Session buffers writes on top of the manager's database. It satisfies the
// state interfaces of the rental engine, the asset registry and the bank
// ledger, which lets a single action span all three and still commit
// atomically.
type Session struct {
	mgr     *Manager
	dirty   map[string][]byte
	deleted map[string]struct{}
}

func (s *Session) get(key []byte) ([]byte, bool, error) {
	if _, gone := s.deleted[string(key)]; gone {
		return nil, false, nil
	}
	if value, ok := s.dirty[string(key)]; ok {
		return value, true, nil
	}
	value, err := s.mgr.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *Session) put(key, value []byte) {
	delete(s.deleted, string(key))
	s.dirty[string(key)] = value
}

func (s *Session) del(key []byte) {
	delete(s.dirty, string(key))
	s.deleted[string(key)] = struct{}{}
}

// Commit flushes all buffered writes to the database.
func (s *Session) Commit() error {
	for key := range s.deleted {
		if err := s.mgr.db.Delete([]byte(key)); err != nil {
			return err
		}
	}
	for key, value := range s.dirty {
		if err := s.mgr.db.Put([]byte(key), value); err != nil {
			return err
		}
	}
	s.Discard()
	return nil
}

// Discard drops all buffered writes, leaving the database untouched.
func (s *Session) Discard() {
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]struct{})
}

// storedRental mirrors rental.Rental with RLP-encodable field types
// (timestamps as uint64).
type storedRental struct {
	ID           uint64
	Collection   [20]byte
	TokenID      uint64
	Owner        [20]byte
	Renter       [20]byte
	PricePerUnit *big.Int
	Collateral   *big.Int
	MinDuration  uint64
	MaxDuration  uint64
	StartTime    uint64
	EndTime      uint64
	CreatedAt    uint64
	Status       uint8
	Active       bool
}

func toStored(r *rental.Rental) *storedRental {
	return &storedRental{
		ID:           r.ID,
		Collection:   r.Asset.Collection,
		TokenID:      r.Asset.TokenID,
		Owner:        r.Owner,
		Renter:       r.Renter,
		PricePerUnit: r.PricePerUnit,
		Collateral:   r.Collateral,
		MinDuration:  r.MinDuration,
		MaxDuration:  r.MaxDuration,
		StartTime:    uint64(r.StartTime),
		EndTime:      uint64(r.EndTime),
		CreatedAt:    uint64(r.CreatedAt),
		Status:       uint8(r.Status),
		Active:       r.Active,
	}
}

func fromStored(s *storedRental) *rental.Rental {
	return &rental.Rental{
		ID:           s.ID,
		Asset:        assets.Ref{Collection: s.Collection, TokenID: s.TokenID},
		Owner:        s.Owner,
		Renter:       s.Renter,
		PricePerUnit: s.PricePerUnit,
		Collateral:   s.Collateral,
		MinDuration:  s.MinDuration,
		MaxDuration:  s.MaxDuration,
		StartTime:    int64(s.StartTime),
		EndTime:      int64(s.EndTime),
		CreatedAt:    int64(s.CreatedAt),
		Status:       rental.Status(s.Status),
		Active:       s.Active,
	}
}

// RentalPut stores the sanitized record.
func (s *Session) RentalPut(r *rental.Rental) error {
	sanitized, err := rental.Sanitize(r)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(toStored(sanitized))
	if err != nil {
		return fmt.Errorf("state: encode rental %d: %w", sanitized.ID, err)
	}
	s.put(rentalRecordKey(sanitized.ID), encoded)
	return nil
}

// RentalGet loads the record with the given identifier.
func (s *Session) RentalGet(id uint64) (*rental.Rental, bool, error) {
	raw, ok, err := s.get(rentalRecordKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	var stored storedRental
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("state: decode rental %d: %w", id, err)
	}
	return fromStored(&stored), true, nil
}

// RentalNextID allocates the next monotonic rental identifier, starting at 1.
func (s *Session) RentalNextID() (uint64, error) {
	var next uint64 = 1
	raw, ok, err := s.get(rentalNextIDKey)
	if err != nil {
		return 0, err
	}
	if ok {
		if err := rlp.DecodeBytes(raw, &next); err != nil {
			return 0, fmt.Errorf("state: decode next id: %w", err)
		}
	}
	encoded, err := rlp.EncodeToBytes(next + 1)
	if err != nil {
		return 0, err
	}
	s.put(rentalNextIDKey, encoded)
	return next, nil
}

// ListingGet returns the open rental identifier for the asset, if any.
func (s *Session) ListingGet(asset assets.Ref) (uint64, bool, error) {
	raw, ok, err := s.get(rentalListingKey(asset))
	if err != nil || !ok {
		return 0, false, err
	}
	var id uint64
	if err := rlp.DecodeBytes(raw, &id); err != nil {
		return 0, false, fmt.Errorf("state: decode listing: %w", err)
	}
	return id, true, nil
}

// ListingPut records the asset's open rental identifier.
func (s *Session) ListingPut(asset assets.Ref, id uint64) error {
	encoded, err := rlp.EncodeToBytes(id)
	if err != nil {
		return err
	}
	s.put(rentalListingKey(asset), encoded)
	return nil
}

// ListingClear removes the asset's listing entry. Clearing an absent entry
// is a no-op.
func (s *Session) ListingClear(asset assets.Ref) error {
	s.del(rentalListingKey(asset))
	return nil
}

// AccountRentals returns the ordered identifiers of every rental the account
// has participated in.
func (s *Session) AccountRentals(addr [20]byte) ([]uint64, error) {
	raw, ok, err := s.get(rentalAccountKey(addr))
	if err != nil || !ok {
		return nil, err
	}
	var ids []uint64
	if err := rlp.DecodeBytes(raw, &ids); err != nil {
		return nil, fmt.Errorf("state: decode account index: %w", err)
	}
	return ids, nil
}

// AccountRentalsAppend appends the identifier to the account's history. The
// index is append-only and never pruned.
func (s *Session) AccountRentalsAppend(addr [20]byte, id uint64) error {
	ids, err := s.AccountRentals(addr)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(append(ids, id))
	if err != nil {
		return err
	}
	s.put(rentalAccountKey(addr), encoded)
	return nil
}

type storedFeePolicy struct {
	Collector [20]byte
	FeeBps    uint32
}

// FeePolicyGet loads the platform fee policy.
func (s *Session) FeePolicyGet() (*rental.FeePolicy, bool, error) {
	raw, ok, err := s.get(rentalFeePolicyKey)
	if err != nil || !ok {
		return nil, false, err
	}
	var stored storedFeePolicy
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("state: decode fee policy: %w", err)
	}
	return &rental.FeePolicy{Collector: stored.Collector, FeeBps: stored.FeeBps}, true, nil
}

// FeePolicyPut stores the platform fee policy.
func (s *Session) FeePolicyPut(policy *rental.FeePolicy) error {
	sanitized, err := policy.Sanitize()
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(&storedFeePolicy{Collector: sanitized.Collector, FeeBps: sanitized.FeeBps})
	if err != nil {
		return err
	}
	s.put(rentalFeePolicyKey, encoded)
	return nil
}

// AssetHolderGet returns the account holding the asset, if minted.
func (s *Session) AssetHolderGet(asset assets.Ref) ([20]byte, bool, error) {
	raw, ok, err := s.get(assetHolderKey(asset))
	if err != nil || !ok {
		return [20]byte{}, false, err
	}
	var holder [20]byte
	if err := rlp.DecodeBytes(raw, &holder); err != nil {
		return [20]byte{}, false, fmt.Errorf("state: decode holder: %w", err)
	}
	return holder, true, nil
}

// AssetHolderPut records the asset's holder.
func (s *Session) AssetHolderPut(asset assets.Ref, holder [20]byte) error {
	encoded, err := rlp.EncodeToBytes(holder)
	if err != nil {
		return err
	}
	s.put(assetHolderKey(asset), encoded)
	return nil
}

// BalanceGet returns the account balance; unknown accounts hold zero.
func (s *Session) BalanceGet(addr [20]byte) (*big.Int, error) {
	raw, ok, err := s.get(bankBalanceKey(addr))
	if err != nil || !ok {
		return big.NewInt(0), err
	}
	balance := new(big.Int)
	if err := rlp.DecodeBytes(raw, balance); err != nil {
		return nil, fmt.Errorf("state: decode balance: %w", err)
	}
	return balance, nil
}

// BalancePut stores the account balance.
func (s *Session) BalancePut(addr [20]byte, balance *big.Int) error {
	if balance == nil || balance.Sign() < 0 {
		return fmt.Errorf("state: balance must be non-negative")
	}
	encoded, err := rlp.EncodeToBytes(balance)
	if err != nil {
		return err
	}
	s.put(bankBalanceKey(addr), encoded)
	return nil
}

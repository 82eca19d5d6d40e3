package assets

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	errNilState = errors.New("asset registry: state not configured")

	// ErrAssetUnknown is returned when the referenced token has never been
	// minted.
	ErrAssetUnknown = errors.New("asset registry: unknown asset")
	// ErrAssetExists is returned when minting a token that already has a
	// holder.
	ErrAssetExists = errors.New("asset registry: asset already minted")
	// ErrNotHolder is returned when a transfer names a sender that does not
	// currently hold the asset.
	ErrNotHolder = errors.New("asset registry: sender does not hold asset")
	// ErrTransferRejected is returned when the receiving party registered an
	// acceptance hook and the hook did not acknowledge the transfer.
	ErrTransferRejected = errors.New("asset registry: receiver rejected transfer")
)

// ReceiveAck is the fixed acknowledgement a registered receiver hook must
// return for an inbound custody transfer to be considered complete.
var ReceiveAck = [4]byte{0x6c, 0x73, 0x68, 0x62}

// Ref identifies a unique token as a (collection, token id) pair.
type Ref struct {
	Collection [20]byte
	TokenID    uint64
}

func (r Ref) String() string {
	return fmt.Sprintf("%x/%d", r.Collection, r.TokenID)
}

// Receiver is the acceptance hook invoked when custody of an asset moves to
// an address that opted in. Returning anything other than ReceiveAck aborts
// the transfer.
type Receiver interface {
	OnAssetReceived(asset Ref, from [20]byte) [4]byte
}

type registryState interface {
	AssetHolderGet(asset Ref) ([20]byte, bool, error)
	AssetHolderPut(asset Ref, holder [20]byte) error
}

// Registry is the authoritative token-ownership ledger. It records which
// account holds each token and moves custody between accounts; it never
// touches funds.
type Registry struct {
	state     registryState
	receivers map[[20]byte]Receiver
}

// NewRegistry creates a registry with no receivers registered.
func NewRegistry() *Registry {
	return &Registry{receivers: make(map[[20]byte]Receiver)}
}

// SetState wires the registry to the persistence layer.
func (r *Registry) SetState(state registryState) { r.state = state }

// RegisterReceiver installs an acceptance hook for the given address. Passing
// a nil receiver removes the hook.
func (r *Registry) RegisterReceiver(addr [20]byte, recv Receiver) {
	if recv == nil {
		delete(r.receivers, addr)
		return
	}
	r.receivers[addr] = recv
}

// Mint assigns an unowned token to the supplied holder.
func (r *Registry) Mint(asset Ref, to [20]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if _, ok, err := r.state.AssetHolderGet(asset); err != nil {
		return err
	} else if ok {
		return ErrAssetExists
	}
	return r.state.AssetHolderPut(asset, to)
}

// CurrentHolder returns the account holding custody of the asset.
func (r *Registry) CurrentHolder(asset Ref) ([20]byte, error) {
	if r == nil || r.state == nil {
		return [20]byte{}, errNilState
	}
	holder, ok, err := r.state.AssetHolderGet(asset)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, ErrAssetUnknown
	}
	return holder, nil
}

// TransferCustody moves the asset from its current holder to the recipient.
// The sender must hold the asset, and a receiver hook registered for the
// recipient must acknowledge the transfer.
func (r *Registry) TransferCustody(asset Ref, from, to [20]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	holder, ok, err := r.state.AssetHolderGet(asset)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAssetUnknown
	}
	if !bytes.Equal(holder[:], from[:]) {
		return ErrNotHolder
	}
	if recv, hooked := r.receivers[to]; hooked {
		if ack := recv.OnAssetReceived(asset, from); ack != ReceiveAck {
			return ErrTransferRejected
		}
	}
	return r.state.AssetHolderPut(asset, to)
}

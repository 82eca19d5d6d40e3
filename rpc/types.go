package rpc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"leasehub/native/assets"
	"leasehub/native/bank"
	nativecommon "leasehub/native/common"
	"leasehub/native/rental"
)

// Domain error codes. Callers can distinguish retryable failures
// (precondition) from permanent ones (forbidden, conflict).
const (
	codeRentalInvalidParams = -32021
	codeRentalNotFound      = -32022
	codeRentalForbidden     = -32023
	codeRentalConflict      = -32024
	codeRentalInternal      = -32025
	codeRentalPrecondition  = -32026
	codeRentalPaused        = -32027
)

type rentalListParams struct {
	Caller       string `json:"caller"`
	Collection   string `json:"collection"`
	TokenID      uint64 `json:"tokenId"`
	PricePerUnit string `json:"pricePerUnit"`
	Collateral   string `json:"collateral"`
	MinDuration  uint64 `json:"minDuration"`
	MaxDuration  uint64 `json:"maxDuration"`
}

type rentalRentParams struct {
	ID       uint64 `json:"id"`
	Caller   string `json:"caller"`
	Duration uint64 `json:"duration"`
	Amount   string `json:"amount"`
}

type rentalActorParams struct {
	ID     uint64 `json:"id"`
	Caller string `json:"caller"`
}

type rentalIDParams struct {
	ID uint64 `json:"id"`
}

type accountParams struct {
	Account string `json:"account"`
}

type assetParams struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"tokenId"`
}

type assetMintParams struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"tokenId"`
	To         string `json:"to"`
}

type bankMintParams struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type setFeeBpsParams struct {
	Caller string `json:"caller"`
	FeeBps uint32 `json:"feeBps"`
}

type setFeeCollectorParams struct {
	Caller    string `json:"caller"`
	Collector string `json:"collector"`
}

type rentalJSON struct {
	ID           uint64  `json:"id"`
	Collection   string  `json:"collection"`
	TokenID      uint64  `json:"tokenId"`
	Owner        string  `json:"owner"`
	Renter       *string `json:"renter,omitempty"`
	PricePerUnit string  `json:"pricePerUnit"`
	Collateral   string  `json:"collateral"`
	MinDuration  uint64  `json:"minDuration"`
	MaxDuration  uint64  `json:"maxDuration"`
	StartTime    int64   `json:"startTime,omitempty"`
	EndTime      int64   `json:"endTime,omitempty"`
	CreatedAt    int64   `json:"createdAt"`
	Status       string  `json:"status"`
	Active       bool    `json:"active"`
}

func rentalToJSON(r *rental.Rental) *rentalJSON {
	if r == nil {
		return nil
	}
	out := &rentalJSON{
		ID:           r.ID,
		Collection:   "0x" + hex.EncodeToString(r.Asset.Collection[:]),
		TokenID:      r.Asset.TokenID,
		Owner:        "0x" + hex.EncodeToString(r.Owner[:]),
		PricePerUnit: r.PricePerUnit.String(),
		Collateral:   r.Collateral.String(),
		MinDuration:  r.MinDuration,
		MaxDuration:  r.MaxDuration,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		CreatedAt:    r.CreatedAt,
		Status:       r.Status.String(),
		Active:       r.Active,
	}
	if r.Renter != ([20]byte{}) {
		renter := "0x" + hex.EncodeToString(r.Renter[:])
		out.Renter = &renter
	}
	return out
}

func encodeAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func parseAddress(s string) ([20]byte, *RPCError) {
	var addr [20]byte
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, &RPCError{Code: codeRentalInvalidParams, Message: "invalid_params", Data: fmt.Sprintf("invalid address: %v", err)}
	}
	if len(decoded) != 20 {
		return addr, &RPCError{Code: codeRentalInvalidParams, Message: "invalid_params", Data: "address must be 20 bytes"}
	}
	copy(addr[:], decoded)
	return addr, nil
}

func parseAmount(s string) (*big.Int, *RPCError) {
	trimmed := strings.TrimSpace(s)
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, &RPCError{Code: codeRentalInvalidParams, Message: "invalid_params", Data: fmt.Sprintf("invalid amount %q", s)}
	}
	return amount, nil
}

func parseAssetRef(collection string, tokenID uint64) (assets.Ref, *RPCError) {
	addr, rpcErr := parseAddress(collection)
	if rpcErr != nil {
		return assets.Ref{}, rpcErr
	}
	return assets.Ref{Collection: addr, TokenID: tokenID}, nil
}

// domainError maps an engine error to its JSON-RPC representation. The HTTP
// status groups the codes coarsely; the specific code is what clients key
// off.
func domainError(err error) (int, *RPCError) {
	data := err.Error()
	switch {
	case errors.Is(err, rental.ErrInvalidTerms),
		errors.Is(err, rental.ErrInvalidDuration),
		errors.Is(err, rental.ErrFeeBpsOutOfRange),
		errors.Is(err, bank.ErrInvalidAmount):
		return http.StatusBadRequest, &RPCError{Code: codeRentalInvalidParams, Message: "invalid_params", Data: data}
	case errors.Is(err, rental.ErrNotFound),
		errors.Is(err, assets.ErrAssetUnknown):
		return http.StatusNotFound, &RPCError{Code: codeRentalNotFound, Message: "not_found", Data: data}
	case errors.Is(err, rental.ErrNotOwner),
		errors.Is(err, rental.ErrNotAuthorized):
		return http.StatusForbidden, &RPCError{Code: codeRentalForbidden, Message: "forbidden", Data: data}
	case errors.Is(err, rental.ErrAlreadyListed),
		errors.Is(err, rental.ErrInvalidTransition),
		errors.Is(err, rental.ErrReentrantCall),
		errors.Is(err, assets.ErrAssetExists):
		return http.StatusConflict, &RPCError{Code: codeRentalConflict, Message: "conflict", Data: data}
	case errors.Is(err, rental.ErrRentalNotExpired),
		errors.Is(err, rental.ErrInsufficientPayment),
		errors.Is(err, rental.ErrPaymentFailed),
		errors.Is(err, rental.ErrCustodyTransferFailed),
		errors.Is(err, bank.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, &RPCError{Code: codeRentalPrecondition, Message: "precondition_failed", Data: data}
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable, &RPCError{Code: codeRentalPaused, Message: "paused", Data: data}
	default:
		return http.StatusInternalServerError, &RPCError{Code: codeRentalInternal, Message: "internal_error", Data: data}
	}
}

func writeDomainError(w http.ResponseWriter, id interface{}, err error) {
	status, rpcErr := domainError(err)
	writeError(w, status, id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
}

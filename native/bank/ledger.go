package bank

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	errNilState = errors.New("bank: state not configured")

	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("bank: amount must be non-negative")
	// ErrInsufficientFunds is returned when the sender balance cannot cover
	// the transfer.
	ErrInsufficientFunds = errors.New("bank: insufficient funds")
)

type ledgerState interface {
	BalanceGet(addr [20]byte) (*big.Int, error)
	BalancePut(addr [20]byte, balance *big.Int) error
}

// Ledger is the fund-movement rail used by settlement. Every transfer either
// fully succeeds or leaves both balances untouched.
type Ledger struct {
	state ledgerState
}

// NewLedger constructs an unwired ledger; SetState must be called before use.
func NewLedger() *Ledger { return &Ledger{} }

// SetState wires the ledger to the persistence layer.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// Balance returns the current balance for the account. Unknown accounts hold
// zero.
func (l *Ledger) Balance(addr [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	balance, err := l.state.BalanceGet(addr)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

// Mint credits the account with newly issued funds.
func (l *Ledger) Mint(addr [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	balance, err := l.Balance(addr)
	if err != nil {
		return err
	}
	return l.state.BalancePut(addr, new(big.Int).Add(balance, amount))
}

// Transfer moves amount from one account to the other. A zero amount is a
// no-op.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	fromBalance, err := l.Balance(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, fromBalance, amount)
	}
	toBalance, err := l.Balance(to)
	if err != nil {
		return err
	}
	if err := l.state.BalancePut(from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.state.BalancePut(to, new(big.Int).Add(toBalance, amount))
}

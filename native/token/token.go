package token

import (
	"errors"
	"math/big"

	"agentvault/core/types"
	"agentvault/crypto"
)

var (
	errNilState            = errors.New("token ledger: state not configured")
	ErrInvalidAmount       = errors.New("token ledger: amount must be positive")
	ErrInsufficientBalance = errors.New("token ledger: insufficient balance")
)

// accountState is the slice of persistence the token ledger needs: loading and
// storing per-address asset accounts.
type accountState interface {
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
}

// Custody is the asset interface the vault engine consumes. Amounts are
// fixed-point integers in the asset's native unit scale.
type Custody interface {
	TransferFrom(holder, vault crypto.Address, amount *big.Int) error
	Transfer(from, recipient crypto.Address, amount *big.Int) error
	BalanceOf(addr crypto.Address) (*big.Int, error)
}

// Minter is the optional mint capability used by the engine's best-effort
// top-up step. Production assets do not expose it.
type Minter interface {
	Mint(to crypto.Address, amount *big.Int) error
}

// Ledger moves balances of a single fungible asset across accounts held in the
// state backend. It is the in-custody representation of the external token.
type Ledger struct {
	state accountState
}

// NewLedger binds a token ledger to the provided account state. The state is
// typically a per-operation transaction so balance moves commit atomically
// with the rest of the operation.
func NewLedger(state accountState) *Ledger {
	return &Ledger{state: state}
}

// BalanceOf returns the asset balance of the address, zero for unknown
// accounts.
func (l *Ledger) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	acc, err := l.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acc.Balance), nil
}

// Transfer moves amount from one account to another, rejecting overdrafts.
func (l *Ledger) Transfer(from, recipient crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	fromAcc, err := l.loadAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toAcc, err := l.loadAccount(recipient)
	if err != nil {
		return err
	}

	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)

	if err := l.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return l.state.PutAccount(recipient, toAcc)
}

// TransferFrom pulls amount from the holder into vault custody. In this
// custody model the holder has already authorised the vault by submitting the
// operation, so it reduces to a plain transfer.
func (l *Ledger) TransferFrom(holder, vault crypto.Address, amount *big.Int) error {
	return l.Transfer(holder, vault, amount)
}

// Mint credits amount to the target account out of thin air. Only exposed for
// mock assets used in development and tests.
func (l *Ledger) Mint(to crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	acc, err := l.loadAccount(to)
	if err != nil {
		return err
	}
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return l.state.PutAccount(to, acc)
}

func (l *Ledger) loadAccount(addr crypto.Address) (*types.Account, error) {
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = &types.Account{}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc, nil
}

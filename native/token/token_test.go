package token

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"agentvault/core/types"
	"agentvault/crypto"
)

type mockAccountState struct {
	accounts map[string]*types.Account
}

func newMockAccountState() *mockAccountState {
	return &mockAccountState{accounts: make(map[string]*types.Account)}
}

func (m *mockAccountState) GetAccount(addr crypto.Address) (*types.Account, error) {
	return m.accounts[string(addr.Bytes())], nil
}

func (m *mockAccountState) PutAccount(addr crypto.Address, account *types.Account) error {
	m.accounts[string(addr.Bytes())] = account
	return nil
}

func makeAddress(fill byte) crypto.Address {
	return crypto.MustNewAddress(bytes.Repeat([]byte{fill}, crypto.AddressLength))
}

func TestTransferMovesBalance(t *testing.T) {
	state := newMockAccountState()
	ledger := NewLedger(state)
	from := makeAddress(0x01)
	to := makeAddress(0x02)

	if err := ledger.Mint(from, big.NewInt(100)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := ledger.Transfer(from, to, big.NewInt(30)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	fromBalance, err := ledger.BalanceOf(from)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if fromBalance.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("expected sender balance 70, got %s", fromBalance)
	}
	toBalance, err := ledger.BalanceOf(to)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if toBalance.Cmp(big.NewInt(30)) != 0 {
		t.Fatalf("expected recipient balance 30, got %s", toBalance)
	}
}

func TestTransferRejectsOverdraft(t *testing.T) {
	ledger := NewLedger(newMockAccountState())
	from := makeAddress(0x01)
	to := makeAddress(0x02)

	if err := ledger.Transfer(from, to, big.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if err := ledger.Mint(from, big.NewInt(10)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := ledger.Transfer(from, to, big.NewInt(11)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	balance, err := ledger.BalanceOf(from)
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if balance.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("failed transfer must not move funds, got %s", balance)
	}
}

func TestTransferRejectsNonPositiveAmounts(t *testing.T) {
	ledger := NewLedger(newMockAccountState())
	from := makeAddress(0x01)
	to := makeAddress(0x02)

	if err := ledger.Transfer(from, to, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if err := ledger.Transfer(from, to, big.NewInt(-5)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
	if err := ledger.Transfer(from, to, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for nil, got %v", err)
	}
	if err := ledger.Mint(from, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative mint, got %v", err)
	}
}

func TestBalanceOfUnknownAccountIsZero(t *testing.T) {
	ledger := NewLedger(newMockAccountState())

	balance, err := ledger.BalanceOf(makeAddress(0x09))
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("expected zero balance, got %s", balance)
	}
}

func TestLedgerRequiresState(t *testing.T) {
	var ledger *Ledger
	if _, err := ledger.BalanceOf(makeAddress(0x01)); err == nil {
		t.Fatal("expected error from nil ledger")
	}
	if err := NewLedger(nil).Mint(makeAddress(0x01), big.NewInt(1)); err == nil {
		t.Fatal("expected error without state backend")
	}
}

package vault

import "math/big"

// LedgerState captures the global accounting state for a single vault. Amount
// values are expressed as big integers in the custodied asset's native unit
// scale to keep the arithmetic deterministic.
type LedgerState struct {
	// TotalShares is the outstanding share supply across all holders.
	TotalShares *big.Int
	// TotalManagedAssets is the asset value the ledger believes it custodies.
	// It only moves via deposit, withdraw, or yield realization.
	TotalManagedAssets *big.Int
	// PendingYield is the reported-but-unrealized yield claim. It never
	// exceeds what was reported and only decreases by realized amounts.
	PendingYield *big.Int
	// EarnedFees is the cumulative performance fee routed to the fee
	// recipient. Monotonically non-decreasing.
	EarnedFees *big.Int
	// LastExecutedAt records the unix timestamp of the most recent
	// successful realization, zero if none has occurred.
	LastExecutedAt int64
}

// Clone returns a deep copy of the ledger state.
func (s *LedgerState) Clone() *LedgerState {
	if s == nil {
		return nil
	}
	clone := &LedgerState{LastExecutedAt: s.LastExecutedAt}
	clone.TotalShares = cloneBigInt(s.TotalShares)
	clone.TotalManagedAssets = cloneBigInt(s.TotalManagedAssets)
	clone.PendingYield = cloneBigInt(s.PendingYield)
	clone.EarnedFees = cloneBigInt(s.EarnedFees)
	return clone
}

func (s *LedgerState) normalize() {
	if s.TotalShares == nil {
		s.TotalShares = big.NewInt(0)
	}
	if s.TotalManagedAssets == nil {
		s.TotalManagedAssets = big.NewInt(0)
	}
	if s.PendingYield == nil {
		s.PendingYield = big.NewInt(0)
	}
	if s.EarnedFees == nil {
		s.EarnedFees = big.NewInt(0)
	}
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

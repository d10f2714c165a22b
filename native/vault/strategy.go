package vault

import (
	"math/big"

	"agentvault/crypto"
)

// Strategy is the polymorphism point shared by all strategy variants: the
// yield-compounding vault implemented here, and future variants (lending,
// rebalancing) that reuse the same registry linkage and trigger protocol.
type Strategy interface {
	// Execute runs the strategy's action and reports whether it executed
	// along with the amount produced.
	Execute(caller crypto.Address) (bool, *big.Int, error)
	// CheckCondition reports whether the strategy's action could make
	// progress against current state.
	CheckCondition() (bool, error)
	// HealthFactor returns the strategy's fixed-point solvency ratio.
	HealthFactor() (*big.Int, error)
}

// Upkeep is the check/perform trigger shape external scheduling infrastructure
// drives. It must match exactly for compatibility with automation callers.
type Upkeep interface {
	CheckUpkeep(checkData []byte) (bool, []byte, error)
	PerformUpkeep(caller crypto.Address, performData []byte) error
}

var (
	_ Strategy = (*Engine)(nil)
	_ Upkeep   = (*Engine)(nil)
)

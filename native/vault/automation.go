package vault

import (
	"encoding/json"
	"math/big"

	"agentvault/crypto"
	nativecommon "agentvault/native/common"
)

// PerformData is the advisory snapshot returned by CheckUpkeep and handed back
// to PerformUpkeep by external schedulers. It is re-derived from live state at
// execution time and never trusted blindly.
type PerformData struct {
	AgentID      uint64   `json:"agentId"`
	PendingYield *big.Int `json:"pendingYield"`
}

// CheckUpkeep is the read-only automation predicate: it reports whether a
// realization would make progress right now wrapped with a snapshot of the
// pending claim. Any number of keepers can poll it without coordination.
//
// The checkData argument is accepted for signature compatibility with external
// scheduling infrastructure and is ignored.
func (e *Engine) CheckUpkeep(_ []byte) (bool, []byte, error) {
	if e == nil || e.state == nil {
		return false, nil, errNilState
	}
	ledger, err := e.ensureLedger()
	if err != nil {
		return false, nil, err
	}

	eligible := ledger.PendingYield.Sign() > 0 &&
		ledger.TotalShares.Sign() > 0 &&
		ledger.TotalManagedAssets.Sign() > 0 &&
		healthFactor(ledger).Cmp(Scale) >= 0
	if !eligible {
		return false, nil, nil
	}

	performData, err := json.Marshal(PerformData{
		AgentID:      e.agentID,
		PendingYield: new(big.Int).Set(ledger.PendingYield),
	})
	if err != nil {
		return false, nil, err
	}
	return true, performData, nil
}

// PerformUpkeep is the strict automated executor: it re-runs the realization
// algorithm against committed state and fails loudly when ineligible. A keeper
// calling in without eligibility is an error, not a silent no-op. Concurrent
// keepers are safe because eligibility is re-evaluated here on every call and
// each call mutates state atomically.
func (e *Engine) PerformUpkeep(caller crypto.Address, performData []byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}

	executed, _, err := e.realize(caller)
	if err != nil {
		return err
	}
	if !executed {
		return ErrUpkeepNotNeeded
	}

	e.emit(NewUpkeepPerformedEvent(caller, performData))
	return nil
}

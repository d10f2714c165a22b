package vault

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"agentvault/core/events"
)

func TestCheckUpkeepReportsEligibility(t *testing.T) {
	state := newMockEngineState()
	state.fund(testDepositor, 1000)
	engine := newTestEngine(t, state)

	// Empty vault: never eligible.
	needed, _, err := engine.CheckUpkeep(nil)
	if err != nil {
		t.Fatalf("CheckUpkeep: %v", err)
	}
	if needed {
		t.Fatal("empty vault must not need upkeep")
	}

	if _, err := engine.Deposit(testDepositor, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// Deposits alone leave nothing pending.
	needed, _, err = engine.CheckUpkeep(nil)
	if err != nil {
		t.Fatalf("CheckUpkeep: %v", err)
	}
	if needed {
		t.Fatal("no pending yield must not need upkeep")
	}

	if err := engine.ReportYield(testOwner, big.NewInt(50)); err != nil {
		t.Fatalf("report: %v", err)
	}
	needed, performData, err := engine.CheckUpkeep([]byte("ignored"))
	if err != nil {
		t.Fatalf("CheckUpkeep: %v", err)
	}
	if !needed {
		t.Fatal("expected upkeep needed with pending yield")
	}
	var decoded PerformData
	if err := json.Unmarshal(performData, &decoded); err != nil {
		t.Fatalf("decode performData: %v", err)
	}
	if decoded.AgentID != 7 {
		t.Fatalf("expected agent id 7, got %d", decoded.AgentID)
	}
	if decoded.PendingYield.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected pending 50 in performData, got %s", decoded.PendingYield)
	}
}

func TestCheckUpkeepBlockedByHealth(t *testing.T) {
	state := newMockEngineState()
	state.fund(testDepositor, 1000)
	engine := newTestEngine(t, state)

	if _, err := engine.Deposit(testDepositor, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.ReportYield(testOwner, big.NewInt(50)); err != nil {
		t.Fatalf("report: %v", err)
	}
	state.ledger.TotalManagedAssets = big.NewInt(999)

	needed, _, err := engine.CheckUpkeep(nil)
	if err != nil {
		t.Fatalf("CheckUpkeep: %v", err)
	}
	if needed {
		t.Fatal("unhealthy vault must not need upkeep")
	}
}

func TestPerformUpkeepDrainsAndBecomesIdempotent(t *testing.T) {
	state := newMockEngineState()
	state.fund(testDepositor, 1000)
	keeper := makeAddress(0x4B)
	engine := newTestEngine(t, state)
	recorder := events.NewRecorder()
	engine.SetEmitter(recorder)

	if _, err := engine.Deposit(testDepositor, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.ReportYield(testOwner, big.NewInt(50)); err != nil {
		t.Fatalf("report: %v", err)
	}
	state.accounts[state.key(testCustody)].Balance = big.NewInt(1050)

	_, performData, err := engine.CheckUpkeep(nil)
	if err != nil {
		t.Fatalf("CheckUpkeep: %v", err)
	}
	if err := engine.PerformUpkeep(keeper, performData); err != nil {
		t.Fatalf("PerformUpkeep: %v", err)
	}
	if state.ledger.TotalManagedAssets.Cmp(big.NewInt(1043)) != 0 {
		t.Fatalf("expected managed assets 1043 after upkeep, got %s", state.ledger.TotalManagedAssets)
	}
	if state.ledger.PendingYield.Sign() != 0 {
		t.Fatalf("expected pending drained, got %s", state.ledger.PendingYield)
	}

	var sawUpkeep bool
	for _, evt := range recorder.Events() {
		if evt.EventType() == EventTypeUpkeepPerformed {
			sawUpkeep = true
		}
	}
	if !sawUpkeep {
		t.Fatal("expected upkeep event")
	}

	// A second keeper replaying the same performData finds the claim drained.
	if err := engine.PerformUpkeep(keeper, performData); !errors.Is(err, ErrUpkeepNotNeeded) {
		t.Fatalf("expected ErrUpkeepNotNeeded on replay, got %v", err)
	}
}

func TestPerformUpkeepIgnoresStalePerformData(t *testing.T) {
	state := newMockEngineState()
	state.fund(testDepositor, 1000)
	engine := newTestEngine(t, state)

	if _, err := engine.Deposit(testDepositor, big.NewInt(1000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.ReportYield(testOwner, big.NewInt(50)); err != nil {
		t.Fatalf("report: %v", err)
	}
	state.accounts[state.key(testCustody)].Balance = big.NewInt(1050)

	// performData is advisory; eligibility and amounts are re-derived from
	// live state, so garbage input does not affect the realization.
	if err := engine.PerformUpkeep(makeAddress(0x4B), []byte("not json")); err != nil {
		t.Fatalf("PerformUpkeep with stale data: %v", err)
	}
	if state.ledger.TotalManagedAssets.Cmp(big.NewInt(1043)) != 0 {
		t.Fatalf("expected managed assets 1043, got %s", state.ledger.TotalManagedAssets)
	}
}

func TestPerformUpkeepFailsOnEmptyVault(t *testing.T) {
	state := newMockEngineState()
	engine := newTestEngine(t, state)

	if err := engine.PerformUpkeep(makeAddress(0x4B), nil); !errors.Is(err, ErrUpkeepNotNeeded) {
		t.Fatalf("expected ErrUpkeepNotNeeded, got %v", err)
	}
}

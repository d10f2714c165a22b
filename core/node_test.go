package core

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"agentvault/crypto"
	"agentvault/native/registry"
	"agentvault/native/vault"
	"agentvault/state"
	"agentvault/storage"
)

func makeAddress(fill byte) crypto.Address {
	return crypto.MustNewAddress(bytes.Repeat([]byte{fill}, crypto.AddressLength))
}

var (
	nodeOwner        = makeAddress(0xAA)
	nodeCustody      = makeAddress(0xC0)
	nodeFeeRecipient = makeAddress(0xFE)
	nodeDepositor    = makeAddress(0xD1)
	nodeKeeper       = makeAddress(0x4B)
)

func newTestNode(t *testing.T, opts ...NodeOption) *Node {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	agents := registry.NewRegistry()

	var agentID uint64
	if err := mgr.Update(func(txn *state.Txn) error {
		agents.SetState(txn)
		record, err := agents.Register(nodeOwner, "ipfs://agent", crypto.Address{})
		if err != nil {
			return err
		}
		agentID = record.ID
		return nil
	}); err != nil {
		t.Fatalf("register agent: %v", err)
	}

	engine, err := vault.NewEngine(vault.Config{
		Owner:             nodeOwner,
		Custody:           nodeCustody,
		FeeRecipient:      nodeFeeRecipient,
		PerformanceFeeBps: 1500,
		AgentID:           agentID,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewNode(mgr, engine, agents, logger, opts...)
}

func TestNodeLifecycle(t *testing.T) {
	node := newTestNode(t, WithMockAsset())

	if err := node.VerifyAgent(); err != nil {
		t.Fatalf("VerifyAgent: %v", err)
	}
	if err := node.MintAsset(nodeDepositor, big.NewInt(1000)); err != nil {
		t.Fatalf("MintAsset: %v", err)
	}

	shares, err := node.Deposit(nodeDepositor, big.NewInt(1000))
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if shares.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected 1000 shares, got %s", shares)
	}

	if err := node.ReportYield(nodeOwner, big.NewInt(50)); err != nil {
		t.Fatalf("ReportYield: %v", err)
	}

	// The mock asset mints the claimed yield into custody during execution.
	executed, netYield, err := node.Execute(nodeOwner)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !executed {
		t.Fatal("expected execution")
	}
	if netYield.Cmp(big.NewInt(43)) != 0 {
		t.Fatalf("expected net yield 43, got %s", netYield)
	}

	status, err := node.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.TotalManagedAssets.Cmp(big.NewInt(1043)) != 0 {
		t.Fatalf("expected managed assets 1043, got %s", status.TotalManagedAssets)
	}
	if status.EarnedFees.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("expected earned fees 7, got %s", status.EarnedFees)
	}
	if status.PendingYield.Sign() != 0 {
		t.Fatalf("expected pending drained, got %s", status.PendingYield)
	}
	if status.CustodyBalance.Cmp(status.TotalManagedAssets) != 0 {
		t.Fatalf("custody %s diverged from managed assets %s", status.CustodyBalance, status.TotalManagedAssets)
	}

	feeBalance, err := node.AssetBalanceOf(nodeFeeRecipient)
	if err != nil {
		t.Fatalf("AssetBalanceOf: %v", err)
	}
	if feeBalance.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("expected fee recipient balance 7, got %s", feeBalance)
	}

	assets, err := node.Withdraw(nodeDepositor, big.NewInt(1000))
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if assets.Cmp(big.NewInt(1043)) != 0 {
		t.Fatalf("expected 1043 assets back, got %s", assets)
	}
	status, err = node.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.TotalShares.Sign() != 0 || status.TotalManagedAssets.Sign() != 0 {
		t.Fatalf("expected drained vault, got shares=%s assets=%s", status.TotalShares, status.TotalManagedAssets)
	}
}

func TestNodeFailedOperationLeavesNoTrace(t *testing.T) {
	node := newTestNode(t, WithMockAsset())

	if err := node.MintAsset(nodeDepositor, big.NewInt(100)); err != nil {
		t.Fatalf("MintAsset: %v", err)
	}
	if _, err := node.Deposit(nodeDepositor, big.NewInt(100)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	eventsBefore := len(node.Events())

	if _, err := node.Withdraw(nodeDepositor, big.NewInt(500)); !errors.Is(err, vault.ErrInsufficientShares) {
		t.Fatalf("expected ErrInsufficientShares, got %v", err)
	}

	if got := len(node.Events()); got != eventsBefore {
		t.Fatalf("failed operation leaked events: %d -> %d", eventsBefore, got)
	}
	shares, err := node.ShareBalanceOf(nodeDepositor)
	if err != nil {
		t.Fatalf("ShareBalanceOf: %v", err)
	}
	if shares.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected shares untouched at 100, got %s", shares)
	}
}

func TestNodeUpkeepFlow(t *testing.T) {
	node := newTestNode(t, WithMockAsset())

	needed, _, err := node.CheckUpkeep(nil)
	if err != nil {
		t.Fatalf("CheckUpkeep: %v", err)
	}
	if needed {
		t.Fatal("empty vault must not need upkeep")
	}

	if err := node.MintAsset(nodeDepositor, big.NewInt(1000)); err != nil {
		t.Fatalf("MintAsset: %v", err)
	}
	if _, err := node.Deposit(nodeDepositor, big.NewInt(1000)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if err := node.ReportYield(nodeOwner, big.NewInt(50)); err != nil {
		t.Fatalf("ReportYield: %v", err)
	}

	needed, performData, err := node.CheckUpkeep(nil)
	if err != nil {
		t.Fatalf("CheckUpkeep: %v", err)
	}
	if !needed {
		t.Fatal("expected upkeep needed")
	}
	if err := node.PerformUpkeep(nodeKeeper, performData); err != nil {
		t.Fatalf("PerformUpkeep: %v", err)
	}

	// The claim is drained: a second keeper loses the race.
	if err := node.PerformUpkeep(nodeKeeper, performData); !errors.Is(err, vault.ErrUpkeepNotNeeded) {
		t.Fatalf("expected ErrUpkeepNotNeeded, got %v", err)
	}

	var sawUpkeep bool
	for _, evt := range node.Events() {
		if evt.Type == vault.EventTypeUpkeepPerformed {
			sawUpkeep = true
		}
	}
	if !sawUpkeep {
		t.Fatal("expected committed upkeep event")
	}
}

func TestNodeMintDisabledForProductionAssets(t *testing.T) {
	node := newTestNode(t)

	if err := node.MintAsset(nodeDepositor, big.NewInt(1)); !errors.Is(err, ErrMintDisabled) {
		t.Fatalf("expected ErrMintDisabled, got %v", err)
	}
}

func TestNodeRegistryOperations(t *testing.T) {
	node := newTestNode(t)

	record, err := node.RegisterAgent(nodeOwner, "ipfs://second", crypto.Address{})
	if err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	if record.ID != 2 {
		t.Fatalf("expected agent id 2 after bootstrap registration, got %d", record.ID)
	}

	resolved, err := node.ResolveAgent(record.ID)
	if err != nil {
		t.Fatalf("ResolveAgent: %v", err)
	}
	if resolved.MetadataURI != "ipfs://second" {
		t.Fatalf("unexpected metadata %q", resolved.MetadataURI)
	}

	if _, err := node.ResolveAgent(99); !errors.Is(err, registry.ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}

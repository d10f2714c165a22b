package core

import (
	"errors"
	"log/slog"
	"math/big"

	"agentvault/core/events"
	"agentvault/core/types"
	"agentvault/crypto"
	"agentvault/native/registry"
	"agentvault/native/token"
	"agentvault/native/vault"
	"agentvault/observability/metrics"
	"agentvault/state"
)

// ErrMintDisabled is returned when a faucet mint is requested against a
// production asset.
var ErrMintDisabled = errors.New("node: asset minting disabled for production assets")

// payloadEvent is implemented by module events that carry a canonical
// types.Event payload.
type payloadEvent interface {
	Event() *types.Event
}

// Node wires the vault and registry engines to the transactional state
// manager. Every state-mutating operation runs as one atomic transaction:
// engine writes are buffered and committed only when the operation succeeds,
// and events from failed operations are dropped with the writes.
type Node struct {
	mgr       *state.Manager
	vault     *vault.Engine
	agents    *registry.Registry
	committed *events.Recorder
	logger    *slog.Logger
	metrics   *metrics.VaultMetrics
	mockAsset bool
}

// NodeOption customises node construction.
type NodeOption func(*Node)

// WithMockAsset marks the custodied asset as mintable: deposits can be
// faucet-funded and the realization top-up step actually mints. Development
// and test deployments only.
func WithMockAsset() NodeOption {
	return func(n *Node) { n.mockAsset = true }
}

// WithMetrics attaches the prometheus metrics registry.
func WithMetrics(m *metrics.VaultMetrics) NodeOption {
	return func(n *Node) { n.metrics = m }
}

// NewNode assembles a node from its engines and state manager.
func NewNode(mgr *state.Manager, vaultEngine *vault.Engine, agents *registry.Registry, logger *slog.Logger, opts ...NodeOption) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Node{
		mgr:       mgr,
		vault:     vaultEngine,
		agents:    agents,
		committed: events.NewRecorder(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// VaultStatus is the read-only snapshot served to dashboards and keepers.
type VaultStatus struct {
	AgentID            uint64   `json:"agentId"`
	Owner              string   `json:"owner"`
	TotalShares        *big.Int `json:"totalShares"`
	TotalManagedAssets *big.Int `json:"totalManagedAssets"`
	PendingYield       *big.Int `json:"pendingYield"`
	EarnedFees         *big.Int `json:"earnedFees"`
	HealthFactor       *big.Int `json:"healthFactor"`
	CustodyBalance     *big.Int `json:"custodyBalance"`
	LastExecutedAt     int64    `json:"lastExecutedAt"`
}

// Deposit pulls assets from the caller into custody and mints shares.
func (n *Node) Deposit(caller crypto.Address, assets *big.Int) (*big.Int, error) {
	var shares *big.Int
	recorded, err := n.updateVault("deposit", func() error {
		var err error
		shares, err = n.vault.Deposit(caller, assets)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.publish(recorded)
	n.refreshGauges()
	n.logger.Info("vault deposit", "caller", caller.String(), "assets", assets.String(), "shares", shares.String())
	return shares, nil
}

// Withdraw burns the caller's shares and releases assets from custody.
func (n *Node) Withdraw(caller crypto.Address, shares *big.Int) (*big.Int, error) {
	var assets *big.Int
	recorded, err := n.updateVault("withdraw", func() error {
		var err error
		assets, err = n.vault.Withdraw(caller, shares)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.publish(recorded)
	n.refreshGauges()
	n.logger.Info("vault withdraw", "caller", caller.String(), "shares", shares.String(), "assets", assets.String())
	return assets, nil
}

// ReportYield records a yield claim on behalf of the owner or trusted oracle.
func (n *Node) ReportYield(caller crypto.Address, amount *big.Int) error {
	recorded, err := n.updateVault("report_yield", func() error {
		return n.vault.ReportYield(caller, amount)
	})
	if err != nil {
		return err
	}
	n.publish(recorded)
	n.refreshGauges()
	n.logger.Info("yield reported", "caller", caller.String(), "amount", amount.String())
	return nil
}

// Execute runs the owner's manual realization trigger.
func (n *Node) Execute(caller crypto.Address) (bool, *big.Int, error) {
	var executed bool
	var netYield *big.Int
	recorded, err := n.updateVault("execute", func() error {
		var err error
		executed, netYield, err = n.vault.Execute(caller)
		return err
	})
	if err != nil {
		return false, nil, err
	}
	n.publish(recorded)
	n.observeRealization(executed, recorded)
	n.refreshGauges()
	if executed {
		n.logger.Info("strategy executed", "caller", caller.String(), "netYield", netYield.String())
	}
	return executed, netYield, nil
}

// CheckUpkeep evaluates the automation predicate against committed state.
func (n *Node) CheckUpkeep(checkData []byte) (bool, []byte, error) {
	var needed bool
	var performData []byte
	err := n.mgr.View(func(txn *state.Txn) error {
		n.bindVault(txn)
		var err error
		needed, performData, err = n.vault.CheckUpkeep(checkData)
		return err
	})
	return needed, performData, err
}

// PerformUpkeep runs the strict automated executor.
func (n *Node) PerformUpkeep(caller crypto.Address, performData []byte) error {
	recorded, err := n.updateVault("perform_upkeep", func() error {
		return n.vault.PerformUpkeep(caller, performData)
	})
	if err != nil {
		return err
	}
	n.publish(recorded)
	n.observeRealization(true, recorded)
	n.refreshGauges()
	n.logger.Info("upkeep performed", "caller", caller.String())
	return nil
}

// Status returns the current accounting snapshot.
func (n *Node) Status() (*VaultStatus, error) {
	status := &VaultStatus{
		AgentID: n.vault.AgentID(),
		Owner:   n.vault.Owner().String(),
	}
	err := n.mgr.View(func(txn *state.Txn) error {
		n.bindVault(txn)
		ledger, err := n.vault.Ledger()
		if err != nil {
			return err
		}
		health, err := n.vault.HealthFactor()
		if err != nil {
			return err
		}
		custody, err := n.vault.CustodyBalance()
		if err != nil {
			return err
		}
		status.TotalShares = ledger.TotalShares
		status.TotalManagedAssets = ledger.TotalManagedAssets
		status.PendingYield = ledger.PendingYield
		status.EarnedFees = ledger.EarnedFees
		status.LastExecutedAt = ledger.LastExecutedAt
		status.HealthFactor = health
		status.CustodyBalance = custody
		return nil
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// ShareBalanceOf returns the holder's share balance.
func (n *Node) ShareBalanceOf(holder crypto.Address) (*big.Int, error) {
	balance := big.NewInt(0)
	err := n.mgr.View(func(txn *state.Txn) error {
		n.bindVault(txn)
		var err error
		balance, err = n.vault.ShareBalanceOf(holder)
		return err
	})
	return balance, err
}

// AssetBalanceOf returns the address's custodied-asset balance.
func (n *Node) AssetBalanceOf(addr crypto.Address) (*big.Int, error) {
	balance := big.NewInt(0)
	err := n.mgr.View(func(txn *state.Txn) error {
		var err error
		balance, err = token.NewLedger(txn).BalanceOf(addr)
		return err
	})
	return balance, err
}

// RegisterAgent mints a new identity record in the agent registry.
func (n *Node) RegisterAgent(owner crypto.Address, metadataURI string, linkedWallet crypto.Address) (*registry.AgentRecord, error) {
	var record *registry.AgentRecord
	err := n.mgr.Update(func(txn *state.Txn) error {
		rec := events.NewRecorder()
		n.agents.SetState(txn)
		n.agents.SetEmitter(rec)
		var err error
		record, err = n.agents.Register(owner, metadataURI, linkedWallet)
		if err != nil {
			return err
		}
		n.publish(rec.Drain())
		return nil
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("agent registered", "agentId", record.ID, "owner", record.Owner.String())
	return record, nil
}

// ResolveAgent looks up an identity record, returning
// registry.ErrAgentNotFound on a miss.
func (n *Node) ResolveAgent(id uint64) (*registry.AgentRecord, error) {
	var record *registry.AgentRecord
	err := n.mgr.View(func(txn *state.Txn) error {
		n.agents.SetState(txn)
		var err error
		record, err = n.agents.Resolve(id)
		return err
	})
	return record, err
}

// VerifyAgent confirms the vault's configured agent id resolves in the
// registry. Called once at startup so a misconfigured linkage fails fast.
func (n *Node) VerifyAgent() error {
	_, err := n.ResolveAgent(n.vault.AgentID())
	return err
}

// MintAsset faucet-funds an account. Rejected unless the node runs against a
// mock mintable asset.
func (n *Node) MintAsset(to crypto.Address, amount *big.Int) error {
	if !n.mockAsset {
		return ErrMintDisabled
	}
	err := n.mgr.Update(func(txn *state.Txn) error {
		return token.NewLedger(txn).Mint(to, amount)
	})
	if err != nil {
		return err
	}
	n.logger.Info("asset minted", "to", to.String(), "amount", amount.String())
	return nil
}

// Events returns the committed event history in emission order.
func (n *Node) Events() []types.Event {
	recorded := n.committed.Events()
	out := make([]types.Event, 0, len(recorded))
	for _, evt := range recorded {
		if payload, ok := evt.(payloadEvent); ok && payload.Event() != nil {
			out = append(out, *payload.Event())
		}
	}
	return out
}

func (n *Node) updateVault(operation string, fn func() error) ([]events.Event, error) {
	var recorded []events.Event
	err := n.mgr.Update(func(txn *state.Txn) error {
		rec := events.NewRecorder()
		n.bindVault(txn)
		n.vault.SetEmitter(rec)
		if err := fn(); err != nil {
			return err
		}
		recorded = rec.Drain()
		return nil
	})
	n.metrics.ObserveOperation(operation, err)
	return recorded, err
}

func (n *Node) bindVault(txn *state.Txn) {
	n.vault.SetState(txn)
	if n.mockAsset {
		n.vault.SetMinter(token.NewLedger(txn))
	}
}

func (n *Node) publish(recorded []events.Event) {
	for _, evt := range recorded {
		n.committed.Emit(evt)
		n.logger.Debug("event emitted", "type", evt.EventType())
	}
}

func (n *Node) observeRealization(executed bool, recorded []events.Event) {
	if !executed || n.metrics == nil {
		return
	}
	fee := big.NewInt(0)
	for _, evt := range recorded {
		payload, ok := evt.(payloadEvent)
		if !ok || payload.Event() == nil {
			continue
		}
		if payload.Event().Type != vault.EventTypeFeeCollected {
			continue
		}
		if amount, valid := new(big.Int).SetString(payload.Event().Attributes["amount"], 10); valid {
			fee = amount
		}
	}
	n.metrics.ObserveRealization(fee)
}

func (n *Node) refreshGauges() {
	if n.metrics == nil {
		return
	}
	status, err := n.Status()
	if err != nil {
		return
	}
	n.metrics.SetLedger(status.TotalShares, status.TotalManagedAssets, status.PendingYield, status.EarnedFees, status.HealthFactor)
}

package vault

import (
	"errors"
	"math/big"
	"time"

	"agentvault/core/events"
	"agentvault/core/types"
	"agentvault/crypto"
	nativecommon "agentvault/native/common"
	"agentvault/native/token"
)

const moduleName = "vault"

var (
	basisPoints = big.NewInt(10_000)
	// Scale is the fixed-point unit for health factors; a ratio below Scale
	// signals share value has fallen below the bootstrap price of 1.
	Scale = big.NewInt(1_000_000_000_000_000_000)
)

var (
	errInvalidFeeBps       = errors.New("vault engine: performance fee exceeds 100%")
	errMissingOwner        = errors.New("vault engine: owner address required")
	errMissingFeeRecipient = errors.New("vault engine: fee recipient address required")
	errMissingCustody      = errors.New("vault engine: custody address required")
)

// engineState is the slice of persistence the engine needs. The state manager
// hands the engine a buffered transaction implementing this interface so every
// operation commits atomically or not at all.
type engineState interface {
	VaultState() (*LedgerState, error)
	PutVaultState(state *LedgerState) error
	ShareBalance(addr crypto.Address) (*big.Int, error)
	PutShareBalance(addr crypto.Address, amount *big.Int) error
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
}

// Config carries the immutable construction parameters of a vault. None of
// these fields may change for the life of the vault.
type Config struct {
	// Owner may report yield and trigger manual execution.
	Owner crypto.Address
	// Custody is the module address holding the vault's asset balance.
	Custody crypto.Address
	// FeeRecipient receives the performance fee on every realization.
	FeeRecipient crypto.Address
	// PerformanceFeeBps is the performance fee in basis points (1500 = 15%).
	PerformanceFeeBps uint64
	// AgentID links the vault to its identity record in the agent registry.
	// The registry is read-only input; it never affects accounting.
	AgentID uint64
}

// Engine implements the share-based auto-compounding vault: share issuance and
// redemption, yield realization against proven custody balance, performance
// fee extraction, and the check/perform automation trigger.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
	minter  token.Minter

	owner        crypto.Address
	custody      crypto.Address
	feeRecipient crypto.Address
	feeBps       uint64
	agentID      uint64
}

// NewEngine constructs a vault engine from its immutable configuration.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Owner.IsZero() {
		return nil, errMissingOwner
	}
	if cfg.Custody.IsZero() {
		return nil, errMissingCustody
	}
	if cfg.FeeRecipient.IsZero() {
		return nil, errMissingFeeRecipient
	}
	if cfg.PerformanceFeeBps > 10_000 {
		return nil, errInvalidFeeBps
	}
	return &Engine{
		emitter:      events.NoopEmitter{},
		nowFn:        func() int64 { return time.Now().Unix() },
		owner:        cfg.Owner,
		custody:      cfg.Custody,
		feeRecipient: cfg.FeeRecipient,
		feeBps:       cfg.PerformanceFeeBps,
		agentID:      cfg.AgentID,
	}, nil
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the administrative pause view consulted before mutations.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetMinter installs the optional mint capability used by the best-effort
// top-up during realization. Only mock assets expose one; leaving it nil makes
// the top-up a no-op.
func (e *Engine) SetMinter(m token.Minter) {
	if e == nil {
		return
	}
	e.minter = m
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Owner returns the vault owner address.
func (e *Engine) Owner() crypto.Address { return e.owner }

// Custody returns the module address holding the vault's asset balance.
func (e *Engine) Custody() crypto.Address { return e.custody }

// AgentID returns the registry agent id the vault is linked to.
func (e *Engine) AgentID() uint64 { return e.agentID }

// Deposit pulls assets from the caller into vault custody and mints shares at
// the current share price. The first deposit into an empty vault mints 1:1.
func (e *Engine) Deposit(caller crypto.Address, assets *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if assets == nil || assets.Sign() <= 0 {
		return nil, ErrAmountZero
	}

	ledger, err := e.ensureLedger()
	if err != nil {
		return nil, err
	}

	// Bootstrap price of 1 for the empty vault; otherwise floor-rounded
	// pro-rata issuance so the vault never over-mints.
	shares := new(big.Int)
	if ledger.TotalShares.Sign() == 0 || ledger.TotalManagedAssets.Sign() == 0 {
		shares.Set(assets)
	} else {
		shares.Mul(assets, ledger.TotalShares)
		shares.Quo(shares, ledger.TotalManagedAssets)
		if shares.Sign() == 0 {
			return nil, ErrZeroSharesMinted
		}
	}

	if err := e.tokenLedger().TransferFrom(caller, e.custody, assets); err != nil {
		return nil, err
	}

	balance, err := e.shareBalance(caller)
	if err != nil {
		return nil, err
	}
	if err := e.state.PutShareBalance(caller, new(big.Int).Add(balance, shares)); err != nil {
		return nil, err
	}

	ledger.TotalShares = new(big.Int).Add(ledger.TotalShares, shares)
	ledger.TotalManagedAssets = new(big.Int).Add(ledger.TotalManagedAssets, assets)
	if err := e.state.PutVaultState(ledger); err != nil {
		return nil, err
	}

	e.emit(NewDepositEvent(caller, assets, shares))
	return shares, nil
}

// Withdraw burns shares from the caller and releases the floor-rounded
// pro-rata asset amount. Ledger state is committed before the outbound
// transfer so a re-entrant callee can never observe stale balances.
func (e *Engine) Withdraw(caller crypto.Address, shares *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, ErrAmountZero
	}

	ledger, err := e.ensureLedger()
	if err != nil {
		return nil, err
	}
	if ledger.TotalShares.Sign() == 0 {
		return nil, ErrInsufficientShares
	}

	balance, err := e.shareBalance(caller)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(shares) < 0 {
		return nil, ErrInsufficientShares
	}

	assets := new(big.Int).Mul(shares, ledger.TotalManagedAssets)
	assets.Quo(assets, ledger.TotalShares)
	if assets.Sign() == 0 {
		return nil, ErrZeroAssetsOut
	}

	if err := e.state.PutShareBalance(caller, new(big.Int).Sub(balance, shares)); err != nil {
		return nil, err
	}
	ledger.TotalShares = new(big.Int).Sub(ledger.TotalShares, shares)
	ledger.TotalManagedAssets = new(big.Int).Sub(ledger.TotalManagedAssets, assets)
	if err := e.state.PutVaultState(ledger); err != nil {
		return nil, err
	}

	if err := e.tokenLedger().Transfer(e.custody, caller, assets); err != nil {
		return nil, err
	}

	e.emit(NewWithdrawEvent(caller, caller, shares, assets))
	return assets, nil
}

// ReportYield records an externally-asserted yield claim. It is an intent, not
// a realization: no funds move and TotalManagedAssets is untouched until the
// claim is proven against the custody balance.
func (e *Engine) ReportYield(caller crypto.Address, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !caller.Equal(e.owner) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrAmountZero
	}

	ledger, err := e.ensureLedger()
	if err != nil {
		return err
	}
	ledger.PendingYield = new(big.Int).Add(ledger.PendingYield, amount)
	return e.state.PutVaultState(ledger)
}

// CheckCondition reports whether a realization could make progress: there is
// pending yield and the vault is non-empty.
func (e *Engine) CheckCondition() (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	ledger, err := e.ensureLedger()
	if err != nil {
		return false, err
	}
	return ledger.PendingYield.Sign() > 0 &&
		ledger.TotalShares.Sign() > 0 &&
		ledger.TotalManagedAssets.Sign() > 0, nil
}

// HealthFactor returns the fixed-point ratio of managed assets to outstanding
// shares. An empty vault is fully healthy by convention.
func (e *Engine) HealthFactor() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ledger, err := e.ensureLedger()
	if err != nil {
		return nil, err
	}
	return healthFactor(ledger), nil
}

func healthFactor(ledger *LedgerState) *big.Int {
	if ledger.TotalShares.Sign() == 0 {
		return new(big.Int).Set(Scale)
	}
	ratio := new(big.Int).Mul(ledger.TotalManagedAssets, Scale)
	return ratio.Quo(ratio, ledger.TotalShares)
}

// Execute is the owner's manual trigger. Unlike automated upkeep it degrades
// gracefully: ineligibility returns (false, 0, nil) so the owner can poll it
// opportunistically.
func (e *Engine) Execute(caller crypto.Address) (bool, *big.Int, error) {
	if e == nil || e.state == nil {
		return false, nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return false, nil, err
	}
	if !caller.Equal(e.owner) {
		return false, nil, ErrUnauthorized
	}
	return e.realize(caller)
}

// Ledger returns a copy of the current accounting state for read-only callers.
func (e *Engine) Ledger() (*LedgerState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ledger, err := e.ensureLedger()
	if err != nil {
		return nil, err
	}
	return ledger.Clone(), nil
}

// ShareBalanceOf returns the share balance credited to the holder.
func (e *Engine) ShareBalanceOf(holder crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.shareBalance(holder)
}

// CustodyBalance returns the asset balance actually held in custody.
func (e *Engine) CustodyBalance() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.tokenLedger().BalanceOf(e.custody)
}

// realize runs the yield realization algorithm: gate on eligibility and
// health, prove the claim against the custody balance, then compound the net
// yield and route the fee.
func (e *Engine) realize(caller crypto.Address) (bool, *big.Int, error) {
	ledger, err := e.ensureLedger()
	if err != nil {
		return false, nil, err
	}

	if ledger.PendingYield.Sign() <= 0 ||
		ledger.TotalShares.Sign() <= 0 ||
		ledger.TotalManagedAssets.Sign() <= 0 {
		return false, big.NewInt(0), nil
	}

	health := healthFactor(ledger)
	if health.Cmp(Scale) < 0 {
		e.emit(NewLiquidationRiskEvent(e.agentID, health))
		return false, big.NewInt(0), nil
	}

	// Best-effort top-up for mintable mock assets. Failure is swallowed;
	// production assets simply have no minter installed.
	if e.minter != nil {
		_ = e.minter.Mint(e.custody, ledger.PendingYield)
	}

	// Yield is only real if the custody balance actually exceeds what the
	// ledger believes it holds. A stale or malicious report can never credit
	// more than the vault can prove.
	custodyBalance, err := e.tokenLedger().BalanceOf(e.custody)
	if err != nil {
		return false, nil, err
	}
	available := new(big.Int).Sub(custodyBalance, ledger.TotalManagedAssets)
	if available.Sign() < 0 {
		available = big.NewInt(0)
	}

	realized := new(big.Int).Set(ledger.PendingYield)
	if realized.Cmp(available) > 0 {
		realized.Set(available)
	}
	if realized.Sign() == 0 {
		return false, big.NewInt(0), nil
	}

	fee := new(big.Int).Mul(realized, new(big.Int).SetUint64(e.feeBps))
	fee.Quo(fee, basisPoints)
	netYield := new(big.Int).Sub(realized, fee)

	ledger.PendingYield = new(big.Int).Sub(ledger.PendingYield, realized)
	ledger.TotalManagedAssets = new(big.Int).Add(ledger.TotalManagedAssets, netYield)
	ledger.EarnedFees = new(big.Int).Add(ledger.EarnedFees, fee)
	ledger.LastExecutedAt = e.now()
	if err := e.state.PutVaultState(ledger); err != nil {
		return false, nil, err
	}

	if fee.Sign() > 0 {
		if err := e.tokenLedger().Transfer(e.custody, e.feeRecipient, fee); err != nil {
			return false, nil, err
		}
		e.emit(NewFeeCollectedEvent(e.feeRecipient, fee))
	}

	e.emit(NewStrategyExecutedEvent(e.agentID, caller, ActionCompound, realized, netYield))
	return true, netYield, nil
}

func (e *Engine) ensureLedger() (*LedgerState, error) {
	ledger, err := e.state.VaultState()
	if err != nil {
		return nil, err
	}
	if ledger == nil {
		ledger = &LedgerState{}
	}
	ledger.normalize()
	return ledger, nil
}

func (e *Engine) shareBalance(addr crypto.Address) (*big.Int, error) {
	balance, err := e.state.ShareBalance(addr)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(balance), nil
}

func (e *Engine) tokenLedger() *token.Ledger {
	return token.NewLedger(e.state)
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(vaultEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

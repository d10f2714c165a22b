package vault

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"agentvault/core/types"
	"agentvault/crypto"
)

const (
	EventTypeDeposit          = "vault.deposit"
	EventTypeWithdraw         = "vault.withdraw"
	EventTypeFeeCollected     = "vault.fee.collected"
	EventTypeLiquidationRisk  = "vault.liquidation.risk"
	EventTypeStrategyExecuted = "vault.strategy.executed"
	EventTypeUpkeepPerformed  = "vault.upkeep.performed"
)

// ActionCompound names the single action the yield-compounding strategy
// performs; it appears in the strategy execution event payload.
const ActionCompound = "compound"

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

// NewDepositEvent returns the canonical payload emitted after shares are
// minted for a deposit.
func NewDepositEvent(caller crypto.Address, assets, shares *big.Int) *types.Event {
	return &types.Event{Type: EventTypeDeposit, Attributes: map[string]string{
		"caller": encodeAddress(caller),
		"assets": encodeAmount(assets),
		"shares": encodeAmount(shares),
	}}
}

// NewWithdrawEvent returns the canonical payload emitted after shares are
// burned and assets released.
func NewWithdrawEvent(caller, recipient crypto.Address, shares, assets *big.Int) *types.Event {
	return &types.Event{Type: EventTypeWithdraw, Attributes: map[string]string{
		"caller":    encodeAddress(caller),
		"recipient": encodeAddress(recipient),
		"shares":    encodeAmount(shares),
		"assets":    encodeAmount(assets),
	}}
}

// NewFeeCollectedEvent returns the payload emitted when a performance fee is
// routed to the fee recipient.
func NewFeeCollectedEvent(recipient crypto.Address, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeFeeCollected, Attributes: map[string]string{
		"recipient": encodeAddress(recipient),
		"amount":    encodeAmount(amount),
	}}
}

// NewLiquidationRiskEvent returns the payload emitted when the health factor
// blocks automated execution.
func NewLiquidationRiskEvent(agentID uint64, healthFactor *big.Int) *types.Event {
	return &types.Event{Type: EventTypeLiquidationRisk, Attributes: map[string]string{
		"agentId":      strconv.FormatUint(agentID, 10),
		"healthFactor": encodeAmount(healthFactor),
	}}
}

// NewStrategyExecutedEvent returns the payload emitted after a successful
// realization cycle.
func NewStrategyExecutedEvent(agentID uint64, caller crypto.Address, action string, amountIn, amountOut *big.Int) *types.Event {
	return &types.Event{Type: EventTypeStrategyExecuted, Attributes: map[string]string{
		"agentId":   strconv.FormatUint(agentID, 10),
		"caller":    encodeAddress(caller),
		"action":    action,
		"amountIn":  encodeAmount(amountIn),
		"amountOut": encodeAmount(amountOut),
	}}
}

// NewUpkeepPerformedEvent returns the payload emitted after an automated
// executor successfully drives a realization.
func NewUpkeepPerformedEvent(caller crypto.Address, performData []byte) *types.Event {
	return &types.Event{Type: EventTypeUpkeepPerformed, Attributes: map[string]string{
		"caller":      encodeAddress(caller),
		"performData": hex.EncodeToString(performData),
	}}
}

func encodeAddress(addr crypto.Address) string {
	return hex.EncodeToString(addr.Bytes())
}

func encodeAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

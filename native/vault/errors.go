package vault

import "errors"

var (
	// ErrAmountZero rejects zero-value deposits, withdrawals and yield reports.
	ErrAmountZero = errors.New("vault engine: amount must be positive")
	// ErrInsufficientShares rejects withdrawals exceeding the holder balance.
	ErrInsufficientShares = errors.New("vault engine: insufficient shares")
	// ErrInsufficientPrincipal rejects redemptions exceeding the recorded
	// principal in non-share strategy variants.
	ErrInsufficientPrincipal = errors.New("vault engine: insufficient principal")
	// ErrZeroSharesMinted rejects deposits whose share amount floors to zero,
	// which would donate the assets to existing holders.
	ErrZeroSharesMinted = errors.New("vault engine: deposit too small to mint shares")
	// ErrZeroAssetsOut rejects withdrawals whose asset amount floors to zero.
	ErrZeroAssetsOut = errors.New("vault engine: shares too small to redeem assets")
	// ErrUnauthorized rejects privileged calls from a non-owner.
	ErrUnauthorized = errors.New("vault engine: caller is not the vault owner")
	// ErrUpkeepNotNeeded rejects automated execution when the eligibility
	// predicate does not hold at call time.
	ErrUpkeepNotNeeded = errors.New("vault engine: upkeep not needed")

	errNilState = errors.New("vault engine: state not configured")
)

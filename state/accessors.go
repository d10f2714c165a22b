package state

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"agentvault/core/types"
	"agentvault/crypto"
	"agentvault/native/registry"
	"agentvault/native/vault"
)

// GetAccount loads the asset account for the address, nil when unseen.
func (t *Txn) GetAccount(addr crypto.Address) (*types.Account, error) {
	raw, ok, err := t.get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	account := &types.Account{}
	if err := json.Unmarshal(raw, account); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	return account, nil
}

// PutAccount stores the asset account for the address.
func (t *Txn) PutAccount(addr crypto.Address, account *types.Account) error {
	raw, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	t.put(accountKey(addr), raw)
	return nil
}

// VaultState loads the vault accounting record, nil before first use.
func (t *Txn) VaultState() (*vault.LedgerState, error) {
	raw, ok, err := t.get([]byte(ledgerKey))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	ledger := &vault.LedgerState{}
	if err := json.Unmarshal(raw, ledger); err != nil {
		return nil, fmt.Errorf("state: decode vault ledger: %w", err)
	}
	return ledger, nil
}

// PutVaultState stores the vault accounting record.
func (t *Txn) PutVaultState(ledger *vault.LedgerState) error {
	raw, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("state: encode vault ledger: %w", err)
	}
	t.put([]byte(ledgerKey), raw)
	return nil
}

// ShareBalance loads the holder's share balance, nil when the holder has never
// deposited.
func (t *Txn) ShareBalance(addr crypto.Address) (*big.Int, error) {
	raw, ok, err := t.get(shareKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	balance, valid := new(big.Int).SetString(string(raw), 10)
	if !valid {
		return nil, fmt.Errorf("state: corrupt share balance for %s", addr)
	}
	return balance, nil
}

// PutShareBalance stores the holder's share balance.
func (t *Txn) PutShareBalance(addr crypto.Address, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	t.put(shareKey(addr), []byte(amount.String()))
	return nil
}

// storedAgent is the persisted form of a registry record: addresses are
// serialized as raw hex since crypto.Address keeps its bytes unexported.
type storedAgent struct {
	ID           uint64 `json:"id"`
	Owner        string `json:"owner"`
	MetadataURI  string `json:"metadataUri"`
	LinkedWallet string `json:"linkedWallet,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
}

// AgentGet loads the agent record for the id, nil when never minted.
func (t *Txn) AgentGet(id uint64) (*registry.AgentRecord, error) {
	raw, ok, err := t.get(agentKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	stored := &storedAgent{}
	if err := json.Unmarshal(raw, stored); err != nil {
		return nil, fmt.Errorf("state: decode agent record: %w", err)
	}
	record := &registry.AgentRecord{
		ID:          stored.ID,
		MetadataURI: stored.MetadataURI,
		CreatedAt:   stored.CreatedAt,
	}
	if record.Owner, err = decodeAddressHex(stored.Owner); err != nil {
		return nil, fmt.Errorf("state: corrupt agent owner: %w", err)
	}
	if stored.LinkedWallet != "" {
		if record.LinkedWallet, err = decodeAddressHex(stored.LinkedWallet); err != nil {
			return nil, fmt.Errorf("state: corrupt agent wallet: %w", err)
		}
	}
	return record, nil
}

// AgentPut stores the agent record.
func (t *Txn) AgentPut(record *registry.AgentRecord) error {
	stored := &storedAgent{
		ID:          record.ID,
		Owner:       hex.EncodeToString(record.Owner.Bytes()),
		MetadataURI: record.MetadataURI,
		CreatedAt:   record.CreatedAt,
	}
	if !record.LinkedWallet.IsZero() {
		stored.LinkedWallet = hex.EncodeToString(record.LinkedWallet.Bytes())
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("state: encode agent record: %w", err)
	}
	t.put(agentKey(record.ID), raw)
	return nil
}

// AgentNextID mints the next sequential agent id, starting from 1.
func (t *Txn) AgentNextID() (uint64, error) {
	raw, ok, err := t.get([]byte(agentSeqKey))
	if err != nil {
		return 0, err
	}
	var next uint64 = 1
	if ok {
		if err := json.Unmarshal(raw, &next); err != nil {
			return 0, fmt.Errorf("state: corrupt agent sequence: %w", err)
		}
	}
	encoded, err := json.Marshal(next + 1)
	if err != nil {
		return 0, err
	}
	t.put([]byte(agentSeqKey), encoded)
	return next, nil
}

func decodeAddressHex(encoded string) (crypto.Address, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return crypto.Address{}, err
	}
	return crypto.NewAddress(raw)
}

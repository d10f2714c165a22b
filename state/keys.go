package state

import (
	"encoding/hex"
	"strconv"

	"agentvault/crypto"
)

// Key prefixes for the vault state tree. Every record lives under a short
// namespace so backends can be shared across modules.
const (
	accountPrefix = "acct/"
	sharePrefix   = "vault/shares/"
	ledgerKey     = "vault/ledger"
	agentPrefix   = "registry/agent/"
	agentSeqKey   = "registry/agent-seq"
)

func accountKey(addr crypto.Address) []byte {
	return []byte(accountPrefix + hex.EncodeToString(addr.Bytes()))
}

func shareKey(addr crypto.Address) []byte {
	return []byte(sharePrefix + hex.EncodeToString(addr.Bytes()))
}

func agentKey(id uint64) []byte {
	return []byte(agentPrefix + strconv.FormatUint(id, 10))
}

package rpc

import (
	"net/http"
	"strings"

	"agentvault/crypto"
	"agentvault/native/registry"
)

type registerParams struct {
	Owner        string `json:"owner"`
	MetadataURI  string `json:"metadataUri,omitempty"`
	LinkedWallet string `json:"linkedWallet,omitempty"`
}

type resolveParams struct {
	AgentID uint64 `json:"agentId"`
}

type agentResult struct {
	AgentID      uint64 `json:"agentId"`
	Owner        string `json:"owner"`
	MetadataURI  string `json:"metadataUri,omitempty"`
	LinkedWallet string `json:"linkedWallet,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
}

func newAgentResult(record *registry.AgentRecord) agentResult {
	result := agentResult{
		AgentID:     record.ID,
		Owner:       record.Owner.String(),
		MetadataURI: record.MetadataURI,
		CreatedAt:   record.CreatedAt,
	}
	if !record.LinkedWallet.IsZero() {
		result.LinkedWallet = record.LinkedWallet.String()
	}
	return result
}

func (s *Server) handleRegistryRegister(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params registerParams
	if !decodeParams(w, req, &params) {
		return
	}
	owner, ok := parseAddress(w, req, params.Owner, "owner")
	if !ok {
		return
	}
	linkedWallet := crypto.Address{}
	if trimmed := strings.TrimSpace(params.LinkedWallet); trimmed != "" {
		linkedWallet, ok = parseAddress(w, req, trimmed, "linkedWallet")
		if !ok {
			return
		}
	}
	record, err := s.node.RegisterAgent(owner, params.MetadataURI, linkedWallet)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newAgentResult(record))
}

func (s *Server) handleRegistryResolve(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params resolveParams
	if !decodeParams(w, req, &params) {
		return
	}
	record, err := s.node.ResolveAgent(params.AgentID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, newAgentResult(record))
}

package rpc

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"

	"agentvault/core/types"
	"agentvault/crypto"
)

type depositParams struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

type withdrawParams struct {
	From   string `json:"from"`
	Shares string `json:"shares"`
}

type reportYieldParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount"`
}

type executeParams struct {
	Caller string `json:"caller"`
}

type checkUpkeepParams struct {
	CheckData string `json:"checkData,omitempty"`
}

type performUpkeepParams struct {
	Caller      string `json:"caller"`
	PerformData string `json:"performData,omitempty"`
}

type balanceOfParams struct {
	Address string `json:"address"`
}

type depositResult struct {
	Shares string `json:"shares"`
}

type withdrawResult struct {
	Assets string `json:"assets"`
}

type executeResult struct {
	Executed bool   `json:"executed"`
	NetYield string `json:"netYield"`
}

type checkUpkeepResult struct {
	UpkeepNeeded bool   `json:"upkeepNeeded"`
	PerformData  string `json:"performData,omitempty"`
}

type balanceResult struct {
	Balance string `json:"balance"`
}

type eventsResult struct {
	Events []types.Event `json:"events"`
}

func (s *Server) handleVaultDeposit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params depositParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, params.From, "from")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, params.Amount, "amount")
	if !ok {
		return
	}
	shares, err := s.node.Deposit(caller, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, depositResult{Shares: shares.String()})
}

func (s *Server) handleVaultWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params withdrawParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, params.From, "from")
	if !ok {
		return
	}
	shares, ok := parseAmount(w, req, params.Shares, "shares")
	if !ok {
		return
	}
	assets, err := s.node.Withdraw(caller, shares)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, withdrawResult{Assets: assets.String()})
}

func (s *Server) handleVaultReportYield(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params reportYieldParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, params.Caller, "caller")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, params.Amount, "amount")
	if !ok {
		return
	}
	if err := s.node.ReportYield(caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleVaultExecute(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params executeParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, params.Caller, "caller")
	if !ok {
		return
	}
	executed, netYield, err := s.node.Execute(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result := executeResult{Executed: executed, NetYield: "0"}
	if netYield != nil {
		result.NetYield = netYield.String()
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleVaultCheckUpkeep(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params checkUpkeepParams
	if len(req.Params) > 0 && !decodeParams(w, req, &params) {
		return
	}
	var checkData []byte
	if trimmed := strings.TrimSpace(params.CheckData); trimmed != "" {
		decoded, err := hex.DecodeString(trimmed)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "checkData must be hex encoded", err.Error())
			return
		}
		checkData = decoded
	}
	needed, performData, err := s.node.CheckUpkeep(checkData)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	result := checkUpkeepResult{UpkeepNeeded: needed}
	if needed {
		result.PerformData = hex.EncodeToString(performData)
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleVaultPerformUpkeep(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params performUpkeepParams
	if !decodeParams(w, req, &params) {
		return
	}
	caller, ok := parseAddress(w, req, params.Caller, "caller")
	if !ok {
		return
	}
	var performData []byte
	if trimmed := strings.TrimSpace(params.PerformData); trimmed != "" {
		decoded, err := hex.DecodeString(trimmed)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "performData must be hex encoded", err.Error())
			return
		}
		performData = decoded
	}
	if err := s.node.PerformUpkeep(caller, performData); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleVaultGetStatus(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	status, err := s.node.Status()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, status)
}

func (s *Server) handleVaultBalanceOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params balanceOfParams
	if !decodeParams(w, req, &params) {
		return
	}
	holder, ok := parseAddress(w, req, params.Address, "address")
	if !ok {
		return
	}
	balance, err := s.node.ShareBalanceOf(holder)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, balanceResult{Balance: balance.String()})
}

func (s *Server) handleVaultEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, eventsResult{Events: s.node.Events()})
}

func (s *Server) handleTokenBalanceOf(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params balanceOfParams
	if !decodeParams(w, req, &params) {
		return
	}
	holder, ok := parseAddress(w, req, params.Address, "address")
	if !ok {
		return
	}
	balance, err := s.node.AssetBalanceOf(holder)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, balanceResult{Balance: balance.String()})
}

func (s *Server) handleTokenMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params struct {
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if !decodeParams(w, req, &params) {
		return
	}
	to, ok := parseAddress(w, req, params.To, "to")
	if !ok {
		return
	}
	amount, ok := parseAmount(w, req, params.Amount, "amount")
	if !ok {
		return
	}
	if err := s.node.MintAsset(to, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func decodeParams(w http.ResponseWriter, req *RPCRequest, out interface{}) bool {
	if len(req.Params) != 1 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "expected a single params object", nil)
		return false
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params object", err.Error())
		return false
	}
	return true
}

func parseAddress(w http.ResponseWriter, req *RPCRequest, raw, field string) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid "+field+" address", err.Error())
		return crypto.Address{}, false
	}
	return addr, true
}

func parseAmount(w http.ResponseWriter, req *RPCRequest, raw, field string) (*big.Int, bool) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid "+field+" amount", nil)
		return nil, false
	}
	return amount, true
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"agentvault/config"
	"agentvault/core"
	"agentvault/crypto"
	"agentvault/native/registry"
	"agentvault/native/vault"
	"agentvault/observability/logging"
	"agentvault/observability/metrics"
	"agentvault/rpc"
	"agentvault/state"
	"agentvault/storage"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("AGENTVAULT_ENV"))
	logger := logging.Setup("vaultd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		fatal(logger, "failed to load config", err)
	}

	owner, err := crypto.DecodeAddress(cfg.Owner)
	if err != nil {
		fatal(logger, "invalid Owner address", err)
	}
	feeRecipient, err := crypto.DecodeAddress(cfg.FeeRecipient)
	if err != nil {
		fatal(logger, "invalid FeeRecipient address", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fatal(logger, "failed to create data dir", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "vaultstate"))
	if err != nil {
		fatal(logger, "failed to open state database", err)
	}
	defer func() { _ = db.Close() }()

	mgr := state.NewManager(db)
	agents := registry.NewRegistry()

	agentID, err := bootstrapAgent(mgr, agents, cfg, owner, logger)
	if err != nil {
		fatal(logger, "agent bootstrap failed", err)
	}

	engine, err := vault.NewEngine(vault.Config{
		Owner:             owner,
		Custody:           custodyAddress(),
		FeeRecipient:      feeRecipient,
		PerformanceFeeBps: cfg.PerformanceFeeBps,
		AgentID:           agentID,
	})
	if err != nil {
		fatal(logger, "failed to construct vault engine", err)
	}
	engine.SetPauses(cfg)

	opts := []core.NodeOption{core.WithMetrics(metrics.Vault())}
	if cfg.MockAsset {
		opts = append(opts, core.WithMockAsset())
	}
	node := core.NewNode(mgr, engine, agents, logger, opts...)

	server := rpc.NewServer(node)
	logger.Info("starting vaultd",
		"rpc", cfg.RPCAddress,
		"agentId", agentID,
		"feeBps", cfg.PerformanceFeeBps,
		"mockAsset", cfg.MockAsset,
	)
	if err := http.ListenAndServe(cfg.RPCAddress, server.Router()); err != nil {
		fatal(logger, "rpc server exited", err)
	}
}

// bootstrapAgent resolves the configured agent linkage before the vault starts
// serving traffic. With AgentID zero a fresh record is minted for the owner;
// otherwise the configured id must already exist in the registry.
func bootstrapAgent(mgr *state.Manager, agents *registry.Registry, cfg *config.Config, owner crypto.Address, logger *slog.Logger) (uint64, error) {
	if cfg.AgentID != 0 {
		err := mgr.View(func(txn *state.Txn) error {
			agents.SetState(txn)
			_, err := agents.Resolve(cfg.AgentID)
			return err
		})
		if errors.Is(err, registry.ErrAgentNotFound) {
			return 0, fmt.Errorf("configured AgentID %d is not registered", cfg.AgentID)
		}
		return cfg.AgentID, err
	}

	var record *registry.AgentRecord
	err := mgr.Update(func(txn *state.Txn) error {
		agents.SetState(txn)
		var err error
		record, err = agents.Register(owner, cfg.AgentMetadataURI, crypto.Address{})
		return err
	})
	if err != nil {
		return 0, err
	}
	logger.Info("registered new agent; pin this id in config", "agentId", record.ID)
	return record.ID, nil
}

// custodyAddress derives the deterministic module address holding the vault's
// asset balance.
func custodyAddress() crypto.Address {
	digest := ethcrypto.Keccak256([]byte("agentvault/module/vault-custody"))
	return crypto.MustNewAddress(digest[12:])
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

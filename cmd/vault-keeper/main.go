package main

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"

	"agentvault/crypto"
	"agentvault/observability/logging"
)

// vault-keeper is the off-chain decision loop: it polls checkUpkeep on a fixed
// schedule and submits performUpkeep whenever the vault reports itself
// eligible. Many keepers can run concurrently against the same vault; losers
// of a race simply observe an upkeep-not-needed error.
func main() {
	endpoint := flag.String("rpc", "http://127.0.0.1:8645", "vaultd JSON-RPC endpoint")
	schedule := flag.String("schedule", "@every 30s", "cron schedule for upkeep polling")
	callerFlag := flag.String("caller", "", "keeper address submitted as the upkeep caller")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("AGENTVAULT_ENV"))
	logger := logging.Setup("vault-keeper", env)

	caller, err := crypto.DecodeAddress(strings.TrimSpace(*callerFlag))
	if err != nil {
		logger.Error("invalid --caller address", "error", err)
		os.Exit(1)
	}

	client := NewClient(*endpoint)

	c := cron.New()
	_, err = c.AddFunc(*schedule, func() {
		result, err := client.CheckUpkeep()
		if err != nil {
			logger.Error("checkUpkeep failed", "error", err)
			return
		}
		if !result.UpkeepNeeded {
			logger.Debug("upkeep not needed")
			return
		}
		if err := client.PerformUpkeep(caller.String(), result.PerformData); err != nil {
			// Another keeper may have won the race between check and
			// perform; that is expected and not a failure of this loop.
			logger.Warn("performUpkeep rejected", "error", err)
			return
		}
		logger.Info("upkeep performed", "performData", result.PerformData)
	})
	if err != nil {
		logger.Error("invalid --schedule", "error", err)
		os.Exit(1)
	}

	logger.Info("starting vault-keeper", "rpc", *endpoint, "schedule", *schedule, "caller", caller.String())
	c.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx := c.Stop()
	<-ctx.Done()
	logger.Info("vault-keeper stopped")
}

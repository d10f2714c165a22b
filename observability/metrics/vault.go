package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics exposes the operational counters and accounting gauges for the
// vault module.
type VaultMetrics struct {
	operations   *prometheus.CounterVec
	realizations prometheus.Counter
	feesPaid     prometheus.Counter
	totalShares  prometheus.Gauge
	managed      prometheus.Gauge
	pendingYield prometheus.Gauge
	earnedFees   prometheus.Gauge
	healthFactor prometheus.Gauge
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the lazily-initialised vault metrics registry.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_operations_total",
				Help: "Count of vault operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			realizations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_realizations_total",
				Help: "Count of successful yield realizations.",
			}),
			feesPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_fees_paid_units_total",
				Help: "Cumulative performance fee paid out in asset units.",
			}),
			totalShares: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_total_shares",
				Help: "Outstanding share supply.",
			}),
			managed: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_total_managed_assets",
				Help: "Asset value the ledger believes it custodies.",
			}),
			pendingYield: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_pending_yield",
				Help: "Reported yield awaiting realization.",
			}),
			earnedFees: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_earned_fees",
				Help: "Cumulative performance fee collected.",
			}),
			healthFactor: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_health_factor",
				Help: "Fixed-point solvency ratio scaled to 1.0.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.operations,
			vaultRegistry.realizations,
			vaultRegistry.feesPaid,
			vaultRegistry.totalShares,
			vaultRegistry.managed,
			vaultRegistry.pendingYield,
			vaultRegistry.earnedFees,
			vaultRegistry.healthFactor,
		)
	})
	return vaultRegistry
}

// ObserveOperation records one vault operation attempt and its outcome.
func (m *VaultMetrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveRealization records a successful realization and the fee it paid.
func (m *VaultMetrics) ObserveRealization(fee *big.Int) {
	if m == nil {
		return
	}
	m.realizations.Inc()
	m.feesPaid.Add(bigToFloat(fee))
}

// SetLedger refreshes the accounting gauges from a committed ledger snapshot.
func (m *VaultMetrics) SetLedger(totalShares, managedAssets, pendingYield, earnedFees, healthFactor *big.Int) {
	if m == nil {
		return
	}
	m.totalShares.Set(bigToFloat(totalShares))
	m.managed.Set(bigToFloat(managedAssets))
	m.pendingYield.Set(bigToFloat(pendingYield))
	m.earnedFees.Set(bigToFloat(earnedFees))
	m.healthFactor.Set(bigToFloat(healthFactor) / 1e18)
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/voicehive-hotels/orchestrator/internal/cache"
	"github.com/voicehive-hotels/orchestrator/internal/resilience"
)

// Metrics holds every Prometheus collector the supervisor exports,
// registered against either the default registerer or a test-local one.
type Metrics struct {
	BreakerState        *prometheus.GaugeVec
	BreakerFailureTotal *prometheus.GaugeVec
	BreakerSuccessTotal *prometheus.GaugeVec
	CacheHitsTotal      prometheus.Gauge
	CacheMissesTotal    prometheus.Gauge
	CacheHitRatio       prometheus.Gauge
	PendingApprovals    *prometheus.GaugeVec
	SystemCPUPercent    prometheus.Gauge
	SystemMemoryPercent prometheus.Gauge
}

// breakerStateValue maps a breaker's State to the numeric gauge value
// Prometheus needs: closed=0, half-open=1, open=2, matching the
// severity ordering HealthChecker already uses.
func breakerStateValue(s resilience.State) float64 {
	switch s {
	case resilience.StateOpen:
		return 2
	case resilience.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

func NewMetrics(serviceName string) *Metrics {
	return NewMetricsWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

func NewMetricsWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voicehive_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed,1=half-open,2=open)",
		}, []string{"dependency", "kind"}),
		BreakerFailureTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voicehive_circuit_breaker_failures_total",
			Help: "Total failures observed by a circuit breaker",
		}, []string{"dependency", "kind"}),
		BreakerSuccessTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voicehive_circuit_breaker_successes_total",
			Help: "Total successes observed by a circuit breaker",
		}, []string{"dependency", "kind"}),
		CacheHitsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voicehive_cache_hits_total",
			Help: "Local-tier cache hits",
		}),
		CacheMissesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voicehive_cache_misses_total",
			Help: "Local-tier cache misses",
		}),
		CacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voicehive_cache_hit_ratio",
			Help: "Local-tier cache hit ratio over its lifetime",
		}),
		PendingApprovals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voicehive_pending_config_approvals",
			Help: "Pending configuration change approval requests",
		}, []string{"environment"}),
		SystemCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voicehive_system_cpu_percent",
			Help: "Host CPU utilization since the previous poll",
		}),
		SystemMemoryPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voicehive_system_memory_percent",
			Help: "Host virtual memory utilization",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.BreakerState, m.BreakerFailureTotal, m.BreakerSuccessTotal,
		m.CacheHitsTotal, m.CacheMissesTotal, m.CacheHitRatio,
		m.PendingApprovals, m.SystemCPUPercent, m.SystemMemoryPercent,
	} {
		registerer.MustRegister(c)
	}

	return m
}

// PollBreakers sets the breaker gauges from the fabric's current
// snapshots; called on a timer rather than pushed synchronously from
// Fabric.Execute, so the resilience package stays free of a Prometheus
// dependency.
func (m *Metrics) PollBreakers(f *resilience.Fabric) {
	for _, snap := range f.Snapshots() {
		m.BreakerState.WithLabelValues(snap.Dependency, snap.Kind).Set(breakerStateValue(snap.State))
		m.BreakerFailureTotal.WithLabelValues(snap.Dependency, snap.Kind).Set(float64(snap.TotalFailures))
		m.BreakerSuccessTotal.WithLabelValues(snap.Dependency, snap.Kind).Set(float64(snap.TotalSuccess))
	}
}

// PollCache sets the cache gauges from the two-tier cache's running
// stats.
func (m *Metrics) PollCache(stats cache.Stats) {
	m.CacheHitsTotal.Set(float64(stats.Hits))
	m.CacheMissesTotal.Set(float64(stats.Misses))
	total := stats.Hits + stats.Misses
	if total > 0 {
		m.CacheHitRatio.Set(float64(stats.Hits) / float64(total))
	}
}

// PollSystem samples host CPU and memory utilization. Sampling errors
// leave the previous gauge values in place; a host that can't report
// them (restricted container) just exports stale zeros.
func (m *Metrics) PollSystem() {
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		m.SystemCPUPercent.Set(percents[0])
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		m.SystemMemoryPercent.Set(vm.UsedPercent)
	}
}

// SetPendingApprovals records the current pending-approval count for an
// environment, called after any approval workflow mutation.
func (m *Metrics) SetPendingApprovals(environment string, count int) {
	m.PendingApprovals.WithLabelValues(environment).Set(float64(count))
}

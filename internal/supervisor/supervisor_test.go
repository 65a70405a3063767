package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicehive-hotels/orchestrator/internal/cache"
	"github.com/voicehive-hotels/orchestrator/internal/resilience"
)

func newTestSupervisor(t *testing.T, cfg Config) *Supervisor {
	t.Helper()
	local := cache.NewMemoryCache(cache.DefaultMemoryConfig())
	twoTier := cache.NewTwoTier(local, nil)
	fabric := resilience.NewFabric(nil, nil)
	metrics := NewMetricsWithRegistry(t.Name(), prometheus.NewRegistry())
	health := NewHealthChecker(time.Second)
	return New(cfg, health, metrics, fabric, twoTier)
}

func TestSupervisor_RunsHealthChecksOnSchedule(t *testing.T) {
	sup := newTestSupervisor(t, Config{HealthCheckInterval: 10 * time.Millisecond})

	var count atomic.Int32
	sup.health.Register("probe", func(ctx context.Context) ComponentHealth {
		count.Add(1)
		return ComponentHealth{Status: StatusHealthy}
	})

	sup.Start(context.Background())
	defer sup.Stop()

	require.Eventually(t, func() bool { return count.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestSupervisor_RunsWarmersOnSchedule(t *testing.T) {
	sup := newTestSupervisor(t, Config{CacheWarmInterval: 10 * time.Millisecond})

	var ran atomic.Int32
	sup.RegisterWarmer("hot-phrases", func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})

	sup.Start(context.Background())
	defer sup.Stop()

	require.Eventually(t, func() bool { return ran.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestSupervisor_StopWaitsForLoopsToExit(t *testing.T) {
	sup := newTestSupervisor(t, Config{HealthCheckInterval: 5 * time.Millisecond})
	sup.Start(context.Background())
	sup.Stop()
	// A second Stop (e.g. from a deferred caller) must not hang or panic.
	sup.Stop()
}

func TestMetrics_PollBreakersSetsGaugeFromSnapshot(t *testing.T) {
	fabric := resilience.NewFabric(nil, nil)
	_ = fabric.Execute(context.Background(), "pms", "read", func(ctx context.Context) error { return nil })

	m := NewMetricsWithRegistry(t.Name(), prometheus.NewRegistry())
	m.PollBreakers(fabric)

	value := testutil.ToFloat64(m.BreakerState.WithLabelValues("pms", "read"))
	assert.Equal(t, float64(0), value)
}

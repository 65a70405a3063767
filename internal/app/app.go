// Package app wires every package built for the orchestrator into one
// running process: open the store, build the resilience fabric and
// caches on top of it, then hang every domain package (secrets, mfa,
// tenant, approval, asr, tts, pms) off those shared foundations, and
// finally the supervisor that watches all of it.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/voicehive-hotels/orchestrator/internal/approval"
	"github.com/voicehive-hotels/orchestrator/internal/asr"
	"github.com/voicehive-hotels/orchestrator/internal/cache"
	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/internal/logging"
	"github.com/voicehive-hotels/orchestrator/internal/mfa"
	"github.com/voicehive-hotels/orchestrator/internal/pms"
	"github.com/voicehive-hotels/orchestrator/internal/pms/apaleo"
	"github.com/voicehive-hotels/orchestrator/internal/resilience"
	"github.com/voicehive-hotels/orchestrator/internal/secrets"
	"github.com/voicehive-hotels/orchestrator/internal/store"
	"github.com/voicehive-hotels/orchestrator/internal/supervisor"
	"github.com/voicehive-hotels/orchestrator/internal/tenant"
	"github.com/voicehive-hotels/orchestrator/internal/tts"
	"github.com/voicehive-hotels/orchestrator/pkg/config"
	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

// App holds every wired component the orchestrator process needs,
// assembled once at startup and torn down once at shutdown.
type App struct {
	cfg *config.Config
	db  *sqlx.DB
	log *logging.Logger

	Fabric    *resilience.Fabric
	Cache     *cache.TwoTier
	Secrets   *secrets.Store
	Lifecycle *secrets.LifecycleManager
	Anomaly   *secrets.AnomalyDetector
	Hierarchy *tenant.HierarchyManager
	Chain     *tenant.Engine
	Scheduler *tenant.Scheduler
	MFA       *mfa.Manager
	Approval  *approval.Workflow
	ASR       *asr.Proxy
	TTS       *tts.Router
	PMS       pms.Connector

	health     *supervisor.HealthChecker
	metrics    *supervisor.Metrics
	Supervisor *supervisor.Supervisor

	grpcPool *resilience.GRPCPool
}

// stateChangeLogger adapts *logging.Logger to resilience.StateChangeLogger.
type stateChangeLogger struct {
	log *logging.Logger
}

func (l *stateChangeLogger) WarnStateChange(dependency string, from, to resilience.State) {
	l.log.Warn(context.Background(), "circuit breaker state change", map[string]any{
		"dependency": dependency,
		"from":       from.String(),
		"to":         to.String(),
	})
}

// notificationSink adapts *logging.Logger to secrets.NotificationSink.
// Email/Slack delivery is an external transport this orchestrator does
// not own; the event is logged so it stays auditable.
type notificationSink struct {
	log *logging.Logger
}

func (n *notificationSink) Notify(ctx context.Context, secretID, event string, recipients []string) {
	n.log.Info(ctx, "secret lifecycle notification", map[string]any{
		"secret_id":  secretID,
		"event":      event,
		"recipients": recipients,
	})
}

// unconfiguredRecognizer is the documented extension point for a real
// ASR backend. Implementing speech-recognition algorithms is an
// explicit non-goal; wiring a vendor's generated gRPC stub here is left
// to the deployment that has one.
type unconfiguredRecognizer struct{}

func (unconfiguredRecognizer) TranscribeUnary(ctx context.Context, audio []byte, cfg domain.StreamConfig) (domain.TranscriptSegment, error) {
	return domain.TranscriptSegment{}, voicehiveerr.Internal("asr: no recognizer backend configured", nil)
}

func (unconfiguredRecognizer) OpenStream(ctx context.Context, cfg domain.StreamConfig) (asr.Stream, error) {
	return nil, voicehiveerr.Internal("asr: no recognizer backend configured", nil)
}

func unconfiguredRecognizerFactory(*resilience.GRPCPool) asr.Recognizer {
	return unconfiguredRecognizer{}
}

// New assembles every component from cfg, opening the store connection
// and failing fast if any dependency cannot be constructed. Network
// dependencies (Postgres, Redis, the ASR/PMS endpoints) are dialed
// lazily by their respective clients, so New succeeding does not by
// itself prove those backends are reachable; Start's health checks
// cover that.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.New("voicehive-orchestrator", cfg.Logging.Level, cfg.Logging.Format)

	db, err := store.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	secretsRepo := store.NewSecretsRepository(db)
	hierarchyRepo := store.NewHierarchyRepository(db)
	enrollmentRepo := store.NewEnrollmentRepository(db)
	approvalRepo := store.NewApprovalRepository(db)

	local := cache.NewMemoryCache(cache.MemoryConfig{
		DefaultTTL:      cfg.Cache.DefaultTTL,
		MaxEntries:      cfg.Cache.MaxEntries,
		MaxBytes:        cfg.Cache.MaxBytes,
		EvictionPolicy:  cache.EvictionPolicy(cfg.Cache.EvictionPolicy),
		CleanupInterval: cfg.Cache.CleanupInterval,
	})
	shared := cache.NewSharedCache(cache.SharedConfig{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
		Prefix:   cfg.Cache.Prefix,

		CompressionThreshold: cfg.Cache.CompressionThreshold,
	}, "voicehive")
	twoTier := cache.NewTwoTier(local, shared)

	fabric := resilience.NewFabric(shared, &stateChangeLogger{log: log})

	rawKey := []byte(os.Getenv(cfg.Security.MasterKeyEnv))
	secretStore, err := secrets.NewStore(secretsRepo, rawKey)
	if err != nil {
		return nil, fmt.Errorf("app: build secret store: %w", err)
	}
	lifecycle := secrets.NewLifecycleManager(secretStore, secretsRepo, &notificationSink{log: log})
	anomaly := secrets.NewAnomalyDetector(secretsRepo, allowedRegionsFrom(cfg), func(a domain.Anomaly) {
		log.LogSecurityEvent(context.Background(), "secret_anomaly", map[string]any{
			"secret_id":  a.SecretID,
			"category":   a.Category,
			"risk_score": a.RiskScore,
			"detail":     a.Detail,
		}, severityFor(a.RiskScore))
	})

	hierarchy := tenant.NewHierarchyManager(hierarchyRepo)
	chainEngine := tenant.NewEngine(hierarchyRepo, tenant.DefaultConcurrency)
	scheduler := tenant.NewScheduler(chainEngine, log.Logger)

	cipher := mfa.NewSecretStoreCipher(secretStore, "mfa")
	mfaManager := mfa.NewManager(enrollmentRepo, twoTier, cipher)

	ruleTable := approval.NewDefaultRuleTable()
	approvalWorkflow := approval.NewWorkflow(ruleTable, approvalRepo, log).WithDefaultExpiry(cfg.Approval.DefaultExpiry)

	grpcPool, err := resilience.DialGRPCPool(resilience.GRPCPoolConfig{
		Target: cfg.ASR.Endpoint,
		Size:   cfg.ASR.PoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("app: dial asr pool: %w", err)
	}
	asr.ConfigureBreakers(fabric)
	asrProxy := asr.NewProxy(grpcPool, fabric, unconfiguredRecognizerFactory)

	engines, err := ttsEngines(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: build tts engines: %w", err)
	}
	ttsRouter := tts.NewRouter(tts.Config{
		CacheTTL:                cfg.TTS.CacheTTL,
		AllowMockFallback:       cfg.TTS.AllowMockFallback,
		DefaultEngineByLanguage: cfg.TTS.DefaultEngineByLanguage,
	}, engines, twoTier, fabric)

	pmsConnector, err := newPMSConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: build pms connector: %w", err)
	}

	health := supervisor.NewHealthChecker(10 * time.Second)
	health.Register("database", supervisor.PingCheck(func(ctx context.Context) error {
		return db.PingContext(ctx)
	}))
	health.Register("pms", supervisor.PingCheck(pmsConnector.HealthCheck))
	health.Register("pms_breaker", supervisor.BreakerCheck("pms", "read", func(ctx context.Context, dependency, kind string) (string, error) {
		snap, err := fabric.Snapshot(ctx, dependency, kind)
		if err != nil {
			return "", err
		}
		return snap.State.String(), nil
	}))
	health.Register("asr_breaker", supervisor.BreakerCheck("asr", "asr", func(ctx context.Context, dependency, kind string) (string, error) {
		snap, err := fabric.Snapshot(ctx, dependency, kind)
		if err != nil {
			return "", err
		}
		return snap.State.String(), nil
	}))
	health.Register("asr_connection_breaker", supervisor.BreakerCheck("asr", "connection", func(ctx context.Context, dependency, kind string) (string, error) {
		snap, err := fabric.Snapshot(ctx, dependency, kind)
		if err != nil {
			return "", err
		}
		return snap.State.String(), nil
	}))

	metrics := supervisor.NewMetricsWithRegistry("voicehive_orchestrator", prometheus.DefaultRegisterer)
	sup := supervisor.New(supervisor.Config{
		HealthCheckInterval: cfg.Supervisor.HealthCheckInterval,
		MetricsPollInterval: cfg.Supervisor.MetricsPollInterval,
		CacheWarmInterval:   cfg.Supervisor.CacheWarmInterval,
	}, health, metrics, fabric, twoTier)

	return &App{
		cfg:        cfg,
		db:         db,
		log:        log,
		Fabric:     fabric,
		Cache:      twoTier,
		Secrets:    secretStore,
		Lifecycle:  lifecycle,
		Anomaly:    anomaly,
		Hierarchy:  hierarchy,
		Chain:      chainEngine,
		Scheduler:  scheduler,
		MFA:        mfaManager,
		Approval:   approvalWorkflow,
		ASR:        asrProxy,
		TTS:        ttsRouter,
		PMS:        pmsConnector,
		health:     health,
		metrics:    metrics,
		Supervisor: sup,
		grpcPool:   grpcPool,
	}, nil
}

// Start launches the supervisor's background loops and the chain
// operation scheduler.
func (a *App) Start(ctx context.Context) {
	a.Supervisor.Start(ctx)
	a.Scheduler.Start()
}

// Stop halts the scheduler and supervisor loops and releases the store
// connection and gRPC pool, in reverse construction order.
func (a *App) Stop() {
	a.Scheduler.Stop()
	a.Supervisor.Stop()
	if a.grpcPool != nil {
		_ = a.grpcPool.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func allowedRegionsFrom(cfg *config.Config) []string {
	return []string{"eu-west-1", "eu-central-1"}
}

// severityFor maps an anomaly's risk score to the severity levels
// Logger.LogSecurityEvent understands, splitting high from medium at a
// risk score of 70.
func severityFor(riskScore int) string {
	if riskScore >= 70 {
		return "high"
	}
	return "medium"
}

// ttsEngines builds one HTTP engine per configured back-end; a back-end
// with no URL is skipped rather than half-constructed.
func ttsEngines(cfg *config.Config) ([]tts.Engine, error) {
	var engines []tts.Engine
	if cfg.TTS.ElevenLabsURL != "" {
		e, err := tts.NewHTTPEngine(tts.HTTPEngineConfig{
			Name:       "elevenlabs",
			BaseURL:    cfg.TTS.ElevenLabsURL,
			AuthHeader: "xi-api-key",
			AuthValue:  cfg.TTS.ElevenLabsAPIKey,
		})
		if err != nil {
			return nil, err
		}
		engines = append(engines, e)
	}
	if cfg.TTS.AzureURL != "" {
		e, err := tts.NewHTTPEngine(tts.HTTPEngineConfig{
			Name:       "azure",
			BaseURL:    cfg.TTS.AzureURL,
			AuthHeader: "Ocp-Apim-Subscription-Key",
			AuthValue:  cfg.TTS.AzureKey,
		})
		if err != nil {
			return nil, err
		}
		engines = append(engines, e)
	}
	return engines, nil
}

func newPMSConnector(cfg *config.Config) (pms.Connector, error) {
	client, err := apaleo.NewClient(apaleo.Config{
		BaseURL:      firstNonEmpty(cfg.PMS.ApaleoBaseURL, "https://api.apaleo.com"),
		ClientID:     cfg.PMS.ApaleoClientID,
		ClientSecret: cfg.PMS.ApaleoClientSecret,
		TokenURL:     cfg.PMS.ApaleoTokenURL,
		PropertyID:   cfg.PMS.ApaleoPropertyID,

		RequestsPerSecond: cfg.PMS.RequestsPerSecond,
		Burst:             cfg.PMS.Burst,
	})
	if err != nil {
		return nil, err
	}
	return apaleo.NewAdapter(client, cfg.PMS.ApaleoPropertyID), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

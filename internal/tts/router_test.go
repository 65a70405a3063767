package tts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicehive-hotels/orchestrator/internal/cache"
	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/internal/resilience"
)

type countingEngine struct {
	name  string
	calls int32
	err   error
}

func (e *countingEngine) Name() string { return e.name }

func (e *countingEngine) Synthesize(ctx context.Context, req domain.SynthesisRequest) ([]byte, int64, error) {
	atomic.AddInt32(&e.calls, 1)
	if e.err != nil {
		return nil, 0, e.err
	}
	return []byte("audio-bytes"), 1200, nil
}

func newTestRouter(cfg Config, engines ...Engine) *Router {
	local := cache.NewMemoryCache(cache.DefaultMemoryConfig())
	tt := cache.NewTwoTier(local, nil)
	fabric := resilience.NewFabric(nil, nil)
	return NewRouter(cfg, engines, tt, fabric)
}

func TestSynthesize_RejectsSpeedOutOfRange(t *testing.T) {
	r := newTestRouter(Config{}, &countingEngine{name: "rachel"})
	_, err := r.Synthesize(context.Background(), domain.SynthesisRequest{Text: "hi", Engine: "rachel", Speed: 3.0})
	require.Error(t, err)
}

func TestSynthesize_CacheMissThenHit(t *testing.T) {
	engine := &countingEngine{name: "rachel"}
	r := newTestRouter(Config{}, engine)

	req := domain.SynthesisRequest{Text: "Welcome", LanguageCode: "en-US", VoiceName: "rachel", Engine: "rachel", Format: domain.FormatMP3}

	first, err := r.Synthesize(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, int32(1), atomic.LoadInt32(&engine.calls))

	second, err := r.Synthesize(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Audio, second.Audio)
	assert.Equal(t, int32(1), atomic.LoadInt32(&engine.calls))
}

func TestSynthesize_ConcurrentMissesCallEngineOnce(t *testing.T) {
	engine := &countingEngine{name: "rachel"}
	r := newTestRouter(Config{}, engine)
	req := domain.SynthesisRequest{Text: "Welcome", LanguageCode: "en-US", VoiceName: "rachel", Engine: "rachel"}

	var wg sync.WaitGroup
	results := make([]domain.SynthesisResult, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Synthesize(context.Background(), req)
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&engine.calls))
	for _, res := range results {
		assert.Equal(t, results[0].Audio, res.Audio)
	}
}

func TestSynthesize_FallsBackToMockOnlyWhenAllowed(t *testing.T) {
	engine := &countingEngine{name: "rachel", err: errors.New("vendor down")}

	strict := newTestRouter(Config{AllowMockFallback: false}, engine)
	_, err := strict.Synthesize(context.Background(), domain.SynthesisRequest{Text: "hi", Engine: "rachel"})
	require.Error(t, err)

	engine2 := &countingEngine{name: "rachel", err: errors.New("vendor down")}
	lenient := newTestRouter(Config{AllowMockFallback: true}, engine2)
	res, err := lenient.Synthesize(context.Background(), domain.SynthesisRequest{Text: "hi there", Engine: "rachel"})
	require.NoError(t, err)
	assert.True(t, res.MockFallback)
	assert.Equal(t, "mock", res.Engine)
}

func TestFingerprint_IsCaseInsensitiveOnEnumsButNotText(t *testing.T) {
	a := Fingerprint(domain.SynthesisRequest{Text: "Hello", LanguageCode: "EN-US", Engine: "Rachel"})
	b := Fingerprint(domain.SynthesisRequest{Text: "Hello", LanguageCode: "en-us", Engine: "rachel"})
	assert.Equal(t, a, b)

	c := Fingerprint(domain.SynthesisRequest{Text: "hello", LanguageCode: "en-us", Engine: "rachel"})
	assert.NotEqual(t, a, c)
}

func TestRouterRespectsCacheTTLConfig(t *testing.T) {
	r := newTestRouter(Config{CacheTTL: time.Hour}, &countingEngine{name: "rachel"})
	assert.Equal(t, time.Hour, r.cfg.CacheTTL)
}

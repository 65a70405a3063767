// Package tts implements the TTS Router: engine selection by
// language/voice policy, a sha256 content fingerprint as cache key, and
// single-flight cached synthesis across a two-tier cache.
//
// The fallback chain (primary engine, then an optional mock
// synthesizer) runs through internal/fallback.Handler; cache lookup,
// promotion, and stampede protection reuse internal/cache.TwoTier
// rather than reimplementing single-flight here.
package tts

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/voicehive-hotels/orchestrator/internal/cache"
	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/internal/fallback"
	"github.com/voicehive-hotels/orchestrator/internal/resilience"
	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

// Config controls router-wide policy, separate from any individual
// request.
type Config struct {
	// DefaultEngineByLanguage maps a BCP-47 language tag to the engine
	// name used when a request does not specify one.
	DefaultEngineByLanguage map[string]string
	// CacheTTL is how long a synthesis result is retained; defaults to
	// one hour.
	CacheTTL time.Duration
	// AllowMockFallback opts this deployment into the silent-PCM mock
	// synthesizer when every real engine attempt fails. Defaults to
	// false: a production deployment must opt in explicitly.
	AllowMockFallback bool
	// Voices extends or replaces the built-in voice catalog used to
	// resolve VoiceName requests to vendor voice IDs.
	Voices []Voice
}

// Router selects a synthesis engine, fingerprints the request, and
// serves cached audio when available.
type Router struct {
	cfg     Config
	engines map[string]Engine
	catalog []Voice
	cache   *cache.TwoTier
	fabric  *resilience.Fabric
	fb      *fallback.Handler[synthOutput]
}

func NewRouter(cfg Config, engines []Engine, c *cache.TwoTier, fabric *resilience.Fabric) *Router {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	byName := make(map[string]Engine, len(engines))
	for _, e := range engines {
		byName[strings.ToLower(e.Name())] = e
	}
	catalog := cfg.Voices
	if len(catalog) == 0 {
		catalog = defaultCatalog
	}
	return &Router{
		cfg:     cfg,
		engines: byName,
		catalog: catalog,
		cache:   c,
		fabric:  fabric,
		fb:      fallback.NewHandler[synthOutput](fallback.DefaultConfig()),
	}
}

// Synthesize validates the request, resolves the engine, and returns
// cached audio when the fingerprint already has a stored result;
// otherwise it synthesizes, stores, and returns the fresh result.
// Concurrent cache-missing calls for the same fingerprint coalesce into
// a single upstream synthesis via the underlying two-tier cache.
func (r *Router) Synthesize(ctx context.Context, req domain.SynthesisRequest) (domain.SynthesisResult, error) {
	if req.Speed == 0 {
		req.Speed = 1.0
	}
	if req.Speed < 0.5 || req.Speed > 2.0 {
		return domain.SynthesisResult{}, voicehiveerr.Validation("speed must be within [0.5, 2.0]", nil)
	}
	if req.Format == "" {
		req.Format = domain.FormatMP3
	}
	if req.Engine == "" {
		req.Engine = r.cfg.DefaultEngineByLanguage[strings.ToLower(req.LanguageCode)]
	}

	key := Fingerprint(req)

	// A shared-tier hit arrives JSON-decoded as a generic map.
	asResult := func(v any) (domain.SynthesisResult, bool) {
		res, ok := v.(domain.SynthesisResult)
		if m, isMap := v.(map[string]any); isMap {
			raw, _ := json.Marshal(m)
			ok = json.Unmarshal(raw, &res) == nil
		}
		return res, ok
	}

	var existing any
	if hit, err := r.cache.Get(ctx, key, &existing); err != nil {
		return domain.SynthesisResult{}, err
	} else if hit {
		result, ok := asResult(existing)
		if ok {
			result.Cached = true
			return result, nil
		}
	}

	started := time.Now()
	raw, err := r.cache.GetOrSet(ctx, key, r.cfg.CacheTTL, func(ctx context.Context) (any, error) {
		return r.synthesizeUncached(ctx, req)
	})
	if err != nil {
		return domain.SynthesisResult{}, err
	}
	result, ok := asResult(raw)
	if !ok {
		return domain.SynthesisResult{}, voicehiveerr.Internal("synthesis result cache corruption", nil)
	}
	result.Cached = false
	result.ProcessingMS = time.Since(started).Milliseconds()
	return result, nil
}

type synthOutput struct {
	audio      []byte
	durationMS int64
	engine     string
	mock       bool
}

func (r *Router) synthesizeUncached(ctx context.Context, req domain.SynthesisRequest) (domain.SynthesisResult, error) {
	engine, ok := r.engines[strings.ToLower(req.Engine)]
	if !ok {
		return domain.SynthesisResult{}, voicehiveerr.Validation("no engine configured for "+req.Engine, nil)
	}

	voice := resolveVoice(r.catalog, voiceQuery{
		VoiceID:   req.VoiceID,
		VoiceName: req.VoiceName,
		Engine:    req.Engine,
		Language:  req.LanguageCode,
	})
	req.VoiceID = voice

	primary := func(ctx context.Context) (synthOutput, error) {
		var out synthOutput
		err := r.fabric.Execute(ctx, "tts", engine.Name(), func(ctx context.Context) error {
			audio, durationMS, err := engine.Synthesize(ctx, req)
			if err != nil {
				return err
			}
			out = synthOutput{audio: audio, durationMS: durationMS, engine: engine.Name()}
			return nil
		})
		return out, err
	}

	var fallbacks []fallback.Func[synthOutput]
	if r.cfg.AllowMockFallback {
		fallbacks = append(fallbacks, func(ctx context.Context) (synthOutput, error) {
			m := mockEngine{}
			audio, durationMS, err := m.Synthesize(ctx, req)
			return synthOutput{audio: audio, durationMS: durationMS, engine: m.Name(), mock: true}, err
		})
	}

	res := r.fb.Execute(ctx, primary, fallbacks...)
	if res.Err != nil {
		return domain.SynthesisResult{}, res.Err
	}
	out := res.Value

	voiceUsed := voice
	if voiceUsed == "" {
		voiceUsed = req.VoiceName
	}

	return domain.SynthesisResult{
		Audio:        out.audio,
		DurationMS:   out.durationMS,
		Engine:       out.engine,
		VoiceUsed:    voiceUsed,
		MockFallback: out.mock,
		GeneratedAt:  time.Now(),
	}, nil
}

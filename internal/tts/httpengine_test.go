package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

func TestHTTPEngine_SendsAuthHeaderAndReturnsAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/synthesize", r.URL.Path)
		require.Equal(t, "secret-key", r.Header.Get("xi-api-key"))

		var payload synthesisPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Welcome", payload.Text)
		assert.Equal(t, "en-US", payload.Language)

		w.Header().Set("X-Duration-Ms", "850")
		_, _ = w.Write([]byte("fake-mp3-bytes"))
	}))
	defer srv.Close()

	engine, err := NewHTTPEngine(HTTPEngineConfig{
		Name:       "elevenlabs",
		BaseURL:    srv.URL,
		AuthHeader: "xi-api-key",
		AuthValue:  "secret-key",
	})
	require.NoError(t, err)

	audio, durationMS, err := engine.Synthesize(context.Background(), domain.SynthesisRequest{
		Text:         "Welcome",
		LanguageCode: "en-US",
		Format:       domain.FormatMP3,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-mp3-bytes"), audio)
	assert.Equal(t, int64(850), durationMS)
}

func TestHTTPEngine_EstimatesDurationWhenHeaderAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("audio"))
	}))
	defer srv.Close()

	engine, err := NewHTTPEngine(HTTPEngineConfig{Name: "azure", BaseURL: srv.URL})
	require.NoError(t, err)

	_, durationMS, err := engine.Synthesize(context.Background(), domain.SynthesisRequest{Text: "hello there"})
	require.NoError(t, err)
	assert.Equal(t, int64(len("hello there")*msPerCharacter), durationMS)
}

func TestHTTPEngine_ClassifiesVendorStatuses(t *testing.T) {
	tests := []struct {
		status int
		kind   voicehiveerr.Kind
	}{
		{http.StatusBadRequest, voicehiveerr.KindValidation},
		{http.StatusUnauthorized, voicehiveerr.KindAuth},
		{http.StatusTooManyRequests, voicehiveerr.KindRateLimited},
		{http.StatusServiceUnavailable, voicehiveerr.KindTransient},
	}
	for _, tc := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		engine, err := NewHTTPEngine(HTTPEngineConfig{Name: "azure", BaseURL: srv.URL})
		require.NoError(t, err)

		_, _, err = engine.Synthesize(context.Background(), domain.SynthesisRequest{Text: "x"})
		require.Error(t, err, "status %d", tc.status)
		assert.Equal(t, tc.kind, voicehiveerr.KindOf(err), "status %d", tc.status)
		srv.Close()
	}
}

package asr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
	"github.com/voicehive-hotels/orchestrator/pkg/voicehiveerr"
)

func TestValidateConfig_DefaultsAndBounds(t *testing.T) {
	cfg, err := validateConfig(domain.StreamConfig{LanguageCode: "en-US"})
	require.NoError(t, err)
	assert.Equal(t, "LINEAR16", cfg.Encoding)
	assert.Equal(t, 16000, cfg.SampleRateHz)
	assert.Equal(t, 1, cfg.MaxAlternatives)

	cfg, err = validateConfig(domain.StreamConfig{Encoding: "FLAC", SampleRateHz: 48000, MaxAlternatives: 10})
	require.NoError(t, err)
	assert.Equal(t, "FLAC", cfg.Encoding)
}

func TestValidateConfig_RejectsOutOfRangeValues(t *testing.T) {
	for _, cfg := range []domain.StreamConfig{
		{Encoding: "OPUS"},
		{SampleRateHz: 7999},
		{SampleRateHz: 48001},
		{MaxAlternatives: 11},
		{MaxAlternatives: -1},
	} {
		_, err := validateConfig(cfg)
		require.Error(t, err)
		assert.Equal(t, voicehiveerr.KindValidation, voicehiveerr.KindOf(err))
	}
}

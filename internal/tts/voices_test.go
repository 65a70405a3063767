package tts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveVoice_ExplicitIDWins(t *testing.T) {
	got := resolveVoice(defaultCatalog, voiceQuery{VoiceID: "custom-id", VoiceName: "rachel"})
	assert.Equal(t, "custom-id", got)
}

func TestResolveVoice_NamePrefersMatchingEngineThenLanguage(t *testing.T) {
	catalog := []Voice{
		{ID: "v-az", Name: "nova", Engine: "azure", Language: "de-DE"},
		{ID: "v-el", Name: "nova", Engine: "elevenlabs", Language: "en-US"},
		{ID: "v-fr", Name: "nova", Engine: "other", Language: "fr-FR"},
	}

	assert.Equal(t, "v-az", resolveVoice(catalog, voiceQuery{VoiceName: "nova", Engine: "azure"}))
	assert.Equal(t, "v-fr", resolveVoice(catalog, voiceQuery{VoiceName: "nova", Engine: "unlisted", Language: "fr-FR"}))
	// No engine or language match: first catalog entry wins.
	assert.Equal(t, "v-az", resolveVoice(catalog, voiceQuery{VoiceName: "nova", Engine: "unlisted", Language: "it-IT"}))
}

func TestResolveVoice_UnknownNamePassesThrough(t *testing.T) {
	got := resolveVoice(defaultCatalog, voiceQuery{VoiceName: "nobody-home"})
	assert.Equal(t, "nobody-home", got)
}

func TestResolveVoice_DefaultsToEngineLanguageVoice(t *testing.T) {
	got := resolveVoice(defaultCatalog, voiceQuery{Engine: "azure", Language: "de-DE"})
	assert.Equal(t, "de-DE-KatjaNeural", got)

	assert.Empty(t, resolveVoice(defaultCatalog, voiceQuery{Engine: "azure", Language: "ja-JP"}))
}

package tts

import "strings"

// Voice is one catalog entry: a vendor voice ID plus the human-facing
// name callers use to request it.
type Voice struct {
	ID       string
	Name     string
	Engine   string
	Language string
}

// defaultCatalog covers the stock voices of the two built-in engines.
// Deployments extend or replace it through Config.Voices.
var defaultCatalog = []Voice{
	{ID: "21m00Tcm4TlvDq8ikWAM", Name: "rachel", Engine: "elevenlabs", Language: "en-US"},
	{ID: "ErXwobaYiN019PkySvjV", Name: "antoni", Engine: "elevenlabs", Language: "en-US"},
	{ID: "EXAVITQu4vr4xnSDxMaL", Name: "bella", Engine: "elevenlabs", Language: "en-US"},
	{ID: "de-DE-KatjaNeural", Name: "katja", Engine: "azure", Language: "de-DE"},
	{ID: "de-DE-ConradNeural", Name: "conrad", Engine: "azure", Language: "de-DE"},
	{ID: "en-US-JennyNeural", Name: "jenny", Engine: "azure", Language: "en-US"},
	{ID: "fr-FR-DeniseNeural", Name: "denise", Engine: "azure", Language: "fr-FR"},
	{ID: "es-ES-ElviraNeural", Name: "elvira", Engine: "azure", Language: "es-ES"},
}

// resolveVoice turns the request's voice fields into the voice ID the
// engine should receive:
//  1. an explicit VoiceID always wins;
//  2. a VoiceName is looked up in the catalog, preferring an entry on
//     the chosen engine, then one matching the request language, then
//     the first match; a name absent from the catalog passes through
//     unchanged;
//  3. with neither set, the chosen engine's default voice for the
//     request language is used (empty if the catalog has none).
func resolveVoice(catalog []Voice, req voiceQuery) string {
	if req.VoiceID != "" {
		return req.VoiceID
	}

	if req.VoiceName != "" {
		name := strings.ToLower(req.VoiceName)
		var matches []Voice
		for _, v := range catalog {
			if strings.ToLower(v.Name) == name {
				matches = append(matches, v)
			}
		}
		if len(matches) == 0 {
			return req.VoiceName
		}
		for _, v := range matches {
			if strings.EqualFold(v.Engine, req.Engine) {
				return v.ID
			}
		}
		for _, v := range matches {
			if strings.EqualFold(v.Language, req.Language) {
				return v.ID
			}
		}
		return matches[0].ID
	}

	for _, v := range catalog {
		if strings.EqualFold(v.Engine, req.Engine) && strings.EqualFold(v.Language, req.Language) {
			return v.ID
		}
	}
	return ""
}

type voiceQuery struct {
	VoiceID   string
	VoiceName string
	Engine    string
	Language  string
}

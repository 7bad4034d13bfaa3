package tts

import (
	"context"
	"strings"
)

// Voice is one available synthesis voice.
type Voice struct {
	ID     string
	Name   string
	Locale string
}

// Synthesizer turns reply text into spoken audio. Speak returns when
// playback completes or ctx is canceled.
type Synthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, text string, voice Voice) error
}

// preferredVoiceNames lists exact voice names tried first per locale.
var preferredVoiceNames = map[string][]string{
	"hi-IN": {"Google हिन्दी"},
	"en-US": {"Google US English", "Samantha"},
}

// informalNames maps a locale to the language word that may appear in a
// voice's display name.
var informalNames = map[string]string{
	"hi-IN": "hindi",
	"en-US": "english",
}

// SelectVoice picks a voice for the target locale: an exact preferred name
// first, then any voice whose name mentions the language informally, then
// any voice declaring the locale code. ok is false when nothing matched;
// playback then proceeds with the synthesizer's default voice.
func SelectVoice(voices []Voice, locale string) (Voice, bool) {
	for _, want := range preferredVoiceNames[locale] {
		for _, v := range voices {
			if v.Name == want {
				return v, true
			}
		}
	}
	if word := informalNames[locale]; word != "" {
		for _, v := range voices {
			if strings.Contains(strings.ToLower(v.Name), word) {
				return v, true
			}
		}
	}
	for _, v := range voices {
		if v.Locale == locale {
			return v, true
		}
	}
	return Voice{}, false
}

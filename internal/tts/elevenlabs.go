package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// ElevenLabsClient synthesizes speech via the ElevenLabs HTTP streaming
// endpoint and lists the account's available voices.
type ElevenLabsClient struct {
	APIKey         string
	DefaultVoiceID string
	HTTPClient     *http.Client
	// Sink receives streamed PCM audio. Nil drops the audio, which is
	// useful in tests and when the client only validates synthesis.
	Sink io.Writer
}

func NewElevenLabsClient(apiKey, defaultVoiceID string) *ElevenLabsClient {
	return &ElevenLabsClient{
		APIKey:         apiKey,
		DefaultVoiceID: defaultVoiceID,
		HTTPClient:     &http.Client{Timeout: 0},
	}
}

type voicesResponse struct {
	Voices []struct {
		VoiceID string `json:"voice_id"`
		Name    string `json:"name"`
		Labels  struct {
			Language string `json:"language"`
		} `json:"labels"`
	} `json:"voices"`
}

// Voices lists the available synthesis voices.
func (e *ElevenLabsClient) Voices(ctx context.Context) ([]Voice, error) {
	if e.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs: api key missing")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.elevenlabs.io/v1/voices", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", e.APIKey)

	client := e.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs voices: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("elevenlabs voices status=%d body=%s", resp.StatusCode, string(b))
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, err
	}
	voices := make([]Voice, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		voices = append(voices, Voice{ID: v.VoiceID, Name: v.Name, Locale: v.Labels.Language})
	}
	return voices, nil
}

// Speak streams synthesized audio for the text into the sink and returns
// once the stream completes. An empty voice falls back to the default
// voice id.
func (e *ElevenLabsClient) Speak(ctx context.Context, text string, voice Voice) error {
	if e.APIKey == "" {
		return fmt.Errorf("elevenlabs: api key missing")
	}
	voiceID := voice.ID
	if voiceID == "" {
		voiceID = e.DefaultVoiceID
	}
	if voiceID == "" {
		return fmt.Errorf("elevenlabs: no voice id available")
	}

	u := url.URL{
		Scheme: "https",
		Host:   "api.elevenlabs.io",
		Path:   "/v1/text-to-speech/" + voiceID + "/stream",
	}
	q := u.Query()
	q.Set("model_id", "eleven_flash_v2_5")
	q.Set("output_format", "pcm_48000")
	u.RawQuery = q.Encode()

	body := map[string]any{
		"model_id": "eleven_flash_v2_5",
		"text":     text,
		"voice_settings": map[string]any{
			"stability":        0.4,
			"similarity_boost": 0.7,
		},
	}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", e.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := e.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 0}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("elevenlabs stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("elevenlabs status=%d body=%s", resp.StatusCode, string(b))
	}

	chunk := make([]byte, 4096)
	logged := false
	for {
		n, rerr := resp.Body.Read(chunk)
		if n > 0 {
			if !logged {
				log.Printf("elevenlabs: receiving audio stream (%d bytes first chunk)", n)
				logged = true
			}
			if e.Sink != nil {
				if _, werr := e.Sink.Write(chunk[:n]); werr != nil {
					return fmt.Errorf("elevenlabs sink: %w", werr)
				}
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("elevenlabs read: %w", rerr)
		}
	}
}

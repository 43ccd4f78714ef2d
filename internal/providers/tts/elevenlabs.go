package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ElevenLabs renders question prompts through the text-to-speech REST API.
type ElevenLabs struct {
	APIKey  string
	VoiceID string // default voice when the interview config names none
	ModelID string

	httpc *http.Client
}

func NewElevenLabs(apiKey, voiceID string) *ElevenLabs {
	return &ElevenLabs{
		APIKey:  apiKey,
		VoiceID: voiceID,
		ModelID: "eleven_flash_v2_5",
		httpc:   &http.Client{Timeout: 45 * time.Second},
	}
}

type renderRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func (e *ElevenLabs) Render(ctx context.Context, text, voiceID string) ([]byte, string, error) {
	if e.APIKey == "" {
		return nil, "", fmt.Errorf("elevenlabs: api key missing")
	}
	if voiceID == "" {
		voiceID = e.VoiceID
	}
	if voiceID == "" {
		return nil, "", fmt.Errorf("elevenlabs: voice id missing")
	}

	u := url.URL{
		Scheme: "https",
		Host:   "api.elevenlabs.io",
		Path:   "/v1/text-to-speech/" + voiceID,
	}
	q := u.Query()
	q.Set("output_format", "mp3_44100_128")
	u.RawQuery = q.Encode()

	body, err := json.Marshal(renderRequest{Text: text, ModelID: e.ModelID})
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.APIKey)

	resp, err := e.httpc.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("elevenlabs: unexpected status %d", resp.StatusCode)
	}

	const maxClip = 20 << 20
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxClip))
	if err != nil {
		return nil, "", err
	}
	return audio, "audio/mpeg", nil
}

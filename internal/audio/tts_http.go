package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSynthesizer renders text through an ElevenLabs-style streaming REST
// endpoint and writes the returned audio into a Sink, pacing left to the sink.
type HTTPSynthesizer struct {
	Endpoint string // full URL of the TTS stream endpoint
	APIKey   string
	VoiceID  string
	Sink     Sink

	httpc *http.Client
}

func NewHTTPSynthesizer(endpoint, apiKey, voiceID string, sink Sink) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		Endpoint: endpoint,
		APIKey:   apiKey,
		VoiceID:  voiceID,
		Sink:     sink,
		httpc:    &http.Client{Timeout: 60 * time.Second},
	}
}

type ttsRequest struct {
	Text    string  `json:"text"`
	VoiceID string  `json:"voice_id,omitempty"`
	Rate    float64 `json:"rate,omitempty"`
	Pitch   float64 `json:"pitch,omitempty"`
	Volume  float64 `json:"volume,omitempty"`
}

func (s *HTTPSynthesizer) Speak(ctx context.Context, text string, opts SpeakOptions) error {
	if s.APIKey == "" {
		return fmt.Errorf("tts: api key missing")
	}
	if text == "" {
		return nil
	}

	voice := opts.Voice
	if voice == "" {
		voice = s.VoiceID
	}
	body, err := json.Marshal(ttsRequest{
		Text: text, VoiceID: voice,
		Rate: opts.Rate, Pitch: opts.Pitch, Volume: opts.Volume,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.APIKey)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("tts: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tts: unexpected status %d", resp.StatusCode)
	}

	return drainToSink(ctx, resp.Body, s.Sink)
}

// URLPlayer fetches a clip by URL and plays it through the sink.
type URLPlayer struct {
	Sink  Sink
	httpc *http.Client
}

func NewURLPlayer(sink Sink) *URLPlayer {
	return &URLPlayer{Sink: sink, httpc: &http.Client{Timeout: 60 * time.Second}}
}

func (p *URLPlayer) PlayURL(ctx context.Context, url string, volume float64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := p.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("play: fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("play: unexpected status %d", resp.StatusCode)
	}

	return drainToSink(ctx, resp.Body, p.Sink)
}

func drainToSink(ctx context.Context, r io.Reader, sink Sink) error {
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			sink.Reset()
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if werr := sink.Write(chunk); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return sink.Flush()
		}
		if err != nil {
			return err
		}
	}
}

package tts

import "context"

// Renderer produces a complete audio clip for a question prompt. The render
// worker uploads the clip and attaches its URL to the question.
type Renderer interface {
	Render(ctx context.Context, text, voiceID string) (audio []byte, contentType string, err error)
}

package audio

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkQueue feeds fixed frames then EOF, like a microphone being released.
type chunkQueue struct {
	frames [][]byte
}

func (q *chunkQueue) NextChunk(context.Context) ([]byte, error) {
	if len(q.frames) == 0 {
		return nil, io.EOF
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	return f, nil
}

// transcribeEcho answers each audio chunk with a per-chunk transcript; the
// audio-less final marker closes the exchange with an is_final result.
func transcribeEcho(t *testing.T, texts map[int64]string) http.HandlerFunc {
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for {
			var msg struct {
				Type        string `json:"type"`
				ChunkIndex  int64  `json:"chunk_index"`
				AudioBase64 string `json:"audio_base64"`
				IsFinal     bool   `json:"is_final"`
			}
			if conn.ReadJSON(&msg) != nil {
				return
			}
			if msg.Type != "audio_chunk" {
				continue
			}
			if msg.AudioBase64 == "" && !msg.IsFinal {
				_ = conn.WriteJSON(map[string]any{"type": "error", "message": "audio_base64 required"})
				return
			}
			if msg.IsFinal {
				_ = conn.WriteJSON(map[string]any{
					"type": "stt_result", "chunk_index": msg.ChunkIndex, "text": "", "is_final": true,
				})
				return
			}
			_ = conn.WriteJSON(map[string]any{
				"type": "stt_result", "chunk_index": msg.ChunkIndex,
				"text": texts[msg.ChunkIndex], "confidence": 0.9, "is_final": false,
			})
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSRecognizerJoinsFragmentsAcrossChunks(t *testing.T) {
	texts := map[int64]string{1: "I led the", 2: "payments migration"}
	srv := httptest.NewServer(transcribeEcho(t, texts))
	defer srv.Close()

	rec := &WSRecognizer{
		URL:    wsURL(srv),
		Source: &chunkQueue{frames: [][]byte{[]byte("frame-1"), []byte("frame-2")}},
	}
	stream, err := rec.Start(context.Background())
	require.NoError(t, err)
	defer stream.Stop()

	var last Result
	for res := range stream.Results() {
		last = res
	}

	require.NoError(t, stream.Err(), "running out of microphone input is not an error")
	assert.True(t, last.IsFinal)
	assert.Equal(t, "I led the payments migration", last.Transcript,
		"the final result carries the whole answer, not the last fragment")
}

func TestWSRecognizerSilentCaptureEndsCleanly(t *testing.T) {
	srv := httptest.NewServer(transcribeEcho(t, nil))
	defer srv.Close()

	rec := &WSRecognizer{
		URL:    wsURL(srv),
		Source: &chunkQueue{}, // EOF immediately, nothing was said
	}
	stream, err := rec.Start(context.Background())
	require.NoError(t, err)
	defer stream.Stop()

	var last Result
	for res := range stream.Results() {
		last = res
	}

	require.NoError(t, stream.Err())
	assert.True(t, last.IsFinal)
	assert.Equal(t, "", last.Transcript)
}

package audio

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSRecognizer streams captured audio chunks to the interview service's
// websocket transcription endpoint and yields interim and final transcripts.
// The service transcribes each chunk independently, so incoming stt_result
// messages are fragments; the stream joins them in chunk order and every
// Result carries the full text recognized so far.
type WSRecognizer struct {
	URL    string // ws(s) endpoint for the session
	Header http.Header
	Source ChunkSource

	Dialer *websocket.Dialer
}

func (r *WSRecognizer) Supported() bool {
	return r != nil && r.URL != "" && r.Source != nil
}

func (r *WSRecognizer) Start(ctx context.Context) (Stream, error) {
	dialer := r.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, r.URL, r.Header)
	if err != nil {
		return nil, err
	}

	s := &wsStream{
		conn:    conn,
		results: make(chan Result, 16),
		done:    make(chan struct{}),
		frags:   make(map[int64]string),
	}
	go s.writeLoop(ctx, r.Source)
	go s.readLoop()
	return s, nil
}

type wsChunkMsg struct {
	Type        string `json:"type"`
	ChunkIndex  int64  `json:"chunk_index"`
	AudioBase64 string `json:"audio_base64,omitempty"`
	IsFinal     bool   `json:"is_final"`
}

type wsResultMsg struct {
	Type       string  `json:"type"`
	ChunkIndex int64   `json:"chunk_index"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"is_final"`
	Message    string  `json:"message,omitempty"`
}

type wsStream struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	results chan Result
	done    chan struct{}

	// per-chunk transcript fragments, read-loop only
	frags map[int64]string

	stopOnce sync.Once
	errMu    sync.Mutex
	err      error
}

func (s *wsStream) Results() <-chan Result { return s.results }

func (s *wsStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *wsStream) setErr(err error) {
	s.errMu.Lock()
	if s.err == nil && err != nil {
		s.err = err
	}
	s.errMu.Unlock()
}

// Stop ends the stream deterministically. Idempotent.
func (s *wsStream) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
}

func (s *wsStream) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(v)
}

func (s *wsStream) writeLoop(ctx context.Context, src ChunkSource) {
	var index int64
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			s.Stop()
			return
		default:
		}

		chunk, err := src.NextChunk(ctx)
		if errors.Is(err, io.EOF) {
			// audio-less marker: capture ended naturally, flush the final result
			_ = s.writeJSON(wsChunkMsg{Type: "audio_chunk", ChunkIndex: index + 1, IsFinal: true})
			return
		}
		if err != nil {
			if ctx.Err() == nil {
				s.setErr(err)
			}
			s.Stop()
			return
		}
		if len(chunk) == 0 {
			continue
		}

		index++
		msg := wsChunkMsg{
			Type:        "audio_chunk",
			ChunkIndex:  index,
			AudioBase64: base64.StdEncoding.EncodeToString(chunk),
		}
		if werr := s.writeJSON(msg); werr != nil {
			select {
			case <-s.done:
			default:
				s.setErr(werr)
			}
			s.Stop()
			return
		}
	}
}

func (s *wsStream) readLoop() {
	defer close(s.results)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				// deliberate stop, not an error
			default:
				s.setErr(err)
				s.Stop()
			}
			return
		}

		var msg wsResultMsg
		if json.Unmarshal(data, &msg) != nil {
			continue
		}

		switch msg.Type {
		case "stt_result":
			if msg.Text != "" {
				s.frags[msg.ChunkIndex] = msg.Text
			}
			res := Result{Transcript: s.transcript(), Confidence: msg.Confidence, IsFinal: msg.IsFinal}
			select {
			case s.results <- res:
			case <-s.done:
				return
			}
			if msg.IsFinal {
				s.Stop()
				return
			}
		case "error":
			s.setErr(errors.New(msg.Message))
			s.Stop()
			return
		}
	}
}

func (s *wsStream) transcript() string {
	idx := make([]int64, 0, len(s.frags))
	for i := range s.frags {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(a, b int) bool { return idx[a] < idx[b] })

	parts := make([]string, 0, len(idx))
	for _, i := range idx {
		parts = append(parts, s.frags[i])
	}
	return strings.Join(parts, " ")
}

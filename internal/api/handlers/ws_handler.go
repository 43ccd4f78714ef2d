package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/chouhanjibanti/interview-live/internal/services"
	"github.com/chouhanjibanti/interview-live/internal/utils"
	"github.com/chouhanjibanti/interview-live/internal/workers"
)

// WSHandler streams candidate answer audio in and transcripts out. The client
// sends audio_chunk messages; workers publish stt_result and audio_status
// events on the session's pubsub channels, which this handler forwards.
type WSHandler struct {
	interviews services.InterviewService
	redis      *redis.Client
	upgrader   websocket.Upgrader
}

func NewWSHandler(interviews services.InterviewService, rdb *redis.Client) *WSHandler {
	return &WSHandler{
		interviews: interviews,
		redis:      rdb,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsClientMsg struct {
	Type        string `json:"type"`
	ChunkIndex  int64  `json:"chunk_index"`
	AudioBase64 string `json:"audio_base64"`
	Language    string `json:"language"`
	IsFinal     bool   `json:"is_final"`
}

// validateChunk returns a client-facing message when the chunk is not
// acceptable. An audio-less chunk is valid only as the is_final marker that
// ends capture.
func validateChunk(msg wsClientMsg) string {
	if msg.ChunkIndex <= 0 {
		return "chunk_index must be > 0"
	}
	if msg.AudioBase64 == "" && !msg.IsFinal {
		return "audio_base64 required"
	}
	return ""
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (h *WSHandler) InterviewWS(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.InterviewWS", "missing session_id", nil))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	respCh := workers.SessionResponseChannel(sessionID)
	statusCh := workers.SessionStatusChannel(sessionID)

	pubsub := h.redis.Subscribe(ctx, respCh, statusCh)
	defer pubsub.Close()

	// reader: WS -> redis stream
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"invalid json"}`))
				continue
			}

			switch msg.Type {
			case "audio_chunk":
				if emsg := validateChunk(msg); emsg != "" {
					_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"` + emsg + `"}`))
					continue
				}

				err := h.redis.XAdd(ctx, &redis.XAddArgs{
					Stream: workers.AnswerAudioStream,
					Values: map[string]any{
						"session_id":   sessionID,
						"chunk_index":  strconv.FormatInt(msg.ChunkIndex, 10),
						"audio_base64": msg.AudioBase64,
						"language":     msg.Language,
						"is_final":     strconv.FormatBool(msg.IsFinal),
						"ts_unix":      strconv.FormatInt(time.Now().UTC().Unix(), 10),
					},
				}).Err()
				if err != nil {
					_ = wc.writeText([]byte(`{"type":"error","code":"UNAVAILABLE","message":"failed to enqueue audio"}`))
					continue
				}

				_ = h.redis.Publish(ctx, statusCh, `{"type":"status","status":"processing","message":"audio chunk queued","chunk_index":`+strconv.FormatInt(msg.ChunkIndex, 10)+`}`).Err()

			case "end_stream":
				// recognition stops server-side; the session itself stays
				// active until the finish endpoint is called
				_ = h.redis.Publish(ctx, statusCh, `{"type":"status","status":"ended","message":"audio stream ended"}`).Err()
				return

			default:
				_ = wc.writeText([]byte(`{"type":"error","code":"INVALID_ARGUMENT","message":"unknown message type"}`))
			}
		}
	}()

	// writer: redis pubsub -> WS
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		default:
			m, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}
		}
	}
}

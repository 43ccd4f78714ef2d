package workers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/chouhanjibanti/interview-live/internal/providers/stt"
)

// AnswerAudioStream receives candidate answer chunks from the websocket
// handler; transcripts flow back over the session's response pubsub channel.
const AnswerAudioStream = "interview:audio:answers"

func SessionResponseChannel(sessionID string) string {
	return "interview:" + sessionID + ":response"
}

func SessionStatusChannel(sessionID string) string {
	return "interview:" + sessionID + ":status"
}

// TranscribePool turns streamed answer audio into stt_result messages.
type TranscribePool struct {
	Redis *redis.Client
	STT   stt.Provider

	NumWorkers int
	Logger     *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *TranscribePool) Start(ctx context.Context) error {
	if p.Redis == nil || p.STT == nil {
		return errors.New("TranscribePool missing dependency: Redis/STT must be set")
	}
	if p.Stream == "" {
		p.Stream = AnswerAudioStream
	}
	if p.Group == "" {
		p.Group = "transcribe-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "t"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 5
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *TranscribePool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *TranscribePool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	sessionID := getStr("session_id")
	chunkIndexStr := getStr("chunk_index")
	b64 := getStr("audio_base64")
	if sessionID == "" || chunkIndexStr == "" {
		return
	}
	chunkIndex, _ := strconv.ParseInt(chunkIndexStr, 10, 64)
	isFinal := getStr("is_final") == "true"

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":    msg.ID,
		"session_id":  sessionID,
		"chunk_index": chunkIndex,
	})

	respCh := SessionResponseChannel(sessionID)
	statusCh := SessionStatusChannel(sessionID)

	if b64 == "" {
		if !isFinal {
			return
		}
		// audio-less final marker: capture ended, flush is_final to the client
		payload, _ := json.Marshal(map[string]any{
			"type":        "stt_result",
			"chunk_index": chunkIndex,
			"text":        "",
			"confidence":  0,
			"is_final":    true,
		})
		_ = p.Redis.Publish(ctx, respCh, string(payload)).Err()
		return
	}

	raw := b64
	if i := strings.Index(raw, ","); i >= 0 {
		raw = raw[i+1:] // strip data:...;base64,
	}
	audio, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		log.WithError(err).Warn("base64 decode failed")
		_ = p.Redis.Publish(ctx, statusCh, `{"type":"status","status":"failed","message":"invalid audio_base64","chunk_index":`+strconv.FormatInt(chunkIndex, 10)+`}`).Err()
		return
	}

	text, conf, err := p.STT.Transcribe(ctx, audio, getStr("language"))
	if err != nil {
		log.WithError(err).Error("stt failed")
		_ = p.Redis.Publish(ctx, statusCh, `{"type":"status","status":"failed","message":"stt failed","chunk_index":`+strconv.FormatInt(chunkIndex, 10)+`}`).Err()
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"type":        "stt_result",
		"chunk_index": chunkIndex,
		"text":        text,
		"confidence":  conf,
		"is_final":    isFinal,
	})
	_ = p.Redis.Publish(ctx, respCh, string(payload)).Err()
}

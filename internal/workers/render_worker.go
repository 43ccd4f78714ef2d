package workers

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/chouhanjibanti/interview-live/internal/providers/tts"
	mongorepo "github.com/chouhanjibanti/interview-live/internal/repositories/mongo"
	"github.com/chouhanjibanti/interview-live/internal/services"
	"github.com/chouhanjibanti/interview-live/internal/storage"
)

// AudioRenderPool consumes question-render jobs enqueued by the interview
// service, synthesizes the question audio, uploads it, and patches the
// session's current question with the resulting URL. Clients watching the
// session status channel get notified once the clip is ready.
type AudioRenderPool struct {
	Redis    *redis.Client
	Sessions mongorepo.InterviewRepository
	TTS      tts.Renderer
	Uploader storage.Uploader

	NumWorkers int
	Logger     *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string

	DefaultVoiceID string
}

func (p *AudioRenderPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Sessions == nil || p.TTS == nil || p.Uploader == nil {
		return errors.New("AudioRenderPool missing dependency: Redis/Sessions/TTS/Uploader must be set")
	}
	if p.Stream == "" {
		p.Stream = services.AudioRenderStream
	}
	if p.Group == "" {
		p.Group = "render-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "r"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 3
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

func (p *AudioRenderPool) runConsumer(ctx context.Context, consumer string) {
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

func (p *AudioRenderPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	getStr := func(k string) string {
		v, ok := msg.Values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	sessionID := getStr("session_id")
	questionID := getStr("question_id")
	text := getStr("text")
	if sessionID == "" || questionID == "" || text == "" {
		return
	}

	voiceID := getStr("voice_id")
	if voiceID == "" {
		voiceID = p.DefaultVoiceID
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":    msg.ID,
		"session_id":  sessionID,
		"question_id": questionID,
	})

	statusCh := "interview:" + sessionID + ":status"

	audio, contentType, err := p.TTS.Render(ctx, text, voiceID)
	if err != nil {
		log.WithError(err).Error("question audio render failed")
		_ = p.Redis.Publish(ctx, statusCh, `{"type":"audio_status","status":"failed","question_id":"`+questionID+`"}`).Err()
		return
	}

	objectName := sessionID + "/" + questionID + ".mp3"
	url, err := p.Uploader.Upload(ctx, objectName, contentType, bytes.NewReader(audio))
	if err != nil {
		log.WithError(err).Error("question audio upload failed")
		_ = p.Redis.Publish(ctx, statusCh, `{"type":"audio_status","status":"failed","question_id":"`+questionID+`"}`).Err()
		return
	}

	if err := p.Sessions.SetQuestionAudioURL(ctx, sessionID, questionID, url); err != nil {
		// the session already moved past this question; drop the clip
		log.WithError(err).Warn("audio url patch skipped")
		return
	}

	_ = p.Redis.Publish(ctx, statusCh, `{"type":"audio_status","status":"ready","question_id":"`+questionID+`","audio_url":"`+url+`"}`).Err()
	log.Info("question audio rendered")
}

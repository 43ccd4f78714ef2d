package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/chouhanjibanti/interview-live/config"
	"github.com/chouhanjibanti/interview-live/internal/api/handlers"
	"github.com/chouhanjibanti/interview-live/internal/api/middleware"
	"github.com/chouhanjibanti/interview-live/internal/api/routes"
	"github.com/chouhanjibanti/interview-live/internal/cache"
	"github.com/chouhanjibanti/interview-live/internal/logger"
	"github.com/chouhanjibanti/interview-live/internal/providers/llm"
	"github.com/chouhanjibanti/interview-live/internal/providers/stt"
	"github.com/chouhanjibanti/interview-live/internal/providers/tts"
	mongorepo "github.com/chouhanjibanti/interview-live/internal/repositories/mongo"
	pgrepo "github.com/chouhanjibanti/interview-live/internal/repositories/postgres"
	"github.com/chouhanjibanti/interview-live/internal/services"
	"github.com/chouhanjibanti/interview-live/internal/storage"
	"github.com/chouhanjibanti/interview-live/internal/workers"
)

func main() {
	_ = godotenv.Load()

	l := logger.New()
	ctx := context.Background()

	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	l.Info("MongoDB connected")

	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}

	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	l.Info("PostgreSQL connected")

	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	l.Info("Redis connected")

	db := config.MongoDatabase()
	sessionRepo := mongorepo.NewInterviewRepo(db)
	answerRepo := mongorepo.NewAnswerRepo(db)
	candidateRepo := pgrepo.NewCandidateRepo(config.PostgresDB)
	accountRepo := pgrepo.NewAccountRepo(config.PostgresDB)
	redisCache := cache.NewRedisCache(config.RedisClient)

	llmProvider, err := llm.NewVertexGemini(ctx,
		os.Getenv("VERTEX_PROJECT_ID"),
		os.Getenv("VERTEX_LOCATION"),
		os.Getenv("VERTEX_MODEL"),
	)
	if err != nil {
		log.Fatalf("Vertex init error: %v", err)
	}
	defer llmProvider.Close()

	sttProvider, err := stt.NewGoogleSpeech(ctx)
	if err != nil {
		log.Fatalf("Speech init error: %v", err)
	}
	defer sttProvider.Close()

	uploader, err := storage.NewGCSUploader(ctx, os.Getenv("GCS_BUCKET"), "question-audio")
	if err != nil {
		log.Fatalf("GCS init error: %v", err)
	}
	defer uploader.Close()

	interviewSvc := services.NewInterviewService(
		sessionRepo, answerRepo, candidateRepo, redisCache, llmProvider, config.RedisClient, l)
	authSvc := services.NewAuthService(accountRepo, redisCache, l)

	renderPool := &workers.AudioRenderPool{
		Redis:          config.RedisClient,
		Sessions:       sessionRepo,
		TTS:            tts.NewElevenLabs(os.Getenv("ELEVENLABS_API_KEY"), os.Getenv("ELEVENLABS_VOICE_ID")),
		Uploader:       uploader,
		Logger:         l,
		DefaultVoiceID: os.Getenv("ELEVENLABS_VOICE_ID"),
	}
	if err := renderPool.Start(ctx); err != nil {
		log.Fatalf("render pool error: %v", err)
	}

	transcribePool := &workers.TranscribePool{
		Redis:  config.RedisClient,
		STT:    sttProvider,
		Logger: l,
	}
	if err := transcribePool.Start(ctx); err != nil {
		log.Fatalf("transcribe pool error: %v", err)
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(l), gin.Recovery())

	routes.RegisterRoutes(r, routes.Deps{
		Auth: handlers.NewAuthHandler(authSvc),
		Live: handlers.NewLiveHandler(interviewSvc),
		WS:   handlers.NewWSHandler(interviewSvc, config.RedisClient),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/chouhanjibanti/interview-live/internal/api/handlers"
	"github.com/chouhanjibanti/interview-live/internal/api/middleware"
)

type Deps struct {
	Auth *handlers.AuthHandler
	Live *handlers.LiveHandler
	WS   *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.POST("/v1/auth/register", d.Auth.Register)
	r.POST("/v1/auth/login", d.Auth.Login)
	r.POST("/v1/auth/refresh", d.Auth.Refresh)

	// Protected routes (JWT)
	live := r.Group("/v1/interview/live")
	live.Use(middleware.JWTAuth(), middleware.RequireRole("recruiter", "candidate", "admin"))

	// only recruiters set up sessions; the running interview is open to the
	// candidate's own token
	live.POST("/start", middleware.RequireRecruiter(), d.Live.Start)
	live.POST("/answer", d.Live.Answer)
	live.POST("/next", d.Live.Next)
	live.POST("/repeat", d.Live.Repeat)
	live.POST("/finish", d.Live.Finish)
	live.GET("/:session_id/report", d.Live.Report)

	// WebSocket: answer audio in, transcripts out
	live.GET("/:session_id/ws", d.WS.InterviewWS)
}

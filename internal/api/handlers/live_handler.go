package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chouhanjibanti/interview-live/internal/models"
	"github.com/chouhanjibanti/interview-live/internal/services"
	"github.com/chouhanjibanti/interview-live/internal/utils"
)

// LiveHandler serves the six live-interview operations.
type LiveHandler struct {
	svc services.InterviewService
}

func NewLiveHandler(svc services.InterviewService) *LiveHandler {
	return &LiveHandler{svc: svc}
}

type interviewConfig struct {
	Language        string `json:"language"`
	VoiceID         string `json:"voice_id"`
	DifficultyHint  int    `json:"difficulty_hint"`
	IncludeAudioURL bool   `json:"include_audio_url"`
}

type startRequest struct {
	ResumeID      string               `json:"resume_id" binding:"required"`
	JobID         string               `json:"job_id" binding:"required"`
	InterviewMode models.InterviewMode `json:"interview_mode"`
	Config        interviewConfig      `json:"interview_config"`
}

type startResponse struct {
	SessionID        string                    `json:"session_id"`
	CandidateProfile models.CandidateSnapshot  `json:"candidate_profile"`
	InterviewPlan    models.InterviewPlan      `json:"interview_plan"`
	FirstQuestion    *models.InterviewQuestion `json:"first_question"`
	StartedAt        string                    `json:"started_at"`
}

func (h *LiveHandler) Start(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "LiveHandler.Start", "invalid request body", err))
		return
	}

	sess, err := h.svc.Start(c.Request.Context(), services.StartInput{
		ResumeID:        req.ResumeID,
		JobID:           req.JobID,
		Mode:            req.InterviewMode,
		VoiceID:         req.Config.VoiceID,
		IncludeAudioURL: req.Config.IncludeAudioURL,
		DifficultyHint:  req.Config.DifficultyHint,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, startResponse{
		SessionID:        sess.SessionID,
		CandidateProfile: sess.Candidate,
		InterviewPlan:    sess.Plan,
		FirstQuestion:    sess.CurrentQuestion,
		StartedAt:        sess.StartedAt.Format(time.RFC3339),
	})
}

type answerRequest struct {
	SessionID  string                  `json:"session_id" binding:"required"`
	QuestionID string                  `json:"question_id" binding:"required"`
	Transcript string                  `json:"transcript"`
	Metadata   models.ResponseMetadata `json:"response_metadata"`
}

type answerResponse struct {
	Evaluation   models.AnswerEvaluation   `json:"evaluation"`
	NextAction   models.NextAction         `json:"next_action"`
	NextQuestion *models.InterviewQuestion `json:"next_question,omitempty"`
	Progress     models.SessionProgress    `json:"session_progress"`
}

func (h *LiveHandler) Answer(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "LiveHandler.Answer", "invalid request body", err))
		return
	}

	out, err := h.svc.SubmitAnswer(c.Request.Context(), req.SessionID, req.QuestionID, req.Transcript, req.Metadata)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, answerResponse{
		Evaluation:   out.Evaluation,
		NextAction:   out.NextAction,
		NextQuestion: out.NextQuestion,
		Progress:     out.Progress,
	})
}

type nextRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	ForceNext bool   `json:"force_next"`
}

type nextResponse struct {
	Question       *models.InterviewQuestion `json:"question"`
	SessionContext models.SessionProgress    `json:"session_context"`
}

func (h *LiveHandler) Next(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	var req nextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "LiveHandler.Next", "invalid request body", err))
		return
	}

	q, progress, err := h.svc.NextQuestion(c.Request.Context(), req.SessionID, req.ForceNext)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, nextResponse{Question: q, SessionContext: progress})
}

type repeatRequest struct {
	SessionID  string `json:"session_id" binding:"required"`
	QuestionID string `json:"question_id" binding:"required"`
}

type repeatResponse struct {
	Question    *models.InterviewQuestion `json:"question"`
	AudioURL    string                    `json:"audio_url,omitempty"`
	RepeatCount int                       `json:"repeat_count"`
}

func (h *LiveHandler) Repeat(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	var req repeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "LiveHandler.Repeat", "invalid request body", err))
		return
	}

	q, count, err := h.svc.RepeatQuestion(c.Request.Context(), req.SessionID, req.QuestionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, repeatResponse{
		Question:    q,
		AudioURL:    q.AudioURL,
		RepeatCount: count,
	})
}

type finishRequest struct {
	SessionID      string `json:"session_id" binding:"required"`
	FinishReason   string `json:"finish_reason"`
	CandidateNotes string `json:"candidate_notes"`
}

type finishResponse struct {
	Summary     models.SessionSummary     `json:"session_summary"`
	Preliminary models.PreliminaryResults `json:"preliminary_results"`
	ReportID    string                    `json:"report_id"`
}

func (h *LiveHandler) Finish(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	var req finishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "LiveHandler.Finish", "invalid request body", err))
		return
	}

	out, err := h.svc.Finish(c.Request.Context(), req.SessionID, req.FinishReason, req.CandidateNotes)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, finishResponse{
		Summary:     out.Summary,
		Preliminary: out.Preliminary,
		ReportID:    out.ReportID,
	})
}

func (h *LiveHandler) Report(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	sessionID := c.Param("session_id")
	report, err := h.svc.Report(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

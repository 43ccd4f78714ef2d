package liveclient

import "github.com/chouhanjibanti/interview-live/internal/models"

// Wire contracts for the six live-interview operations. Field names follow the
// service's JSON, snake_case throughout.

type InterviewConfig struct {
	Language        string `json:"language,omitempty"`
	VoiceID         string `json:"voice_id,omitempty"`
	DifficultyHint  int    `json:"difficulty_hint,omitempty"`
	IncludeAudioURL bool   `json:"include_audio_url,omitempty"`
}

type StartRequest struct {
	ResumeID      string               `json:"resume_id"`
	JobID         string               `json:"job_id"`
	InterviewMode models.InterviewMode `json:"interview_mode"`
	Config        InterviewConfig      `json:"interview_config"`
}

type StartResponse struct {
	SessionID        string                    `json:"session_id"`
	CandidateProfile models.CandidateSnapshot  `json:"candidate_profile"`
	InterviewPlan    models.InterviewPlan      `json:"interview_plan"`
	FirstQuestion    *models.InterviewQuestion `json:"first_question"`
	StartedAt        string                    `json:"started_at"`
}

type AnswerRequest struct {
	SessionID  string                  `json:"session_id"`
	QuestionID string                  `json:"question_id"`
	Transcript string                  `json:"transcript"`
	Metadata   models.ResponseMetadata `json:"response_metadata"`
}

type AnswerResponse struct {
	Evaluation   models.AnswerEvaluation   `json:"evaluation"`
	NextAction   models.NextAction         `json:"next_action"`
	NextQuestion *models.InterviewQuestion `json:"next_question,omitempty"`
	Progress     models.SessionProgress    `json:"session_progress"`
}

type NextRequest struct {
	SessionID string `json:"session_id"`
	ForceNext bool   `json:"force_next"`
}

type NextResponse struct {
	Question       *models.InterviewQuestion `json:"question"`
	SessionContext models.SessionProgress    `json:"session_context"`
}

type RepeatRequest struct {
	SessionID  string `json:"session_id"`
	QuestionID string `json:"question_id"`
}

type RepeatResponse struct {
	Question    *models.InterviewQuestion `json:"question"`
	AudioURL    string                    `json:"audio_url,omitempty"`
	RepeatCount int                       `json:"repeat_count"`
}

type FinishRequest struct {
	SessionID      string `json:"session_id"`
	FinishReason   string `json:"finish_reason"`
	CandidateNotes string `json:"candidate_notes,omitempty"`
}

type FinishResponse struct {
	Summary     models.SessionSummary     `json:"session_summary"`
	Preliminary models.PreliminaryResults `json:"preliminary_results"`
	ReportID    string                    `json:"report_id"`
}

// apiError mirrors the service's error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

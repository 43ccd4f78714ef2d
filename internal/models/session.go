package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionPaused    SessionStatus = "paused"
	SessionExpired   SessionStatus = "expired"
)

type InterviewMode string

const (
	ModeTechnical  InterviewMode = "technical"
	ModeBehavioral InterviewMode = "behavioral"
	ModeMixed      InterviewMode = "mixed"
)

// InterviewSession is one candidate's live interview attempt.
type InterviewSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"` // uuid v4
	ResumeID  string             `bson:"resume_id" json:"resume_id"`
	JobID     string             `bson:"job_id" json:"job_id"`

	Mode      InterviewMode     `bson:"mode" json:"mode"`
	Status    SessionStatus     `bson:"status" json:"status"`
	Candidate CandidateSnapshot `bson:"candidate" json:"candidate_profile"`
	Plan      InterviewPlan     `bson:"plan" json:"interview_plan"`
	Progress  SessionProgress   `bson:"progress" json:"progress"`

	// CurrentQuestion is the question awaiting an answer, nil before the first
	// question is issued and after finish.
	CurrentQuestion *InterviewQuestion `bson:"current_question,omitempty" json:"current_question,omitempty"`

	AskedQuestionIDs []string       `bson:"asked_question_ids" json:"-"`
	RepeatCounts     map[string]int `bson:"repeat_counts,omitempty" json:"-"`

	FinishReason string `bson:"finish_reason,omitempty" json:"finish_reason,omitempty"`
	ReportID     string `bson:"report_id,omitempty" json:"report_id,omitempty"`

	StartedAt time.Time  `bson:"started_at" json:"started_at"`
	EndedAt   *time.Time `bson:"ended_at,omitempty" json:"ended_at,omitempty"`
}

// CandidateSnapshot is denormalized at start and never refreshed mid-session.
type CandidateSnapshot struct {
	Name            string   `bson:"name" json:"name"`
	ExperienceYears int      `bson:"experience_years" json:"experience_years"`
	KeySkills       []string `bson:"key_skills" json:"key_skills"`
	CurrentRole     string   `bson:"current_role" json:"current_role"`

	// skills seen on similar resumes but not this one
	PeerSkills []string `bson:"peer_skills,omitempty" json:"peer_skills,omitempty"`
}

type InterviewPlan struct {
	TotalQuestions    int            `bson:"total_questions" json:"total_questions"`
	EstimatedMinutes  int            `bson:"estimated_minutes" json:"estimated_minutes"`
	CategoryBreakdown map[string]int `bson:"category_breakdown" json:"category_breakdown"`
}

// SessionProgress is updated only from interview-service responses;
// QuestionsCompleted is monotonically non-decreasing.
type SessionProgress struct {
	QuestionsCompleted        int     `bson:"questions_completed" json:"questions_completed"`
	TotalQuestions            int     `bson:"total_questions" json:"total_questions"`
	TimeElapsedMinutes        float64 `bson:"time_elapsed_minutes" json:"time_elapsed_minutes"`
	EstimatedRemainingMinutes float64 `bson:"estimated_remaining_minutes" json:"estimated_remaining_minutes"`
}

type NextAction string

const (
	ActionContinue NextAction = "continue"
	ActionFinish   NextAction = "finish"
	ActionRepeat   NextAction = "repeat"
)

// SessionSummary is returned by finish, and re-returned verbatim if a
// completed session is finished again.
type SessionSummary struct {
	SessionID          string        `bson:"session_id" json:"session_id"`
	Status             SessionStatus `bson:"status" json:"status"`
	QuestionsCompleted int           `bson:"questions_completed" json:"questions_completed"`
	DurationSeconds    int64         `bson:"duration_seconds" json:"duration_seconds"`
	FinishReason       string        `bson:"finish_reason" json:"finish_reason"`
	CandidateNotes     string        `bson:"candidate_notes,omitempty" json:"candidate_notes,omitempty"`
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type QuestionType string

const (
	QuestionTechnical      QuestionType = "technical"
	QuestionBehavioral     QuestionType = "behavioral"
	QuestionProblemSolving QuestionType = "problem_solving"
)

// InterviewQuestion is one prompt within a session.
type InterviewQuestion struct {
	QuestionID string       `bson:"question_id" json:"question_id"`
	Type       QuestionType `bson:"type" json:"type"`
	Text       string       `bson:"text" json:"text"`

	// AudioURL points at pre-rendered audio; empty means the client must
	// synthesize Text locally.
	AudioURL string `bson:"audio_url,omitempty" json:"audio_url,omitempty"`

	MaxResponseTimeSeconds int    `bson:"max_response_time_seconds" json:"max_response_time_seconds"`
	Category               string `bson:"category,omitempty" json:"category,omitempty"`
	Difficulty             int    `bson:"difficulty" json:"difficulty"` // 1..5
}

// ResponseMetadata travels with a submitted answer.
type ResponseMetadata struct {
	ResponseTimeSeconds float64 `bson:"response_time_seconds" json:"response_time_seconds"`
	TimedOut            bool    `bson:"timed_out" json:"timed_out"`
	RepeatCount         int     `bson:"repeat_count" json:"repeat_count"`
	InputMethod         string  `bson:"input_method,omitempty" json:"input_method,omitempty"` // voice|text
}

// AnswerRecord is the persisted transcript + evaluation for one question.
type AnswerRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID  string             `bson:"session_id" json:"session_id"`
	QuestionID string             `bson:"question_id" json:"question_id"`
	Question   InterviewQuestion  `bson:"question" json:"question"`
	Transcript string             `bson:"transcript" json:"transcript"`
	Metadata   ResponseMetadata   `bson:"metadata" json:"metadata"`
	Evaluation AnswerEvaluation   `bson:"evaluation" json:"evaluation"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}

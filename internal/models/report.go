package models

import "time"

// InterviewReport is the full post-interview evaluation, valid only after finish.
type InterviewReport struct {
	ReportID  string `bson:"report_id" json:"report_id"`
	SessionID string `bson:"session_id" json:"session_id"`

	OverallAssessment string          `bson:"overall_assessment" json:"overall_assessment"`
	Recommendation    string          `bson:"recommendation" json:"recommendation"` // strong_hire|hire|hold|no_hire
	DetailedScores    DimensionScores `bson:"detailed_scores" json:"detailed_scores"`
	OverallScore      float64         `bson:"overall_score" json:"overall_score"`

	QuestionAnalysis []QuestionAnalysis `bson:"question_analysis" json:"question_analysis"`
	Transcript       TranscriptMeta     `bson:"transcript" json:"transcript"`

	GeneratedAt time.Time `bson:"generated_at" json:"generated_at"`
}

type QuestionAnalysis struct {
	QuestionID   string       `bson:"question_id" json:"question_id"`
	Type         QuestionType `bson:"type" json:"type"`
	Text         string       `bson:"text" json:"text"`
	Transcript   string       `bson:"transcript" json:"transcript"`
	Score        float64      `bson:"score" json:"score"`
	TimedOut     bool         `bson:"timed_out" json:"timed_out"`
	Improvements []string     `bson:"improvements,omitempty" json:"improvements,omitempty"`
}

type TranscriptMeta struct {
	TotalWords      int     `bson:"total_words" json:"total_words"`
	AnsweredCount   int     `bson:"answered_count" json:"answered_count"`
	SkippedCount    int     `bson:"skipped_count" json:"skipped_count"`
	AvgResponseSecs float64 `bson:"avg_response_secs" json:"avg_response_secs"`
}

// PreliminaryResults ship with the finish response, ahead of the full report.
type PreliminaryResults struct {
	OverallScore       float64 `bson:"overall_score" json:"overall_score"`
	QuestionsEvaluated int     `bson:"questions_evaluated" json:"questions_evaluated"`
}

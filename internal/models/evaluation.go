package models

// AnswerEvaluation is server-computed scoring of a submitted answer.
// Read-only on the client, used only for progress display during the session.
type AnswerEvaluation struct {
	OverallScore float64         `bson:"overall_score" json:"overall_score"` // 0..100
	Dimensions   DimensionScores `bson:"dimensions" json:"dimensions"`
	Strengths    []string        `bson:"strengths,omitempty" json:"strengths,omitempty"`
	Improvements []string        `bson:"improvements,omitempty" json:"improvements,omitempty"`
	FollowUpHint string          `bson:"follow_up_hint,omitempty" json:"follow_up_hint,omitempty"`
}

type DimensionScores struct {
	TechnicalAccuracy float64 `bson:"technical_accuracy" json:"technical_accuracy"`
	Communication     float64 `bson:"communication" json:"communication"`
	Depth             float64 `bson:"depth" json:"depth"`
	Relevance         float64 `bson:"relevance" json:"relevance"`
}

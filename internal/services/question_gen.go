package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chouhanjibanti/interview-live/internal/models"
	"github.com/chouhanjibanti/interview-live/internal/providers/llm"
)

// LLM-facing prompt building and response parsing for question generation and
// answer scoring. Prompts ask for bare JSON; extractJSON tolerates the code
// fences Gemini sometimes wraps around it anyway.

type generatedQuestion struct {
	Question               string `json:"question"`
	Type                   string `json:"type"`
	Category               string `json:"category"`
	Difficulty             int    `json:"difficulty"`
	MaxResponseTimeSeconds int    `json:"max_response_time_seconds"`
}

type scoredAnswer struct {
	OverallScore      float64  `json:"overall_score"`
	TechnicalAccuracy float64  `json:"technical_accuracy"`
	Communication     float64  `json:"communication"`
	Depth             float64  `json:"depth"`
	Relevance         float64  `json:"relevance"`
	Strengths         []string `json:"strengths"`
	Improvements      []string `json:"improvements"`
	FollowUpHint      string   `json:"follow_up_hint"`
}

func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	// trim any prose around the outermost object
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			s = s[i : j+1]
		}
	}
	return strings.TrimSpace(s)
}

func questionPrompt(sess *models.InterviewSession, qType models.QuestionType, difficulty int) string {
	var b strings.Builder
	b.WriteString("You are a senior interviewer conducting a live voice interview.\n")
	fmt.Fprintf(&b, "Candidate: %s, %d years experience, current role: %s.\n",
		sess.Candidate.Name, sess.Candidate.ExperienceYears, sess.Candidate.CurrentRole)
	if len(sess.Candidate.KeySkills) > 0 {
		fmt.Fprintf(&b, "Key skills: %s.\n", strings.Join(sess.Candidate.KeySkills, ", "))
	}
	if len(sess.Candidate.PeerSkills) > 0 {
		fmt.Fprintf(&b, "Candidates with similar resumes also list: %s; probing these is fair.\n",
			strings.Join(sess.Candidate.PeerSkills, ", "))
	}
	fmt.Fprintf(&b, "Ask ONE %s question at difficulty %d (1=easy, 5=hard).\n", qType, difficulty)
	if len(sess.AskedQuestionIDs) > 0 {
		fmt.Fprintf(&b, "This is question %d of %d; do not repeat earlier topics.\n",
			len(sess.AskedQuestionIDs)+1, sess.Plan.TotalQuestions)
	}
	b.WriteString("The question must be answerable verbally in under two minutes.\n")
	b.WriteString(`Respond with bare JSON only: {"question":"...","type":"` + string(qType) +
		`","category":"...","difficulty":N,"max_response_time_seconds":N}`)
	return b.String()
}

func scoringPrompt(sess *models.InterviewSession, q *models.InterviewQuestion, transcript string, md models.ResponseMetadata) string {
	var b strings.Builder
	b.WriteString("You are scoring one answer from a live voice interview.\n")
	fmt.Fprintf(&b, "Question (%s, difficulty %d): %s\n", q.Type, q.Difficulty, q.Text)
	fmt.Fprintf(&b, "Candidate has %d years experience as %s.\n",
		sess.Candidate.ExperienceYears, sess.Candidate.CurrentRole)
	if md.TimedOut {
		b.WriteString("The candidate ran out of time; the transcript may be cut off.\n")
	}
	b.WriteString("Transcript:\n" + transcript + "\n")
	b.WriteString("Score 0-100 per dimension. Spoken answers are informal; judge content, not diction.\n")
	b.WriteString(`Respond with bare JSON only: {"overall_score":N,"technical_accuracy":N,` +
		`"communication":N,"depth":N,"relevance":N,"strengths":["..."],"improvements":["..."],` +
		`"follow_up_hint":"..."}`)
	return b.String()
}

func (s *interviewService) generateQuestion(ctx context.Context, sess *models.InterviewSession, qType models.QuestionType, difficulty int) (*models.InterviewQuestion, error) {
	raw, err := llm.Complete(ctx, s.llm, questionPrompt(sess, qType, difficulty))
	if err != nil {
		return nil, err
	}

	var gq generatedQuestion
	if err := json.Unmarshal([]byte(extractJSON(raw)), &gq); err != nil {
		return nil, fmt.Errorf("unparseable question payload: %w", err)
	}
	if gq.Question == "" {
		return nil, fmt.Errorf("empty question text")
	}
	if gq.Difficulty < 1 || gq.Difficulty > 5 {
		gq.Difficulty = difficulty
	}
	if gq.MaxResponseTimeSeconds < 30 || gq.MaxResponseTimeSeconds > 300 {
		gq.MaxResponseTimeSeconds = 120
	}

	return &models.InterviewQuestion{
		Text:                   gq.Question,
		Type:                   qType,
		Category:               gq.Category,
		Difficulty:             gq.Difficulty,
		MaxResponseTimeSeconds: gq.MaxResponseTimeSeconds,
	}, nil
}

func (s *interviewService) evaluateAnswer(ctx context.Context, sess *models.InterviewSession, q *models.InterviewQuestion, transcript string, md models.ResponseMetadata) (models.AnswerEvaluation, error) {
	raw, err := llm.Complete(ctx, s.llm, scoringPrompt(sess, q, transcript, md))
	if err != nil {
		return models.AnswerEvaluation{}, err
	}

	var sa scoredAnswer
	if err := json.Unmarshal([]byte(extractJSON(raw)), &sa); err != nil {
		return models.AnswerEvaluation{}, fmt.Errorf("unparseable score payload: %w", err)
	}

	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 100 {
			return 100
		}
		return v
	}

	return models.AnswerEvaluation{
		OverallScore: clamp(sa.OverallScore),
		Dimensions: models.DimensionScores{
			TechnicalAccuracy: clamp(sa.TechnicalAccuracy),
			Communication:     clamp(sa.Communication),
			Depth:             clamp(sa.Depth),
			Relevance:         clamp(sa.Relevance),
		},
		Strengths:    sa.Strengths,
		Improvements: sa.Improvements,
		FollowUpHint: sa.FollowUpHint,
	}, nil
}

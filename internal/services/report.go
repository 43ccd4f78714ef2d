package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/chouhanjibanti/interview-live/internal/models"
)

// buildReport assembles the post-interview report from the persisted answer
// records. Scoring is the mean of per-answer evaluations; skipped questions
// drag the recommendation but not the score average.
func buildReport(sess *models.InterviewSession, records []models.AnswerRecord) *models.InterviewReport {
	report := &models.InterviewReport{
		ReportID:    sess.ReportID,
		SessionID:   sess.SessionID,
		GeneratedAt: time.Now().UTC(),
	}

	var (
		sumOverall, sumTech, sumComm, sumDepth, sumRel float64
		sumRespSecs                                    float64
		totalWords, answered, skipped                  int
	)

	for _, r := range records {
		qa := models.QuestionAnalysis{
			QuestionID: r.QuestionID,
			Type:       r.Question.Type,
			Text:       r.Question.Text,
			Transcript: r.Transcript,
			Score:      r.Evaluation.OverallScore,
			TimedOut:   r.Metadata.TimedOut,
		}
		if len(r.Evaluation.Improvements) > 0 {
			qa.Improvements = r.Evaluation.Improvements
		}
		report.QuestionAnalysis = append(report.QuestionAnalysis, qa)

		if strings.TrimSpace(r.Transcript) == "" {
			skipped++
			continue
		}
		answered++
		totalWords += len(strings.Fields(r.Transcript))
		sumRespSecs += r.Metadata.ResponseTimeSeconds

		sumOverall += r.Evaluation.OverallScore
		sumTech += r.Evaluation.Dimensions.TechnicalAccuracy
		sumComm += r.Evaluation.Dimensions.Communication
		sumDepth += r.Evaluation.Dimensions.Depth
		sumRel += r.Evaluation.Dimensions.Relevance
	}

	report.Transcript = models.TranscriptMeta{
		TotalWords:    totalWords,
		AnsweredCount: answered,
		SkippedCount:  skipped,
	}
	if answered > 0 {
		n := float64(answered)
		report.OverallScore = sumOverall / n
		report.DetailedScores = models.DimensionScores{
			TechnicalAccuracy: sumTech / n,
			Communication:     sumComm / n,
			Depth:             sumDepth / n,
			Relevance:         sumRel / n,
		}
		report.Transcript.AvgResponseSecs = sumRespSecs / n
	}

	report.Recommendation = recommend(report.OverallScore, answered, skipped)
	report.OverallAssessment = assessmentText(sess, report, answered, skipped)
	return report
}

func recommend(score float64, answered, skipped int) string {
	if answered == 0 {
		return "no_hire"
	}
	if skipped > answered {
		// more skips than answers undermines any score
		if score >= 80 {
			return "hold"
		}
		return "no_hire"
	}
	switch {
	case score >= 85:
		return "strong_hire"
	case score >= 70:
		return "hire"
	case score >= 55:
		return "hold"
	default:
		return "no_hire"
	}
}

func assessmentText(sess *models.InterviewSession, r *models.InterviewReport, answered, skipped int) string {
	var b strings.Builder
	b.WriteString(sess.Candidate.Name)
	if sess.Candidate.CurrentRole != "" {
		b.WriteString(" (" + sess.Candidate.CurrentRole + ")")
	}
	switch {
	case answered == 0:
		b.WriteString(" did not answer any questions.")
	case r.OverallScore >= 70:
		b.WriteString(" performed well across the interview, ")
	case r.OverallScore >= 55:
		b.WriteString(" gave a mixed performance, ")
	default:
		b.WriteString(" struggled through most of the interview, ")
	}
	if answered > 0 {
		fmt.Fprintf(&b, "answering %d of %d questions.", answered, answered+skipped)
	}
	return b.String()
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/chouhanjibanti/interview-live/internal/cache"
	"github.com/chouhanjibanti/interview-live/internal/models"
	"github.com/chouhanjibanti/interview-live/internal/providers/llm"
	mongorepo "github.com/chouhanjibanti/interview-live/internal/repositories/mongo"
	pgrepo "github.com/chouhanjibanti/interview-live/internal/repositories/postgres"
	"github.com/chouhanjibanti/interview-live/internal/utils"
)

// AudioRenderStream is the redis stream the render worker consumes. The
// service enqueues one entry per issued question when audio is requested.
const AudioRenderStream = "interview:audio:render"

const reportCacheTTL = 24 * time.Hour

type StartInput struct {
	ResumeID        string
	JobID           string
	Mode            models.InterviewMode
	VoiceID         string
	IncludeAudioURL bool
	DifficultyHint  int
}

type AnswerOutcome struct {
	Evaluation   models.AnswerEvaluation
	NextAction   models.NextAction
	NextQuestion *models.InterviewQuestion
	Progress     models.SessionProgress
}

type FinishOutcome struct {
	Summary     models.SessionSummary
	Preliminary models.PreliminaryResults
	ReportID    string
}

type InterviewService interface {
	Start(ctx context.Context, in StartInput) (*models.InterviewSession, error)
	SubmitAnswer(ctx context.Context, sessionID, questionID, transcript string, md models.ResponseMetadata) (*AnswerOutcome, error)
	NextQuestion(ctx context.Context, sessionID string, force bool) (*models.InterviewQuestion, models.SessionProgress, error)
	RepeatQuestion(ctx context.Context, sessionID, questionID string) (*models.InterviewQuestion, int, error)
	Finish(ctx context.Context, sessionID, reason, notes string) (*FinishOutcome, error)
	Report(ctx context.Context, sessionID string) (*models.InterviewReport, error)
}

type interviewService struct {
	sessions   mongorepo.InterviewRepository
	answers    mongorepo.AnswerRepository
	candidates pgrepo.CandidateRepository
	cache      cache.Cache
	llm        llm.Provider
	rdb        *redis.Client
	log        *logrus.Logger
}

func NewInterviewService(
	sessions mongorepo.InterviewRepository,
	answers mongorepo.AnswerRepository,
	candidates pgrepo.CandidateRepository,
	c cache.Cache,
	provider llm.Provider,
	rdb *redis.Client,
	log *logrus.Logger,
) InterviewService {
	return &interviewService{
		sessions:   sessions,
		answers:    answers,
		candidates: candidates,
		cache:      c,
		llm:        provider,
		rdb:        rdb,
		log:        log,
	}
}

func (s *interviewService) Start(ctx context.Context, in StartInput) (*models.InterviewSession, error) {
	const op = "InterviewService.Start"

	if in.ResumeID == "" || in.JobID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "resume_id and job_id are required", nil)
	}
	switch in.Mode {
	case models.ModeTechnical, models.ModeBehavioral, models.ModeMixed:
	case "":
		in.Mode = models.ModeMixed
	default:
		return nil, utils.E(utils.CodeInvalidArgument, op, "unknown interview_mode", nil)
	}

	cand, err := s.candidates.GetByResumeID(ctx, in.ResumeID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "candidate not found for resume_id", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load candidate", err)
	}

	sess := &models.InterviewSession{
		SessionID: uuid.NewString(),
		ResumeID:  in.ResumeID,
		JobID:     in.JobID,
		Mode:      in.Mode,
		Status:    models.SessionActive,
		Candidate: models.CandidateSnapshot{
			Name:            cand.FullName,
			ExperienceYears: cand.ExperienceYears,
			KeySkills:       append([]string(nil), cand.Skills...),
			CurrentRole:     cand.CurrentRole,
			PeerSkills:      s.peerSkills(ctx, cand),
		},
		Plan:         buildPlan(in.Mode),
		RepeatCounts: map[string]int{},
		StartedAt:    time.Now().UTC(),
	}
	sess.Progress = models.SessionProgress{TotalQuestions: sess.Plan.TotalQuestions}

	difficulty := startDifficulty(cand.ExperienceYears, in.DifficultyHint)
	first, err := s.generateQuestion(ctx, sess, questionTypeAt(sess, 0), difficulty)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to generate first question", err)
	}
	first.QuestionID = uuid.NewString()

	sess.CurrentQuestion = first
	sess.AskedQuestionIDs = []string{first.QuestionID}
	sess.Progress = s.progressOf(sess, 0)

	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}

	if in.IncludeAudioURL {
		s.enqueueAudioRender(ctx, sess.SessionID, first, in.VoiceID)
	}

	s.log.WithFields(logrus.Fields{
		"session_id": sess.SessionID,
		"resume_id":  in.ResumeID,
		"mode":       in.Mode,
	}).Info("interview started")

	return sess, nil
}

// peerSkills collects skills common among candidates with similar resumes
// but absent from this candidate's own list; the question prompt uses them
// to probe adjacent ground. Best effort, a lookup failure is not fatal.
func (s *interviewService) peerSkills(ctx context.Context, cand *models.Candidate) []string {
	if len(cand.ResumeEmbedding.Slice()) == 0 {
		return nil
	}
	peers, err := s.candidates.SimilarByEmbedding(ctx, cand, 3)
	if err != nil {
		s.log.WithError(err).WithField("resume_id", cand.ResumeID).Debug("similar-candidate lookup failed")
		return nil
	}

	own := make(map[string]bool, len(cand.Skills))
	for _, sk := range cand.Skills {
		own[strings.ToLower(sk)] = true
	}

	var out []string
	seen := map[string]bool{}
	for _, p := range peers {
		if p.ResumeID == cand.ResumeID {
			continue
		}
		for _, sk := range p.Skills {
			k := strings.ToLower(sk)
			if own[k] || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, sk)
			if len(out) == 5 {
				return out
			}
		}
	}
	return out
}

func (s *interviewService) SubmitAnswer(ctx context.Context, sessionID, questionID, transcript string, md models.ResponseMetadata) (*AnswerOutcome, error) {
	const op = "InterviewService.SubmitAnswer"

	if sessionID == "" || questionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id and question_id are required", nil)
	}

	sess, err := s.activeSession(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.CurrentQuestion == nil || sess.CurrentQuestion.QuestionID != questionID {
		return nil, utils.E(utils.CodeInvalidState, op, "question_id is not the current question", nil)
	}

	q := sess.CurrentQuestion
	md.RepeatCount = sess.RepeatCounts[questionID]

	eval, err := s.evaluateAnswer(ctx, sess, q, transcript, md)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to evaluate answer", err)
	}

	answered := len(sess.AskedQuestionIDs)
	outcome := &AnswerOutcome{Evaluation: eval}

	if answered >= sess.Plan.TotalQuestions {
		outcome.NextAction = models.ActionFinish
		sess.CurrentQuestion = nil
	} else {
		next, err := s.generateQuestion(ctx, sess,
			questionTypeAt(sess, answered),
			adaptDifficulty(q.Difficulty, eval.OverallScore))
		if err != nil {
			return nil, utils.E(utils.CodeUnavailable, op, "failed to generate next question", err)
		}
		next.QuestionID = uuid.NewString()

		outcome.NextAction = models.ActionContinue
		outcome.NextQuestion = next
		sess.CurrentQuestion = next
		sess.AskedQuestionIDs = append(sess.AskedQuestionIDs, next.QuestionID)
	}

	// persist answer last so a failed evaluation or generation leaves the
	// session clean for a retried submit
	rec := &models.AnswerRecord{
		SessionID:  sessionID,
		QuestionID: questionID,
		Question:   *q,
		Transcript: transcript,
		Metadata:   md,
		Evaluation: eval,
	}
	if err := s.answers.Insert(ctx, rec); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to persist answer", err)
	}

	sess.Progress = s.progressOf(sess, sess.Progress.QuestionsCompleted+1)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save session", err)
	}
	outcome.Progress = sess.Progress

	if outcome.NextQuestion != nil {
		s.enqueueAudioRender(ctx, sessionID, outcome.NextQuestion, "")
	}

	return outcome, nil
}

func (s *interviewService) NextQuestion(ctx context.Context, sessionID string, force bool) (*models.InterviewQuestion, models.SessionProgress, error) {
	const op = "InterviewService.NextQuestion"

	if sessionID == "" {
		return nil, models.SessionProgress{}, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	sess, err := s.activeSession(ctx, op, sessionID)
	if err != nil {
		return nil, models.SessionProgress{}, err
	}

	// a skipped question leaves a record so the report can count it
	if skipped := sess.CurrentQuestion; skipped != nil {
		rec := &models.AnswerRecord{
			SessionID:  sessionID,
			QuestionID: skipped.QuestionID,
			Question:   *skipped,
			Transcript: "",
			Metadata:   models.ResponseMetadata{RepeatCount: sess.RepeatCounts[skipped.QuestionID]},
		}
		if err := s.answers.Insert(ctx, rec); err != nil {
			return nil, models.SessionProgress{}, utils.E(utils.CodeInternal, op, "failed to record skip", err)
		}
	}

	asked := len(sess.AskedQuestionIDs)
	if asked >= sess.Plan.TotalQuestions {
		sess.CurrentQuestion = nil
		if err := s.sessions.Save(ctx, sess); err != nil {
			return nil, models.SessionProgress{}, utils.E(utils.CodeInternal, op, "failed to save session", err)
		}
		return nil, sess.Progress, nil
	}

	difficulty := 3
	if cur := sess.CurrentQuestion; cur != nil {
		difficulty = cur.Difficulty
	}
	if !force {
		// an unanswered question usually means it was too hard; ease off.
		// force keeps the difficulty as planned.
		difficulty = clampDifficulty(difficulty - 1)
	}

	next, err := s.generateQuestion(ctx, sess, questionTypeAt(sess, asked), difficulty)
	if err != nil {
		return nil, models.SessionProgress{}, utils.E(utils.CodeUnavailable, op, "failed to generate question", err)
	}
	next.QuestionID = uuid.NewString()

	sess.CurrentQuestion = next
	sess.AskedQuestionIDs = append(sess.AskedQuestionIDs, next.QuestionID)
	sess.Progress = s.progressOf(sess, sess.Progress.QuestionsCompleted)

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, models.SessionProgress{}, utils.E(utils.CodeInternal, op, "failed to save session", err)
	}

	s.enqueueAudioRender(ctx, sessionID, next, "")
	return next, sess.Progress, nil
}

func (s *interviewService) RepeatQuestion(ctx context.Context, sessionID, questionID string) (*models.InterviewQuestion, int, error) {
	const op = "InterviewService.RepeatQuestion"

	if sessionID == "" || questionID == "" {
		return nil, 0, utils.E(utils.CodeInvalidArgument, op, "session_id and question_id are required", nil)
	}

	sess, err := s.activeSession(ctx, op, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if sess.CurrentQuestion == nil || sess.CurrentQuestion.QuestionID != questionID {
		return nil, 0, utils.E(utils.CodeInvalidState, op, "question_id is not the current question", nil)
	}

	if sess.RepeatCounts == nil {
		sess.RepeatCounts = map[string]int{}
	}
	sess.RepeatCounts[questionID]++
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, 0, utils.E(utils.CodeInternal, op, "failed to save session", err)
	}

	return sess.CurrentQuestion, sess.RepeatCounts[questionID], nil
}

func (s *interviewService) Finish(ctx context.Context, sessionID, reason, notes string) (*FinishOutcome, error) {
	const op = "InterviewService.Finish"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	sess, err := s.getSession(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}

	// finishing a finished session re-returns the stored outcome
	if sess.Status == models.SessionCompleted {
		var cached FinishOutcome
		if hit, _ := s.cache.GetJSON(ctx, cache.SummaryKey(sessionID), &cached); hit {
			return &cached, nil
		}
		return s.rebuildFinishOutcome(ctx, op, sess)
	}

	if reason == "" {
		reason = "user_ended"
	}

	records, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load answers", err)
	}

	now := time.Now().UTC()
	reportID := uuid.NewString()

	if err := s.sessions.Finish(ctx, sessionID, reason, reportID, now); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to finish session", err)
	}

	out := &FinishOutcome{
		Summary: models.SessionSummary{
			SessionID:          sessionID,
			Status:             models.SessionCompleted,
			QuestionsCompleted: countAnswered(records),
			DurationSeconds:    int64(now.Sub(sess.StartedAt).Seconds()),
			FinishReason:       reason,
			CandidateNotes:     notes,
		},
		Preliminary: preliminaryOf(records),
		ReportID:    reportID,
	}

	if err := s.cache.SetJSON(ctx, cache.SummaryKey(sessionID), out, reportCacheTTL); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("summary cache write failed")
	}

	sess.Status = models.SessionCompleted
	sess.FinishReason = reason
	sess.ReportID = reportID
	sess.EndedAt = &now
	report := buildReport(sess, records)
	if err := s.cache.SetJSON(ctx, cache.ReportKey(sessionID), report, reportCacheTTL); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("report cache write failed")
	}

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"reason":     reason,
		"answered":   out.Summary.QuestionsCompleted,
	}).Info("interview finished")

	return out, nil
}

func (s *interviewService) Report(ctx context.Context, sessionID string) (*models.InterviewReport, error) {
	const op = "InterviewService.Report"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	var cached models.InterviewReport
	if hit, _ := s.cache.GetJSON(ctx, cache.ReportKey(sessionID), &cached); hit {
		return &cached, nil
	}

	sess, err := s.getSession(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionCompleted {
		return nil, utils.E(utils.CodeInvalidState, op, "report is available only after finish", nil)
	}

	records, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load answers", err)
	}

	report := buildReport(sess, records)
	if err := s.cache.SetJSON(ctx, cache.ReportKey(sessionID), report, reportCacheTTL); err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("report cache write failed")
	}
	return report, nil
}

// rebuildFinishOutcome recomputes the finish payload for an already-completed
// session whose cached summary expired.
func (s *interviewService) rebuildFinishOutcome(ctx context.Context, op string, sess *models.InterviewSession) (*FinishOutcome, error) {
	records, err := s.answers.ListBySession(ctx, sess.SessionID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load answers", err)
	}

	var dur int64
	if sess.EndedAt != nil {
		dur = int64(sess.EndedAt.Sub(sess.StartedAt).Seconds())
	}
	out := &FinishOutcome{
		Summary: models.SessionSummary{
			SessionID:          sess.SessionID,
			Status:             models.SessionCompleted,
			QuestionsCompleted: countAnswered(records),
			DurationSeconds:    dur,
			FinishReason:       sess.FinishReason,
		},
		Preliminary: preliminaryOf(records),
		ReportID:    sess.ReportID,
	}
	_ = s.cache.SetJSON(ctx, cache.SummaryKey(sess.SessionID), out, reportCacheTTL)
	return out, nil
}

func (s *interviewService) getSession(ctx context.Context, op, sessionID string) (*models.InterviewSession, error) {
	sess, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load session", err)
	}
	return sess, nil
}

func (s *interviewService) activeSession(ctx context.Context, op, sessionID string) (*models.InterviewSession, error) {
	sess, err := s.getSession(ctx, op, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != models.SessionActive {
		return nil, utils.E(utils.CodeInvalidState, op, fmt.Sprintf("session is %s", sess.Status), nil)
	}
	return sess, nil
}

func (s *interviewService) enqueueAudioRender(ctx context.Context, sessionID string, q *models.InterviewQuestion, voiceID string) {
	if s.rdb == nil {
		return
	}
	err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: AudioRenderStream,
		Values: map[string]any{
			"session_id":  sessionID,
			"question_id": q.QuestionID,
			"text":        q.Text,
			"voice_id":    voiceID,
		},
	}).Err()
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"session_id":  sessionID,
			"question_id": q.QuestionID,
		}).Warn("audio render enqueue failed")
	}
}

func (s *interviewService) progressOf(sess *models.InterviewSession, completed int) models.SessionProgress {
	elapsed := time.Since(sess.StartedAt).Minutes()
	perQuestion := float64(sess.Plan.EstimatedMinutes) / float64(sess.Plan.TotalQuestions)
	remaining := float64(sess.Plan.TotalQuestions-completed) * perQuestion
	if remaining < 0 {
		remaining = 0
	}
	return models.SessionProgress{
		QuestionsCompleted:        completed,
		TotalQuestions:            sess.Plan.TotalQuestions,
		TimeElapsedMinutes:        elapsed,
		EstimatedRemainingMinutes: remaining,
	}
}

func countAnswered(records []models.AnswerRecord) int {
	n := 0
	for _, r := range records {
		if strings.TrimSpace(r.Transcript) != "" {
			n++
		}
	}
	return n
}

func preliminaryOf(records []models.AnswerRecord) models.PreliminaryResults {
	var sum float64
	n := 0
	for _, r := range records {
		if strings.TrimSpace(r.Transcript) == "" {
			continue
		}
		sum += r.Evaluation.OverallScore
		n++
	}
	out := models.PreliminaryResults{QuestionsEvaluated: n}
	if n > 0 {
		out.OverallScore = sum / float64(n)
	}
	return out
}

func buildPlan(mode models.InterviewMode) models.InterviewPlan {
	switch mode {
	case models.ModeTechnical:
		return models.InterviewPlan{
			TotalQuestions:   5,
			EstimatedMinutes: 20,
			CategoryBreakdown: map[string]int{
				"technical": 4, "problem_solving": 1,
			},
		}
	case models.ModeBehavioral:
		return models.InterviewPlan{
			TotalQuestions:   5,
			EstimatedMinutes: 18,
			CategoryBreakdown: map[string]int{
				"behavioral": 5,
			},
		}
	default:
		return models.InterviewPlan{
			TotalQuestions:   6,
			EstimatedMinutes: 24,
			CategoryBreakdown: map[string]int{
				"technical": 3, "behavioral": 2, "problem_solving": 1,
			},
		}
	}
}

// questionTypeAt decides the type of the idx-th question (0-based) from the
// session's plan, interleaving so behavioral questions aren't all bunched at
// the end.
func questionTypeAt(sess *models.InterviewSession, idx int) models.QuestionType {
	switch sess.Mode {
	case models.ModeTechnical:
		if idx == sess.Plan.TotalQuestions-1 {
			return models.QuestionProblemSolving
		}
		return models.QuestionTechnical
	case models.ModeBehavioral:
		return models.QuestionBehavioral
	default:
		seq := []models.QuestionType{
			models.QuestionTechnical,
			models.QuestionBehavioral,
			models.QuestionTechnical,
			models.QuestionBehavioral,
			models.QuestionTechnical,
			models.QuestionProblemSolving,
		}
		if idx < len(seq) {
			return seq[idx]
		}
		return models.QuestionTechnical
	}
}

func startDifficulty(experienceYears, hint int) int {
	if hint >= 1 && hint <= 5 {
		return hint
	}
	switch {
	case experienceYears >= 8:
		return 4
	case experienceYears >= 3:
		return 3
	default:
		return 2
	}
}

func adaptDifficulty(current int, score float64) int {
	switch {
	case score >= 75:
		return clampDifficulty(current + 1)
	case score < 50:
		return clampDifficulty(current - 1)
	default:
		return clampDifficulty(current)
	}
}

func clampDifficulty(d int) int {
	if d < 1 {
		return 1
	}
	if d > 5 {
		return 5
	}
	return d
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chouhanjibanti/interview-live/internal/logger"
	"github.com/chouhanjibanti/interview-live/internal/models"
	"github.com/chouhanjibanti/interview-live/internal/utils"
)

type memSessions struct {
	mu   sync.Mutex
	byID map[string]*models.InterviewSession
}

func newMemSessions() *memSessions {
	return &memSessions{byID: map[string]*models.InterviewSession{}}
}

func (m *memSessions) Create(_ context.Context, s *models.InterviewSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.byID[s.SessionID] = &cp
	return nil
}

func (m *memSessions) GetBySessionID(_ context.Context, id string) (*models.InterviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) Save(_ context.Context, s *models.InterviewSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.byID[s.SessionID] = &cp
	return nil
}

func (m *memSessions) Finish(_ context.Context, id, reason, reportID string, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return utils.ErrNotFound
	}
	s.Status = models.SessionCompleted
	s.FinishReason = reason
	s.ReportID = reportID
	s.EndedAt = &endedAt
	s.CurrentQuestion = nil
	return nil
}

func (m *memSessions) SetQuestionAudioURL(_ context.Context, id, questionID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok || s.CurrentQuestion == nil || s.CurrentQuestion.QuestionID != questionID {
		return utils.ErrNotFound
	}
	s.CurrentQuestion.AudioURL = url
	return nil
}

type memAnswers struct {
	mu   sync.Mutex
	rows []models.AnswerRecord
}

func (m *memAnswers) Insert(_ context.Context, a *models.AnswerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, *a)
	return nil
}

func (m *memAnswers) ListBySession(_ context.Context, id string) ([]models.AnswerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AnswerRecord
	for _, r := range m.rows {
		if r.SessionID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

type memCandidates struct {
	byResume map[string]*models.Candidate
	similar  []models.Candidate
}

func (m *memCandidates) GetByResumeID(_ context.Context, id string) (*models.Candidate, error) {
	c, ok := m.byResume[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return c, nil
}

func (m *memCandidates) Upsert(_ context.Context, c *models.Candidate) error {
	m.byResume[c.ResumeID] = c
	return nil
}

func (m *memCandidates) SimilarByEmbedding(_ context.Context, _ *models.Candidate, _ int) ([]models.Candidate, error) {
	return m.similar, nil
}

type memCache struct {
	mu sync.Mutex
	kv map[string][]byte
}

func newMemCache() *memCache { return &memCache{kv: map[string][]byte{}} }

func (m *memCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.kv[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (m *memCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = b
	return nil
}

func (m *memCache) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.kv, k)
	}
	return nil
}

// fakeLLM answers question prompts with a canned question and scoring prompts
// with a configurable score.
type fakeLLM struct {
	mu        sync.Mutex
	score     float64
	questions int
	fail      bool
}

func (f *fakeLLM) StreamAnswer(_ context.Context, prompt string) (<-chan string, <-chan error) {
	chunks := make(chan string, 1)
	errs := make(chan error, 1)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		close(chunks)
		errs <- fmt.Errorf("provider down")
		return chunks, errs
	}

	if strings.Contains(prompt, "scoring one answer") {
		chunks <- fmt.Sprintf(`{"overall_score":%.0f,"technical_accuracy":%.0f,"communication":80,"depth":70,"relevance":90,"strengths":["clear"],"improvements":["detail"],"follow_up_hint":""}`,
			f.score, f.score)
	} else {
		f.questions++
		chunks <- fmt.Sprintf("```json\n{\"question\":\"Describe question %d.\",\"type\":\"technical\",\"category\":\"general\",\"difficulty\":3,\"max_response_time_seconds\":120}\n```", f.questions)
	}
	close(chunks)
	return chunks, errs
}

func (f *fakeLLM) Close() error { return nil }

func newTestService(t *testing.T) (InterviewService, *memSessions, *memAnswers, *fakeLLM, *memCache) {
	t.Helper()

	sessions := newMemSessions()
	answers := &memAnswers{}
	cands := &memCandidates{byResume: map[string]*models.Candidate{
		"resume-1": {
			ResumeID:        "resume-1",
			FullName:        "Ada Example",
			CurrentRole:     "backend engineer",
			ExperienceYears: 5,
			Skills:          []string{"go", "postgres"},
		},
	}}
	llmFake := &fakeLLM{score: 80}
	c := newMemCache()

	svc := NewInterviewService(sessions, answers, cands, c, llmFake, nil, logger.New())
	return svc, sessions, answers, llmFake, c
}

func startSession(t *testing.T, svc InterviewService) *models.InterviewSession {
	t.Helper()
	sess, err := svc.Start(context.Background(), StartInput{
		ResumeID: "resume-1",
		JobID:    "job-1",
		Mode:     models.ModeTechnical,
	})
	require.NoError(t, err)
	return sess
}

func TestStartSnapshotsCandidateAndIssuesFirstQuestion(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	sess := startSession(t, svc)

	assert.Equal(t, models.SessionActive, sess.Status)
	assert.Equal(t, "Ada Example", sess.Candidate.Name)
	assert.Equal(t, []string{"go", "postgres"}, sess.Candidate.KeySkills)
	require.NotNil(t, sess.CurrentQuestion)
	assert.NotEmpty(t, sess.CurrentQuestion.QuestionID)
	assert.Equal(t, 5, sess.Plan.TotalQuestions)
	assert.Equal(t, 0, sess.Progress.QuestionsCompleted)
}

func TestStartPullsPeerSkillsFromSimilarResumes(t *testing.T) {
	sessions := newMemSessions()
	cands := &memCandidates{
		byResume: map[string]*models.Candidate{
			"resume-1": {
				ResumeID:        "resume-1",
				FullName:        "Ada Example",
				ExperienceYears: 5,
				Skills:          []string{"go", "postgres"},
				ResumeEmbedding: pgvector.NewVector([]float32{0.1, 0.2, 0.3}),
			},
		},
		similar: []models.Candidate{
			{ResumeID: "resume-1", Skills: []string{"go"}}, // self, ignored
			{ResumeID: "resume-2", Skills: []string{"Go", "kafka", "terraform"}},
			{ResumeID: "resume-3", Skills: []string{"kafka", "grpc"}},
		},
	}
	svc := NewInterviewService(sessions, &memAnswers{}, cands, newMemCache(), &fakeLLM{score: 80}, nil, logger.New())

	sess := startSession(t, svc)
	assert.Equal(t, []string{"kafka", "terraform", "grpc"}, sess.Candidate.PeerSkills,
		"own and duplicate skills are filtered out")
}

func TestStartWithoutEmbeddingSkipsPeerLookup(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	sess := startSession(t, svc)
	assert.Empty(t, sess.Candidate.PeerSkills)
}

func TestStartUnknownResumeIsNotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	_, err := svc.Start(context.Background(), StartInput{ResumeID: "nope", JobID: "job-1"})
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestSubmitAnswerAdvancesAndPersists(t *testing.T) {
	svc, _, answers, _, _ := newTestService(t)
	sess := startSession(t, svc)

	out, err := svc.SubmitAnswer(context.Background(), sess.SessionID,
		sess.CurrentQuestion.QuestionID, "I would use channels.", models.ResponseMetadata{ResponseTimeSeconds: 30})
	require.NoError(t, err)

	assert.Equal(t, models.ActionContinue, out.NextAction)
	require.NotNil(t, out.NextQuestion)
	assert.NotEqual(t, sess.CurrentQuestion.QuestionID, out.NextQuestion.QuestionID)
	assert.Equal(t, 1, out.Progress.QuestionsCompleted)
	assert.InDelta(t, 80, out.Evaluation.OverallScore, 0.01)

	require.Len(t, answers.rows, 1)
	assert.Equal(t, "I would use channels.", answers.rows[0].Transcript)
}

func TestSubmitStaleQuestionIsInvalidState(t *testing.T) {
	svc, _, answers, _, _ := newTestService(t)
	sess := startSession(t, svc)

	_, err := svc.SubmitAnswer(context.Background(), sess.SessionID,
		"question-from-last-week", "hello", models.ResponseMetadata{})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidState))
	assert.Empty(t, answers.rows)
}

func TestSubmitLastQuestionSignalsFinish(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	sess := startSession(t, svc)

	qID := sess.CurrentQuestion.QuestionID
	var last *AnswerOutcome
	for i := 0; i < sess.Plan.TotalQuestions; i++ {
		out, err := svc.SubmitAnswer(context.Background(), sess.SessionID, qID,
			fmt.Sprintf("answer %d", i+1), models.ResponseMetadata{})
		require.NoError(t, err)
		last = out
		if out.NextQuestion != nil {
			qID = out.NextQuestion.QuestionID
		}
	}

	assert.Equal(t, models.ActionFinish, last.NextAction)
	assert.Nil(t, last.NextQuestion)
	assert.Equal(t, sess.Plan.TotalQuestions, last.Progress.QuestionsCompleted)
}

func TestEvaluationFailureLeavesSessionRetryable(t *testing.T) {
	svc, _, answers, llmFake, _ := newTestService(t)
	sess := startSession(t, svc)
	qID := sess.CurrentQuestion.QuestionID

	llmFake.mu.Lock()
	llmFake.fail = true
	llmFake.mu.Unlock()

	_, err := svc.SubmitAnswer(context.Background(), sess.SessionID, qID, "hi", models.ResponseMetadata{})
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
	assert.Empty(t, answers.rows)

	llmFake.mu.Lock()
	llmFake.fail = false
	llmFake.mu.Unlock()

	out, err := svc.SubmitAnswer(context.Background(), sess.SessionID, qID, "hi again", models.ResponseMetadata{})
	require.NoError(t, err)
	assert.Equal(t, models.ActionContinue, out.NextAction)
}

func TestSkipRecordsAnswerWithoutProgress(t *testing.T) {
	svc, _, answers, _, _ := newTestService(t)
	sess := startSession(t, svc)

	q, progress, err := svc.NextQuestion(context.Background(), sess.SessionID, true)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, 0, progress.QuestionsCompleted)

	require.Len(t, answers.rows, 1)
	assert.Empty(t, answers.rows[0].Transcript)
}

func TestRepeatBumpsCounter(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	sess := startSession(t, svc)
	qID := sess.CurrentQuestion.QuestionID

	q, n, err := svc.RepeatQuestion(context.Background(), sess.SessionID, qID)
	require.NoError(t, err)
	assert.Equal(t, qID, q.QuestionID)
	assert.Equal(t, 1, n)

	_, n, err = svc.RepeatQuestion(context.Background(), sess.SessionID, qID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFinishIsIdempotent(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	sess := startSession(t, svc)

	_, err := svc.SubmitAnswer(context.Background(), sess.SessionID,
		sess.CurrentQuestion.QuestionID, "one answer", models.ResponseMetadata{})
	require.NoError(t, err)

	first, err := svc.Finish(context.Background(), sess.SessionID, "user_ended", "")
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, first.Summary.Status)
	assert.Equal(t, 1, first.Summary.QuestionsCompleted)
	assert.NotEmpty(t, first.ReportID)

	again, err := svc.Finish(context.Background(), sess.SessionID, "different_reason", "")
	require.NoError(t, err)
	assert.Equal(t, first.ReportID, again.ReportID)
	assert.Equal(t, first.Summary.FinishReason, again.Summary.FinishReason)
}

func TestReportRequiresFinish(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	sess := startSession(t, svc)

	_, err := svc.Report(context.Background(), sess.SessionID)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidState))

	_, err = svc.Finish(context.Background(), sess.SessionID, "user_ended", "")
	require.NoError(t, err)

	report, err := svc.Report(context.Background(), sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, sess.SessionID, report.SessionID)
	assert.NotEmpty(t, report.Recommendation)
}

func TestReportCountsSkipsAndAnswers(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	sess := startSession(t, svc)

	out, err := svc.SubmitAnswer(context.Background(), sess.SessionID,
		sess.CurrentQuestion.QuestionID, "a real answer with words", models.ResponseMetadata{ResponseTimeSeconds: 12})
	require.NoError(t, err)
	require.NotNil(t, out.NextQuestion)

	_, _, err = svc.NextQuestion(context.Background(), sess.SessionID, true)
	require.NoError(t, err)

	_, err = svc.Finish(context.Background(), sess.SessionID, "user_ended", "")
	require.NoError(t, err)

	report, err := svc.Report(context.Background(), sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Transcript.AnsweredCount)
	assert.Equal(t, 1, report.Transcript.SkippedCount)
	assert.Len(t, report.QuestionAnalysis, 2)
}

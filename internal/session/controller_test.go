package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chouhanjibanti/interview-live/internal/liveclient"
	"github.com/chouhanjibanti/interview-live/internal/models"
	"github.com/chouhanjibanti/interview-live/internal/utils"
)

const (
	timeoutEventually = time.Second
	pollEventually    = 5 * time.Millisecond
)

func q(id string) *models.InterviewQuestion {
	return &models.InterviewQuestion{
		QuestionID:             id,
		Type:                   models.QuestionTechnical,
		Text:                   "question " + id,
		MaxResponseTimeSeconds: 120,
	}
}

type fakeTransport struct {
	startCalls  int32
	answerCalls int32
	nextCalls   int32
	repeatCalls int32
	finishCalls int32
	reportCalls int32

	answerErr error
	finishErr error

	startedAt string // StartInterview override

	answerResp *liveclient.AnswerResponse
	nextResp   *liveclient.NextResponse
	repeatResp *liveclient.RepeatResponse

	// answerGate, when set, blocks SubmitAnswer until released
	answerGate chan struct{}
}

func (f *fakeTransport) StartInterview(_ context.Context, req liveclient.StartRequest) (*liveclient.StartResponse, error) {
	atomic.AddInt32(&f.startCalls, 1)
	started := f.startedAt
	if started == "" {
		started = "2026-08-28T10:00:00Z"
	}
	return &liveclient.StartResponse{
		SessionID:        "s1",
		CandidateProfile: models.CandidateSnapshot{Name: "Ada", ExperienceYears: 5},
		InterviewPlan:    models.InterviewPlan{TotalQuestions: 3, EstimatedMinutes: 15},
		FirstQuestion:    q("q1"),
		StartedAt:        started,
	}, nil
}

func (f *fakeTransport) SubmitAnswer(_ context.Context, req liveclient.AnswerRequest) (*liveclient.AnswerResponse, error) {
	atomic.AddInt32(&f.answerCalls, 1)
	if f.answerGate != nil {
		<-f.answerGate
	}
	if f.answerErr != nil {
		return nil, f.answerErr
	}
	if f.answerResp != nil {
		return f.answerResp, nil
	}
	return &liveclient.AnswerResponse{
		Evaluation:   models.AnswerEvaluation{OverallScore: 80},
		NextAction:   models.ActionContinue,
		NextQuestion: q("q2"),
		Progress:     models.SessionProgress{QuestionsCompleted: 1, TotalQuestions: 3},
	}, nil
}

func (f *fakeTransport) NextQuestion(_ context.Context, sessionID string, forceNext bool) (*liveclient.NextResponse, error) {
	atomic.AddInt32(&f.nextCalls, 1)
	if f.nextResp != nil {
		return f.nextResp, nil
	}
	return &liveclient.NextResponse{Question: q("q2")}, nil
}

func (f *fakeTransport) RepeatQuestion(_ context.Context, sessionID, questionID string) (*liveclient.RepeatResponse, error) {
	atomic.AddInt32(&f.repeatCalls, 1)
	if f.repeatResp != nil {
		return f.repeatResp, nil
	}
	return &liveclient.RepeatResponse{Question: q(questionID), RepeatCount: 1}, nil
}

func (f *fakeTransport) FinishInterview(_ context.Context, req liveclient.FinishRequest) (*liveclient.FinishResponse, error) {
	atomic.AddInt32(&f.finishCalls, 1)
	if f.finishErr != nil {
		return nil, f.finishErr
	}
	return &liveclient.FinishResponse{
		Summary:  models.SessionSummary{SessionID: req.SessionID, Status: models.SessionCompleted, FinishReason: req.FinishReason},
		ReportID: "rep1",
	}, nil
}

func (f *fakeTransport) GetReport(_ context.Context, sessionID string) (*models.InterviewReport, error) {
	atomic.AddInt32(&f.reportCalls, 1)
	return &models.InterviewReport{ReportID: "rep1", SessionID: sessionID}, nil
}

func startedController(t *testing.T, tr *fakeTransport) *Controller {
	t.Helper()
	c := NewController(tr, nil)
	snap, err := c.Start(context.Background(), liveclient.StartRequest{
		ResumeID: "r1", JobID: "j1", InterviewMode: models.ModeMixed,
	})
	require.NoError(t, err)
	require.Equal(t, models.SessionActive, snap.Status)
	require.NotNil(t, snap.CurrentQuestion)
	return c
}

func TestStartYieldsActiveSessionWithQuestion(t *testing.T) {
	c := startedController(t, &fakeTransport{})
	snap := c.Snapshot()
	assert.Equal(t, StateAwaitingAnswer, snap.State)
	assert.Equal(t, "s1", snap.SessionID)
	assert.Equal(t, "q1", snap.CurrentQuestion.QuestionID)
	assert.Equal(t, 3, snap.Progress.TotalQuestions)
}

func TestSubmitAdvancesProgressAndQuestion(t *testing.T) {
	tr := &fakeTransport{}
	c := startedController(t, tr)

	resp, err := c.SubmitAnswer(context.Background(), "q1", "I have 5 years of React experience", models.ResponseMetadata{})
	require.NoError(t, err)
	assert.Equal(t, 80.0, resp.Evaluation.OverallScore)

	snap := c.Snapshot()
	assert.Equal(t, 1, snap.Progress.QuestionsCompleted)
	assert.Equal(t, "q2", snap.CurrentQuestion.QuestionID)
	assert.Equal(t, StateAwaitingAnswer, snap.State)
}

func TestStaleQuestionIDRejectedWithoutTransportCall(t *testing.T) {
	tr := &fakeTransport{}
	c := startedController(t, tr)

	_, err := c.SubmitAnswer(context.Background(), "q99", "late answer", models.ResponseMetadata{})
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidState))
	assert.Zero(t, atomic.LoadInt32(&tr.answerCalls))
	assert.Equal(t, StateAwaitingAnswer, c.Snapshot().State)
}

func TestProgressIsMonotone(t *testing.T) {
	tr := &fakeTransport{}
	c := startedController(t, tr)

	tr.answerResp = &liveclient.AnswerResponse{
		NextAction:   models.ActionContinue,
		NextQuestion: q("q2"),
		Progress:     models.SessionProgress{QuestionsCompleted: 2, TotalQuestions: 3},
	}
	_, err := c.SubmitAnswer(context.Background(), "q1", "a", models.ResponseMetadata{})
	require.NoError(t, err)

	// server glitch: reports a lower count on the next response
	tr.answerResp = &liveclient.AnswerResponse{
		NextAction:   models.ActionContinue,
		NextQuestion: q("q3"),
		Progress:     models.SessionProgress{QuestionsCompleted: 1, TotalQuestions: 3},
	}
	_, err = c.SubmitAnswer(context.Background(), "q2", "b", models.ResponseMetadata{})
	require.NoError(t, err)

	assert.Equal(t, 2, c.Snapshot().Progress.QuestionsCompleted)
}

func TestSkipReplacesQuestionWithoutProgress(t *testing.T) {
	tr := &fakeTransport{}
	c := startedController(t, tr)

	before := c.Snapshot().Progress.QuestionsCompleted
	nq, err := c.Next(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "q2", nq.QuestionID)

	snap := c.Snapshot()
	assert.Equal(t, before, snap.Progress.QuestionsCompleted)
	assert.Equal(t, "q2", snap.CurrentQuestion.QuestionID)
}

func TestNextOnExhaustedPlanLeavesNoQuestion(t *testing.T) {
	tr := &fakeTransport{nextResp: &liveclient.NextResponse{}}
	c := startedController(t, tr)

	next, err := c.Next(context.Background(), true)
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Nil(t, c.Snapshot().CurrentQuestion)

	// the caller wraps up; finish still works from here
	resp, err := c.Finish(context.Background(), "completed", "")
	require.NoError(t, err)
	assert.Equal(t, "rep1", resp.ReportID)
	assert.Equal(t, StateCompleted, c.Snapshot().State)
}

func TestUnparseableStartedAtIsTolerated(t *testing.T) {
	tr := &fakeTransport{startedAt: "yesterday, around noon"}
	c := NewController(tr, nil)

	snap, err := c.Start(context.Background(), liveclient.StartRequest{
		ResumeID: "r1", JobID: "j1", InterviewMode: models.ModeMixed,
	})
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingAnswer, snap.State)
	assert.True(t, snap.StartedAt.IsZero(), "bad timestamps are dropped, not guessed at")
}

func TestRepeatKeepsProgressAndRefreshesAudio(t *testing.T) {
	tr := &fakeTransport{repeatResp: &liveclient.RepeatResponse{
		Question:    q("q1"),
		AudioURL:    "https://cdn/audio/q1-take2.mp3",
		RepeatCount: 1,
	}}
	c := startedController(t, tr)

	cur, err := c.Repeat(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "q1", cur.QuestionID)
	assert.Equal(t, "https://cdn/audio/q1-take2.mp3", cur.AudioURL)
	assert.Zero(t, c.Snapshot().Progress.QuestionsCompleted)
}

func TestTransportFailureIsRecoverable(t *testing.T) {
	tr := &fakeTransport{answerErr: utils.E(utils.CodeUnavailable, "liveclient.SubmitAnswer", "down", errors.New("boom"))}
	c := startedController(t, tr)

	_, err := c.SubmitAnswer(context.Background(), "q1", "answer", models.ResponseMetadata{})
	require.Error(t, err)
	assert.Equal(t, StateErrored, c.Snapshot().State)

	// same submission retried after the outage clears
	tr.answerErr = nil
	resp, err := c.SubmitAnswer(context.Background(), "q1", "answer", models.ResponseMetadata{})
	require.NoError(t, err)
	assert.Equal(t, models.ActionContinue, resp.NextAction)
	assert.Equal(t, StateAwaitingAnswer, c.Snapshot().State)
}

func TestFinishReachableFromEveryState(t *testing.T) {
	t.Run("awaiting_answer", func(t *testing.T) {
		c := startedController(t, &fakeTransport{})
		_, err := c.Finish(context.Background(), "candidate_ended", "")
		require.NoError(t, err)
		assert.Equal(t, StateCompleted, c.Snapshot().State)
	})

	t.Run("errored", func(t *testing.T) {
		tr := &fakeTransport{answerErr: errors.New("boom")}
		c := startedController(t, tr)
		_, _ = c.SubmitAnswer(context.Background(), "q1", "a", models.ResponseMetadata{})
		require.Equal(t, StateErrored, c.Snapshot().State)

		_, err := c.Finish(context.Background(), "candidate_ended", "")
		require.NoError(t, err)
		assert.Equal(t, StateCompleted, c.Snapshot().State)
	})
}

func TestFinishDiscardsInFlightSubmit(t *testing.T) {
	tr := &fakeTransport{answerGate: make(chan struct{})}
	c := startedController(t, tr)

	submitDone := make(chan struct{})
	go func() {
		defer close(submitDone)
		_, _ = c.SubmitAnswer(context.Background(), "q1", "slow answer", models.ResponseMetadata{})
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&tr.answerCalls) == 1
	}, timeoutEventually, pollEventually)

	_, err := c.Finish(context.Background(), "candidate_ended", "")
	require.NoError(t, err)
	require.Equal(t, StateCompleted, c.Snapshot().State)

	close(tr.answerGate)
	<-submitDone

	// the late submit response must not resurrect the session
	snap := c.Snapshot()
	assert.Equal(t, StateCompleted, snap.State)
	assert.Nil(t, snap.CurrentQuestion)
}

func TestFinishIsIdempotent(t *testing.T) {
	tr := &fakeTransport{}
	c := startedController(t, tr)

	first, err := c.Finish(context.Background(), "candidate_ended", "")
	require.NoError(t, err)

	second, err := c.Finish(context.Background(), "candidate_ended", "")
	require.NoError(t, err)
	assert.Equal(t, first.ReportID, second.ReportID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tr.finishCalls), "completed session re-returns the stored summary")
}

func TestReportOnlyAfterFinish(t *testing.T) {
	tr := &fakeTransport{}
	c := startedController(t, tr)

	_, err := c.Report(context.Background())
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidState))

	_, err = c.Finish(context.Background(), "completed", "")
	require.NoError(t, err)

	rep, err := c.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rep1", rep.ReportID)
}

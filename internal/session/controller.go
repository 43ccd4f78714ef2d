package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chouhanjibanti/interview-live/internal/liveclient"
	"github.com/chouhanjibanti/interview-live/internal/models"
	"github.com/chouhanjibanti/interview-live/internal/utils"
)

type State string

const (
	StateUninitialized  State = "uninitialized"
	StateStarting       State = "starting"
	StateAwaitingAnswer State = "awaiting_answer"
	StateSubmitting     State = "submitting"
	StateFinishing      State = "finishing"
	StateCompleted      State = "completed"
	StateErrored        State = "errored"
)

// Transport is the subset of the live client the controller drives.
type Transport interface {
	StartInterview(ctx context.Context, req liveclient.StartRequest) (*liveclient.StartResponse, error)
	SubmitAnswer(ctx context.Context, req liveclient.AnswerRequest) (*liveclient.AnswerResponse, error)
	NextQuestion(ctx context.Context, sessionID string, forceNext bool) (*liveclient.NextResponse, error)
	RepeatQuestion(ctx context.Context, sessionID, questionID string) (*liveclient.RepeatResponse, error)
	FinishInterview(ctx context.Context, req liveclient.FinishRequest) (*liveclient.FinishResponse, error)
	GetReport(ctx context.Context, sessionID string) (*models.InterviewReport, error)
}

// Snapshot is the read-projection handed to the orchestrator. The controller
// alone mutates session state.
type Snapshot struct {
	State           State
	SessionID       string
	Status          models.SessionStatus
	Candidate       models.CandidateSnapshot
	Plan            models.InterviewPlan
	Progress        models.SessionProgress
	CurrentQuestion *models.InterviewQuestion
	StartedAt       time.Time
}

// Controller owns one InterviewSession for its lifetime and drives the
// question/answer/evaluation round-trips one at a time.
//
// Finish bumps a generation counter; a submit response carrying an older
// generation is discarded without touching state (last writer wins).
type Controller struct {
	transport Transport
	log       *logrus.Entry

	mu         sync.Mutex
	state      State
	generation uint64

	sessionID string
	status    models.SessionStatus
	candidate models.CandidateSnapshot
	plan      models.InterviewPlan
	progress  models.SessionProgress
	current   *models.InterviewQuestion
	startedAt time.Time

	lastFinish *liveclient.FinishResponse
}

func NewController(transport Transport, log *logrus.Entry) *Controller {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Controller{transport: transport, log: log, state: StateUninitialized}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:     c.state,
		SessionID: c.sessionID,
		Status:    c.status,
		Candidate: c.candidate,
		Plan:      c.plan,
		Progress:  c.progress,
		StartedAt: c.startedAt,
	}
	if c.current != nil {
		q := *c.current
		snap.CurrentQuestion = &q
	}
	return snap
}

// Start begins the interview. Valid from uninitialized, and from errored when
// no session was ever established (a failed start may be retried).
func (c *Controller) Start(ctx context.Context, req liveclient.StartRequest) (Snapshot, error) {
	const op = "session.Start"

	c.mu.Lock()
	if c.state != StateUninitialized && !(c.state == StateErrored && c.sessionID == "") {
		st := c.state
		c.mu.Unlock()
		return Snapshot{}, utils.E(utils.CodeInvalidState, op, "start not allowed in state "+string(st), nil)
	}
	c.state = StateStarting
	c.mu.Unlock()

	resp, err := c.transport.StartInterview(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateErrored
		return Snapshot{}, err
	}

	c.sessionID = resp.SessionID
	c.status = models.SessionActive
	c.candidate = resp.CandidateProfile
	c.plan = resp.InterviewPlan
	c.progress = models.SessionProgress{TotalQuestions: resp.InterviewPlan.TotalQuestions}
	c.current = resp.FirstQuestion
	if t, perr := time.Parse(time.RFC3339, resp.StartedAt); perr == nil {
		c.startedAt = t
	} else {
		c.log.WithError(perr).Debug("ignoring unparseable started_at")
	}
	c.state = StateAwaitingAnswer

	c.log.WithFields(logrus.Fields{
		"session_id":      c.sessionID,
		"total_questions": c.plan.TotalQuestions,
	}).Info("interview started")

	return c.snapshotLocked(), nil
}

// SubmitAnswer submits the transcript for the current question. A stale
// question id is rejected before any transport call. Valid from
// awaiting_answer, and from errored while a question is still pending (the
// caller may retry the same submission after a transport failure).
func (c *Controller) SubmitAnswer(ctx context.Context, questionID, transcript string, md models.ResponseMetadata) (*liveclient.AnswerResponse, error) {
	const op = "session.SubmitAnswer"

	c.mu.Lock()
	if c.state != StateAwaitingAnswer && !(c.state == StateErrored && c.current != nil) {
		st := c.state
		c.mu.Unlock()
		return nil, utils.E(utils.CodeInvalidState, op, "submit not allowed in state "+string(st), nil)
	}
	if c.current == nil || c.current.QuestionID != questionID {
		c.mu.Unlock()
		return nil, utils.E(utils.CodeInvalidState, op, "stale question id", nil)
	}
	c.state = StateSubmitting
	gen := c.generation
	sessionID := c.sessionID
	c.mu.Unlock()

	resp, err := c.transport.SubmitAnswer(ctx, liveclient.AnswerRequest{
		SessionID:  sessionID,
		QuestionID: questionID,
		Transcript: transcript,
		Metadata:   md,
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		// a finish raced this submission; its effect is discarded
		c.log.WithField("question_id", questionID).Debug("late submit response discarded")
		return resp, err
	}

	if err != nil {
		c.state = StateErrored
		return nil, err
	}

	c.mergeProgress(resp.Progress)

	switch resp.NextAction {
	case models.ActionFinish:
		c.current = nil
		c.status = models.SessionCompleted
		c.state = StateCompleted
	case models.ActionRepeat:
		// same question stays current
		c.state = StateAwaitingAnswer
	default:
		c.current = resp.NextQuestion
		c.state = StateAwaitingAnswer
	}

	return resp, nil
}

// Next replaces the current question without submitting an answer ("skip");
// forceNext bypasses server-side adaptive selection. Progress is unchanged
// unless the server reports otherwise. A nil question with a nil error means
// the plan is exhausted and the session should be finished.
func (c *Controller) Next(ctx context.Context, forceNext bool) (*models.InterviewQuestion, error) {
	const op = "session.Next"

	c.mu.Lock()
	if c.state != StateAwaitingAnswer && c.state != StateErrored {
		st := c.state
		c.mu.Unlock()
		return nil, utils.E(utils.CodeInvalidState, op, "next not allowed in state "+string(st), nil)
	}
	sessionID := c.sessionID
	gen := c.generation
	c.mu.Unlock()

	resp, err := c.transport.NextQuestion(ctx, sessionID, forceNext)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return nil, utils.E(utils.CodeInvalidState, op, "session already finished", nil)
	}
	if err != nil {
		c.state = StateErrored
		return nil, err
	}

	c.mergeProgress(resp.SessionContext)
	c.current = resp.Question
	c.state = StateAwaitingAnswer
	if resp.Question == nil {
		// plan exhausted; the caller is expected to finish the session
		c.log.WithField("session_id", sessionID).Info("no further questions")
	}
	return resp.Question, nil
}

// Repeat re-fetches the current question's content, possibly with a fresh
// audio URL. Progress is untouched.
func (c *Controller) Repeat(ctx context.Context) (*models.InterviewQuestion, error) {
	const op = "session.Repeat"

	c.mu.Lock()
	if c.state != StateAwaitingAnswer || c.current == nil {
		st := c.state
		c.mu.Unlock()
		return nil, utils.E(utils.CodeInvalidState, op, "repeat not allowed in state "+string(st), nil)
	}
	sessionID := c.sessionID
	questionID := c.current.QuestionID
	gen := c.generation
	c.mu.Unlock()

	resp, err := c.transport.RepeatQuestion(ctx, sessionID, questionID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return nil, utils.E(utils.CodeInvalidState, op, "session already finished", nil)
	}
	if err != nil {
		c.state = StateErrored
		return nil, err
	}

	if resp.Question != nil {
		q := *resp.Question
		if resp.AudioURL != "" {
			q.AudioURL = resp.AudioURL
		}
		c.current = &q
	} else if resp.AudioURL != "" && c.current != nil {
		q := *c.current
		q.AudioURL = resp.AudioURL
		c.current = &q
	}
	c.state = StateAwaitingAnswer
	return c.current, nil
}

// Finish ends the interview from any state, interrupting an in-flight
// question. On an already-completed session it re-returns the stored summary.
func (c *Controller) Finish(ctx context.Context, reason, notes string) (*liveclient.FinishResponse, error) {
	const op = "session.Finish"

	c.mu.Lock()
	if c.state == StateCompleted && c.lastFinish != nil {
		resp := c.lastFinish
		c.mu.Unlock()
		return resp, nil
	}
	if c.sessionID == "" {
		c.mu.Unlock()
		return nil, utils.E(utils.CodeInvalidState, op, "no session to finish", nil)
	}
	c.generation++ // in-flight submit results are now stale
	prevState := c.state
	c.state = StateFinishing
	sessionID := c.sessionID
	c.mu.Unlock()

	resp, err := c.transport.FinishInterview(ctx, liveclient.FinishRequest{
		SessionID:      sessionID,
		FinishReason:   reason,
		CandidateNotes: notes,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateErrored
		c.log.WithField("prev_state", string(prevState)).WithError(err).Warn("finish failed")
		return nil, err
	}

	c.current = nil
	c.status = models.SessionCompleted
	c.state = StateCompleted
	c.lastFinish = resp
	return resp, nil
}

// Report fetches the full evaluation report; valid only after finish.
func (c *Controller) Report(ctx context.Context) (*models.InterviewReport, error) {
	const op = "session.Report"

	c.mu.Lock()
	if c.state != StateCompleted {
		st := c.state
		c.mu.Unlock()
		return nil, utils.E(utils.CodeInvalidState, op, "report not available in state "+string(st), nil)
	}
	sessionID := c.sessionID
	c.mu.Unlock()

	return c.transport.GetReport(ctx, sessionID)
}

// mergeProgress keeps QuestionsCompleted monotone; the controller never
// extrapolates counters locally.
func (c *Controller) mergeProgress(p models.SessionProgress) {
	if p.QuestionsCompleted >= c.progress.QuestionsCompleted {
		c.progress.QuestionsCompleted = p.QuestionsCompleted
	}
	if p.TotalQuestions > 0 {
		c.progress.TotalQuestions = p.TotalQuestions
	}
	if p.TimeElapsedMinutes > 0 {
		c.progress.TimeElapsedMinutes = p.TimeElapsedMinutes
	}
	c.progress.EstimatedRemainingMinutes = p.EstimatedRemainingMinutes
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:     c.state,
		SessionID: c.sessionID,
		Status:    c.status,
		Candidate: c.candidate,
		Plan:      c.plan,
		Progress:  c.progress,
		StartedAt: c.startedAt,
	}
	if c.current != nil {
		q := *c.current
		snap.CurrentQuestion = &q
	}
	return snap
}

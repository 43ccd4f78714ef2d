package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chouhanjibanti/interview-live/internal/audio"
	"github.com/chouhanjibanti/interview-live/internal/liveclient"
	"github.com/chouhanjibanti/interview-live/internal/models"
	"github.com/chouhanjibanti/interview-live/internal/session"
	"github.com/chouhanjibanti/interview-live/internal/utils"
)

// Phase is the externally observable state of the interview screen.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSpeaking   Phase = "speaking"
	PhaseListening  Phase = "listening"
	PhaseProcessing Phase = "processing"
	PhaseCompleted  Phase = "completed"
	PhaseError      Phase = "error"
)

// Orchestrator binds the session controller to the audio adapter and runs the
// conversation loop: play the question, listen under the response-time budget,
// submit whatever transcript is buffered, repeat. It is the only component
// that talks to both sides; the session itself is read-only here.
type Orchestrator struct {
	ctrl  *session.Controller
	audio *audio.Controller
	log   *logrus.Entry

	// timeUnit scales MaxResponseTimeSeconds; tests shrink it
	timeUnit time.Duration

	onPhase func(Phase)

	mu         sync.Mutex
	phase      Phase
	live       string // interim transcript display
	buffered   string // candidate answer buffer for the current question
	lastErr    error
	stopCh     chan struct{} // manual stop-recording for the current question
	skipNext   bool
	repeatNext bool
}

type Option func(*Orchestrator)

// WithTimeUnit overrides the unit a question's response budget is measured
// in. Production uses the default of one second.
func WithTimeUnit(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeUnit = d }
}

// WithPhaseObserver registers a callback fired on every phase change.
func WithPhaseObserver(fn func(Phase)) Option {
	return func(o *Orchestrator) { o.onPhase = fn }
}

func New(ctrl *session.Controller, ac *audio.Controller, log *logrus.Entry, opts ...Option) *Orchestrator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	o := &Orchestrator{
		ctrl:     ctrl,
		audio:    ac,
		log:      log,
		timeUnit: time.Second,
		phase:    PhaseIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// LiveTranscript is the interim display text while listening.
func (o *Orchestrator) LiveTranscript() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.live
}

func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Run starts the interview and drives the conversation loop until the session
// completes or an unrecoverable error halts it. On a halt the phase is
// "error" and the caller decides whether to Resume or EndInterview.
func (o *Orchestrator) Run(ctx context.Context, req liveclient.StartRequest) error {
	snap, err := o.ctrl.Start(ctx, req)
	if err != nil {
		o.fail(err)
		return err
	}
	o.log.WithField("session_id", snap.SessionID).Info("conversation loop starting")
	return o.loop(ctx)
}

// Resume re-enters the loop after an error halt, re-asking the pending
// question. The explicit user action the halt demanded is this call.
func (o *Orchestrator) Resume(ctx context.Context) error {
	if o.Phase() != PhaseError {
		return utils.E(utils.CodeInvalidState, "orchestrator.Resume", "nothing to resume", nil)
	}
	o.mu.Lock()
	o.lastErr = nil
	o.mu.Unlock()
	return o.loop(ctx)
}

func (o *Orchestrator) loop(ctx context.Context) error {
	for {
		snap := o.ctrl.Snapshot()

		switch snap.State {
		case session.StateCompleted:
			o.setPhase(PhaseCompleted)
			return nil
		case session.StateAwaitingAnswer:
			if snap.CurrentQuestion == nil {
				// the plan ran out, e.g. the last question was skipped
				o.setPhase(PhaseProcessing)
				if _, err := o.ctrl.Finish(ctx, "completed", ""); err != nil {
					o.fail(err)
					return err
				}
				o.setPhase(PhaseCompleted)
				return nil
			}
		case session.StateErrored:
			if snap.CurrentQuestion == nil {
				err := utils.E(utils.CodeInvalidState, "orchestrator.loop", "no question pending", nil)
				o.fail(err)
				return err
			}
		default:
			o.setPhase(PhaseCompleted)
			return nil
		}

		if err := o.askQuestion(ctx, snap.CurrentQuestion); err != nil {
			o.fail(err)
			return err
		}
	}
}

// Skip requests that the current question be skipped without an answer.
func (o *Orchestrator) Skip() {
	o.mu.Lock()
	o.skipNext = true
	o.signalStopLocked()
	o.mu.Unlock()
}

// RepeatCurrent requests the current question be replayed.
func (o *Orchestrator) RepeatCurrent() {
	o.mu.Lock()
	o.repeatNext = true
	o.signalStopLocked()
	o.mu.Unlock()
}

// StopRecording ends the listening window early; whatever transcript is
// buffered becomes the answer.
func (o *Orchestrator) StopRecording() {
	o.mu.Lock()
	o.signalStopLocked()
	o.mu.Unlock()
}

func (o *Orchestrator) signalStopLocked() {
	if o.stopCh != nil {
		close(o.stopCh)
		o.stopCh = nil
	}
}

// EndInterview finishes the session from any phase, stopping in-flight audio
// first. In-flight HTTP is left to complete; its result is discarded by the
// session controller's generation guard.
func (o *Orchestrator) EndInterview(ctx context.Context, reason string) (*liveclient.FinishResponse, error) {
	o.audio.StopAll()
	resp, err := o.ctrl.Finish(ctx, reason, "")
	if err != nil {
		o.fail(err)
		return nil, err
	}
	o.setPhase(PhaseCompleted)
	return resp, nil
}

func (o *Orchestrator) askQuestion(ctx context.Context, q *models.InterviewQuestion) error {
	// 1. speak the prompt: pre-rendered audio preferred, local synthesis else
	o.setPhase(PhaseSpeaking)
	var err error
	if q.AudioURL != "" {
		err = o.audio.PlayURL(ctx, q.AudioURL, 1.0)
	} else {
		err = o.audio.Speak(ctx, q.Text, audio.SpeakOptions{})
	}
	if err != nil {
		return err
	}

	// 2. listen under the question's response-time budget
	listenStart := time.Now()
	transcript, timedOut, action, err := o.listen(ctx, q)
	if err != nil {
		return err
	}

	switch action {
	case actionSkip:
		o.setPhase(PhaseProcessing)
		if _, err := o.ctrl.Next(ctx, true); err != nil {
			return err
		}
		return nil
	case actionRepeat:
		o.setPhase(PhaseProcessing)
		if _, err := o.ctrl.Repeat(ctx); err != nil {
			return err
		}
		return nil
	}

	// 3. submit whatever was buffered; empty answers are valid submissions
	o.setPhase(PhaseProcessing)
	md := models.ResponseMetadata{
		ResponseTimeSeconds: time.Since(listenStart).Seconds(),
		TimedOut:            timedOut,
		InputMethod:         "voice",
	}
	if _, err := o.ctrl.SubmitAnswer(ctx, q.QuestionID, transcript, md); err != nil {
		return err
	}
	return nil
}

type listenAction int

const (
	actionSubmit listenAction = iota
	actionSkip
	actionRepeat
)

func (o *Orchestrator) listen(ctx context.Context, q *models.InterviewQuestion) (string, bool, listenAction, error) {
	stream, err := o.audio.StartRecognition(ctx)
	if err != nil {
		return "", false, actionSubmit, err
	}

	stop := make(chan struct{})
	o.mu.Lock()
	o.stopCh = stop
	o.skipNext = false
	o.repeatNext = false
	o.live = ""
	o.buffered = ""
	o.phase = PhaseListening
	notify := o.onPhase
	o.mu.Unlock()
	if notify != nil {
		notify(PhaseListening)
	}

	budget := time.Duration(q.MaxResponseTimeSeconds) * o.timeUnit
	timer := time.NewTimer(budget)
	defer timer.Stop()

	timedOut := false
	results := stream.Results()

loop:
	for {
		select {
		case res, ok := <-results:
			if !ok {
				if serr := stream.Err(); serr != nil {
					o.audio.StopRecognition()
					return "", false, actionSubmit,
						utils.E(utils.CodeUnavailable, "orchestrator.listen", "recognition stream failed", serr)
				}
				break loop
			}
			o.mu.Lock()
			o.live = res.Transcript
			if res.Transcript != "" {
				o.buffered = res.Transcript
			}
			o.mu.Unlock()
			if res.IsFinal {
				break loop
			}
		case <-timer.C:
			// budget expiry force-submits whatever is buffered
			timedOut = true
			break loop
		case <-stop:
			break loop
		case <-ctx.Done():
			o.audio.StopRecognition()
			return "", false, actionSubmit, ctx.Err()
		}
	}

	o.audio.StopRecognition()

	o.mu.Lock()
	transcript := o.buffered
	o.stopCh = nil
	skip, repeat := o.skipNext, o.repeatNext
	o.mu.Unlock()

	switch {
	case skip:
		return "", false, actionSkip, nil
	case repeat:
		return "", false, actionRepeat, nil
	default:
		return transcript, timedOut, actionSubmit, nil
	}
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	notify := o.onPhase
	o.mu.Unlock()
	if notify != nil {
		notify(p)
	}
}

func (o *Orchestrator) fail(err error) {
	o.mu.Lock()
	o.lastErr = err
	o.phase = PhaseError
	notify := o.onPhase
	o.mu.Unlock()
	o.log.WithError(err).Warn("conversation loop halted")
	if notify != nil {
		notify(PhaseError)
	}
}

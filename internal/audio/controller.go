package audio

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/chouhanjibanti/interview-live/internal/utils"
)

// Controller enforces single-flight semantics over the shared synthesis and
// recognition engines. An utterance (Speak or PlayURL) owns the utterance
// handle; starting a new one cancels the current holder. Recognition owns a
// separate handle with the same rule. Supersession is explicit through these
// handles rather than implicit in the underlying provider.
type Controller struct {
	synth  Synthesizer
	player Player
	rec    Recognizer
	log    *logrus.Entry

	mu          sync.Mutex
	utterGen    uint64
	utterCancel context.CancelFunc
	recGen      uint64
	recStream   Stream
	recCancel   context.CancelFunc
}

func NewController(synth Synthesizer, player Player, rec Recognizer, log *logrus.Entry) *Controller {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Controller{synth: synth, player: player, rec: rec, log: log}
}

// RecognitionSupported reports whether voice capture can be offered at all.
func (c *Controller) RecognitionSupported() bool {
	return c.rec != nil && c.rec.Supported()
}

// Speak synthesizes text and blocks until playback ends. A concurrent Speak
// or PlayURL cancels this one; the superseded call returns nil.
func (c *Controller) Speak(ctx context.Context, text string, opts SpeakOptions) error {
	const op = "audio.Speak"

	if c.synth == nil {
		return utils.E(utils.CodeUnsupported, op, "no synthesizer configured", nil)
	}

	uctx, gen := c.claimUtterance(ctx)
	defer c.releaseUtterance(gen)

	err := c.synth.Speak(uctx, text, opts)
	if err != nil {
		if uctx.Err() != nil && ctx.Err() == nil {
			// superseded by a newer utterance, not a failure
			c.log.Debug("utterance superseded")
			return nil
		}
		return utils.E(utils.CodeUnavailable, op, "speech synthesis failed", err)
	}
	return nil
}

// PlayURL plays a pre-rendered clip; same single-flight rules as Speak.
func (c *Controller) PlayURL(ctx context.Context, url string, volume float64) error {
	const op = "audio.PlayURL"

	if c.player == nil {
		return utils.E(utils.CodeUnsupported, op, "no player configured", nil)
	}

	uctx, gen := c.claimUtterance(ctx)
	defer c.releaseUtterance(gen)

	err := c.player.PlayURL(uctx, url, volume)
	if err != nil {
		if uctx.Err() != nil && ctx.Err() == nil {
			c.log.Debug("playback superseded")
			return nil
		}
		return utils.E(utils.CodeUnavailable, op, "audio playback failed", err)
	}
	return nil
}

// StartRecognition opens a new recognition stream, superseding any stream
// already running.
func (c *Controller) StartRecognition(ctx context.Context) (Stream, error) {
	const op = "audio.StartRecognition"

	if !c.RecognitionSupported() {
		return nil, utils.E(utils.CodeUnsupported, op, "speech recognition not available", nil)
	}

	rctx, cancel := context.WithCancel(ctx)
	stream, err := c.rec.Start(rctx)
	if err != nil {
		cancel()
		return nil, utils.E(utils.CodeUnavailable, op, "failed to start recognition", err)
	}

	c.mu.Lock()
	c.recGen++
	prev, prevCancel := c.recStream, c.recCancel
	c.recStream, c.recCancel = stream, cancel
	c.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	if prevCancel != nil {
		prevCancel()
	}
	return stream, nil
}

// StopRecognition ends the current stream, if any. Safe to call repeatedly.
func (c *Controller) StopRecognition() {
	c.mu.Lock()
	stream, cancel := c.recStream, c.recCancel
	c.recStream, c.recCancel = nil, nil
	c.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
	if cancel != nil {
		cancel()
	}
}

// StopAll cancels the in-flight utterance and recognition stream. Used when
// the interview ends to avoid orphaned audio state.
func (c *Controller) StopAll() {
	c.mu.Lock()
	utterCancel := c.utterCancel
	c.utterCancel = nil
	c.mu.Unlock()

	if utterCancel != nil {
		utterCancel()
	}
	c.StopRecognition()
}

func (c *Controller) claimUtterance(ctx context.Context) (context.Context, uint64) {
	uctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.utterGen++
	gen := c.utterGen
	prev := c.utterCancel
	c.utterCancel = cancel
	c.mu.Unlock()

	if prev != nil {
		prev()
	}
	return uctx, gen
}

func (c *Controller) releaseUtterance(gen uint64) {
	c.mu.Lock()
	if c.utterGen == gen && c.utterCancel != nil {
		c.utterCancel()
		c.utterCancel = nil
	}
	c.mu.Unlock()
}

package audio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chouhanjibanti/interview-live/internal/utils"
)

type fakeSynth struct {
	mu         sync.Mutex
	spoken     []string
	blockFirst bool // first utterance blocks until its ctx is canceled
}

func (f *fakeSynth) Speak(ctx context.Context, text string, _ SpeakOptions) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	first := len(f.spoken) == 1
	f.mu.Unlock()
	if f.blockFirst && first {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

type fakeStream struct {
	results  chan Result
	stopOnce sync.Once
	stopped  bool
	mu       sync.Mutex
}

func newFakeStream() *fakeStream { return &fakeStream{results: make(chan Result, 4)} }

func (f *fakeStream) Results() <-chan Result { return f.results }
func (f *fakeStream) Err() error             { return nil }
func (f *fakeStream) Stop() {
	f.stopOnce.Do(func() {
		f.mu.Lock()
		f.stopped = true
		f.mu.Unlock()
		close(f.results)
	})
}

func (f *fakeStream) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type fakeRecognizer struct {
	mu      sync.Mutex
	streams []*fakeStream
}

func (f *fakeRecognizer) Supported() bool { return true }

func (f *fakeRecognizer) Start(context.Context) (Stream, error) {
	s := newFakeStream()
	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.mu.Unlock()
	return s, nil
}

func TestStartRecognitionSupersedesPrevious(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewController(nil, nil, rec, nil)

	s1, err := c.StartRecognition(context.Background())
	require.NoError(t, err)
	s2, err := c.StartRecognition(context.Background())
	require.NoError(t, err)

	assert.True(t, rec.streams[0].isStopped(), "first stream must be canceled")
	assert.False(t, rec.streams[1].isStopped(), "second stream must stay active")
	assert.NotSame(t, s1, s2)
}

func TestStopRecognitionIsIdempotent(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewController(nil, nil, rec, nil)

	_, err := c.StartRecognition(context.Background())
	require.NoError(t, err)

	c.StopRecognition()
	c.StopRecognition() // no stream active; must not panic
	assert.True(t, rec.streams[0].isStopped())
}

func TestRecognitionUnsupported(t *testing.T) {
	c := NewController(nil, nil, nil, nil)
	assert.False(t, c.RecognitionSupported())

	_, err := c.StartRecognition(context.Background())
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeUnsupported))
}

func TestSpeakSupersededReturnsNil(t *testing.T) {
	synth := &fakeSynth{blockFirst: true}
	c := NewController(synth, nil, nil, nil)

	firstDone := make(chan error, 1)
	go func() { firstDone <- c.Speak(context.Background(), "first", SpeakOptions{}) }()

	// wait until the first utterance is in flight
	require.Eventually(t, func() bool {
		synth.mu.Lock()
		defer synth.mu.Unlock()
		return len(synth.spoken) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Speak(context.Background(), "second", SpeakOptions{}))

	select {
	case err := <-firstDone:
		assert.NoError(t, err, "superseded utterance is not a failure")
	case <-time.After(time.Second):
		t.Fatal("first Speak never returned")
	}

	synth.mu.Lock()
	defer synth.mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, synth.spoken)
}

func TestStopAllCancelsRecognition(t *testing.T) {
	rec := &fakeRecognizer{}
	c := NewController(&fakeSynth{}, nil, rec, nil)

	_, err := c.StartRecognition(context.Background())
	require.NoError(t, err)

	c.StopAll()
	assert.True(t, rec.streams[0].isStopped())
}

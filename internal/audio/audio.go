package audio

import "context"

// Result is one recognition event. Transcript is the full text recognized so
// far, not a delta. Interim results repeat with IsFinal=false; at most one
// IsFinal=true result precedes the end of a stream.
type Result struct {
	Transcript string
	Confidence float64
	IsFinal    bool
}

// Stream is a cancellable sequence of recognition results. Results closes when
// the stream ends, naturally or via Stop; Err is meaningful only afterwards.
type Stream interface {
	Results() <-chan Result
	// Stop is idempotent and safe to call on an already-ended stream.
	Stop()
	Err() error
}

// Recognizer starts speech-to-text streams. Callers must check Supported
// before offering voice input.
type Recognizer interface {
	Supported() bool
	Start(ctx context.Context) (Stream, error)
}

type SpeakOptions struct {
	Rate   float64 // 0 means provider default
	Pitch  float64
	Volume float64
	Voice  string
}

// Synthesizer renders text to audio and blocks until playback ends.
type Synthesizer interface {
	Speak(ctx context.Context, text string, opts SpeakOptions) error
}

// Player plays a pre-rendered clip by URL and blocks until playback ends.
type Player interface {
	PlayURL(ctx context.Context, url string, volume float64) error
}

// Sink consumes rendered audio bytes and performs delivery (speaker device,
// RTP track, file). Implementations buffer and pace internally.
type Sink interface {
	Write(pcm []byte) error
	// Flush blocks until buffered audio has drained.
	Flush() error
	// Reset drops queued audio immediately (used when an utterance is superseded).
	Reset()
}

// ChunkSource supplies captured audio frames to a recognizer. Returning
// io.EOF ends the capture naturally.
type ChunkSource interface {
	NextChunk(ctx context.Context) ([]byte, error)
}

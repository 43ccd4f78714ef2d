package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/chouhanjibanti/interview-live/internal/audio"
	"github.com/chouhanjibanti/interview-live/internal/liveclient"
	"github.com/chouhanjibanti/interview-live/internal/logger"
	"github.com/chouhanjibanti/interview-live/internal/models"
	"github.com/chouhanjibanti/interview-live/internal/orchestrator"
	"github.com/chouhanjibanti/interview-live/internal/session"
)

// interview-agent drives one live interview end to end against the service:
// it speaks each question, pipes answer audio from stdin to the websocket
// transcriber, submits the transcript, and prints the final report.
//
//	arecord -f S16_LE -r 16000 -c 1 -t raw | interview-agent -resume <id> -job <id>

func main() {
	_ = godotenv.Load()

	var (
		baseURL  = flag.String("base-url", envOr("INTERVIEW_API_URL", "http://localhost:8080"), "interview service base URL")
		resumeID = flag.String("resume", "", "resume id of the candidate")
		jobID    = flag.String("job", "", "job id to interview for")
		mode     = flag.String("mode", "mixed", "interview mode: technical|behavioral|mixed")
		email    = flag.String("email", os.Getenv("INTERVIEW_EMAIL"), "login email")
		password = flag.String("password", os.Getenv("INTERVIEW_PASSWORD"), "login password")
		clipDir  = flag.String("clip-dir", "", "directory for rendered question audio (default: temp)")
	)
	flag.Parse()

	l := logger.New()

	if *resumeID == "" || *jobID == "" {
		log.Fatal("both -resume and -job are required")
	}

	access, refresh, err := login(*baseURL, *email, *password)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}
	tokens := liveclient.NewAPITokenSource(*baseURL, access, refresh)

	client := liveclient.New(*baseURL, tokens, liveclient.WithLogger(logger.WithComponent(l, "liveclient")))

	dir := *clipDir
	if dir == "" {
		dir, err = os.MkdirTemp("", "interview-clips-")
		if err != nil {
			log.Fatalf("clip dir: %v", err)
		}
	}
	sink := &clipSink{dir: dir, log: l}

	ctrl := session.NewController(client, logger.WithComponent(l, "session"))

	req := liveclient.StartRequest{
		ResumeID:      *resumeID,
		JobID:         *jobID,
		InterviewMode: models.InterviewMode(*mode),
		Config:        liveclient.InterviewConfig{IncludeAudioURL: true},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the recognizer endpoint needs the session id, which exists only after
	// start; resolve it lazily on each recognition attempt
	rec := &sessionRecognizer{
		ctrl:    ctrl,
		tokens:  tokens,
		baseURL: *baseURL,
		source:  &stdinChunks{r: os.Stdin},
	}
	ac := audio.NewController(
		audio.NewHTTPSynthesizer(os.Getenv("ELEVENLABS_API_URL"), os.Getenv("ELEVENLABS_API_KEY"), os.Getenv("ELEVENLABS_VOICE_ID"), sink),
		audio.NewURLPlayer(sink),
		rec,
		logger.WithComponent(l, "audio"),
	)

	orch := orchestrator.New(ctrl, ac, logger.WithComponent(l, "orchestrator"),
		orchestrator.WithPhaseObserver(func(p orchestrator.Phase) {
			fmt.Fprintf(os.Stderr, "-- %s\n", p)
		}))

	go func() {
		<-ctx.Done()
		finCtx := context.Background()
		if out, err := orch.EndInterview(finCtx, "user_ended"); err == nil {
			printSummary(out)
		}
	}()

	if err := orch.Run(ctx, req); err != nil {
		log.Fatalf("interview failed: %v", err)
	}

	out, err := orch.EndInterview(context.Background(), "completed")
	if err != nil {
		log.Fatalf("finish failed: %v", err)
	}
	printSummary(out)

	report, err := client.GetReport(context.Background(), out.Summary.SessionID)
	if err != nil {
		l.WithError(err).Warn("report not yet available")
		return
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func wsURL(base, sessionID string) string {
	u := strings.Replace(base, "http://", "ws://", 1)
	u = strings.Replace(u, "https://", "wss://", 1)
	return u + "/v1/interview/live/" + sessionID + "/ws"
}

func login(baseURL, email, password string) (access, refresh string, err error) {
	body := strings.NewReader(fmt.Sprintf(`{"email":%q,"password":%q}`, email, password))
	resp, err := http.Post(baseURL+"/v1/auth/login", "application/json", body)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("login: status %d", resp.StatusCode)
	}

	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return "", "", err
	}
	return pair.AccessToken, pair.RefreshToken, nil
}

func printSummary(out *liveclient.FinishResponse) {
	fmt.Fprintf(os.Stderr, "\ninterview %s: %d questions answered in %ds (score %.1f)\n",
		out.Summary.SessionID,
		out.Summary.QuestionsCompleted,
		out.Summary.DurationSeconds,
		out.Preliminary.OverallScore)
}

// sessionRecognizer defers websocket endpoint construction until a session
// exists.
type sessionRecognizer struct {
	ctrl    *session.Controller
	tokens  liveclient.TokenSource
	baseURL string
	source  audio.ChunkSource
}

func (r *sessionRecognizer) Supported() bool { return true }

func (r *sessionRecognizer) Start(ctx context.Context) (audio.Stream, error) {
	snap := r.ctrl.Snapshot()
	if snap.SessionID == "" {
		return nil, fmt.Errorf("no active session for recognition")
	}
	tok, err := r.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	ws := &audio.WSRecognizer{
		URL:    wsURL(r.baseURL, snap.SessionID),
		Header: http.Header{"Authorization": []string{"Bearer " + tok}},
		Source: r.source,
	}
	return ws.Start(ctx)
}

// clipSink writes rendered question audio to numbered files; a desktop build
// would hand these to a player instead.
type clipSink struct {
	dir string
	log *logrus.Logger

	cur *os.File
}

func (s *clipSink) Write(pcm []byte) error {
	if s.cur == nil {
		f, err := os.Create(filepath.Join(s.dir, uuid.NewString()+".mp3"))
		if err != nil {
			return err
		}
		s.cur = f
	}
	_, err := s.cur.Write(pcm)
	return err
}

func (s *clipSink) Flush() error {
	if s.cur == nil {
		return nil
	}
	name := s.cur.Name()
	err := s.cur.Close()
	s.cur = nil
	if err == nil {
		s.log.WithField("clip", name).Info("question audio ready")
	}
	return err
}

func (s *clipSink) Reset() {
	if s.cur != nil {
		name := s.cur.Name()
		_ = s.cur.Close()
		_ = os.Remove(name)
		s.cur = nil
	}
}

// stdinChunks feeds raw 16kHz mono PCM from stdin in ~100ms chunks.
type stdinChunks struct {
	r io.Reader
}

func (s *stdinChunks) NextChunk(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, 3200)
	n, err := io.ReadFull(s.r, buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return nil, err
}

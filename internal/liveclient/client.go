package liveclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chouhanjibanti/interview-live/internal/models"
	"github.com/chouhanjibanti/interview-live/internal/utils"
)

const basePath = "/v1/interview/live"

// TokenSource supplies bearer tokens. The client never reads ambient storage;
// callers inject whatever credential store they use.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	// Refresh obtains a fresh token after a 401. Called at most once per request.
	Refresh(ctx context.Context) (string, error)
	// Invalidate clears stored credentials after refresh also fails.
	Invalidate()
}

// Client issues the six live-interview operations. It is stateless with
// respect to the session: callers own ordering.
type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  TokenSource
	log     *logrus.Entry
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpc = h } }

func WithLogger(e *logrus.Entry) Option { return func(c *Client) { c.log = e } }

func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		log:     logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) StartInterview(ctx context.Context, req StartRequest) (*StartResponse, error) {
	const op = "liveclient.StartInterview"

	if req.ResumeID == "" || req.JobID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "resume_id and job_id are required", nil)
	}
	if req.InterviewMode == "" {
		req.InterviewMode = models.ModeMixed
	}

	var out StartResponse
	if err := c.do(ctx, op, http.MethodPost, basePath+"/start", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	const op = "liveclient.SubmitAnswer"

	if req.SessionID == "" || req.QuestionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id and question_id are required", nil)
	}

	var out AnswerResponse
	if err := c.do(ctx, op, http.MethodPost, basePath+"/answer", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) NextQuestion(ctx context.Context, sessionID string, forceNext bool) (*NextResponse, error) {
	const op = "liveclient.NextQuestion"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	var out NextResponse
	req := NextRequest{SessionID: sessionID, ForceNext: forceNext}
	if err := c.do(ctx, op, http.MethodPost, basePath+"/next", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RepeatQuestion(ctx context.Context, sessionID, questionID string) (*RepeatResponse, error) {
	const op = "liveclient.RepeatQuestion"

	if sessionID == "" || questionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id and question_id are required", nil)
	}

	var out RepeatResponse
	req := RepeatRequest{SessionID: sessionID, QuestionID: questionID}
	if err := c.do(ctx, op, http.MethodPost, basePath+"/repeat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FinishInterview(ctx context.Context, req FinishRequest) (*FinishResponse, error) {
	const op = "liveclient.FinishInterview"

	if req.SessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if req.FinishReason == "" {
		req.FinishReason = "completed"
	}

	var out FinishResponse
	if err := c.do(ctx, op, http.MethodPost, basePath+"/finish", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetReport(ctx context.Context, sessionID string) (*models.InterviewReport, error) {
	const op = "liveclient.GetReport"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	var out models.InterviewReport
	if err := c.do(ctx, op, http.MethodGet, basePath+"/"+sessionID+"/report", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one request with bearer auth. On 401 it refreshes the token once
// and replays; a second 401 surfaces AUTH_EXPIRED and invalidates the source.
// No retries on network errors or 5xx.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return utils.E(utils.CodeUnauthorized, op, "no bearer token available", err)
	}

	status, raw, err := c.send(ctx, method, path, body, token)
	if err != nil {
		return utils.E(utils.CodeUnavailable, op, "interview service unreachable", err)
	}

	if status == http.StatusUnauthorized {
		token, err = c.tokens.Refresh(ctx)
		if err != nil {
			c.tokens.Invalidate()
			return utils.E(utils.CodeAuthExpired, op, "token refresh failed", err)
		}
		c.log.WithField("path", path).Debug("token refreshed, replaying request")

		status, raw, err = c.send(ctx, method, path, body, token)
		if err != nil {
			return utils.E(utils.CodeUnavailable, op, "interview service unreachable", err)
		}
		if status == http.StatusUnauthorized {
			c.tokens.Invalidate()
			return utils.E(utils.CodeAuthExpired, op, "still unauthorized after refresh", nil)
		}
	}

	if status < 200 || status >= 300 {
		var ae apiError
		msg := http.StatusText(status)
		if json.Unmarshal(raw, &ae) == nil && ae.Message != "" {
			msg = ae.Message
		}
		return utils.E(utils.CodeFromStatus(status), op, msg, fmt.Errorf("http %d", status))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return utils.E(utils.CodeInternal, op, "malformed response body", err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any, token string) (int, []byte, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	const maxBody = 4 << 20
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

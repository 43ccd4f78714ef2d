package liveclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"
)

// StaticTokenSource serves a fixed token and cannot refresh. Useful for tests
// and short-lived tooling.
type StaticTokenSource struct {
	AccessToken string
}

func (s *StaticTokenSource) Token(context.Context) (string, error) {
	if s.AccessToken == "" {
		return "", errors.New("no token configured")
	}
	return s.AccessToken, nil
}

func (s *StaticTokenSource) Refresh(context.Context) (string, error) {
	return "", errors.New("static token source cannot refresh")
}

func (s *StaticTokenSource) Invalidate() { s.AccessToken = "" }

// APITokenSource holds an access/refresh token pair and rotates it against
// the auth refresh endpoint.
type APITokenSource struct {
	baseURL string
	httpc   *http.Client

	mu      sync.Mutex
	access  string
	refresh string
}

func NewAPITokenSource(baseURL, accessToken, refreshToken string) *APITokenSource {
	return &APITokenSource{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		access:  accessToken,
		refresh: refreshToken,
	}
}

func (s *APITokenSource) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.access == "" {
		return "", errors.New("no access token")
	}
	return s.access, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (s *APITokenSource) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	rt := s.refresh
	s.mu.Unlock()
	if rt == "" {
		return "", errors.New("no refresh token")
	}

	b, _ := json.Marshal(refreshRequest{RefreshToken: rt})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/auth/refresh", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.New("refresh rejected: " + resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var out refreshResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("refresh returned empty access token")
	}

	s.mu.Lock()
	s.access = out.AccessToken
	if out.RefreshToken != "" {
		s.refresh = out.RefreshToken
	}
	s.mu.Unlock()
	return out.AccessToken, nil
}

func (s *APITokenSource) Invalidate() {
	s.mu.Lock()
	s.access = ""
	s.refresh = ""
	s.mu.Unlock()
}

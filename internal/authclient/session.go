// Package authclient is the caller side of the token endpoints: a Session
// holds one bearer token for one tenant and refreshes it on demand.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"pasarhub/backend/internal/domain"
)

const tenantHeader = "X-Tenant-Subdomain"

var (
	ErrBackoff  = errors.New("token refresh is backing off")
	ErrRejected = errors.New("auth request rejected")
	ErrNoToken  = errors.New("session has no token")
)

type Options struct {
	HTTPClient *http.Client
	Logger     *zap.Logger
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Now        func() time.Time
}

// Session is safe for concurrent use. Concurrent refreshes collapse into one
// request, and failed refreshes are retried no sooner than the current backoff.
type Session struct {
	baseURL    string
	tenant     string
	client     *http.Client
	logger     *zap.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
	now        func() time.Time

	mu          sync.Mutex
	token       string
	expiresAt   time.Time
	lastAttempt time.Time
	backoff     time.Duration
	inFlight    singleflight.Group
}

func New(baseURL string, tenant string, opts Options) *Session {
	s := &Session{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tenant:     tenant,
		client:     opts.HTTPClient,
		logger:     opts.Logger,
		minBackoff: opts.MinBackoff,
		maxBackoff: opts.MaxBackoff,
		now:        opts.Now,
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: 15 * time.Second}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.minBackoff <= 0 {
		s.minBackoff = time.Second
	}
	if s.maxBackoff < s.minBackoff {
		s.maxBackoff = time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// Backoff is the wait imposed after the last failed refresh; zero after a success.
func (s *Session) Backoff() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backoff
}

func (s *Session) Login(ctx context.Context, username string, password string) error {
	body, err := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	if err != nil {
		return err
	}
	resp, err := s.post(ctx, "/api/v1/auth/login", "", body)
	if err != nil {
		return err
	}
	s.store(resp)
	return nil
}

// Refresh exchanges the current token for a new one. The shared request does
// not inherit the caller's cancellation; a cancelled caller just stops waiting.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	ch := s.inFlight.DoChan("refresh", func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Session) refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	current := s.token
	now := s.now()
	if s.backoff > 0 && now.Sub(s.lastAttempt) < s.backoff {
		wait := s.backoff - now.Sub(s.lastAttempt)
		s.mu.Unlock()
		return "", fmt.Errorf("%w: retry in %s", ErrBackoff, wait.Round(time.Millisecond))
	}
	s.lastAttempt = now
	s.mu.Unlock()

	if current == "" {
		return "", ErrNoToken
	}

	resp, err := s.post(ctx, "/api/v1/auth/refresh", current, nil)
	if err != nil {
		s.mu.Lock()
		if s.backoff == 0 {
			s.backoff = s.minBackoff
		} else {
			s.backoff = min(s.backoff*2, s.maxBackoff)
		}
		backoff := s.backoff
		s.mu.Unlock()
		s.logger.Warn("token refresh failed", zap.String("tenant", s.tenant), zap.Duration("backoff", backoff), zap.Error(err))
		return "", err
	}

	s.store(resp)
	s.mu.Lock()
	s.backoff = 0
	s.mu.Unlock()
	return resp.AccessToken, nil
}

func (s *Session) store(resp domain.LoginResponse) {
	expiresAt, _ := time.Parse(time.RFC3339, resp.ExpiresAt)
	s.mu.Lock()
	s.token = resp.AccessToken
	s.expiresAt = expiresAt
	s.mu.Unlock()
}

// Do sends req with the session's bearer token and tenant header. A 401 leads
// to one refresh and one retry when the request body can be replayed.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	token := s.Token()
	if token == "" {
		return nil, ErrNoToken
	}
	res, err := s.send(req, token)
	if err != nil || res.StatusCode != http.StatusUnauthorized {
		return res, err
	}
	if req.Body != nil && req.GetBody == nil {
		return res, nil
	}

	fresh, err := s.Refresh(req.Context())
	if err != nil {
		return res, nil
	}
	_ = res.Body.Close()

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return s.send(retry, fresh)
}

func (s *Session) send(req *http.Request, token string) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(tenantHeader, s.tenant)
	return s.client.Do(req)
}

type envelope struct {
	Success bool                 `json:"success"`
	Data    domain.LoginResponse `json:"data"`
	Error   *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (s *Session) post(ctx context.Context, path string, token string, body []byte) (domain.LoginResponse, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, reader)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tenantHeader, s.tenant)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	defer res.Body.Close()

	var payload envelope
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&payload); err != nil {
		return domain.LoginResponse{}, fmt.Errorf("%w: decode %s response: %v", ErrRejected, path, err)
	}
	if res.StatusCode != http.StatusOK || !payload.Success {
		msg := res.Status
		if payload.Error != nil {
			msg = payload.Error.Code + ": " + payload.Error.Message
		}
		return domain.LoginResponse{}, fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	if payload.Data.AccessToken == "" {
		return domain.LoginResponse{}, fmt.Errorf("%w: empty access token", ErrRejected)
	}
	return payload.Data, nil
}

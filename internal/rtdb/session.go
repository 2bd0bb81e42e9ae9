package rtdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Identity endpoints used for anonymous sign-in.
const (
	DefaultSignUpURL  = "https://identitytoolkit.googleapis.com/v1/accounts:signUp"
	DefaultRefreshURL = "https://securetoken.googleapis.com/v1/token"
)

const (
	refreshMargin = 5 * time.Minute
	retryInterval = 5 * time.Second
)

// SessionOptions configures a Session.
type SessionOptions struct {
	APIKey     string
	SignUpURL  string // defaults to DefaultSignUpURL
	RefreshURL string // defaults to DefaultRefreshURL
	HTTPClient *http.Client
	Now        func() time.Time
}

// Session holds an anonymous ID token and keeps it fresh. With no API key
// the session is always ready and yields an empty token.
type Session struct {
	apiKey     string
	signUpURL  string
	refreshURL string
	http       *http.Client
	now        func() time.Time
	logger     *zap.Logger

	mu           sync.RWMutex
	idToken      string
	refreshToken string
	expiry       time.Time
}

// NewSession creates a Session. Call Run to sign in and keep the token fresh.
func NewSession(opts SessionOptions, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		apiKey:     opts.APIKey,
		signUpURL:  opts.SignUpURL,
		refreshURL: opts.RefreshURL,
		http:       opts.HTTPClient,
		now:        opts.Now,
		logger:     logger,
	}
	if s.signUpURL == "" {
		s.signUpURL = DefaultSignUpURL
	}
	if s.refreshURL == "" {
		s.refreshURL = DefaultRefreshURL
	}
	if s.http == nil {
		s.http = &http.Client{Timeout: DefaultTimeout}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Ready reports whether a valid token is held.
func (s *Session) Ready() bool {
	if s.apiKey == "" {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idToken != "" && s.now().Before(s.expiry)
}

// Token returns the current ID token, or "" if none is held.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idToken
}

// Expiry returns when the current token stops being valid.
func (s *Session) Expiry() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiry
}

type signUpResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
}

// SignUp creates a new anonymous account and stores its tokens.
func (s *Session) SignUp(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(s.signUpURL),
		strings.NewReader(`{"returnSecureToken":true}`))
	if err != nil {
		return fmt.Errorf("sign up: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out signUpResponse
	if err := s.do(req, &out); err != nil {
		return fmt.Errorf("sign up: %w", err)
	}
	return s.store(out.IDToken, out.RefreshToken, out.ExpiresIn)
}

// Refresh exchanges the refresh token for a new ID token.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.RLock()
	rt := s.refreshToken
	s.mu.RUnlock()
	if rt == "" {
		return fmt.Errorf("refresh: no refresh token")
	}

	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {rt}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(s.refreshURL),
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out refreshResponse
	if err := s.do(req, &out); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	return s.store(out.IDToken, out.RefreshToken, out.ExpiresIn)
}

// Run signs in and refreshes the token shortly before it expires until ctx
// is cancelled. Failures are logged and retried.
func (s *Session) Run(ctx context.Context) error {
	if s.apiKey == "" {
		<-ctx.Done()
		return nil
	}

	for {
		var err error
		switch {
		case s.Token() == "":
			err = s.SignUp(ctx)
			if err == nil {
				s.logger.Info("rtdb anonymous sign-up successful", zap.Time("expiry", s.Expiry()))
			}
		case !s.Ready():
			// Expired: refresh once, otherwise sign up again on the next pass.
			err = s.Refresh(ctx)
			if err != nil {
				s.clear()
			}
		default:
			err = s.Refresh(ctx)
			if err == nil {
				s.logger.Debug("rtdb token refreshed", zap.Time("expiry", s.Expiry()))
			}
		}

		wait := s.nextWait()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("rtdb session error", zap.Error(err))
			wait = retryInterval
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// nextWait returns how long to sleep before refreshing the current token.
func (s *Session) nextWait() time.Duration {
	d := s.Expiry().Sub(s.now()) - refreshMargin
	if d < retryInterval {
		return retryInterval
	}
	return d
}

func (s *Session) endpoint(base string) string {
	return base + "?key=" + url.QueryEscape(s.apiKey)
}

func (s *Session) do(req *http.Request, out any) error {
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error.Message != "" {
			return fmt.Errorf("%d %s", resp.StatusCode, e.Error.Message)
		}
		return fmt.Errorf("%s", resp.Status)
	}
	return json.Unmarshal(data, out)
}

func (s *Session) store(idToken, refreshToken, expiresIn string) error {
	if idToken == "" {
		return fmt.Errorf("empty id token")
	}
	secs, err := strconv.Atoi(expiresIn)
	if err != nil {
		return fmt.Errorf("parse expiresIn %q: %w", expiresIn, err)
	}

	s.mu.Lock()
	s.idToken = idToken
	if refreshToken != "" {
		s.refreshToken = refreshToken
	}
	s.expiry = s.now().Add(time.Duration(secs) * time.Second)
	s.mu.Unlock()
	return nil
}

func (s *Session) clear() {
	s.mu.Lock()
	s.idToken = ""
	s.refreshToken = ""
	s.expiry = time.Time{}
	s.mu.Unlock()
}

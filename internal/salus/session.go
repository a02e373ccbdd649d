package salus

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/muurk/salus/internal/logging"
	"github.com/muurk/salus/internal/urls"
)

// tokenPattern matches the hidden input the control page embeds the token in:
//
//	<input id="token" type="hidden" value="abc123" />
var tokenPattern = regexp.MustCompile(`id="token"\s+type="hidden"\s+value="([^"]*)"`)

// SessionStats counts session activity for observability
type SessionStats struct {
	Logins        int64 // successful logins
	LoginFailures int64
	Invalidations int64
}

// Session owns the credentials and the session token slot.
// All token reads and writes go through EnsureToken and Invalidate.
type Session struct {
	transport *transport
	creds     Credentials
	deviceID  string
	now       func() time.Time

	mu    sync.Mutex
	token *SessionToken

	// login collapses concurrent EnsureToken calls into one login sequence
	login singleflight.Group

	logins        atomic.Int64
	loginFailures atomic.Int64
	invalidations atomic.Int64
}

func newSession(t *transport, creds Credentials, deviceID string, now func() time.Time) *Session {
	return &Session{
		transport: t,
		creds:     creds,
		deviceID:  deviceID,
		now:       now,
	}
}

// EnsureToken returns the current token, logging in first if there is none.
// Callers arriving while a login is in flight wait for that login's result.
func (s *Session) EnsureToken(ctx context.Context) (SessionToken, error) {
	if tok, ok := s.Token(); ok {
		return tok, nil
	}

	// The login runs detached from the first caller's cancellation so that
	// other waiters are not failed by it; the HTTP timeout still bounds it.
	loginCtx := context.WithoutCancel(ctx)
	ch := s.login.DoChan("login", func() (interface{}, error) {
		if tok, ok := s.Token(); ok {
			return tok, nil
		}

		tok, err := s.authenticate(loginCtx)
		if err != nil {
			s.loginFailures.Add(1)
			return SessionToken{}, err
		}

		s.mu.Lock()
		s.token = &tok
		s.mu.Unlock()
		s.logins.Add(1)
		return tok, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return SessionToken{}, res.Err
		}
		return res.Val.(SessionToken), nil
	case <-ctx.Done():
		return SessionToken{}, ClassifyNetworkError("waiting for login", ctx.Err())
	}
}

// Invalidate drops the current token. The next EnsureToken repeats the
// full login sequence.
func (s *Session) Invalidate() {
	s.mu.Lock()
	had := s.token != nil
	s.token = nil
	s.mu.Unlock()

	s.invalidations.Add(1)
	logging.Debug("Session token invalidated",
		zap.String("device_id", s.deviceID),
		zap.Bool("had_token", had),
	)
}

// Token returns the current token without logging in
func (s *Session) Token() (SessionToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return SessionToken{}, false
	}
	return *s.token, true
}

// Stats returns a snapshot of the session counters
func (s *Session) Stats() SessionStats {
	return SessionStats{
		Logins:        s.logins.Load(),
		LoginFailures: s.loginFailures.Load(),
		Invalidations: s.invalidations.Load(),
	}
}

// authenticate performs the login sequence: post the account form, open the
// device control page with the resulting cookie and scrape the token.
func (s *Session) authenticate(ctx context.Context) (SessionToken, error) {
	logging.Debug("Logging in to vendor portal",
		zap.String("email", s.creds.Email),
		zap.String("device_id", s.deviceID),
	)

	form := url.Values{
		"IDemail":        {s.creds.Email},
		"password":       {s.creds.Password},
		"login":          {"Login"},
		"keep_logged_in": {"1"},
	}
	if _, err := s.transport.postForm(ctx, urls.Login, form); err != nil {
		return SessionToken{}, rejectOnStatus("login form was not accepted", err)
	}

	page, err := s.transport.get(ctx, urls.Control, url.Values{"devId": {s.deviceID}})
	if err != nil {
		return SessionToken{}, rejectOnStatus("control page not available with this session", err)
	}

	// A failed login bounces the control page back to the login form.
	if page.URL != nil && strings.HasSuffix(page.URL.Path, urls.Login) {
		return SessionToken{}, &AuthError{
			Reason:  ReasonCredentialsRejected,
			Message: "redirected to login page",
		}
	}

	token, err := extractToken(page.Body)
	if err != nil {
		return SessionToken{}, err
	}

	logging.Info("Session token obtained",
		zap.String("device_id", s.deviceID),
		zap.String("token", logging.Redact(token)),
	)

	return SessionToken{Value: token, ObtainedAt: s.now()}, nil
}

// extractToken finds the session token marker in the control page HTML
func extractToken(page []byte) (string, error) {
	m := tokenPattern.FindSubmatch(page)
	if m == nil || len(m[1]) == 0 {
		logging.LogPayload("Control page without token", page)
		return "", &AuthError{
			Reason:  ReasonTokenNotFound,
			Message: "token marker not found in control page",
		}
	}
	return string(m[1]), nil
}

// rejectOnStatus maps an HTTP status failure during login to a rejected
// login. Network failures are returned unchanged as transport errors.
func rejectOnStatus(message string, err error) error {
	var ce *ClientError
	if errors.As(err, &ce) && ce.NetworkSubtype == NetworkHTTPStatus {
		return &AuthError{Reason: ReasonCredentialsRejected, Message: message, Err: err}
	}
	return err
}

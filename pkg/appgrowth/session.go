package appgrowth

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	authPath        = "/auth/"
	newSegmentPath  = "/segments/new"
	segmentsPath    = "/segments/"
	campaignsPrefix = "/campaigns/"
)

// Session holds one authenticated AppGrowth web session. The cookie jar of the
// underlying client is the credential; Login refreshes it in place.
//
// Each login attempt takes the write lock and every other remote call takes
// the read lock, so segment calls never observe a half-finished login. The
// lock is not held while waiting between attempts.
type Session struct {
	mu sync.RWMutex

	c        HTTPClient
	jar      http.CookieJar
	endpoint string
	base     *url.URL
	creds    Credentials
	retry    RetryPolicy
	log      zerolog.Logger

	authenticated atomic.Bool
}

// NewSession returns a Session for creds.BaseURL. The HTTPClient must not
// follow redirects; NewHTTPClient builds a suitable one. If c is an
// *http.Client its cookie jar is used for cookie export and restore.
func NewSession(creds Credentials, c HTTPClient, log zerolog.Logger) (*Session, error) {
	if c == nil {
		return nil, errors.New("must provide an http client")
	}

	endpoint := strings.TrimRight(creds.BaseURL, "/")
	base, err := url.Parse(endpoint + "/")
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("invalid AppGrowth base URL %q", creds.BaseURL)
	}

	s := &Session{
		c:        c,
		endpoint: endpoint,
		base:     base,
		creds:    creds,
		retry:    DefaultRetryPolicy(),
		log:      log,
	}

	if hc, ok := c.(*http.Client); ok {
		s.jar = hc.Jar
	}

	return s, nil
}

func (s *Session) SetRetryPolicy(p RetryPolicy) {
	s.mu.Lock()
	s.retry = p
	s.mu.Unlock()
}

func (s *Session) Endpoint() string { return s.endpoint }

func (s *Session) Username() string { return s.creds.Username }

// Authenticated reports the outcome of the last Login or Check. It does not
// contact the server; the remote side may have expired the cookie since.
func (s *Session) Authenticated() bool {
	return s.authenticated.Load()
}

// Login authenticates with the form login, making up to maxAttempts attempts
// with the retry policy's backoff between them. Failure is reported in the
// result, never as a panic or error.
func (s *Session) Login(ctx context.Context, maxAttempts int) LoginResult {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	if len(s.creds.Username) == 0 || len(s.creds.Password) == 0 {
		s.authenticated.Store(false)
		return LoginResult{Diagnostic: "both a username and password must be provided"}
	}

	s.mu.RLock()
	retry := s.retry
	s.mu.RUnlock()

	var (
		lastErr  error
		attempts int
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt

		err := s.tryLogin(ctx)
		if err == nil {
			s.log.Info().Str("endpoint", s.endpoint).Int("attempt", attempt).Msg("AppGrowth login OK")
			return LoginResult{Authenticated: true, Attempts: attempt}
		}

		lastErr = err
		s.log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", maxAttempts).Msg("AppGrowth login attempt failed")

		if attempt == maxAttempts {
			break
		}

		if err := retry.wait(ctx, attempt); err != nil {
			lastErr = errors.Wrap(err, "login retry aborted")
			break
		}
	}

	s.log.Error().Err(lastErr).Int("attempts", attempts).Msg("AppGrowth login failed")

	return LoginResult{Attempts: attempts, Diagnostic: lastErr.Error()}
}

// tryLogin runs one login under the write lock.
func (s *Session) tryLogin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.logIn(ctx)
	s.authenticated.Store(err == nil)

	return err
}

// EnsureLogin logs in only if the session is not known to be authenticated.
func (s *Session) EnsureLogin(ctx context.Context, maxAttempts int) LoginResult {
	if s.Authenticated() {
		return LoginResult{Authenticated: true}
	}
	return s.Login(ctx, maxAttempts)
}

func (s *Session) logIn(ctx context.Context) error {
	loginURL := s.endpoint + authPath

	resp, err := s.get(ctx, loginURL)
	if err != nil {
		return err
	}

	body, err := readBody(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Wrapf(ErrTransport, "unexpected HTTP response status for %s: %s", loginURL, resp.Status)
	}

	token, err := ParseLoginCSRF(bytes.NewReader(body))
	if err != nil {
		return err
	}

	v := url.Values{
		"csrf_token": []string{token},
		"username":   []string{s.creds.Username},
		"password":   []string{s.creds.Password},
		"remember":   []string{"y"},
	}

	resp, err = s.postForm(ctx, loginURL, v)
	if err != nil {
		return err
	}

	resp.Body.Close()

	// 302 (Found): logged in, the session cookie is now in the jar
	// anything else: wrong credentials, stale token or server trouble
	if resp.StatusCode != http.StatusFound {
		return errors.Wrapf(ErrAuthRejected, "unexpected HTTP response when logging in (%s)", resp.Status)
	}

	return nil
}

// Check asks the server whether the cookies are still good. AppGrowth
// redirects anonymous visitors of the segment form to the login page.
func (s *Session) Check(ctx context.Context) (bool, error) {
	s.mu.RLock()
	resp, err := s.get(ctx, s.endpoint+newSegmentPath)
	s.mu.RUnlock()
	if err != nil {
		return false, err
	}

	body, err := readBody(resp)
	if err != nil {
		return false, err
	}

	var ok bool
	switch {
	case resp.StatusCode == http.StatusOK:
		_, ok = FindCSRFToken(string(body))
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		ok = false
	default:
		return false, errors.Errorf("unexpected HTTP response status: %s", resp.Status)
	}

	s.authenticated.Store(ok)

	return ok, nil
}

// Cookies returns the session cookies currently held for the base URL.
func (s *Session) Cookies() []*Cookie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return extractCookies(s.jar, s.base)
}

// RestoreCookies seeds the jar with previously saved cookies. The session is
// not marked authenticated; call Check to find out.
func (s *Session) RestoreCookies(cookies []*Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	restoreCookies(s.jar, s.base, cookies)
}

// Logout forgets the local cookies. There is no remote logout call.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.jar != nil {
		var expired []*http.Cookie
		for _, c := range s.jar.Cookies(s.base) {
			expired = append(expired, &http.Cookie{Name: c.Name, Path: "/", MaxAge: -1})
		}
		s.jar.SetCookies(s.base, expired)
	}

	s.authenticated.Store(false)
}

// get and postForm do not lock; callers hold s.mu.
func (s *Session) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := getReq(ctx, u)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build request for %q", u)
	}

	resp, err := s.c.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "GET %s: %v", u, err)
	}

	return resp, nil
}

func (s *Session) postForm(ctx context.Context, u string, v url.Values) (*http.Response, error) {
	req, err := postFormReq(ctx, u, v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build request for %q", u)
	}

	resp, err := s.c.Do(req)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "POST %s: %v", u, err)
	}

	return resp, nil
}

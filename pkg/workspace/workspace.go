package workspace

import (
	"context"

	"github.com/rs/zerolog"

	"appgrowth-segmenter/pkg/appgrowth"
	"appgrowth-segmenter/pkg/config"
	"appgrowth-segmenter/pkg/storage"
)

// Workspace bundles what every command needs: configuration, the on-disk
// store and a logger.
type Workspace struct {
	Config  config.Config
	Storage *storage.StorageManager
	Log     zerolog.Logger

	retry *appgrowth.RetryPolicy
}

func New(cfg config.Config, sm *storage.StorageManager, log zerolog.Logger) *Workspace {
	return &Workspace{Config: cfg, Storage: sm, Log: log}
}

// SetRetryPolicy overrides the login backoff for sessions opened later.
func (w *Workspace) SetRetryPolicy(p appgrowth.RetryPolicy) {
	w.retry = &p
}

func (w *Workspace) Credentials() appgrowth.Credentials {
	return appgrowth.Credentials{
		BaseURL:  w.Config.BaseURL,
		Username: w.Config.Username,
		Password: w.Config.Password,
	}
}

// OpenSession builds a session and seeds it with stored cookies, if any.
func (w *Workspace) OpenSession() (*appgrowth.Session, error) {
	hc, err := appgrowth.NewHTTPClient(w.Config.RequestTimeout)
	if err != nil {
		return nil, err
	}

	s, err := appgrowth.NewSession(w.Credentials(), hc, w.Log)
	if err != nil {
		return nil, err
	}

	if w.retry != nil {
		s.SetRetryPolicy(*w.retry)
	}

	rec, err := w.Storage.GetSession(w.Config.BaseURL, w.Config.Username)
	if err != nil {
		w.Log.Warn().Err(err).Msg("Ignoring unreadable stored session")
	} else if rec != nil {
		s.RestoreCookies(rec.Cookies)
	}

	return s, nil
}

// Authenticate reuses a stored session when the server still accepts it and
// logs in otherwise. Fresh cookies are saved after a successful login.
func (w *Workspace) Authenticate(ctx context.Context, s *appgrowth.Session) appgrowth.LoginResult {
	if len(s.Cookies()) > 0 {
		ok, err := s.Check(ctx)
		if err != nil {
			w.Log.Warn().Err(err).Msg("Could not verify stored session")
		}
		if ok {
			w.Log.Debug().Msg("Reusing stored AppGrowth session")
			return appgrowth.LoginResult{Authenticated: true}
		}
	}

	res := s.Login(ctx, w.Config.MaxLoginAttempts)
	if res.Authenticated {
		w.SaveSession(s)
	}

	return res
}

// EnsureLogin logs in only when the session is not known to be
// authenticated, saving the cookies of a fresh login.
func (w *Workspace) EnsureLogin(ctx context.Context, s *appgrowth.Session) appgrowth.LoginResult {
	res := s.EnsureLogin(ctx, w.Config.MaxLoginAttempts)
	if res.Authenticated && res.Attempts > 0 {
		w.SaveSession(s)
	}

	return res
}

func (w *Workspace) SaveSession(s *appgrowth.Session) {
	if err := w.Storage.SaveSession(w.Config.BaseURL, w.Config.Username, s.Cookies()); err != nil {
		w.Log.Warn().Err(err).Msg("Failed to save session")
	}
}

// RecordResult appends a creation attempt to the ledger; failures to write
// are logged, not returned.
func (w *Workspace) RecordResult(runID string, res appgrowth.CreateResult) {
	if err := w.Storage.RecordSegment(runID, res); err != nil {
		w.Log.Warn().Err(err).Str("segment", res.Name).Msg("Failed to record segment")
	}
}

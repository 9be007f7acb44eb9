package workspace_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"appgrowth-segmenter/pkg/appgrowth"
	"appgrowth-segmenter/pkg/config"
	"appgrowth-segmenter/pkg/storage"
	"appgrowth-segmenter/pkg/workspace"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, logins *int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `<input name="csrf_token" value="t1">`)
			return
		}
		atomic.AddInt32(logins, 1)
		http.SetCookie(w, &http.Cookie{Name: "ag_session", Value: "ok", Path: "/"})
		w.Header().Set("Location", "/")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/segments/new", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("ag_session"); err != nil || c.Value != "ok" {
			http.Redirect(w, r, "/auth/", http.StatusFound)
			return
		}
		fmt.Fprint(w, `<input name="csrf_token" value="t2">`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func newWorkspace(t *testing.T, baseURL, dataDir string) *workspace.Workspace {
	t.Helper()

	sm, err := storage.NewStorageManager(dataDir)
	require.NoError(t, err)

	ws := workspace.New(config.Config{
		BaseURL:          baseURL,
		Username:         "bot@example.com",
		Password:         "hunter2",
		RequestTimeout:   5 * time.Second,
		MaxLoginAttempts: 2,
	}, sm, zerolog.Nop())
	ws.SetRetryPolicy(appgrowth.RetryPolicy{
		Backoff: appgrowth.LinearBackoff(0),
		Sleep:   appgrowth.SleepContext,
	})

	return ws
}

func TestWorkspace_Authenticate(t *testing.T) {
	var logins int32
	srv := newServer(t, &logins)
	dataDir := t.TempDir()

	ws := newWorkspace(t, srv.URL, dataDir)
	s, err := ws.OpenSession()
	require.NoError(t, err)

	res := ws.Authenticate(context.Background(), s)
	require.True(t, res.Authenticated)
	require.EqualValues(t, 1, atomic.LoadInt32(&logins))

	rec, err := ws.Storage.GetSession(srv.URL, "bot@example.com")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.NotEmpty(t, rec.Cookies)

	t.Run("stored session is reused", func(t *testing.T) {
		again := newWorkspace(t, srv.URL, dataDir)
		s, err := again.OpenSession()
		require.NoError(t, err)

		res := again.Authenticate(context.Background(), s)
		require.True(t, res.Authenticated)
		require.EqualValues(t, 1, atomic.LoadInt32(&logins))
	})

	t.Run("stale session logs in again", func(t *testing.T) {
		require.NoError(t, ws.Storage.SaveSession(srv.URL, "bot@example.com", []*appgrowth.Cookie{{Name: "ag_session", Value: "expired"}}))

		stale := newWorkspace(t, srv.URL, dataDir)
		s, err := stale.OpenSession()
		require.NoError(t, err)

		res := stale.Authenticate(context.Background(), s)
		require.True(t, res.Authenticated)
		require.EqualValues(t, 2, atomic.LoadInt32(&logins))
	})
}

func TestWorkspace_EnsureLogin(t *testing.T) {
	var logins int32
	srv := newServer(t, &logins)

	ws := newWorkspace(t, srv.URL, t.TempDir())
	s, err := ws.OpenSession()
	require.NoError(t, err)

	res := ws.EnsureLogin(context.Background(), s)
	require.True(t, res.Authenticated)
	require.Equal(t, 1, res.Attempts)

	rec, err := ws.Storage.GetSession(srv.URL, "bot@example.com")
	require.NoError(t, err)
	require.NotNil(t, rec)

	res = ws.EnsureLogin(context.Background(), s)
	require.True(t, res.Authenticated)
	require.Zero(t, res.Attempts)
	require.EqualValues(t, 1, atomic.LoadInt32(&logins))
}

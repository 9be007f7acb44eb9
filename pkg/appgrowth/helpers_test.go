package appgrowth_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"appgrowth-segmenter/pkg/appgrowth"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testUsername = "bot@example.com"
	testPassword = "hunter2"

	loginPageHTML = `<html><body><form method="post" action="/auth/">
<input type="hidden" name="csrf_token" value="abc123">
<input type="text" name="username"><input type="password" name="password">
</form></body></html>`

	segmentFormHTML = `<html><body><form method="post" action="/segments/">
<input value="xyz" type="hidden" NAME="csrf_token" />
<select name="type"></select>
</form></body></html>`

	sessionCookie = "ag_session"
)

// fakeAppGrowth mimics the handful of AppGrowth pages the client touches.
type fakeAppGrowth struct {
	mu sync.Mutex

	loginPage     string
	loginStatus   int
	formPage      string
	requireCookie bool
	segmentStatus func(form url.Values) (int, string)
	campaignPage  string

	loginGets    int
	loginPosts   int
	formGets     int
	segmentPosts int

	loginForms   []url.Values
	segmentForms []url.Values
}

func newFakeAppGrowth() *fakeAppGrowth {
	return &fakeAppGrowth{
		loginPage:   loginPageHTML,
		loginStatus: http.StatusFound,
		formPage:    segmentFormHTML,
		segmentStatus: func(url.Values) (int, string) {
			return http.StatusFound, ""
		},
	}
}

func (f *fakeAppGrowth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/auth/" && r.Method == http.MethodGet:
		f.loginGets++
		fmt.Fprint(w, f.loginPage)

	case r.URL.Path == "/auth/" && r.Method == http.MethodPost:
		f.loginPosts++
		_ = r.ParseForm()
		f.loginForms = append(f.loginForms, r.PostForm)

		if f.loginStatus == http.StatusFound {
			http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "s3cr3t", Path: "/"})
			w.Header().Set("Location", "/")
		}
		w.WriteHeader(f.loginStatus)

	case r.URL.Path == "/segments/new" && r.Method == http.MethodGet:
		f.formGets++
		if f.requireCookie {
			if c, err := r.Cookie(sessionCookie); err != nil || c.Value != "s3cr3t" {
				http.Redirect(w, r, "/auth/", http.StatusFound)
				return
			}
		}
		fmt.Fprint(w, f.formPage)

	case r.URL.Path == "/segments/" && r.Method == http.MethodPost:
		f.segmentPosts++
		_ = r.ParseForm()
		f.segmentForms = append(f.segmentForms, r.PostForm)

		status, body := f.segmentStatus(r.PostForm)
		if status == http.StatusFound {
			w.Header().Set("Location", "/segments/")
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)

	case r.URL.Path == "/campaigns/42" && r.Method == http.MethodGet:
		fmt.Fprint(w, f.campaignPage)

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAppGrowth) counts() (loginGets, loginPosts, formGets, segmentPosts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginGets, f.loginPosts, f.formGets, f.segmentPosts
}

func (f *fakeAppGrowth) lastSegmentForm() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.segmentForms) == 0 {
		return nil
	}
	return f.segmentForms[len(f.segmentForms)-1]
}

// newTestSession starts the fake server and returns a session against it with
// a no-op backoff. Log output goes to the returned buffer.
func newTestSession(t *testing.T, f *fakeAppGrowth) (*appgrowth.Session, *httptest.Server, *bytes.Buffer) {
	t.Helper()

	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	hc, err := appgrowth.NewHTTPClient(0)
	require.NoError(t, err)

	var buf bytes.Buffer
	s, err := appgrowth.NewSession(appgrowth.Credentials{
		BaseURL:  srv.URL,
		Username: testUsername,
		Password: testPassword,
	}, hc, zerolog.New(&buf))
	require.NoError(t, err)

	s.SetRetryPolicy(noWaitPolicy(nil))

	return s, srv, &buf
}

// noWaitPolicy records the attempts it was asked to back off for.
func noWaitPolicy(attempts *[]int) appgrowth.RetryPolicy {
	return appgrowth.RetryPolicy{
		Backoff: func(attempt int) time.Duration {
			if attempts != nil {
				*attempts = append(*attempts, attempt)
			}
			return appgrowth.LinearBackoff(3 * time.Second)(attempt)
		},
		Sleep: func(context.Context, time.Duration) error { return nil },
	}
}

package appgrowth

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"
)

const userAgent = "Mozilla/5.0 (AppGrowthBot)"

// maxDiagnosticBody caps how much of an error response is kept for logs.
const maxDiagnosticBody = 500

// HTTPClient represents the functionality we need from an *http.Client, or
// similar. The client must not follow redirects and must carry a cookie jar.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// NewHTTPClient returns an *http.Client with a cookie jar that returns
// redirect responses to the caller instead of following them, so a 302 from
// a form POST stays observable.
func NewHTTPClient(timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{
		PublicSuffixList: publicsuffix.List,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cookie jar")
	}

	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}

func setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/json")
}

func getReq(ctx context.Context, u string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	setHeaders(req)

	return req, nil
}

func postFormReq(ctx context.Context, u string, val url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(val.Encode()))
	if err != nil {
		return nil, err
	}

	setHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return req, nil
}

// readBody reads the whole body and closes it.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "failed to read response body: %v", err)
	}

	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}

// extractCookies copies the jar's cookies for u into storable values.
func extractCookies(jar http.CookieJar, u *url.URL) []*Cookie {
	var cookies []*Cookie
	if jar == nil {
		return cookies
	}

	for _, c := range jar.Cookies(u) {
		cookies = append(cookies, &Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}

	return cookies
}

func restoreCookies(jar http.CookieJar, u *url.URL, cookies []*Cookie) {
	if jar == nil || len(cookies) == 0 {
		return
	}

	var httpCookies []*http.Cookie
	for _, c := range cookies {
		httpCookies = append(httpCookies, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}

	jar.SetCookies(u, httpCookies)
}

// Package appgrowth drives the AppGrowth web UI as a browser would: it logs in
// through the HTML form, keeps the session cookies and submits the
// new-segment form.
//
// AppGrowth has no public API for segments. Every state-changing POST needs a
// csrf_token scraped from a freshly loaded page, and the outcome is only
// visible through the status code: a 302 redirect means success, anything else
// is a failure. The http.Client used must therefore not follow redirects.
//
// A Session is safe for concurrent use. Bulk runs are still made one request
// at a time with a pause in between, out of courtesy to the remote side.
package appgrowth

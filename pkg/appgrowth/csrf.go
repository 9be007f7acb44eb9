package appgrowth

import (
	"io"
	"regexp"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const csrfFieldName = "csrf_token"

var (
	inputTagRe  = regexp.MustCompile(`(?is)<input\b[^>]*>`)
	csrfNameRe  = regexp.MustCompile(`(?i)\sname\s*=\s*["']csrf_token["']`)
	valueAttrRe = regexp.MustCompile(`(?i)\svalue\s*=\s*["']([^"']+)["']`)
)

// FindCSRFToken scans raw HTML for an <input> whose name is csrf_token and
// returns its value. Attribute order and case don't matter. The page does not
// need to be well formed.
func FindCSRFToken(page string) (string, bool) {
	for _, tag := range inputTagRe.FindAllString(page, -1) {
		if !csrfNameRe.MatchString(tag) {
			continue
		}

		if m := valueAttrRe.FindStringSubmatch(tag); m != nil {
			return m[1], true
		}
	}

	return "", false
}

// ParseLoginCSRF tokenizes an HTML document and returns the value of the
// first input named csrf_token.
func ParseLoginCSRF(r io.Reader) (string, error) {
	t := html.NewTokenizer(r)

	for {
		tt := t.Next()

		// an error token is either EOF or a read failure; both end the scan
		if tt == html.ErrorToken {
			break
		}

		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		token := t.Token()
		if token.DataAtom != atom.Input {
			continue
		}

		var name, value string
		for _, attr := range token.Attr {
			switch attr.Key {
			case "name":
				name = attr.Val
			case "value":
				value = attr.Val
			}
		}

		if name == csrfFieldName && len(value) > 0 {
			return value, nil
		}
	}

	if err := t.Err(); err != nil && err != io.EOF {
		return "", errors.Wrapf(ErrTransport, "failed to read login page: %v", err)
	}

	return "", ErrAuthTokenMissing
}

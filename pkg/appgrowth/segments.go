package appgrowth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const segmentFlavor = "uid"

// duplicateMarkers are matched against a lowercased 500 body. The server
// gives no structured error, so this is a guess used only for logging.
var duplicateMarkers = []string{"already exists", "duplicate"}

// SegmentOptions is the JSON sent in the "options" form field. Field order
// matches what the AppGrowth form produces for each segment type.
type SegmentOptions struct {
	Age      string `json:"age,omitempty"`
	App      string `json:"app"`
	Flavor   string `json:"flavor"`
	Country  string `json:"country"`
	Audience string `json:"audience,omitempty"`
}

// BuildOptions returns the options for a segment type. RetainedAtLeast
// carries the day count as "age"; ActiveUsers carries the ratio as
// "audience" with two decimals.
func BuildOptions(t SegmentType, app, country string, value float64) (SegmentOptions, error) {
	opts := SegmentOptions{
		App:     app,
		Flavor:  segmentFlavor,
		Country: country,
	}

	switch t {
	case RetainedAtLeast:
		opts.Age = strconv.Itoa(int(value))
	case ActiveUsers:
		opts.Audience = strconv.FormatFloat(value, 'f', 2, 64)
	default:
		return SegmentOptions{}, errors.Wrapf(ErrInvalidSegment, "unknown segment type %q", t)
	}

	return opts, nil
}

// SegmentCreator creates segments through an already authenticated Session.
// It never logs in by itself and makes exactly one attempt per call.
type SegmentCreator struct {
	s   *Session
	log zerolog.Logger
}

func NewSegmentCreator(s *Session, log zerolog.Logger) *SegmentCreator {
	return &SegmentCreator{s: s, log: log}
}

// CreateSegment submits the new-segment form. A 302 answer means the
// segment was created; every other outcome is a failure with a diagnostic.
func (sc *SegmentCreator) CreateSegment(ctx context.Context, req SegmentRequest) CreateResult {
	res := CreateResult{Name: req.Name}

	log := sc.log.With().
		Str("segment", req.Name).
		Str("type", string(req.Type)).
		Float64("value", req.Value).
		Logger()

	if err := req.Validate(); err != nil {
		log.Error().Err(err).Msg("Refusing to submit segment")
		res.Diagnostic = err.Error()
		return res
	}

	sc.s.mu.RLock()
	defer sc.s.mu.RUnlock()

	log.Info().Msg("Creating segment")

	status, err := sc.submit(ctx, req, log)
	res.StatusCode = status
	if err != nil {
		res.Diagnostic = err.Error()
		return res
	}

	res.Created = true
	log.Info().Int("status", status).Msg("Segment created")

	return res
}

func (sc *SegmentCreator) submit(ctx context.Context, req SegmentRequest, log zerolog.Logger) (int, error) {
	// a fresh token is needed for every POST; the server issues one per page load
	resp, err := sc.s.get(ctx, sc.s.endpoint+newSegmentPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load segment form")
		return 0, err
	}

	body, err := readBody(resp)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load segment form")
		return resp.StatusCode, err
	}

	csrf, ok := FindCSRFToken(string(body))
	if !ok {
		err := errors.Wrapf(ErrSegmentTokenMissing, "form page answered %s", resp.Status)
		log.Error().Err(err).Msg("CSRF token not found")
		return resp.StatusCode, err
	}

	opts, err := BuildOptions(req.Type, req.AppID, req.Country, req.Value)
	if err != nil {
		return 0, err
	}

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return 0, errors.Wrap(err, "failed to encode segment options")
	}

	log.Debug().RawJSON("options", optsJSON).Msg("Segment options")

	v := url.Values{
		"csrf_token": []string{csrf},
		"name":       []string{req.Name},
		"title":      []string{req.Title},
		"type":       []string{string(req.Type)},
		"options":    []string{string(optsJSON)},
	}

	resp, err = sc.s.postForm(ctx, sc.s.endpoint+segmentsPath, v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to submit segment")
		return 0, err
	}

	body, err = readBody(resp)
	if err != nil {
		return resp.StatusCode, err
	}

	if resp.StatusCode == http.StatusFound {
		return resp.StatusCode, nil
	}

	snippet := truncate(body, maxDiagnosticBody)

	if resp.StatusCode == http.StatusInternalServerError && LooksLikeDuplicate(snippet) {
		log.Warn().Int("status", resp.StatusCode).Msg("Segment may already exist")
		return resp.StatusCode, errors.Wrapf(ErrSegmentRejected, "segment may already exist (%s)", resp.Status)
	}

	log.Error().Int("status", resp.StatusCode).Str("body", snippet).Msg("Segment creation failed")

	return resp.StatusCode, errors.Wrapf(ErrSegmentRejected, "unexpected HTTP response (%s): %s", resp.Status, snippet)
}

// LooksLikeDuplicate reports whether an error body hints at a name clash.
func LooksLikeDuplicate(body string) bool {
	lower := strings.ToLower(body)
	for _, m := range duplicateMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

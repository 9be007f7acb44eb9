package appgrowth

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// SegmentType is the AppGrowth segment kind. Its string value is sent as the
// "type" form field.
type SegmentType string

const (
	RetainedAtLeast SegmentType = "RetainedAtLeast"
	ActiveUsers     SegmentType = "ActiveUsers"
)

func (t SegmentType) Valid() bool {
	return t == RetainedAtLeast || t == ActiveUsers
}

// ParseSegmentType accepts the canonical names case-insensitively.
func ParseSegmentType(s string) (SegmentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "retainedatleast":
		return RetainedAtLeast, nil
	case "activeusers":
		return ActiveUsers, nil
	}
	return "", errors.Wrapf(ErrInvalidSegment, "unknown segment type %q", s)
}

type Credentials struct {
	BaseURL  string
	Username string
	Password string
}

type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure"`
	HttpOnly bool      `json:"httpOnly"`
}

// SegmentRequest describes one segment to create. Value is a day count for
// RetainedAtLeast and a ratio in (0,1] for ActiveUsers.
type SegmentRequest struct {
	Name    string      `json:"name"`
	Title   string      `json:"title"`
	AppID   string      `json:"app_id"`
	Country string      `json:"country"`
	Type    SegmentType `json:"segment_type"`
	Value   float64     `json:"value"`
}

func (r SegmentRequest) Validate() error {
	if r.Name == "" {
		return errors.Wrap(ErrInvalidSegment, "name is required")
	}
	if r.AppID == "" {
		return errors.Wrap(ErrInvalidSegment, "app id is required")
	}
	if len(r.Country) != 3 {
		return errors.Wrapf(ErrInvalidSegment, "country must be a 3-letter code, got %q", r.Country)
	}

	switch r.Type {
	case RetainedAtLeast:
		if r.Value < 1 {
			return errors.Wrapf(ErrInvalidSegment, "retention days must be at least 1, got %v", r.Value)
		}
	case ActiveUsers:
		if r.Value <= 0 || r.Value > 1 {
			return errors.Wrapf(ErrInvalidSegment, "active users ratio must be in (0,1], got %v", r.Value)
		}
	default:
		return errors.Wrapf(ErrInvalidSegment, "unknown segment type %q", r.Type)
	}

	return nil
}

type LoginResult struct {
	Authenticated bool   `json:"authenticated"`
	Attempts      int    `json:"attempts"`
	Diagnostic    string `json:"diagnostic,omitempty"`
}

type CreateResult struct {
	Name       string `json:"name"`
	Created    bool   `json:"created"`
	StatusCode int    `json:"status_code,omitempty"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

type CampaignInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	OutOfBudget bool   `json:"out_of_budget"`
}

// SegmentSpec is a segment type paired with its value, as written on the
// command line: "RetainedAtLeast_7" or "ActiveUsers_0.95".
type SegmentSpec struct {
	Type  SegmentType
	Value float64
}

func ParseSegmentSpec(s string) (SegmentSpec, error) {
	typ, raw, ok := strings.Cut(strings.TrimSpace(s), "_")
	if !ok {
		return SegmentSpec{}, errors.Wrapf(ErrInvalidSegment, "segment spec %q must look like Type_value", s)
	}

	t, err := ParseSegmentType(typ)
	if err != nil {
		return SegmentSpec{}, err
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return SegmentSpec{}, errors.Wrapf(ErrInvalidSegment, "segment spec %q has a bad value", s)
	}

	return SegmentSpec{Type: t, Value: v}, nil
}

func (s SegmentSpec) String() string {
	if s.Type == RetainedAtLeast {
		return string(s.Type) + "_" + strconv.Itoa(int(s.Value))
	}
	return string(s.Type) + "_" + strconv.FormatFloat(s.Value, 'f', 2, 64)
}

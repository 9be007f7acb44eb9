package appgrowth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"regexp"

	"github.com/pkg/errors"
)

var bootDataRe = regexp.MustCompile(`(?s)window\.__DATA__\s*=\s*({.+?});`)

// CampaignPage returns the raw HTML of a campaign page.
func (s *Session) CampaignPage(ctx context.Context, campaignID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp, err := s.get(ctx, s.endpoint+campaignsPrefix+url.PathEscape(campaignID))
	if err != nil {
		return "", err
	}

	body, err := readBody(resp)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("unexpected HTTP response status for campaign %q: %s", campaignID, resp.Status)
	}

	return string(body), nil
}

// ParseCampaignInfo reads the first campaign out of the page's inline
// window.__DATA__ object.
func ParseCampaignInfo(page string) (CampaignInfo, bool) {
	m := bootDataRe.FindStringSubmatch(page)
	if m == nil {
		return CampaignInfo{}, false
	}

	var data struct {
		Campaigns []struct {
			ID           json.RawMessage `json:"id"`
			Title        string          `json:"title"`
			Status       string          `json:"status"`
			PausedReason string          `json:"paused_reason"`
			OutOfBudget  bool            `json:"out_of_budget"`
		} `json:"campaigns"`
	}

	if err := json.Unmarshal([]byte(m[1]), &data); err != nil || len(data.Campaigns) == 0 {
		return CampaignInfo{}, false
	}

	c := data.Campaigns[0]
	info := CampaignInfo{
		ID:          rawID(c.ID),
		Title:       c.Title,
		Status:      c.Status,
		OutOfBudget: c.OutOfBudget,
	}
	if info.Status == "" {
		info.Status = c.PausedReason
	}

	return info, true
}

// rawID renders a JSON id that may be a number or a string.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}

	return string(raw)
}

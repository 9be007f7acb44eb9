package appgrowth_test

import (
	"context"
	"testing"

	"appgrowth-segmenter/pkg/appgrowth"

	"github.com/stretchr/testify/require"
)

const campaignPageHTML = `<html><head><script>
window.__DATA__ = {"campaigns": [{"id": 42, "title": "Sudoku THA", "status": null,
  "paused_reason": "budget", "out_of_budget": true}], "user": {"id": 1}};
</script></head></html>`

func TestParseCampaignInfo(t *testing.T) {
	t.Run("first campaign", func(t *testing.T) {
		info, ok := appgrowth.ParseCampaignInfo(campaignPageHTML)
		require.True(t, ok)
		require.Equal(t, appgrowth.CampaignInfo{
			ID:          "42",
			Title:       "Sudoku THA",
			Status:      "budget",
			OutOfBudget: true,
		}, info)
	})

	t.Run("status wins over paused reason", func(t *testing.T) {
		info, ok := appgrowth.ParseCampaignInfo(`window.__DATA__ = {"campaigns":[{"id":"c-1","status":"running","paused_reason":"x"}]};`)
		require.True(t, ok)
		require.Equal(t, "c-1", info.ID)
		require.Equal(t, "running", info.Status)
		require.False(t, info.OutOfBudget)
	})

	t.Run("no boot data", func(t *testing.T) {
		_, ok := appgrowth.ParseCampaignInfo("<html></html>")
		require.False(t, ok)
	})

	t.Run("no campaigns", func(t *testing.T) {
		_, ok := appgrowth.ParseCampaignInfo(`window.__DATA__ = {"campaigns": []};`)
		require.False(t, ok)
	})

	t.Run("broken json", func(t *testing.T) {
		_, ok := appgrowth.ParseCampaignInfo(`window.__DATA__ = {"campaigns": [};`)
		require.False(t, ok)
	})
}

func TestSession_CampaignPage(t *testing.T) {
	f := newFakeAppGrowth()
	f.campaignPage = campaignPageHTML
	s, _, _ := newTestSession(t, f)

	page, err := s.CampaignPage(context.Background(), "42")
	require.NoError(t, err)

	info, ok := appgrowth.ParseCampaignInfo(page)
	require.True(t, ok)
	require.Equal(t, "42", info.ID)

	_, err = s.CampaignPage(context.Background(), "missing")
	require.Error(t, err)
}

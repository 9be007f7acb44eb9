package campaigns

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"appgrowth-segmenter/cmd/auth"
	"appgrowth-segmenter/pkg/appgrowth"
	"appgrowth-segmenter/pkg/workspace"
)

var ws *workspace.Workspace

// SetWorkspace sets the workspace instance
func SetWorkspace(w *workspace.Workspace) {
	ws = w
}

// NewCampaignsCmd creates the campaigns command
func NewCampaignsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaigns",
		Short: "Inspect AppGrowth campaigns",
		Long:  "Commands to read campaign details from the AppGrowth web UI.",
	}

	cmd.AddCommand(newInfoCmd())

	return cmd
}

// newInfoCmd creates the info command
func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [campaign-id]",
		Short: "Show campaign status",
		Long:  "Display the title, status and budget state of a campaign.",
		Args:  cobra.ExactArgs(1),
		RunE:  runInfo,
	}
}

// runInfo handles the info command
func runInfo(cmd *cobra.Command, args []string) error {
	campaignID := args[0]

	if err := auth.EnsureCredentials(ws); err != nil {
		return err
	}

	s, err := ws.OpenSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %v", err)
	}

	ctx := context.Background()
	if res := ws.Authenticate(ctx, s); !res.Authenticated {
		return fmt.Errorf("AppGrowth authorization failed: %s", res.Diagnostic)
	}

	page, err := s.CampaignPage(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("failed to load campaign: %v", err)
	}

	info, ok := appgrowth.ParseCampaignInfo(page)
	if !ok {
		return fmt.Errorf("campaign %s: no campaign data found on the page", campaignID)
	}

	fmt.Printf("Campaign %s\n", info.ID)
	fmt.Printf("  Title: %s\n", info.Title)
	fmt.Printf("  Status: %s\n", info.Status)
	fmt.Printf("  Out of budget: %t\n", info.OutOfBudget)

	return nil
}

package cmd

import (
	"fmt"
	"os"

	"appgrowth-segmenter/cmd/auth"
	"appgrowth-segmenter/cmd/campaigns"
	"appgrowth-segmenter/cmd/segments"
	"appgrowth-segmenter/cmd/serve"
	"appgrowth-segmenter/pkg/config"
	"appgrowth-segmenter/pkg/core"
	"appgrowth-segmenter/pkg/storage"
	"appgrowth-segmenter/pkg/workspace"

	"github.com/spf13/cobra"
)

var (
	ws *workspace.Workspace
)

var rootCmd = &cobra.Command{
	Use:   "appgrowth-segmenter",
	Short: "Create AppGrowth audience segments",
	Long: `A CLI tool to create audience segments in AppGrowth through its web UI.

This tool allows you to:
- Log in to AppGrowth and keep the session between runs
- Create RetainedAtLeast and ActiveUsers segments, one at a time or in bulk
- Inspect campaigns
- Serve a small HTTP API for other tools

Configuration is read from the environment or a .env file:
  APPGROWTH_BASE_URL, APPGROWTH_USERNAME, APPGROWTH_PASSWORD

Examples:
  appgrowth-segmenter auth login
  appgrowth-segmenter segments create --app com.easybrain.sudoku --country THA --type ActiveUsers --value 0.95
  appgrowth-segmenter segments bulk --apps com.easybrain.sudoku --countries USA,GBR --types RetainedAtLeast_7,ActiveUsers_0.95
  appgrowth-segmenter serve`,
	SilenceUsage: true,
}

func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Add subcommands
	rootCmd.AddCommand(auth.NewAuthCmd())
	rootCmd.AddCommand(segments.NewSegmentsCmd())
	rootCmd.AddCommand(campaigns.NewCampaignsCmd())
	rootCmd.AddCommand(serve.NewServeCmd())
}

func initConfig() {
	cfg := config.Load()
	log := core.InitLogger(cfg.LogLevel)

	storageManager, err := storage.NewStorageManager(cfg.DataDir)
	if err != nil {
		fmt.Println("Failed to initialize storage")
		os.Exit(1)
	}

	ws = workspace.New(cfg, storageManager, log)

	// Make the workspace available to subcommands
	auth.SetWorkspace(ws)
	segments.SetWorkspace(ws)
	campaigns.SetWorkspace(ws)
	serve.SetWorkspace(ws)
}

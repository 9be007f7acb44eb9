package segments

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
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

// NewSegmentsCmd creates the segments command
func NewSegmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segments",
		Short: "Create and list AppGrowth segments",
		Long: `Commands to create AppGrowth segments and review what was created.

Segment types:
- RetainedAtLeast: users retained at least N days (value is the day count)
- ActiveUsers: share of active users (value is a ratio in (0,1])

Segments are named bloom_{app}_{COUNTRY}_{code}, where code is "7d" for
RetainedAtLeast 7 and "95" for ActiveUsers 0.95.`,
	}

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newBulkCmd())
	cmd.AddCommand(newNameCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func addSegmentFlags(cmd *cobra.Command) {
	cmd.Flags().String("app", "", "App id / bundle id (required)")
	cmd.Flags().StringP("country", "c", "", "3-letter country code (required)")
	cmd.Flags().StringP("type", "t", "", "Segment type: RetainedAtLeast or ActiveUsers (required)")
	cmd.Flags().Float64P("value", "v", 0, "Days for RetainedAtLeast, ratio for ActiveUsers (required)")
	_ = cmd.MarkFlagRequired("app")
	_ = cmd.MarkFlagRequired("country")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("value")
}

// newCreateCmd creates the create command
func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create one segment",
		Long: `Create a single segment.

Example:
  appgrowth-segmenter segments create --app com.easybrain.sudoku --country THA --type ActiveUsers --value 0.95`,
		Args: cobra.NoArgs,
		RunE: runCreate,
	}

	addSegmentFlags(cmd)
	cmd.Flags().String("title", "", "Segment title (default: the app id)")
	cmd.Flags().String("name", "", "Segment name (default: the bloom name)")

	return cmd
}

// newBulkCmd creates the bulk command
func newBulkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Create segments for every app, country and type",
		Long: `Create one segment per combination of app, country and type.

Requests are made one at a time with a pause in between.

Example:
  appgrowth-segmenter segments bulk \
    --apps com.easybrain.sudoku,com.easybrain.nonogram \
    --countries USA,GBR,DEU \
    --types RetainedAtLeast_7,ActiveUsers_0.95`,
		Args: cobra.NoArgs,
		RunE: runBulk,
	}

	cmd.Flags().StringSlice("apps", nil, "App ids (required)")
	cmd.Flags().StringSlice("countries", nil, "3-letter country codes (required)")
	cmd.Flags().StringSlice("types", nil, "Segment specs such as RetainedAtLeast_7 or ActiveUsers_0.95 (required)")
	cmd.Flags().Duration("pause", 0, "Pause between requests (default APPGROWTH_REQUEST_PAUSE)")
	cmd.Flags().Bool("skip-existing", false, "Skip segments the ledger already records as created")
	_ = cmd.MarkFlagRequired("apps")
	_ = cmd.MarkFlagRequired("countries")
	_ = cmd.MarkFlagRequired("types")

	return cmd
}

// newNameCmd creates the name command
func newNameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "name",
		Short: "Print the segment name for the given parameters",
		Long:  "Print the bloom segment name without contacting AppGrowth.",
		Args:  cobra.NoArgs,
		RunE:  runName,
	}

	addSegmentFlags(cmd)

	return cmd
}

// newListCmd creates the list command
func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded segment creations",
		Long:  "Display the local ledger of segment creation attempts.",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}

	cmd.Flags().StringP("run", "r", "", "Only show one run")
	cmd.Flags().BoolP("failed-only", "f", false, "Show only failed attempts")

	return cmd
}

func segmentFromFlags(cmd *cobra.Command) (appgrowth.SegmentRequest, error) {
	app, _ := cmd.Flags().GetString("app")
	country, _ := cmd.Flags().GetString("country")
	typ, _ := cmd.Flags().GetString("type")
	value, _ := cmd.Flags().GetFloat64("value")

	t, err := appgrowth.ParseSegmentType(typ)
	if err != nil {
		return appgrowth.SegmentRequest{}, err
	}

	country = strings.ToUpper(strings.TrimSpace(country))

	return appgrowth.SegmentRequest{
		Name:    appgrowth.SegmentName(app, country, t, value),
		Title:   app,
		AppID:   app,
		Country: country,
		Type:    t,
		Value:   value,
	}, nil
}

// authenticatedCreator logs in (or resumes) and returns a creator.
func authenticatedCreator(ctx context.Context) (*appgrowth.SegmentCreator, error) {
	if err := auth.EnsureCredentials(ws); err != nil {
		return nil, err
	}

	s, err := ws.OpenSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %v", err)
	}

	if res := ws.Authenticate(ctx, s); !res.Authenticated {
		return nil, fmt.Errorf("AppGrowth authorization failed: %s", res.Diagnostic)
	}

	return appgrowth.NewSegmentCreator(s, ws.Log), nil
}

// runCreate handles the create command
func runCreate(cmd *cobra.Command, args []string) error {
	req, err := segmentFromFlags(cmd)
	if err != nil {
		return err
	}

	if title, _ := cmd.Flags().GetString("title"); title != "" {
		req.Title = title
	}
	if name, _ := cmd.Flags().GetString("name"); name != "" {
		req.Name = name
	}

	if err := req.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sc, err := authenticatedCreator(ctx)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	res := sc.CreateSegment(ctx, req)
	ws.RecordResult(runID, res)

	if !res.Created {
		return fmt.Errorf("failed to create segment %s: %s", res.Name, res.Diagnostic)
	}

	fmt.Printf("✓ Created segment %s\n", res.Name)
	return nil
}

// runBulk handles the bulk command
func runBulk(cmd *cobra.Command, args []string) error {
	apps, _ := cmd.Flags().GetStringSlice("apps")
	countries, _ := cmd.Flags().GetStringSlice("countries")
	types, _ := cmd.Flags().GetStringSlice("types")
	pause, _ := cmd.Flags().GetDuration("pause")
	skipExisting, _ := cmd.Flags().GetBool("skip-existing")

	if pause <= 0 {
		pause = ws.Config.RequestPause
	}

	var specs []appgrowth.SegmentSpec
	for _, t := range types {
		spec, err := appgrowth.ParseSegmentSpec(t)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
	}

	for i, c := range countries {
		countries[i] = strings.ToUpper(strings.TrimSpace(c))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sc, err := authenticatedCreator(ctx)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	req := appgrowth.BulkRequest{
		Apps:      apps,
		Countries: countries,
		Specs:     specs,
		Pause:     pause,
		OnResult: func(res appgrowth.CreateResult) {
			ws.RecordResult(runID, res)
			mark := "✓"
			if !res.Created {
				mark = "✗"
			}
			fmt.Printf("  %s %s\n", mark, res.Name)
		},
	}

	if skipExisting {
		req.Skip = func(name string) bool {
			created, err := ws.Storage.WasCreated(name)
			return err == nil && created
		}
	}

	fmt.Printf("Creating %d segments (run %s)...\n", req.Total(), runID)

	report := sc.CreateBulk(ctx, req)

	fmt.Println()
	fmt.Println(report.Summary())
	for _, name := range report.Skipped {
		fmt.Printf("  - skipped %s\n", name)
	}

	if len(report.Failed) > 0 {
		fmt.Println("Failed:")
		for _, name := range report.Failed {
			fmt.Printf("  %s\n", name)
		}
	}

	if len(report.Created) == 0 && len(report.Failed) > 0 {
		return fmt.Errorf("no segments created")
	}

	return nil
}

// runName handles the name command
func runName(cmd *cobra.Command, args []string) error {
	req, err := segmentFromFlags(cmd)
	if err != nil {
		return err
	}

	fmt.Println(req.Name)
	return nil
}

// runList handles the list command
func runList(cmd *cobra.Command, args []string) error {
	runID, _ := cmd.Flags().GetString("run")
	failedOnly, _ := cmd.Flags().GetBool("failed-only")

	records, err := ws.Storage.SegmentsForRun(runID)
	if err != nil {
		return fmt.Errorf("failed to read ledger: %v", err)
	}

	shown := 0
	for _, r := range records {
		if failedOnly && r.Created {
			continue
		}
		shown++

		status := "✓ created"
		if !r.Created {
			status = "✗ failed"
		}

		fmt.Printf("%s  %-10s %s\n", r.At.Format("2006-01-02 15:04:05"), status, r.Name)
		fmt.Printf("    Run: %s\n", r.RunID)
		if r.Diagnostic != "" {
			fmt.Printf("    %s\n", r.Diagnostic)
		}
	}

	if shown == 0 {
		fmt.Println("No segments recorded.")
		fmt.Println("Use 'appgrowth-segmenter segments create' to create one.")
	}

	return nil
}

package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"appgrowth-segmenter/cmd/auth"
	"appgrowth-segmenter/pkg/api"
	"appgrowth-segmenter/pkg/core"
	"appgrowth-segmenter/pkg/workspace"
)

var ws *workspace.Workspace

// SetWorkspace sets the workspace instance
func SetWorkspace(w *workspace.Workspace) {
	ws = w
}

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Start an HTTP server that creates segments on request.

Endpoints:
  GET  /               service status
  GET  /health         AppGrowth login state
  POST /segments       create one segment
  GET  /segments/name  preview a segment name`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringP("listen", "l", "", "Listen address (default APPGROWTH_LISTEN_ADDR)")

	return cmd
}

// runServe handles the serve command
func runServe(cmd *cobra.Command, args []string) error {
	if err := auth.EnsureCredentials(ws); err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString("listen")
	if addr == "" {
		addr = ws.Config.ListenAddr
	}

	s, err := ws.OpenSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// log in in the background so the listener comes up right away
	go func() {
		if res := ws.Authenticate(ctx, s); !res.Authenticated {
			core.Logger.Error().Str("diagnostic", res.Diagnostic).Msg("AppGrowth login failed")
		}
	}()

	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(api.NewServer(ws, s)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		core.Logger.Info().Msgf("API listening on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %v", err)
		}
		return nil
	case <-ctx.Done():
	}

	core.Logger.Info().Msg("Shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error stopping server: %v", err)
	}

	core.Logger.Info().Msg("API server stopped.")
	return nil
}

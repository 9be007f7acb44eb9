package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"appgrowth-segmenter/pkg/config"
	"appgrowth-segmenter/pkg/workspace"
)

var ws *workspace.Workspace

// SetWorkspace sets the workspace instance
func SetWorkspace(w *workspace.Workspace) {
	ws = w
}

// NewAuthCmd creates the auth command
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the AppGrowth session",
		Long: `Commands to log in to AppGrowth, check the stored session and forget it.

The session cookies are stored in the data directory (APPGROWTH_DATA_DIR) so
later commands don't need to log in again.`,
	}

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLogoutCmd())

	return cmd
}

// newLoginCmd creates the login command
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to AppGrowth",
		Long: `Log in with APPGROWTH_USERNAME and APPGROWTH_PASSWORD and store the session.

If no password is configured and stdin is a terminal, it is prompted for.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().IntP("attempts", "a", 0, "Maximum login attempts (default APPGROWTH_MAX_LOGIN_ATTEMPTS)")

	return cmd
}

// newStatusCmd creates the status command
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Test the stored session",
		Long:  "Check whether AppGrowth still accepts the stored session cookies.",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

// newLogoutCmd creates the logout command
func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Long:  "Remove the stored session cookies. AppGrowth itself is not contacted.",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

// EnsureCredentials fills in a missing password from the terminal and fails
// when the credentials are still incomplete.
func EnsureCredentials(w *workspace.Workspace) error {
	if w.Config.Username != "" && w.Config.Password == "" && isatty.IsTerminal(os.Stdin.Fd()) {
		fmt.Printf("AppGrowth password for %s: ", w.Config.Username)
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %v", err)
		}
		w.Config.Password = strings.TrimSpace(string(pw))
	}

	return w.Config.Validate()
}

// runLogin handles the login command
func runLogin(cmd *cobra.Command, args []string) error {
	if err := EnsureCredentials(ws); err != nil {
		return err
	}

	attempts, _ := cmd.Flags().GetInt("attempts")
	if attempts < 1 {
		attempts = ws.Config.MaxLoginAttempts
	}

	s, err := ws.OpenSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %v", err)
	}

	fmt.Printf("Logging in to %s as %s...\n", s.Endpoint(), s.Username())

	res := s.Login(context.Background(), attempts)
	if !res.Authenticated {
		return fmt.Errorf("login failed after %d attempt(s): %s", res.Attempts, res.Diagnostic)
	}

	ws.SaveSession(s)

	fmt.Printf("✓ Logged in as %s (attempt %d)\n", s.Username(), res.Attempts)
	return nil
}

// runStatus handles the status command
func runStatus(cmd *cobra.Command, args []string) error {
	if ws.Config.Username == "" {
		return config.ErrMissingCredentials
	}

	rec, err := ws.Storage.GetSession(ws.Config.BaseURL, ws.Config.Username)
	if err != nil {
		return fmt.Errorf("failed to read stored session: %v", err)
	}

	if rec == nil {
		fmt.Printf("✗ No stored session for %s on %s in %s\n", ws.Config.Username, ws.Config.BaseURL, ws.Storage.GetDataDir())
		fmt.Println("Use 'appgrowth-segmenter auth login' to log in.")
		return nil
	}

	s, err := ws.OpenSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %v", err)
	}

	fmt.Printf("Testing session for %s on %s...\n", ws.Config.Username, ws.Config.BaseURL)

	ok, err := s.Check(context.Background())
	if err != nil {
		fmt.Printf("✗ Could not reach AppGrowth: %v\n", err)
		return nil
	}

	if !ok {
		fmt.Println("✗ Session has expired")
		fmt.Println("Log in again with:")
		fmt.Println("  appgrowth-segmenter auth login")
		return nil
	}

	fmt.Printf("✓ Session is valid for %s\n", ws.Config.Username)
	fmt.Printf("Last login: %s (%s ago)\n",
		rec.LastLogin.Format("2006-01-02 15:04:05"), time.Since(rec.LastLogin).Round(time.Minute))

	return nil
}

// runLogout handles the logout command
func runLogout(cmd *cobra.Command, args []string) error {
	s, err := ws.OpenSession()
	if err != nil {
		return fmt.Errorf("failed to create session: %v", err)
	}
	s.Logout()

	if err := ws.Storage.RemoveSession(ws.Config.BaseURL, ws.Config.Username); err != nil {
		return fmt.Errorf("failed to remove session: %v", err)
	}

	fmt.Printf("✓ Forgot the session for %s on %s\n", ws.Config.Username, ws.Config.BaseURL)
	return nil
}

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"idledata/pkg/auth"
	"idledata/pkg/ui"
)

var authProfile string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the IdleMMO API key",
	Long: `Manage stored IdleMMO API keys.

Keys are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables API_KEY / IDLEDATA_API_KEY (read only)

Never share your API key or config files!`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an API key securely",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove a stored API key",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored API keys",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Show how to create an IdleMMO API key",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		auth.ShowAPIKeyGuide()
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd, logoutCmd, listCmd, guideCmd)
	authCmd.PersistentFlags().StringVarP(&authProfile, "profile", "P", auth.DefaultProfile, "credential profile")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	reader := bufio.NewReader(os.Stdin)

	if existing, _ := manager.Retrieve(authProfile); existing != nil {
		fmt.Printf("A key is already stored for '%s'. Replace it? (y/N): ", authProfile)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("API key (hidden): ")
	key, err := readPassword(reader)
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	if key == "" {
		return fmt.Errorf("API key is required")
	}
	if !strings.HasPrefix(key, "idlemmo") {
		ui.PrintWarning("Keys issued by IdleMMO start with 'idlemmo'; storing it anyway")
	}

	if err := manager.Store(&auth.Credential{
		Profile:      authProfile,
		APIKey:       key,
		LastModified: time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("API key saved for profile %s (%s)", authProfile, auth.MaskKey(key)))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if err := manager.Delete(authProfile); err != nil {
		return fmt.Errorf("failed to remove API key: %w", err)
	}
	ui.PrintSuccess("API key removed: " + authProfile)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list API keys: %w", err)
	}
	if len(creds) == 0 {
		ui.PrintInfo("No stored keys", "Use 'idledata auth login' to add one")
		return nil
	}

	t := newTable()
	t.SetTitle("Stored API keys")
	t.AppendHeader(table.Row{"Profile", "Key", "Last modified"})
	for _, cred := range creds {
		sanitized := auth.Sanitize(cred)
		modified := ""
		if !sanitized.LastModified.IsZero() {
			modified = sanitized.LastModified.Format("2006-01-02 15:04:05")
		}
		t.AppendRow(table.Row{sanitized.Profile, sanitized.APIKey, modified})
	}
	t.Render()
	return nil
}

// readPassword reads a secret from stdin without echoing when stdin is a terminal
func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

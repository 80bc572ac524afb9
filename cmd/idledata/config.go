package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"idledata/pkg/auth"
	"idledata/pkg/config"
	"idledata/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage the idledata configuration.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (API_KEY, MONGO_CONNECTION_STRING, PORT, IDLEDATA_*)
  - .env and ~/.idledata.env files
  - Configuration file
  - Default values`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with every default",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with secrets masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and check credentials and paths",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd, showCmd, validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store your API key with 'idledata auth login'")
	fmt.Println("2. Run 'idledata config validate' to check the configuration")
	fmt.Println("3. Start with 'idledata fetch'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := *cfg
	if display.API.APIKey != "" {
		display.API.APIKey = auth.MaskKey(display.API.APIKey)
	}
	if display.Storage.MongoURI != "" {
		display.Storage.MongoURI = auth.MaskKey(display.Storage.MongoURI)
	}

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	var warnings, problems []string

	if err := cfg.RequireAPIKey(); err != nil {
		warnings = append(warnings, "no API key configured; harvest, sync and market will refuse to run")
	}
	if err := cfg.RequireStore(); err != nil {
		problems = append(problems, err.Error())
	}

	for _, dir := range []string{cfg.Harvest.ShardDir, filepath.Dir(cfg.Harvest.OutputFile), filepath.Dir(cfg.Harvest.CheckpointFile)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create %s: %v", dir, err))
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("%d configuration problem(s)", len(problems))
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  API: %s (call delay %s)\n", cfg.API.BaseURL, cfg.API.CallDelay)
	fmt.Printf("  Queries: %d\n", len(cfg.Harvest.Queries))
	fmt.Printf("  Items file: %s\n", cfg.Harvest.OutputFile)
	fmt.Printf("  Store: %s\n", cfg.Storage.Driver)
	fmt.Printf("  Tiers: %v\n", cfg.Market.Tiers)
	fmt.Printf("  Proxy port: %s\n", cfg.Proxy.Port)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"idledata/pkg/auth"
	"idledata/pkg/config"
	apperrors "idledata/pkg/errors"
	"idledata/pkg/logger"
	"idledata/pkg/ui"
)

var (
	// Version information
	version   = "0.0.1"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	logFile    string
	apiKey     string
	storeName  string
	mongoURI   string
	badgerPath string
	quiet      bool
	notify     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "idledata",
	Short: "Collect the IdleMMO item catalog and its market history",
	Long: `idledata harvests the IdleMMO item catalog, loads it into a document store,
keeps a per item, tier and series copy of the market history, and serves the
price summaries the browser overlay shows.

Typical flow:
  idledata fetch            # harvest every letter and write items.json
  idledata ingest           # replace the stored items with items.json
  idledata sync             # copy market history for every stored item
  idledata proxy            # serve the overlay and forward API calls`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !quiet && cmd.Name() != "help" && cmd.Name() != "version" {
			ui.PrintLogo()
		}
	},
}

// Execute runs the root command and exits 1 on any error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if apperrors.IsKind(err, apperrors.KindConfig) {
			ui.PrintError("Configuration error", err.Error())
		} else {
			ui.PrintError("Error", err.Error())
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .idledata.yaml or ~/.config/idledata/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "IdleMMO API key (default: stored credential or API_KEY)")
	rootCmd.PersistentFlags().StringVar(&storeName, "store", "", "storage driver (badger, mongo)")
	rootCmd.PersistentFlags().StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection string")
	rootCmd.PersistentFlags().StringVar(&badgerPath, "badger-path", "", "Badger data directory")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress the logo and progress bars")
	rootCmd.PersistentFlags().BoolVar(&notify, "notify", false, "send a desktop notification when a pipeline ends")

	rootCmd.SetVersionTemplate(`IdleData {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags collects the persistent flags that were set explicitly
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	for name, value := range map[string]string{
		"log-level":   logLevel,
		"log-file":    logFile,
		"api-key":     apiKey,
		"store":       storeName,
		"mongo-uri":   mongoURI,
		"badger-path": badgerPath,
	} {
		if value != "" {
			flags[name] = value
		}
	}
	return flags
}

// loadConfig loads the configuration, merges extra command flags, sets up
// the global logger and fills in a stored API key when none was configured
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := globalFlags()
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, apperrors.Config("%v", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, apperrors.Config("%v", err)
	}
	logger.Version = version

	if cfg.API.APIKey == "" {
		if manager, err := auth.NewManager(); err == nil {
			if key, err := manager.APIKey(); err == nil {
				cfg.API.APIKey = key
			}
		}
	}
	return cfg, nil
}

// signalContext is cancelled on Ctrl-C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// finish reports the end of a pipeline on the terminal and, with --notify,
// as a desktop notification
func finish(title string, err error, success string) error {
	var notifier *ui.Notifier
	if notify {
		notifier = ui.NewNotifier()
	}

	if err != nil {
		logger.WithError(err).Error(title + " failed")
		if notifier != nil {
			notifier.SendError(title+" failed", err.Error())
		}
		return err
	}

	if notifier != nil {
		notifier.SendSuccess(title, success)
	} else {
		ui.PrintSuccess(success)
	}
	return nil
}

package main

import (
	"github.com/spf13/cobra"
	"idledata/internal/server"
	"idledata/pkg/logger"
	"idledata/pkg/ui"
)

var proxyPort string

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Serve the overlay endpoint and forward API calls with CORS headers",
	Long: `Run a local HTTP server for the browser overlay.

  /v1/*                     forwarded to the IdleMMO API
  /overlay/item/{id}?tier=  price rows and chart configurations

Both require "Authorization: Bearer <api key>". Requests are rate limited
per client address.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := make(map[string]interface{})
		if proxyPort != "" {
			flags["port"] = proxyPort
		}
		cfg, err := loadConfig(flags)
		if err != nil {
			return err
		}
		log := logger.GetLogger()

		srv, err := server.New(cfg.Proxy, overlayClients(cfg, log), log)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		ui.PrintInfo("Listening", "http://localhost:"+cfg.Proxy.Port)
		ui.PrintInfo("Upstream", cfg.Proxy.Upstream)
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(proxyCmd)
	proxyCmd.Flags().StringVar(&proxyPort, "port", "", "listen port (default 8080 or PORT)")
}

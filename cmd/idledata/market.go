package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"idledata/pkg/auth"
	"idledata/pkg/config"
	"idledata/pkg/idlemmo"
	"idledata/pkg/logger"
	"idledata/pkg/market"
	"idledata/pkg/models"
	"idledata/pkg/overlay"
	"idledata/pkg/ui"
	"idledata/pkg/ui/tui"
)

var (
	// Market command flags
	marketTier   int
	marketSeries string
	jsonOutput   bool
	watchStdin   bool
	plainWatch   bool
)

var marketCmd = &cobra.Command{
	Use:   "market <item-id>",
	Short: "Show the price summary of one item and tier",
	Long: `Fetch the market history of one item and print the overlay rows: the median
and range of the latest sales and the median of the daily averages. With
--json the rows and both chart configurations are printed instead.`,
	Example: `  idledata market DBngxedVYJqlNX64wW8o --tier 1
  idledata market DBngxedVYJqlNX64wW8o --series orders --json`,
	Args: cobra.ExactArgs(1),
	RunE: runMarket,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [inspect-url]",
	Short: "Render the overlay for an IdleMMO inspect link",
	Long: `Parse an inspect link such as
https://web.idle-mmo.com/item/inspect/<item-id>?tier=1 and render the price
overlay for it. With --watch, links are read from stdin one per line and
evaluated the way the browser overlay does: rapid changes are debounced,
the same item and tier is not rendered twice, and stored API key changes
apply to the next evaluation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(marketCmd, inspectCmd)

	marketCmd.Flags().IntVarP(&marketTier, "tier", "t", 0, "item tier")
	marketCmd.Flags().StringVar(&marketSeries, "series", string(models.SeriesListings), "history series (listings, orders)")
	marketCmd.Flags().BoolVar(&jsonOutput, "json", false, "print rows and charts as JSON")

	inspectCmd.Flags().BoolVarP(&watchStdin, "watch", "w", false, "read inspect links interactively or from stdin")
	inspectCmd.Flags().BoolVar(&plainWatch, "plain", false, "with --watch, read plain lines even on a terminal")
	inspectCmd.Flags().BoolVar(&jsonOutput, "json", false, "print rows and charts as JSON")
}

// overlayClients builds unpaced API clients for interactive lookups
func overlayClients(cfg *config.Config, log logger.Logger) overlay.ClientFactory {
	return func(key string) overlay.HistoryFetcher {
		return idlemmo.NewClient(idlemmo.Options{
			BaseURL:   cfg.API.BaseURL,
			APIKey:    key,
			UserAgent: cfg.API.UserAgent,
			Timeout:   cfg.API.Timeout,
			Logger:    log,
		})
	}
}

func runMarket(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	series := models.Series(marketSeries)
	if series != models.SeriesListings && series != models.SeriesOrders {
		return fmt.Errorf("unknown series %q", marketSeries)
	}

	ctx, cancel := signalContext()
	defer cancel()

	client := overlayClients(cfg, logger.GetLogger())(cfg.API.APIKey)
	h, err := client.MarketHistory(ctx, args[0], marketTier, series)
	if err != nil {
		return err
	}

	summary := market.Summarize(h, time.Local)
	if jsonOutput {
		return printJSON(summary)
	}

	ui.PrintInfo("Item", fmt.Sprintf("%s (tier %d, %s)", args[0], marketTier, series))
	printRows(summary.Rows)
	ui.PrintInfo("Recent sales", fmt.Sprint(len(h.LatestSold)))
	ui.PrintInfo("History days", fmt.Sprint(len(h.HistoryData)))
	if h.EndpointUpdatesAt != "" {
		ui.PrintInfo("Updates at", h.EndpointUpdatesAt)
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	if !watchStdin && len(args) == 0 {
		return fmt.Errorf("an inspect link is required unless --watch is set")
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	ctx, cancel := signalContext()
	defer cancel()

	interactive := watchStdin && !plainWatch && term.IsTerminal(int(os.Stdin.Fd()))

	var view *tui.TUI
	var renderer overlay.Renderer = overlay.RendererFunc(renderUpdate)
	var session *overlay.Session
	if interactive {
		// Console logging would draw over the alternate screen.
		log = logger.NewNopLogger()
		logger.SetLogger(log)
		view = tui.NewTUI(tui.Handlers{
			OnLink:  func(href string) { session.Observe(ctx, href) },
			OnClear: func() { session.ClearSelection() },
		}, cfg.API.APIKey != "")
		renderer = view
	}

	session = overlay.NewSession(overlay.Options{
		NewClient: overlayClients(cfg, log),
		Renderer:  renderer,
		APIKey:    cfg.API.APIKey,
		Debounce:  cfg.Market.Debounce,
		Logger:    log,
	})

	if !watchStdin {
		session.Evaluate(ctx, args[0])
		if _, ok := session.Current(); !ok {
			return fmt.Errorf("not an inspect link: %s", args[0])
		}
		return nil
	}
	defer session.Stop()

	if manager, err := auth.NewManager(); err == nil {
		events := manager.Subscribe()
		defer manager.Unsubscribe(events)
		go watchCredentials(ctx, events, session, view)
	}

	if !interactive {
		ui.PrintInfo("Watching", "paste inspect links, one per line (Ctrl-D to stop)")
		return watchLinks(ctx, session)
	}

	go func() {
		<-ctx.Done()
		view.Stop()
	}()
	return view.Start()
}

// watchCredentials applies stored key changes to the session and, when the
// interactive view is running, to its key indicator.
func watchCredentials(ctx context.Context, events <-chan auth.Event, session *overlay.Session, view *tui.TUI) {
	if view == nil {
		session.Watch(ctx, events)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case auth.EventUpdated:
				session.SetAPIKey(ev.APIKey)
				view.SetKeyStatus(ev.APIKey != "")
			case auth.EventDeleted:
				session.SetAPIKey("")
				view.SetKeyStatus(false)
			}
		}
	}
}

func watchLinks(ctx context.Context, session *overlay.Session) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		errCh <- scanner.Err()
		close(lines)
	}()

	var last string
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// Flush the pending evaluation instead of waiting for its timer.
				session.Stop()
				if last != "" {
					session.Evaluate(ctx, last)
				}
				return <-errCh
			}
			if line == "" {
				session.ClearSelection()
				continue
			}
			last = line
			session.Observe(ctx, line)
		}
	}
}

func renderUpdate(u overlay.Update) {
	if jsonOutput {
		_ = printJSON(u)
		return
	}
	ui.PrintHighlight(fmt.Sprintf("[%s]", u.Selection))
	printRows(u.Summary.Rows)
}

func printRows(rows []market.Row) {
	t := newTable()
	t.AppendHeader(table.Row{"", "Gold"})
	for _, row := range rows {
		t.AppendRow(table.Row{row.Label, row.Value})
	}
	t.Render()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

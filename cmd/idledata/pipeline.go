package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"idledata/pkg/checkpoint"
	"idledata/pkg/config"
	"idledata/pkg/harvest"
	"idledata/pkg/idlemmo"
	"idledata/pkg/ingest"
	"idledata/pkg/logger"
	"idledata/pkg/marketsync"
	"idledata/pkg/ratelimit"
	"idledata/pkg/reconcile"
	"idledata/pkg/storage"
	"idledata/pkg/ui"
)

var (
	// Pipeline command flags
	resumeHarvest bool
	queryList     []string
	cleanShards   bool
	shardDir      string
	outputFile    string
	batchSize     int
	tierList      []int
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Search the item catalog letter by letter and write one shard per letter",
	Long: `Search the IdleMMO item catalog with every configured query (a through z by
default), following pagination, and write the items of each query to its own
shard file. Progress is checkpointed after every query so an interrupted run
can continue with --resume.`,
	Example: `  # Full sweep
  idledata harvest

  # Only a few letters
  idledata harvest --queries a,b,c

  # Continue an interrupted sweep
  idledata harvest --resume`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(pipelineFlags())
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		_, err = runHarvest(ctx, cfg)
		return finish("Harvest", err, "Harvest complete")
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Merge every shard into the deduplicated items file",
	Long: `Read every shard in lexical order, keep the first item seen per hashed_id,
report slug collisions, write the items file and print type and quality
statistics. Shards are kept unless --clean-shards is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(pipelineFlags())
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		_, err = runReconcile(ctx, cfg)
		return finish("Reconcile", err, "Items file written: "+cfg.Harvest.OutputFile)
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Harvest the catalog and reconcile it in one go",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(pipelineFlags())
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		if _, err := runHarvest(ctx, cfg); err != nil {
			return finish("Fetch", err, "")
		}
		_, err = runReconcile(ctx, cfg)
		return finish("Fetch", err, "Items file written: "+cfg.Harvest.OutputFile)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [items-file]",
	Short: "Replace the stored items with the deduplicated items file",
	Long: `Clear the items collection and insert the items file in batches. Items whose
key already exists are skipped and reported. Afterwards the stored count,
distinct slugs, slug collisions and one sample item are printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(pipelineFlags())
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		source := cfg.Harvest.OutputFile
		if len(args) == 1 {
			source = args[0]
		}
		_, err = runIngest(ctx, cfg, source)
		return finish("Ingest", err, "Items loaded from "+source)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy the market history of every stored item into history collections",
	Long: `For every stored item and configured tier, fetch the listings and orders
history and upsert each daily point into its <item>_<tier>_<series>_history_data
collection. Running it again only adds days that are new.`,
	Example: `  # Base tier only
  idledata sync

  # Several tiers
  idledata sync --tiers 0,1,2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(pipelineFlags())
		if err != nil {
			return err
		}
		if err := cfg.RequireAPIKey(); err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		_, err = runSync(ctx, cfg)
		return finish("Market sync", err, "Market history synced")
	},
}

func init() {
	rootCmd.AddCommand(harvestCmd, reconcileCmd, fetchCmd, ingestCmd, syncCmd)

	for _, cmd := range []*cobra.Command{harvestCmd, reconcileCmd, fetchCmd} {
		cmd.Flags().StringVar(&shardDir, "shard-dir", "", "directory for per-query shard files")
		cmd.Flags().StringVarP(&outputFile, "output", "o", "", "deduplicated items file")
	}
	for _, cmd := range []*cobra.Command{harvestCmd, fetchCmd} {
		cmd.Flags().BoolVar(&resumeHarvest, "resume", false, "skip queries recorded by the last checkpoint")
		cmd.Flags().StringSliceVar(&queryList, "queries", nil, "search queries (default a through z)")
	}
	for _, cmd := range []*cobra.Command{reconcileCmd, fetchCmd} {
		cmd.Flags().BoolVar(&cleanShards, "clean-shards", false, "remove shard files after reconciling")
	}
	ingestCmd.Flags().IntVar(&batchSize, "batch-size", 0, "documents per insert call")
	syncCmd.Flags().IntSliceVar(&tierList, "tiers", nil, "tiers to sync (default 0)")
}

func pipelineFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if shardDir != "" {
		flags["shard-dir"] = shardDir
	}
	if outputFile != "" {
		flags["output"] = outputFile
	}
	if len(queryList) > 0 {
		flags["queries"] = queryList
	}
	if batchSize > 0 {
		flags["batch-size"] = batchSize
	}
	if len(tierList) > 0 {
		flags["tiers"] = tierList
	}
	return flags
}

func runHarvest(ctx context.Context, cfg *config.Config) (*harvest.Summary, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	log := logger.GetLogger()

	client := idlemmo.NewClientFromConfig(&cfg.API, log)
	h := harvest.New(client, storage.NewManager(cfg.Harvest.ShardDir), ratelimit.NewFixedDelay(cfg.Harvest.QueryDelay), log).
		WithCheckpoint(checkpoint.NewManager(cfg.Harvest.CheckpointFile, log))

	progress := ui.NewStageProgress("harvest", "queries", len(cfg.Harvest.Queries), quiet)
	h.OnQuery = func(result harvest.QueryResult, done, total int) {
		detail := fmt.Sprintf("%q: %s items", result.Query, humanize.Comma(int64(result.Items)))
		if result.Resumed {
			detail += " (checkpoint)"
		}
		progress.Update(done, detail)
	}

	summary, err := h.Run(ctx, cfg.Harvest.Queries, resumeHarvest)
	progress.Finish()
	if err != nil {
		if !resumeHarvest {
			ui.PrintInfo("Resume with", "idledata harvest --resume")
		}
		return summary, err
	}

	if !quiet {
		t := newTable()
		t.AppendHeader(table.Row{"Query", "Items", "Pages", "Shard"})
		for _, q := range summary.Queries {
			shard := q.Shard
			if q.Resumed {
				shard = "(from checkpoint)"
			}
			t.AppendRow(table.Row{q.Query, humanize.Comma(int64(q.Items)), q.Pages, shard})
		}
		t.AppendFooter(table.Row{"Total", humanize.Comma(int64(summary.TotalItems)), "", summary.Duration.Round(time.Second).String()})
		t.Render()
	}
	return summary, nil
}

func runReconcile(ctx context.Context, cfg *config.Config) (*reconcile.Result, error) {
	log := logger.GetLogger()
	r := reconcile.New(storage.NewManager(cfg.Harvest.ShardDir), cfg.Harvest.OutputFile, log)

	result, err := r.Run(ctx, cleanShards)
	if err != nil {
		return nil, err
	}

	if !quiet {
		ui.PrintInfo("Shards read", strconv.Itoa(len(result.Shards)))
		ui.PrintInfo("Unique items", humanize.Comma(int64(len(result.Items))))
		ui.PrintInfo("Distinct types", strconv.Itoa(len(result.Stats.Types)))
		ui.PrintInfo("Distinct qualities", strconv.Itoa(len(result.Stats.Qualities)))

		t := newTable()
		t.SetTitle("Most common types")
		t.AppendHeader(table.Row{"#", "Type", "Items"})
		for i, tc := range result.Stats.TopTypes {
			t.AppendRow(table.Row{i + 1, tc.Type, humanize.Comma(int64(tc.Count))})
		}
		t.Render()

		for _, group := range result.Collisions {
			ui.PrintWarning("Slug collision "+group.Slug, group.Names)
		}
		if result.Cleaned > 0 {
			ui.PrintInfo("Shards removed", strconv.Itoa(result.Cleaned))
		}
	}
	return result, nil
}

func runIngest(ctx context.Context, cfg *config.Config, source string) (*ingest.Result, error) {
	log := logger.GetLogger()
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	in := ingest.New(st, cfg.Ingest.BatchSize, log)
	progress := ui.NewStageProgress("ingest", "items", 0, quiet)
	in.OnBatch = func(inserted, total int) {
		progress.SetTotal(total)
		progress.Update(inserted, "")
	}

	result, err := in.Run(ctx, source)
	progress.Finish()
	if err != nil {
		return result, err
	}

	if !quiet {
		t := newTable()
		t.SetTitle("Ingest")
		t.AppendRows([]table.Row{
			{"Items in file", humanize.Comma(int64(result.Items))},
			{"Previously stored", humanize.Comma(result.Cleared)},
			{"Batches", result.Batches},
			{"Inserted", humanize.Comma(int64(result.Inserted))},
			{"Duplicates skipped", humanize.Comma(int64(result.Duplicates))},
			{"Stored now", humanize.Comma(result.Persisted)},
			{"Distinct slugs", humanize.Comma(int64(result.DistinctSlugs))},
			{"Slug collisions", len(result.PostCollisions)},
		})
		t.Render()
		if result.Sample != nil {
			ui.PrintInfo("Sample item", fmt.Sprintf("%s (%s)", result.Sample.Item.Name, result.Sample.Slug))
		}
	}
	return result, nil
}

func runSync(ctx context.Context, cfg *config.Config) (*marketsync.Result, error) {
	log := logger.GetLogger()
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	client := idlemmo.NewClientFromConfig(&cfg.API, log)
	syncer := marketsync.New(client, st, cfg.Market.Tiers, ratelimit.NewFixedDelay(cfg.Market.ItemDelay), log)

	progress := ui.NewStageProgress("sync", "items", 0, quiet)
	syncer.OnItem = func(results []marketsync.ItemResult, done, total int) {
		progress.SetTotal(total)
		inserted := 0
		for _, r := range results {
			inserted += r.Inserted
		}
		name := ""
		if len(results) > 0 {
			name = results[0].Name
		}
		progress.Update(done, fmt.Sprintf("%s +%d", name, inserted))
	}

	result, err := syncer.Run(ctx)
	progress.Finish()
	if err != nil {
		return result, err
	}

	if !quiet {
		ui.PrintInfo("Items synced", fmt.Sprintf("%s (%.1f items/min)", humanize.Comma(int64(result.Items)), progress.Rate()))
		ui.PrintInfo("History points", humanize.Comma(int64(result.Points)))
		ui.PrintInfo("New points", humanize.Comma(int64(result.Inserted)))
		sample, more := result.Sample()
		ui.PrintInfo("Collections", humanize.Comma(int64(len(result.Collections))))
		for _, name := range sample {
			fmt.Println("  " + name)
		}
		if more > 0 {
			fmt.Printf("  ... and %d more\n", more)
		}
	}
	return result, nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	return t
}

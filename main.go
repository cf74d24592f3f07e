package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"guild_stats/internal/app"
	"guild_stats/internal/cache"
	"guild_stats/internal/domain/ingest"
	"guild_stats/internal/processing"
	"guild_stats/internal/server"
	"guild_stats/internal/sheets"
	"guild_stats/internal/store"
	"guild_stats/internal/telemetry"
	"guild_stats/internal/warehouse"
	"guild_stats/internal/workbook"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	app.SetupEnvironment()

	cliApp := &cli.App{
		Name:   "guild-stats",
		Usage:  "ingest guild statistics spreadsheets and serve season metrics",
		Action: runServe,
		Flags:  serveFlags(),
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API (default)",
				Flags:  serveFlags(),
				Action: runServe,
			},
			{
				Name:      "inspect",
				Usage:     "dry-run ingestion of spreadsheet files without writing anything",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "home-server", EnvVars: []string{"HOME_SERVER"}, Usage: "home server number", Required: true},
					&cli.StringFlag{Name: "servers", EnvVars: []string{"VALID_SERVERS"}, Usage: "comma separated valid servers (default: home server)"},
					&cli.StringFlag{Name: "title", Value: app.TitleFinal, Usage: "upload title the files would be stored under"},
				},
				Action: runInspect,
			},
			{
				Name:  "template",
				Usage: "write an empty workbook with the headers of a known export format",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Value: "F1", Usage: "F1, F2 or F3"},
					&cli.StringFlag{Name: "out", Value: "template.xlsx", Usage: "output path"},
				},
				Action: runTemplate,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:  "summary-interval",
			Value: 15 * time.Minute,
			Usage: "interval between ingestion summary log lines (0 disables)",
		},
	}
}

func runServe(c *cli.Context) error {
	config, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log.Info().
		Int("home_server", config.HomeServer).
		Ints("valid_servers", config.ValidServers).
		Str("store_backend", config.StoreBackend).
		Msg("Starting guild stats service")

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, config)
	if err != nil {
		return err
	}
	defer st.Close()

	metricsCache := cache.New(config)
	if err := metricsCache.Init(ctx); err != nil {
		// reads fall back to computing on every request
		log.Warn().Err(err).Msg("Cache unavailable at startup")
	}
	defer metricsCache.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := telemetry.NewRecorder(registry)

	tracker := processing.NewIngestTracker(recorder)
	ingestor := processing.NewIngestor(config.HomeServer, config.ParseTimeout)
	coordinator := processing.NewCoordinator(st, metricsCache, ingestor, tracker, config.ValidServers)
	defer coordinator.Close()

	if config.BigQueryDataset != "" {
		exporter, err := warehouse.NewBigQueryExporter(ctx, config.ProjectID, config.CredentialsFile, config.BigQueryDataset, config.BigQueryTable)
		if err != nil {
			log.Warn().Err(err).Msg("BigQuery export disabled")
		} else {
			defer exporter.Close()
			coordinator.SetExporter(exporter)
		}
	}

	metricsService := processing.NewMetricsService(st, metricsCache, config.CacheTTL, config.HomeServer)

	var sheetsService *processing.SheetsService
	sheetsClient, err := sheets.NewClient(ctx, config.CredentialsFile)
	if err != nil {
		log.Warn().Err(err).Msg("Google Sheets import and publish disabled")
	} else {
		sheetsService = processing.NewSheetsService(
			sheets.NewWorkbookReader(sheetsClient),
			sheets.NewLeaderboardManager(sheetsClient),
			coordinator,
			metricsService,
		)
	}

	if config.AuthSecret == "" {
		log.Warn().Msg("AUTH_JWT_SECRET not set; uploads and imports will be rejected")
	}

	if interval := c.Duration("summary-interval"); interval > 0 {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					tracker.LogSummary()
				}
			}
		}()
	}

	srv := server.New(config, coordinator, metricsService, sheetsService, st, recorder)
	err = srv.Run(ctx)
	tracker.LogSummary()
	return err
}

func openStore(ctx context.Context, config *app.Config) (store.DocumentStore, error) {
	switch config.StoreBackend {
	case app.StoreBackendFirestore:
		st, err := store.NewFirestoreStore(ctx, config.ProjectID, config.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open firestore: %w", err)
		}
		log.Info().Str("project_id", config.ProjectID).Msg("Using Firestore document store")
		return st, nil
	default:
		log.Warn().Msg("Using in-memory document store; data is lost on restart")
		return store.NewMemoryStore(), nil
	}
}

func runInspect(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}

	homeServer := c.Int("home-server")
	servers, err := app.ParseServerList(c.String("servers"))
	if err != nil {
		return fmt.Errorf("invalid servers: %w", err)
	}
	if len(servers) == 0 {
		servers = []int{homeServer}
	}
	title := c.String("title")
	if !app.IsValidTitle(title) {
		return fmt.Errorf("invalid title %q", title)
	}

	ingestor := processing.NewIngestor(homeServer, 30*time.Second)
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		name := filepath.Base(path)

		wb, err := ingestor.Decode(c.Context, name, data)
		if err != nil {
			fmt.Printf("%s: %v\n", name, err)
			continue
		}

		fmt.Printf("%s:\n", name)
		for _, sheet := range wb.Sheets {
			if sheet.ReadError != "" {
				fmt.Printf("  sheet %q: unreadable: %s\n", sheet.Name, sheet.ReadError)
				continue
			}
			format := ingest.FormatUnknown
			if len(sheet.Rows) > 0 {
				if layout, ok := ingest.Detect(sheet.Rows[0]); ok {
					format = layout.Format
				}
			}
			fmt.Printf("  sheet %q: format %s, %d data rows\n", sheet.Name, format, max(len(sheet.Rows)-1, 0))
		}

		result := ingestor.IngestWorkbook(wb, name, title, app.ServerSet(servers), nil)
		fmt.Printf("  records: %d, servers with totals: %d\n", result.RecordCount, len(result.ServerTotals))

		reasons := make([]string, 0, len(result.Skips))
		for reason := range result.Skips {
			reasons = append(reasons, string(reason))
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Printf("  skipped %s: %d\n", reason, result.Skips[ingest.SkipReason(reason)])
		}
	}
	return nil
}

func runTemplate(c *cli.Context) error {
	var format ingest.Format
	switch c.String("format") {
	case "F1":
		format = ingest.FormatF1
	case "F2":
		format = ingest.FormatF2
	case "F3":
		format = ingest.FormatF3
	default:
		return fmt.Errorf("unknown format %q", c.String("format"))
	}

	data, err := workbook.EncodeXLSX(&workbook.Workbook{Sheets: []workbook.Sheet{{
		Name: "Sheet1",
		Rows: [][]string{ingest.ExpectedHeader(format)},
	}}})
	if err != nil {
		return err
	}

	out := c.String("out")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	log.Info().Str("format", format.String()).Str("path", out).Msg("Wrote template")
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/andresuchdata/stockinsight/internal/ai"
	"github.com/andresuchdata/stockinsight/internal/cache"
	"github.com/andresuchdata/stockinsight/internal/config"
	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/andresuchdata/stockinsight/internal/export"
	"github.com/andresuchdata/stockinsight/internal/reporting"
	"github.com/andresuchdata/stockinsight/internal/repository/postgres"
	"github.com/andresuchdata/stockinsight/internal/service"
	"github.com/andresuchdata/stockinsight/pkg/logger"
	"github.com/urfave/cli/v2"
)

type ctxKey struct{}

// services is what every command needs; built once in Before.
type services struct {
	db        *postgres.DB
	ai        *ai.Service
	analysis  *service.AnalysisService
	reporting *reporting.Service
}

func fromContext(c *cli.Context) (*services, error) {
	svc, ok := c.Context.Value(ctxKey{}).(*services)
	if !ok || svc == nil {
		return nil, fmt.Errorf("services not initialized")
	}
	return svc, nil
}

func initServices(c *cli.Context) error {
	cfg := config.Load()
	logger.Configure("debug", c.String("log-level"))

	if strategy := c.String("strategy"); strategy != "" {
		cfg.AI.Strategy = strategy
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	aiService, err := ai.NewServiceFromConfig(cfg.AI, ai.WithLogger(logger.Component("ollama")))
	if err != nil {
		db.Close()
		return err
	}

	repo := postgres.NewInventoryRepository(db)
	builders := []reporting.Builder{
		reporting.NewInventoryBuilder(repo, aiService,
			reporting.WithLowStockThreshold(cfg.Reporting.LowStockThreshold),
			reporting.WithDefaultMaxRecords(cfg.Reporting.DefaultMaxRecords),
		),
		reporting.NewAIPerformanceBuilder(aiService),
	}

	svc := &services{
		db:       db,
		ai:       aiService,
		analysis: service.NewAnalysisService(repo, aiService, cache.NewNoopAnalysisCache()),
		reporting: reporting.NewService(builders,
			reporting.WithReportingConfig(cfg.Reporting),
			reporting.WithExporter(export.New(cfg.Export.Dir)),
		),
	}
	c.Context = context.WithValue(c.Context, ctxKey{}, svc)
	return nil
}

func closeServices(c *cli.Context) error {
	if svc, ok := c.Context.Value(ctxKey{}).(*services); ok && svc != nil {
		return svc.db.Close()
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	app := &cli.App{
		Name:  "stockctl",
		Usage: "Run inventory analyses and reports from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", EnvVars: []string{"LOG_LEVEL"}},
			&cli.StringFlag{Name: "strategy", Usage: "AI strategy to activate (ollama or local)"},
		},
		Before: initServices,
		After:  closeServices,
		Commands: []*cli.Command{
			{
				Name:  "analyze",
				Usage: "Run an inventory analysis",
				Subcommands: []*cli.Command{
					{
						Name: "comprehensive",
						Flags: []cli.Flag{
							&cli.StringSliceFlag{Name: "category"},
							&cli.StringFlag{Name: "supplier"},
						},
						Action: runComprehensive,
					},
					{Name: "weekly", Action: analysisAction(func(ctx context.Context, s *service.AnalysisService, _ int) any { return s.WeeklyReport(ctx) })},
					{Name: "monitor", Action: analysisAction(func(ctx context.Context, s *service.AnalysisService, _ int) any { return s.MonitorCriticalItems(ctx) })},
					{Name: "predict", Flags: []cli.Flag{newDaysFlag()}, Action: analysisAction(func(ctx context.Context, s *service.AnalysisService, days int) any { return s.PredictNeeds(ctx, days) })},
					{Name: "optimize", Action: analysisAction(func(ctx context.Context, s *service.AnalysisService, _ int) any { return s.Optimize(ctx) })},
					{Name: "trends", Flags: []cli.Flag{newDaysFlag()}, Action: analysisAction(func(ctx context.Context, s *service.AnalysisService, days int) any { return s.SalesTrends(ctx, days) })},
				},
			},
			{
				Name:  "report",
				Usage: "Generate reports",
				Subcommands: []*cli.Command{
					{
						Name:  "generate",
						Usage: "Generate a report and optionally export it",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "type", Value: string(domain.ReportInventory)},
							&cli.StringFlag{Name: "name", Required: true},
							&cli.StringSliceFlag{Name: "filter", Usage: "Filter as key=value, repeatable"},
							&cli.StringSliceFlag{Name: "column"},
							&cli.StringFlag{Name: "export", Usage: "Export format (csv, xlsx or json)"},
						},
						Action: runGenerate,
					},
					{
						Name: "types",
						Action: func(c *cli.Context) error {
							svc, err := fromContext(c)
							if err != nil {
								return err
							}
							return printJSON(svc.reporting.AvailableReportTypes())
						},
					},
				},
			},
			{
				Name: "ai",
				Subcommands: []*cli.Command{
					{
						Name: "status",
						Action: func(c *cli.Context) error {
							svc, err := fromContext(c)
							if err != nil {
								return err
							}
							return printJSON(svc.analysis.AIStatus(c.Context))
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("stockctl failed")
	}
}

func newDaysFlag() *cli.IntFlag {
	return &cli.IntFlag{Name: "days", Usage: "Look-ahead or look-back window in days", Value: 30}
}

func analysisAction(fn func(ctx context.Context, s *service.AnalysisService, days int) any) cli.ActionFunc {
	return func(c *cli.Context) error {
		svc, err := fromContext(c)
		if err != nil {
			return err
		}
		return printJSON(fn(c.Context, svc.analysis, c.Int("days")))
	}
}

func runComprehensive(c *cli.Context) error {
	svc, err := fromContext(c)
	if err != nil {
		return err
	}
	filter := domain.InventoryFilter{
		CategoryIDs: c.StringSlice("category"),
		SupplierID:  c.String("supplier"),
	}
	return printJSON(svc.analysis.Comprehensive(c.Context, filter))
}

// parseFilters turns key=value pairs into report filters. Repeated keys
// become lists.
func parseFilters(pairs []string) (map[string]any, error) {
	filters := map[string]any{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", pair)
		}
		value = strings.TrimSpace(value)
		switch existing := filters[key].(type) {
		case nil:
			filters[key] = value
		case string:
			filters[key] = []string{existing, value}
		case []string:
			filters[key] = append(existing, value)
		}
	}
	return filters, nil
}

func runGenerate(c *cli.Context) error {
	svc, err := fromContext(c)
	if err != nil {
		return err
	}
	filters, err := parseFilters(c.StringSlice("filter"))
	if err != nil {
		return err
	}
	def, err := domain.NewReportDefinition(domain.ReportType(c.String("type")), c.String("name"), nil, filters)
	if err != nil {
		return err
	}
	def.Columns = c.StringSlice("column")

	res, err := svc.reporting.GenerateReport(c.Context, def)
	if err != nil {
		return err
	}
	if !res.IsSuccess() {
		return fmt.Errorf("report failed: %s", res.ErrorMessage())
	}

	if format := c.String("export"); format != "" {
		job, err := svc.reporting.ExportReport(c.Context, res, format)
		if err != nil {
			return err
		}
		return printJSON(job)
	}
	return printJSON(res)
}

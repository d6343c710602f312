package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dealpipe/wholesale-backend/config"
	"github.com/dealpipe/wholesale-backend/database"
	"github.com/dealpipe/wholesale-backend/handlers"
	"github.com/dealpipe/wholesale-backend/jobs"
	"github.com/dealpipe/wholesale-backend/models"
	"github.com/dealpipe/wholesale-backend/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cfg := config.LoadConfig()
	configureLogging(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		logrus.Fatal("DATABASE_URL is required")
	}
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate("database/schema.sql"); err != nil {
		logrus.Warnf("Migration warning: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "run":
		err = runFullCycle(ctx, cfg, args)
	case "scrape":
		err = runScrape(ctx, cfg, args)
	case "match":
		err = runMatch(ctx, cfg, args)
	case "add-buyer":
		err = runAddBuyer(ctx, args)
	case "export":
		err = runExport(ctx, args)
	case "stats":
		err = runStats(ctx)
	case "serve":
		err = runServe(ctx, cfg)
	default:
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		if ctx.Err() != nil {
			logrus.Warn("Interrupted, partial results were kept")
			return
		}
		logrus.Fatalf("Command %s failed: %v", command, err)
	}
}

func configureLogging(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: wholesale-backend <command> [flags]

Commands:
  run         scrape all sources, match buyers, notify, and export
  scrape      scrape all sources and persist listings
  match       match stored listings against active buyers
  add-buyer   register or update a buyer profile
  export      export stored listings to CSV or JSON
  stats       print pipeline counters
  serve       start the read-only HTTP API`)
}

func runFullCycle(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	sequential := flags.Bool("sequential", false, "scrape one source/city pair at a time")
	exportDir := flags.String("export-dir", "exports", "directory for end-of-cycle exports")
	flags.Parse(args)

	job := jobs.NewFullCycleJob(cfg)
	job.Sequential = *sequential
	job.ExportDir = *exportDir

	result, err := job.Run(ctx)
	if result != nil {
		fmt.Printf("Run %s: scraped %d, inserted %d, updated %d, matched %d, notified %d buyers\n",
			result.RunID, result.ListingsScraped, result.ListingsInserted,
			result.ListingsUpdated, result.MatchesRecorded, result.BuyersNotified)
		fmt.Printf("Scrape success rate: %.1f%%\n", result.ScrapeSuccessRate)
	}
	return err
}

func runScrape(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("scrape", flag.ExitOnError)
	sequential := flags.Bool("sequential", false, "scrape one source/city pair at a time")
	flags.Parse(args)

	job := jobs.NewFullCycleJob(cfg)
	job.Sequential = *sequential

	result, err := job.ScrapeOnly(ctx)
	if result != nil {
		fmt.Printf("Scraped %d listings (%d new, %d updated)\n",
			result.ListingsScraped, result.ListingsInserted, result.ListingsUpdated)
	}
	return err
}

func runMatch(ctx context.Context, cfg *config.Config, args []string) error {
	flags := flag.NewFlagSet("match", flag.ExitOnError)
	notify := flags.Bool("notify", false, "email buyers their pending matches after recording")
	flags.Parse(args)

	job := jobs.NewFullCycleJob(cfg)

	recorded, err := job.MatchStored(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Recorded %d new matches\n", recorded)

	if *notify {
		notified, err := job.NotifyPending(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Notified %d buyers\n", notified)
	}
	return nil
}

func runAddBuyer(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("add-buyer", flag.ExitOnError)
	name := flags.String("name", "", "buyer name (required)")
	email := flags.String("email", "", "buyer email (required)")
	maxPrice := flags.Float64("max-price", 0, "maximum purchase price (required)")
	minPrice := flags.Float64("min-price", 0, "minimum purchase price")
	areas := flags.String("areas", "", "comma-separated preferred areas")
	minBeds := flags.Int("min-beds", 0, "minimum bedrooms")
	minBaths := flags.Float64("min-baths", 0, "minimum bathrooms")
	minSqft := flags.Int("min-sqft", 0, "minimum square footage")
	types := flags.String("types", "", "comma-separated acceptable property types")
	flags.Parse(args)

	if *name == "" || *email == "" || *maxPrice <= 0 {
		return fmt.Errorf("name, email, and a positive max-price are required")
	}

	buyer := &models.Buyer{
		Name:           *name,
		Email:          *email,
		MaxPrice:       *maxPrice,
		MinPrice:       *minPrice,
		Active:         true,
		PreferredAreas: splitList(*areas),
		MinBedrooms:    *minBeds,
		MinBathrooms:   *minBaths,
		MinSqft:        *minSqft,
		PropertyTypes:  splitList(*types),
	}

	store := services.NewStoreService()
	if err := store.UpsertBuyer(ctx, buyer); err != nil {
		return err
	}
	fmt.Printf("Buyer %s registered as %s\n", buyer.Name, buyer.BuyerID)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("export", flag.ExitOnError)
	format := flags.String("format", "csv", "export format: csv or json")
	output := flags.String("output", "", "output file path")
	flags.Parse(args)

	store := services.NewStoreService()
	exporter := services.NewExportService()

	listings, err := store.ListListings(ctx, 0)
	if err != nil {
		return err
	}

	path := *output
	if path == "" {
		path = filepath.Join("exports", fmt.Sprintf("listings_%s.%s", time.Now().Format("20060102"), *format))
	}

	switch *format {
	case "csv":
		err = exporter.ExportCSV(listings, path)
	case "json":
		err = exporter.ExportJSON(listings, path)
	default:
		return fmt.Errorf("unknown export format %q", *format)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d listings to %s\n", len(listings), path)
	return nil
}

func runStats(ctx context.Context) error {
	store := services.NewStoreService()
	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	for key, value := range stats {
		fmt.Printf("%-20s %v\n", key, value)
	}
	return nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	store := services.NewStoreService()
	listingHandler := handlers.NewListingHandler(store)
	buyerHandler := handlers.NewBuyerHandler(store)

	app := fiber.New()
	app.Use(logger.New())
	app.Use(cors.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := database.HealthCheck(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	api := app.Group("/api/v1")
	api.Get("/listings", listingHandler.GetListings)
	api.Get("/stats", listingHandler.GetStats)
	api.Get("/buyers", buyerHandler.GetBuyers)
	api.Get("/buyers/:buyer_id/matches", buyerHandler.GetPendingMatches)

	go func() {
		<-ctx.Done()
		logrus.Info("Shutting down HTTP server")
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("Server shutdown error: %v", err)
		}
	}()

	logrus.Infof("Server starting on port %s", cfg.ServerPort)
	return app.Listen(":" + cfg.ServerPort)
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

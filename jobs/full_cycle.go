package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dealpipe/wholesale-backend/config"
	"github.com/dealpipe/wholesale-backend/models"
	"github.com/dealpipe/wholesale-backend/services"
	"github.com/dealpipe/wholesale-backend/shared"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CycleStage names the phases of one pipeline run. The job moves
// through them strictly in order and returns to idle even on failure.
type CycleStage string

const (
	StageIdle       CycleStage = "idle"
	StageScraping   CycleStage = "scraping"
	StagePersisting CycleStage = "persisting"
	StageMatching   CycleStage = "matching"
	StageNotifying  CycleStage = "notifying"
	StageExporting  CycleStage = "exporting"
)

// CycleResult summarizes one pipeline run.
type CycleResult struct {
	RunID             uuid.UUID              `json:"run_id"`
	StartedAt         time.Time              `json:"started_at"`
	FinishedAt        time.Time              `json:"finished_at"`
	ListingsScraped   int                    `json:"listings_scraped"`
	ListingsInserted  int                    `json:"listings_inserted"`
	ListingsUpdated   int                    `json:"listings_updated"`
	MatchesRecorded   int                    `json:"matches_recorded"`
	BuyersNotified    int                    `json:"buyers_notified"`
	ExportPaths       []string               `json:"export_paths,omitempty"`
	Cancelled         bool                   `json:"cancelled"`
	ScrapeSuccessRate float64                `json:"scrape_success_rate"`
	ScrapeMetrics     map[string]interface{} `json:"scrape_metrics,omitempty"`
}

// The job depends on narrow slices of the service surfaces so tests can
// substitute in-memory fakes.

type listingScraper interface {
	Sources() []services.Source
	ScrapeCity(ctx context.Context, source services.Source, city config.City) ([]models.Listing, error)
	Metrics() *shared.ServiceMetrics
}

type pipelineStore interface {
	services.MatchRecorder
	UpsertListing(ctx context.Context, listing *models.Listing) (bool, error)
	ListListings(ctx context.Context, limit int) ([]models.Listing, error)
	ListActiveBuyers(ctx context.Context) ([]models.Buyer, error)
	UnnotifiedMatches(ctx context.Context, buyerID string) ([]models.ScoredListing, error)
	MarkMatchesNotified(ctx context.Context, buyerID string, listingIDs []string) error
	AppendLog(ctx context.Context, level, source, message string)
}

type buyerNotifier interface {
	Enabled() bool
	NotifyBuyer(ctx context.Context, buyer *models.Buyer, matches []models.ScoredListing) ([]string, error)
}

// FullCycleJob runs the complete pipeline: scrape every source for
// every target city, persist, match against active buyers, notify, and
// export a snapshot. A failure in one stage is logged and the run
// continues with whatever the earlier stages produced.
type FullCycleJob struct {
	cfg      *config.Config
	scraper  listingScraper
	store    pipelineStore
	matcher  *services.MatcherService
	notifier buyerNotifier
	exporter *services.ExportService

	// Sequential disables the scrape worker pool, running one
	// (source, city) pair at a time.
	Sequential bool

	// ExportDir receives the end-of-cycle CSV and JSON snapshots.
	ExportDir string

	stage CycleStage
	mutex sync.Mutex
}

// NewFullCycleJob wires the pipeline from the loaded configuration.
func NewFullCycleJob(cfg *config.Config) *FullCycleJob {
	return &FullCycleJob{
		cfg:       cfg,
		scraper:   services.NewScraperService(cfg),
		store:     services.NewStoreService(),
		matcher:   services.NewMatcherService(),
		notifier:  services.NewNotifierService(cfg),
		exporter:  services.NewExportService(),
		ExportDir: "exports",
		stage:     StageIdle,
	}
}

// Stage returns the current pipeline stage.
func (j *FullCycleJob) Stage() CycleStage {
	j.mutex.Lock()
	defer j.mutex.Unlock()
	return j.stage
}

func (j *FullCycleJob) setStage(ctx context.Context, stage CycleStage, runID uuid.UUID) {
	j.mutex.Lock()
	j.stage = stage
	j.mutex.Unlock()

	logrus.WithFields(logrus.Fields{
		"run_id": runID,
		"stage":  stage,
	}).Info("Pipeline stage changed")
	j.store.AppendLog(ctx, "INFO", "pipeline", fmt.Sprintf("run %s entered stage %s", runID, stage))
}

// Run executes one full cycle. Cancellation stops new work at the next
// stage or loop boundary; results already persisted stay persisted.
func (j *FullCycleJob) Run(ctx context.Context) (*CycleResult, error) {
	result := &CycleResult{
		RunID:     uuid.New(),
		StartedAt: time.Now().UTC(),
	}
	logrus.WithField("run_id", result.RunID).Info("Starting full pipeline run")
	defer func() {
		j.setStage(context.WithoutCancel(ctx), StageIdle, result.RunID)
		result.FinishedAt = time.Now().UTC()
		result.Cancelled = ctx.Err() != nil
		logrus.WithFields(logrus.Fields{
			"run_id":            result.RunID,
			"duration":          result.FinishedAt.Sub(result.StartedAt),
			"listings_scraped":  result.ListingsScraped,
			"listings_inserted": result.ListingsInserted,
			"matches_recorded":  result.MatchesRecorded,
			"buyers_notified":   result.BuyersNotified,
			"cancelled":         result.Cancelled,
		}).Info("Pipeline run finished")

		scrapeMetrics := j.scraper.Metrics()
		scrapeMetrics.LogSummary()
		result.ScrapeSuccessRate = scrapeMetrics.GetSuccessRate()
		result.ScrapeMetrics = scrapeMetrics.Snapshot()
	}()

	j.setStage(ctx, StageScraping, result.RunID)
	listings := j.scrapeAll(ctx)
	result.ListingsScraped = len(listings)

	// Partial scrape results are persisted even when the run was
	// cancelled mid-scrape; only the later stages are skipped.
	j.setStage(ctx, StagePersisting, result.RunID)
	inserted, updated := j.persistAll(context.WithoutCancel(ctx), listings)
	result.ListingsInserted = inserted
	result.ListingsUpdated = updated
	if err := ctx.Err(); err != nil {
		return result, err
	}

	j.setStage(ctx, StageMatching, result.RunID)
	recorded, err := j.MatchStored(ctx)
	result.MatchesRecorded = recorded
	if err != nil {
		if ctx.Err() != nil {
			return result, err
		}
		logrus.Errorf("Matching stage failed: %v", err)
	}

	j.setStage(ctx, StageNotifying, result.RunID)
	notified, err := j.NotifyPending(ctx)
	result.BuyersNotified = notified
	if err != nil {
		if ctx.Err() != nil {
			return result, err
		}
		logrus.Errorf("Notification stage failed: %v", err)
	}

	j.setStage(ctx, StageExporting, result.RunID)
	paths, err := j.ExportSnapshot(ctx)
	result.ExportPaths = paths
	if err != nil {
		logrus.Errorf("Export stage failed: %v", err)
	}

	return result, ctx.Err()
}

// scrapeAll fans (source, city) pairs out over the worker pool and
// merges the results. A failed pair costs only its own listings.
func (j *FullCycleJob) scrapeAll(ctx context.Context) []models.Listing {
	type scrapeTask struct {
		source services.Source
		city   config.City
	}
	var tasks []scrapeTask
	for _, source := range j.scraper.Sources() {
		for _, city := range j.cfg.TargetCities {
			tasks = append(tasks, scrapeTask{source: source, city: city})
		}
	}

	var collected []models.Listing
	var mutex sync.Mutex

	// Partial listings returned alongside an error are merged too: a
	// source interrupted by cancellation still contributes whatever it
	// gathered before the checkpoint.
	runTask := func(task scrapeTask) {
		listings, err := j.scraper.ScrapeCity(ctx, task.source, task.city)
		if len(listings) > 0 {
			mutex.Lock()
			collected = append(collected, listings...)
			mutex.Unlock()
		}
		if err != nil && ctx.Err() == nil {
			logrus.Warnf("Scrape task failed: %v", err)
			j.store.AppendLog(ctx, "WARNING", task.source.Name(), err.Error())
		}
	}

	if j.Sequential {
		for _, task := range tasks {
			if ctx.Err() != nil {
				break
			}
			runTask(task)
		}
		return collected
	}

	pool := shared.NewWorkerPool(j.cfg.ScrapeWorkers)
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		task := task
		pool.Submit(func() { runTask(task) })
	}
	pool.Wait()
	return collected
}

// persistAll upserts scraped listings one at a time so cancellation
// mid-batch keeps everything already written.
func (j *FullCycleJob) persistAll(ctx context.Context, listings []models.Listing) (inserted, updated int) {
	for i := range listings {
		if ctx.Err() != nil {
			logrus.Warn("Persistence interrupted, keeping partial results")
			return inserted, updated
		}
		wasInserted, err := j.store.UpsertListing(ctx, &listings[i])
		if err != nil {
			logrus.Warnf("Failed to persist listing %s: %v", listings[i].ListingID, err)
			continue
		}
		if wasInserted {
			inserted++
		} else {
			updated++
		}
	}
	return inserted, updated
}

// MatchStored scores all stored listings against all active buyers and
// records the qualifying matches.
func (j *FullCycleJob) MatchStored(ctx context.Context) (int, error) {
	buyers, err := j.store.ListActiveBuyers(ctx)
	if err != nil {
		return 0, err
	}
	if len(buyers) == 0 {
		logrus.Info("No active buyers, skipping matching")
		return 0, nil
	}
	listings, err := j.store.ListListings(ctx, 0)
	if err != nil {
		return 0, err
	}
	return j.matcher.MatchAll(ctx, buyers, listings, j.store)
}

// NotifyPending emails every active buyer their unnotified matches and
// flips the flags for the listings actually delivered. One buyer's
// failure never blocks the others.
func (j *FullCycleJob) NotifyPending(ctx context.Context) (int, error) {
	if !j.notifier.Enabled() {
		logrus.Info("Notifications disabled, leaving matches pending")
		return 0, nil
	}
	buyers, err := j.store.ListActiveBuyers(ctx)
	if err != nil {
		return 0, err
	}

	notified := 0
	for i := range buyers {
		if err := ctx.Err(); err != nil {
			return notified, err
		}
		matches, err := j.store.UnnotifiedMatches(ctx, buyers[i].BuyerID)
		if err != nil {
			logrus.Warnf("Failed to load matches for buyer %s: %v", buyers[i].BuyerID, err)
			continue
		}
		if len(matches) == 0 {
			continue
		}
		delivered, err := j.notifier.NotifyBuyer(ctx, &buyers[i], matches)
		if err != nil {
			logrus.Warnf("Failed to notify buyer %s: %v", buyers[i].BuyerID, err)
			j.store.AppendLog(ctx, "WARNING", "notifier", err.Error())
			continue
		}
		if len(delivered) == 0 {
			continue
		}
		if err := j.store.MarkMatchesNotified(ctx, buyers[i].BuyerID, delivered); err != nil {
			logrus.Errorf("Email sent but flag update failed for buyer %s: %v", buyers[i].BuyerID, err)
			continue
		}
		notified++
	}
	return notified, nil
}

// ExportSnapshot writes date-stamped CSV and JSON exports of all
// stored listings.
func (j *FullCycleJob) ExportSnapshot(ctx context.Context) ([]string, error) {
	listings, err := j.store.ListListings(ctx, 0)
	if err != nil {
		return nil, err
	}

	stamp := time.Now().Format("20060102")
	csvPath := filepath.Join(j.ExportDir, fmt.Sprintf("listings_%s.csv", stamp))
	jsonPath := filepath.Join(j.ExportDir, fmt.Sprintf("listings_%s.json", stamp))

	if err := j.exporter.ExportCSV(listings, csvPath); err != nil {
		return nil, err
	}
	if err := j.exporter.ExportJSON(listings, jsonPath); err != nil {
		return []string{csvPath}, err
	}
	return []string{csvPath, jsonPath}, nil
}

// ScrapeOnly runs just the scrape and persist stages, for the scrape
// subcommand.
func (j *FullCycleJob) ScrapeOnly(ctx context.Context) (*CycleResult, error) {
	result := &CycleResult{RunID: uuid.New(), StartedAt: time.Now().UTC()}
	defer func() {
		result.FinishedAt = time.Now().UTC()
		result.Cancelled = ctx.Err() != nil
	}()

	j.setStage(ctx, StageScraping, result.RunID)
	listings := j.scrapeAll(ctx)
	result.ListingsScraped = len(listings)

	j.setStage(ctx, StagePersisting, result.RunID)
	result.ListingsInserted, result.ListingsUpdated = j.persistAll(context.WithoutCancel(ctx), listings)

	j.setStage(context.WithoutCancel(ctx), StageIdle, result.RunID)
	return result, ctx.Err()
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"realestate-leads/metrics"
	"realestate-leads/models"
	"realestate-leads/notify"
	"realestate-leads/scoring"
	"realestate-leads/scraper"
	"realestate-leads/storage"
	"realestate-leads/utils"
)

var (
	// ErrAllSourcesFailed is returned by Ingestor.Run when no source produced data.
	ErrAllSourcesFailed = errors.New("ingest: every source failed")
	// ErrIngestRunning is returned by Ingestor.Run while another pass is in progress.
	ErrIngestRunning = errors.New("ingest: a run is already in progress")
)

// SourceReport is the per-source part of an IngestReport.
type SourceReport struct {
	Fetched int           `json:"fetched"`
	Error   string        `json:"error,omitempty"`
	Took    time.Duration `json:"took"`
}

// IngestReport summarises one ingestion run.
type IngestReport struct {
	Fetched   int                     `json:"fetched"`
	Cleaned   int                     `json:"cleaned"`
	Rejected  int                     `json:"rejected"`
	New       int                     `json:"new"`
	HotDeals  int                     `json:"hotDeals"`
	PerSource map[string]SourceReport `json:"perSource"`
	Took      time.Duration           `json:"took"`
}

// IngestOptions wires an Ingestor. RawWriter, Notifier and Metrics are
// optional.
type IngestOptions struct {
	Sources   []scraper.Source
	Engine    *scoring.Engine
	Store     storage.PropertyStore
	RawWriter storage.RawListingWriter
	Notifier  notify.Notifier
	Metrics   *metrics.Registry
	Pool      *utils.WorkerPool
	Filter    models.SearchFilter
}

// IngestStatus describes the current and most recent ingestion pass.
type IngestStatus struct {
	Running    bool          `json:"running"`
	LastRun    *time.Time    `json:"lastRun,omitempty"`
	LastReport *IngestReport `json:"lastReport,omitempty"`
	LastError  string        `json:"lastError,omitempty"`
}

// Ingestor runs the fetch → clean → score → store → notify pipeline.
type Ingestor struct {
	opts    IngestOptions
	cleaner *Cleaner
	logger  *utils.Logger

	running atomic.Bool
	mu      sync.Mutex
	last    IngestStatus
}

func NewIngestor(opts IngestOptions, logger *utils.Logger) *Ingestor {
	if opts.Pool == nil {
		opts.Pool = utils.NewWorkerPool(len(opts.Sources), 0)
	}
	return &Ingestor{
		opts:    opts,
		cleaner: NewCleaner(logger),
		logger:  logger.With("ingest"),
	}
}

// Run executes one ingestion pass. Listings are scored exactly once, before
// they are stored; listings the engine rejects are counted and skipped.
// Only one pass runs at a time; an overlapping call gets ErrIngestRunning.
func (in *Ingestor) Run(ctx context.Context) (*IngestReport, error) {
	if !in.running.CompareAndSwap(false, true) {
		return nil, ErrIngestRunning
	}
	defer in.running.Store(false)

	started := time.Now()
	report, err := in.run(ctx)

	in.mu.Lock()
	in.last = IngestStatus{LastRun: &started, LastReport: report}
	if err != nil {
		in.last.LastError = err.Error()
	}
	in.mu.Unlock()
	return report, err
}

// Status reports whether a pass is running and how the last one went.
func (in *Ingestor) Status() IngestStatus {
	in.mu.Lock()
	st := in.last
	in.mu.Unlock()
	st.Running = in.running.Load()
	return st
}

func (in *Ingestor) run(ctx context.Context) (*IngestReport, error) {
	start := time.Now()
	report := &IngestReport{PerSource: make(map[string]SourceReport, len(in.opts.Sources))}

	results := scraper.FetchAll(ctx, in.opts.Pool, in.logger, in.opts.Filter, in.opts.Sources...)
	failed := 0
	for _, r := range results {
		sr := SourceReport{Fetched: len(r.Listings), Took: r.Took}
		if r.Err != nil {
			sr.Error = r.Err.Error()
			failed++
			if m := in.opts.Metrics; m != nil {
				m.SourceErrors.WithLabelValues(r.Source).Inc()
			}
		}
		if m := in.opts.Metrics; m != nil {
			m.Fetched.WithLabelValues(r.Source).Add(float64(len(r.Listings)))
		}
		report.PerSource[r.Source] = sr
	}
	if len(results) > 0 && failed == len(results) {
		report.Took = time.Since(start)
		return report, ErrAllSourcesFailed
	}

	raw := scraper.Flatten(results)
	report.Fetched = len(raw)
	if w := in.opts.RawWriter; w != nil {
		if err := w.WriteRaw(raw); err != nil {
			in.logger.Warn("Raw listing dump failed: %v", err)
		}
	}

	cleaned := in.cleaner.Clean(raw)
	report.Cleaned = len(cleaned)
	report.Rejected = len(raw) - len(cleaned)

	scored := in.score(cleaned, report)

	// A failing store may still have committed earlier batches; those rows
	// are counted and alerted on before the error is returned.
	inserted, storeErr := in.opts.Store.InsertNew(ctx, scored)
	report.New = len(inserted)
	in.alert(ctx, inserted, report)

	report.Took = time.Since(start)
	if m := in.opts.Metrics; m != nil {
		m.Rejected.Add(float64(report.Rejected))
		m.Stored.Add(float64(report.New))
		m.HotDeals.Add(float64(report.HotDeals))
		m.IngestDuration.Observe(report.Took.Seconds())
	}

	if storeErr != nil {
		in.logger.Error("Store failed after %d new listings (%d hot): %v", report.New, report.HotDeals, storeErr)
		return report, fmt.Errorf("ingest: store listings: %w", storeErr)
	}
	in.logger.Info("Ingest done in %v: fetched=%d cleaned=%d rejected=%d new=%d hot=%d",
		report.Took.Round(time.Millisecond), report.Fetched, report.Cleaned, report.Rejected, report.New, report.HotDeals)
	return report, nil
}

func (in *Ingestor) alert(ctx context.Context, inserted []*models.Listing, report *IngestReport) {
	for _, l := range inserted {
		if !l.IsHotDeal {
			continue
		}
		report.HotDeals++
		if in.opts.Notifier == nil {
			continue
		}
		if err := in.opts.Notifier.NotifyHotDeal(ctx, l); err != nil {
			in.logger.Warn("Hot deal alert for %s failed: %v", l.ID, err)
		}
	}
}

func (in *Ingestor) score(listings []*models.Listing, report *IngestReport) []*models.Listing {
	out := listings[:0]
	for _, l := range listings {
		res, err := in.opts.Engine.Score(l)
		if err != nil {
			in.logger.Warn("Skipping listing %s: %v", l.DedupKey(), err)
			report.Rejected++
			continue
		}
		l.PricePerSquareMeter = scoring.PricePerArea(l)
		l.IsHotDeal = res.IsHotDeal
		l.HotDealScore = res.HotDealScore
		out = append(out, l)
	}
	return out
}

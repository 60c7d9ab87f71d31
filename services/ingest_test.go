package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"realestate-leads/metrics"
	"realestate-leads/models"
	"realestate-leads/scoring"
	"realestate-leads/scraper"
	"realestate-leads/storage"
	"realestate-leads/utils"
)

type stubSource struct {
	name string
	raw  []*models.RawListing
	err  error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchCandidateListings(context.Context, models.SearchFilter) ([]*models.RawListing, error) {
	// hand out fresh copies so repeated runs see the same input
	out := make([]*models.RawListing, len(s.raw))
	for i, r := range s.raw {
		cp := *r
		out[i] = &cp
	}
	return out, s.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*models.Listing
}

func (r *recordingNotifier) NotifyHotDeal(_ context.Context, l *models.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, l)
	return nil
}

type recordingWriter struct{ rows int }

func (w *recordingWriter) WriteRaw(l []*models.RawListing) error { w.rows += len(l); return nil }
func (w *recordingWriter) Close() error                          { return nil }

func yad2Raw() []*models.RawListing {
	return []*models.RawListing{
		// 850000 / 65 m² against 35000/m²: score 100
		{Source: "yad2", SourceID: "hot", Address: "דיזנגוף 1", City: "תל אביב", RawPrice: "850,000", RawRooms: "3", RawSize: "65"},
		// exactly at the Haifa baseline: score 0
		{Source: "yad2", SourceID: "fair", Address: "הרצל 2", City: "חיפה", RawPrice: "2,500,000", RawRooms: "4", RawSize: "100"},
		{Source: "yad2", SourceID: "noprice", Address: "הרצל 3", City: "חיפה", RawPrice: "", RawRooms: "4", RawSize: "100"},
	}
}

func newTestIngestor(t *testing.T, store storage.PropertyStore, n *recordingNotifier, w *recordingWriter, sources ...scraper.Source) *Ingestor {
	t.Helper()
	engine, err := scoring.NewEngine(scoring.DefaultBaselineTable(), scoring.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	opts := IngestOptions{
		Sources: sources,
		Engine:  engine,
		Store:   store,
		Metrics: metrics.NewRegistry(),
		Pool:    utils.NewWorkerPool(2, 0),
	}
	if n != nil {
		opts.Notifier = n
	}
	if w != nil {
		opts.RawWriter = w
	}
	return NewIngestor(opts, newTestLogger())
}

func TestIngestorRunScoresStoresAndNotifies(t *testing.T) {
	store := storage.NewMemoryStore()
	notifier := &recordingNotifier{}
	writer := &recordingWriter{}
	down := &stubSource{name: "winwin", err: errors.New("timeout")}
	in := newTestIngestor(t, store, notifier, writer, &stubSource{name: "yad2", raw: yad2Raw()}, down)

	report, err := in.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Fetched != 3 || report.Cleaned != 2 || report.Rejected != 1 || report.New != 2 || report.HotDeals != 1 {
		t.Errorf("report: %+v", report)
	}
	if report.PerSource["winwin"].Error == "" || report.PerSource["yad2"].Fetched != 3 {
		t.Errorf("PerSource: %+v", report.PerSource)
	}
	if writer.rows != 3 {
		t.Errorf("raw rows written: got %d, want 3", writer.rows)
	}

	if len(notifier.sent) != 1 || notifier.sent[0].SourceID != "hot" {
		t.Fatalf("notifications: got %d", len(notifier.sent))
	}
	hot := notifier.sent[0]
	if hot.HotDealScore != 100 || !hot.IsHotDeal || hot.PricePerSquareMeter != 13077 {
		t.Errorf("hot listing scoring: score=%d hot=%v ppa=%v", hot.HotDealScore, hot.IsHotDeal, hot.PricePerSquareMeter)
	}

	stored, total, _ := store.Find(context.Background(), models.SearchFilter{}, models.Page{})
	if total != 2 {
		t.Fatalf("stored: got %d, want 2", total)
	}
	for _, l := range stored {
		if l.SourceID == "fair" && (l.IsHotDeal || l.HotDealScore != 0) {
			t.Errorf("fair listing should not be hot: %+v", l)
		}
	}
}

func TestIngestorRunIsIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	notifier := &recordingNotifier{}
	in := newTestIngestor(t, store, notifier, nil, &stubSource{name: "yad2", raw: yad2Raw()})

	if _, err := in.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	report, err := in.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.New != 0 || report.HotDeals != 0 {
		t.Errorf("second run should store nothing new: %+v", report)
	}
	if len(notifier.sent) != 1 {
		t.Errorf("hot deal should be announced once, got %d", len(notifier.sent))
	}
}

func TestIngestorRunAllSourcesFailed(t *testing.T) {
	in := newTestIngestor(t, storage.NewMemoryStore(), nil, nil,
		&stubSource{name: "a", err: errors.New("x")},
		&stubSource{name: "b", err: errors.New("y")})

	report, err := in.Run(context.Background())
	if !errors.Is(err, ErrAllSourcesFailed) {
		t.Fatalf("err: got %v, want ErrAllSourcesFailed", err)
	}
	if len(report.PerSource) != 2 {
		t.Errorf("PerSource: got %d entries", len(report.PerSource))
	}
}

// partialStore commits only the "hot" listing on its first InsertNew and then
// fails, the way a multi-batch insert fails after committing a batch.
type partialStore struct {
	*storage.MemoryStore
	failed bool
}

func (p *partialStore) InsertNew(ctx context.Context, listings []*models.Listing) ([]*models.Listing, error) {
	if p.failed {
		return p.MemoryStore.InsertNew(ctx, listings)
	}
	p.failed = true
	var first []*models.Listing
	for _, l := range listings {
		if l.SourceID == "hot" {
			first = append(first, l)
		}
	}
	inserted, err := p.MemoryStore.InsertNew(ctx, first)
	if err != nil {
		return nil, err
	}
	return inserted, errors.New("batch 2 failed")
}

func TestIngestorAlertsOnPartiallyStoredBatch(t *testing.T) {
	store := &partialStore{MemoryStore: storage.NewMemoryStore()}
	notifier := &recordingNotifier{}
	in := newTestIngestor(t, store, notifier, nil, &stubSource{name: "yad2", raw: yad2Raw()})

	report, err := in.Run(context.Background())
	if err == nil {
		t.Fatal("expected store error")
	}
	if report.New != 1 || report.HotDeals != 1 {
		t.Errorf("first run: new=%d hot=%d, want 1 and 1", report.New, report.HotDeals)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].SourceID != "hot" {
		t.Fatalf("alerts after partial store: got %d, want 1", len(notifier.sent))
	}
	st := in.Status()
	if st.Running || st.LastRun == nil || st.LastError == "" || st.LastReport != report {
		t.Errorf("Status after failed run: %+v", st)
	}

	report, err = in.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.New != 1 || report.HotDeals != 0 || len(notifier.sent) != 1 {
		t.Errorf("second run: new=%d hot=%d alerts=%d", report.New, report.HotDeals, len(notifier.sent))
	}
	if in.Status().LastError != "" {
		t.Errorf("LastError should clear after a clean run")
	}
}

type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) Name() string { return "slow" }

func (b *blockingSource) FetchCandidateListings(ctx context.Context, _ models.SearchFilter) ([]*models.RawListing, error) {
	close(b.entered)
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil, nil
}

func TestIngestorRejectsOverlappingRuns(t *testing.T) {
	src := &blockingSource{entered: make(chan struct{}), release: make(chan struct{})}
	in := newTestIngestor(t, storage.NewMemoryStore(), nil, nil, src)

	done := make(chan error, 1)
	go func() {
		_, err := in.Run(context.Background())
		done <- err
	}()
	<-src.entered

	if !in.Status().Running {
		t.Error("Status: want Running during a pass")
	}
	if _, err := in.Run(context.Background()); !errors.Is(err, ErrIngestRunning) {
		t.Errorf("overlapping Run: got %v, want ErrIngestRunning", err)
	}

	close(src.release)
	if err := <-done; err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if st := in.Status(); st.Running || st.LastRun == nil {
		t.Errorf("Status after run: %+v", st)
	}
}

func TestIngestorScoreSkipsInvalid(t *testing.T) {
	in := newTestIngestor(t, storage.NewMemoryStore(), nil, nil)
	report := &IngestReport{}
	out := in.score([]*models.Listing{
		{SourceWebsite: "x", SourceID: "1", City: "חיפה", Price: 1000000, Size: 0},
		{SourceWebsite: "x", SourceID: "2", City: "חיפה", Price: 1000000, Size: 100},
	}, report)

	if len(out) != 1 || out[0].SourceID != "2" || report.Rejected != 1 {
		t.Errorf("score: kept %d, rejected %d", len(out), report.Rejected)
	}
	if out[0].HotDealScore != 100 || out[0].PricePerSquareMeter != 10000 {
		t.Errorf("score result: %+v", out[0])
	}
}

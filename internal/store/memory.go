// Package store provides storage for the authenticity API: a thread-safe
// in-memory record store plus an append-only SQLite audit archive.
//
// Design rationale: the verification core only ever reads recent history
// (per-user scan logs, the latest performance snapshot), so an in-memory
// store with secondary indexes is sufficient for demo and small-scale
// production loads; a deployment would swap it for the platform's managed
// document database. Feedback reports, performance snapshots, and drift
// alerts additionally go to the archive because they are audit records
// that must survive restarts.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"veriseal/authenticity-api/internal/domain"
)

// Sentinel errors for write conflicts.
var (
	ErrDuplicateVerification = errors.New("verification already exists")
	ErrDuplicateProduct      = errors.New("product already exists")
	ErrDuplicateReport       = errors.New("report already exists")
	ErrAlreadyReviewed       = errors.New("report already reviewed")
	ErrReportNotFound        = errors.New("report not found")
)

// Store is a thread-safe in-memory data store.
type Store struct {
	mu sync.RWMutex

	products      map[string]*domain.Product
	verifications map[string]*domain.Verification
	reports       map[string]*domain.FalsePositiveReport
	webhooks      map[string]*domain.WebhookConfig

	// Secondary indexes: entity value → slice of verification IDs.
	// Maintained on every write so reads stay fast.
	verByUser    map[string][]string
	verByProduct map[string][]string

	// Per-user scan history, kept in ascending timestamp order — the
	// behavior detector depends on chronological input.
	scansByUser map[string][]domain.ScanEvent

	// Per-model performance snapshots, oldest first. The newest entry is
	// the drift baseline for the next evaluation.
	performance map[string][]*domain.ModelPerformance

	driftAlerts []*domain.DriftAlert
}

// New creates an empty, ready-to-use Store.
func New() *Store {
	return &Store{
		products:      make(map[string]*domain.Product),
		verifications: make(map[string]*domain.Verification),
		reports:       make(map[string]*domain.FalsePositiveReport),
		webhooks:      make(map[string]*domain.WebhookConfig),
		verByUser:     make(map[string][]string),
		verByProduct:  make(map[string][]string),
		scansByUser:   make(map[string][]domain.ScanEvent),
		performance:   make(map[string][]*domain.ModelPerformance),
	}
}

// ─── Products ─────────────────────────────────────────────────────────────────

// SaveProduct registers a product. Returns ErrDuplicateProduct on ID reuse.
func (s *Store) SaveProduct(p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.products[p.ID]; exists {
		return ErrDuplicateProduct
	}
	s.products[p.ID] = p
	return nil
}

// GetProduct retrieves a registered product by ID.
func (s *Store) GetProduct(id string) (*domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

// ─── Verifications ────────────────────────────────────────────────────────────

// SaveVerification persists a verification and updates all secondary
// indexes. Returns ErrDuplicateVerification if the ID already exists.
func (s *Store) SaveVerification(v *domain.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.verifications[v.ID]; exists {
		return ErrDuplicateVerification
	}

	s.verifications[v.ID] = v
	s.verByUser[v.UserID] = append(s.verByUser[v.UserID], v.ID)
	if v.ProductID != "" {
		s.verByProduct[v.ProductID] = append(s.verByProduct[v.ProductID], v.ID)
	}
	return nil
}

// GetVerification retrieves a single verification by ID.
func (s *Store) GetVerification(id string) (*domain.Verification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.verifications[id]
	return v, ok
}

// GetVerificationsByUser returns a user's verifications processed at or
// after `since`, in arbitrary order.
func (s *Store) GetVerificationsByUser(userID string, since time.Time) []*domain.Verification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterByTime(s.verByUser[userID], since)
}

// GetVerificationsByProduct returns a product's verifications processed at
// or after `since`.
func (s *Store) GetVerificationsByProduct(productID string, since time.Time) []*domain.Verification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterByTime(s.verByProduct[productID], since)
}

// filterByTime resolves a slice of IDs to Verification pointers,
// keeping only those processed at or after `since`.
// Must be called with at least a read-lock held.
func (s *Store) filterByTime(ids []string, since time.Time) []*domain.Verification {
	var result []*domain.Verification
	for _, id := range ids {
		v, ok := s.verifications[id]
		if ok && !v.ProcessedAt.Before(since) {
			result = append(result, v)
		}
	}
	return result
}

// ─── Scan history ─────────────────────────────────────────────────────────────

// AppendScanEvent adds a scan to a user's history, keeping it sorted by
// timestamp. Out-of-order inserts happen when backfilling seed data.
func (s *Store) AppendScanEvent(userID string, event domain.ScanEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := append(s.scansByUser[userID], event)
	if n := len(events); n > 1 && events[n-1].Timestamp.Before(events[n-2].Timestamp) {
		sort.Slice(events, func(i, j int) bool {
			return events[i].Timestamp.Before(events[j].Timestamp)
		})
	}
	s.scansByUser[userID] = events
}

// GetScanHistory returns a copy of a user's scan events in ascending
// timestamp order.
func (s *Store) GetScanHistory(userID string) []domain.ScanEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.scansByUser[userID]
	out := make([]domain.ScanEvent, len(events))
	copy(out, events)
	return out
}

// ─── False-positive reports ───────────────────────────────────────────────────

// SaveReport stores a feedback report. Reports are append-only: they are
// never deleted, only marked reviewed.
func (s *Store) SaveReport(r *domain.FalsePositiveReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[r.ReportID]; exists {
		return ErrDuplicateReport
	}
	s.reports[r.ReportID] = r
	return nil
}

// GetReport retrieves a report by ID.
func (s *Store) GetReport(id string) (*domain.FalsePositiveReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	return r, ok
}

// ListReports returns all reports, newest first.
func (s *Store) ListReports() []*domain.FalsePositiveReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.FalsePositiveReport, 0, len(s.reports))
	for _, r := range s.reports {
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result
}

// ReviewReport closes a report with the reviewer's outcome. The reviewed
// flag is set exactly once; a second review returns ErrAlreadyReviewed.
func (s *Store) ReviewReport(id, reviewResult string) (*domain.FalsePositiveReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	if r.Reviewed {
		return nil, ErrAlreadyReviewed
	}
	r.Reviewed = true
	r.ReviewResult = reviewResult
	return r, nil
}

// ─── Model performance ────────────────────────────────────────────────────────

// SavePerformance appends an evaluation snapshot to a model's history.
// Snapshots are retained historically for trend comparison.
func (s *Store) SavePerformance(p *domain.ModelPerformance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.performance[p.ModelType] = append(s.performance[p.ModelType], p)
}

// LatestPerformance returns the most recent snapshot for a model type —
// the drift baseline for the next evaluation. ok is false when no
// evaluation has ever run.
func (s *Store) LatestPerformance(modelType string) (*domain.ModelPerformance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.performance[modelType]
	if len(history) == 0 {
		return nil, false
	}
	return history[len(history)-1], true
}

// PerformanceHistory returns all snapshots for a model type, oldest first.
func (s *Store) PerformanceHistory(modelType string) []*domain.ModelPerformance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.performance[modelType]
	out := make([]*domain.ModelPerformance, len(history))
	copy(out, history)
	return out
}

// ─── Drift alerts ─────────────────────────────────────────────────────────────

// SaveDriftAlert appends a drift alert. Alerts are immutable once created.
func (s *Store) SaveDriftAlert(a *domain.DriftAlert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.driftAlerts = append(s.driftAlerts, a)
}

// ListDriftAlerts returns all alerts raised at or after `since`,
// newest first.
func (s *Store) ListDriftAlerts(since time.Time) []*domain.DriftAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DriftAlert
	for _, a := range s.driftAlerts {
		if !a.Timestamp.Before(since) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

// SaveWebhook persists a webhook configuration.
func (s *Store) SaveWebhook(wh *domain.WebhookConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks[wh.ID] = wh
}

// DeleteWebhook removes a webhook by ID. Returns false if not found.
func (s *Store) DeleteWebhook(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.webhooks[id]
	if exists {
		delete(s.webhooks, id)
	}
	return exists
}

// ListActiveWebhooks returns all webhooks that are currently active.
func (s *Store) ListActiveWebhooks() []*domain.WebhookConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WebhookConfig
	for _, wh := range s.webhooks {
		if wh.Active {
			result = append(result, wh)
		}
	}
	return result
}

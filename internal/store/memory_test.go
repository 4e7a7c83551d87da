package store_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"veriseal/authenticity-api/internal/domain"
	"veriseal/authenticity-api/internal/store"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func verification(id, userID, productID string, at time.Time) *domain.Verification {
	return &domain.Verification{
		ID:          id,
		UserID:      userID,
		ProductID:   productID,
		Verdict:     domain.VerdictGenuine,
		ProcessedAt: at,
	}
}

// ─── Products ─────────────────────────────────────────────────────────────────

func TestSaveProduct_Duplicate(t *testing.T) {
	s := store.New()
	p := &domain.Product{ID: "prod-001", SerialNumber: "VS123456"}

	if err := s.SaveProduct(p); err != nil {
		t.Fatalf("SaveProduct: %v", err)
	}
	if err := s.SaveProduct(p); !errors.Is(err, store.ErrDuplicateProduct) {
		t.Errorf("second save err = %v, want ErrDuplicateProduct", err)
	}
	if _, ok := s.GetProduct("prod-001"); !ok {
		t.Error("GetProduct failed after save")
	}
}

// ─── Verifications & indexes ──────────────────────────────────────────────────

func TestVerificationIndexes(t *testing.T) {
	s := store.New()
	for i := 0; i < 5; i++ {
		v := verification(fmt.Sprintf("ver-%d", i), "user-1", "prod-001", t0.Add(time.Duration(i)*time.Hour))
		if err := s.SaveVerification(v); err != nil {
			t.Fatalf("SaveVerification: %v", err)
		}
	}
	_ = s.SaveVerification(verification("ver-other", "user-2", "prod-002", t0))

	if got := s.GetVerificationsByUser("user-1", time.Time{}); len(got) != 5 {
		t.Errorf("ByUser = %d results, want 5", len(got))
	}
	if got := s.GetVerificationsByProduct("prod-001", time.Time{}); len(got) != 5 {
		t.Errorf("ByProduct = %d results, want 5", len(got))
	}
	// The since filter is inclusive.
	if got := s.GetVerificationsByUser("user-1", t0.Add(3*time.Hour)); len(got) != 2 {
		t.Errorf("ByUser since t0+3h = %d results, want 2", len(got))
	}
	if got := s.GetVerificationsByUser("user-unknown", time.Time{}); got != nil {
		t.Errorf("unknown user = %v, want nil", got)
	}
}

func TestSaveVerification_Duplicate(t *testing.T) {
	s := store.New()
	v := verification("ver-1", "user-1", "prod-001", t0)
	_ = s.SaveVerification(v)
	if err := s.SaveVerification(v); !errors.Is(err, store.ErrDuplicateVerification) {
		t.Errorf("err = %v, want ErrDuplicateVerification", err)
	}
}

// ─── Scan history ─────────────────────────────────────────────────────────────

func TestScanHistory_OutOfOrderInsertIsSorted(t *testing.T) {
	s := store.New()
	s.AppendScanEvent("user-1", domain.ScanEvent{Timestamp: t0.Add(2 * time.Hour), ProductID: "b"})
	s.AppendScanEvent("user-1", domain.ScanEvent{Timestamp: t0, ProductID: "a"})
	s.AppendScanEvent("user-1", domain.ScanEvent{Timestamp: t0.Add(time.Hour), ProductID: "ab"})

	history := s.GetScanHistory("user-1")
	if len(history) != 3 {
		t.Fatalf("len = %d, want 3", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].Timestamp.Before(history[i-1].Timestamp) {
			t.Fatalf("history not in ascending order: %v", history)
		}
	}
}

func TestScanHistory_ReturnsCopy(t *testing.T) {
	s := store.New()
	s.AppendScanEvent("user-1", domain.ScanEvent{Timestamp: t0, ProductID: "a"})

	history := s.GetScanHistory("user-1")
	history[0].ProductID = "mutated"

	if got := s.GetScanHistory("user-1"); got[0].ProductID != "a" {
		t.Error("caller mutation leaked into the store")
	}
}

// ─── Reports ──────────────────────────────────────────────────────────────────

func TestReviewReport_ExactlyOnce(t *testing.T) {
	s := store.New()
	_ = s.SaveReport(&domain.FalsePositiveReport{ReportID: "rep-1", Timestamp: t0})

	r, err := s.ReviewReport("rep-1", "confirmed_genuine")
	if err != nil {
		t.Fatalf("first review: %v", err)
	}
	if !r.Reviewed || r.ReviewResult != "confirmed_genuine" {
		t.Errorf("report = %+v, want reviewed with result", r)
	}

	if _, err := s.ReviewReport("rep-1", "again"); !errors.Is(err, store.ErrAlreadyReviewed) {
		t.Errorf("second review err = %v, want ErrAlreadyReviewed", err)
	}
	if _, err := s.ReviewReport("rep-missing", "x"); !errors.Is(err, store.ErrReportNotFound) {
		t.Errorf("missing report err = %v, want ErrReportNotFound", err)
	}
}

func TestListReports_NewestFirst(t *testing.T) {
	s := store.New()
	for i := 0; i < 3; i++ {
		_ = s.SaveReport(&domain.FalsePositiveReport{
			ReportID:  fmt.Sprintf("rep-%d", i),
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
		})
	}

	reports := s.ListReports()
	if len(reports) != 3 {
		t.Fatalf("len = %d, want 3", len(reports))
	}
	if reports[0].ReportID != "rep-2" || reports[2].ReportID != "rep-0" {
		t.Errorf("order = [%s %s %s], want newest first",
			reports[0].ReportID, reports[1].ReportID, reports[2].ReportID)
	}
}

// ─── Model performance ────────────────────────────────────────────────────────

func TestPerformance_LatestIsBaseline(t *testing.T) {
	s := store.New()

	if _, ok := s.LatestPerformance(domain.ModelImageVerification); ok {
		t.Error("latest reported before any evaluation")
	}

	s.SavePerformance(&domain.ModelPerformance{ModelID: "m-1", ModelType: domain.ModelImageVerification})
	s.SavePerformance(&domain.ModelPerformance{ModelID: "m-2", ModelType: domain.ModelImageVerification})
	s.SavePerformance(&domain.ModelPerformance{ModelID: "other", ModelType: domain.ModelFraudScoring})

	latest, ok := s.LatestPerformance(domain.ModelImageVerification)
	if !ok || latest.ModelID != "m-2" {
		t.Errorf("latest = %+v, want m-2", latest)
	}
	if history := s.PerformanceHistory(domain.ModelImageVerification); len(history) != 2 {
		t.Errorf("history len = %d, want 2", len(history))
	}
}

// ─── Drift alerts ─────────────────────────────────────────────────────────────

func TestDriftAlerts_SinceFilter(t *testing.T) {
	s := store.New()
	for i := 0; i < 4; i++ {
		s.SaveDriftAlert(&domain.DriftAlert{
			AlertID:   fmt.Sprintf("alert-%d", i),
			Timestamp: t0.Add(time.Duration(i) * 24 * time.Hour),
		})
	}

	alerts := s.ListDriftAlerts(t0.Add(2 * 24 * time.Hour))
	if len(alerts) != 2 {
		t.Fatalf("len = %d, want 2", len(alerts))
	}
	if alerts[0].AlertID != "alert-3" {
		t.Errorf("alerts[0] = %s, want newest first", alerts[0].AlertID)
	}
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

func TestWebhooks(t *testing.T) {
	s := store.New()
	s.SaveWebhook(&domain.WebhookConfig{ID: "wh-1", URL: "http://a.test", Active: true})
	s.SaveWebhook(&domain.WebhookConfig{ID: "wh-2", URL: "http://b.test", Active: false})

	if got := s.ListActiveWebhooks(); len(got) != 1 || got[0].ID != "wh-1" {
		t.Errorf("active = %v, want [wh-1]", got)
	}
	if !s.DeleteWebhook("wh-1") {
		t.Error("DeleteWebhook(wh-1) = false")
	}
	if s.DeleteWebhook("wh-1") {
		t.Error("second delete reported success")
	}
	if got := s.ListActiveWebhooks(); len(got) != 0 {
		t.Errorf("active after delete = %v, want none", got)
	}
}

package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"veriseal/authenticity-api/internal/domain"
	"veriseal/authenticity-api/internal/store"
)

func openTestArchive(t *testing.T) *store.Archive {
	t.Helper()
	a, err := store.OpenArchive(filepath.Join(t.TempDir(), "audit.sqlite3"))
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestArchive_ReportsRoundTrip(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	report := &domain.FalsePositiveReport{
		ReportID:            "rep-1",
		VerificationID:      "ver-1",
		UserID:              "user-1",
		ModelType:           domain.ModelImageVerification,
		OriginalVerdict:     domain.VerdictFake,
		UserReportedVerdict: domain.VerdictGenuine,
		AIScore:             32,
		Timestamp:           time.Now().UTC(),
	}
	if err := a.AppendReport(ctx, report); err != nil {
		t.Fatalf("AppendReport: %v", err)
	}

	n, err := a.CountReports(ctx)
	if err != nil {
		t.Fatalf("CountReports: %v", err)
	}
	if n != 1 {
		t.Errorf("CountReports = %d, want 1", n)
	}

	if err := a.MarkReportReviewed(ctx, "rep-1", "confirmed_genuine"); err != nil {
		t.Errorf("MarkReportReviewed: %v", err)
	}
}

func TestArchive_PerformanceAndAlerts(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	perf := &domain.ModelPerformance{
		ModelID:       "image_verification-abc12345",
		ModelType:     domain.ModelImageVerification,
		Accuracy:      0.91,
		LastEvaluated: time.Now().UTC(),
	}
	if err := a.AppendPerformance(ctx, perf); err != nil {
		t.Fatalf("AppendPerformance: %v", err)
	}

	alert := &domain.DriftAlert{
		AlertID:   "alert-1",
		ModelID:   perf.ModelID,
		ModelType: perf.ModelType,
		Severity:  domain.RiskHigh,
		Timestamp: time.Now().UTC(),
	}
	if err := a.AppendDriftAlert(ctx, alert); err != nil {
		t.Fatalf("AppendDriftAlert: %v", err)
	}
	if err := a.AppendRetrainingRequest(ctx, perf.ModelID, alert.AlertID); err != nil {
		t.Fatalf("AppendRetrainingRequest: %v", err)
	}
}

// A nil archive must behave as a silent no-op so the server can run without
// the audit database.
func TestArchive_NilIsNoOp(t *testing.T) {
	var a *store.Archive
	ctx := context.Background()

	if err := a.AppendReport(ctx, &domain.FalsePositiveReport{ReportID: "x"}); err != nil {
		t.Errorf("AppendReport on nil = %v", err)
	}
	if err := a.MarkReportReviewed(ctx, "x", "y"); err != nil {
		t.Errorf("MarkReportReviewed on nil = %v", err)
	}
	if err := a.AppendRetrainingRequest(ctx, "m", "a"); err != nil {
		t.Errorf("AppendRetrainingRequest on nil = %v", err)
	}
	if n, err := a.CountReports(ctx); err != nil || n != 0 {
		t.Errorf("CountReports on nil = (%d, %v), want (0, nil)", n, err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close on nil = %v", err)
	}
}

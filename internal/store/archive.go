package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"veriseal/authenticity-api/internal/domain"

	_ "modernc.org/sqlite"
)

// Archive is the append-only SQLite audit sink for feedback reports,
// performance snapshots, drift alerts, and retraining requests. Rows are
// only ever inserted (plus the single reviewed-flag update a report is
// allowed); nothing is deleted.
type Archive struct {
	sql *sql.DB
}

// OpenArchive opens (and if needed initializes) the archive database.
func OpenArchive(path string) (*Archive, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS feedback_reports (
  report_id             TEXT PRIMARY KEY,
  verification_id       TEXT NOT NULL,
  product_id            TEXT,
  user_id               TEXT NOT NULL,
  model_type            TEXT NOT NULL,
  original_verdict      TEXT NOT NULL,
  user_reported_verdict TEXT NOT NULL,
  ai_score              INTEGER NOT NULL,
  reported_at           DATETIME NOT NULL,
  reviewed              INTEGER NOT NULL DEFAULT 0 CHECK (reviewed IN (0,1)),
  review_result         TEXT,
  payload               TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_model ON feedback_reports(model_type, reported_at);
CREATE TABLE IF NOT EXISTS model_performance (
  id             INTEGER PRIMARY KEY,
  model_id       TEXT NOT NULL,
  model_type     TEXT NOT NULL,
  accuracy       REAL NOT NULL,
  drift_detected INTEGER NOT NULL CHECK (drift_detected IN (0,1)),
  drift_score    INTEGER NOT NULL,
  evaluated_at   DATETIME NOT NULL,
  payload        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_performance_model ON model_performance(model_type, evaluated_at);
CREATE TABLE IF NOT EXISTS drift_alerts (
  alert_id    TEXT PRIMARY KEY,
  model_type  TEXT NOT NULL,
  severity    TEXT NOT NULL,
  raised_at   DATETIME NOT NULL,
  payload     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_time ON drift_alerts(raised_at);
CREATE TABLE IF NOT EXISTS retraining_requests (
  id           INTEGER PRIMARY KEY,
  model_id     TEXT NOT NULL,
  alert_id     TEXT NOT NULL,
  requested_at DATETIME NOT NULL
);
	`); err != nil {
		return nil, err
	}
	return &Archive{sql: db}, nil
}

// Close closes the underlying database. Safe on a nil Archive, which lets
// callers treat the archive as optional.
func (a *Archive) Close() error {
	if a == nil || a.sql == nil {
		return nil
	}
	return a.sql.Close()
}

// AppendReport archives a feedback report.
func (a *Archive) AppendReport(ctx context.Context, r *domain.FalsePositiveReport) error {
	if a == nil {
		return nil
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = a.sql.ExecContext(ctx,
		`INSERT INTO feedback_reports(report_id, verification_id, product_id, user_id, model_type,
		   original_verdict, user_reported_verdict, ai_score, reported_at, reviewed, review_result, payload)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ReportID, r.VerificationID, r.ProductID, r.UserID, r.ModelType,
		r.OriginalVerdict, r.UserReportedVerdict, r.AIScore, r.Timestamp.UTC(),
		boolToInt(r.Reviewed), r.ReviewResult, string(payload))
	return err
}

// MarkReportReviewed records the one permitted mutation of a report.
func (a *Archive) MarkReportReviewed(ctx context.Context, reportID, reviewResult string) error {
	if a == nil {
		return nil
	}
	_, err := a.sql.ExecContext(ctx,
		`UPDATE feedback_reports SET reviewed = 1, review_result = ? WHERE report_id = ? AND reviewed = 0`,
		reviewResult, reportID)
	return err
}

// AppendPerformance archives an evaluation snapshot.
func (a *Archive) AppendPerformance(ctx context.Context, p *domain.ModelPerformance) error {
	if a == nil {
		return nil
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = a.sql.ExecContext(ctx,
		`INSERT INTO model_performance(model_id, model_type, accuracy, drift_detected, drift_score, evaluated_at, payload)
		 VALUES(?,?,?,?,?,?,?)`,
		p.ModelID, p.ModelType, p.Accuracy, boolToInt(p.DriftDetected), p.DriftScore,
		p.LastEvaluated.UTC(), string(payload))
	return err
}

// AppendDriftAlert archives a drift alert.
func (a *Archive) AppendDriftAlert(ctx context.Context, alert *domain.DriftAlert) error {
	if a == nil {
		return nil
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	_, err = a.sql.ExecContext(ctx,
		`INSERT INTO drift_alerts(alert_id, model_type, severity, raised_at, payload) VALUES(?,?,?,?,?)`,
		alert.AlertID, alert.ModelType, alert.Severity, alert.Timestamp.UTC(), string(payload))
	return err
}

// AppendRetrainingRequest records that retraining was requested for a model.
func (a *Archive) AppendRetrainingRequest(ctx context.Context, modelID, alertID string) error {
	if a == nil {
		return nil
	}
	_, err := a.sql.ExecContext(ctx,
		`INSERT INTO retraining_requests(model_id, alert_id, requested_at) VALUES(?,?,?)`,
		modelID, alertID, time.Now().UTC())
	return err
}

// CountReports returns the number of archived reports, used by smoke
// checks and tests.
func (a *Archive) CountReports(ctx context.Context) (int, error) {
	if a == nil {
		return 0, nil
	}
	var n int
	err := a.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback_reports`).Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

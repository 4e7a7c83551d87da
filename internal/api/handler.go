package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"veriseal/authenticity-api/internal/behavior"
	"veriseal/authenticity-api/internal/domain"
	"veriseal/authenticity-api/internal/feedback"
	"veriseal/authenticity-api/internal/logging"
	"veriseal/authenticity-api/internal/store"
	"veriseal/authenticity-api/internal/support"
	"veriseal/authenticity-api/internal/verdict"
	"veriseal/authenticity-api/internal/webhook"
)

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	store      *store.Store
	archive    *store.Archive
	engine     *verdict.Engine
	detector   *behavior.Detector
	monitor    *feedback.Monitor
	classifier *support.Classifier
	notifier   *webhook.Notifier
}

// NewHandler creates a Handler wired to the given dependencies.
// The archive may be nil; audit persistence then becomes a no-op.
func NewHandler(s *store.Store, a *store.Archive, e *verdict.Engine, d *behavior.Detector,
	m *feedback.Monitor, c *support.Classifier, n *webhook.Notifier) *Handler {
	return &Handler{store: s, archive: a, engine: e, detector: d, monitor: m, classifier: c, notifier: n}
}

// ─── POST /api/v1/verifications ───────────────────────────────────────────────

// SubmitVerification accepts a verification request, produces a verdict,
// saves the record plus the user's scan event, and returns the full
// analysis synchronously. Behavior analysis runs in the background.
func (h *Handler) SubmitVerification(w http.ResponseWriter, r *http.Request) {
	var req domain.VerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	if req.QRPayload == "" {
		badRequest(w, "VALIDATION_ERROR", "qr_payload is required")
		return
	}
	if req.UserID == "" {
		badRequest(w, "VALIDATION_ERROR", "user_id is required")
		return
	}

	v := h.engine.Verify(r.Context(), &req)
	v.ID = uuid.NewString()

	if err := h.store.SaveVerification(v); err != nil {
		internalError(w)
		return
	}
	h.store.AppendScanEvent(req.UserID, domain.ScanEvent{
		Timestamp: v.ProcessedAt,
		ProductID: v.ProductID,
		Location:  req.Location,
		Verdict:   v.Verdict,
		AIScore:   v.Result.OverallScore,
	})

	// Behavior analysis is independent of the verdict and must not delay
	// the response; anomalous users surface through webhook alerts.
	go h.analyzeBehaviorAsync(req.UserID, req.UserRole, req.OrgID)

	created(w, v)
}

func (h *Handler) analyzeBehaviorAsync(userID, role, orgID string) {
	history := h.store.GetScanHistory(userID)
	result := h.detector.AnalyzeUserBehavior(userID, history, role, orgID)
	if result.IsAnomalous {
		logging.Log.WithField("user_id", userID).
			WithField("anomaly_score", result.AnomalyScore).
			WithField("risk_level", result.RiskLevel).
			Warn("behavior: anomalous scanning pattern detected")
		h.notifier.NotifyBehaviorAsync(&result)
	}
}

// ─── GET /api/v1/verifications/{id} ──────────────────────────────────────────

// GetVerification retrieves a previously processed verification by its ID.
func (h *Handler) GetVerification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, exists := h.store.GetVerification(id)
	if !exists {
		notFound(w, fmt.Sprintf("verification '%s' not found", id))
		return
	}
	ok(w, v)
}

// ─── Products ─────────────────────────────────────────────────────────────────

// RegisterProduct registers a product and returns its QR payload.
func (h *Handler) RegisterProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID           string `json:"id"`
		Name         string `json:"name"`
		SerialNumber string `json:"serial_number"`
		OrgID        string `json:"org_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	if req.ID == "" || req.SerialNumber == "" {
		badRequest(w, "VALIDATION_ERROR", "id and serial_number are required")
		return
	}

	p := &domain.Product{
		ID:           req.ID,
		Name:         req.Name,
		SerialNumber: req.SerialNumber,
		OrgID:        req.OrgID,
		RegisteredAt: time.Now().UTC(),
	}
	if err := h.store.SaveProduct(p); err != nil {
		conflict(w, fmt.Sprintf("product '%s' already exists", req.ID))
		return
	}

	created(w, map[string]any{
		"product":    p,
		"qr_payload": verdict.EncodeQR(p.ID, p.SerialNumber),
	})
}

// GetProduct retrieves a registered product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, exists := h.store.GetProduct(id)
	if !exists {
		notFound(w, fmt.Sprintf("product '%s' not found", id))
		return
	}
	ok(w, p)
}

// ─── GET /api/v1/users/{id}/behavior ─────────────────────────────────────────

// GetUserBehavior analyzes a user's scan history for anomalous patterns.
//
// Query params:
//
//	role — the user's platform role (optional; enables role-specific rules)
func (h *Handler) GetUserBehavior(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	role := r.URL.Query().Get("role")

	history := h.store.GetScanHistory(userID)
	result := h.detector.AnalyzeUserBehavior(userID, history, role, "")
	if result.IsAnomalous {
		h.notifier.NotifyBehaviorAsync(&result)
	}
	ok(w, result)
}

// ─── Feedback ─────────────────────────────────────────────────────────────────

// SubmitFeedbackReport files a false-positive/negative report against a
// verification. Missing original-verdict fields are filled from the
// stored record when it exists.
func (h *Handler) SubmitFeedbackReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VerificationID string `json:"verification_id"`
		UserID         string `json:"user_id"`
		feedback.ReportInput
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	if req.VerificationID == "" || req.UserID == "" {
		badRequest(w, "VALIDATION_ERROR", "verification_id and user_id are required")
		return
	}
	if !validVerdict(req.UserReportedVerdict) {
		badRequest(w, "VALIDATION_ERROR",
			"user_reported_verdict must be one of: GENUINE, SUSPICIOUS, FAKE, INVALID")
		return
	}

	if v, exists := h.store.GetVerification(req.VerificationID); exists {
		if req.OriginalVerdict == "" {
			req.OriginalVerdict = v.Verdict
		}
		if req.AIScore == 0 {
			req.AIScore = v.Result.OverallScore
		}
		if req.ProductID == "" {
			req.ProductID = v.ProductID
		}
	}

	report := h.monitor.ReportFalsePositive(req.VerificationID, req.UserID, req.ReportInput)
	if err := h.store.SaveReport(report); err != nil {
		internalError(w)
		return
	}
	if err := h.archive.AppendReport(r.Context(), report); err != nil {
		logging.Log.WithField("report_id", report.ReportID).WithError(err).
			Error("api: failed to archive feedback report")
	}
	created(w, report)
}

// ReviewFeedbackReport closes a report with the reviewer's outcome.
// A report can be reviewed exactly once.
func (h *Handler) ReviewFeedbackReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		ReviewResult string `json:"review_result"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	if req.ReviewResult == "" {
		badRequest(w, "VALIDATION_ERROR", "review_result is required")
		return
	}

	report, err := h.store.ReviewReport(id, req.ReviewResult)
	switch err {
	case nil:
	case store.ErrReportNotFound:
		notFound(w, fmt.Sprintf("report '%s' not found", id))
		return
	case store.ErrAlreadyReviewed:
		conflict(w, fmt.Sprintf("report '%s' has already been reviewed", id))
		return
	default:
		internalError(w)
		return
	}

	if err := h.archive.MarkReportReviewed(r.Context(), id, req.ReviewResult); err != nil {
		logging.Log.WithField("report_id", id).WithError(err).
			Error("api: failed to archive report review")
	}
	ok(w, report)
}

// GetFeedbackSummary aggregates all filed reports.
func (h *Handler) GetFeedbackSummary(w http.ResponseWriter, r *http.Request) {
	summary := h.monitor.AggregateFalsePositives(h.store.ListReports())
	ok(w, summary)
}

// ─── Model evaluation & drift ─────────────────────────────────────────────────

// EvaluateModel evaluates a labeled sample batch for the given model type,
// compares against the historical baseline for drift, raises an alert when
// drift is significant, and optionally triggers retraining.
func (h *Handler) EvaluateModel(w http.ResponseWriter, r *http.Request) {
	modelType := chi.URLParam(r, "type")
	if !validModelType(modelType) {
		badRequest(w, "INVALID_MODEL_TYPE",
			"model type must be one of: image_verification, fraud_scoring, behavior_analysis")
		return
	}

	var req struct {
		Samples           []domain.EvaluationSample `json:"samples"`
		TriggerRetraining bool                      `json:"trigger_retraining"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}

	perf, err := h.monitor.EvaluateModelPerformance(modelType, req.Samples)
	if err != nil {
		// The empty-batch case is the one hard validation failure in the
		// subsystem and must reach the caller.
		badRequest(w, "VALIDATION_ERROR", err.Error())
		return
	}

	// The baseline is the newest snapshot before this run is recorded.
	baseline, _ := h.store.LatestPerformance(modelType)
	alert := h.monitor.DetectModelDrift(perf, baseline)

	var retraining *domain.RetrainingResult
	if alert != nil {
		perf.DriftDetected = true
		perf.DriftScore = alert.DriftScore

		h.store.SaveDriftAlert(alert)
		if err := h.archive.AppendDriftAlert(r.Context(), alert); err != nil {
			logging.Log.WithField("alert_id", alert.AlertID).WithError(err).
				Error("api: failed to archive drift alert")
		}
		h.notifier.NotifyDriftAsync(alert)

		if req.TriggerRetraining {
			result := h.monitor.TriggerRetraining(r.Context(), perf.ModelID, alert)
			retraining = &result
		}
	}

	h.store.SavePerformance(perf)
	if err := h.archive.AppendPerformance(r.Context(), perf); err != nil {
		logging.Log.WithField("model_id", perf.ModelID).WithError(err).
			Error("api: failed to archive performance snapshot")
	}

	ok(w, map[string]any{
		"performance": perf,
		"drift_alert": alert,
		"retraining":  retraining,
	})
}

// GetModelPerformance returns all evaluation snapshots for a model type,
// oldest first.
func (h *Handler) GetModelPerformance(w http.ResponseWriter, r *http.Request) {
	modelType := chi.URLParam(r, "type")
	if !validModelType(modelType) {
		badRequest(w, "INVALID_MODEL_TYPE",
			"model type must be one of: image_verification, fraud_scoring, behavior_analysis")
		return
	}
	history := h.store.PerformanceHistory(modelType)
	if history == nil {
		history = []*domain.ModelPerformance{}
	}
	ok(w, history)
}

// ListDriftAlerts returns drift alerts over a look-back window.
//
// Query params:
//
//	days — look-back window in days (default: 7, max: 90)
func (h *Handler) ListDriftAlerts(w http.ResponseWriter, r *http.Request) {
	days := 7
	if d := r.URL.Query().Get("days"); d != "" {
		parsed, err := strconv.Atoi(d)
		if err != nil || parsed < 1 || parsed > 90 {
			badRequest(w, "INVALID_PARAM", "days must be an integer between 1 and 90")
			return
		}
		days = parsed
	}
	since := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)

	alerts := h.store.ListDriftAlerts(since)
	if alerts == nil {
		alerts = []*domain.DriftAlert{}
	}
	ok(w, alerts)
}

// ─── Support ──────────────────────────────────────────────────────────────────

// ClassifySupportQuery routes a user message to an intent, escalating
// fraud reports and stuck conversations to human review.
func (h *Handler) ClassifySupportQuery(w http.ResponseWriter, r *http.Request) {
	var q domain.SupportQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	if q.Message == "" {
		badRequest(w, "VALIDATION_ERROR", "message is required")
		return
	}
	ok(w, h.classifier.Classify(q))
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

// RegisterWebhook adds a new alert webhook endpoint.
func (h *Handler) RegisterWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL         string `json:"url"`
		MinSeverity string `json:"min_severity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "INVALID_JSON", "request body must be valid JSON")
		return
	}
	if req.URL == "" {
		badRequest(w, "MISSING_URL", "url is required")
		return
	}
	if req.MinSeverity == "" {
		req.MinSeverity = domain.RiskHigh // sensible default: skip low-grade noise
	}
	if domain.SeverityRank(req.MinSeverity) < 0 {
		badRequest(w, "INVALID_SEVERITY", "min_severity must be one of: low, medium, high, critical")
		return
	}

	wh := &domain.WebhookConfig{
		ID:          uuid.NewString(),
		URL:         req.URL,
		MinSeverity: req.MinSeverity,
		CreatedAt:   time.Now().UTC(),
		Active:      true,
	}
	h.store.SaveWebhook(wh)
	created(w, wh)
}

// DeleteWebhook deactivates and removes a webhook.
func (h *Handler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.store.DeleteWebhook(id) {
		notFound(w, fmt.Sprintf("webhook '%s' not found", id))
		return
	}
	noContent(w)
}

// ─── Admin ────────────────────────────────────────────────────────────────────

// seedPayload is the demo dataset format: registered products plus
// historical scan events per user.
type seedPayload struct {
	Products []domain.Product `json:"products"`
	Scans    []struct {
		UserID string `json:"user_id"`
		domain.ScanEvent
	} `json:"scans"`
}

// SeedData loads products and scan histories from the request body.
// Useful for populating the store in demo environments.
func (h *Handler) SeedData(w http.ResponseWriter, r *http.Request) {
	var payload seedPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		badRequest(w, "INVALID_JSON", "body must contain products and scans arrays")
		return
	}

	loaded, skipped := loadSeed(h.store, &payload)
	ok(w, map[string]int{"loaded": loaded, "skipped_duplicates": skipped})
}

// loadSeed applies a seed payload to the store. Shared with the serve
// command's startup seeding.
func loadSeed(s *store.Store, payload *seedPayload) (loaded, skipped int) {
	for i := range payload.Products {
		p := payload.Products[i]
		if err := s.SaveProduct(&p); err != nil {
			skipped++
		} else {
			loaded++
		}
	}
	for _, scan := range payload.Scans {
		s.AppendScanEvent(scan.UserID, scan.ScanEvent)
		loaded++
	}
	return loaded, skipped
}

// LoadSeedFile reads a seed JSON file and applies it to the store.
func LoadSeedFile(s *store.Store, path string) (loaded, skipped int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}
	var payload seedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, 0, fmt.Errorf("parse error: %w", err)
	}
	loaded, skipped = loadSeed(s, &payload)
	return loaded, skipped, nil
}

// ─── Validation ───────────────────────────────────────────────────────────────

func validVerdict(v string) bool {
	switch v {
	case domain.VerdictGenuine, domain.VerdictSuspicious, domain.VerdictFake, domain.VerdictInvalid:
		return true
	}
	return false
}

func validModelType(t string) bool {
	switch t {
	case domain.ModelImageVerification, domain.ModelFraudScoring, domain.ModelBehaviorAnalysis:
		return true
	}
	return false
}

// Package domain contains all core types used across the application.
// Keeping domain types in one place makes the verification heuristics easy to reason about.
package domain

import "time"

// ─── Constants ───────────────────────────────────────────────────────────────

// Verdict values — the categorical authenticity outcome of a verification.
// INVALID is a structural failure (undecodable QR, unknown product) and is
// never derived from a score; low scores map to FAKE, not INVALID.
const (
	VerdictGenuine    = "GENUINE"
	VerdictSuspicious = "SUSPICIOUS"
	VerdictFake       = "FAKE"
	VerdictInvalid    = "INVALID"
)

// Risk level labels shared by behavior analysis and drift alerts.
const (
	RiskLow      = "low"      // 0-24
	RiskMedium   = "medium"   // 25-49
	RiskHigh     = "high"     // 50-74
	RiskCritical = "critical" // 75-100
)

// Model identifiers for performance tracking and drift alerts.
const (
	ModelImageVerification = "image_verification"
	ModelFraudScoring      = "fraud_scoring"
	ModelBehaviorAnalysis  = "behavior_analysis"
)

// Support intent categories matched by the escalation classifier.
const (
	IntentVerificationHelp = "verification_help"
	IntentProductQuestion  = "product_question"
	IntentTechnicalIssue   = "technical_issue"
	IntentFraudReport      = "fraud_report"
	IntentRegistration     = "registration"
	IntentScoring          = "scoring"
	IntentUnknown          = "unknown"
)

// User roles that carry role-specific anomaly rules.
const (
	RoleSME     = "sme"
	RoleAuditor = "auditor"
	RoleAdmin   = "admin"
)

// ─── Scoring thresholds ───────────────────────────────────────────────────────

// Verdict thresholds applied to the overall authenticity score.
// Platform documentation pins GENUINE at >= 80; both values are policy
// constants that deployments can override via config.
const (
	DefaultGenuineThreshold    = 80 // score >= 80           → GENUINE
	DefaultSuspiciousThreshold = 50 // 50 <= score < genuine → SUSPICIOUS
	// below suspicious → FAKE
)

// AnomalousThreshold is the behavior score above which a user is flagged.
const AnomalousThreshold = 30

// ─── Verification ─────────────────────────────────────────────────────────────

// VerificationRequest is the per-call input to the verdict engine.
// It is never persisted as-is; the engine produces a Verification record.
type VerificationRequest struct {
	QRPayload         string `json:"qr_payload"`
	ImageURL          string `json:"image_url,omitempty"`
	ExpectedProductID string `json:"expected_product_id,omitempty"`
	UserID            string `json:"user_id"`
	UserRole          string `json:"user_role,omitempty"`
	OrgID             string `json:"org_id,omitempty"`
	Location          string `json:"location,omitempty"`
}

// VerificationResult is the image-evidence analysis outcome.
// Degraded marks results produced through a documented fallback path
// (unreachable image, unavailable classifier/OCR) so optimistic defaults
// stay distinguishable from real detections.
type VerificationResult struct {
	LogoMatch         float64  `json:"logo_match"`      // [0,1]
	TamperingScore    float64  `json:"tampering_score"` // [0,1]
	TextExtracted     bool     `json:"text_extracted"`
	SerialNumberMatch bool     `json:"serial_number_match"`
	OverallScore      int      `json:"overall_score"` // [0,100]
	Factors           []string `json:"factors"`
	Degraded          bool     `json:"degraded"`
}

// Verification is the canonical stored record of one verification call.
type Verification struct {
	ID          string             `json:"id"`
	ProductID   string             `json:"product_id,omitempty"`
	UserID      string             `json:"user_id"`
	Verdict     string             `json:"verdict"`
	Result      VerificationResult `json:"result"`
	Explanation string             `json:"explanation"`
	ProcessedAt time.Time          `json:"processed_at"`
}

// Product is the registered product a QR payload resolves to.
type Product struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SerialNumber string    `json:"serial_number"`
	OrgID        string    `json:"org_id"`
	RegisteredAt time.Time `json:"registered_at"`
}

// ─── Behavior analysis ────────────────────────────────────────────────────────

// ScanEvent is one historical verification by a user, supplied in
// ascending timestamp order to the behavior detector.
type ScanEvent struct {
	Timestamp time.Time `json:"timestamp"`
	ProductID string    `json:"product_id"`
	Location  string    `json:"location,omitempty"`
	Verdict   string    `json:"verdict,omitempty"`
	AIScore   int       `json:"ai_score,omitempty"`
}

// AnomalySignal is a single behavior rule that fired, with its contribution.
// Exposing signals individually lets reviewers see why a user was flagged.
type AnomalySignal struct {
	Name        string `json:"name"`        // machine-readable identifier
	Description string `json:"description"` // human-readable explanation
	ScoreDelta  int    `json:"score_delta"` // points added to total score
}

// BehaviorAnomalyResult is the stateless outcome of analyzing one user's
// scan history. Confidence reflects sample size, not the score itself.
type BehaviorAnomalyResult struct {
	UserID          string          `json:"user_id"`
	IsAnomalous     bool            `json:"is_anomalous"`
	AnomalyScore    int             `json:"anomaly_score"` // [0,100]
	RiskLevel       string          `json:"risk_level"`    // low / medium / high / critical
	Anomalies       []string        `json:"anomalies"`
	Signals         []AnomalySignal `json:"signals"`
	Confidence      float64         `json:"confidence"` // [0,100]
	Recommendations []string        `json:"recommendations"`
}

// ─── Feedback & drift ─────────────────────────────────────────────────────────

// FalsePositiveReport is a human correction of a verdict.
// Created once, never deleted; Reviewed/ReviewResult are set exactly once
// when a reviewer closes it.
type FalsePositiveReport struct {
	ReportID            string    `json:"report_id"`
	VerificationID      string    `json:"verification_id"`
	ProductID           string    `json:"product_id"`
	UserID              string    `json:"user_id"`
	ModelType           string    `json:"model_type"`
	OriginalVerdict     string    `json:"original_verdict"`
	UserReportedVerdict string    `json:"user_reported_verdict"`
	AIScore             int       `json:"ai_score"`
	UserConfidence      float64   `json:"user_confidence"`
	Feedback            string    `json:"feedback"`
	EvidenceURL         string    `json:"evidence_url,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
	Reviewed            bool      `json:"reviewed"`
	ReviewResult        string    `json:"review_result,omitempty"`
}

// FeedbackSummary aggregates a batch of false-positive reports.
type FeedbackSummary struct {
	TotalReports          int            `json:"total_reports"`
	FalsePositives        int            `json:"false_positives"`
	FalseNegatives        int            `json:"false_negatives"`
	ByModel               map[string]int `json:"by_model"`
	AccuracyImpact        float64        `json:"accuracy_impact"`
	RecommendedRetraining bool           `json:"recommended_retraining"`
}

// EvaluationSample is one labeled prediction used for model evaluation.
type EvaluationSample struct {
	Predicted string `json:"predicted"`
	Actual    string `json:"actual"`
}

// ModelPerformance is one evaluation-run snapshot, retained historically
// so consecutive snapshots can be compared for drift.
type ModelPerformance struct {
	ModelID           string    `json:"model_id"`
	ModelType         string    `json:"model_type"`
	Accuracy          float64   `json:"accuracy"`
	Precision         float64   `json:"precision"`
	Recall            float64   `json:"recall"`
	F1Score           float64   `json:"f1_score"`
	FalsePositiveRate float64   `json:"false_positive_rate"`
	FalseNegativeRate float64   `json:"false_negative_rate"`
	SampleSize        int       `json:"sample_size"`
	LastEvaluated     time.Time `json:"last_evaluated"`
	DriftDetected     bool      `json:"drift_detected"`
	DriftScore        int       `json:"drift_score"` // [0,100]
}

// DriftMetrics carries the metric deltas behind a drift alert.
type DriftMetrics struct {
	PreviousAccuracy   float64 `json:"previous_accuracy"`
	CurrentAccuracy    float64 `json:"current_accuracy"`
	AccuracyDelta      float64 `json:"accuracy_delta"`
	FalsePositiveDelta float64 `json:"false_positive_delta"`
	FalseNegativeDelta float64 `json:"false_negative_delta"`
}

// DriftAlert is created only when drift crosses threshold; immutable after
// creation and kept as an audit trail.
type DriftAlert struct {
	AlertID           string       `json:"alert_id"`
	ModelID           string       `json:"model_id"`
	ModelType         string       `json:"model_type"`
	DriftScore        int          `json:"drift_score"` // [0,100]
	Severity          string       `json:"severity"`    // low / medium / high / critical
	Description       string       `json:"description"`
	Metrics           DriftMetrics `json:"metrics"`
	Timestamp         time.Time    `json:"timestamp"`
	RecommendedAction string       `json:"recommended_action"`
}

// RetrainingResult is the structured outcome of a best-effort retraining
// trigger. Failures are reported here, never as errors.
type RetrainingResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ─── Support classification ───────────────────────────────────────────────────

// SupportQuery is a user message plus the preceding conversation
// (user messages only, oldest first).
type SupportQuery struct {
	Message      string   `json:"message"`
	Conversation []string `json:"conversation,omitempty"`
}

// SupportResponse routes a query to an intent, with escalation when the
// classifier cannot be trusted or fraud is involved.
type SupportResponse struct {
	Intent       string  `json:"intent"`
	Confidence   float64 `json:"confidence"` // [0,1]
	Flagged      bool    `json:"flagged"`
	IncidentType string  `json:"incident_type,omitempty"`
	Reply        string  `json:"reply"`
}

// ─── Webhooks ─────────────────────────────────────────────────────────────────

// WebhookConfig is a registered callback for drift and behavior alerts.
type WebhookConfig struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	MinSeverity string    `json:"min_severity"` // fire when alert severity >= this
	CreatedAt   time.Time `json:"created_at"`
	Active      bool      `json:"active"`
}

// WebhookPayload is the body sent to registered webhook URLs.
type WebhookPayload struct {
	Event       string    `json:"event"` // "model_drift" | "anomalous_behavior"
	TriggeredAt time.Time `json:"triggered_at"`
	Severity    string    `json:"severity"`
	Data        any       `json:"data"`
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

// SeverityRank orders risk levels for webhook threshold comparison.
func SeverityRank(level string) int {
	switch level {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	}
	return -1
}

// RiskLevelFor maps a 0-100 score to its risk band.
func RiskLevelFor(score int) string {
	switch {
	case score < 25:
		return RiskLow
	case score < 50:
		return RiskMedium
	case score < 75:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// ClampScore bounds an integer score to [0,100].
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ClampFraction bounds a fractional rate to [0,1].
func ClampFraction(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Package feedback implements the model feedback loop: human corrections
// of verdicts, aggregate feedback analysis, labeled-batch model evaluation,
// drift detection against the historical baseline, and the best-effort
// retraining trigger.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"veriseal/authenticity-api/internal/domain"
	"veriseal/authenticity-api/internal/logging"
	"veriseal/authenticity-api/internal/store"
)

// ErrEmptyEvaluation is the one hard failure in this subsystem: an empty
// labeled batch is meaningless and must not silently produce a fabricated
// performance record.
var ErrEmptyEvaluation = errors.New("evaluation data must not be empty")

// Retraining gate: both conditions are required so a handful of noisy
// reports cannot trigger retraining on their own.
const (
	retrainingImpactThreshold = 0.15
	retrainingMinReports      = 20
)

// Drift significance and severity thresholds.
const (
	driftScoreSignificant   = 30
	accuracyDropSignificant = -0.10
	fpSpikeSignificant      = 0.15
)

// Monitor runs the feedback and drift pipeline. The archive is optional;
// a nil archive turns audit persistence into a no-op.
type Monitor struct {
	archive *store.Archive
}

// New creates a Monitor backed by the given audit archive (may be nil).
func New(archive *store.Archive) *Monitor {
	return &Monitor{archive: archive}
}

// ─── False-positive reports ───────────────────────────────────────────────────

// ReportInput is the reviewer-supplied portion of a feedback report.
type ReportInput struct {
	ProductID           string  `json:"product_id"`
	ModelType           string  `json:"model_type"`
	OriginalVerdict     string  `json:"original_verdict"`
	UserReportedVerdict string  `json:"user_reported_verdict"`
	AIScore             int     `json:"ai_score"`
	UserConfidence      float64 `json:"user_confidence"`
	Feedback            string  `json:"feedback"`
	EvidenceURL         string  `json:"evidence_url,omitempty"`
}

// ReportFalsePositive constructs a timestamped, unreviewed report.
// Pure construction: persistence is the caller's responsibility.
func (m *Monitor) ReportFalsePositive(verificationID, userID string, input ReportInput) *domain.FalsePositiveReport {
	modelType := input.ModelType
	if modelType == "" {
		modelType = domain.ModelImageVerification
	}
	return &domain.FalsePositiveReport{
		ReportID:            uuid.NewString(),
		VerificationID:      verificationID,
		ProductID:           input.ProductID,
		UserID:              userID,
		ModelType:           modelType,
		OriginalVerdict:     input.OriginalVerdict,
		UserReportedVerdict: input.UserReportedVerdict,
		AIScore:             input.AIScore,
		UserConfidence:      input.UserConfidence,
		Feedback:            input.Feedback,
		EvidenceURL:         input.EvidenceURL,
		Timestamp:           time.Now().UTC(),
		Reviewed:            false,
	}
}

// AggregateFalsePositives summarizes a batch of reports.
//
// Domain-specific definitions: a false positive is a verdict of FAKE the
// user reported GENUINE; a false negative is a GENUINE the user reported
// FAKE. Retraining is recommended only when the accuracy impact exceeds
// the threshold AND the sample is large enough to trust.
func (m *Monitor) AggregateFalsePositives(reports []*domain.FalsePositiveReport) domain.FeedbackSummary {
	summary := domain.FeedbackSummary{
		TotalReports: len(reports),
		ByModel:      make(map[string]int),
	}

	for _, r := range reports {
		summary.ByModel[r.ModelType]++
		switch {
		case r.OriginalVerdict == domain.VerdictFake && r.UserReportedVerdict == domain.VerdictGenuine:
			summary.FalsePositives++
		case r.OriginalVerdict == domain.VerdictGenuine && r.UserReportedVerdict == domain.VerdictFake:
			summary.FalseNegatives++
		}
	}

	if summary.TotalReports > 0 {
		summary.AccuracyImpact = float64(summary.FalsePositives+summary.FalseNegatives) / float64(summary.TotalReports)
	}
	summary.RecommendedRetraining = summary.AccuracyImpact > retrainingImpactThreshold &&
		summary.TotalReports > retrainingMinReports

	return summary
}

// ─── Model evaluation ─────────────────────────────────────────────────────────

// EvaluateModelPerformance computes a standard 2x2 confusion matrix over a
// labeled sample batch, where "fraud" means a FAKE or SUSPICIOUS verdict.
// Returns ErrEmptyEvaluation for an empty batch.
func (m *Monitor) EvaluateModelPerformance(modelType string, samples []domain.EvaluationSample) (*domain.ModelPerformance, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("evaluate %s: %w", modelType, ErrEmptyEvaluation)
	}

	var tp, tn, fp, fn int
	for _, s := range samples {
		predictedFraud := isFraudVerdict(s.Predicted)
		actualFraud := isFraudVerdict(s.Actual)
		switch {
		case predictedFraud && actualFraud:
			tp++
		case predictedFraud && !actualFraud:
			fp++
		case !predictedFraud && actualFraud:
			fn++
		default:
			tn++
		}
	}

	n := float64(len(samples))
	perf := &domain.ModelPerformance{
		ModelID:       fmt.Sprintf("%s-%s", modelType, uuid.NewString()[:8]),
		ModelType:     modelType,
		Accuracy:      float64(tp+tn) / n,
		Precision:     safeRatio(tp, tp+fp),
		Recall:        safeRatio(tp, tp+fn),
		SampleSize:    len(samples),
		LastEvaluated: time.Now().UTC(),
	}
	if perf.Precision+perf.Recall > 0 {
		perf.F1Score = 2 * perf.Precision * perf.Recall / (perf.Precision + perf.Recall)
	}
	perf.FalsePositiveRate = safeRatio(fp, fp+tn)
	perf.FalseNegativeRate = safeRatio(fn, fn+tp)
	return perf, nil
}

// ─── Drift detection ──────────────────────────────────────────────────────────

// DetectModelDrift compares a fresh snapshot to the historical baseline.
// A nil baseline returns nil — the first-ever evaluation cannot exhibit
// drift, and that is not an error. Insignificant drift also returns nil;
// an alert is created only when thresholds are crossed.
func (m *Monitor) DetectModelDrift(current, historical *domain.ModelPerformance) *domain.DriftAlert {
	if current == nil || historical == nil {
		return nil
	}

	accDelta := current.Accuracy - historical.Accuracy
	fpDelta := current.FalsePositiveRate - historical.FalsePositiveRate
	fnDelta := current.FalseNegativeRate - historical.FalseNegativeRate

	raw := 10 * (2*math.Abs(accDelta) + 1.5*math.Abs(fpDelta) + 1.5*math.Abs(fnDelta))
	driftScore := int(math.Min(100, math.Round(raw)))

	significant := driftScore > driftScoreSignificant ||
		accDelta < accuracyDropSignificant ||
		fpDelta > fpSpikeSignificant
	if !significant {
		return nil
	}

	alert := &domain.DriftAlert{
		AlertID:    uuid.NewString(),
		ModelID:    current.ModelID,
		ModelType:  current.ModelType,
		DriftScore: domain.ClampScore(driftScore),
		Severity:   driftSeverity(driftScore, accDelta),
		Description: fmt.Sprintf("Model %s performance drift: accuracy %.2f → %.2f (Δ%+.2f), FP rate Δ%+.2f, FN rate Δ%+.2f",
			current.ModelType, historical.Accuracy, current.Accuracy, accDelta, fpDelta, fnDelta),
		Metrics: domain.DriftMetrics{
			PreviousAccuracy:   historical.Accuracy,
			CurrentAccuracy:    current.Accuracy,
			AccuracyDelta:      accDelta,
			FalsePositiveDelta: fpDelta,
			FalseNegativeDelta: fnDelta,
		},
		Timestamp:         time.Now().UTC(),
		RecommendedAction: recommendedAction(accDelta, fpDelta, fnDelta),
	}
	return alert
}

func driftSeverity(driftScore int, accDelta float64) string {
	switch {
	case driftScore > 70 || accDelta < -0.20:
		return domain.RiskCritical
	case driftScore > 50 || accDelta < -0.15:
		return domain.RiskHigh
	case driftScore > 35 || accDelta < -0.10:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// recommendedAction is keyed to whichever metric dominated the
// degradation. A false-negative spike means missed fraud in the field and
// is framed as the most urgent.
func recommendedAction(accDelta, fpDelta, fnDelta float64) string {
	accDrop := math.Max(0, -accDelta)
	switch {
	case fnDelta > 0 && fnDelta >= fpDelta && fnDelta >= accDrop:
		return "URGENT: false-negative rate is rising — counterfeit products are passing verification. Retrain immediately with recent confirmed-fake samples."
	case fpDelta > 0 && fpDelta >= accDrop:
		return "False-positive rate is rising — genuine products are being flagged. Review recent reports and recalibrate the scoring thresholds before retraining."
	default:
		return "Overall accuracy is degrading. Schedule retraining on a refreshed labeled dataset and re-evaluate."
	}
}

// ─── Retraining ───────────────────────────────────────────────────────────────

// TriggerRetraining records a retraining request for a model. Retraining
// is a best-effort side operation: failures are reported in the result,
// never thrown.
func (m *Monitor) TriggerRetraining(ctx context.Context, modelID string, alert *domain.DriftAlert) domain.RetrainingResult {
	if alert == nil {
		return domain.RetrainingResult{Success: false, Message: "no drift alert supplied; retraining not requested"}
	}
	if err := m.archive.AppendRetrainingRequest(ctx, modelID, alert.AlertID); err != nil {
		logging.Log.WithField("model_id", modelID).WithError(err).
			Error("feedback: failed to record retraining request")
		return domain.RetrainingResult{
			Success: false,
			Message: fmt.Sprintf("failed to record retraining request: %v", err),
		}
	}
	logging.Log.WithField("model_id", modelID).WithField("alert_id", alert.AlertID).
		Info("feedback: retraining requested")
	return domain.RetrainingResult{
		Success: true,
		Message: fmt.Sprintf("retraining requested for model %s (alert %s)", modelID, alert.AlertID),
	}
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func isFraudVerdict(v string) bool {
	return v == domain.VerdictFake || v == domain.VerdictSuspicious
}

func safeRatio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

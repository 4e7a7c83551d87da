package feedback_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"veriseal/authenticity-api/internal/domain"
	"veriseal/authenticity-api/internal/feedback"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

func newMonitor() *feedback.Monitor {
	return feedback.New(nil) // archive-less: persistence is a no-op
}

// perf builds a performance snapshot with the given headline metrics.
func perf(modelType string, accuracy, fpr, fnr float64) *domain.ModelPerformance {
	return &domain.ModelPerformance{
		ModelID:           modelType + "-test",
		ModelType:         modelType,
		Accuracy:          accuracy,
		FalsePositiveRate: fpr,
		FalseNegativeRate: fnr,
		SampleSize:        200,
	}
}

// reports builds `total` reports of which `fp` are FAKE→GENUINE corrections.
func reports(total, fp int) []*domain.FalsePositiveReport {
	out := make([]*domain.FalsePositiveReport, total)
	for i := range out {
		r := &domain.FalsePositiveReport{
			ReportID:            fmt.Sprintf("rep-%03d", i),
			ModelType:           domain.ModelImageVerification,
			OriginalVerdict:     domain.VerdictGenuine,
			UserReportedVerdict: domain.VerdictGenuine,
		}
		if i < fp {
			r.OriginalVerdict = domain.VerdictFake
			r.UserReportedVerdict = domain.VerdictGenuine
		}
		out[i] = r
	}
	return out
}

// ─── Report construction ──────────────────────────────────────────────────────

func TestReportFalsePositive_Defaults(t *testing.T) {
	m := newMonitor()

	r := m.ReportFalsePositive("ver-1", "user-1", feedback.ReportInput{
		OriginalVerdict:     domain.VerdictFake,
		UserReportedVerdict: domain.VerdictGenuine,
		AIScore:             32,
	})

	if r.ReportID == "" {
		t.Error("ReportID not assigned")
	}
	if r.ModelType != domain.ModelImageVerification {
		t.Errorf("ModelType = %q, want default image_verification", r.ModelType)
	}
	if r.Reviewed {
		t.Error("new report must start unreviewed")
	}
	if r.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

// ─── Aggregation ──────────────────────────────────────────────────────────────

func TestAggregate_RetrainingGate(t *testing.T) {
	m := newMonitor()

	// 5 corrections out of 25: impact 0.20 > 0.15 with enough volume.
	summary := m.AggregateFalsePositives(reports(25, 5))
	if summary.FalsePositives != 5 {
		t.Errorf("FalsePositives = %d, want 5", summary.FalsePositives)
	}
	if summary.AccuracyImpact != 0.2 {
		t.Errorf("AccuracyImpact = %.2f, want 0.20", summary.AccuracyImpact)
	}
	if !summary.RecommendedRetraining {
		t.Error("retraining not recommended at 20% impact over 25 reports")
	}

	// Same ratio on a small sample: volume gate holds it back.
	small := m.AggregateFalsePositives(reports(10, 5))
	if small.RecommendedRetraining {
		t.Error("retraining recommended on only 10 reports")
	}
}

func TestAggregate_FalseNegativesAndByModel(t *testing.T) {
	m := newMonitor()
	batch := []*domain.FalsePositiveReport{
		{ModelType: domain.ModelImageVerification, OriginalVerdict: domain.VerdictGenuine, UserReportedVerdict: domain.VerdictFake},
		{ModelType: domain.ModelBehaviorAnalysis, OriginalVerdict: domain.VerdictFake, UserReportedVerdict: domain.VerdictGenuine},
		{ModelType: domain.ModelBehaviorAnalysis, OriginalVerdict: domain.VerdictSuspicious, UserReportedVerdict: domain.VerdictGenuine},
	}

	summary := m.AggregateFalsePositives(batch)

	if summary.FalseNegatives != 1 {
		t.Errorf("FalseNegatives = %d, want 1", summary.FalseNegatives)
	}
	// SUSPICIOUS→GENUINE is a disagreement but not a hard false positive.
	if summary.FalsePositives != 1 {
		t.Errorf("FalsePositives = %d, want 1", summary.FalsePositives)
	}
	if summary.ByModel[domain.ModelBehaviorAnalysis] != 2 {
		t.Errorf("ByModel = %v", summary.ByModel)
	}
}

func TestAggregate_EmptyBatch(t *testing.T) {
	m := newMonitor()
	summary := m.AggregateFalsePositives(nil)
	if summary.AccuracyImpact != 0 || summary.RecommendedRetraining {
		t.Errorf("empty batch summary = %+v, want zeros", summary)
	}
}

// ─── Evaluation ───────────────────────────────────────────────────────────────

func TestEvaluate_EmptyBatchFails(t *testing.T) {
	m := newMonitor()
	_, err := m.EvaluateModelPerformance(domain.ModelImageVerification, nil)
	if !errors.Is(err, feedback.ErrEmptyEvaluation) {
		t.Fatalf("err = %v, want ErrEmptyEvaluation", err)
	}
}

func TestEvaluate_ConfusionMatrix(t *testing.T) {
	m := newMonitor()

	// Fraud = FAKE or SUSPICIOUS. 4 TP, 3 TN, 2 FP, 1 FN.
	samples := []domain.EvaluationSample{
		{Predicted: domain.VerdictFake, Actual: domain.VerdictFake},
		{Predicted: domain.VerdictFake, Actual: domain.VerdictSuspicious},
		{Predicted: domain.VerdictSuspicious, Actual: domain.VerdictFake},
		{Predicted: domain.VerdictSuspicious, Actual: domain.VerdictSuspicious},
		{Predicted: domain.VerdictGenuine, Actual: domain.VerdictGenuine},
		{Predicted: domain.VerdictGenuine, Actual: domain.VerdictGenuine},
		{Predicted: domain.VerdictGenuine, Actual: domain.VerdictGenuine},
		{Predicted: domain.VerdictFake, Actual: domain.VerdictGenuine},
		{Predicted: domain.VerdictSuspicious, Actual: domain.VerdictGenuine},
		{Predicted: domain.VerdictGenuine, Actual: domain.VerdictFake},
	}

	p, err := m.EvaluateModelPerformance(domain.ModelFraudScoring, samples)
	if err != nil {
		t.Fatalf("EvaluateModelPerformance: %v", err)
	}

	if p.Accuracy != 0.7 {
		t.Errorf("Accuracy = %.3f, want 0.7", p.Accuracy)
	}
	if want := 4.0 / 6.0; p.Precision != want {
		t.Errorf("Precision = %.3f, want %.3f", p.Precision, want)
	}
	if p.Recall != 0.8 {
		t.Errorf("Recall = %.3f, want 0.8", p.Recall)
	}
	if p.FalsePositiveRate != 0.4 {
		t.Errorf("FalsePositiveRate = %.3f, want 0.4", p.FalsePositiveRate)
	}
	if p.FalseNegativeRate != 0.2 {
		t.Errorf("FalseNegativeRate = %.3f, want 0.2", p.FalseNegativeRate)
	}
	if p.SampleSize != 10 {
		t.Errorf("SampleSize = %d, want 10", p.SampleSize)
	}
	if !strings.HasPrefix(p.ModelID, domain.ModelFraudScoring+"-") {
		t.Errorf("ModelID = %q, want model-type prefix", p.ModelID)
	}
}

// All predictions on one side must not divide by zero.
func TestEvaluate_DegenerateBatch(t *testing.T) {
	m := newMonitor()
	samples := []domain.EvaluationSample{
		{Predicted: domain.VerdictGenuine, Actual: domain.VerdictGenuine},
		{Predicted: domain.VerdictGenuine, Actual: domain.VerdictGenuine},
	}

	p, err := m.EvaluateModelPerformance(domain.ModelImageVerification, samples)
	if err != nil {
		t.Fatalf("EvaluateModelPerformance: %v", err)
	}
	if p.Accuracy != 1.0 || p.Precision != 0 || p.Recall != 0 || p.F1Score != 0 {
		t.Errorf("degenerate batch = %+v, want accuracy 1 and zeroed ratios", p)
	}
}

// ─── Drift detection ──────────────────────────────────────────────────────────

func TestDrift_NoBaseline(t *testing.T) {
	m := newMonitor()
	current := perf(domain.ModelImageVerification, 0.9, 0.05, 0.05)

	if alert := m.DetectModelDrift(current, nil); alert != nil {
		t.Errorf("first evaluation produced a drift alert: %+v", alert)
	}
}

func TestDrift_InsignificantChange(t *testing.T) {
	m := newMonitor()
	baseline := perf(domain.ModelImageVerification, 0.90, 0.05, 0.05)
	current := perf(domain.ModelImageVerification, 0.88, 0.06, 0.05)

	if alert := m.DetectModelDrift(current, baseline); alert != nil {
		t.Errorf("minor wobble produced a drift alert: %+v", alert)
	}
}

func TestDrift_SevereAccuracyDrop(t *testing.T) {
	m := newMonitor()
	baseline := perf(domain.ModelImageVerification, 0.90, 0.05, 0.05)
	current := perf(domain.ModelImageVerification, 0.65, 0.05, 0.05)

	alert := m.DetectModelDrift(current, baseline)
	if alert == nil {
		t.Fatal("25-point accuracy drop produced no alert")
	}
	if alert.Severity != domain.RiskCritical {
		t.Errorf("Severity = %q, want critical", alert.Severity)
	}
	if alert.Metrics.AccuracyDelta != -0.25 {
		t.Errorf("AccuracyDelta = %.2f, want -0.25", alert.Metrics.AccuracyDelta)
	}
	if !strings.Contains(alert.RecommendedAction, "accuracy") {
		t.Errorf("RecommendedAction = %q", alert.RecommendedAction)
	}
}

func TestDrift_FalseNegativeSpikeDominates(t *testing.T) {
	m := newMonitor()
	baseline := perf(domain.ModelFraudScoring, 0.90, 0.05, 0.05)
	current := perf(domain.ModelFraudScoring, 0.78, 0.05, 0.35)

	alert := m.DetectModelDrift(current, baseline)
	if alert == nil {
		t.Fatal("false-negative spike produced no alert")
	}
	if !strings.Contains(alert.RecommendedAction, "URGENT") {
		t.Errorf("RecommendedAction = %q, want urgent false-negative framing", alert.RecommendedAction)
	}
}

func TestDrift_FalsePositiveSpike(t *testing.T) {
	m := newMonitor()
	baseline := perf(domain.ModelImageVerification, 0.90, 0.05, 0.05)
	current := perf(domain.ModelImageVerification, 0.86, 0.25, 0.05)

	alert := m.DetectModelDrift(current, baseline)
	if alert == nil {
		t.Fatal("false-positive spike produced no alert")
	}
	if !strings.Contains(alert.RecommendedAction, "False-positive") {
		t.Errorf("RecommendedAction = %q, want false-positive framing", alert.RecommendedAction)
	}
}

// ─── Retraining ───────────────────────────────────────────────────────────────

func TestTriggerRetraining(t *testing.T) {
	m := newMonitor()
	ctx := context.Background()

	// Without an alert the request is refused, not errored.
	result := m.TriggerRetraining(ctx, "model-x", nil)
	if result.Success {
		t.Error("retraining succeeded without a drift alert")
	}

	alert := &domain.DriftAlert{AlertID: "alert-1", ModelID: "model-x"}
	result = m.TriggerRetraining(ctx, "model-x", alert)
	if !result.Success {
		t.Errorf("retraining failed: %s", result.Message)
	}
	if !strings.Contains(result.Message, "model-x") {
		t.Errorf("Message = %q, want model reference", result.Message)
	}
}

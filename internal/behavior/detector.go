// Package behavior implements the scan-behavior anomaly detector.
//
// Scoring philosophy (shared with the image analyzer):
//   Each rule contributes a non-negative delta to the total score.
//   Rules are independent — multiple can fire simultaneously — and the
//   total is clamped to [0, 100].
//
// The detector is stateless: it derives everything from the supplied scan
// history and holds no memory between evaluations. Confidence reflects
// sample size, not the anomaly score — a single suspicious scan is a weak
// basis for judging a user, however suspicious it looks.
package behavior

import (
	"fmt"
	"time"

	"veriseal/authenticity-api/internal/domain"
)

// Feature thresholds used by the anomaly rules.
const (
	burstScansPerHour    = 20 // above this: critical frequency
	highScansPerHour     = 10 // above this: high frequency
	minMeanInterval      = 5 * time.Second
	minDiversityRatio    = 0.2
	maxFailureRatio      = 0.5
	maxSuspiciousRatio   = 0.3
	maxLocationSpread    = 10
	minDistinctHours     = 3
	smeDailyScanCeiling  = 50
	// A burst that fits in a few hours says nothing about time-of-day
	// concentration; the spread rule only applies once the history spans
	// long enough for spreading to have been possible.
	minSpanForTimeSpread = 6 * time.Hour
)

// recommendations maps each rule to the action suggested when it fires.
var recommendations = map[string]string{
	"excessive_frequency":  "Temporarily rate-limit this user and require CAPTCHA on further scans",
	"high_frequency":       "Monitor scan rate; consider a soft rate limit",
	"regular_intervals":    "Challenge with CAPTCHA — machine-regular intervals indicate automation",
	"low_diversity":        "Review repeated scans of the same product for counterfeit probing",
	"high_failure_rate":    "Suspend scanning privileges pending manual review of failed verifications",
	"high_suspicious_rate": "Escalate to the fraud team — user repeatedly scans suspect products",
	"location_spread":      "Verify account ownership — scans originate from implausibly many locations",
	"limited_time_spread":  "Review for scheduled automation — activity is concentrated in few hours",
	"sme_volume":           "Confirm bulk-scanning is expected for this SME account",
}

// Detector analyzes user scan histories. Stateless and safe for
// concurrent use.
type Detector struct{}

// New creates a Detector.
func New() *Detector {
	return &Detector{}
}

// AnalyzeUserBehavior evaluates a user's chronological scan history
// (ascending by timestamp) and returns the anomaly assessment.
//
// An empty history short-circuits to a non-anomalous, zero-confidence
// result without evaluating any rule.
func (d *Detector) AnalyzeUserBehavior(userID string, history []domain.ScanEvent, userRole, orgID string) domain.BehaviorAnomalyResult {
	if len(history) == 0 {
		return domain.BehaviorAnomalyResult{
			UserID:    userID,
			RiskLevel: domain.RiskLow,
		}
	}

	f := computeFeatures(history, userRole)

	rules := []func(*features) []domain.AnomalySignal{
		ruleFrequency,
		ruleRegularIntervals,
		ruleProductDiversity,
		ruleFailureRate,
		ruleSuspiciousRate,
		ruleLocationSpread,
		ruleTimeSpread,
		ruleSMEVolume,
	}

	var signals []domain.AnomalySignal
	for _, rule := range rules {
		signals = append(signals, rule(f)...)
	}

	total := 0
	result := domain.BehaviorAnomalyResult{UserID: userID, Signals: signals}
	for _, s := range signals {
		total += s.ScoreDelta
		result.Anomalies = append(result.Anomalies, s.Description)
		if rec, ok := recommendations[s.Name]; ok {
			result.Recommendations = append(result.Recommendations, rec)
		}
	}

	result.AnomalyScore = domain.ClampScore(total)
	result.RiskLevel = domain.RiskLevelFor(result.AnomalyScore)
	result.IsAnomalous = result.AnomalyScore > domain.AnomalousThreshold

	confidence := float64(len(history)) / 100 * 100
	if confidence > 100 {
		confidence = 100
	}
	result.Confidence = confidence

	return result
}

// ─── Feature extraction ───────────────────────────────────────────────────────

// features bundles the statistics all rules read, computed in one pass so
// rules stay cheap and declarative. The reference "now" is the newest scan
// timestamp, keeping evaluation deterministic over historical windows.
type features struct {
	total             int
	lastHour          int
	lastDay           int
	lastWeek          int
	uniqueProducts    int
	suspiciousScans   int
	failures          int
	meanInterval      time.Duration
	distinctHours     int
	peakHour          int
	distinctLocations int
	span              time.Duration
	role              string
}

func computeFeatures(history []domain.ScanEvent, role string) *features {
	f := &features{total: len(history), role: role}

	now := history[len(history)-1].Timestamp
	hourAgo := now.Add(-time.Hour)
	dayAgo := now.Add(-24 * time.Hour)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	products := make(map[string]bool)
	locations := make(map[string]bool)
	var hours [24]int

	for _, e := range history {
		if !e.Timestamp.Before(hourAgo) {
			f.lastHour++
		}
		if !e.Timestamp.Before(dayAgo) {
			f.lastDay++
		}
		if !e.Timestamp.Before(weekAgo) {
			f.lastWeek++
		}

		products[e.ProductID] = true
		if e.Location != "" {
			locations[e.Location] = true
		}
		hours[e.Timestamp.UTC().Hour()]++

		switch e.Verdict {
		case domain.VerdictFake, domain.VerdictSuspicious:
			f.suspiciousScans++
		case domain.VerdictInvalid:
			f.failures++
		default:
			if e.AIScore > 0 && e.AIScore < 50 {
				f.suspiciousScans++
			}
		}
	}

	f.uniqueProducts = len(products)
	f.distinctLocations = len(locations)
	for h, n := range hours {
		if n == 0 {
			continue
		}
		f.distinctHours++
		if n > hours[f.peakHour] {
			f.peakHour = h
		}
	}

	f.span = now.Sub(history[0].Timestamp)
	if len(history) > 1 {
		f.meanInterval = f.span / time.Duration(len(history)-1)
	}
	return f
}

// ─── Rules ────────────────────────────────────────────────────────────────────

func ruleFrequency(f *features) []domain.AnomalySignal {
	switch {
	case f.lastHour > burstScansPerHour:
		return []domain.AnomalySignal{{
			Name:        "excessive_frequency",
			Description: fmt.Sprintf("Excessive scanning frequency: %d scans in the last hour", f.lastHour),
			ScoreDelta:  40,
		}}
	case f.lastHour >= highScansPerHour:
		return []domain.AnomalySignal{{
			Name:        "high_frequency",
			Description: fmt.Sprintf("High scanning frequency: %d scans in the last hour", f.lastHour),
			ScoreDelta:  20,
		}}
	}
	return nil
}

func ruleRegularIntervals(f *features) []domain.AnomalySignal {
	// Humans don't scan every few seconds for minutes on end; bots do.
	if f.meanInterval < minMeanInterval && f.total > 5 {
		return []domain.AnomalySignal{{
			Name:        "regular_intervals",
			Description: fmt.Sprintf("Suspiciously regular scan intervals (mean %.1fs)", f.meanInterval.Seconds()),
			ScoreDelta:  30,
		}}
	}
	return nil
}

func ruleProductDiversity(f *features) []domain.AnomalySignal {
	ratio := float64(f.uniqueProducts) / float64(f.total)
	if ratio < minDiversityRatio && f.total > 10 {
		return []domain.AnomalySignal{{
			Name:        "low_diversity",
			Description: fmt.Sprintf("Low product diversity: %d unique products across %d scans", f.uniqueProducts, f.total),
			ScoreDelta:  25,
		}}
	}
	return nil
}

func ruleFailureRate(f *features) []domain.AnomalySignal {
	ratio := float64(f.failures) / float64(f.total)
	if ratio > maxFailureRatio && f.total > 5 {
		return []domain.AnomalySignal{{
			Name:        "high_failure_rate",
			Description: fmt.Sprintf("High verification failure rate: %d of %d scans invalid", f.failures, f.total),
			ScoreDelta:  35,
		}}
	}
	return nil
}

func ruleSuspiciousRate(f *features) []domain.AnomalySignal {
	ratio := float64(f.suspiciousScans) / float64(f.total)
	if ratio > maxSuspiciousRatio && f.total > 5 {
		return []domain.AnomalySignal{{
			Name:        "high_suspicious_rate",
			Description: fmt.Sprintf("High suspicious-scan rate: %d of %d scans flagged fake or suspicious", f.suspiciousScans, f.total),
			ScoreDelta:  30,
		}}
	}
	return nil
}

func ruleLocationSpread(f *features) []domain.AnomalySignal {
	// Many locations over few scans is physically implausible for one user.
	if f.distinctLocations > maxLocationSpread && f.total < 20 {
		return []domain.AnomalySignal{{
			Name:        "location_spread",
			Description: fmt.Sprintf("Unusual location spread: %d distinct locations across %d scans", f.distinctLocations, f.total),
			ScoreDelta:  20,
		}}
	}
	return nil
}

func ruleTimeSpread(f *features) []domain.AnomalySignal {
	if f.distinctHours < minDistinctHours && f.total > 10 && f.span > minSpanForTimeSpread {
		return []domain.AnomalySignal{{
			Name:        "limited_time_spread",
			Description: fmt.Sprintf("Activity concentrated in %d hour(s) of the day (peak %02d:00)", f.distinctHours, f.peakHour),
			ScoreDelta:  15,
		}}
	}
	return nil
}

func ruleSMEVolume(f *features) []domain.AnomalySignal {
	if f.role == domain.RoleSME && f.lastDay > smeDailyScanCeiling {
		return []domain.AnomalySignal{{
			Name:        "sme_volume",
			Description: fmt.Sprintf("Abnormal SME scan volume: %d scans in the last day", f.lastDay),
			ScoreDelta:  25,
		}}
	}
	return nil
}

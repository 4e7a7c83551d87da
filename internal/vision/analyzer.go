// Package vision implements the image evidence analyzer: logo/packaging
// detection, tampering heuristics, and OCR serial extraction, composed into
// a single authenticity score.
//
// Error philosophy:
//   Evidence sources are unreliable by nature — images disappear, the
//   classifier and OCR services go down. Analysis therefore never fails on
//   unreachable evidence; each signal degrades to its documented fallback
//   and marks the result Degraded so optimistic defaults stay
//   distinguishable from real detections. Fallbacks are logged because they
//   silently lower confidence in production.
package vision

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"veriseal/authenticity-api/internal/domain"
	"veriseal/authenticity-api/internal/logging"
)

// Tampering heuristics. Each triggered signal adds its increment; the sum
// is clamped to 1.0.
const (
	tamperBadContentType = 0.3  // declared content type is not an image
	tamperTinyPayload    = 0.15 // compression-artifact proxy
	tamperHugePayload    = 0.1  // steganography proxy

	tamperDetectThreshold = 0.4
	tamperBaseConfidence  = 85

	minPayloadBytes = 1 << 10  // 1 KiB
	maxPayloadBytes = 10 << 20 // 10 MiB
)

// Optimistic classifier-outage fallback. Known weak point: defaulting to
// "logo detected" can mask real tampering, so callers must check Degraded.
const (
	fallbackLogoConfidence = 70
	fallbackLogoScore      = 0.7
)

// packagingKeywords is the label set treated as evidence of branded
// packaging when matched against classifier output.
var packagingKeywords = []string{
	"packaging", "label", "logo", "brand", "box", "bottle", "container",
	"package", "carton", "product",
}

// serialPattern matches candidate serial numbers: runs of 6+ uppercase
// alphanumeric characters in OCR output.
var serialPattern = regexp.MustCompile(`[A-Z0-9]{6,}`)

// ─── Results ──────────────────────────────────────────────────────────────────

// LogoResult is the outcome of logo/packaging classification.
type LogoResult struct {
	Confidence      int      `json:"confidence"` // [0,100]
	DetectedObjects []string `json:"detected_objects"`
	HasLogo         bool     `json:"has_logo"`
	Score           float64  `json:"score"` // [0,1]
	Degraded        bool     `json:"degraded"`
}

// TamperResult is the outcome of the tampering heuristics.
type TamperResult struct {
	TamperingDetected bool     `json:"tampering_detected"`
	Confidence        int      `json:"confidence"` // [0,100]
	Defects           []string `json:"defects"`
	Score             float64  `json:"score"` // [0,1]
	Degraded          bool     `json:"degraded"`
}

// OCRResult is the outcome of text extraction.
type OCRResult struct {
	Text          string   `json:"text"`
	Confidence    float64  `json:"confidence"`
	SerialNumbers []string `json:"serial_numbers"`
	Degraded      bool     `json:"degraded"`
}

// ─── Analyzer ─────────────────────────────────────────────────────────────────

// Analyzer runs image evidence analysis through injected capabilities.
// It is stateless and safe for concurrent use.
type Analyzer struct {
	fetcher    Fetcher
	classifier Classifier
	ocr        OCR
}

// New creates an Analyzer with the given capabilities.
func New(f Fetcher, c Classifier, o OCR) *Analyzer {
	return &Analyzer{fetcher: f, classifier: c, ocr: o}
}

// AnalyzeLogoPackaging classifies the image and reports whether any of the
// top predicted labels matches the packaging/brand keyword set.
//
// Unreachable image → zero-confidence default. Classifier outage →
// optimistic default (confidence 70, HasLogo=true), flagged Degraded.
func (a *Analyzer) AnalyzeLogoPackaging(ctx context.Context, imageURL string) LogoResult {
	if _, err := a.fetcher.Head(ctx, imageURL); err != nil {
		logging.Log.WithField("image_url", imageURL).WithError(err).
			Warn("vision: image unreachable, logo analysis degraded to zero confidence")
		return LogoResult{Degraded: true}
	}

	labels, err := a.classifier.Classify(ctx, imageURL)
	if err != nil {
		logging.Log.WithField("image_url", imageURL).WithError(err).
			Warn("vision: classifier unavailable, using optimistic logo default")
		return LogoResult{
			Confidence: fallbackLogoConfidence,
			HasLogo:    true,
			Score:      fallbackLogoScore,
			Degraded:   true,
		}
	}

	result := LogoResult{DetectedObjects: make([]string, 0, len(labels))}
	var best float64
	for _, l := range labels {
		result.DetectedObjects = append(result.DetectedObjects, l.Name)
		if l.Probability > best {
			best = l.Probability
		}
		if !result.HasLogo && matchesPackaging(l.Name) {
			result.HasLogo = true
			result.Score = domain.ClampFraction(l.Probability)
			result.Confidence = int(l.Probability*100 + 0.5)
		}
	}
	if !result.HasLogo {
		// Confident classification of something that isn't packaging.
		result.Confidence = int(best*100 + 0.5)
	}
	return result
}

// DetectTampering combines heuristic signals from the image payload:
// invalid declared content type, suspiciously small payload, suspiciously
// large payload. Unreachable image → zero-confidence default.
func (a *Analyzer) DetectTampering(ctx context.Context, imageURL string) TamperResult {
	head, err := a.fetcher.Head(ctx, imageURL)
	if err != nil {
		logging.Log.WithField("image_url", imageURL).WithError(err).
			Warn("vision: image unreachable, tampering analysis degraded to zero confidence")
		return TamperResult{Degraded: true}
	}

	info := head
	deepFailed := false
	if got, err := a.fetcher.Get(ctx, imageURL); err != nil {
		// Fall back to HEAD metadata but lower confidence: the payload
		// itself was never inspected.
		deepFailed = true
		logging.Log.WithField("image_url", imageURL).WithError(err).
			Warn("vision: deep fetch failed, tampering confidence lowered")
	} else {
		info = got
	}

	result := TamperResult{}
	if info.ContentType != "" && !strings.HasPrefix(info.ContentType, "image/") {
		result.Score += tamperBadContentType
		result.Defects = append(result.Defects,
			fmt.Sprintf("declared content type %q is not an image", info.ContentType))
	}
	if info.ContentLength > 0 && info.ContentLength < minPayloadBytes {
		result.Score += tamperTinyPayload
		result.Defects = append(result.Defects,
			fmt.Sprintf("payload suspiciously small (%d bytes, possible recompression)", info.ContentLength))
	}
	if info.ContentLength > maxPayloadBytes {
		result.Score += tamperHugePayload
		result.Defects = append(result.Defects,
			fmt.Sprintf("payload suspiciously large (%d bytes, possible embedded data)", info.ContentLength))
	}
	result.Score = domain.ClampFraction(result.Score)
	result.TamperingDetected = result.Score > tamperDetectThreshold

	switch {
	case deepFailed:
		result.Confidence = 50
		result.Degraded = true
	case result.TamperingDetected:
		c := tamperBaseConfidence - int(result.Score*20)
		if c < 60 {
			c = 60
		}
		result.Confidence = c
	default:
		result.Confidence = tamperBaseConfidence
	}
	return result
}

// ExtractText runs OCR over the image and pattern-matches candidate serial
// numbers. OCR outage → empty zero-confidence result, flagged Degraded.
func (a *Analyzer) ExtractText(ctx context.Context, imageURL string) OCRResult {
	text, confidence, err := a.ocr.Extract(ctx, imageURL)
	if err != nil {
		logging.Log.WithField("image_url", imageURL).WithError(err).
			Warn("vision: OCR unavailable, text extraction degraded")
		return OCRResult{Degraded: true}
	}
	return OCRResult{
		Text:          text,
		Confidence:    confidence,
		SerialNumbers: serialPattern.FindAllString(text, -1),
	}
}

// VerifyImage composes logo, tampering, and OCR analysis into a single
// overall score starting at 50. Each applied adjustment is recorded as a
// human-readable factor. The three signals are independent: a degraded
// signal contributes its fallback value without aborting the others.
func (a *Analyzer) VerifyImage(ctx context.Context, imageURL, expectedProductID string) domain.VerificationResult {
	logo := a.AnalyzeLogoPackaging(ctx, imageURL)
	tamper := a.DetectTampering(ctx, imageURL)
	ocr := a.ExtractText(ctx, imageURL)

	result := domain.VerificationResult{
		LogoMatch:      logo.Score,
		TamperingScore: tamper.Score,
		TextExtracted:  ocr.Text != "",
		Degraded:       logo.Degraded || tamper.Degraded || ocr.Degraded,
	}

	score := 50
	adjust := func(delta int, description string) {
		score += delta
		if delta >= 0 {
			result.Factors = append(result.Factors, fmt.Sprintf("%s (+%d)", description, delta))
		} else {
			result.Factors = append(result.Factors, fmt.Sprintf("%s (%d)", description, delta))
		}
	}

	if logo.HasLogo {
		adjust(20, "Logo/packaging detected")
	} else {
		adjust(-15, "No logo or packaging detected")
	}

	if tamper.TamperingDetected {
		adjust(-30, fmt.Sprintf("Tampering indicators present: %s", strings.Join(tamper.Defects, "; ")))
	} else {
		adjust(10, "No tampering indicators")
	}

	if result.TextExtracted {
		adjust(10, "Readable text extracted from image")
	}

	if expectedProductID != "" && len(ocr.SerialNumbers) > 0 {
		if serialMatches(ocr.SerialNumbers, expectedProductID) {
			result.SerialNumberMatch = true
			adjust(15, fmt.Sprintf("Serial number matches expected product %s", expectedProductID))
		} else {
			adjust(-10, fmt.Sprintf("Extracted serial numbers do not match expected product %s", expectedProductID))
		}
	}

	if result.Degraded {
		result.Factors = append(result.Factors, "One or more evidence sources degraded to fallback values")
	}

	result.OverallScore = domain.ClampScore(score)
	return result
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func matchesPackaging(label string) bool {
	l := strings.ToLower(label)
	for _, kw := range packagingKeywords {
		if strings.Contains(l, kw) {
			return true
		}
	}
	return false
}

// serialMatches accepts either exact (case-insensitive) equality or
// containment in either direction, since printed serials often carry
// prefixes the registry omits.
func serialMatches(serials []string, expected string) bool {
	want := strings.ToUpper(expected)
	for _, s := range serials {
		su := strings.ToUpper(s)
		if su == want || strings.Contains(su, want) || strings.Contains(want, su) {
			return true
		}
	}
	return false
}

// Package verdict implements the verification composition layer: QR payload
// decoding, product lookup, image evidence, and the score-to-verdict policy.
//
// Architecture:
//   The engine is intentionally stateless — it reads registered products
//   from the store but never writes to it. Persisting the verification and
//   appending the scan event happen in the HTTP handler after the verdict,
//   so the current scan is not counted against its own user history.
//
// INVALID is a structurally distinct failure path (undecodable QR, unknown
// product), never a score bucket: a product that scores poorly is FAKE,
// a request that cannot be resolved at all is INVALID.
package verdict

import (
	"context"
	"fmt"
	"strings"
	"time"

	"veriseal/authenticity-api/internal/domain"
	"veriseal/authenticity-api/internal/store"
	"veriseal/authenticity-api/internal/vision"
)

// Engine combines QR decoding, product lookup, and image analysis into a
// categorical verdict.
type Engine struct {
	store    *store.Store
	analyzer *vision.Analyzer

	genuineThreshold    int
	suspiciousThreshold int
}

// New creates a verdict engine with the default policy thresholds.
func New(s *store.Store, a *vision.Analyzer) *Engine {
	return &Engine{
		store:               s,
		analyzer:            a,
		genuineThreshold:    domain.DefaultGenuineThreshold,
		suspiciousThreshold: domain.DefaultSuspiciousThreshold,
	}
}

// WithThresholds overrides the score-to-verdict policy constants.
func (e *Engine) WithThresholds(genuine, suspicious int) *Engine {
	e.genuineThreshold = genuine
	e.suspiciousThreshold = suspicious
	return e
}

// Verify resolves the QR payload, gathers evidence, and produces the full
// verification record. It never returns an error: unresolvable requests
// yield an INVALID verdict, degraded evidence yields a flagged result.
func (e *Engine) Verify(ctx context.Context, req *domain.VerificationRequest) *domain.Verification {
	now := time.Now().UTC()

	productID, serial, err := DecodeQR(req.QRPayload)
	if err != nil {
		return invalidVerification(req.UserID, "", now,
			fmt.Sprintf("QR payload could not be decoded: %v", err))
	}
	if req.ExpectedProductID != "" && req.ExpectedProductID != productID {
		return invalidVerification(req.UserID, productID, now,
			fmt.Sprintf("QR resolves to product %s, expected %s", productID, req.ExpectedProductID))
	}

	product, ok := e.store.GetProduct(productID)
	if !ok {
		return invalidVerification(req.UserID, productID, now,
			fmt.Sprintf("product %s is not registered", productID))
	}

	var result domain.VerificationResult
	if req.ImageURL != "" {
		result = e.analyzer.VerifyImage(ctx, req.ImageURL, product.SerialNumber)
	} else {
		result = qrOnlyResult(product, serial)
	}

	return &domain.Verification{
		ProductID:   productID,
		UserID:      req.UserID,
		Verdict:     e.VerdictFor(result.OverallScore),
		Result:      result,
		Explanation: buildExplanation(result.OverallScore, result.Factors),
		ProcessedAt: now,
	}
}

// VerdictFor maps an overall score to its categorical verdict per the
// policy thresholds. INVALID never comes from here.
func (e *Engine) VerdictFor(score int) string {
	switch {
	case score >= e.genuineThreshold:
		return domain.VerdictGenuine
	case score >= e.suspiciousThreshold:
		return domain.VerdictSuspicious
	default:
		return domain.VerdictFake
	}
}

// qrOnlyResult is the simpler per-field combination used when no product
// photo was supplied: the QR-embedded serial against the registration.
func qrOnlyResult(product *domain.Product, qrSerial string) domain.VerificationResult {
	result := domain.VerificationResult{}
	score := 50
	if qrSerial != "" && strings.EqualFold(qrSerial, product.SerialNumber) {
		score += 25
		result.SerialNumberMatch = true
		result.Factors = append(result.Factors, "QR serial matches product registration (+25)")
	} else {
		score -= 25
		result.Factors = append(result.Factors, "QR serial does not match product registration (-25)")
	}
	result.Factors = append(result.Factors, "No product image supplied; QR-only verification")
	result.OverallScore = domain.ClampScore(score)
	return result
}

func invalidVerification(userID, productID string, now time.Time, reason string) *domain.Verification {
	return &domain.Verification{
		ProductID: productID,
		UserID:    userID,
		Verdict:   domain.VerdictInvalid,
		Result: domain.VerificationResult{
			Factors: []string{reason},
		},
		Explanation: fmt.Sprintf("Verification invalid: %s", reason),
		ProcessedAt: now,
	}
}

// buildExplanation formats a score and its factors into a single readable
// summary string.
func buildExplanation(score int, factors []string) string {
	if len(factors) == 0 {
		return fmt.Sprintf("Authenticity Score: %d.", score)
	}
	return fmt.Sprintf("Authenticity Score: %d. Factors: %s.", score, strings.Join(factors, "; "))
}

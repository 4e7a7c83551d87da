// Package support implements the intent classifier that routes user
// queries, including fraud reports, toward human review.
//
// The classifier shares the anomaly detector's escalation philosophy but
// is structurally simpler: regular-expression intent sets plus a handful
// of escalation triggers. Fraud-related intent always escalates, no matter
// how confident the match — a missed counterfeit report costs far more
// than a spurious escalation.
package support

import (
	"regexp"
	"strings"

	"veriseal/authenticity-api/internal/domain"
)

// Escalation triggers for non-fraud intents.
const (
	minConfidence        = 0.6 // below this in a long conversation → escalate
	longConversation     = 2   // turns before low confidence matters
	repeatedMessageCount = 3   // identical trailing user messages → loop
)

// intentDef couples an intent with its match patterns and canned reply.
type intentDef struct {
	intent   string
	patterns []*regexp.Regexp
	reply    string
}

var intents = []intentDef{
	{
		intent: domain.IntentFraudReport,
		patterns: compile(
			`(?i)\b(fake|counterfeit|fraud|forged|knock[- ]?off|not (real|genuine|authentic))\b`,
			`(?i)\breport\b.*\b(product|seller|item)\b`,
			`(?i)\bscam(med)?\b`,
		),
		reply: "Thank you for reporting this. A fraud specialist will review your report and contact you shortly.",
	},
	{
		intent: domain.IntentVerificationHelp,
		patterns: compile(
			`(?i)\b(scan|verify|verification|qr( code)?)\b.*\b(fail|error|not work|help|how)\b`,
			`(?i)\bhow (do|can) i (scan|verify)\b`,
			`(?i)\b(can'?t|cannot|unable to) (scan|verify)\b`,
		),
		reply: "To verify a product, open the app, tap Scan, and point the camera at the QR code on the packaging.",
	},
	{
		intent: domain.IntentProductQuestion,
		patterns: compile(
			`(?i)\b(product|item)\b.*\b(detail|info|information|origin|ingredient|expir)\b`,
			`(?i)\bwhere (is|was) (this|the) (product|item)\b`,
		),
		reply: "Product details, origin, and shipment history are available on the product page after a successful scan.",
	},
	{
		intent: domain.IntentTechnicalIssue,
		patterns: compile(
			`(?i)\b(app|website|page|site)\b.*\b(crash|bug|error|broken|slow|not load)\b`,
			`(?i)\b(login|log in|password)\b.*\b(problem|issue|fail)\b`,
		),
		reply: "Sorry about the trouble. Please try updating the app; if the problem persists our technical team will follow up.",
	},
	{
		intent: domain.IntentRegistration,
		patterns: compile(
			`(?i)\b(register|registration|sign ?up|enroll|onboard)\b`,
			`(?i)\b(add|create)\b.*\b(product|company|account)\b`,
		),
		reply: "Manufacturers can register products from the dashboard under Products → Register New.",
	},
	{
		intent: domain.IntentScoring,
		patterns: compile(
			`(?i)\b(score|scoring|confidence|verdict|rating)\b.*\b(mean|calculated|how|why)\b`,
			`(?i)\bwhy\b.*\b(suspicious|flagged)\b`,
		),
		reply: "Authenticity scores combine packaging analysis, tampering checks, and serial verification; 80 and above is considered genuine.",
	},
}

// Classifier routes free-text queries to intents. Stateless and safe for
// concurrent use.
type Classifier struct{}

// New creates a Classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify matches the query against the intent sets and applies the
// escalation rules. Fraud intent is always flagged for human review,
// bypassing the confidence-based rule.
func (c *Classifier) Classify(q domain.SupportQuery) domain.SupportResponse {
	intent, confidence, reply := matchIntent(q.Message)

	resp := domain.SupportResponse{
		Intent:     intent,
		Confidence: confidence,
		Reply:      reply,
	}

	if intent == domain.IntentFraudReport {
		resp.Flagged = true
		resp.IncidentType = domain.IntentFraudReport
		return resp
	}

	if isRepeatedLoop(q) {
		resp.Flagged = true
		resp.IncidentType = "repeated_question"
		return resp
	}
	if confidence < minConfidence && len(q.Conversation) > longConversation {
		resp.Flagged = true
		resp.IncidentType = "low_confidence"
	}
	return resp
}

// matchIntent returns the best-matching intent with a confidence derived
// from how many of the intent's patterns matched.
func matchIntent(message string) (intent string, confidence float64, reply string) {
	bestIntent := domain.IntentUnknown
	bestReply := "I'm not sure I understood that — could you rephrase? You can also ask for a human agent."
	var bestConfidence float64

	for _, def := range intents {
		matched := 0
		for _, p := range def.patterns {
			if p.MatchString(message) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		// One pattern match is a reasonable signal; every additional
		// pattern raises confidence toward certainty.
		conf := 0.6 + 0.4*float64(matched-1)/float64(len(def.patterns))
		if conf > bestConfidence {
			bestIntent = def.intent
			bestConfidence = conf
			bestReply = def.reply
		}
	}
	return bestIntent, bestConfidence, bestReply
}

// isRepeatedLoop reports whether the user has sent the same message 3+
// times in a row (counting the current one) — a stuck-conversation signal.
func isRepeatedLoop(q domain.SupportQuery) bool {
	current := normalize(q.Message)
	if current == "" {
		return false
	}
	identical := 1
	for i := len(q.Conversation) - 1; i >= 0; i-- {
		if normalize(q.Conversation[i]) != current {
			break
		}
		identical++
	}
	return identical >= repeatedMessageCount
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

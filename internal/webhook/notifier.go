// Package webhook handles asynchronous notifications to registered webhook
// URLs when a drift alert is raised or anomalous scanning behavior is
// detected.
//
// Notifications are sent in a goroutine so they never block the HTTP
// response. Failed deliveries are logged but not retried (a production
// system would use a persistent queue with exponential backoff).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"veriseal/authenticity-api/internal/domain"
	"veriseal/authenticity-api/internal/logging"
	"veriseal/authenticity-api/internal/store"
)

// Event names carried in webhook payloads.
const (
	EventModelDrift        = "model_drift"
	EventAnomalousBehavior = "anomalous_behavior"
)

// Notifier sends webhook payloads to all registered, active endpoints
// whose minimum severity is met.
type Notifier struct {
	store  *store.Store
	client *http.Client
}

// New creates a Notifier with a sensible default HTTP client timeout.
func New(s *store.Store) *Notifier {
	return &Notifier{
		store: s,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// NotifyDriftAsync fires webhook calls in the background for a drift alert.
func (n *Notifier) NotifyDriftAsync(alert *domain.DriftAlert) {
	n.dispatch(EventModelDrift, alert.Severity, alert)
}

// NotifyBehaviorAsync fires webhook calls in the background for an
// anomalous behavior assessment.
func (n *Notifier) NotifyBehaviorAsync(result *domain.BehaviorAnomalyResult) {
	if !result.IsAnomalous {
		return
	}
	n.dispatch(EventAnomalousBehavior, result.RiskLevel, result)
}

func (n *Notifier) dispatch(event, severity string, data any) {
	rank := domain.SeverityRank(severity)
	for _, wh := range n.store.ListActiveWebhooks() {
		if rank >= domain.SeverityRank(wh.MinSeverity) {
			go n.send(wh, event, severity, data)
		}
	}
}

// send delivers a single webhook call and logs the outcome.
func (n *Notifier) send(wh *domain.WebhookConfig, event, severity string, data any) {
	payload := domain.WebhookPayload{
		Event:       event,
		TriggeredAt: time.Now().UTC(),
		Severity:    severity,
		Data:        data,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		logging.Log.WithField("webhook_id", wh.ID).WithError(err).
			Error("webhook: failed to marshal payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		logging.Log.WithField("webhook_id", wh.ID).WithError(err).
			Error("webhook: failed to build request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Veriseal-Event", event)

	resp, err := n.client.Do(req)
	if err != nil {
		logging.Log.WithField("webhook_id", wh.ID).WithField("url", wh.URL).WithError(err).
			Warn("webhook: delivery failed")
		return
	}
	defer resp.Body.Close()

	logging.Log.WithField("webhook_id", wh.ID).
		WithField("url", wh.URL).
		WithField("status", resp.StatusCode).
		WithField("event", event).
		WithField("severity", severity).
		Info("webhook: delivered")
}

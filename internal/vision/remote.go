package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

// ErrUnavailable is returned by capabilities that are not wired in the
// current execution context. The analyzer translates it into the
// documented fallback instead of failing the verification.
var ErrUnavailable = errors.New("capability unavailable")

// Label is one classifier prediction.
type Label struct {
	Name        string
	Probability float64
}

// Classifier predicts object/scene labels with probabilities for an image.
type Classifier interface {
	Classify(ctx context.Context, imageURL string) ([]Label, error)
}

// OCR extracts free text (with confidence) from an image.
type OCR interface {
	Extract(ctx context.Context, imageURL string) (text string, confidence float64, err error)
}

// ─── Remote adapters ──────────────────────────────────────────────────────────

// RemoteClassifier calls an image classification service over HTTP.
// Expected response shape: {"labels":[{"name":"box","probability":0.92},...]}.
type RemoteClassifier struct {
	endpoint string
	client   *retryablehttp.Client
}

// NewRemoteClassifier creates a classifier adapter for the given endpoint.
func NewRemoteClassifier(endpoint string, timeout time.Duration) *RemoteClassifier {
	return &RemoteClassifier{endpoint: endpoint, client: newServiceClient(timeout)}
}

// Classify posts the image URL to the service and parses its labels.
func (c *RemoteClassifier) Classify(ctx context.Context, imageURL string) ([]Label, error) {
	body, err := postJSON(ctx, c.client, c.endpoint, imageURL)
	if err != nil {
		return nil, err
	}

	var labels []Label
	for _, l := range gjson.GetBytes(body, "labels").Array() {
		labels = append(labels, Label{
			Name:        l.Get("name").String(),
			Probability: l.Get("probability").Float(),
		})
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("classifier returned no labels")
	}
	return labels, nil
}

// RemoteOCR calls an OCR service over HTTP.
// Expected response shape: {"text":"...","confidence":0.88}.
type RemoteOCR struct {
	endpoint string
	client   *retryablehttp.Client
}

// NewRemoteOCR creates an OCR adapter for the given endpoint.
func NewRemoteOCR(endpoint string, timeout time.Duration) *RemoteOCR {
	return &RemoteOCR{endpoint: endpoint, client: newServiceClient(timeout)}
}

// Extract posts the image URL to the service and parses the extracted text.
func (o *RemoteOCR) Extract(ctx context.Context, imageURL string) (string, float64, error) {
	body, err := postJSON(ctx, o.client, o.endpoint, imageURL)
	if err != nil {
		return "", 0, err
	}
	return gjson.GetBytes(body, "text").String(), gjson.GetBytes(body, "confidence").Float(), nil
}

func newServiceClient(timeout time.Duration) *retryablehttp.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := retryablehttp.NewClient()
	c.Logger = log.New(io.Discard, "", 0)
	c.RetryMax = 2
	c.HTTPClient.Timeout = timeout
	return c
}

func postJSON(ctx context.Context, client *retryablehttp.Client, endpoint, imageURL string) ([]byte, error) {
	payload := fmt.Sprintf(`{"image_url":%q}`, imageURL)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: endpoint, StatusCode: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

package vision_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"veriseal/authenticity-api/internal/vision"
)

func TestRemoteClassifier_ParsesLabels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"labels":[{"name":"box","probability":0.92},{"name":"table","probability":0.31}]}`))
	}))
	defer srv.Close()

	c := vision.NewRemoteClassifier(srv.URL, 2*time.Second)
	labels, err := c.Classify(context.Background(), "http://images.test/box.jpg")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(labels) != 2 {
		t.Fatalf("labels = %v, want 2", labels)
	}
	if labels[0].Name != "box" || labels[0].Probability != 0.92 {
		t.Errorf("labels[0] = %+v", labels[0])
	}
}

func TestRemoteClassifier_EmptyLabelsIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"labels":[]}`))
	}))
	defer srv.Close()

	c := vision.NewRemoteClassifier(srv.URL, 2*time.Second)
	if _, err := c.Classify(context.Background(), "http://images.test/box.jpg"); err == nil {
		t.Error("empty label set did not error")
	}
}

func TestRemoteOCR_ParsesText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"Serial VS123456","confidence":0.88}`))
	}))
	defer srv.Close()

	o := vision.NewRemoteOCR(srv.URL, 2*time.Second)
	text, confidence, err := o.Extract(context.Background(), "http://images.test/label.jpg")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if text != "Serial VS123456" || confidence != 0.88 {
		t.Errorf("extract = (%q, %.2f)", text, confidence)
	}
}

func TestRemoteOCR_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	o := vision.NewRemoteOCR(srv.URL, 2*time.Second)
	if _, _, err := o.Extract(context.Background(), "http://images.test/label.jpg"); err == nil {
		t.Error("non-2xx response did not error")
	}
}

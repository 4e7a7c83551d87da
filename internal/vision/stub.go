package vision

import "context"

// Stub capabilities for execution contexts without a classifier or OCR
// service wired in. The zero values always return ErrUnavailable, which
// puts the analyzer on its documented fallback paths.

// StubClassifier returns fixed labels, or ErrUnavailable when none are set.
type StubClassifier struct {
	Labels []Label
	Err    error
}

func (s StubClassifier) Classify(ctx context.Context, imageURL string) ([]Label, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Labels) == 0 {
		return nil, ErrUnavailable
	}
	return s.Labels, nil
}

// StubOCR returns fixed text, or ErrUnavailable when empty.
type StubOCR struct {
	Text       string
	Confidence float64
	Err        error
}

func (s StubOCR) Extract(ctx context.Context, imageURL string) (string, float64, error) {
	if s.Err != nil {
		return "", 0, s.Err
	}
	if s.Text == "" {
		return "", 0, ErrUnavailable
	}
	return s.Text, s.Confidence, nil
}

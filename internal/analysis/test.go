package analysis

import (
	"context"
	"strings"

	"docvault/internal/docvault"
	"docvault/internal/model"
)

// TestRecognizer is a deterministic recognizer for testing. It treats the
// image bytes as UTF-8 text and returns them verbatim with full confidence,
// so pipelines can run end to end without an OCR binary installed.
type TestRecognizer struct{}

var _ docvault.Recognizer = (*TestRecognizer)(nil)

// NewTestRecognizer creates a new TestRecognizer.
func NewTestRecognizer() *TestRecognizer {
	return &TestRecognizer{}
}

func (r *TestRecognizer) Recognize(ctx context.Context, image []byte, progress func(pct int)) (*model.OCRData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if progress != nil {
		progress(0)
		progress(50)
		progress(100)
	}

	text := string(image)
	fields := strings.Fields(text)
	words := make([]model.OCRWord, len(fields))
	for i, f := range fields {
		words[i] = model.OCRWord{Text: f, Confidence: 1}
	}
	return &model.OCRData{Text: text, Confidence: 1, Words: words}, nil
}

func (r *TestRecognizer) Version() string {
	return "test"
}

// TestClassifier is a deterministic classifier for testing. Every document
// classifies as "document" with full confidence.
type TestClassifier struct{}

var _ docvault.Classifier = (*TestClassifier)(nil)

// NewTestClassifier creates a new TestClassifier.
func NewTestClassifier() *TestClassifier {
	return &TestClassifier{}
}

func (c *TestClassifier) Classify(ctx context.Context, image []byte) (*model.ClassificationData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &model.ClassificationData{Category: "document", Confidence: 1}, nil
}

func (c *TestClassifier) Version() string {
	return "test"
}

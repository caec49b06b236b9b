package analysis

import (
	"fmt"

	"docvault/internal/config"
	"docvault/internal/docvault"
)

// NewRecognizerFromConfig creates a Recognizer based on the configuration type.
func NewRecognizerFromConfig(cfg config.AnalysisConfig) (docvault.Recognizer, error) {
	switch cfg.OCR {
	case "command", "":
		return NewCommandRecognizer(cfg.OCRCommand), nil
	case "test":
		return NewTestRecognizer(), nil
	default:
		return nil, fmt.Errorf("unknown ocr type: %q", cfg.OCR)
	}
}

// NewClassifierFromConfig creates a Classifier based on the configuration
// type. The keyword classifier reads page text through the given recognizer.
func NewClassifierFromConfig(cfg config.AnalysisConfig, ocr docvault.Recognizer) (docvault.Classifier, error) {
	switch cfg.Classifier {
	case "keyword", "":
		return NewKeywordClassifier(ocr, cfg.Categories), nil
	case "test":
		return NewTestClassifier(), nil
	default:
		return nil, fmt.Errorf("unknown classifier type: %q", cfg.Classifier)
	}
}

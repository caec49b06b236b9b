package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProcessingResult is the outcome of running one analysis algorithm against
// a document's content. Results are immutable once written.
type ProcessingResult struct {
	ID               string         `json:"id"`
	DocumentID       string         `json:"documentId"` // Soft reference; the document may have been deleted
	ProcessingType   string         `json:"processingType"`
	Data             ProcessingData `json:"data"`
	Confidence       float64        `json:"confidence"` // 0..1
	Status           ResultStatus   `json:"status"`
	Error            string         `json:"error,omitempty"`
	DurationMS       int64          `json:"durationMs"`
	AlgorithmVersion string         `json:"algorithmVersion,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// ResultStatus is the outcome of a processing run.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusFailed  ResultStatus = "failed"
	StatusPartial ResultStatus = "partial"
)

// Well-known processing type tags. The field is free-form; unknown tags
// carry their payload as GenericData.
const (
	ProcessingOCR            = "ocr"
	ProcessingClassification = "classification"
	ProcessingExtraction     = "extraction"
)

// ProcessingData is the algorithm-specific payload of a ProcessingResult.
// The concrete type is determined by the result's ProcessingType tag, so
// consumers can branch exhaustively with a type switch.
type ProcessingData interface {
	processingData()
}

// OCRData is the payload of a text-recognition run.
type OCRData struct {
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	Words      []OCRWord `json:"words,omitempty"`
}

// OCRWord is one recognized word with its bounding box.
type OCRWord struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	X0         int     `json:"x0"`
	Y0         int     `json:"y0"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
}

// ClassificationData is the payload of a document-type classification run.
type ClassificationData struct {
	Category     string          `json:"category"`
	Confidence   float64         `json:"confidence"`
	Alternatives []CategoryScore `json:"alternatives,omitempty"`
}

// CategoryScore is a candidate category with its confidence.
type CategoryScore struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// ExtractionData is the payload of a field-extraction run.
type ExtractionData struct {
	Fields map[string]string `json:"fields"`
}

// GenericData carries the payload of an unrecognized processing type.
type GenericData map[string]any

func (*OCRData) processingData()            {}
func (*ClassificationData) processingData() {}
func (*ExtractionData) processingData()     {}
func (GenericData) processingData()         {}

// EncodeProcessingData serializes a result payload for storage.
// A nil payload encodes as JSON null.
func EncodeProcessingData(data ProcessingData) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding processing data: %w", err)
	}
	return raw, nil
}

// DecodeProcessingData deserializes a stored payload according to the
// result's processing type tag. Unknown tags decode into GenericData.
func DecodeProcessingData(processingType string, raw []byte) (ProcessingData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	switch processingType {
	case ProcessingOCR:
		var d OCRData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decoding ocr data: %w", err)
		}
		return &d, nil
	case ProcessingClassification:
		var d ClassificationData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decoding classification data: %w", err)
		}
		return &d, nil
	case ProcessingExtraction:
		var d ExtractionData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decoding extraction data: %w", err)
		}
		return &d, nil
	default:
		var d GenericData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decoding processing data: %w", err)
		}
		return d, nil
	}
}

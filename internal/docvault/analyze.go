package docvault

import (
	"context"

	"docvault/internal/model"
)

// Recognizer extracts text from a raster image. The progress callback, when
// non-nil, receives integer percentages during the run.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, progress func(pct int)) (*model.OCRData, error)

	// Version identifies the recognition engine, recorded on results.
	Version() string
}

// Classifier assigns a document category to a raster image. PDF inputs must
// be rendered to an image by a PageRenderer first.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (*model.ClassificationData, error)

	// Version identifies the classification model, recorded on results.
	Version() string
}

// PageRenderer inspects PDF content and renders pages to raster images for
// the collaborators above.
type PageRenderer interface {
	// PageCount returns the number of pages in a PDF.
	PageCount(pdf []byte) (int, error)

	// FirstPageImage extracts the first page as an image suitable for
	// classification and recognition.
	FirstPageImage(pdf []byte) ([]byte, error)
}

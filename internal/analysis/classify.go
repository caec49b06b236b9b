package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"docvault/internal/docvault"
	"docvault/internal/model"
)

// defaultCategories seed the keyword classifier when the config does not
// provide category lists.
var defaultCategories = map[string][]string{
	"invoice":  {"invoice", "total due", "amount due", "bill to", "payment terms"},
	"receipt":  {"receipt", "change due", "subtotal", "cashier", "thank you for your purchase"},
	"contract": {"agreement", "hereinafter", "obligations", "terms and conditions", "signature"},
	"letter":   {"dear", "sincerely", "kind regards", "yours faithfully"},
	"report":   {"summary", "introduction", "conclusion", "appendix", "figure"},
}

// KeywordClassifier implements docvault.Classifier by recognizing the page
// text and scoring keyword hits per category. The winning category's
// confidence is its share of all hits.
type KeywordClassifier struct {
	ocr        docvault.Recognizer
	categories map[string][]string
}

var _ docvault.Classifier = (*KeywordClassifier)(nil)

// NewKeywordClassifier creates a KeywordClassifier on top of the given
// recognizer. Empty categories fall back to the built-in lists.
func NewKeywordClassifier(ocr docvault.Recognizer, categories map[string][]string) *KeywordClassifier {
	if len(categories) == 0 {
		categories = defaultCategories
	}
	return &KeywordClassifier{ocr: ocr, categories: categories}
}

func (k *KeywordClassifier) Classify(ctx context.Context, image []byte) (*model.ClassificationData, error) {
	recognized, err := k.ocr.Recognize(ctx, image, nil)
	if err != nil {
		return nil, fmt.Errorf("recognizing text: %w", err)
	}

	text := strings.ToLower(recognized.Text)
	scores := make(map[string]int, len(k.categories))
	total := 0
	for category, keywords := range k.categories {
		for _, kw := range keywords {
			n := strings.Count(text, strings.ToLower(kw))
			scores[category] += n
			total += n
		}
	}

	ranked := make([]model.CategoryScore, 0, len(scores))
	for category, hits := range scores {
		if hits == 0 {
			continue
		}
		ranked = append(ranked, model.CategoryScore{
			Category:   category,
			Confidence: float64(hits) / float64(total),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Category < ranked[j].Category
	})

	if len(ranked) == 0 {
		return &model.ClassificationData{Category: "unknown"}, nil
	}
	return &model.ClassificationData{
		Category:     ranked[0].Category,
		Confidence:   ranked[0].Confidence,
		Alternatives: ranked[1:],
	}, nil
}

// Version identifies the classifier implementation.
func (k *KeywordClassifier) Version() string {
	return "keyword-1"
}

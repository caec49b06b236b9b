package docvault

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image"
	"net/http"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/sync/errgroup"

	"docvault/internal/model"
)

// batchConcurrency bounds how many documents a batch processes at once.
// Analysis work parallelizes; the store serializes its own writes.
const batchConcurrency = 4

// extractionVersion tags field-extraction results, which are produced by
// the pipeline itself rather than an external engine.
const extractionVersion = "regexp-1"

const pdfContentType = "application/pdf"

// Pipeline turns raw files into encrypted documents and runs template
// processing rules against stored ones. It sits above the Service: the
// Service owns persistence and auditing, the Pipeline owns the plaintext
// boundary and the analysis collaborators.
type Pipeline struct {
	svc       *Service
	cipher    Cipher
	ocr       Recognizer
	classify  Classifier
	renderer  PageRenderer
	docIDs    IDGenerator
	resultIDs IDGenerator
	clock     Clock
	logger    Logger

	// Progress, when set, receives recognition percentages.
	Progress func(pct int)
}

// NewPipeline creates a Pipeline. docIDs generates document identifiers,
// resultIDs generates processing result identifiers.
func NewPipeline(svc *Service, cipher Cipher, ocr Recognizer, classify Classifier, renderer PageRenderer, docIDs, resultIDs IDGenerator, clock Clock, logger Logger) *Pipeline {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Pipeline{
		svc:       svc,
		cipher:    cipher,
		ocr:       ocr,
		classify:  classify,
		renderer:  renderer,
		docIDs:    docIDs,
		resultIDs: resultIDs,
		clock:     clock,
		logger:    logger,
	}
}

// Ingest encrypts raw content and stores it as a new document. The content
// type is sniffed when empty. PDF page counts and image dimensions are
// recorded in metadata when they can be determined; failures there only
// log, they never block the ingest.
func (p *Pipeline) Ingest(name, contentType string, content, password []byte, tags []string) (*model.Document, error) {
	sealed, err := p.cipher.Encrypt(content, password)
	if err != nil {
		return nil, fmt.Errorf("encrypting content: %w", err)
	}
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}

	sum := sha256.Sum256(content)
	meta := model.Metadata{
		Extension: strings.TrimPrefix(filepath.Ext(name), "."),
		Tags:      tags,
		Crypto: &model.CryptoParams{
			Salt: base64.StdEncoding.EncodeToString(sealed.Salt),
			IV:   base64.StdEncoding.EncodeToString(sealed.IV),
		},
	}
	switch {
	case contentType == pdfContentType && p.renderer != nil:
		pages, err := p.renderer.PageCount(content)
		if err != nil {
			p.logger.Warn("page count failed", "name", name, "error", err)
		} else {
			meta.PageCount = pages
		}
	case strings.HasPrefix(contentType, "image/"):
		cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
		if err != nil {
			p.logger.Warn("image decode failed", "name", name, "error", err)
		} else {
			meta.Width = cfg.Width
			meta.Height = cfg.Height
		}
	}

	now := p.clock.Now()
	doc := &model.Document{
		ID:          p.docIDs.New(),
		Name:        name,
		ContentType: contentType,
		Content:     sealed.Ciphertext,
		Metadata:    meta,
		Size:        int64(len(content)),
		Hash:        hex.EncodeToString(sum[:]),
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	if res := p.svc.AddDocument(doc); !res.OK {
		return nil, fmt.Errorf("storing document: %s", res.Err)
	}
	return doc, nil
}

// Open fetches a document and decrypts its content with the password.
func (p *Pipeline) Open(documentID string, password []byte) (*model.Document, []byte, error) {
	res := p.svc.GetDocument(documentID)
	if !res.OK {
		return nil, nil, fmt.Errorf("fetching document: %s", res.Err)
	}
	if res.Data == nil {
		return nil, nil, fmt.Errorf("document not found: %s", documentID)
	}
	plaintext, err := p.decrypt(res.Data, password)
	if err != nil {
		return nil, nil, err
	}
	return res.Data, plaintext, nil
}

// Process runs a template's rules against one document, in rule order,
// persisting one processing result per rule. Rule failures are recorded as
// failed results; only persistence or decryption problems abort the run.
func (p *Pipeline) Process(ctx context.Context, documentID string, tpl *model.DocumentTemplate, password []byte) ([]*model.ProcessingResult, error) {
	doc, plaintext, err := p.Open(documentID, password)
	if err != nil {
		return nil, err
	}

	img := plaintext
	if doc.ContentType == pdfContentType {
		if p.renderer == nil {
			return nil, fmt.Errorf("document %s is a pdf and no page renderer is configured", documentID)
		}
		img, err = p.renderer.FirstPageImage(plaintext)
		if err != nil {
			return nil, fmt.Errorf("rendering first page of %s: %w", documentID, err)
		}
	}

	rules := append([]model.ProcessingRule(nil), tpl.Config.Rules...)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Order < rules[j].Order })

	var (
		results []*model.ProcessingResult
		text    string
		hasText bool
	)
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		start := p.clock.Now()
		res := &model.ProcessingResult{
			ID:             p.resultIDs.New(),
			DocumentID:     doc.ID,
			ProcessingType: rule.Type,
			Status:         model.StatusSuccess,
		}

		switch rule.Type {
		case model.ProcessingOCR:
			data, err := p.ocr.Recognize(ctx, img, p.Progress)
			if err != nil {
				res.Status = model.StatusFailed
				res.Error = err.Error()
			} else {
				res.Data = data
				res.Confidence = data.Confidence
				text, hasText = data.Text, true
			}
			res.AlgorithmVersion = p.ocr.Version()

		case model.ProcessingClassification:
			data, err := p.classify.Classify(ctx, img)
			if err != nil {
				res.Status = model.StatusFailed
				res.Error = err.Error()
			} else {
				res.Data = data
				res.Confidence = data.Confidence
			}
			res.AlgorithmVersion = p.classify.Version()

		case model.ProcessingExtraction:
			if !hasText {
				data, err := p.ocr.Recognize(ctx, img, p.Progress)
				if err != nil {
					res.Status = model.StatusFailed
					res.Error = fmt.Sprintf("recognizing text for extraction: %v", err)
				} else {
					text, hasText = data.Text, true
				}
			}
			if hasText {
				data, status, errMsg := extractFields(text, tpl.Config.Fields)
				res.Data = data
				res.Status = status
				res.Error = errMsg
				if len(tpl.Config.Fields) > 0 {
					res.Confidence = float64(len(data.Fields)) / float64(len(tpl.Config.Fields))
				}
			}
			res.AlgorithmVersion = extractionVersion

		default:
			res.Status = model.StatusFailed
			res.Error = fmt.Sprintf("unknown processing type: %s", rule.Type)
		}

		res.DurationMS = p.clock.Now().Sub(start).Milliseconds()
		res.CreatedAt = p.clock.Now()
		if stored := p.svc.AddResult(res); !stored.OK {
			return results, fmt.Errorf("storing %s result: %s", rule.Type, stored.Err)
		}
		results = append(results, res)
	}
	return results, nil
}

// BatchOutcome is the result of processing one document in a batch.
type BatchOutcome struct {
	DocumentID string
	Results    []*model.ProcessingResult
	Err        error
}

// RunBatch processes the template against many documents with bounded
// concurrency. Per-document failures are captured in the outcomes; only
// context cancellation aborts the batch.
func (p *Pipeline) RunBatch(ctx context.Context, documentIDs []string, tpl *model.DocumentTemplate, password []byte) ([]BatchOutcome, error) {
	outcomes := make([]BatchOutcome, len(documentIDs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, id := range documentIDs {
		g.Go(func() error {
			results, err := p.Process(ctx, id, tpl, password)
			outcomes[i] = BatchOutcome{DocumentID: id, Results: results, Err: err}
			if err != nil {
				p.logger.Warn("batch document failed", "document", id, "error", err)
			}
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, fmt.Errorf("batch aborted: %w", err)
	}
	return outcomes, nil
}

func (p *Pipeline) decrypt(doc *model.Document, password []byte) ([]byte, error) {
	cp := doc.Metadata.Crypto
	if cp == nil {
		return nil, fmt.Errorf("document %s has no encryption parameters", doc.ID)
	}
	salt, err := base64.StdEncoding.DecodeString(cp.Salt)
	if err != nil {
		return nil, fmt.Errorf("decoding salt for %s: %w", doc.ID, err)
	}
	iv, err := base64.StdEncoding.DecodeString(cp.IV)
	if err != nil {
		return nil, fmt.Errorf("decoding iv for %s: %w", doc.ID, err)
	}
	plaintext, err := p.cipher.Decrypt(doc.Content, password, salt, iv)
	if err != nil {
		return nil, fmt.Errorf("decrypting document %s: %w", doc.ID, err)
	}
	return plaintext, nil
}

// extractFields applies field rules to recognized text. A missing required
// field degrades the status to partial; an invalid pattern fails the run.
func extractFields(text string, fields []model.FieldRule) (*model.ExtractionData, model.ResultStatus, string) {
	data := &model.ExtractionData{Fields: map[string]string{}}
	status := model.StatusSuccess
	var missing []string
	for _, f := range fields {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return data, model.StatusFailed, fmt.Sprintf("invalid pattern for field %s: %v", f.Name, err)
		}
		value, found := firstMatch(re, text)
		if found && coerces(value, f.ValueType) {
			data.Fields[f.Name] = value
			continue
		}
		if f.Required {
			status = model.StatusPartial
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return data, status, fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return data, status, ""
}

// firstMatch returns the first capture group when the pattern has one, the
// whole match otherwise.
func firstMatch(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	if len(m) > 1 {
		return m[1], true
	}
	return m[0], true
}

// coerces reports whether a raw value parses as the declared type.
func coerces(value string, t model.ValueType) bool {
	switch t {
	case model.ValueNumber:
		_, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
		return err == nil
	case model.ValueBoolean:
		_, err := strconv.ParseBool(value)
		return err == nil
	case model.ValueDate:
		return parsesAsDate(value)
	default:
		return true
	}
}

var dateLayouts = []string{"2006-01-02", "02.01.2006", "01/02/2006", time.RFC3339}

func parsesAsDate(value string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

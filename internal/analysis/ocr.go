package analysis

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"docvault/internal/docvault"
	"docvault/internal/model"
)

// defaultOCRCommand is the recognizer binary used when the config does not
// name one.
const defaultOCRCommand = "tesseract"

// CommandRecognizer implements docvault.Recognizer by running an external
// OCR binary. The image is piped to stdin and TSV output is parsed from
// stdout, matching the "tesseract stdin stdout tsv" invocation.
type CommandRecognizer struct {
	command string
	args    []string
}

var _ docvault.Recognizer = (*CommandRecognizer)(nil)

// NewCommandRecognizer creates a CommandRecognizer for the given binary.
// An empty command selects tesseract.
func NewCommandRecognizer(command string) *CommandRecognizer {
	if command == "" {
		command = defaultOCRCommand
	}
	return &CommandRecognizer{
		command: command,
		args:    []string{"stdin", "stdout", "tsv"},
	}
}

func (r *CommandRecognizer) Recognize(ctx context.Context, image []byte, progress func(pct int)) (*model.OCRData, error) {
	if progress != nil {
		progress(0)
	}

	cmd := exec.CommandContext(ctx, r.command, r.args...)
	cmd.Stdin = bytes.NewReader(image)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("running %s: %w: %s", r.command, err, strings.TrimSpace(stderr.String()))
	}

	data, err := parseTSV(stdout.String())
	if err != nil {
		return nil, fmt.Errorf("parsing %s output: %w", r.command, err)
	}
	if progress != nil {
		progress(100)
	}
	return data, nil
}

// Version returns the recognizer binary name.
func (r *CommandRecognizer) Version() string {
	return r.command
}

// parseTSV converts tesseract TSV output into OCRData. Word rows carry
// level 5; the conf column is a percentage, with -1 marking structural rows.
func parseTSV(out string) (*model.OCRData, error) {
	var (
		words   []model.OCRWord
		text    strings.Builder
		sum     float64
		prevKey string
	)

	for i, line := range strings.Split(out, "\n") {
		if i == 0 || strings.TrimSpace(line) == "" {
			// Header row or trailing newline.
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			return nil, fmt.Errorf("line %d: expected 12 columns, got %d", i+1, len(cols))
		}
		level, err := strconv.Atoi(cols[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing level: %w", i+1, err)
		}
		if level != 5 {
			continue
		}
		word := cols[11]
		if word == "" {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing confidence: %w", i+1, err)
		}

		// Words on the same block/paragraph/line join with a space,
		// line transitions become newlines.
		key := cols[2] + ":" + cols[3] + ":" + cols[4]
		if text.Len() > 0 {
			if key == prevKey {
				text.WriteByte(' ')
			} else {
				text.WriteByte('\n')
			}
		}
		prevKey = key
		text.WriteString(word)

		left, top := atoi(cols[6]), atoi(cols[7])
		width, height := atoi(cols[8]), atoi(cols[9])
		sum += conf
		words = append(words, model.OCRWord{
			Text:       word,
			Confidence: conf / 100,
			X0:         left,
			Y0:         top,
			X1:         left + width,
			Y1:         top + height,
		})
	}

	data := &model.OCRData{Text: text.String(), Words: words}
	if len(words) > 0 {
		data.Confidence = sum / float64(len(words)) / 100
	}
	return data, nil
}

// atoi is a best-effort conversion for geometry columns.
func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

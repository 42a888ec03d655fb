// Package assembler turns a text prompt plus optional attachment references
// into a provider-ready multi-part payload.
package assembler

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tessara/gemini-assistant/internal/provider/models"
)

// MaxCSVRows bounds inlined CSV content to avoid unbounded token growth.
const MaxCSVRows = 20

// uploadSettleDelay is the pause after a file upload before the handle is
// referenced in a generation call; the provider's file store needs a moment
// to become consistent.
const uploadSettleDelay = time.Second

// Attachment references one file to include with the prompt.
type Attachment struct {
	// Path is the file's location on local storage.
	Path string
	// Name is the display name; defaults to the path's base name.
	Name string
	// MIMEType overrides detection from the file extension when set.
	MIMEType string
}

// Uploader pushes a binary file to the provider's file store.
type Uploader interface {
	UploadFile(ctx context.Context, path string, mimeType string) (uri string, mime string, err error)
}

// Extractor pulls plain text out of a PDF.
type Extractor interface {
	Name() string
	Extract(path string) (string, error)
}

// Assembler builds provider content parts from a prompt and attachments.
type Assembler struct {
	uploader   Uploader
	extractors []Extractor
	logger     *slog.Logger

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Assembler. The extractors are tried in order when a PDF
// needs text extraction; pass nil to use the default backends.
func New(uploader Uploader, extractors []Extractor, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	if extractors == nil {
		extractors = DefaultExtractors()
	}
	return &Assembler{
		uploader:   uploader,
		extractors: extractors,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Assemble produces the ordered content parts for a generation call: the
// prompt text first, then one part per processable attachment. A failure
// processing one attachment never fails the call; the entry is skipped with
// a logged warning and the rest are still processed.
func (a *Assembler) Assemble(ctx context.Context, prompt string, attachments []Attachment) ([]models.Part, error) {
	parts := []models.Part{{Text: prompt}}

	for _, att := range attachments {
		part, err := a.assembleAttachment(ctx, att)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.Warn("skipping attachment",
				"name", att.displayName(), "error", err)
			continue
		}
		if part != nil {
			parts = append(parts, *part)
		}
	}

	return parts, nil
}

func (a *Assembler) assembleAttachment(ctx context.Context, att Attachment) (*models.Part, error) {
	mimeType := att.MIMEType
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(att.Path))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	// Strip parameters such as "; charset=utf-8".
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return a.uploadImage(ctx, att, mimeType)

	case mimeType == "application/pdf":
		text := a.extractPDFText(att.Path)
		block := fmt.Sprintf("\n\n--- Content from PDF (%s) ---\n%s\n--- End PDF Content ---", att.displayName(), text)
		return &models.Part{Text: block}, nil

	case mimeType == "text/csv" || mimeType == "application/csv":
		text, err := readCSVBounded(att.Path, MaxCSVRows)
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		block := fmt.Sprintf("\n\n--- Content from file (%s) ---\n%s\n--- End File Content ---", att.displayName(), text)
		return &models.Part{Text: block}, nil

	case strings.HasPrefix(mimeType, "text/"):
		data, err := os.ReadFile(att.Path)
		if err != nil {
			return nil, fmt.Errorf("reading file: %w", err)
		}
		block := fmt.Sprintf("\n\n--- Content from file (%s) ---\n%s\n--- End File Content ---", att.displayName(), string(data))
		return &models.Part{Text: block}, nil

	default:
		a.logger.Warn("skipping unsupported attachment type",
			"name", att.displayName(), "mime_type", mimeType)
		return nil, nil
	}
}

// uploadImage pushes the image to the provider file store and waits for the
// handle to settle before it can be referenced.
func (a *Assembler) uploadImage(ctx context.Context, att Attachment, mimeType string) (*models.Part, error) {
	if a.uploader == nil {
		return nil, fmt.Errorf("no uploader configured for image attachments")
	}

	a.logger.Debug("uploading image attachment", "name", att.displayName())
	uri, storedMIME, err := a.uploader.UploadFile(ctx, att.Path, mimeType)
	if err != nil {
		return nil, fmt.Errorf("uploading image: %w", err)
	}

	if err := a.sleep(ctx, uploadSettleDelay); err != nil {
		return nil, err
	}

	if storedMIME == "" {
		storedMIME = mimeType
	}
	return &models.Part{FileURI: uri, MIMEType: storedMIME}, nil
}

// extractPDFText runs the extractor chain, falling back from one backend to
// the next. A missing extraction capability never aborts the call; a
// placeholder is inlined instead.
func (a *Assembler) extractPDFText(path string) string {
	for _, ex := range a.extractors {
		text, err := ex.Extract(path)
		if err == nil && strings.TrimSpace(text) != "" {
			return text
		}
		a.logger.Warn("pdf extraction backend failed",
			"backend", ex.Name(), "path", path, "error", err)
	}

	a.logger.Warn("all pdf extraction backends failed, inlining placeholder", "path", path)
	return "PDF text extraction failed. The document content is unavailable."
}

// readCSVBounded reads at most maxRows data rows (plus header) and notes the
// truncation inline.
func readCSVBounded(path string, maxRows int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var b strings.Builder
	rows := 0
	truncated := false
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		// First record is treated as the header and not counted.
		if rows > maxRows {
			truncated = true
			break
		}
		b.WriteString(strings.Join(record, ","))
		b.WriteByte('\n')
		rows++
	}
	if truncated {
		fmt.Fprintf(&b, "... (truncated to first %d rows)\n", maxRows)
	}
	return b.String(), nil
}

func (att Attachment) displayName() string {
	if att.Name != "" {
		return att.Name
	}
	return filepath.Base(att.Path)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

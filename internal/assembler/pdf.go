package assembler

import (
	"bytes"

	dslipak "github.com/dslipak/pdf"
	ledongthuc "github.com/ledongthuc/pdf"
)

// DefaultExtractors returns the PDF extraction chain: ledongthuc/pdf first,
// dslipak/pdf as the fallback backend.
func DefaultExtractors() []Extractor {
	return []Extractor{
		LedongthucExtractor{},
		DslipakExtractor{},
	}
}

// LedongthucExtractor extracts PDF text via github.com/ledongthuc/pdf.
type LedongthucExtractor struct{}

func (LedongthucExtractor) Name() string { return "ledongthuc/pdf" }

func (LedongthucExtractor) Extract(path string) (string, error) {
	f, r, err := ledongthuc.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DslipakExtractor extracts PDF text via github.com/dslipak/pdf.
type DslipakExtractor struct{}

func (DslipakExtractor) Name() string { return "dslipak/pdf" }

func (DslipakExtractor) Extract(path string) (string, error) {
	r, err := dslipak.Open(path)
	if err != nil {
		return "", err
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

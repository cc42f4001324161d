package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ExtractStatus is the outcome of running a file through its extractor.
type ExtractStatus string

const (
	ExtractOK          ExtractStatus = "ok"
	ExtractUnsupported ExtractStatus = "unsupported"
	ExtractFailed      ExtractStatus = "failed"
)

// Extraction is one file's extracted text plus its status. A failed
// extraction never aborts the turn (spec.md §4.5): the pipeline degrades
// to a placeholder instead.
type Extraction struct {
	File   FileRef
	Text   string
	Status ExtractStatus
}

// Extractor turns raw file bytes into text for a specific MIME family.
type Extractor interface {
	Extract(ctx context.Context, f FileRef) (string, error)
}

// ExtractorRegistry routes a FileRef to its typed extractor by MIME
// prefix (spec.md §4.5: "image → OCR, PDF → pdf-parse, text/code →
// direct read, else → unsupported").
type ExtractorRegistry struct {
	image Extractor
	pdf   Extractor
	text  Extractor
}

// NewExtractorRegistry wires the three concrete extractors.
func NewExtractorRegistry(image, pdf, text Extractor) *ExtractorRegistry {
	return &ExtractorRegistry{image: image, pdf: pdf, text: text}
}

// ExtractAll runs every file through its extractor, absorbing failures
// into a synthetic placeholder rather than propagating an error
// (spec.md §4.5: "Failures produce a synthetic [extraction failed]
// placeholder rather than aborting the turn").
func (r *ExtractorRegistry) ExtractAll(ctx context.Context, files []FileRef) []Extraction {
	out := make([]Extraction, 0, len(files))
	for _, f := range files {
		out = append(out, r.extractOne(ctx, f))
	}
	return out
}

func (r *ExtractorRegistry) extractOne(ctx context.Context, f FileRef) Extraction {
	var extractor Extractor
	switch {
	case strings.HasPrefix(f.MIME, "image/"):
		extractor = r.image
	case f.MIME == "application/pdf":
		extractor = r.pdf
	case strings.HasPrefix(f.MIME, "text/") || isCodeMIME(f.MIME):
		extractor = r.text
	default:
		return Extraction{File: f, Status: ExtractUnsupported, Text: "[extraction failed]"}
	}

	text, err := extractor.Extract(ctx, f)
	if err != nil {
		return Extraction{File: f, Status: ExtractFailed, Text: "[extraction failed]"}
	}
	return Extraction{File: f, Status: ExtractOK, Text: text}
}

func isCodeMIME(mime string) bool {
	switch mime {
	case "application/json", "application/x-yaml", "application/javascript", "application/x-sh":
		return true
	}
	return false
}

// DirectReadExtractor reads text/code files verbatim from disk.
type DirectReadExtractor struct{}

func (DirectReadExtractor) Extract(_ context.Context, f FileRef) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Path, err)
	}
	return string(data), nil
}

// OCREngine abstracts whatever OCR backend is configured (tesseract
// subprocess, cloud OCR API, ...).
type OCREngine interface {
	RecognizeText(ctx context.Context, imagePath string) (string, error)
}

// ImageOCRExtractor extracts text from images via an injected OCR engine.
type ImageOCRExtractor struct {
	Engine OCREngine
}

func (e ImageOCRExtractor) Extract(ctx context.Context, f FileRef) (string, error) {
	return e.Engine.RecognizeText(ctx, f.Path)
}

// PDFParser abstracts PDF text extraction (pdf-parse equivalent).
type PDFParser interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// PDFExtractor extracts text from PDFs via an injected parser.
type PDFExtractor struct {
	Parser PDFParser
}

func (e PDFExtractor) Extract(ctx context.Context, f FileRef) (string, error) {
	return e.Parser.ExtractText(ctx, f.Path)
}

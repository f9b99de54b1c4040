package normalize

import (
	"bytes"
	"fmt"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/fadilmartias/resume-screener/internal/apperrors"
)

// Kind discriminates the two document variants.
type Kind int

const (
	KindImage Kind = iota
	KindText
)

// Document is the normalized form of an input file: exactly one of a
// renderable image or extracted plain text.
type Document struct {
	Kind     Kind
	Image    []byte // populated for KindImage
	MimeType string // image media type, e.g. "image/png"
	Text     string // populated for KindText
}

func ImageDocument(data []byte, mimeType string) Document {
	return Document{Kind: KindImage, Image: data, MimeType: mimeType}
}

func TextDocument(text string) Document {
	return Document{Kind: KindText, Text: text}
}

// Normalizer converts raw document bytes into a Document. The rasterize
// and textLayer functions default to go-fitz and are swappable in tests.
type Normalizer struct {
	rasterize func(data []byte) ([]byte, error)
	textLayer func(data []byte) (string, error)
}

func New() *Normalizer {
	return &Normalizer{
		rasterize: fitzRasterize,
		textLayer: fitzTextLayer,
	}
}

// NewWithFuncs builds a Normalizer with custom conversion functions.
func NewWithFuncs(rasterize func([]byte) ([]byte, error), textLayer func([]byte) (string, error)) *Normalizer {
	return &Normalizer{rasterize: rasterize, textLayer: textLayer}
}

// Normalize turns raw bytes into a Document. Raster image types pass
// through unchanged. Everything else goes through page-1 rasterization
// with a text-layer fallback; only when both yield nothing does it fail.
func (n *Normalizer) Normalize(data []byte, mediaType, filename string) (Document, error) {
	if strings.HasPrefix(strings.ToLower(mediaType), "image/") {
		return ImageDocument(data, strings.ToLower(mediaType)), nil
	}

	rendered, rasterErr := n.rasterize(data)
	if rasterErr == nil {
		return ImageDocument(rendered, "image/png"), nil
	}

	text, textErr := n.textLayer(data)
	text = strings.TrimSpace(text)
	if text != "" {
		return TextDocument(text), nil
	}

	if textErr == nil {
		textErr = fmt.Errorf("empty text layer")
	}
	return Document{}, apperrors.Normalization(
		fmt.Sprintf("document %q produced neither image nor text (raster: %v)", filename, rasterErr),
		textErr,
	)
}

func fitzRasterize(data []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("document has no pages")
	}

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize page 1: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func fitzTextLayer(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("failed to open document: %w", err)
	}
	defer doc.Close()

	var fullText bytes.Buffer
	var lastErr error

	for p := 0; p < doc.NumPage(); p++ {
		text, err := doc.Text(p)
		if err != nil {
			lastErr = fmt.Errorf("page %d: %w", p+1, err)
			continue
		}
		text = strings.TrimSpace(text)
		if len(text) > 0 {
			fullText.WriteString(text)
			fullText.WriteString("\n\n")
		}
	}

	result := strings.TrimSpace(fullText.String())
	if result == "" && lastErr != nil {
		return "", lastErr
	}
	return result, nil
}

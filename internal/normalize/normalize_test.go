package normalize

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fadilmartias/resume-screener/internal/apperrors"
)

func TestNormalizeImagePassthrough(t *testing.T) {
	n := NewWithFuncs(
		func([]byte) ([]byte, error) { t.Fatal("rasterize must not run for images"); return nil, nil },
		func([]byte) (string, error) { t.Fatal("textLayer must not run for images"); return "", nil },
	)

	data := []byte{0xFF, 0xD8, 0xFF} // jpeg magic
	doc, err := n.Normalize(data, "image/jpeg", "photo.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Kind != KindImage || !bytes.Equal(doc.Image, data) || doc.MimeType != "image/jpeg" {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestNormalizeRasterSuccess(t *testing.T) {
	rendered := []byte("png-bytes")
	n := NewWithFuncs(
		func([]byte) ([]byte, error) { return rendered, nil },
		func([]byte) (string, error) { t.Fatal("textLayer must not run when raster succeeds"); return "", nil },
	)

	doc, err := n.Normalize([]byte("%PDF-1.7"), "application/pdf", "resume.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Kind != KindImage || !bytes.Equal(doc.Image, rendered) || doc.MimeType != "image/png" {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestNormalizeTextFallback(t *testing.T) {
	n := NewWithFuncs(
		func([]byte) ([]byte, error) { return nil, errors.New("raster boom") },
		func([]byte) (string, error) { return "  embedded text layer  ", nil },
	)

	doc, err := n.Normalize([]byte("%PDF-1.7"), "application/pdf", "resume.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Kind != KindText || doc.Text != "embedded text layer" {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestNormalizeDoubleFailure(t *testing.T) {
	n := NewWithFuncs(
		func([]byte) ([]byte, error) { return nil, errors.New("raster boom") },
		func([]byte) (string, error) { return "", nil },
	)

	_, err := n.Normalize([]byte("%PDF-1.7"), "application/pdf", "resume.pdf")
	if err == nil {
		t.Fatal("expected normalization error")
	}
	if !apperrors.IsKind(err, apperrors.KindNormalization) {
		t.Errorf("expected normalization error, got %v", err)
	}
}

package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestHTTPOCREngine_RecognizeText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ocr", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "recognized text"})
	}))
	defer srv.Close()

	imgPath := writeTempFile(t, "scan.png", []byte("fake-image-bytes"))
	engine := NewHTTPOCREngine(srv.URL)

	text, err := engine.RecognizeText(context.Background(), imgPath)
	require.NoError(t, err)
	assert.Equal(t, "recognized text", text)
}

func TestHTTPPDFParser_ExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "pdf contents"})
	}))
	defer srv.Close()

	pdfPath := writeTempFile(t, "doc.pdf", []byte("%PDF-fake"))
	parser := NewHTTPPDFParser(srv.URL)

	text, err := parser.ExtractText(context.Background(), pdfPath)
	require.NoError(t, err)
	assert.Equal(t, "pdf contents", text)
}

func TestHTTPOCREngine_SidecarErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	imgPath := writeTempFile(t, "scan.png", []byte("fake-image-bytes"))
	engine := NewHTTPOCREngine(srv.URL)

	_, err := engine.RecognizeText(context.Background(), imgPath)
	require.Error(t, err)
}

func TestHTTPPDFParser_MissingFile(t *testing.T) {
	parser := NewHTTPPDFParser("http://unused")

	_, err := parser.ExtractText(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
}

package textextract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ExtractPath_SubmitsToTika(t *testing.T) {
	var gotAccept, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("  Jane Doe\n\nExperienced   engineer  "))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "cv.txt")
	require.NoError(t, os.WriteFile(path, []byte("raw bytes"), 0o644))

	c := New(srv.URL, 0)
	text, err := c.ExtractPath(context.Background(), "cv.txt", path)
	require.NoError(t, err)
	assert.Equal(t, "/tika", gotPath)
	assert.Equal(t, "text/plain", gotAccept)
	assert.Equal(t, "Jane Doe Experienced engineer", text)
}

func TestClient_ExtractPath_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "cv.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))

	c := New(srv.URL, 0)
	_, err := c.ExtractPath(context.Background(), "cv.pdf", path)
	require.Error(t, err)
}

func TestContentType_FallsBackToExtension(t *testing.T) {
	assert.Equal(t, "application/pdf", contentType("resume.pdf", []byte{0x00, 0x01}))
	assert.Equal(t, "", contentType("resume.unknown", []byte{0x00, 0x01}))
}

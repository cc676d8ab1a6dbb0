package server

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleArtifact_Download(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scan.pdf"), []byte("%PDF-1.4 body"), 0o644))

	cfg := testConfig()
	cfg.Artifact.Dir = dir
	s := New(cfg, zap.NewNop().Sugar())

	req := httptest.NewRequest(http.MethodGet, "/artifacts/scan.pdf", nil)
	rr := httptest.NewRecorder()
	s.HandleArtifact(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `attachment; filename="scan.pdf"`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4 body", rr.Body.String())
}

func TestHandleArtifact_Missing(t *testing.T) {
	cfg := testConfig()
	cfg.Artifact.Dir = t.TempDir()
	s := New(cfg, zap.NewNop().Sugar())

	req := httptest.NewRequest(http.MethodGet, "/artifacts/gone.pdf", nil)
	rr := httptest.NewRecorder()
	s.HandleArtifact(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleArtifact_RejectsTraversalAndDotfiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".secret"), []byte("hidden"), 0o644))

	cfg := testConfig()
	cfg.Artifact.Dir = dir
	s := New(cfg, zap.NewNop().Sugar())

	for _, target := range []string{
		"/artifacts/../go.mod",
		"/artifacts/sub/scan.pdf",
		"/artifacts/.secret",
		"/artifacts/",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rr := httptest.NewRecorder()
		s.HandleArtifact(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code, "Expected rejection for %q", target)
	}
}

func TestHandleIndex(t *testing.T) {
	s := New(testConfig(), zap.NewNop().Sugar())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	s.HandleIndex(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "printdesk")

	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr = httptest.NewRecorder()
	s.HandleIndex(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCheckOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AllowedOrigins = []string{"localhost", "print.example.com"}
	s := New(cfg, zap.NewNop().Sugar())

	cases := []struct {
		origin string
		want   bool
	}{
		{"", true}, // non-browser clients send no Origin
		{"http://localhost", true},
		{"http://localhost:8742", true},
		{"https://print.example.com", true},
		{"https://evil.example.com", false},
		{"::not a url::", false},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		assert.Equal(t, tc.want, s.checkOrigin(req), "origin %q", tc.origin)
	}
}

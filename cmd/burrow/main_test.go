package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burrow/scanner/internal/reporting"
)

type harness struct {
	stdin, stdout, stderr *os.File
	dir                   string
}

func newHarness(t *testing.T, stdinContent string) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{dir: dir}

	stdinPath := filepath.Join(dir, "stdin")
	require.NoError(t, os.WriteFile(stdinPath, []byte(stdinContent), 0644))

	var err error
	h.stdin, err = os.Open(stdinPath)
	require.NoError(t, err)
	h.stdout, err = os.Create(filepath.Join(dir, "stdout"))
	require.NoError(t, err)
	h.stderr, err = os.Create(filepath.Join(dir, "stderr"))
	require.NoError(t, err)

	t.Cleanup(func() {
		h.stdin.Close()
		h.stdout.Close()
		h.stderr.Close()
	})
	return h
}

func (h *harness) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.dir, name))
	require.NoError(t, err)
	return string(data)
}

func (h *harness) wordlist(t *testing.T, words ...string) string {
	t.Helper()
	path := filepath.Join(h.dir, "words.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(words, "\n")+"\n"), 0644))
	return path
}

func TestRun_Scan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin":
			w.Write([]byte("welcome admin"))
		case "/old":
			w.Header().Set("Location", "/new")
			w.WriteHeader(http.StatusMovedPermanently)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	h := newHarness(t, "")
	report := filepath.Join(h.dir, "report.json")
	code := run([]string{"-u", server.URL, "-w", h.wordlist(t, "admin", "old", "missing"), "-o", report, "-no-color"}, h.stdin, h.stdout, h.stderr)
	require.Equal(t, exitOK, code, h.read(t, "stderr"))

	out := h.read(t, "stdout")
	assert.Contains(t, out, "[200 OK] "+server.URL+"/admin [2W, 13C, 1L]")
	assert.Contains(t, out, "[301 Moved Permanently] "+server.URL+"/old -> /new [0W, 0C, 0L]")
	assert.NotContains(t, out, "missing")

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	var parsed reporting.ScanReport
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Len(t, parsed.Results, 2)
	assert.Equal(t, int64(3), parsed.Metadata.Requests)
}

func TestRun_TargetsFromStdinAsJSONLines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	h := newHarness(t, server.URL+"\n")
	code := run([]string{"-w", h.wordlist(t, "a", "b"), "-jsonl", "-v", "-no-color"}, h.stdin, h.stdout, h.stderr)
	require.Equal(t, exitOK, code, h.read(t, "stderr"))

	lines := strings.Split(strings.TrimSpace(h.read(t, "stdout")), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var o map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &o))
		assert.Equal(t, "suppressed", o["verdict"])
	}
}

func TestRun_DryRun(t *testing.T) {
	h := newHarness(t, "")
	code := run([]string{"-u", "http://example.invalid/app", "-w", h.wordlist(t, "a", "b"), "-depth", "1", "-dry-run"}, h.stdin, h.stdout, h.stderr)
	require.Equal(t, exitOK, code)

	out := h.read(t, "stdout")
	assert.Contains(t, out, "first=http://example.invalid/app/a")
	assert.Contains(t, out, "max-requests=6")
}

func TestRun_ConfigErrors(t *testing.T) {
	h := newHarness(t, "")

	assert.Equal(t, exitError, run([]string{"-w", h.wordlist(t, "a")}, h.stdin, h.stdout, h.stderr))
	assert.Equal(t, exitError, run([]string{"-u", "http://example.com", "-w", h.wordlist(t, "a"), "-fuzz"}, h.stdin, h.stdout, h.stderr))
	assert.Equal(t, exitError, run([]string{"-bogus"}, h.stdin, h.stdout, h.stderr))
	assert.Equal(t, exitOK, run([]string{"-h"}, h.stdin, h.stdout, h.stderr))

	assert.Contains(t, h.read(t, "stderr"), "Error:")
}

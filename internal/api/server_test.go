package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/0mp/rstfmt/internal/config"
	"github.com/0mp/rstfmt/internal/doctree"
	"github.com/0mp/rstfmt/internal/markup"
	"github.com/0mp/rstfmt/internal/markup/text"
	"github.com/0mp/rstfmt/internal/roundtrip"
)

func testConfig() config.Config {
	return config.Config{
		Width:          72,
		Widths:         roundtrip.DefaultWidths,
		MaxUploadBytes: 1 << 20,
		CodeLanguages:  []string{"go"},
		Jobs:           1,
	}
}

func newTestServer(cfg config.Config) *Server {
	return NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
}

func do(t *testing.T, s *Server, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(testConfig()), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"status":"ok"}` {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestDialects(t *testing.T) {
	rec := do(t, newTestServer(testConfig()), http.MethodGet, "/api/dialects", "")
	var resp struct {
		Dialects []string `json:"dialects"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := strings.Join(resp.Dialects, ",")
	for _, want := range []string{"markdown", "rst", "text"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %q", want, got)
		}
	}
}

func TestFormat(t *testing.T) {
	s := newTestServer(testConfig())
	tests := []struct {
		name   string
		target string
		body   string
		code   int
		want   string
	}{
		{"rst default", "/api/format?width=20", "The quick brown fox jumps over the lazy dog.\n", 200, "The quick brown fox\njumps over the lazy\ndog.\n"},
		{"markdown by filename", "/api/format?filename=docs/README.md", "Title\n=====\n", 200, "# Title\n"},
		{"explicit dialect", "/api/format?dialect=text&width=none", "a\nb\n", 200, "a b\n"},
		{"unknown dialect", "/api/format?dialect=asciidoc", "x", 400, "unknown dialect"},
		{"unknown extension", "/api/format?filename=x.adoc", "x", 400, "unsupported file extension"},
		{"bad width", "/api/format?width=-4", "x", 400, "invalid width"},
		{"parse error", "/api/format", "Intro.\n\n.. _broken\n", 422, `"line":3`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.target, tt.body)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
			if tt.code == 200 && rec.Body.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, rec.Body.String())
			}
			if tt.code != 200 && !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("expected body containing %q, got %q", tt.want, rec.Body.String())
			}
		})
	}
}

func TestFormat_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 8
	rec := do(t, newTestServer(cfg), http.MethodPost, "/api/format", "this body is too long\n")
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func decodeCheck(t *testing.T, rec *httptest.ResponseRecorder) checkResponse {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp checkResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestCheck_OK(t *testing.T) {
	body := "Title\n=====\n\n- one\n- two\n\n  - nested\n"
	resp := decodeCheck(t, do(t, newTestServer(testConfig()), http.MethodPost, "/api/check", body))
	if !resp.OK || resp.Error != "" || len(resp.Artifacts) != 0 {
		t.Errorf("expected a clean check, got %+v", resp)
	}
}

// apiLossy drops the last paragraph when formatting.
type apiLossy struct{ text.Dialect }

func (apiLossy) Name() string { return "api-lossy" }

func (apiLossy) Format(doc *doctree.Node, w markup.Width) (string, error) {
	kept := doc.Children[:max(len(doc.Children)-1, 0)]
	return text.Format(doctree.New(doctree.Document, kept...), w)
}

func TestCheck_Failure(t *testing.T) {
	markup.Register(apiLossy{})
	s := newTestServer(testConfig())

	resp := decodeCheck(t, do(t, s, http.MethodPost, "/api/check?dialect=api-lossy", "One.\n\nTwo.\n"))
	if resp.OK {
		t.Fatal("expected failure")
	}
	if len(resp.Failures) != 1 {
		t.Fatalf("expected fail-fast to report 1 failure, got %d", len(resp.Failures))
	}
	f := resp.Failures[0]
	if f.Width != "1" || f.Property != "roundtrip" || f.Reason != "different num children" || f.Path != "Document" {
		t.Errorf("unexpected failure %+v", f)
	}
	if _, ok := resp.Artifacts["dump1.txt"]; !ok || len(resp.Artifacts) != 4 {
		t.Errorf("expected four artifacts, got %v", resp.Artifacts)
	}

	resp = decodeCheck(t, do(t, s, http.MethodPost, "/api/check?dialect=api-lossy&keep_going=true", "One.\n\nTwo.\n"))
	if len(resp.Failures) != len(roundtrip.DefaultWidths) {
		t.Errorf("expected a failure per width, got %d", len(resp.Failures))
	}
	if _, ok := resp.Artifacts["out2-wunbounded.txt"]; !ok {
		t.Errorf("expected width-suffixed artifacts, got %d", len(resp.Artifacts))
	}
}

func TestDump(t *testing.T) {
	rec := do(t, newTestServer(testConfig()), http.MethodPost, "/api/dump?dialect=markdown", "Hello *world*\n")
	want := "- Document {}\n" +
		"    - Paragraph {}\n" +
		"        - Text \"Hello \"\n" +
		"        - Emphasis {}\n" +
		"            - Text \"world\"\n"
	if rec.Body.String() != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, rec.Body.String())
	}
}

func TestAuth(t *testing.T) {
	cfg := testConfig()
	cfg.APIKey = "secret"
	s := newTestServer(cfg)

	if rec := do(t, s, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("expected public health, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/format", "x"); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/format", "x", "Authorization", "Bearer nope"); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a wrong token, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/format", "x", "Authorization", "Bearer secret"); rec.Code != http.StatusOK {
		t.Errorf("expected 200 with the right token, got %d", rec.Code)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"../../etc/notes.rst": "notes.rst",
		"a\\b.md":             "a_b.md",
		"":                    "unnamed",
		"..":                  "unnamed",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestCollectFailures(t *testing.T) {
	f8 := &roundtrip.Failure{Dialect: "rst", Width: 8, Property: roundtrip.RoundTrip}
	f13 := &roundtrip.Failure{Dialect: "rst", Width: 13, Property: roundtrip.Idempotence}
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{"single", f8, []string{"8"}},
		{"wrapped", fmt.Errorf("doc.rst: %w", f8), []string{"8"}},
		{"joined", errors.Join(f8, f13), []string{"8", "13"}},
		{"wrapped join", fmt.Errorf("doc.rst: %w", errors.Join(f8, errors.New("disk full"))), []string{"8"}},
		{"joined wrapped", errors.Join(fmt.Errorf("a: %w", f8), fmt.Errorf("b: %w", f13)), []string{"8", "13"}},
		{"unrelated", errors.New("boom"), nil},
	}
	for _, tt := range tests {
		got := collectFailures(tt.err)
		if len(got) != len(tt.want) {
			t.Errorf("%s: expected %d failures, got %d", tt.name, len(tt.want), len(got))
			continue
		}
		for i := range got {
			if got[i].Width != tt.want[i] {
				t.Errorf("%s: failure %d: expected width %s, got %s", tt.name, i, tt.want[i], got[i].Width)
			}
		}
	}
}

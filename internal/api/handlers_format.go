package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/0mp/rstfmt/internal/doctree"
	"github.com/0mp/rstfmt/internal/markup"
	"github.com/0mp/rstfmt/internal/nodeeq"
	"github.com/0mp/rstfmt/internal/roundtrip"
)

// defaultDialect is used when a request names neither a dialect nor a file.
const defaultDialect = "rst"

// readDocument resolves the request's dialect and reads the body. It writes
// the error response itself and reports false when the request is unusable.
func (s *Server) readDocument(w http.ResponseWriter, r *http.Request) (markup.Dialect, string, bool) {
	q := r.URL.Query()
	var d markup.Dialect
	var err error
	switch {
	case q.Get("dialect") != "":
		d, err = markup.Lookup(q.Get("dialect"))
	case q.Get("filename") != "":
		filename := sanitizeFilename(q.Get("filename"))
		d, err = markup.ForFile(filename)
	default:
		d, err = markup.Lookup(defaultDialect)
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil, "", false
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("document exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return nil, "", false
		}
		jsonError(w, "failed to read document", http.StatusBadRequest)
		return nil, "", false
	}
	return d, string(data), true
}

func (s *Server) parse(w http.ResponseWriter, d markup.Dialect, src string) (*doctree.Node, bool) {
	doc, err := d.Parse(src)
	if err != nil {
		parseError(w, err)
		return nil, false
	}
	return doc, true
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	width := s.cfg.Width
	if v := r.URL.Query().Get("width"); v != "" {
		parsed, err := markup.ParseWidth(v)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		width = parsed
	}

	d, src, ok := s.readDocument(w, r)
	if !ok {
		return
	}
	doc, ok := s.parse(w, d, src)
	if !ok {
		return
	}
	out, err := d.Format(doc, width)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, out)
}

type checkFailure struct {
	Width    string `json:"width"`
	Property string `json:"property"`
	Reason   string `json:"reason,omitempty"`
	Path     string `json:"path,omitempty"`
}

type checkResponse struct {
	OK        bool              `json:"ok"`
	Error     string            `json:"error,omitempty"`
	Failures  []checkFailure    `json:"failures,omitempty"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	d, src, ok := s.readDocument(w, r)
	if !ok {
		return
	}
	doc, ok := s.parse(w, d, src)
	if !ok {
		return
	}

	sink := &roundtrip.MemSink{}
	opts := []roundtrip.Option{
		roundtrip.WithWidths(s.cfg.Widths...),
		roundtrip.WithSink(sink),
		roundtrip.WithLogger(s.log),
		roundtrip.WithOracle(nodeeq.Oracle{Log: s.log, Code: s.code}),
	}
	if s.cfg.KeepGoing || r.URL.Query().Get("keep_going") == "true" {
		opts = append(opts, roundtrip.KeepGoing())
	}

	resp := checkResponse{OK: true}
	if err := roundtrip.Run(d, doc, opts...); err != nil {
		resp.OK = false
		resp.Error = err.Error()
		resp.Failures = collectFailures(err)
		resp.Artifacts = make(map[string]string)
		for _, name := range sink.Names() {
			resp.Artifacts[name], _ = sink.Get(name)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// collectFailures flattens a single or joined round-trip error.
func collectFailures(err error) []checkFailure {
	var out []checkFailure
	var walk func(error)
	walk = func(err error) {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				walk(e)
			}
			return
		}
		var f *roundtrip.Failure
		if errors.As(err, &f) {
			cf := checkFailure{Width: f.Width.String(), Property: string(f.Property)}
			if f.Mismatch != nil {
				cf.Reason, cf.Path = string(f.Mismatch.Reason), f.Mismatch.Location()
			}
			out = append(out, cf)
		}
	}
	walk(err)
	return out
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	d, src, ok := s.readDocument(w, r)
	if !ok {
		return
	}
	doc, ok := s.parse(w, d, src)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := doctree.Dump(&buf, doc); err != nil {
		jsonError(w, "failed to dump tree", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(buf.Bytes())
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// parseError reports a malformed document with its line when known.
func parseError(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	var pe *markup.ParseError
	if errors.As(err, &pe) && pe.Line > 0 {
		body["line"] = pe.Line
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	json.NewEncoder(w).Encode(body)
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" || name == "." || name == ".." {
		name = "unnamed"
	}
	return name
}

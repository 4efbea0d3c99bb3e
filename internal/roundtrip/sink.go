package roundtrip

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Sink receives diagnostic artifacts when a check fails.
type Sink interface {
	Create(name string) (io.WriteCloser, error)
}

// DirSink writes artifacts as files in a directory, creating it on first
// use.
type DirSink string

func (d DirSink) Create(name string) (io.WriteCloser, error) {
	if err := os.MkdirAll(string(d), 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	f, err := os.Create(filepath.Join(string(d), name))
	if err != nil {
		return nil, err
	}
	return f, nil
}

// MemSink keeps artifacts in memory. The zero value is ready to use.
type MemSink struct {
	mu    sync.Mutex
	files map[string]*bytes.Buffer
}

func (m *MemSink) Create(name string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string]*bytes.Buffer)
	}
	buf := &bytes.Buffer{}
	m.files[name] = buf
	return &memFile{mu: &m.mu, buf: buf}, nil
}

// Get returns the contents of an artifact and whether it was written.
func (m *MemSink) Get(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.files[name]
	if !ok {
		return "", false
	}
	return buf.String(), true
}

// Names lists the artifacts written so far, sorted.
func (m *MemSink) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.files))
	for n := range m.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type memFile struct {
	mu  *sync.Mutex
	buf *bytes.Buffer
}

func (f *memFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buf.Write(p)
}

func (f *memFile) Close() error { return nil }

// Discard drops every artifact.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Create(string) (io.WriteCloser, error) {
	return nopCloser{io.Discard}, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

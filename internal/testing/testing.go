// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/spotlike/internal/models"
)

// MemoryStore is an in-memory test double for the auth record store.
type MemoryStore struct {
	mu      sync.Mutex
	Record  models.AuthRecord
	Saves   int
	LoadErr error
	SaveErr error
	path    string
}

func NewMemoryStore(record models.AuthRecord) *MemoryStore {
	return &MemoryStore{Record: record, path: "/tmp/spotlike-test/spotify-auth.json"}
}

func (m *MemoryStore) Load() (models.AuthRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return models.AuthRecord{}, m.LoadErr
	}
	return m.Record, nil
}

func (m *MemoryStore) Save(record models.AuthRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Record = record
	m.Saves++
	return nil
}

func (m *MemoryStore) Path() string { return m.path }

// Snapshot returns the stored record and the number of successful saves.
func (m *MemoryStore) Snapshot() (models.AuthRecord, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Record, m.Saves
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
	Calls    int
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	m.Calls++
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// RecordingOpener captures URLs passed to a browser opener.
type RecordingOpener struct {
	mu   sync.Mutex
	URLs []string
	Err  error
	// OnOpen runs in its own goroutine after the URL is recorded, e.g. to simulate the browser redirect.
	OnOpen func(url string)
}

func (o *RecordingOpener) Open(url string) error {
	o.mu.Lock()
	o.URLs = append(o.URLs, url)
	o.mu.Unlock()
	if o.OnOpen != nil {
		go o.OnOpen(url)
	}
	return o.Err
}

func (o *RecordingOpener) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.URLs)
}

// TempAuthFile returns a path for an auth file inside a fresh temp directory that does not exist yet.
func TempAuthFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "ags", "private", "spotify-auth.json")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

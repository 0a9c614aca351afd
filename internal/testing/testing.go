// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/questsync/internal/models"
)

// MockBridge is a scriptable test double for [services.Bridge].
//
// Track is returned by CurrentTrack; Fail makes every control and CreatePlaylist report failure.
type MockBridge struct {
	mu sync.Mutex

	Track       *models.TrackInfo
	Fail        bool
	Unauthed    bool
	PlaylistURL string

	Calls     []string
	Playlists map[string][]string
}

func (m *MockBridge) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// SetTrack swaps the current track while a tracker is polling.
func (m *MockBridge) SetTrack(track *models.TrackInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Track = track
}

// CallCount returns how many times call was made.
func (m *MockBridge) CallCount(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == call {
			n++
		}
	}
	return n
}

func (m *MockBridge) IsAuthenticated(ctx context.Context) bool { return !m.Unauthed }

func (m *MockBridge) CurrentTrack(ctx context.Context) *models.TrackInfo {
	m.record("current")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Track == nil {
		return nil
	}
	track := *m.Track
	return &track
}

func (m *MockBridge) Play(ctx context.Context) bool     { m.record("play"); return !m.Fail }
func (m *MockBridge) Pause(ctx context.Context) bool    { m.record("pause"); return !m.Fail }
func (m *MockBridge) Next(ctx context.Context) bool     { m.record("next"); return !m.Fail }
func (m *MockBridge) Previous(ctx context.Context) bool { m.record("previous"); return !m.Fail }

func (m *MockBridge) CreatePlaylist(ctx context.Context, name string, uris []string) (string, bool) {
	m.record("create_playlist")
	if m.Fail {
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Playlists == nil {
		m.Playlists = make(map[string][]string)
	}
	m.Playlists[name] = append([]string(nil), uris...)

	if m.PlaylistURL == "" {
		return "https://open.spotify.com/playlist/mock", true
	}
	return m.PlaylistURL, true
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
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
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

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
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

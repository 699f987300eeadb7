// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/services"
	"github.com/desertthunder/onyx/internal/shared"
)

// MockSearcher is a test double for [services.VideoSearcher].
//
// Results are keyed by the exact query; queries without an entry return Default.
type MockSearcher struct {
	mu      sync.Mutex
	Results map[string][]models.Video
	Default []models.Video
	Err     error
	Queries []string
}

func (m *MockSearcher) Search(ctx context.Context, query string, limit int) ([]models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	if m.Err != nil {
		return nil, m.Err
	}
	videos, ok := m.Results[query]
	if !ok {
		videos = m.Default
	}
	if limit > 0 && len(videos) > limit {
		videos = videos[:limit]
	}
	return videos, nil
}

// Calls returns the queries seen so far.
func (m *MockSearcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Queries...)
}

// MockSingleSearcher is a test double for [services.SingleSearcher]
type MockSingleSearcher struct {
	mu      sync.Mutex
	Video   *models.Video
	Err     error
	Queries []string
}

func (m *MockSingleSearcher) SearchOne(ctx context.Context, query string) (*models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Video == nil {
		return nil, shared.ErrNoResults
	}
	return m.Video, nil
}

// MockExtractor is a test double for [services.Extractor].
//
// When Block is set, Info and Download wait for it to be closed (or ctx to end) before returning.
// Download writes Content to the target path unless DownloadErr is set. When Partial is set, Download
// writes it to the target path before waiting and appends Content once released.
type MockExtractor struct {
	Result      *services.VideoInfo
	InfoErr     error
	DownloadErr error
	PipeErr     error
	Content     []byte
	Partial     []byte
	Block       chan struct{}

	// DownloadPaths records every path handed to Download.
	DownloadPaths []string
	mu            sync.Mutex

	InfoCalls     atomic.Int32
	DownloadCalls atomic.Int32
	PipeCalls     atomic.Int32
}

func (m *MockExtractor) wait(ctx context.Context) error {
	if m.Block == nil {
		return nil
	}
	select {
	case <-m.Block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockExtractor) Info(ctx context.Context, videoID string) (*services.VideoInfo, error) {
	m.InfoCalls.Add(1)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.InfoErr != nil {
		return nil, m.InfoErr
	}
	if m.Result == nil {
		return &services.VideoInfo{ID: videoID}, nil
	}
	return m.Result, nil
}

func (m *MockExtractor) Download(ctx context.Context, videoID, path string) error {
	m.DownloadCalls.Add(1)
	m.mu.Lock()
	m.DownloadPaths = append(m.DownloadPaths, path)
	m.mu.Unlock()

	if m.Partial != nil {
		if err := os.WriteFile(path, m.Partial, 0o644); err != nil {
			return err
		}
	}
	if err := m.wait(ctx); err != nil {
		return err
	}
	if m.DownloadErr != nil {
		return m.DownloadErr
	}
	content := m.Content
	if content == nil {
		content = []byte("audio:" + videoID)
	}
	return os.WriteFile(path, append(append([]byte(nil), m.Partial...), content...), 0o644)
}

// Paths returns a copy of the paths handed to Download.
func (m *MockExtractor) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.DownloadPaths...)
}

func (m *MockExtractor) Pipe(ctx context.Context, videoID string, w io.Writer) error {
	m.PipeCalls.Add(1)
	if m.PipeErr != nil {
		return m.PipeErr
	}
	content := m.Content
	if content == nil {
		content = []byte("audio:" + videoID)
	}
	_, err := w.Write(content)
	return err
}

// MockMetadata is a test double for [services.MetadataSource]
type MockMetadata struct {
	Tracks    map[string]models.TrackMetadata
	Releases  []models.TrackMetadata
	Playlists map[string]*models.Playlist
	Err       error
}

func (m *MockMetadata) SearchTracks(ctx context.Context, query string, limit int) ([]models.TrackMetadata, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.TrackMetadata, 0, len(m.Tracks))
	for _, t := range m.Tracks {
		out = append(out, t)
	}
	return out, nil
}

func (m *MockMetadata) Track(ctx context.Context, trackID string) (*models.TrackMetadata, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.Tracks[trackID]
	if !ok {
		return nil, shared.ErrTrackNotFound
	}
	return &t, nil
}

func (m *MockMetadata) Recommendations(ctx context.Context, seedTrackID string, limit int) ([]models.TrackMetadata, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []models.TrackMetadata
	for id, t := range m.Tracks {
		if id != seedTrackID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockMetadata) NewReleases(ctx context.Context, limit int) ([]models.TrackMetadata, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if limit > 0 && len(m.Releases) > limit {
		return m.Releases[:limit], nil
	}
	return m.Releases, nil
}

func (m *MockMetadata) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.Playlists[playlistID]
	if !ok {
		return nil, shared.ErrTrackNotFound
	}
	return p, nil
}

// MockPlaylister serves video playlists from a map.
type MockPlaylister struct {
	Playlists map[string]*models.VideoPlaylist
	Err       error
}

func (m *MockPlaylister) Playlist(ctx context.Context, playlistID string) (*models.VideoPlaylist, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrUpstreamUnavailable, playlistID)
	}
	return p, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
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

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// AudioExt is the container extension of cached audio files.
const AudioExt = ".webm"

// PartialExt marks a download that has not been moved into place yet.
const PartialExt = ".part"

// stalePartialAge is how old a partial download must be before it is swept.
const stalePartialAge = time.Hour

// FileCache is a directory of downloaded audio files named "<videoId>.webm".
//
// File modification time is the only recency signal.
type FileCache struct {
	dir    string
	logger *log.Logger
}

// FileStats summarises the contents of a [FileCache].
type FileStats struct {
	Files int
	Bytes int64
}

func (s FileStats) String() string {
	return fmt.Sprintf("%d files, %s", s.Files, humanize.IBytes(uint64(s.Bytes)))
}

type cachedFile struct {
	path    string
	modTime time.Time
	size    int64
}

// NewFileCache returns a cache rooted at dir. The directory is created lazily.
func NewFileCache(dir string, logger *log.Logger) *FileCache {
	return &FileCache{dir: dir, logger: logger}
}

// Dir returns the cache directory.
func (f *FileCache) Dir() string { return f.dir }

// Path maps a video id to its on-disk location. It does not check existence.
func (f *FileCache) Path(videoID string) string {
	return filepath.Join(f.dir, filepath.Base(videoID)+AudioExt)
}

// PartialPath returns a fresh temporary location for a download of videoID in the cache directory.
//
// Partial files never carry [AudioExt], so listing, eviction and stats ignore them.
func (f *FileCache) PartialPath(videoID string) string {
	name := fmt.Sprintf(".%s.%s%s", filepath.Base(videoID), uuid.NewString()[:8], PartialExt)
	return filepath.Join(f.dir, name)
}

// SweepPartials removes partial downloads older than an hour, left behind by an interrupted process.
func (f *FileCache) SweepPartials() int {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return 0
	}

	cutoff := time.Now().Add(-stalePartialAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), PartialExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(f.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			f.logger.Warn("failed to remove partial download", "path", path, "err", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		f.logger.Info("removed stale partial downloads", "removed", removed)
	}
	return removed
}

// Exists reports whether the audio file for videoID is present.
func (f *FileCache) Exists(videoID string) bool {
	info, err := os.Stat(f.Path(videoID))
	return err == nil && !info.IsDir()
}

// EnsureDir creates the cache directory if absent.
func (f *FileCache) EnsureDir() error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create audio cache directory: %w", err)
	}
	return nil
}

// list returns cached audio files sorted oldest first.
func (f *FileCache) list() ([]cachedFile, error) {
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audio cache directory: %w", err)
	}

	files := make([]cachedFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), AudioExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, cachedFile{
			path:    filepath.Join(f.dir, entry.Name()),
			modTime: info.ModTime(),
			size:    info.Size(),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.Before(files[j].modTime)
	})
	return files, nil
}

// Evict deletes the oldest files until at most maxFiles remain.
//
// A failed deletion is logged and the remaining deletions still run. The returned count only includes removed files.
func (f *FileCache) Evict(maxFiles int) (int, error) {
	if maxFiles < 0 {
		maxFiles = 0
	}

	files, err := f.list()
	if err != nil {
		return 0, err
	}
	if len(files) <= maxFiles {
		return 0, nil
	}

	var errs []error
	removed := 0
	for _, file := range files[:len(files)-maxFiles] {
		if err := os.Remove(file.path); err != nil {
			f.logger.Warn("failed to evict cached file", "path", file.path, "err", err)
			errs = append(errs, err)
			continue
		}
		removed++
		f.logger.Debug("evicted cached file", "path", file.path)
	}

	if removed > 0 {
		f.logger.Info("evicted old cached files", "removed", removed, "max", maxFiles)
	}
	return removed, errors.Join(errs...)
}

// Clear deletes every cached audio file, logging each failure individually.
func (f *FileCache) Clear() (int, error) {
	return f.Evict(0)
}

// Stats counts cached audio files and their total size.
func (f *FileCache) Stats() (FileStats, error) {
	files, err := f.list()
	if err != nil {
		return FileStats{}, err
	}

	stats := FileStats{Files: len(files)}
	for _, file := range files {
		stats.Bytes += file.size
	}
	return stats, nil
}

package locator

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/services"
	"github.com/desertthunder/onyx/internal/shared"
	"golang.org/x/sync/singleflight"
)

// AudioCache is the part of the store the locator reads and fills.
type AudioCache interface {
	StreamURL(videoID string) (string, bool)
	SetStreamURL(videoID, url string, ttl time.Duration)
	Preferences() models.Preferences
	CacheFilePath(videoID string) string
	PartialFilePath(videoID string) string
	HasFile(videoID string) bool
	EvictOldFiles(maxFiles int) (int, error)
}

// DefaultExtractTimeout bounds a shared stream URL extraction.
const DefaultExtractTimeout = 2 * time.Minute

// Options configures a [Locator].
//
// A zero StreamTTL defers to the cache's own default. A non-positive MaxFiles uses the cache's bound.
type Options struct {
	Cache          AudioCache
	Extractor      services.Extractor
	StreamTTL      time.Duration
	ExtractTimeout time.Duration
	MaxFiles       int
	Logger         *log.Logger
}

// Locator turns video ids into playable audio.
type Locator struct {
	cache     AudioCache
	extractor services.Extractor
	streamTTL time.Duration
	timeout   time.Duration
	maxFiles  int
	logger    *log.Logger

	group singleflight.Group

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a locator. Cache and Extractor are required.
func New(opts Options) (*Locator, error) {
	if opts.Cache == nil || opts.Extractor == nil {
		return nil, fmt.Errorf("%w: locator needs a cache and an extractor", shared.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.ExtractTimeout <= 0 {
		opts.ExtractTimeout = DefaultExtractTimeout
	}
	return &Locator{
		cache:     opts.Cache,
		extractor: opts.Extractor,
		streamTTL: opts.StreamTTL,
		timeout:   opts.ExtractTimeout,
		maxFiles:  opts.MaxFiles,
		logger:    shared.WithLogger(opts.Logger, "component", "locator"),
		inFlight:  make(map[string]struct{}),
	}, nil
}

// StreamURL returns a direct audio URL for videoID.
//
// Cached URLs are returned as is. Concurrent misses for the same id share one extraction, which runs
// detached from any single caller: a caller whose ctx ends gets ctx.Err() while the others keep waiting.
func (l *Locator) StreamURL(ctx context.Context, videoID string) (string, error) {
	if videoID == "" {
		return "", fmt.Errorf("%w: video id", shared.ErrMissingArgument)
	}
	if url, ok := l.cache.StreamURL(videoID); ok {
		l.logger.Debug("stream cache hit", "video", videoID)
		return url, nil
	}

	flight := l.group.DoChan(videoID, func() (any, error) {
		ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()
		return l.extract(ectx, videoID)
	})

	select {
	case <-ctx.Done():
		l.logger.Debug("stream lookup abandoned", "video", videoID, "err", ctx.Err())
		return "", ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			l.logger.Error("stream extraction failed", "video", videoID, "err", res.Err)
			return "", res.Err
		}
		if res.Shared {
			l.logger.Debug("stream extraction shared", "video", videoID)
		}
		return res.Val.(string), nil
	}
}

func (l *Locator) extract(ctx context.Context, videoID string) (string, error) {
	info, err := l.extractor.Info(ctx, videoID)
	if err != nil {
		return "", err
	}
	format, ok := info.BestAudio()
	if !ok {
		return "", fmt.Errorf("%w: no usable format for %s", shared.ErrExtractionFailed, videoID)
	}

	l.cache.SetStreamURL(videoID, format.URL, l.streamTTL)
	l.logger.Info("stream url extracted", "video", videoID, "format", format.FormatID, "codec", format.ACodec)
	return format.URL, nil
}

// Cached reports whether the audio for videoID is fully downloaded. A running download is never cached.
func (l *Locator) Cached(videoID string) bool {
	return !l.InFlight(videoID) && l.cache.HasFile(videoID)
}

// InFlight reports whether a download for videoID is running.
func (l *Locator) InFlight(videoID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.inFlight[videoID]
	return ok
}

// claim marks videoID in flight, reporting false if it already was.
func (l *Locator) claim(videoID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.inFlight[videoID]; ok {
		return false
	}
	l.inFlight[videoID] = struct{}{}
	return true
}

func (l *Locator) release(videoID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, videoID)
}

// DownloadAndCache writes the audio for videoID into the file cache.
//
// The extractor writes to a partial file that is renamed into place only on success, so the cached file is
// always complete. It is best effort: data saver, a running download for the same id, or an existing file make it a no-op,
// and failures are logged rather than returned. A successful download triggers eviction.
func (l *Locator) DownloadAndCache(ctx context.Context, videoID string) {
	logger := l.logger.With("video", videoID)

	switch {
	case videoID == "":
		return
	case l.cache.Preferences().DataSaver:
		logger.Debug("data saver enabled, skipping download")
		return
	case !l.claim(videoID):
		logger.Debug("download already in flight")
		return
	}
	defer l.release(videoID)

	if l.cache.HasFile(videoID) {
		logger.Debug("audio already cached")
		return
	}

	path := l.cache.CacheFilePath(videoID)
	partial := l.cache.PartialFilePath(videoID)
	defer os.Remove(partial)

	start := time.Now()
	if err := l.extractor.Download(ctx, videoID, partial); err != nil {
		logger.Error("download failed", "err", err)
		return
	}
	if err := os.Rename(partial, path); err != nil {
		logger.Error("failed to move download into cache", "err", err)
		return
	}
	logger.Info("download complete", "path", path, "took", time.Since(start).Round(time.Millisecond))

	if removed, err := l.cache.EvictOldFiles(l.maxFiles); err != nil {
		logger.Warn("eviction incomplete", "removed", removed, "err", err)
	} else if removed > 0 {
		logger.Info("evicted old files", "removed", removed)
	}
}

// Pipe writes the audio for videoID to w.
//
// A cached file is copied directly; otherwise, including while a download is running, the extractor streams
// it until completion or ctx is cancelled.
func (l *Locator) Pipe(ctx context.Context, videoID string, w io.Writer) error {
	if videoID == "" {
		return fmt.Errorf("%w: video id", shared.ErrMissingArgument)
	}

	if l.Cached(videoID) {
		f, err := os.Open(l.cache.CacheFilePath(videoID))
		if err == nil {
			defer f.Close()
			l.logger.Debug("piping cached file", "video", videoID)
			_, err = io.Copy(w, f)
			return err
		}
		l.logger.Warn("cached file unreadable, streaming instead", "video", videoID, "err", err)
	}

	if err := l.extractor.Pipe(ctx, videoID, w); err != nil {
		if ctx.Err() != nil {
			l.logger.Debug("pipe cancelled", "video", videoID)
			return ctx.Err()
		}
		l.logger.Error("pipe failed", "video", videoID, "err", err)
		return err
	}
	return nil
}

package locator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/services"
	"github.com/desertthunder/onyx/internal/shared"
	"github.com/desertthunder/onyx/internal/store"
	tu "github.com/desertthunder/onyx/internal/testing"
)

func newStore(t *testing.T, maxFiles int) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.New(store.Options{
		Persister: store.NewFilePersister(filepath.Join(dir, "cache.json")),
		AudioDir:  filepath.Join(dir, "audio"),
		MaxFiles:  maxFiles,
		Logger:    shared.NewLogger(&bytes.Buffer{}),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return s
}

func newLocator(t *testing.T, s *store.Store, ex *tu.MockExtractor) *Locator {
	t.Helper()
	l, err := New(Options{Cache: s, Extractor: ex, Logger: shared.NewLogger(&bytes.Buffer{})})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return l
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLocator(t *testing.T) {
	ctx := context.Background()

	t.Run("New Requires Dependencies", func(t *testing.T) {
		if _, err := New(Options{Extractor: &tu.MockExtractor{}}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("StreamURL", func(t *testing.T) {
		t.Run("Selects Audio Only Format And Caches", func(t *testing.T) {
			s := newStore(t, 20)
			ex := &tu.MockExtractor{Result: &services.VideoInfo{ID: "v1", Formats: []services.Format{
				{FormatID: "18", URL: "https://media/muxed", ACodec: "mp4a", VCodec: "avc1"},
				{FormatID: "251", URL: "https://media/opus", ACodec: "opus", VCodec: "none"},
				{FormatID: "140", URL: "https://media/m4a", ACodec: "mp4a", VCodec: "none"},
			}}}
			l := newLocator(t, s, ex)

			url, err := l.StreamURL(ctx, "v1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if url != "https://media/opus" {
				t.Errorf("expected first audio-only format, got %s", url)
			}
			if cached, ok := s.StreamURL("v1"); !ok || cached != url {
				t.Errorf("expected url to be cached, got %q", cached)
			}

			if _, err := l.StreamURL(ctx, "v1"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got := ex.InfoCalls.Load(); got != 1 {
				t.Errorf("expected 1 extraction, got %d", got)
			}
		})

		t.Run("Falls Back To First Format", func(t *testing.T) {
			ex := &tu.MockExtractor{Result: &services.VideoInfo{Formats: []services.Format{
				{FormatID: "18", URL: "https://media/muxed", ACodec: "mp4a", VCodec: "avc1"},
			}}}
			url, err := newLocator(t, newStore(t, 20), ex).StreamURL(ctx, "v2")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if url != "https://media/muxed" {
				t.Errorf("expected fallback format, got %s", url)
			}
		})

		t.Run("No Usable Format", func(t *testing.T) {
			s := newStore(t, 20)
			ex := &tu.MockExtractor{Result: &services.VideoInfo{}}
			if _, err := newLocator(t, s, ex).StreamURL(ctx, "v3"); !errors.Is(err, shared.ErrExtractionFailed) {
				t.Errorf("expected ErrExtractionFailed, got %v", err)
			}
			if _, ok := s.StreamURL("v3"); ok {
				t.Error("expected nothing cached on failure")
			}
		})

		t.Run("Extraction Error Propagates", func(t *testing.T) {
			ex := &tu.MockExtractor{InfoErr: shared.ErrExtractionFailed}
			if _, err := newLocator(t, newStore(t, 20), ex).StreamURL(ctx, "v4"); !errors.Is(err, shared.ErrExtractionFailed) {
				t.Errorf("expected ErrExtractionFailed, got %v", err)
			}
		})

		t.Run("Concurrent Misses Share Extraction", func(t *testing.T) {
			ex := &tu.MockExtractor{
				Block:  make(chan struct{}),
				Result: &services.VideoInfo{Formats: []services.Format{{URL: "https://media/a", ACodec: "opus", VCodec: "none"}}},
			}
			l := newLocator(t, newStore(t, 20), ex)

			var wg sync.WaitGroup
			urls := make([]string, 4)
			for i := range urls {
				wg.Add(1)
				go func() {
					defer wg.Done()
					urls[i], _ = l.StreamURL(ctx, "v5")
				}()
			}
			waitFor(t, func() bool { return ex.InfoCalls.Load() == 1 })
			time.Sleep(50 * time.Millisecond)
			close(ex.Block)
			wg.Wait()

			if got := ex.InfoCalls.Load(); got != 1 {
				t.Errorf("expected 1 extraction, got %d", got)
			}
			for _, u := range urls {
				if u != "https://media/a" {
					t.Errorf("expected shared url, got %q", u)
				}
			}
		})
		t.Run("Cancelled Caller Does Not Fail Shared Extraction", func(t *testing.T) {
			ex := &tu.MockExtractor{
				Block:  make(chan struct{}),
				Result: &services.VideoInfo{Formats: []services.Format{{URL: "https://media/shared", ACodec: "opus", VCodec: "none"}}},
			}
			s := newStore(t, 20)
			l := newLocator(t, s, ex)

			actx, cancel := context.WithCancel(ctx)
			aErr := make(chan error, 1)
			go func() {
				_, err := l.StreamURL(actx, "v6")
				aErr <- err
			}()
			waitFor(t, func() bool { return ex.InfoCalls.Load() == 1 })

			type result struct {
				url string
				err error
			}
			bRes := make(chan result, 1)
			go func() {
				url, err := l.StreamURL(ctx, "v6")
				bRes <- result{url, err}
			}()
			time.Sleep(50 * time.Millisecond)

			cancel()
			select {
			case err := <-aErr:
				if !errors.Is(err, context.Canceled) {
					t.Errorf("expected cancelled caller to get context.Canceled, got %v", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("expected cancelled caller to return promptly")
			}

			close(ex.Block)
			select {
			case res := <-bRes:
				if res.err != nil {
					t.Fatalf("expected live caller to succeed, got %v", res.err)
				}
				if res.url != "https://media/shared" {
					t.Errorf("unexpected url %q", res.url)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("expected live caller to receive the shared result")
			}
			if got := ex.InfoCalls.Load(); got != 1 {
				t.Errorf("expected 1 extraction, got %d", got)
			}
			if cached, ok := s.StreamURL("v6"); !ok || cached != "https://media/shared" {
				t.Errorf("expected extraction to be cached, got %q", cached)
			}
		})

		t.Run("Extraction Timeout", func(t *testing.T) {
			ex := &tu.MockExtractor{Block: make(chan struct{})}
			defer close(ex.Block)
			l, err := New(Options{
				Cache:          newStore(t, 20),
				Extractor:      ex,
				ExtractTimeout: 20 * time.Millisecond,
				Logger:         shared.NewLogger(&bytes.Buffer{}),
			})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if _, err := l.StreamURL(ctx, "v7"); !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("expected context.DeadlineExceeded, got %v", err)
			}
		})
	})

	t.Run("DownloadAndCache", func(t *testing.T) {
		t.Run("Writes File", func(t *testing.T) {
			s := newStore(t, 20)
			ex := &tu.MockExtractor{}
			l := newLocator(t, s, ex)

			l.DownloadAndCache(ctx, "v1")

			tu.AssertFileExists(t, s.CacheFilePath("v1"))
			if got := tu.MustReadFile(t, s.CacheFilePath("v1")); got != "audio:v1" {
				t.Errorf("unexpected content %q", got)
			}
			if l.InFlight("v1") {
				t.Error("expected in-flight marker to be released")
			}
		})

		t.Run("Concurrent Calls Download Once", func(t *testing.T) {
			s := newStore(t, 20)
			ex := &tu.MockExtractor{Block: make(chan struct{})}
			l := newLocator(t, s, ex)

			done := make(chan struct{})
			go func() {
				defer close(done)
				l.DownloadAndCache(ctx, "v2")
			}()
			waitFor(t, func() bool { return l.InFlight("v2") })

			l.DownloadAndCache(ctx, "v2")
			close(ex.Block)
			<-done

			if got := ex.DownloadCalls.Load(); got != 1 {
				t.Errorf("expected 1 download, got %d", got)
			}
			if l.InFlight("v2") {
				t.Error("expected in-flight marker to be released")
			}
		})

		t.Run("Data Saver", func(t *testing.T) {
			s := newStore(t, 20)
			if err := s.SetPreferences(models.Preferences{DataSaver: true}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			ex := &tu.MockExtractor{}
			newLocator(t, s, ex).DownloadAndCache(ctx, "v3")

			if ex.DownloadCalls.Load() != 0 {
				t.Error("expected no download with data saver enabled")
			}
			tu.AssertNoFile(t, s.CacheFilePath("v3"))
		})

		t.Run("Existing File", func(t *testing.T) {
			s := newStore(t, 20)
			if err := os.WriteFile(s.CacheFilePath("v4"), []byte("old"), 0o644); err != nil {
				t.Fatalf("failed to write file: %v", err)
			}
			ex := &tu.MockExtractor{}
			newLocator(t, s, ex).DownloadAndCache(ctx, "v4")

			if ex.DownloadCalls.Load() != 0 {
				t.Error("expected no download for an existing file")
			}
			if got := tu.MustReadFile(t, s.CacheFilePath("v4")); got != "old" {
				t.Errorf("expected file to be untouched, got %q", got)
			}
		})

		t.Run("Failure Is Swallowed", func(t *testing.T) {
			s := newStore(t, 20)
			ex := &tu.MockExtractor{DownloadErr: shared.ErrExtractionFailed}
			l := newLocator(t, s, ex)

			l.DownloadAndCache(ctx, "v5")

			tu.AssertNoFile(t, s.CacheFilePath("v5"))
			if l.InFlight("v5") {
				t.Error("expected in-flight marker to be released after failure")
			}

			ex.DownloadErr = nil
			l.DownloadAndCache(ctx, "v5")
			tu.AssertFileExists(t, s.CacheFilePath("v5"))
		})

		t.Run("Running Download Is Not Cached", func(t *testing.T) {
			s := newStore(t, 20)
			ex := &tu.MockExtractor{Block: make(chan struct{}), Partial: []byte("HALF"), Content: []byte("-REST")}
			l := newLocator(t, s, ex)

			done := make(chan struct{})
			go func() {
				defer close(done)
				l.DownloadAndCache(ctx, "v7")
			}()
			waitFor(t, func() bool { return len(ex.Paths()) == 1 })

			partial := ex.Paths()[0]
			if partial == s.CacheFilePath("v7") {
				t.Fatal("expected download to target a partial path")
			}
			if got := tu.MustReadFile(t, partial); got != "HALF" {
				t.Fatalf("expected partial content, got %q", got)
			}
			if s.HasFile("v7") || l.Cached("v7") {
				t.Error("expected a running download not to count as cached")
			}

			var buf bytes.Buffer
			if err := l.Pipe(ctx, "v7", &buf); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if buf.String() != "-REST" {
				t.Errorf("expected pipe to stream live while downloading, got %q", buf.String())
			}

			close(ex.Block)
			<-done

			if !l.Cached("v7") {
				t.Fatal("expected completed download to be cached")
			}
			if got := tu.MustReadFile(t, s.CacheFilePath("v7")); got != "HALF-REST" {
				t.Errorf("expected complete file, got %q", got)
			}
			tu.AssertNoFile(t, partial)

			buf.Reset()
			if err := l.Pipe(ctx, "v7", &buf); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if buf.String() != "HALF-REST" {
				t.Errorf("expected pipe to serve the cached file, got %q", buf.String())
			}
		})

		t.Run("Interrupted Download Leaves Nothing Cached", func(t *testing.T) {
			s := newStore(t, 20)
			ex := &tu.MockExtractor{Block: make(chan struct{}), Partial: []byte("HALF")}
			l := newLocator(t, s, ex)

			cctx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				l.DownloadAndCache(cctx, "v8")
			}()
			waitFor(t, func() bool { return len(ex.Paths()) == 1 })
			cancel()
			<-done

			if l.Cached("v8") {
				t.Error("expected interrupted download not to be cached")
			}
			tu.AssertNoFile(t, s.CacheFilePath("v8"))
			tu.AssertNoFile(t, ex.Paths()[0])

			ex.Block = nil
			l.DownloadAndCache(ctx, "v8")
			if !l.Cached("v8") {
				t.Error("expected retry to repair the cache")
			}
		})

		t.Run("Evicts After Download", func(t *testing.T) {
			s := newStore(t, 2)
			base := time.Now().Add(-time.Hour)
			for i, id := range []string{"old1", "old2", "old3"} {
				path := s.CacheFilePath(id)
				if err := os.WriteFile(path, []byte(id), 0o644); err != nil {
					t.Fatalf("failed to write file: %v", err)
				}
				mtime := base.Add(time.Duration(i) * time.Minute)
				if err := os.Chtimes(path, mtime, mtime); err != nil {
					t.Fatalf("failed to set mtime: %v", err)
				}
			}

			newLocator(t, s, &tu.MockExtractor{}).DownloadAndCache(ctx, "fresh")

			stats, err := s.FileStats()
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if stats.Files != 2 {
				t.Errorf("expected 2 files after eviction, got %d", stats.Files)
			}
			tu.AssertFileExists(t, s.CacheFilePath("fresh"))
			tu.AssertFileExists(t, s.CacheFilePath("old3"))
			tu.AssertNoFile(t, s.CacheFilePath("old1"))
			tu.AssertNoFile(t, s.CacheFilePath("old2"))
		})
	})

	t.Run("Pipe", func(t *testing.T) {
		t.Run("Streams From Extractor", func(t *testing.T) {
			ex := &tu.MockExtractor{Content: []byte("live-audio")}
			var buf bytes.Buffer
			if err := newLocator(t, newStore(t, 20), ex).Pipe(ctx, "v1", &buf); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if buf.String() != "live-audio" {
				t.Errorf("unexpected output %q", buf.String())
			}
		})

		t.Run("Prefers Cached File", func(t *testing.T) {
			s := newStore(t, 20)
			if err := os.WriteFile(s.CacheFilePath("v2"), []byte("cached-audio"), 0o644); err != nil {
				t.Fatalf("failed to write file: %v", err)
			}
			ex := &tu.MockExtractor{}
			var buf bytes.Buffer
			if err := newLocator(t, s, ex).Pipe(ctx, "v2", &buf); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if buf.String() != "cached-audio" {
				t.Errorf("unexpected output %q", buf.String())
			}
			if ex.PipeCalls.Load() != 0 {
				t.Error("expected extractor to be skipped")
			}
		})

		t.Run("Cancelled", func(t *testing.T) {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			ex := &tu.MockExtractor{PipeErr: errors.New("signal: killed")}
			err := newLocator(t, newStore(t, 20), ex).Pipe(cctx, "v3", &bytes.Buffer{})
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		})

		t.Run("Writer Failure", func(t *testing.T) {
			err := newLocator(t, newStore(t, 20), &tu.MockExtractor{}).Pipe(ctx, "v4", &tu.FWriter{})
			if err == nil {
				t.Error("expected write error")
			}
		})
	})
}

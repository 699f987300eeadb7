package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/shared"
	"github.com/desertthunder/onyx/internal/store"
	tu "github.com/desertthunder/onyx/internal/testing"
)

type mockResolver struct {
	mu      sync.Mutex
	matches map[string]string
	block   chan struct{}
	panicOn string
	calls   []string
}

func (m *mockResolver) Resolve(ctx context.Context, trackID, title, artist string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, trackID)
	m.mu.Unlock()

	if m.block != nil {
		<-m.block
	}
	if trackID == m.panicOn {
		panic("resolver exploded")
	}
	if v, ok := m.matches[trackID]; ok {
		return v, nil
	}
	return "", shared.ErrNoResults
}

func (m *mockResolver) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

type mockDownloader struct {
	mu         sync.Mutex
	downloaded map[string]bool
	ctxErr     error
	active     atomic.Int32
	peak       atomic.Int32
	delay      time.Duration
}

func newMockDownloader() *mockDownloader {
	return &mockDownloader{downloaded: map[string]bool{}}
}

func (m *mockDownloader) DownloadAndCache(ctx context.Context, videoID string) {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		peak := m.peak.Load()
		if n <= peak || m.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErr = ctx.Err()
	m.downloaded[videoID] = true
}

func (m *mockDownloader) Cached(videoID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.downloaded[videoID]
}

func newPrefetcher(t *testing.T, r Resolver, d Downloader, q Queue, progress chan<- ProgressUpdate) *Prefetcher {
	t.Helper()
	p, err := NewPrefetcher(PrefetchOpts{
		Resolver:   r,
		Downloader: d,
		Queue:      q,
		Workers:    2,
		Progress:   progress,
		Logger:     shared.NewLogger(&bytes.Buffer{}),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return p
}

func TestPrefetcher(t *testing.T) {
	ctx := context.Background()

	t.Run("NewPrefetcher", func(t *testing.T) {
		t.Run("Requires Dependencies", func(t *testing.T) {
			if _, err := NewPrefetcher(PrefetchOpts{Resolver: &mockResolver{}}); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})

		t.Run("Defaults", func(t *testing.T) {
			p, err := NewPrefetcher(PrefetchOpts{Resolver: &mockResolver{}, Downloader: newMockDownloader()})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if p.timeout != DefaultTimeout || p.workers != DefaultWorkers {
				t.Errorf("expected defaults, got timeout=%v workers=%d", p.timeout, p.workers)
			}
		})
	})

	t.Run("PrefetchBatch", func(t *testing.T) {
		t.Run("Resolves Then Downloads", func(t *testing.T) {
			r := &mockResolver{matches: map[string]string{"t1": "v1", "t2": "v2"}}
			d := newMockDownloader()
			p := newPrefetcher(t, r, d, nil, nil)

			p.PrefetchBatch(ctx, []models.PrefetchTrack{
				{ID: "t1", Name: "One", Artist: "A"},
				{ID: "t2", Name: "Two", Artist: "B"},
				{ID: "yt-direct", IsYouTube: true},
			})
			p.Wait()

			for _, v := range []string{"v1", "v2", "yt-direct"} {
				if !d.Cached(v) {
					t.Errorf("expected %s to be downloaded", v)
				}
			}
			calls := r.Calls()
			if slices.Contains(calls, "yt-direct") {
				t.Error("expected video ids to skip resolution")
			}
			if len(calls) != 2 {
				t.Errorf("expected 2 resolutions, got %v", calls)
			}
		})

		t.Run("Returns Before Tasks Complete", func(t *testing.T) {
			r := &mockResolver{matches: map[string]string{"t1": "v1"}, block: make(chan struct{})}
			d := newMockDownloader()
			p := newPrefetcher(t, r, d, nil, nil)

			returned := make(chan struct{})
			go func() {
				p.PrefetchBatch(ctx, []models.PrefetchTrack{{ID: "t1", Name: "One"}})
				close(returned)
			}()

			select {
			case <-returned:
			case <-time.After(time.Second):
				t.Fatal("expected PrefetchBatch to return while tasks are blocked")
			}
			if d.Cached("v1") {
				t.Error("expected download to still be pending")
			}

			close(r.block)
			p.Wait()
			if !d.Cached("v1") {
				t.Error("expected download after unblocking")
			}
		})

		t.Run("Failures Are Isolated", func(t *testing.T) {
			r := &mockResolver{matches: map[string]string{"ok": "v-ok"}, panicOn: "boom"}
			d := newMockDownloader()
			progress := make(chan ProgressUpdate, 32)
			p := newPrefetcher(t, r, d, nil, progress)

			p.PrefetchBatch(ctx, []models.PrefetchTrack{
				{ID: "boom", Name: "Panics"},
				{ID: "missing", Name: "No Match"},
				{ID: "", Name: "No ID"},
				{ID: "ok", Name: "Fine"},
			})
			p.Wait()
			close(progress)

			if !d.Cached("v-ok") {
				t.Error("expected healthy track to be downloaded")
			}

			phases := map[string]Phase{}
			for u := range progress {
				if u.Phase == Failed || u.Phase == Completed || u.Phase == Skipped {
					phases[u.TrackID] = u.Phase
				}
			}
			if phases["boom"] != Failed || phases["missing"] != Failed {
				t.Errorf("expected failures to be reported, got %v", phases)
			}
			if phases[""] != Skipped {
				t.Errorf("expected track without id to be skipped, got %v", phases[""])
			}
			if phases["ok"] != Completed {
				t.Errorf("expected ok to complete, got %v", phases["ok"])
			}
		})

		t.Run("Detached From Caller Context", func(t *testing.T) {
			r := &mockResolver{matches: map[string]string{"t1": "v1"}}
			d := newMockDownloader()
			p := newPrefetcher(t, r, d, nil, nil)

			cctx, cancel := context.WithCancel(ctx)
			p.PrefetchBatch(cctx, []models.PrefetchTrack{{ID: "t1", Name: "One"}})
			cancel()
			p.Wait()

			if !d.Cached("v1") {
				t.Fatal("expected download despite caller cancellation")
			}
			if d.ctxErr != nil {
				t.Errorf("expected live task context, got %v", d.ctxErr)
			}
		})

		t.Run("Progress Never Blocks", func(t *testing.T) {
			r := &mockResolver{matches: map[string]string{"t1": "v1"}}
			d := newMockDownloader()
			p := newPrefetcher(t, r, d, nil, make(chan ProgressUpdate))

			p.PrefetchBatch(ctx, []models.PrefetchTrack{{ID: "t1", Name: "One"}})
			done := make(chan struct{})
			go func() {
				p.Wait()
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("expected unbuffered, unread progress channel not to block tasks")
			}
		})
	})

	t.Run("ProgressCapacity", func(t *testing.T) {
		if got := ProgressCapacity(0); got != UpdatesPerTrack {
			t.Errorf("expected %d for an empty batch, got %d", UpdatesPerTrack, got)
		}

		t.Run("Holds Every Update Of A Large Batch", func(t *testing.T) {
			const n = 100
			matches := make(map[string]string, n)
			batch := make([]models.PrefetchTrack, 0, n)
			for i := range n {
				id := fmt.Sprintf("t%d", i)
				matches[id] = "v" + id
				batch = append(batch, models.PrefetchTrack{ID: id, Name: "Song " + id})
			}

			progress := make(chan ProgressUpdate, ProgressCapacity(n))
			p := newPrefetcher(t, &mockResolver{matches: matches}, newMockDownloader(), nil, progress)
			p.PrefetchBatch(ctx, batch)
			p.Wait()
			close(progress)

			total, terminal := 0, 0
			for u := range progress {
				total++
				if u.Phase == Completed || u.Phase == Failed || u.Phase == Skipped {
					terminal++
				}
			}
			if terminal != n {
				t.Errorf("expected %d terminal updates, got %d", n, terminal)
			}
			if total != n*UpdatesPerTrack {
				t.Errorf("expected %d updates, got %d", n*UpdatesPerTrack, total)
			}
		})
	})

	t.Run("Queue", func(t *testing.T) {
		t.Run("Enqueue Without Queue", func(t *testing.T) {
			p := newPrefetcher(t, &mockResolver{}, newMockDownloader(), nil, nil)
			if _, err := p.Enqueue("t1"); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})

		t.Run("Drain", func(t *testing.T) {
			q := &store.Queue{}
			r := &mockResolver{matches: map[string]string{"t1": "v1", "t2": "v2", "t3": "v3", "t4": "v4"}}
			d := newMockDownloader()
			d.delay = 20 * time.Millisecond
			p := newPrefetcher(t, r, d, q, nil)

			added, err := p.Enqueue("t1", "t2", "t1", "t3", "t4", "gone")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if added != 5 {
				t.Errorf("expected 5 queued ids, got %d", added)
			}

			lookup := &tu.MockMetadata{Tracks: map[string]models.TrackMetadata{
				"t1": {ID: "t1", Name: "One", Artist: "A"},
				"t2": {ID: "t2", Name: "Two", Artist: "A"},
				"t3": {ID: "t3", Name: "Three", Artist: "A"},
				"t4": {ID: "t4", Name: "Four", Artist: "A"},
			}}

			drained, err := p.Drain(ctx, lookup)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if drained != 5 {
				t.Errorf("expected 5 drained ids, got %d", drained)
			}
			if q.Len() != 0 {
				t.Errorf("expected empty queue, got %d", q.Len())
			}
			for _, v := range []string{"v1", "v2", "v3", "v4"} {
				if !d.Cached(v) {
					t.Errorf("expected %s to be downloaded", v)
				}
			}
			if peak := d.peak.Load(); peak > 2 {
				t.Errorf("expected at most 2 concurrent downloads, got %d", peak)
			}
		})

		t.Run("Drain Cancelled", func(t *testing.T) {
			q := &store.Queue{}
			q.Push("t1", "t2")
			p := newPrefetcher(t, &mockResolver{}, newMockDownloader(), q, nil)

			cctx, cancel := context.WithCancel(ctx)
			cancel()
			drained, err := p.Drain(cctx, &tu.MockMetadata{})
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
			if drained != 0 || q.Len() != 2 {
				t.Errorf("expected queue untouched, drained=%d len=%d", drained, q.Len())
			}
		})
	})

	t.Run("Phase String", func(t *testing.T) {
		tests := map[Phase]string{
			Resolving:   "resolving",
			Downloading: "downloading",
			Completed:   "completed",
			Skipped:     "skipped",
			Failed:      "failed",
			Phase(99):   "",
		}
		for phase, want := range tests {
			if got := phase.String(); got != want {
				t.Errorf("Phase(%d).String() = %q, want %q", int(phase), got, want)
			}
		}
	})
}

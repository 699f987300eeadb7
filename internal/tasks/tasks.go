// package tasks runs background prefetching of tracks ahead of playback.
//
// The core abstraction is Prefetcher, which resolves and downloads tracks without blocking the caller.
// Operations emit progress updates via channels for non-blocking status reporting to the CLI layer.
package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/shared"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

const (
	DefaultTimeout = 5 * time.Minute
	DefaultWorkers = 3

	// UpdatesPerTrack is the most progress updates a single track emits.
	UpdatesPerTrack = 3
)

// ProgressCapacity is the channel buffer that holds every update for n tracks, so none are dropped
// even when the consumer falls behind.
func ProgressCapacity(n int) int {
	return max(n, 1) * UpdatesPerTrack
}

// Resolver maps a catalog track to a video id.
type Resolver interface {
	Resolve(ctx context.Context, trackID, title, artist string) (string, error)
}

// Downloader fills the audio cache. DownloadAndCache reports nothing; Cached tells whether it worked.
type Downloader interface {
	DownloadAndCache(ctx context.Context, videoID string)
	Cached(videoID string) bool
}

// Queue is a FIFO of track ids waiting to be prefetched.
type Queue interface {
	Push(ids ...string) int
	Pop() (string, bool)
	Len() int
}

// TrackLookup fetches the name and artist for a queued id.
type TrackLookup interface {
	Track(ctx context.Context, trackID string) (*models.TrackMetadata, error)
}

// PrefetchOpts configures a [Prefetcher].
type PrefetchOpts struct {
	Resolver   Resolver
	Downloader Downloader
	Queue      Queue
	Timeout    time.Duration // per track; defaults to [DefaultTimeout]
	Workers    int           // concurrent tracks during Drain; defaults to [DefaultWorkers]
	Progress   chan<- ProgressUpdate
	Logger     *log.Logger
}

// Prefetcher resolves and downloads tracks in the background.
type Prefetcher struct {
	resolver   Resolver
	downloader Downloader
	queue      Queue
	timeout    time.Duration
	workers    int
	progress   chan<- ProgressUpdate
	logger     *log.Logger

	wg conc.WaitGroup
}

// NewPrefetcher creates a prefetcher. Resolver and Downloader are required; Queue is needed only for Enqueue and Drain.
func NewPrefetcher(opts PrefetchOpts) (*Prefetcher, error) {
	if opts.Resolver == nil || opts.Downloader == nil {
		return nil, fmt.Errorf("%w: prefetcher needs a resolver and a downloader", shared.ErrInvalidConfig)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Prefetcher{
		resolver:   opts.Resolver,
		downloader: opts.Downloader,
		queue:      opts.Queue,
		timeout:    opts.Timeout,
		workers:    opts.Workers,
		progress:   opts.Progress,
		logger:     shared.WithLogger(opts.Logger, "component", "prefetch"),
	}, nil
}

// sendProgress sends a progress update through the channel without blocking.
func (p *Prefetcher) sendProgress(update ProgressUpdate) {
	if p.progress == nil {
		return
	}
	select {
	case p.progress <- update:
	default:
	}
}

// PrefetchBatch starts one background task per track and returns immediately.
//
// Tasks outlive ctx's cancellation but not the per-track timeout. A failing or panicking task is logged and never affects the others.
func (p *Prefetcher) PrefetchBatch(ctx context.Context, tracks []models.PrefetchTrack) {
	total := len(tracks)
	for i, t := range tracks {
		p.wg.Go(func() {
			p.safePrefetch(ctx, i+1, total, t)
		})
	}
	p.logger.Debug("prefetch batch dispatched", "tracks", total)
}

// Wait blocks until every dispatched task has finished.
func (p *Prefetcher) Wait() {
	p.wg.Wait()
}

// safePrefetch runs one track on a detached, bounded context and recovers panics.
func (p *Prefetcher) safePrefetch(ctx context.Context, step, total int, t models.PrefetchTrack) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	var pc panics.Catcher
	pc.Try(func() { p.prefetch(ctx, step, total, t) })
	if r := pc.Recovered(); r != nil {
		err := r.AsError()
		p.logger.Error("prefetch panicked", "track", t.ID, "err", err)
		p.sendProgress(failedUpdate(step, total, t, err))
	}
}

func (p *Prefetcher) prefetch(ctx context.Context, step, total int, t models.PrefetchTrack) {
	logger := p.logger.With("track", t.ID)

	var videoID string
	switch {
	case t.IsYouTube && t.ID != "":
		videoID = t.ID
	case t.ID == "" || t.Name == "":
		logger.Warn("prefetch skipped, track needs an id and a name")
		p.sendProgress(skippedUpdate(step, total, t, "missing id or name"))
		return
	default:
		p.sendProgress(resolvingUpdate(step, total, t))
		id, err := p.resolver.Resolve(ctx, t.ID, t.Name, t.Artist)
		if err != nil {
			logger.Error("prefetch resolution failed", "err", err)
			p.sendProgress(failedUpdate(step, total, t, err))
			return
		}
		videoID = id
	}

	p.sendProgress(downloadingUpdate(step, total, t, videoID))
	p.downloader.DownloadAndCache(ctx, videoID)

	if p.downloader.Cached(videoID) {
		logger.Info("prefetched", "video", videoID)
		p.sendProgress(completedUpdate(step, total, t, videoID))
		return
	}
	p.sendProgress(skippedUpdate(step, total, t, "not cached"))
}

// Enqueue adds ids to the prefetch queue, returning how many were new.
func (p *Prefetcher) Enqueue(ids ...string) (int, error) {
	if p.queue == nil {
		return 0, fmt.Errorf("%w: no prefetch queue configured", shared.ErrInvalidConfig)
	}
	return p.queue.Push(ids...), nil
}

// Drain empties the queue, prefetching each id with at most Workers tracks in flight, and blocks until done.
//
// Ids whose metadata cannot be looked up are logged and dropped. It returns the number of ids taken off the queue.
func (p *Prefetcher) Drain(ctx context.Context, lookup TrackLookup) (int, error) {
	if p.queue == nil {
		return 0, fmt.Errorf("%w: no prefetch queue configured", shared.ErrInvalidConfig)
	}

	total := p.queue.Len()
	workers := pool.New().WithMaxGoroutines(p.workers)

	drained := 0
	for ctx.Err() == nil {
		id, ok := p.queue.Pop()
		if !ok {
			break
		}
		drained++
		step := drained

		workers.Go(func() {
			track := models.PrefetchTrack{ID: id}
			meta, err := lookup.Track(ctx, id)
			if err != nil {
				p.logger.Error("queued track lookup failed", "track", id, "err", err)
				p.sendProgress(failedUpdate(step, total, track, err))
				return
			}
			track.Name, track.Artist = meta.Name, meta.Artist
			p.safePrefetch(ctx, step, total, track)
		})
	}
	workers.Wait()

	p.logger.Info("prefetch queue drained", "tracks", drained)
	return drained, ctx.Err()
}

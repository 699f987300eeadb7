package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/shared"
	"github.com/desertthunder/onyx/internal/tasks"
	"github.com/desertthunder/onyx/internal/ui"
	"github.com/urfave/cli/v3"
)

// resolveOutput is the JSON shape of the resolve command.
type resolveOutput struct {
	TrackID string       `json:"trackId"`
	VideoID string       `json:"videoId"`
	Stage   string       `json:"stage"`
	Query   string       `json:"query,omitempty"`
	Score   int          `json:"score"`
	Video   models.Video `json:"video"`
}

// Resolve maps a catalog track to a video id, looking up title and artist from the catalog when not given.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	trackID := cmd.StringArg("id")
	title, artist := cmd.String("title"), cmd.String("artist")

	if trackID == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	if r.resolver == nil {
		return fmt.Errorf("%w: resolver is not configured", shared.ErrMissingConfig)
	}

	if title == "" {
		if err := r.requireMetadata(); err != nil {
			return fmt.Errorf("%w: pass --title or configure the catalog", err)
		}
		meta, err := r.metadata.Track(ctx, trackID)
		if err != nil {
			return fmt.Errorf("failed to look up track: %w", err)
		}
		title, artist = meta.Name, meta.Artist
	}

	result, err := r.resolver.ResolveDetailed(ctx, trackID, title, artist)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", trackID, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(resolveOutput{
			TrackID: trackID,
			VideoID: result.Video.ID,
			Stage:   result.Stage,
			Query:   result.Query,
			Score:   result.Score,
			Video:   result.Video,
		}, cmd.Bool("pretty"))
	}

	r.writePlain("%s %s\n", r.palette.OK("✓"), result.Video.ID)
	if result.Video.Title != "" {
		r.writePlain("  Title:   %s\n", result.Video.Title)
	}
	if result.Video.Channel != "" {
		r.writePlain("  Channel: %s\n", result.Video.Channel)
	}
	r.writePlain("  Stage:   %s (score %d)\n", result.Stage, result.Score)
	r.writePlain("  URL:     %s\n", models.WatchURL(result.Video.ID))
	return nil
}

// Stream prints a direct audio URL for a video id.
func (r *Runner) Stream(ctx context.Context, cmd *cli.Command) error {
	videoID := cmd.StringArg("video")
	if videoID == "" {
		return fmt.Errorf("%w: video id", shared.ErrMissingArgument)
	}

	url, err := r.locator.StreamURL(ctx, videoID)
	if err != nil {
		return fmt.Errorf("failed to get stream url: %w", err)
	}
	return r.writePlain("%s\n", url)
}

// Pipe writes audio to stdout or --output, from the file cache when present.
func (r *Runner) Pipe(ctx context.Context, cmd *cli.Command) error {
	videoID := cmd.StringArg("video")
	if videoID == "" {
		return fmt.Errorf("%w: video id", shared.ErrMissingArgument)
	}

	var w io.Writer = r.output
	if path := cmd.String("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := r.locator.Pipe(ctx, videoID, w); err != nil {
		return fmt.Errorf("failed to pipe audio: %w", err)
	}
	return nil
}

// Download fills the file cache for a video id.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	videoID := cmd.StringArg("video")
	if videoID == "" {
		return fmt.Errorf("%w: video id", shared.ErrMissingArgument)
	}

	if r.store.Preferences().DataSaver {
		return r.writePlain("%s\n", r.palette.Warn("Data saver is on; downloads are disabled."))
	}

	r.locator.DownloadAndCache(ctx, videoID)
	if !r.locator.Cached(videoID) {
		return fmt.Errorf("%w: %s was not cached", shared.ErrExtractionFailed, videoID)
	}
	return r.writePlain("%s %s\n", r.palette.OK("✓ Cached"), r.store.CacheFilePath(videoID))
}

// Prefetch resolves and caches tracks, printing progress as it goes.
//
// Catalog ids go through the prefetch queue and need the metadata client; with --videos the ids are downloaded directly.
func (r *Runner) Prefetch(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one id", shared.ErrMissingArgument)
	}

	if cmd.Bool("videos") {
		batch := make([]models.PrefetchTrack, 0, len(ids))
		for _, id := range ids {
			batch = append(batch, models.PrefetchTrack{ID: strings.TrimSpace(id), IsYouTube: true})
		}
		return r.prefetchBatch(ctx, batch, cmd.Bool("verbose"))
	}

	if err := r.requireMetadata(); err != nil {
		return err
	}
	return r.withPrefetcher(len(ids), cmd.Bool("verbose"), func(p *tasks.Prefetcher) error {
		added, _ := p.Enqueue(ids...)
		r.logger.Debug("queued tracks", "added", added, "requested", len(ids))
		_, err := p.Drain(ctx, r.metadata)
		return err
	})
}

// prefetchBatch prefetches tracks whose names are already known and waits for all of them.
func (r *Runner) prefetchBatch(ctx context.Context, batch []models.PrefetchTrack, verbose bool) error {
	return r.withPrefetcher(len(batch), verbose, func(p *tasks.Prefetcher) error {
		p.PrefetchBatch(ctx, batch)
		p.Wait()
		return nil
	})
}

// withPrefetcher runs fn against a prefetcher whose progress is printed, then prints the summary.
func (r *Runner) withPrefetcher(tracks int, verbose bool, fn func(*tasks.Prefetcher) error) error {
	progress := make(chan tasks.ProgressUpdate, tasks.ProgressCapacity(tracks))
	prefetcher, err := r.newPrefetcher(progress)
	if err != nil {
		return err
	}

	reporter := ui.NewReporter(r.output, verbose)
	done := make(chan struct{})
	go func() {
		reporter.Consume(progress)
		close(done)
	}()

	runErr := fn(prefetcher)

	close(progress)
	<-done

	reporter.PrintSummary()
	return runErr
}

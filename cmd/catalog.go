package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/onyx/internal/formatter"
	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// Search lists video search results.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	videos, err := r.searcher.Search(ctx, query, int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if cmd.Bool("json") {
		if videos == nil {
			videos = []models.Video{}
		}
		return r.writeJSON(videos, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Results for %q", query))
	return r.writeVideos(videos)
}

func (r *Runner) writeVideos(videos []models.Video) error {
	if len(videos) == 0 {
		return r.writePlain("No results\n")
	}
	for i, v := range videos {
		r.writePlain("%d. %s\n", i+1, v.Title)
		if v.Views > 0 {
			r.writePlain("   %s · %s · %s views\n", v.ID, v.Channel, humanize.Comma(v.Views))
		} else {
			r.writePlain("   %s · %s\n", v.ID, v.Channel)
		}
		if v.Duration > 0 {
			r.writePlain("   %s\n", formatter.FormatDuration(v.Duration*1000))
		}
	}
	return nil
}

// TrackGet prints metadata for one catalog track.
func (r *Runner) TrackGet(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireMetadata(); err != nil {
		return err
	}
	trackID := cmd.StringArg("id")
	if trackID == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	track, err := r.metadata.Track(ctx, trackID)
	if err != nil {
		return fmt.Errorf("failed to get track: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(track, cmd.Bool("pretty"))
	}

	r.writePlainHeader(track.Name)
	r.writePlain("Artists:  %s\n", track.Artists)
	r.writePlain("Album:    %s\n", track.Album)
	r.writePlain("Duration: %s\n", formatter.FormatDuration(track.Duration))
	if track.SpotifyURL != "" {
		r.writePlain("URL:      %s\n", track.SpotifyURL)
	}
	if videoID, ok := r.store.LearnedMatch(trackID); ok {
		r.writePlain("Match:    %s\n", videoID)
	}
	return nil
}

// TrackSearch searches the catalog.
func (r *Runner) TrackSearch(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireMetadata(); err != nil {
		return err
	}
	query := cmd.StringArg("query")
	if query == "" {
		return fmt.Errorf("%w: query", shared.ErrMissingArgument)
	}

	tracks, err := r.metadata.SearchTracks(ctx, query, int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("track search failed: %w", err)
	}
	return r.writeTracks(tracks, cmd)
}

// Recommend lists tracks related to a seed track.
func (r *Runner) Recommend(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireMetadata(); err != nil {
		return err
	}
	seed := cmd.StringArg("id")
	if seed == "" {
		return fmt.Errorf("%w: seed track id", shared.ErrMissingArgument)
	}

	tracks, err := r.metadata.Recommendations(ctx, seed, int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("failed to get recommendations: %w", err)
	}
	return r.writeTracks(tracks, cmd)
}

func (r *Runner) writeTracks(tracks []models.TrackMetadata, cmd *cli.Command) error {
	if cmd.Bool("json") {
		if tracks == nil {
			tracks = []models.TrackMetadata{}
		}
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	if len(tracks) == 0 {
		return r.writePlain("No tracks\n")
	}
	for i, t := range tracks {
		r.writePlain("%d. %s - %s [%s] (%s)\n", i+1, t.Artist, t.Name, formatter.FormatDuration(t.Duration), t.ID)
	}
	return nil
}

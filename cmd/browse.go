package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/shared"
	"github.com/urfave/cli/v3"
)

// NewReleases lists tracks from recently released albums.
func (r *Runner) NewReleases(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireMetadata(); err != nil {
		return err
	}

	tracks, err := r.metadata.NewReleases(ctx, int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("failed to get new releases: %w", err)
	}
	if !cmd.Bool("json") {
		r.writePlainHeader("New releases")
	}
	return r.writeTracks(tracks, cmd)
}

// Playlist lists a catalog playlist, optionally prefetching its tracks.
func (r *Runner) Playlist(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireMetadata(); err != nil {
		return err
	}
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	playlist, err := r.metadata.Playlist(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get playlist: %w", err)
	}

	if cmd.Bool("prefetch") {
		batch := make([]models.PrefetchTrack, 0, len(playlist.Tracks))
		for _, t := range playlist.Tracks {
			batch = append(batch, models.PrefetchTrack{ID: t.ID, Name: t.Name, Artist: t.Artist})
		}
		return r.prefetchBatch(ctx, batch, cmd.Bool("verbose"))
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}
	r.writePlainHeader(fmt.Sprintf("%s (%d tracks)", playlist.Name, len(playlist.Tracks)))
	return r.writeTracks(playlist.Tracks, cmd)
}

// VideoPlaylist lists a video playlist, optionally prefetching its videos.
func (r *Runner) VideoPlaylist(ctx context.Context, cmd *cli.Command) error {
	if r.playlists == nil {
		return fmt.Errorf("%w: no playlist source configured", shared.ErrMissingConfig)
	}
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	playlist, err := r.playlists.Playlist(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get playlist: %w", err)
	}

	if cmd.Bool("prefetch") {
		batch := make([]models.PrefetchTrack, 0, len(playlist.Videos))
		for _, v := range playlist.Videos {
			batch = append(batch, models.PrefetchTrack{ID: v.ID, Name: v.Title, IsYouTube: true})
		}
		return r.prefetchBatch(ctx, batch, cmd.Bool("verbose"))
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}
	r.writePlainHeader(fmt.Sprintf("%s (%d videos)", playlist.Title, len(playlist.Videos)))
	return r.writeVideos(playlist.Videos)
}

// Related lists videos related to a seed video.
func (r *Runner) Related(ctx context.Context, cmd *cli.Command) error {
	if r.resolver == nil {
		return fmt.Errorf("%w: resolver is required", shared.ErrMissingConfig)
	}
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: video id", shared.ErrMissingArgument)
	}

	videos, err := r.resolver.Related(ctx, id, cmd.String("title"), cmd.String("channel"), int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("failed to find related videos: %w", err)
	}

	if cmd.Bool("json") {
		if videos == nil {
			videos = []models.Video{}
		}
		return r.writeJSON(videos, cmd.Bool("pretty"))
	}
	r.writePlainHeader("Related to " + id)
	return r.writeVideos(videos)
}

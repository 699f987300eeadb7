package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/shared"
	"github.com/urfave/cli/v3"
)

// cacheStatsOutput is the JSON shape of the cache stats command.
type cacheStatsOutput struct {
	Tracks    int   `json:"tracks"`
	URLs      int   `json:"urls"`
	Matches   int   `json:"matches"`
	Generic   int   `json:"generic"`
	Streams   int   `json:"streams"`
	Queued    int   `json:"queued"`
	Files     int   `json:"files"`
	Bytes     int64 `json:"bytes"`
	DataSaver bool  `json:"dataSaver"`
	MaxFiles  int   `json:"maxFiles"`
}

// CacheStats prints counts for every cache tier.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	stats, err := r.store.Stats()
	if err != nil {
		r.logger.Warn("failed to read audio cache", "err", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(cacheStatsOutput{
			Tracks:    stats.Tracks,
			URLs:      stats.URLs,
			Matches:   stats.Matches,
			Generic:   stats.Generic,
			Streams:   stats.Streams,
			Queued:    stats.Queued,
			Files:     stats.Files.Files,
			Bytes:     stats.Files.Bytes,
			DataSaver: stats.DataSave,
			MaxFiles:  r.config.Cache.MaxFiles,
		}, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Cache")
	r.writePlain("Track metadata: %d\n", stats.Tracks)
	r.writePlain("Video URLs:     %d\n", stats.URLs)
	r.writePlain("Learned:        %d\n", stats.Matches)
	r.writePlain("Stream URLs:    %d\n", stats.Streams)
	r.writePlain("Generic:        %d\n", stats.Generic)
	r.writePlain("Queued:         %d\n", stats.Queued)
	r.writePlain("Audio files:    %s (max %d)\n", stats.Files, r.config.Cache.MaxFiles)
	r.writePlain("Data saver:     %s\n", onOff(stats.DataSave))
	return nil
}

// CacheClear empties every cache tier. It requires --yes.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return r.writePlain("%s\n", r.palette.Warn("Refusing to clear the cache without --yes"))
	}
	if err := r.store.ClearAll(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	r.logger.Info("cache cleared")
	return r.writePlain("%s\n", r.palette.OK("✓ Cache cleared"))
}

// CacheForget drops a track's learned match and soft-deletes its history so the next resolve searches again.
func (r *Runner) CacheForget(ctx context.Context, cmd *cli.Command) error {
	trackID := cmd.StringArg("id")
	if trackID == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	found, err := r.store.ClearLearnedMatch(trackID)
	if err != nil {
		return fmt.Errorf("failed to forget match: %w", err)
	}

	var forgotten int64
	if r.history != nil {
		if forgotten, err = r.history.ForgetTrack(trackID); err != nil {
			return fmt.Errorf("failed to forget history: %w", err)
		}
	}

	if !found && forgotten == 0 {
		return r.writePlain("No match recorded for %s\n", trackID)
	}
	return r.writePlain("%s %s (%d history rows)\n", r.palette.OK("✓ Forgot"), trackID, forgotten)
}

// CacheEvict trims the audio cache to --max files, or cache.max_files.
func (r *Runner) CacheEvict(ctx context.Context, cmd *cli.Command) error {
	keep := int(cmd.Int("max"))
	if keep <= 0 {
		keep = r.config.Cache.MaxFiles
	}

	removed, err := r.store.EvictOldFiles(keep)
	if err != nil {
		return fmt.Errorf("failed to evict files: %w", err)
	}
	return r.writePlain("Evicted %d files\n", removed)
}

// CacheDataSaver shows data saver state, or sets it when given "on" or "off".
func (r *Runner) CacheDataSaver(ctx context.Context, cmd *cli.Command) error {
	prefs := r.store.Preferences()

	switch state := strings.ToLower(cmd.StringArg("state")); state {
	case "":
		return r.writePlain("Data saver: %s\n", onOff(prefs.DataSaver))
	case "on", "off":
		prefs = models.Preferences{DataSaver: state == "on"}
		if err := r.store.SetPreferences(prefs); err != nil {
			return fmt.Errorf("failed to save preferences: %w", err)
		}
		return r.writePlain("Data saver: %s\n", onOff(prefs.DataSaver))
	default:
		return fmt.Errorf("%w: data saver state must be on or off, got %q", shared.ErrInvalidArgument, state)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

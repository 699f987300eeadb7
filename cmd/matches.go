package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/onyx/internal/formatter"
	"github.com/desertthunder/onyx/internal/models"
	"github.com/urfave/cli/v3"
)

// MatchesList prints recorded resolutions, newest first.
func (r *Runner) MatchesList(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireHistory(); err != nil {
		return err
	}

	resolutions, err := r.history.List(map[string]any{
		"track_id": cmd.String("track"),
		"stage":    cmd.String("stage"),
		"limit":    int(cmd.Int("limit")),
	})
	if err != nil {
		return fmt.Errorf("failed to list resolutions: %w", err)
	}

	if cmd.Bool("json") {
		if resolutions == nil {
			resolutions = []*models.Resolution{}
		}
		return r.writeJSON(resolutions, cmd.Bool("pretty"))
	}

	data, err := formatter.ExportToText(resolutions)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// MatchesExport writes the resolution history to a file.
func (r *Runner) MatchesExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireHistory(); err != nil {
		return err
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	resolutions, err := r.history.List(map[string]any{"track_id": cmd.String("track")})
	if err != nil {
		return fmt.Errorf("failed to list resolutions: %w", err)
	}

	path, err := formatter.WriteExport(resolutions, format, cmd.String("output"))
	if err != nil {
		return err
	}

	r.logger.Info("resolutions exported", "path", path, "count", len(resolutions))
	return r.writePlain("%s %d resolutions to %s\n", r.palette.OK("✓ Exported"), len(resolutions), path)
}

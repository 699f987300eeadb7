package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/onyx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing, then initializes the database and the audio cache directory.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := os.MkdirAll(config.Cache.AudioDir, 0o755); err != nil {
		return fmt.Errorf("failed to create audio cache directory: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)

	r.writePlain("%s\n", r.palette.OK("✓ Setup complete"))
	r.writePlain("  Config:   %s\n", configPath)
	r.writePlain("  Database: %s\n", config.Database.Path)
	r.writePlain("  Audio:    %s\n", config.Cache.AudioDir)
	if !config.HasSpotifyCredentials() {
		r.writePlain("%s\n", r.palette.Warn("Spotify credentials are not set; catalog lookups are disabled."))
	}
	return nil
}

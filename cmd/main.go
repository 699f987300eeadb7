package main

import (
	"context"
	"database/sql"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/onyx/internal/locator"
	"github.com/desertthunder/onyx/internal/repositories"
	"github.com/desertthunder/onyx/internal/resolver"
	"github.com/desertthunder/onyx/internal/services"
	"github.com/desertthunder/onyx/internal/shared"
	"github.com/desertthunder/onyx/internal/store"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx := context.Background()

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		}
	}

	logger := shared.NewLogger(shared.NewLogWriter(config.Log))
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	runner, cleanup, err := build(ctx, config, logger)
	if err != nil {
		logger.Fatalf("startup error: %v", err)
	}

	app := &cli.Command{
		Name:     "onyx",
		Usage:    "Resolve catalog tracks to playable audio and keep it cached",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	err = app.Run(ctx, os.Args)
	cleanup()
	if err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}

// build wires the store, upstream clients, history database and engine components from config.
//
// The returned cleanup flushes the cache snapshot and closes the database.
func build(ctx context.Context, config *shared.Config, logger *log.Logger) (*Runner, func(), error) {
	cache, err := store.Open(ctx, config, logger)
	if err != nil {
		return nil, nil, err
	}

	var metadata services.MetadataSource
	if config.HasSpotifyCredentials() {
		svc, err := services.NewSpotifyService(services.SpotifyOpts{
			ClientID:          config.Credentials.Spotify.ClientID,
			ClientSecret:      config.Credentials.Spotify.ClientSecret,
			Market:            config.Credentials.Spotify.Market,
			RequestsPerSecond: config.Credentials.Spotify.RequestsPerSecond,
			Cache:             cache,
			Logger:            logger,
		})
		if err != nil {
			logger.Warn("spotify disabled", "err", err)
		} else {
			metadata = svc
		}
	}

	ytdlp := services.NewYTDLP(config.YouTube.YTDLPPath, config.YouTube.PlayerClient, logger)

	var searcher services.VideoSearcher = ytdlp
	if config.YouTube.ProxyURL != "" {
		searcher = services.NewYouTubeService(config.YouTube.ProxyURL, config.YouTube.RequestsPerSecond, nil, logger)
	}

	var db *sql.DB
	var history *repositories.ResolutionRepository
	if db, err = shared.OpenDatabase(config.Database); err != nil {
		logger.Warn("resolution history disabled", "err", err)
	} else {
		history = repositories.NewResolutionRepository(db)
	}

	cleanup := func() {
		if err := cache.Close(); err != nil {
			logger.Error("failed to close cache", "err", err)
		}
		if db != nil {
			db.Close()
		}
	}

	ropts := resolver.Options{Store: cache, Searcher: searcher, Single: ytdlp, Logger: logger}
	if history != nil {
		ropts.Recorder = history
	}
	res, err := resolver.New(ropts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	loc, err := locator.New(locator.Options{
		Cache:     cache,
		Extractor: ytdlp,
		StreamTTL: config.Cache.StreamTTL,
		MaxFiles:  config.Cache.MaxFiles,
		Logger:    logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	runner := NewRunner(RunnerOpts{
		Config:    config,
		Store:     cache,
		Metadata:  metadata,
		Searcher:  searcher,
		Playlists: ytdlp,
		Resolver:  res,
		Locator:   loc,
		History:   history,
		Logger:    logger,
	})

	return runner, cleanup, nil
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/onyx/internal/locator"
	"github.com/desertthunder/onyx/internal/repositories"
	"github.com/desertthunder/onyx/internal/resolver"
	"github.com/desertthunder/onyx/internal/services"
	"github.com/desertthunder/onyx/internal/shared"
	"github.com/desertthunder/onyx/internal/store"
	"github.com/desertthunder/onyx/internal/tasks"
	"github.com/desertthunder/onyx/internal/ui"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config    *shared.Config
	store     *store.Store
	metadata  services.MetadataSource
	searcher  services.VideoSearcher
	playlists services.VideoPlaylister
	resolver  *resolver.Resolver
	locator   *locator.Locator
	history   *repositories.ResolutionRepository
	logger    *log.Logger
	output    io.Writer
	palette   *ui.Palette
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Metadata, Playlists and History are optional; commands that need them fail with [shared.ErrMissingConfig].
type RunnerOpts struct {
	Config    *shared.Config
	Store     *store.Store
	Metadata  services.MetadataSource
	Searcher  services.VideoSearcher
	Playlists services.VideoPlaylister
	Resolver  *resolver.Resolver
	Locator   *locator.Locator
	History   *repositories.ResolutionRepository
	Logger    *log.Logger
	Output    io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:    opts.Config,
		store:     opts.Store,
		metadata:  opts.Metadata,
		searcher:  opts.Searcher,
		playlists: opts.Playlists,
		resolver:  opts.Resolver,
		locator:   opts.Locator,
		history:   opts.History,
		logger:    opts.Logger,
		output:    opts.Output,
		palette:   ui.Styles,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, resolveCommand, streamCommand, pipeCommand, downloadCommand, prefetchCommand,
		searchCommand, trackCommand, recommendCommand, newReleasesCommand, playlistCommand, videoPlaylistCommand,
		relatedCommand, cacheCommand, matchesCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// newPrefetcher builds a prefetcher reporting to progress.
func (r *Runner) newPrefetcher(progress chan<- tasks.ProgressUpdate) (*tasks.Prefetcher, error) {
	if r.resolver == nil || r.locator == nil {
		return nil, fmt.Errorf("%w: resolver and locator are required", shared.ErrMissingConfig)
	}
	return tasks.NewPrefetcher(tasks.PrefetchOpts{
		Resolver:   r.resolver,
		Downloader: r.locator,
		Queue:      r.store.Queue(),
		Timeout:    r.config.Prefetch.Timeout,
		Workers:    r.config.Prefetch.Workers,
		Progress:   progress,
		Logger:     r.logger,
	})
}

func (r *Runner) requireMetadata() error {
	if r.metadata == nil {
		return fmt.Errorf("%w: spotify client_id and client_secret are not set", shared.ErrMissingConfig)
	}
	return nil
}

func (r *Runner) requireHistory() error {
	if r.history == nil {
		return fmt.Errorf("%w: resolution history database is unavailable", shared.ErrMissingConfig)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", r.palette.Title(title))
	r.writePlain("═══════════════════════════════════════\n")
}

// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
		},
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file, initialize the history database and the audio cache directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// resolveCommand maps a catalog track to a video id
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve a catalog track to a video id",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "title",
				Aliases: []string{"t"},
				Usage:   "Track title (looked up from the catalog when omitted)",
			},
			&cli.StringFlag{
				Name:    "artist",
				Aliases: []string{"a"},
				Usage:   "Track artist",
			},
		}, jsonFlags()...),
		Action: r.Resolve,
	}
}

func streamCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Print a direct audio stream URL for a video id",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "video"},
		},
		Action: r.Stream,
	}
}

func pipeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "pipe",
		Usage: "Write the audio of a video id to stdout or a file",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "video"},
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (defaults to stdout)",
			},
		},
		Action: r.Pipe,
	}
}

func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download a video's audio into the file cache",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "video"},
		},
		Action: r.Download,
	}
}

// prefetchCommand resolves and caches tracks ahead of playback
func prefetchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "prefetch",
		Usage:     "Resolve and cache catalog tracks in the background",
		ArgsUsage: "<track-id>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "videos",
				Usage: "Treat arguments as video ids and skip resolution",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show every progress phase",
			},
		},
		Action: r.Prefetch,
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "Search videos",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
				Value: 10,
			},
		}, jsonFlags()...),
		Action: r.Search,
	}
}

func trackCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "track",
		Usage: "Catalog track operations",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Show metadata for a catalog track",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  jsonFlags(),
				Action: r.TrackGet,
			},
			{
				Name:  "search",
				Usage: "Search the catalog",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "query"},
				},
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
				}, jsonFlags()...),
				Action: r.TrackSearch,
			},
		},
	}
}

func recommendCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "recommend",
		Usage: "List tracks related to a seed track",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
				Value: 5,
			},
		}, jsonFlags()...),
		Action: r.Recommend,
	}
}

func newReleasesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "new-releases",
		Usage: "List tracks from recently released albums",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of tracks",
				Value: 20,
			},
		}, jsonFlags()...),
		Action: r.NewReleases,
	}
}

func prefetchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "prefetch",
			Usage: "Cache every entry instead of listing",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Show every progress phase",
		},
	}
}

func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "List the tracks of a catalog playlist",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags:  append(prefetchFlags(), jsonFlags()...),
		Action: r.Playlist,
	}
}

func videoPlaylistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "video-playlist",
		Usage: "List the videos of a video playlist",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags:  append(prefetchFlags(), jsonFlags()...),
		Action: r.VideoPlaylist,
	}
}

func relatedCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "related",
		Usage: "List videos related to a seed video",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "id"},
		},
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "title",
				Aliases: []string{"t"},
				Usage:   "Title of the seed video",
			},
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Channel of the seed video",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
				Value: 10,
			},
		}, jsonFlags()...),
		Action: r.Related,
	}
}

// cacheCommand inspects and maintains the tiered cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and maintain the cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache counts and audio file usage",
				Flags:  jsonFlags(),
				Action: r.CacheStats,
			},
			{
				Name:  "clear",
				Usage: "Remove every cached entry and audio file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "yes",
						Usage: "Confirm clearing the cache",
					},
				},
				Action: r.CacheClear,
			},
			{
				Name:  "forget",
				Usage: "Forget the learned match (and history) of a track",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.CacheForget,
			},
			{
				Name:  "evict",
				Usage: "Evict old audio files down to the configured limit",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max",
						Usage: "Files to keep (defaults to cache.max_files)",
					},
				},
				Action: r.CacheEvict,
			},
			{
				Name:  "data-saver",
				Usage: "Show or toggle data saver (disables audio downloads)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "state"},
				},
				Action: r.CacheDataSaver,
			},
		},
	}
}

// matchesCommand reads the resolution history
func matchesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "matches",
		Usage: "Resolution history",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded resolutions, newest first",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "track",
						Usage: "Filter by track id",
					},
					&cli.StringFlag{
						Name:  "stage",
						Usage: "Filter by resolution stage",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of rows",
						Value: 50,
					},
				}, jsonFlags()...),
				Action: r.MatchesList,
			},
			{
				Name:  "export",
				Usage: "Export resolution history",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "csv, md, txt or json",
						Value:   "csv",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
					},
					&cli.StringFlag{
						Name:  "track",
						Usage: "Filter by track id",
					},
				},
				Action: r.MatchesExport,
			},
		},
	}
}

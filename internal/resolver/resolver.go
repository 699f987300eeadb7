package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/services"
	"github.com/desertthunder/onyx/internal/shared"
)

// Stage names, in the order they are attempted.
const (
	StageLearned   = "learned"
	StageQuery     = "query"
	StageOfficial  = "official"
	StageASCII     = "ascii"
	StageTitleSong = "title-song"
	StageTitle     = "title"
	StageDirect    = "direct"
)

const (
	primaryLimit  = 15
	fallbackLimit = 10
	minASCIILen   = 3
)

// MatchStore holds learned track → video mappings.
type MatchStore interface {
	LearnedMatch(trackID string) (string, bool)
	SetLearnedMatch(trackID, videoID string) error
}

// Recorder receives every fresh resolution.
type Recorder interface {
	Record(res *models.Resolution) error
}

// Options configures a [Resolver]. Single and Recorder are optional.
type Options struct {
	Store    MatchStore
	Searcher services.VideoSearcher
	Single   services.SingleSearcher
	Recorder Recorder
	Logger   *log.Logger
	Now      func() time.Time
}

// Result is the outcome of a resolution.
type Result struct {
	Video models.Video
	Stage string
	Query string
	Score int
}

// strategy produces the query for a stage; ok is false when the stage should be skipped.
type strategy struct {
	name  string
	limit int
	query func(title, artist string) (q string, ok bool)
}

var strategies = []strategy{
	{StageQuery, primaryLimit, func(title, artist string) (string, bool) {
		return baseQuery(title, artist), true
	}},
	{StageOfficial, primaryLimit, func(title, artist string) (string, bool) {
		return baseQuery(title, artist) + " official", true
	}},
	{StageASCII, primaryLimit, func(title, artist string) (string, bool) {
		q := ASCIIOnly(baseQuery(title, artist))
		return q, len(q) >= minASCIILen
	}},
	{StageTitleSong, fallbackLimit, func(title, _ string) (string, bool) {
		return Clean(title) + " song", true
	}},
	{StageTitle, fallbackLimit, func(title, _ string) (string, bool) {
		q := Clean(title)
		return q, q != ""
	}},
}

func baseQuery(title, artist string) string {
	return Clean(Clean(title) + " " + Clean(artist))
}

// Resolver maps catalog tracks to videos.
type Resolver struct {
	store    MatchStore
	searcher services.VideoSearcher
	single   services.SingleSearcher
	recorder Recorder
	logger   *log.Logger
	now      func() time.Time
}

// New creates a resolver. Store and Searcher are required.
func New(opts Options) (*Resolver, error) {
	if opts.Store == nil || opts.Searcher == nil {
		return nil, fmt.Errorf("%w: resolver needs a store and a searcher", shared.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Resolver{
		store:    opts.Store,
		searcher: opts.Searcher,
		single:   opts.Single,
		recorder: opts.Recorder,
		logger:   shared.WithLogger(opts.Logger, "component", "resolver"),
		now:      opts.Now,
	}, nil
}

// Resolve returns the video id for trackID, consulting the learned match first.
func (r *Resolver) Resolve(ctx context.Context, trackID, title, artist string) (string, error) {
	res, err := r.ResolveDetailed(ctx, trackID, title, artist)
	if err != nil {
		return "", err
	}
	return res.Video.ID, nil
}

// ResolveDetailed is [Resolver.Resolve] with the winning stage, query and score.
//
// A learned match returns [StageLearned] with only the video id set.
func (r *Resolver) ResolveDetailed(ctx context.Context, trackID, title, artist string) (*Result, error) {
	if trackID != "" {
		if videoID, ok := r.store.LearnedMatch(trackID); ok {
			r.logger.Debug("learned match hit", "track", trackID, "video", videoID)
			return &Result{Video: models.Video{ID: videoID, URL: models.WatchURL(videoID)}, Stage: StageLearned}, nil
		}
	}
	if Clean(title) == "" {
		return nil, fmt.Errorf("%w: track name", shared.ErrMissingArgument)
	}

	res, err := r.search(ctx, title, artist)
	if err != nil {
		r.logger.Error("resolution failed", "track", trackID, "title", title, "artist", artist, "err", err)
		return nil, err
	}

	r.logger.Info("resolved",
		"track", trackID, "video", res.Video.ID, "title", res.Video.Title, "stage", res.Stage, "score", res.Score)
	r.remember(trackID, title, artist, res)
	return res, nil
}

// search runs the strategies in order, then the direct single-result search.
func (r *Resolver) search(ctx context.Context, title, artist string) (*Result, error) {
	var errs []error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		query, ok := s.query(title, artist)
		if !ok {
			r.logger.Debug("stage skipped", "stage", s.name, "query", query)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, shared.ErrQueryTooShort))
			continue
		}

		videos, err := r.searcher.Search(ctx, query, s.limit)
		if err != nil {
			r.logger.Debug("stage failed", "stage", s.name, "query", query, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		if len(videos) == 0 {
			r.logger.Debug("stage returned nothing", "stage", s.name, "query", query)
			continue
		}

		best := Rank(Filter(videos), title, artist)[0]
		return &Result{Video: best.Video, Stage: s.name, Query: query, Score: best.Score}, nil
	}

	if r.single != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		query := baseQuery(title, artist)
		video, err := r.single.SearchOne(ctx, query)
		if err == nil && video != nil && video.ID != "" {
			return &Result{Video: *video, Stage: StageDirect, Query: query}, nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", StageDirect, err))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", shared.ErrNoResults, errors.Join(errs...))
	}
	return nil, shared.ErrNoResults
}

// remember persists the learned match and records history; failures are logged.
func (r *Resolver) remember(trackID, title, artist string, res *Result) {
	if trackID == "" {
		return
	}
	if err := r.store.SetLearnedMatch(trackID, res.Video.ID); err != nil {
		r.logger.Warn("failed to persist learned match", "track", trackID, "err", err)
	}
	if r.recorder == nil {
		return
	}

	record := &models.Resolution{
		TrackID:    trackID,
		VideoID:    res.Video.ID,
		Title:      title,
		Artist:     artist,
		VideoTitle: res.Video.Title,
		Channel:    res.Video.Channel,
		Query:      res.Query,
		Stage:      res.Stage,
		Score:      res.Score,
		CreatedAt:  r.now(),
	}
	if err := r.recorder.Record(record); err != nil {
		r.logger.Warn("failed to record resolution", "track", trackID, "err", err)
	}
}

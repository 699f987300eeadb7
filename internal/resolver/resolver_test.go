package resolver

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/shared"
	tu "github.com/desertthunder/onyx/internal/testing"
)

type matchMap struct {
	mu      sync.Mutex
	matches map[string]string
	err     error
}

func newMatchMap() *matchMap {
	return &matchMap{matches: map[string]string{}}
}

func (m *matchMap) LearnedMatch(trackID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.matches[trackID]
	return v, ok
}

func (m *matchMap) SetLearnedMatch(trackID, videoID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.matches[trackID] = videoID
	return nil
}

type recorder struct {
	records []*models.Resolution
}

func (r *recorder) Record(res *models.Resolution) error {
	r.records = append(r.records, res)
	return nil
}

func newResolver(t *testing.T, store MatchStore, searcher *tu.MockSearcher, single *tu.MockSingleSearcher, rec Recorder) *Resolver {
	t.Helper()
	opts := Options{Store: store, Searcher: searcher, Recorder: rec}
	if single != nil {
		opts.Single = single
	}
	r, err := New(opts)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return r
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("New Requires Store And Searcher", func(t *testing.T) {
		if _, err := New(Options{Searcher: &tu.MockSearcher{}}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig without store, got %v", err)
		}
		if _, err := New(Options{Store: newMatchMap()}); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig without searcher, got %v", err)
		}
	})

	t.Run("Blank Space", func(t *testing.T) {
		store := newMatchMap()
		rec := &recorder{}
		searcher := &tu.MockSearcher{Default: []models.Video{{
			ID:      "e-ORhEE9VVg",
			Title:   "Taylor Swift - Blank Space (Official Music Video)",
			Channel: "TaylorSwiftVEVO",
			Views:   500_000_000,
		}}}
		r := newResolver(t, store, searcher, nil, rec)

		res, err := r.ResolveDetailed(ctx, "t1", "Blank Space", "Taylor Swift")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Video.ID != "e-ORhEE9VVg" {
			t.Errorf("expected e-ORhEE9VVg, got %s", res.Video.ID)
		}
		if res.Score < 250 {
			t.Errorf("expected score >= 250, got %d", res.Score)
		}
		if res.Stage != StageQuery || res.Query != "Blank Space Taylor Swift" {
			t.Errorf("unexpected stage/query %s %q", res.Stage, res.Query)
		}
		if v, ok := store.LearnedMatch("t1"); !ok || v != "e-ORhEE9VVg" {
			t.Errorf("expected learned match to be persisted, got %q", v)
		}
		if len(rec.records) != 1 || rec.records[0].Stage != StageQuery || rec.records[0].Score != res.Score {
			t.Errorf("expected one recorded resolution, got %+v", rec.records)
		}
	})

	t.Run("Learned Match Short Circuits", func(t *testing.T) {
		store := newMatchMap()
		store.matches["t1"] = "learned-video"
		searcher := &tu.MockSearcher{}
		single := &tu.MockSingleSearcher{}
		r := newResolver(t, store, searcher, single, nil)

		for _, args := range [][2]string{{"Blank Space", "Taylor Swift"}, {"Anything", "Else"}, {"", ""}} {
			got, err := r.Resolve(ctx, "t1", args[0], args[1])
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != "learned-video" {
				t.Errorf("expected learned-video, got %s", got)
			}
		}
		if len(searcher.Calls()) != 0 || len(single.Queries) != 0 {
			t.Error("expected no searches for a learned match")
		}
	})

	t.Run("Picks Best Candidate", func(t *testing.T) {
		searcher := &tu.MockSearcher{Default: []models.Video{
			{ID: "cover", Title: "Song Title (Cover)", Channel: "Unrelated", Views: 500_000},
			{ID: "live", Title: "Song Title live", Channel: "Artist", Views: 20_000_000},
			{ID: "topic", Title: "Song Title (Official Audio)", Channel: "Artist - Topic", Views: 2_000_000},
		}}
		r := newResolver(t, newMatchMap(), searcher, nil, nil)

		got, err := r.Resolve(ctx, "t2", "Song Title", "Artist")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "topic" {
			t.Errorf("expected topic, got %s", got)
		}
	})

	t.Run("All Candidates Denied", func(t *testing.T) {
		searcher := &tu.MockSearcher{Default: []models.Video{
			{ID: "a", Title: "Song reaction"},
			{ID: "b", Title: "Song (Nightcore)"},
		}}
		r := newResolver(t, newMatchMap(), searcher, nil, nil)

		got, err := r.Resolve(ctx, "t3", "Song", "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "b" {
			t.Errorf("expected unfiltered fallback to pick b, got %s", got)
		}
	})

	t.Run("Falls Through Stages", func(t *testing.T) {
		searcher := &tu.MockSearcher{Results: map[string][]models.Video{
			"Blank Space song": {{ID: "song-stage", Title: "Blank Space"}},
		}}
		rec := &recorder{}
		r := newResolver(t, newMatchMap(), searcher, nil, rec)

		res, err := r.ResolveDetailed(ctx, "t4", "Blank Space!", "Taylor Swift")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Stage != StageTitleSong {
			t.Errorf("expected title-song stage, got %s", res.Stage)
		}

		want := []string{
			"Blank Space Taylor Swift",
			"Blank Space Taylor Swift official",
			"Blank Space Taylor Swift",
			"Blank Space song",
		}
		if got := searcher.Calls(); !slices.Equal(got, want) {
			t.Errorf("expected queries %v, got %v", want, got)
		}
	})

	t.Run("Skips Short ASCII Query", func(t *testing.T) {
		searcher := &tu.MockSearcher{Results: map[string][]models.Video{
			"東京": {{ID: "tokyo", Title: "東京"}},
		}}
		r := newResolver(t, newMatchMap(), searcher, nil, nil)

		res, err := r.ResolveDetailed(ctx, "t5", "東京", "日本")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Stage != StageTitle {
			t.Errorf("expected title stage, got %s", res.Stage)
		}
		want := []string{"東京 日本", "東京 日本 official", "東京 song", "東京"}
		if got := searcher.Calls(); !slices.Equal(got, want) {
			t.Errorf("expected queries %v, got %v", want, got)
		}
	})

	t.Run("Search Errors Fall Through To Direct", func(t *testing.T) {
		searcher := &tu.MockSearcher{Err: shared.ErrUpstreamUnavailable}
		single := &tu.MockSingleSearcher{Video: &models.Video{ID: "direct", Title: "Song (Cover)"}}
		store := newMatchMap()
		r := newResolver(t, store, searcher, single, nil)

		res, err := r.ResolveDetailed(ctx, "t6", "Song", "Artist")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Video.ID != "direct" || res.Stage != StageDirect {
			t.Errorf("expected direct result, got %+v", res)
		}
		if res.Score != 0 {
			t.Errorf("expected direct result to be unscored, got %d", res.Score)
		}
		if len(searcher.Calls()) != 5 {
			t.Errorf("expected 5 search stages, got %d", len(searcher.Calls()))
		}
		if len(single.Queries) != 1 || single.Queries[0] != "Song Artist" {
			t.Errorf("unexpected direct queries %v", single.Queries)
		}
		if v, _ := store.LearnedMatch("t6"); v != "direct" {
			t.Errorf("expected direct result to be learned, got %q", v)
		}
	})

	t.Run("No Results", func(t *testing.T) {
		t.Run("Every Stage Empty", func(t *testing.T) {
			store := newMatchMap()
			r := newResolver(t, store, &tu.MockSearcher{}, &tu.MockSingleSearcher{}, nil)

			_, err := r.Resolve(ctx, "t7", "Song", "Artist")
			if !errors.Is(err, shared.ErrNoResults) {
				t.Fatalf("expected ErrNoResults, got %v", err)
			}
			if _, ok := store.LearnedMatch("t7"); ok {
				t.Error("expected no learned match after failure")
			}
		})

		t.Run("Every Stage Errors", func(t *testing.T) {
			searcher := &tu.MockSearcher{Err: shared.ErrUpstreamUnavailable}
			single := &tu.MockSingleSearcher{Err: shared.ErrExtractionFailed}
			r := newResolver(t, newMatchMap(), searcher, single, nil)

			_, err := r.Resolve(ctx, "t8", "Song", "Artist")
			if !errors.Is(err, shared.ErrNoResults) {
				t.Fatalf("expected ErrNoResults, got %v", err)
			}
			if !errors.Is(err, shared.ErrUpstreamUnavailable) {
				t.Errorf("expected stage errors to be joined, got %v", err)
			}
		})
	})

	t.Run("Empty Title", func(t *testing.T) {
		r := newResolver(t, newMatchMap(), &tu.MockSearcher{}, nil, nil)
		if _, err := r.Resolve(ctx, "t9", "!!", "Artist"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Canceled Context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		searcher := &tu.MockSearcher{}
		r := newResolver(t, newMatchMap(), searcher, nil, nil)

		if _, err := r.Resolve(cctx, "t10", "Song", "Artist"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(searcher.Calls()) != 0 {
			t.Error("expected no searches after cancellation")
		}
	})

	t.Run("Persist Failure Is Not Fatal", func(t *testing.T) {
		store := newMatchMap()
		store.err = errors.New("disk full")
		searcher := &tu.MockSearcher{Default: []models.Video{{ID: "v", Title: "Song"}}}
		r := newResolver(t, store, searcher, nil, nil)

		if got, err := r.Resolve(ctx, "t11", "Song", ""); err != nil || got != "v" {
			t.Errorf("expected v without error, got %q %v", got, err)
		}
	})

	t.Run("Recorded Timestamp", func(t *testing.T) {
		fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		rec := &recorder{}
		r, err := New(Options{
			Store:    newMatchMap(),
			Searcher: &tu.MockSearcher{Default: []models.Video{{ID: "v", Title: "Song", Channel: "Chan"}}},
			Recorder: rec,
			Now:      func() time.Time { return fixed },
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := r.Resolve(ctx, "t12", "Song", "Artist"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(rec.records) != 1 {
			t.Fatalf("expected one record, got %d", len(rec.records))
		}
		got := rec.records[0]
		if !got.CreatedAt.Equal(fixed) || got.Channel != "Chan" || got.Title != "Song" || got.Artist != "Artist" {
			t.Errorf("unexpected record %+v", got)
		}
	})
}

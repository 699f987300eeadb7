package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/shared"
)

const (
	relatedStageLimit = 20
	relatedEnough     = 10
)

// RelatedBlocklist marks reaction and review uploads. Covers stay.
var RelatedBlocklist = []string{"reaction", "react", "review", "reacting", "first time", "listening to"}

var (
	bracketed   = regexp.MustCompile(`[(\[{].*?[)\]}]`)
	uploadNoise = regexp.MustCompile(`(?i)\b(official|music video|mv|lyrics?|audio|hd|4k|full|version)\b|\bver\.`)
)

// NormalizeTitle reduces a video title to a comparable song name: bracketed parts, upload
// decorations and symbols are dropped.
func NormalizeTitle(title string) string {
	s := strings.ToLower(title)
	s = bracketed.ReplaceAllString(s, "")
	s = uploadNoise.ReplaceAllString(s, "")
	s = symbols.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// IsTopic reports whether channel is an auto-generated artist topic channel.
func IsTopic(channel string) bool {
	return strings.Contains(channel, "- Topic") || strings.Contains(channel, " - トピック")
}

// Related finds videos related to the seed video by searching around its title and channel.
//
// Searches widen in three stages (cleaned title with channel, cleaned title, raw title), each run only while
// fewer than ten candidates are known. Reactions and reviews are dropped, the seed is skipped, and uploads
// of the same song collapse to one, preferring a topic channel.
func (r *Resolver) Related(ctx context.Context, videoID, title, channel string, limit int) ([]models.Video, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: seed title", shared.ErrMissingArgument)
	}
	if limit <= 0 {
		limit = 10
	}
	logger := r.logger.With("seed", videoID)

	stages := []string{
		strings.TrimSpace(Clean(title) + " " + Clean(channel)),
		Clean(title),
		title,
	}

	var (
		candidates []models.Video
		seen       = make(map[string]struct{})
		errs       []error
	)
	for i, q := range stages {
		if i > 0 && len(candidates) >= relatedEnough {
			break
		}
		if q == "" {
			continue
		}

		videos, err := r.searcher.Search(ctx, q, relatedStageLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("related search stage failed", "stage", i+1, "query", q, "err", err)
			errs = append(errs, err)
			continue
		}
		for _, v := range videos {
			if _, dup := seen[v.ID]; dup || v.ID == "" {
				continue
			}
			seen[v.ID] = struct{}{}
			candidates = append(candidates, v)
		}
		logger.Debug("related search stage", "stage", i+1, "query", q, "candidates", len(candidates))
	}

	if len(candidates) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	related := dedupeByTitle(videoID, blockReactions(candidates))
	if len(related) > limit {
		related = related[:limit]
	}
	logger.Info("related videos found", "candidates", len(candidates), "related", len(related))
	return related, nil
}

func blockReactions(videos []models.Video) []models.Video {
	kept := make([]models.Video, 0, len(videos))
	for _, v := range videos {
		title := strings.ToLower(v.Title)
		blocked := false
		for _, term := range RelatedBlocklist {
			if strings.Contains(title, term) {
				blocked = true
				break
			}
		}
		if !blocked {
			kept = append(kept, v)
		}
	}
	return kept
}

// dedupeByTitle keeps the first upload of each normalized title, replacing it in place when a topic channel upload follows.
func dedupeByTitle(seedID string, videos []models.Video) []models.Video {
	index := make(map[string]int)
	out := make([]models.Video, 0, len(videos))
	for _, v := range videos {
		if v.ID == seedID {
			continue
		}
		key := NormalizeTitle(v.Title)
		i, ok := index[key]
		switch {
		case !ok:
			index[key] = len(out)
			out = append(out, v)
		case IsTopic(v.Channel) && !IsTopic(out[i].Channel):
			out[i] = v
		}
	}
	return out
}

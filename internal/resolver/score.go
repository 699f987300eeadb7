package resolver

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/desertthunder/onyx/internal/models"
)

var symbols = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// Denylist holds the title and channel terms that mark non-canonical uploads.
var Denylist = []string{
	"reaction", "reacts", "reacting",
	"review", "reviews", "reviewing",
	"tutorial", "lesson", "how to",
	"cover", "covered",
	"piano version", "guitar version",
	"nightcore", "slowed", "reverb",
	"compilation", "playlist",
	"mix", "full album",
}

// spamGlyphs appear in titles of low quality re-uploads.
var spamGlyphs = []string{"〰", "😵"}

const (
	scoreTitleMatch    = 100
	scoreTitleMismatch = -500
	scoreOfficial      = 50
	scoreDetails       = -10
	scoreVevo          = 50
	scoreTopic         = 80
	scoreArtistChannel = 100
	scoreViews1M       = 50
	scoreViews10M      = 30
	scoreReaction      = -1000
	scoreReview        = -1000
	scoreCover         = -500
	scoreLive          = -50
	scoreRemix         = -50
	scoreSpam          = -200
)

// Clean replaces every rune that is not a letter, digit or whitespace with a space,
// then collapses whitespace and trims.
func Clean(s string) string {
	return strings.Join(strings.Fields(symbols.ReplaceAllString(s, " ")), " ")
}

// ASCIIOnly drops non-ASCII runes from s and collapses the remaining whitespace.
func ASCIIOnly(s string) string {
	stripped := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(stripped), " ")
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Denied reports whether the video's title or channel contains a denylisted term.
func Denied(v models.Video) bool {
	title := strings.ToLower(v.Title)
	channel := strings.ToLower(v.Channel)
	for _, term := range Denylist {
		if strings.Contains(title, term) || strings.Contains(channel, term) {
			return true
		}
	}
	return false
}

// Filter removes denylisted candidates.
//
// When every candidate is denied, the original slice is returned unchanged.
func Filter(videos []models.Video) []models.Video {
	kept := make([]models.Video, 0, len(videos))
	for _, v := range videos {
		if !Denied(v) {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return videos
	}
	return kept
}

// Score rates how likely v is the canonical upload of title by artist.
func Score(v models.Video, title, artist string) int {
	target := strings.ToLower(Clean(title))
	targetArtist := strings.ToLower(Clean(artist))
	candidate := strings.ToLower(Clean(v.Title))
	rawTitle := strings.ToLower(v.Title)
	channel := strings.ToLower(Clean(v.Channel))

	score := 0
	if strings.Contains(candidate, target) || strings.Contains(stripSpaces(candidate), stripSpaces(target)) {
		score += scoreTitleMatch
	} else {
		score += scoreTitleMismatch
	}

	for _, term := range []string{"official", "official audio", "official music video"} {
		if strings.Contains(rawTitle, term) {
			score += scoreOfficial
		}
	}
	if strings.Contains(rawTitle, "details") {
		score += scoreDetails
	}

	if strings.Contains(channel, "vevo") {
		score += scoreVevo
	}
	if strings.Contains(v.Channel, " - Topic") {
		score += scoreTopic
	}
	if targetArtist != "" && strings.Contains(channel, targetArtist) {
		score += scoreArtistChannel
	}

	if v.Views > 1_000_000 {
		score += scoreViews1M
	}
	if v.Views > 10_000_000 {
		score += scoreViews10M
	}

	if strings.Contains(rawTitle, "reaction") || strings.Contains(rawTitle, "reacts") {
		score += scoreReaction
	}
	if strings.Contains(rawTitle, "review") {
		score += scoreReview
	}
	if strings.Contains(rawTitle, "cover") {
		score += scoreCover
	}
	if strings.Contains(rawTitle, "live") {
		score += scoreLive
	}
	if strings.Contains(rawTitle, "remix") {
		score += scoreRemix
	}

	for _, g := range spamGlyphs {
		if strings.Contains(v.Title, g) {
			score += scoreSpam
			break
		}
	}
	return score
}

// Scored is a candidate with its score.
type Scored struct {
	Video models.Video
	Score int
}

// Rank scores every candidate and sorts them by descending score, keeping search order for ties.
func Rank(videos []models.Video, title, artist string) []Scored {
	ranked := make([]Scored, len(videos))
	for i, v := range videos {
		ranked[i] = Scored{Video: v, Score: Score(v, title, artist)}
	}
	slices.SortStableFunc(ranked, func(a, b Scored) int {
		return b.Score - a.Score
	})
	return ranked
}

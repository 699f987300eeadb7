package resolver

import (
	"testing"

	"github.com/desertthunder/onyx/internal/models"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Punctuation", "Blank Space (Taylor's Version)", "Blank Space Taylor s Version"},
		{"Collapses Whitespace", "  a   b\t c  ", "a b c"},
		{"Keeps Unicode Letters", "TAKO★TAKOVER ニノマエ", "TAKO TAKOVER ニノマエ"},
		{"Keeps Digits", "22 (Remastered 2012)", "22 Remastered 2012"},
		{"Only Symbols", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestASCIIOnly(t *testing.T) {
	if got := ASCIIOnly("Beyoncé Halo ニノ"); got != "Beyonc Halo" {
		t.Errorf("expected %q, got %q", "Beyonc Halo", got)
	}
	if got := ASCIIOnly("東京 日本"); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestFilter(t *testing.T) {
	t.Run("Removes Denylisted Titles And Channels", func(t *testing.T) {
		videos := []models.Video{
			{ID: "a", Title: "Song (Official Audio)", Channel: "Artist - Topic"},
			{ID: "b", Title: "Song REACTION!!", Channel: "Fan"},
			{ID: "c", Title: "Song", Channel: "Nightcore Daily"},
			{ID: "d", Title: "Song (Piano Version)", Channel: "Keys"},
		}

		got := Filter(videos)
		if len(got) != 1 || got[0].ID != "a" {
			t.Errorf("expected only a to survive, got %+v", got)
		}
	})

	t.Run("All Denied Falls Back To Unfiltered", func(t *testing.T) {
		videos := []models.Video{
			{ID: "a", Title: "Song cover"},
			{ID: "b", Title: "Song full album"},
		}
		if got := Filter(videos); len(got) != 2 {
			t.Errorf("expected unfiltered set, got %d", len(got))
		}
	})
}

func TestScore(t *testing.T) {
	t.Run("Official Video On VEVO", func(t *testing.T) {
		v := models.Video{
			Title:   "Taylor Swift - Blank Space (Official Music Video)",
			Channel: "TaylorSwiftVEVO",
			Views:   500_000_000,
		}
		if got := Score(v, "Blank Space", "Taylor Swift"); got < 250 {
			t.Errorf("expected score >= 250, got %d", got)
		}
	})

	t.Run("Topic Audio Beats Cover", func(t *testing.T) {
		official := models.Video{Title: "Song Title (Official Audio)", Channel: "Artist - Topic", Views: 2_000_000}
		cover := models.Video{Title: "Song Title (Cover)", Channel: "Unrelated", Views: 500_000}

		o, c := Score(official, "Song Title", "Artist"), Score(cover, "Song Title", "Artist")
		if o <= c {
			t.Errorf("expected official (%d) to outscore cover (%d)", o, c)
		}
		if want := 100 + 50 + 50 + 80 + 100 + 50; o != want {
			t.Errorf("expected official score %d, got %d", want, o)
		}
		if want := 100 - 500; c != want {
			t.Errorf("expected cover score %d, got %d", want, c)
		}
	})

	t.Run("Title Mismatch", func(t *testing.T) {
		if got := Score(models.Video{Title: "Something Else"}, "Blank Space", ""); got != -500 {
			t.Errorf("expected -500, got %d", got)
		}
	})

	t.Run("Stylized Spacing", func(t *testing.T) {
		if got := Score(models.Video{Title: "III"}, "I I I", ""); got != 100 {
			t.Errorf("expected space-free match to score 100, got %d", got)
		}
	})

	t.Run("Missing Fields", func(t *testing.T) {
		if got := Score(models.Video{Title: "Song"}, "Song", "Artist"); got != 100 {
			t.Errorf("expected 100, got %d", got)
		}
	})

	t.Run("Penalties", func(t *testing.T) {
		tests := []struct {
			title string
			want  int
		}{
			{"Song reaction", 100 - 1000},
			{"Song review", 100 - 1000},
			{"Song live", 100 - 50},
			{"Song remix", 100 - 50},
			{"Song details", 100 - 10},
			{"Song 〰〰", 100 - 200},
			{"Song 😵 〰", 100 - 200},
		}
		for _, tt := range tests {
			if got := Score(models.Video{Title: tt.title}, "Song", ""); got != tt.want {
				t.Errorf("Score(%q) = %d, want %d", tt.title, got, tt.want)
			}
		}
	})
}

func TestRank(t *testing.T) {
	t.Run("Stable For Ties", func(t *testing.T) {
		videos := []models.Video{
			{ID: "first", Title: "Song"},
			{ID: "second", Title: "Song"},
			{ID: "best", Title: "Song (Official Audio)"},
		}
		ranked := Rank(videos, "Song", "")
		ids := []string{ranked[0].Video.ID, ranked[1].Video.ID, ranked[2].Video.ID}
		if ids[0] != "best" || ids[1] != "first" || ids[2] != "second" {
			t.Errorf("unexpected order %v", ids)
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		videos := []models.Video{
			{ID: "a", Title: "Song Title (Cover)", Channel: "Unrelated", Views: 500_000},
			{ID: "b", Title: "Song Title (Official Audio)", Channel: "Artist - Topic", Views: 2_000_000},
		}
		for range 5 {
			if got := Rank(videos, "Song Title", "Artist")[0].Video.ID; got != "b" {
				t.Fatalf("expected b, got %s", got)
			}
		}
	})
}

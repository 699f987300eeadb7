// package services defines the upstream collaborators of the resolution engine
//
// Spotify (metadata), a YouTube search proxy, and yt-dlp (search + extraction)
package services

import (
	"context"
	"io"
	"time"

	"github.com/desertthunder/onyx/internal/models"
)

// MetadataSource searches and fetches catalog track metadata.
type MetadataSource interface {
	// SearchTracks returns up to limit tracks matching query.
	SearchTracks(ctx context.Context, query string, limit int) ([]models.TrackMetadata, error)

	// Track returns metadata for a single catalog id.
	Track(ctx context.Context, trackID string) (*models.TrackMetadata, error)

	// Recommendations returns tracks related to the seed track, excluding the seed itself.
	Recommendations(ctx context.Context, seedTrackID string, limit int) ([]models.TrackMetadata, error)

	// NewReleases returns up to limit tracks from recently released albums.
	NewReleases(ctx context.Context, limit int) ([]models.TrackMetadata, error)

	// Playlist returns a catalog playlist and its tracks.
	Playlist(ctx context.Context, playlistID string) (*models.Playlist, error)
}

// VideoSearcher is a high-level multi-result video search.
type VideoSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.Video, error)
}

// SingleSearcher returns the single best result for a query, already ranked by the upstream.
type SingleSearcher interface {
	SearchOne(ctx context.Context, query string) (*models.Video, error)
}

// VideoPlaylister lists the videos of a playlist.
type VideoPlaylister interface {
	Playlist(ctx context.Context, playlistID string) (*models.VideoPlaylist, error)
}

// Extractor obtains audio for a video, either as format metadata or as bytes.
type Extractor interface {
	// Info returns format metadata including direct media URLs.
	Info(ctx context.Context, videoID string) (*VideoInfo, error)

	// Download writes the best audio stream to path.
	Download(ctx context.Context, videoID, path string) error

	// Pipe streams the best audio to w until completion or ctx cancellation.
	Pipe(ctx context.Context, videoID string, w io.Writer) error
}

// MetadataCache is the subset of the cache store used by metadata clients.
type MetadataCache interface {
	Metadata(trackID string) (models.TrackMetadata, bool)
	SetMetadata(trackID string, meta models.TrackMetadata) error
	Generic(key string) (any, bool)
	SetGeneric(key string, v any, ttl time.Duration)
}

// Format is one downloadable format reported by the extractor.
type Format struct {
	FormatID string  `json:"format_id"`
	URL      string  `json:"url"`
	Ext      string  `json:"ext"`
	ACodec   string  `json:"acodec"`
	VCodec   string  `json:"vcodec"`
	ABR      float64 `json:"abr"`
}

// AudioOnly reports whether the format carries audio without video.
func (f Format) AudioOnly() bool {
	return f.ACodec != "none" && f.VCodec == "none"
}

// VideoInfo is the extractor's description of a single video.
type VideoInfo struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Duration float64  `json:"duration"`
	Formats  []Format `json:"formats"`
}

// BestAudio picks the first audio-only format, falling back to the first format.
//
// It returns false when there are no formats or the chosen one has no URL.
func (v *VideoInfo) BestAudio() (Format, bool) {
	if v == nil || len(v.Formats) == 0 {
		return Format{}, false
	}

	chosen := v.Formats[0]
	for _, f := range v.Formats {
		if f.AudioOnly() {
			chosen = f
			break
		}
	}
	return chosen, chosen.URL != ""
}

// package models defines the data model for the track resolution engine
package models

import (
	"fmt"
	"strings"
	"time"
)

// TrackMetadata is a catalog track as returned by the metadata source.
//
// JSON field names match the persisted cache snapshot.
type TrackMetadata struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`  // Primary artist
	Artists    string `json:"artists"` // All artists joined by ", "
	Album      string `json:"album"`
	AlbumArt   string `json:"albumArt,omitempty"`
	Duration   int    `json:"duration"` // Duration in milliseconds
	PreviewURL string `json:"previewUrl,omitempty"`
	SpotifyURL string `json:"spotifyUrl,omitempty"`

	// FetchedAt is only consulted when a metadata TTL is configured.
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
}

// Validate checks the fields required for resolution.
func (t *TrackMetadata) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("track id is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("track name is required")
	}
	return nil
}

// Video is a candidate returned by video search.
//
// Channel and Views may be empty or zero when the source omits them.
type Video struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Duration  int    `json:"duration"` // Duration in seconds
	Views     int64  `json:"views"`
	URL       string `json:"url"`
}

// Playlist is a catalog playlist with its tracks.
type Playlist struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image,omitempty"`
	Tracks      []TrackMetadata `json:"tracks"`
}

// VideoPlaylist is a flat listing of a video playlist.
type VideoPlaylist struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Videos []Video `json:"videos"`
}

// PlaylistURL returns the canonical page for a video playlist id.
func PlaylistURL(playlistID string) string {
	return "https://www.youtube.com/playlist?list=" + playlistID
}

// WatchURL returns the canonical watch page for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ExpiringURL is a URL with an absolute expiry in epoch milliseconds.
type ExpiringURL struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Expired reports whether the entry is past its expiry at now.
func (e ExpiringURL) Expired(now time.Time) bool {
	return now.UnixMilli() >= e.ExpiresAt
}

// Preferences are user toggles persisted with the cache snapshot.
type Preferences struct {
	DataSaver bool `json:"dataSaver"`
}

// PrefetchTrack is one entry of a prefetch batch.
//
// When IsYouTube is set, ID is already a video id and resolution is skipped.
type PrefetchTrack struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Artist    string `json:"artist"`
	IsYouTube bool   `json:"isYouTube"`
}

// Resolution records a successful track → video resolution.
type Resolution struct {
	ID         string    `json:"id"`
	Sequence   int       `json:"sequence"`
	TrackID    string    `json:"trackId"`
	VideoID    string    `json:"videoId"`
	Title      string    `json:"title"`
	Artist     string    `json:"artist"`
	VideoTitle string    `json:"videoTitle"`
	Channel    string    `json:"channel"`
	Query      string    `json:"query"`
	Stage      string    `json:"stage"`
	Score      int       `json:"score"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Validate checks the fields required to persist a resolution.
func (r *Resolution) Validate() error {
	switch {
	case r.TrackID == "":
		return fmt.Errorf("track id is required")
	case r.VideoID == "":
		return fmt.Errorf("video id is required")
	case r.Stage == "":
		return fmt.Errorf("stage is required")
	}
	return nil
}

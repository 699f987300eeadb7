// yt-dlp implementation of [Extractor], [VideoSearcher] and [SingleSearcher]
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/shared"
)

// commandRunner executes name with args, writing the process stdout to stdout.
type commandRunner func(ctx context.Context, name string, args []string, stdout io.Writer) error

// YTDLP wraps the yt-dlp binary.
type YTDLP struct {
	path         string
	playerClient string
	run          commandRunner
	logger       *log.Logger
}

// NewYTDLP returns a wrapper around the binary at path, forcing playerClient for extraction.
func NewYTDLP(path, playerClient string, logger *log.Logger) *YTDLP {
	if path == "" {
		path = "yt-dlp"
	}
	if playerClient == "" {
		playerClient = "android"
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &YTDLP{
		path:         path,
		playerClient: playerClient,
		run:          execRunner,
		logger:       shared.WithLogger(logger, "service", "yt-dlp"),
	}
}

// execRunner runs the command under ctx; cancellation kills the process.
func execRunner(ctx context.Context, name string, args []string, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if i := strings.LastIndex(msg, "\n"); i >= 0 {
			msg = msg[i+1:]
		}
		if msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

func (y *YTDLP) clientArgs() []string {
	return []string{"--extractor-args", "youtube:player_client=" + y.playerClient}
}

// infoArgs builds the format-metadata invocation.
func (y *YTDLP) infoArgs(videoID string) []string {
	args := []string{
		models.WatchURL(videoID),
		"--dump-single-json",
		"--no-check-certificates",
		"--no-warnings",
		"--prefer-free-formats",
		"--no-playlist",
		"--force-ipv4",
		"--add-header", "referer:youtube.com",
		"--add-header", "user-agent:googlebot",
	}
	return append(args, y.clientArgs()...)
}

func (y *YTDLP) downloadArgs(videoID, output string) []string {
	args := []string{
		models.WatchURL(videoID),
		"-f", "bestaudio/best",
		"-o", output,
		"--no-check-certificates",
		"--no-playlist",
		"--no-warnings",
		"--no-part",
	}
	return append(args, y.clientArgs()...)
}

func (y *YTDLP) searchArgs(query string, limit int) []string {
	return []string{
		fmt.Sprintf("ytsearch%d:%s", limit, query),
		"--dump-single-json",
		"--flat-playlist",
		"--no-warnings",
	}
}

func (y *YTDLP) playlistArgs(playlistID string) []string {
	return []string{
		models.PlaylistURL(playlistID),
		"--dump-single-json",
		"--flat-playlist",
		"--no-warnings",
		"--prefer-free-formats",
	}
}

// Info returns format metadata for videoID.
func (y *YTDLP) Info(ctx context.Context, videoID string) (*VideoInfo, error) {
	var out bytes.Buffer
	if err := y.run(ctx, y.path, y.infoArgs(videoID), &out); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrExtractionFailed, err)
	}

	var info VideoInfo
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("%w: invalid info JSON: %v", shared.ErrExtractionFailed, err)
	}
	return &info, nil
}

// Download writes the best audio stream for videoID to path.
func (y *YTDLP) Download(ctx context.Context, videoID, path string) error {
	if err := y.run(ctx, y.path, y.downloadArgs(videoID, path), io.Discard); err != nil {
		return fmt.Errorf("%w: download %s: %v", shared.ErrExtractionFailed, videoID, err)
	}
	return nil
}

// Pipe streams the best audio for videoID to w.
func (y *YTDLP) Pipe(ctx context.Context, videoID string, w io.Writer) error {
	err := y.run(ctx, y.path, y.downloadArgs(videoID, "-"), w)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("%w: stream %s: %v", shared.ErrExtractionFailed, videoID, err)
	}
	return err
}

type ytdlpEntry struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Channel    string  `json:"channel"`
	Uploader   string  `json:"uploader"`
	Duration   float64 `json:"duration"`
	ViewCount  int64   `json:"view_count"`
	URL        string  `json:"url"`
	Thumbnail  string  `json:"thumbnail"`
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

type ytdlpPlaylist struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Entries []ytdlpEntry `json:"entries"`
}

func (e ytdlpEntry) toVideo() models.Video {
	v := models.Video{
		ID:       e.ID,
		Title:    e.Title,
		Channel:  e.Channel,
		Duration: int(e.Duration),
		Views:    e.ViewCount,
		URL:      e.URL,
	}
	if v.Channel == "" {
		v.Channel = e.Uploader
	}
	if v.URL == "" || !strings.HasPrefix(v.URL, "http") {
		v.URL = models.WatchURL(e.ID)
	}
	if n := len(e.Thumbnails); n > 0 {
		v.Thumbnail = e.Thumbnails[n-1].URL
	} else {
		v.Thumbnail = e.Thumbnail
	}
	return v
}

// Search returns up to limit candidates using a flat "ytsearchN:" query.
func (y *YTDLP) Search(ctx context.Context, query string, limit int) ([]models.Video, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", shared.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	var out bytes.Buffer
	if err := y.run(ctx, y.path, y.searchArgs(query, limit), &out); err != nil {
		return nil, fmt.Errorf("%w: search: %v", shared.ErrUpstreamUnavailable, err)
	}

	var playlist ytdlpPlaylist
	if err := json.Unmarshal(out.Bytes(), &playlist); err != nil {
		return nil, fmt.Errorf("%w: invalid search JSON: %v", shared.ErrUpstreamUnavailable, err)
	}

	videos := make([]models.Video, 0, len(playlist.Entries))
	for _, e := range playlist.Entries {
		if e.ID != "" {
			videos = append(videos, e.toVideo())
		}
	}
	return videos, nil
}

// SearchOne returns the top result for query.
func (y *YTDLP) SearchOne(ctx context.Context, query string) (*models.Video, error) {
	videos, err := y.Search(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, shared.ErrNoResults
	}
	return &videos[0], nil
}

// Playlist lists the videos of a playlist without resolving their formats.
func (y *YTDLP) Playlist(ctx context.Context, playlistID string) (*models.VideoPlaylist, error) {
	if strings.TrimSpace(playlistID) == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	var out bytes.Buffer
	if err := y.run(ctx, y.path, y.playlistArgs(playlistID), &out); err != nil {
		return nil, fmt.Errorf("%w: playlist %s: %v", shared.ErrUpstreamUnavailable, playlistID, err)
	}

	var listing ytdlpPlaylist
	if err := json.Unmarshal(out.Bytes(), &listing); err != nil {
		return nil, fmt.Errorf("%w: invalid playlist JSON: %v", shared.ErrUpstreamUnavailable, err)
	}

	playlist := &models.VideoPlaylist{
		ID:     playlistID,
		Title:  listing.Title,
		Videos: make([]models.Video, 0, len(listing.Entries)),
	}
	if playlist.Title == "" {
		playlist.Title = "YouTube Playlist"
	}
	for _, e := range listing.Entries {
		if e.ID == "" {
			continue
		}
		v := e.toVideo()
		v.URL = models.WatchURL(e.ID)
		if v.Channel == "" {
			v.Channel = "Unknown"
		}
		playlist.Videos = append(playlist.Videos, v)
	}
	return playlist, nil
}

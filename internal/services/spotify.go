// Spotify Web API implementation of [MetadataSource]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/shared"
	"github.com/sourcegraph/conc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	tokenEarlyExpiry   = time.Minute
	recommendationsTTL = 30 * time.Minute

	newReleasesKey   = "new-releases"
	newReleasesTTL   = time.Hour
	newReleaseAlbums = 20
	albumTrackLimit  = 3
	albumChunkSize   = 5
	albumChunkPause  = 200 * time.Millisecond

	playlistPageSize  = 100
	playlistMaxTracks = 200
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Images  []SpotifyImage  `json:"images"`
	Artists []SpotifyArtist `json:"artists,omitempty"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	PreviewURL   *string         `json:"preview_url"`
	ExternalURLs externalURLs    `json:"external_urls"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

type spotifyTopTracksResponse struct {
	Tracks []SpotifyTrack `json:"tracks"`
}

type spotifyNewReleasesResponse struct {
	Albums struct {
		Items []SpotifyAlbum `json:"items"`
	} `json:"albums"`
}

type spotifyAlbumTracksResponse struct {
	Items []SpotifyTrack `json:"items"`
}

// spotifyPlaylistTracks is one page of playlist entries. Track is null for removed or local items.
type spotifyPlaylistTracks struct {
	Items []struct {
		Track *SpotifyTrack `json:"track"`
	} `json:"items"`
	Total int `json:"total"`
}

type spotifyPlaylistResponse struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Images      []SpotifyImage        `json:"images"`
	Tracks      spotifyPlaylistTracks `json:"tracks"`
}

// ToMetadata converts an API track to [models.TrackMetadata].
func (t SpotifyTrack) ToMetadata() models.TrackMetadata {
	meta := models.TrackMetadata{
		ID:         t.ID,
		Name:       t.Name,
		Album:      t.Album.Name,
		Duration:   t.DurationMS,
		SpotifyURL: t.ExternalURLs.Spotify,
	}

	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	if len(names) > 0 {
		meta.Artist = names[0]
	}
	meta.Artists = strings.Join(names, ", ")

	if len(t.Album.Images) > 0 {
		meta.AlbumArt = t.Album.Images[0].URL
	}
	if t.PreviewURL != nil {
		meta.PreviewURL = *t.PreviewURL
	}
	if meta.SpotifyURL == "" && t.ID != "" {
		meta.SpotifyURL = "https://open.spotify.com/track/" + t.ID
	}
	return meta
}

// SpotifyOpts configures a [SpotifyService]. Empty URLs use the public endpoints.
type SpotifyOpts struct {
	ClientID          string
	ClientSecret      string
	Market            string
	TokenURL          string
	BaseURL           string
	RequestsPerSecond float64
	Retry             *shared.RetryConfig
	HTTPClient        *http.Client
	Cache             MetadataCache
	Logger            *log.Logger
}

// SpotifyService implements [MetadataSource] using the client-credentials flow.
type SpotifyService struct {
	baseURL    string
	market     string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      MetadataCache
	logger     *log.Logger

	chunkPause time.Duration
}

// tokenSource fetches a fresh client-credentials token with bounded retry.
type tokenSource struct {
	ctx    context.Context
	config *clientcredentials.Config
	retry  shared.RetryConfig
	logger *log.Logger
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	attempt := 0
	token, err := shared.WithRetry(ts.ctx, ts.retry, func(ctx context.Context) (*oauth2.Token, error) {
		if attempt > 0 {
			ts.logger.Warn("retrying spotify authentication", "attempt", attempt)
		}
		attempt++

		t, err := ts.config.Token(ctx)
		if err != nil {
			return nil, classifyTokenError(err)
		}
		return t, nil
	})
	if err != nil {
		ts.logger.Error("spotify authentication failed", "err", err)
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	ts.logger.Debug("spotify access token refreshed", "expiry", token.Expiry)
	return token, nil
}

// classifyTokenError exposes the HTTP status of a token endpoint failure to the retry predicate.
func classifyTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return &shared.StatusError{StatusCode: re.Response.StatusCode, Message: re.ErrorCode}
	}
	return err
}

// NewSpotifyService creates a metadata client. Authentication happens lazily on the first request.
func NewSpotifyService(opts SpotifyOpts) (*SpotifyService, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.Market == "" {
		opts.Market = "US"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	retry := shared.DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}

	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}

	logger := shared.WithLogger(opts.Logger, "service", "spotify")
	source := &tokenSource{
		ctx: ctx,
		config: &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		retry:  retry,
		logger: logger,
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &SpotifyService{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		market:     opts.Market,
		httpClient: oauth2.NewClient(ctx, oauth2.ReuseTokenSourceWithExpiry(nil, source, tokenEarlyExpiry)),
		limiter:    rate.NewLimiter(limit, 1),
		cache:      opts.Cache,
		logger:     logger,
		chunkPause: albumChunkPause,
	}, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated GET against the Web API and decodes the JSON response into result.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, shared.ErrAuthFailed) {
			return err
		}
		return fmt.Errorf("%w: request failed: %v", shared.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return shared.ErrTrackNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("%w: %w", shared.ErrUpstreamUnavailable,
			&shared.StatusError{StatusCode: resp.StatusCode, Message: errResp.Error.Message})
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrUpstreamUnavailable, err)
		}
	}
	return nil
}

func (s *SpotifyService) remember(tracks ...models.TrackMetadata) {
	if s.cache == nil {
		return
	}
	for _, t := range tracks {
		if err := s.cache.SetMetadata(t.ID, t); err != nil {
			s.logger.Warn("failed to cache track metadata", "track", t.ID, "err", err)
		}
	}
}

// SearchTracks searches the catalog and caches the metadata of every result.
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit int) ([]models.TrackMetadata, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", shared.ErrInvalidInput)
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", fmt.Sprint(limit))

	var response spotifySearchResponse
	if err := s.doRequest(ctx, "/search?"+params.Encode(), &response); err != nil {
		s.logger.Error("search failed", "query", query, "err", err)
		return nil, fmt.Errorf("failed to search tracks: %w", err)
	}

	tracks := make([]models.TrackMetadata, 0, len(response.Tracks.Items))
	for _, item := range response.Tracks.Items {
		if item.ID == "" {
			continue
		}
		tracks = append(tracks, item.ToMetadata())
	}

	s.remember(tracks...)
	return tracks, nil
}

// rawTrack fetches a track from the API, bypassing the cache.
func (s *SpotifyService) rawTrack(ctx context.Context, trackID string) (*SpotifyTrack, error) {
	var track SpotifyTrack
	if err := s.doRequest(ctx, "/tracks/"+url.PathEscape(trackID), &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// Track returns metadata from the cache, fetching and caching it on a miss.
func (s *SpotifyService) Track(ctx context.Context, trackID string) (*models.TrackMetadata, error) {
	if trackID == "" {
		return nil, fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	if s.cache != nil {
		if meta, ok := s.cache.Metadata(trackID); ok {
			s.logger.Debug("track cache hit", "track", trackID)
			return &meta, nil
		}
	}

	track, err := s.rawTrack(ctx, trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to get track info: %w", err)
	}

	meta := track.ToMetadata()
	s.remember(meta)
	return &meta, nil
}

// Recommendations returns the seed artist's top tracks without the seed, cached for 30 minutes.
func (s *SpotifyService) Recommendations(ctx context.Context, seedTrackID string, limit int) ([]models.TrackMetadata, error) {
	if limit <= 0 {
		limit = 10
	}

	key := fmt.Sprintf("recommendations:v3:%s:%d", seedTrackID, limit)
	if s.cache != nil {
		if cached, ok := s.cache.Generic(key); ok {
			if tracks, ok := cached.([]models.TrackMetadata); ok {
				s.logger.Debug("recommendations cache hit", "seed", seedTrackID)
				return tracks, nil
			}
		}
	}

	seed, err := s.rawTrack(ctx, seedTrackID)
	if err != nil {
		return nil, fmt.Errorf("failed to get recommendations: %w", err)
	}
	if len(seed.Artists) == 0 {
		return nil, fmt.Errorf("failed to get recommendations: %w: seed track has no artists", shared.ErrNoResults)
	}

	var top spotifyTopTracksResponse
	endpoint := fmt.Sprintf("/artists/%s/top-tracks?market=%s", url.PathEscape(seed.Artists[0].ID), url.QueryEscape(s.market))
	if err := s.doRequest(ctx, endpoint, &top); err != nil {
		return nil, fmt.Errorf("failed to get recommendations: %w", err)
	}

	tracks := make([]models.TrackMetadata, 0, limit)
	for _, t := range top.Tracks {
		if t.ID == seedTrackID || t.ID == "" {
			continue
		}
		tracks = append(tracks, t.ToMetadata())
		if len(tracks) == limit {
			break
		}
	}

	s.logger.Info("recommendations fetched", "seed", seedTrackID, "artist", seed.Artists[0].Name, "count", len(tracks))
	s.remember(tracks...)
	if s.cache != nil {
		s.cache.SetGeneric(key, tracks, recommendationsTTL)
	}
	return tracks, nil
}

// NewReleases returns tracks from the newest albums, cached for an hour.
//
// Up to three tracks are taken from each of the first twenty albums. Albums are fetched five at a time with a
// short pause between batches; an album that fails is logged and skipped.
func (s *SpotifyService) NewReleases(ctx context.Context, limit int) ([]models.TrackMetadata, error) {
	if limit <= 0 {
		limit = 20
	}

	if s.cache != nil {
		if cached, ok := s.cache.Generic(newReleasesKey); ok {
			if tracks, ok := cached.([]models.TrackMetadata); ok {
				s.logger.Debug("new releases cache hit")
				return tracks[:min(limit, len(tracks))], nil
			}
		}
	}

	var releases spotifyNewReleasesResponse
	endpoint := fmt.Sprintf("/browse/new-releases?limit=50&country=%s", url.QueryEscape(s.market))
	if err := s.doRequest(ctx, endpoint, &releases); err != nil {
		return nil, fmt.Errorf("failed to get new releases: %w", err)
	}

	albums := releases.Albums.Items
	albums = albums[:min(newReleaseAlbums, len(albums))]

	var tracks []models.TrackMetadata
	for start := 0; start < len(albums); start += albumChunkSize {
		if start > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.chunkPause):
			}
		}

		chunk := albums[start:min(start+albumChunkSize, len(albums))]
		results := make([][]models.TrackMetadata, len(chunk))
		var wg conc.WaitGroup
		for i, album := range chunk {
			wg.Go(func() {
				results[i] = s.albumTracks(ctx, album)
			})
		}
		wg.Wait()

		for _, r := range results {
			tracks = append(tracks, r...)
		}
	}

	s.logger.Info("new releases fetched", "albums", len(albums), "tracks", len(tracks))
	s.remember(tracks...)
	if s.cache != nil && len(tracks) > 0 {
		s.cache.SetGeneric(newReleasesKey, tracks, newReleasesTTL)
	}
	return tracks[:min(limit, len(tracks))], nil
}

// albumTracks fetches the first tracks of album, attributing them to the album and its artists.
func (s *SpotifyService) albumTracks(ctx context.Context, album SpotifyAlbum) []models.TrackMetadata {
	var page spotifyAlbumTracksResponse
	endpoint := fmt.Sprintf("/albums/%s/tracks?limit=%d", url.PathEscape(album.ID), albumTrackLimit)
	if err := s.doRequest(ctx, endpoint, &page); err != nil {
		s.logger.Warn("failed to fetch album tracks", "album", album.Name, "err", err)
		return nil
	}

	tracks := make([]models.TrackMetadata, 0, len(page.Items))
	for _, t := range page.Items {
		if t.ID == "" {
			continue
		}
		t.Album = SpotifyAlbum{ID: album.ID, Name: album.Name, Images: album.Images}
		if len(album.Artists) > 0 {
			t.Artists = album.Artists
		}
		tracks = append(tracks, t.ToMetadata())
	}
	return tracks
}

// Playlist returns a playlist with up to 200 of its tracks, caching the metadata of each.
//
// Removed and local entries are skipped.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	var resp spotifyPlaylistResponse
	endpoint := fmt.Sprintf("/playlists/%s?market=%s", url.PathEscape(playlistID), url.QueryEscape(s.market))
	if err := s.doRequest(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}

	items := resp.Tracks.Items
	if resp.Tracks.Total > len(items) && len(items) < playlistMaxTracks {
		var next spotifyPlaylistTracks
		endpoint := fmt.Sprintf("/playlists/%s/tracks?offset=%d&limit=%d&market=%s",
			url.PathEscape(playlistID), len(items), playlistPageSize, url.QueryEscape(s.market))
		if err := s.doRequest(ctx, endpoint, &next); err != nil {
			return nil, fmt.Errorf("failed to get playlist tracks: %w", err)
		}
		items = append(items, next.Items...)
	}
	items = items[:min(playlistMaxTracks, len(items))]

	playlist := &models.Playlist{
		ID:          resp.ID,
		Name:        resp.Name,
		Description: resp.Description,
		Tracks:      make([]models.TrackMetadata, 0, len(items)),
	}
	if len(resp.Images) > 0 {
		playlist.Image = resp.Images[0].URL
	}
	for _, item := range items {
		if item.Track == nil || item.Track.ID == "" {
			continue
		}
		playlist.Tracks = append(playlist.Tracks, item.Track.ToMetadata())
	}

	s.logger.Info("playlist fetched", "playlist", playlistID, "tracks", len(playlist.Tracks), "total", resp.Tracks.Total)
	s.remember(playlist.Tracks...)
	return playlist, nil
}

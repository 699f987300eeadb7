// YouTube search [VideoSearcher] implementation
//
// Communicates with a search proxy exposing GET /api/search?q=&limit= and returning {"videos": [...]}.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/onyx/internal/models"
	"github.com/desertthunder/onyx/internal/shared"
	"golang.org/x/time/rate"
)

const defaultYTBaseURL string = "http://localhost:8080"

// YouTubeVideo is a search result as returned by the proxy.
type YouTubeVideo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	Thumbnail string `json:"thumbnail"`
	Duration  int    `json:"duration"` // Duration in seconds
	URL       string `json:"url"`
	Views     int64  `json:"views"`
}

type youtubeSearchResponse struct {
	Videos []YouTubeVideo `json:"videos"`
}

// YouTubeService implements [VideoSearcher] via the search proxy.
type YouTubeService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewYouTubeService creates a search client. A non-positive rps disables pacing.
func NewYouTubeService(baseURL string, rps float64, httpClient *http.Client, logger *log.Logger) *YouTubeService {
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	return &YouTubeService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     shared.WithLogger(logger, "service", "youtube"),
	}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return "YouTube"
}

func (y *YouTubeService) doRequest(ctx context.Context, endpoint string, result any) error {
	if err := y.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", shared.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return fmt.Errorf("%w: youtube search error (status %d): %s", shared.ErrUpstreamUnavailable, resp.StatusCode, errResp.Detail)
		}
		return fmt.Errorf("%w: youtube search error: status %d", shared.ErrUpstreamUnavailable, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Search returns up to limit video candidates for query.
//
// Calls GET /api/search on the proxy. Zero results is not an error.
func (y *YouTubeService) Search(ctx context.Context, query string, limit int) ([]models.Video, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", shared.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", fmt.Sprint(limit))
	params.Set("type", "video")

	var response youtubeSearchResponse
	if err := y.doRequest(ctx, "/api/search?"+params.Encode(), &response); err != nil {
		return nil, err
	}

	videos := make([]models.Video, 0, len(response.Videos))
	for _, v := range response.Videos {
		if v.ID == "" {
			continue
		}
		video := models.Video{
			ID:        v.ID,
			Title:     v.Title,
			Channel:   v.Channel,
			Thumbnail: v.Thumbnail,
			Duration:  v.Duration,
			Views:     v.Views,
			URL:       v.URL,
		}
		if video.URL == "" {
			video.URL = models.WatchURL(v.ID)
		}
		videos = append(videos, video)
		if len(videos) == limit {
			break
		}
	}

	y.logger.Debug("search complete", "query", query, "results", len(videos))
	return videos, nil
}

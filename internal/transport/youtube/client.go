package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	"github.com/studyowl/ragserver/internal/domain"
)

const playlistPageSize = 50

// Client talks to the YouTube Data API v3 and the public watch pages.
// Data API calls are rate-limited client-side with a token bucket.
type Client struct {
	svc         *ytapi.Service
	limiter     *rate.Limiter
	httpClient  *http.Client
	watchBase   string
	captionLang string
	logger      *zap.Logger
}

// ClientConfig holds YouTube client settings.
type ClientConfig struct {
	APIKey            string
	CaptionLang       string
	RequestsPerSecond float64
	Burst             int
	WatchBase         string
	HTTPClient        *http.Client
	Logger            *zap.Logger
}

// NewClient creates a YouTube client. Without an API key the Data API is
// unavailable: metadata degrades to URL-derived defaults and channel
// listing returns an error; captions still work (watch-page scrape).
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	watchBase := cfg.WatchBase
	if watchBase == "" {
		watchBase = "https://www.youtube.com"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Client{
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		httpClient:  httpClient,
		watchBase:   watchBase,
		captionLang: cfg.CaptionLang,
		logger:      cfg.Logger,
	}

	if cfg.APIKey != "" {
		svc, err := ytapi.NewService(ctx, option.WithAPIKey(cfg.APIKey))
		if err != nil {
			return nil, fmt.Errorf("create youtube service: %w", err)
		}
		c.svc = svc
	}

	return c, nil
}

// VideoMetadata fetches title and channel info for a video. Without an API
// key it returns URL-derived defaults so ingestion can proceed.
func (c *Client) VideoMetadata(ctx context.Context, videoID string) (domain.VideoInfo, error) {
	info := domain.VideoInfo{ID: videoID, URL: WatchURL(videoID)}

	if c.svc == nil {
		c.logger.Debug("youtube api key not configured, using degraded metadata",
			zap.String("video_id", videoID))
		return info, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.VideoInfo{}, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.svc.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return domain.VideoInfo{}, wrapAPIError("videos.list", err)
	}
	if len(resp.Items) == 0 {
		return domain.VideoInfo{}, fmt.Errorf("video %s: %w", videoID, domain.ErrNotFound)
	}

	sn := resp.Items[0].Snippet
	info.Title = sn.Title
	info.ChannelID = sn.ChannelId
	info.ChannelTitle = sn.ChannelTitle
	if ts, perr := time.Parse(time.RFC3339, sn.PublishedAt); perr == nil {
		info.PublishedAt = ts
	}

	return info, nil
}

// ChannelUploads resolves a channel reference and lists up to max videos
// from its uploads playlist, newest first.
func (c *Client) ChannelUploads(ctx context.Context, ref string, max int) ([]domain.VideoInfo, error) {
	if c.svc == nil {
		return nil, fmt.Errorf("channel ingestion requires a youtube api key: %w", domain.ErrValidation)
	}

	channelID, handle, err := ParseChannelRef(ref)
	if err != nil {
		return nil, err
	}

	uploads, err := c.uploadsPlaylistID(ctx, channelID, handle)
	if err != nil {
		return nil, err
	}

	var videos []domain.VideoInfo
	pageToken := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		call := c.svc.PlaylistItems.List([]string{"snippet", "contentDetails"}).
			PlaylistId(uploads).
			MaxResults(playlistPageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, wrapAPIError("playlistItems.list", err)
		}

		for _, item := range resp.Items {
			if item.ContentDetails == nil || item.ContentDetails.VideoId == "" {
				continue
			}
			info := domain.VideoInfo{
				ID:        item.ContentDetails.VideoId,
				URL:       WatchURL(item.ContentDetails.VideoId),
				Title:     item.Snippet.Title,
				ChannelID: item.Snippet.ChannelId,
			}
			if ts, perr := time.Parse(time.RFC3339, item.Snippet.PublishedAt); perr == nil {
				info.PublishedAt = ts
			}
			videos = append(videos, info)
			if max > 0 && len(videos) >= max {
				return videos, nil
			}
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			return videos, nil
		}
	}
}

func (c *Client) uploadsPlaylistID(ctx context.Context, channelID, handle string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	call := c.svc.Channels.List([]string{"contentDetails", "snippet"}).Context(ctx)
	if channelID != "" {
		call = call.Id(channelID)
	} else {
		call = call.ForHandle("@" + handle)
	}

	resp, err := call.Do()
	if err != nil {
		return "", wrapAPIError("channels.list", err)
	}
	if len(resp.Items) == 0 {
		return "", fmt.Errorf("channel %s%s: %w", channelID, handle, domain.ErrNotFound)
	}

	cd := resp.Items[0].ContentDetails
	if cd == nil || cd.RelatedPlaylists == nil || cd.RelatedPlaylists.Uploads == "" {
		return "", fmt.Errorf("channel has no uploads playlist: %w", domain.ErrNotFound)
	}
	return cd.RelatedPlaylists.Uploads, nil
}

// wrapAPIError maps Data API failures to domain sentinels. Quota and rate
// limit responses map to domain.ErrRateLimited so batch ingestion stops
// burning requests.
func wrapAPIError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusTooManyRequests:
			return fmt.Errorf("youtube %s: %s: %w", op, gerr.Message, domain.ErrRateLimited)
		case gerr.Code == http.StatusForbidden && hasQuotaReason(gerr):
			return fmt.Errorf("youtube %s: %s: %w", op, gerr.Message, domain.ErrRateLimited)
		case gerr.Code == http.StatusNotFound:
			return fmt.Errorf("youtube %s: %s: %w", op, gerr.Message, domain.ErrNotFound)
		}
		return fmt.Errorf("youtube %s: %s: %w", op, gerr.Message, domain.ErrExternalService)
	}
	return fmt.Errorf("youtube %s: %v: %w", op, err, domain.ErrExternalService)
}

func hasQuotaReason(gerr *googleapi.Error) bool {
	for _, item := range gerr.Errors {
		if item.Reason == "quotaExceeded" || item.Reason == "rateLimitExceeded" {
			return true
		}
	}
	return false
}

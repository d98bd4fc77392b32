package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/studyowl/ragserver/internal/domain"
)

// captionTracksRegex pulls the player caption track list out of the watch
// page. The list is embedded as a JSON array in the player response.
var captionTracksRegex = regexp.MustCompile(`"captionTracks":(\[.*?\])`)

// captionTrack mirrors a single entry of the player captionTracks array.
type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

// timedText mirrors the timedtext XML returned by a caption track baseUrl.
type timedText struct {
	XMLName xml.Name `xml:"transcript"`
	Texts   []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
}

// Captions fetches the caption track of a video as timed fragments.
// Videos without caption tracks return domain.ErrNoTranscript.
func (c *Client) Captions(ctx context.Context, videoID string) ([]domain.Caption, error) {
	tracks, err := c.captionTracks(ctx, videoID)
	if err != nil {
		return nil, err
	}

	track := pickTrack(tracks, c.captionLang)

	body, err := c.fetch(ctx, track.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch captions for %s: %w", videoID, err)
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext for %s: %v: %w", videoID, err, domain.ErrExternalService)
	}

	captions := make([]domain.Caption, 0, len(tt.Texts))
	for _, t := range tt.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Body))
		if text == "" {
			continue
		}
		captions = append(captions, domain.Caption{Text: text, Start: t.Start, Dur: t.Dur})
	}

	if len(captions) == 0 {
		return nil, fmt.Errorf("caption track of %s is empty: %w", videoID, domain.ErrNoTranscript)
	}

	return captions, nil
}

// Transcript fetches the caption track and joins it into plain text.
func (c *Client) Transcript(ctx context.Context, videoID string) (string, error) {
	captions, err := c.Captions(ctx, videoID)
	if err != nil {
		return "", err
	}
	return JoinCaptions(captions), nil
}

// JoinCaptions concatenates caption fragments into a single text.
func JoinCaptions(captions []domain.Caption) string {
	parts := make([]string, 0, len(captions))
	for _, c := range captions {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, " ")
}

func (c *Client) captionTracks(ctx context.Context, videoID string) ([]captionTrack, error) {
	page, err := c.fetch(ctx, c.watchBase+"/watch?v="+videoID)
	if err != nil {
		return nil, fmt.Errorf("fetch watch page for %s: %w", videoID, err)
	}

	m := captionTracksRegex.FindSubmatch(page)
	if m == nil {
		return nil, fmt.Errorf("video %s has no caption tracks: %w", videoID, domain.ErrNoTranscript)
	}

	var tracks []captionTrack
	if err := json.Unmarshal(m[1], &tracks); err != nil {
		return nil, fmt.Errorf("parse caption tracks for %s: %v: %w", videoID, err, domain.ErrExternalService)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("video %s has no caption tracks: %w", videoID, domain.ErrNoTranscript)
	}

	c.logger.Debug("caption tracks found",
		zap.String("video_id", videoID),
		zap.Int("tracks", len(tracks)),
	)

	return tracks, nil
}

// pickTrack prefers the configured language (manual captions before
// auto-generated), then any track in that language, then the first track.
func pickTrack(tracks []captionTrack, lang string) captionTrack {
	if lang != "" {
		for _, t := range tracks {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t
			}
		}
		for _, t := range tracks {
			if t.LanguageCode == lang || strings.HasPrefix(t.LanguageCode, lang+"-") {
				return t
			}
		}
	}
	return tracks[0]
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrExternalService)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrExternalService)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %v: %w", err, domain.ErrExternalService)
	}
	return body, nil
}

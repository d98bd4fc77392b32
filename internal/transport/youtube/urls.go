package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/studyowl/ragserver/internal/domain"
)

var (
	videoIDRegex   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	channelIDRegex = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)
)

// pathPrefixes are URL path forms that carry the video ID as the next segment.
var pathPrefixes = []string{"/embed/", "/v/", "/shorts/", "/live/"}

// ParseVideoID extracts the 11-character video ID from a URL or returns the
// input unchanged when it already is one. Unrecognized input wraps
// domain.ErrValidation.
func ParseVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty video reference: %w", domain.ErrValidation)
	}
	if videoIDRegex.MatchString(raw) {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("not a video url or id: %q: %w", raw, domain.ErrValidation)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	if host == "youtu.be" {
		if id := firstPathSegment(u.Path); videoIDRegex.MatchString(id) {
			return id, nil
		}
		return "", fmt.Errorf("no video id in %q: %w", raw, domain.ErrValidation)
	}

	if host != "youtube.com" && host != "m.youtube.com" && host != "music.youtube.com" {
		return "", fmt.Errorf("unrecognized video host %q: %w", host, domain.ErrValidation)
	}

	if id := u.Query().Get("v"); videoIDRegex.MatchString(id) {
		return id, nil
	}
	for _, prefix := range pathPrefixes {
		if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
			if id := firstPathSegment(rest); videoIDRegex.MatchString(id) {
				return id, nil
			}
		}
	}

	return "", fmt.Errorf("no video id in %q: %w", raw, domain.ErrValidation)
}

// ParseChannelRef normalizes a channel reference to either a channel ID
// (UC...) or an @handle. Accepted forms: channel URL, handle URL, raw
// channel ID, handle with or without the @.
func ParseChannelRef(raw string) (channelID, handle string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("empty channel reference: %w", domain.ErrValidation)
	}

	if channelIDRegex.MatchString(raw) {
		return raw, "", nil
	}
	if h, ok := strings.CutPrefix(raw, "@"); ok && h != "" {
		return "", h, nil
	}

	if u, perr := url.Parse(raw); perr == nil && u.Host != "" {
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if host != "youtube.com" && host != "m.youtube.com" {
			return "", "", fmt.Errorf("unrecognized channel host %q: %w", host, domain.ErrValidation)
		}
		if rest, ok := strings.CutPrefix(u.Path, "/channel/"); ok {
			if id := firstPathSegment(rest); channelIDRegex.MatchString(id) {
				return id, "", nil
			}
			return "", "", fmt.Errorf("invalid channel id in %q: %w", raw, domain.ErrValidation)
		}
		if rest, ok := strings.CutPrefix(u.Path, "/@"); ok {
			if h := firstPathSegment(rest); h != "" {
				return "", h, nil
			}
		}
		return "", "", fmt.Errorf("no channel reference in %q: %w", raw, domain.ErrValidation)
	}

	// Голый handle без @
	if !strings.ContainsAny(raw, "/?&= ") {
		return "", raw, nil
	}

	return "", "", fmt.Errorf("unrecognized channel reference %q: %w", raw, domain.ErrValidation)
}

// WatchURL returns the canonical watch page URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

func firstPathSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}

package youtube

import (
	"errors"
	"testing"

	"github.com/studyowl/ragserver/internal/domain"
)

func TestParseVideoID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"watch url extra params", "https://youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ", false},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"short link with params", "https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ", false},
		{"embed", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"legacy v path", "https://www.youtube.com/v/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"shorts", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"mobile host", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"raw id", "dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"raw id with spaces", "  dQw4w9WgXcQ  ", "dQw4w9WgXcQ", false},
		{"empty", "", "", true},
		{"wrong host", "https://vimeo.com/12345", "", true},
		{"id too short", "abc123", "", true},
		{"id with bad chars", "dQw4w9WgXc!", "", true},
		{"watch without v", "https://www.youtube.com/watch?list=PL123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVideoID(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got id %q", got)
				}
				if !errors.Is(err, domain.ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseVideoID(%q) = %q, expected %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseChannelRef(t *testing.T) {
	const ucID = "UCBR8-60-B28hp2BmDPdntcQ"

	tests := []struct {
		name       string
		input      string
		wantID     string
		wantHandle string
		wantErr    bool
	}{
		{"raw channel id", ucID, ucID, "", false},
		{"channel url", "https://www.youtube.com/channel/" + ucID, ucID, "", false},
		{"handle with at", "@studyowl", "", "studyowl", false},
		{"handle url", "https://www.youtube.com/@studyowl", "", "studyowl", false},
		{"plain handle", "studyowl", "", "studyowl", false},
		{"empty", "", "", "", true},
		{"bad channel url", "https://www.youtube.com/channel/notanid", "", "", true},
		{"wrong host", "https://vimeo.com/@studyowl", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, handle, err := ParseChannelRef(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got id=%q handle=%q", id, handle)
				}
				if !errors.Is(err, domain.ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.wantID || handle != tt.wantHandle {
				t.Errorf("ParseChannelRef(%q) = (%q, %q), expected (%q, %q)",
					tt.input, id, handle, tt.wantID, tt.wantHandle)
			}
		})
	}
}

func TestWatchURL(t *testing.T) {
	got := WatchURL("dQw4w9WgXcQ")
	if got != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("unexpected watch url: %s", got)
	}
}

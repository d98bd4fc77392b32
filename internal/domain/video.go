package domain

import "time"

// VideoInfo is the source metadata of a YouTube video.
type VideoInfo struct {
	ID           string
	Title        string
	ChannelID    string
	ChannelTitle string
	PublishedAt  time.Time
	URL          string
}

// Caption is a single timed text fragment of a video transcript.
type Caption struct {
	Text  string
	Start float64
	Dur   float64
}

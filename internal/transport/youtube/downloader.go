package youtube

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	kkdai "github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"github.com/studyowl/ragserver/internal/domain"
)

// Downloader fetches the audio stream of a video into a temp file for
// transcription.
type Downloader struct {
	client kkdai.Client
	logger *zap.Logger
}

// NewDownloader creates an audio stream downloader.
func NewDownloader(logger *zap.Logger) *Downloader {
	return &Downloader{logger: logger}
}

// DownloadAudio writes the smallest available audio stream to a temp file
// and returns its path with a cleanup func. The caller must invoke cleanup
// in all paths. Failures wrap domain.ErrTranscriptionFailed.
func (d *Downloader) DownloadAudio(ctx context.Context, videoID string) (string, func(), error) {
	video, err := d.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return "", nil, fmt.Errorf("get video %s: %v: %w", videoID, err, domain.ErrTranscriptionFailed)
	}

	format, err := smallestAudioFormat(video)
	if err != nil {
		return "", nil, err
	}

	stream, size, err := d.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return "", nil, fmt.Errorf("get stream %s: %v: %w", videoID, err, domain.ErrTranscriptionFailed)
	}
	defer stream.Close()

	f, err := os.CreateTemp("", "ragserver-audio-*"+audioExt(format.MimeType))
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %v: %w", err, domain.ErrTranscriptionFailed)
	}
	cleanup := func() { os.Remove(f.Name()) }

	written, err := io.Copy(f, stream)
	closeErr := f.Close()
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("download audio %s: %v: %w", videoID, err, domain.ErrTranscriptionFailed)
	}
	if closeErr != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %v: %w", closeErr, domain.ErrTranscriptionFailed)
	}

	d.logger.Debug("audio downloaded",
		zap.String("video_id", videoID),
		zap.Int64("bytes", written),
		zap.Int64("expected", size),
		zap.Int("itag", format.ItagNo),
	)

	return f.Name(), cleanup, nil
}

// smallestAudioFormat picks the lowest-bitrate audio-only stream, falling
// back to any stream with audio channels. Whisper does not benefit from
// high bitrates, so the cheapest download wins.
func smallestAudioFormat(video *kkdai.Video) (*kkdai.Format, error) {
	withAudio := video.Formats.WithAudioChannels()
	if len(withAudio) == 0 {
		return nil, fmt.Errorf("video %s has no audio streams: %w", video.ID, domain.ErrTranscriptionFailed)
	}

	audioOnly := make([]kkdai.Format, 0, len(withAudio))
	for _, f := range withAudio {
		if strings.HasPrefix(f.MimeType, "audio/") {
			audioOnly = append(audioOnly, f)
		}
	}
	candidates := audioOnly
	if len(candidates) == 0 {
		candidates = withAudio
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Bitrate < candidates[j].Bitrate })
	return &candidates[0], nil
}

func audioExt(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "audio/webm"), strings.HasPrefix(mimeType, "video/webm"):
		return ".webm"
	default:
		return ".m4a"
	}
}

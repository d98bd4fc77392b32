package batch

// ItemStatus is the processing outcome of a single video in a channel batch.
type ItemStatus string

// Batch item status values.
const (
	StatusSuccess ItemStatus = "success"
	// StatusSkipped marks a video left alone because its chunks are already indexed.
	StatusSkipped ItemStatus = "skipped"
	// StatusWhisperFailed marks a video with no captions whose audio
	// transcription fallback also failed.
	StatusWhisperFailed ItemStatus = "whisper_failed"
	StatusError         ItemStatus = "error"
)

// Result is the outcome of processing one video in a channel batch.
type Result struct {
	videoID string
	title   string
	status  ItemStatus
	chunks  int
	err     error
}

// NewSuccess creates a successful batch result with the number of chunks indexed.
func NewSuccess(videoID, title string, chunks int) Result {
	return Result{videoID: videoID, title: title, status: StatusSuccess, chunks: chunks}
}

// NewSkipped creates a result for a video that was already ingested.
// Chunks carries the pre-existing chunk count so batch totals include
// skipped videos.
func NewSkipped(videoID, title string, existingChunks int) Result {
	return Result{videoID: videoID, title: title, status: StatusSkipped, chunks: existingChunks}
}

// NewWhisperFailed creates a result for a captionless video whose audio path failed.
func NewWhisperFailed(videoID, title string, err error) Result {
	return Result{videoID: videoID, title: title, status: StatusWhisperFailed, err: err}
}

// NewError creates a failed batch result.
func NewError(videoID, title string, err error) Result {
	return Result{videoID: videoID, title: title, status: StatusError, err: err}
}

// VideoID returns the video identifier.
func (r Result) VideoID() string { return r.videoID }

// Title returns the video title, if known.
func (r Result) Title() string { return r.title }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Chunks returns the number of chunks indexed for the video.
func (r Result) Chunks() int { return r.chunks }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

package batch

import (
	"errors"
	"testing"
)

func TestNewSuccess(t *testing.T) {
	r := NewSuccess("dQw4w9WgXcQ", "Intro", 12)
	if r.VideoID() != "dQw4w9WgXcQ" {
		t.Errorf("VideoID() = %q", r.VideoID())
	}
	if r.Status() != StatusSuccess {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusSuccess)
	}
	if r.Chunks() != 12 {
		t.Errorf("Chunks() = %d, want 12", r.Chunks())
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v, want nil", r.Err())
	}
}

func TestNewSkipped(t *testing.T) {
	// Пропущенное видео сохраняет уже существующее число чанков
	r := NewSkipped("abc123def45", "Old lecture", 7)
	if r.Status() != StatusSkipped {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusSkipped)
	}
	if r.Chunks() != 7 {
		t.Errorf("Chunks() = %d, want 7", r.Chunks())
	}
}

func TestNewWhisperFailed(t *testing.T) {
	err := errors.New("download failed")
	r := NewWhisperFailed("abc123def45", "Silent video", err)
	if r.Status() != StatusWhisperFailed {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusWhisperFailed)
	}
	if !errors.Is(r.Err(), err) {
		t.Errorf("Err() = %v, want %v", r.Err(), err)
	}
}

func TestNewError(t *testing.T) {
	err := errors.New("something failed")
	r := NewError("abc123def45", "", err)
	if r.Status() != StatusError {
		t.Errorf("Status() = %q, want %q", r.Status(), StatusError)
	}
	if !errors.Is(r.Err(), err) {
		t.Errorf("Err() = %v, want %v", r.Err(), err)
	}
}

func TestStatusConstants(t *testing.T) {
	// Статусы сериализуются в API-ответ как есть
	if StatusSuccess != "success" {
		t.Errorf("StatusSuccess = %q", StatusSuccess)
	}
	if StatusSkipped != "skipped" {
		t.Errorf("StatusSkipped = %q", StatusSkipped)
	}
	if StatusWhisperFailed != "whisper_failed" {
		t.Errorf("StatusWhisperFailed = %q", StatusWhisperFailed)
	}
	if StatusError != "error" {
		t.Errorf("StatusError = %q", StatusError)
	}
}

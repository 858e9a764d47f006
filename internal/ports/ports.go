package ports

import (
	"context"
	"io"

	"interviewmic/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live microphone capture producing s16le PCM.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts continuous streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// Registrar registers a candidate with the backend.
type Registrar interface {
	Register(ctx context.Context, profile domain.CandidateProfile) domain.RegistrationResult
}

// CaptureHandle is the lifecycle half shared by both capture streams.
// Done is closed when the stream ends; Err reports why it ended on its own
// and is nil after a requested stop.
type CaptureHandle interface {
	ID() string
	Done() <-chan struct{}
	Err() error
}

// SpeechHandle is a running speech capture stream.
type SpeechHandle interface {
	CaptureHandle
	Transcripts() <-chan domain.TranscriptEvent
}

// VolumeHandle is a running volume monitor.
type VolumeHandle interface {
	CaptureHandle
	Samples() <-chan domain.VolumeSample
}

// SpeechCapture starts and stops continuous speech recognition.
// Start returns only once the stream is ready; Stop never fails.
type SpeechCapture interface {
	Start(ctx context.Context) (SpeechHandle, error)
	Stop(handle SpeechHandle)
}

// VolumeCapture starts and stops microphone level sampling.
type VolumeCapture interface {
	Start(ctx context.Context) (VolumeHandle, error)
	Stop(handle VolumeHandle)
}

// TriggerControl is the UI affordance that starts a session.
type TriggerControl interface {
	SetEnabled(enabled bool)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(status domain.Status)
	Transcript(event domain.TranscriptEvent)
	VolumeLevel(sample domain.VolumeSample)
	SessionError(code domain.ErrorCode, detail string)
}

package speech

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"interviewmic/internal/capture"
	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

// Config controls the microphone feed and provider settings for recognition.
type Config struct {
	Audio     ports.AudioConfig
	Streaming ports.StreamingConfig
	ChunkSize int
}

// Stream adapts a microphone capture plus a streaming transcription provider
// into a single continuous speech capture.
type Stream struct {
	audio    ports.AudioCapture
	provider ports.TranscriptionProvider
	cfg      Config
	logger   *zap.Logger

	mu      sync.Mutex
	busy    bool
	current *speechHandle
}

func NewStream(audio ports.AudioCapture, provider ports.TranscriptionProvider, cfg Config, logger *zap.Logger) *Stream {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		audio:    audio,
		provider: provider,
		cfg:      cfg,
		logger:   logger.Named("speech"),
	}
}

type speechHandle struct {
	*capture.Lifecycle

	cancel context.CancelFunc
	audio  ports.AudioSession
	stream ports.StreamingSession

	transcripts chan domain.TranscriptEvent
	quit        chan struct{}
	stopping    atomic.Bool

	pumpErr       chan error
	eventsDone    chan struct{}
	superviseDone chan struct{}
}

func (h *speechHandle) Transcripts() <-chan domain.TranscriptEvent {
	return h.transcripts
}

// Start opens the provider session and the microphone, and returns once
// audio is flowing. A second Start before Stop is rejected.
func (s *Stream) Start(ctx context.Context) (ports.SpeechHandle, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, capture.ClassifyStart(domain.CaptureSourceSpeech, domain.ErrCaptureAlreadyStarted)
	}
	s.busy = true
	s.mu.Unlock()

	h, err := s.open(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.busy = false
		return nil, err
	}
	s.current = h
	return h, nil
}

// open ties the capture to ctx only until it is running; afterwards the
// handle lives until Stop.
func (s *Stream) open(ctx context.Context) (*speechHandle, error) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	detach := context.AfterFunc(ctx, cancel)

	stream, err := s.provider.StartStreaming(runCtx, s.cfg.Streaming)
	if err != nil {
		detach()
		cancel()
		return nil, capture.ClassifyStart(domain.CaptureSourceSpeech, err)
	}

	audioSession, err := s.audio.Start(runCtx, s.cfg.Audio)
	if err == nil && !detach() {
		if stopErr := audioSession.Stop(); stopErr != nil {
			s.logger.Debug("microphone stop after cancelled start", zap.Error(stopErr))
		}
		err = ctx.Err()
	}
	if err != nil {
		detach()
		if closeErr := stream.Close(); closeErr != nil {
			s.logger.Debug("provider close after failed start", zap.Error(closeErr))
		}
		cancel()
		return nil, capture.ClassifyStart(domain.CaptureSourceSpeech, err)
	}

	h := &speechHandle{
		Lifecycle:     capture.NewLifecycle(),
		cancel:        cancel,
		audio:         audioSession,
		stream:        stream,
		transcripts:   make(chan domain.TranscriptEvent, 64),
		quit:          make(chan struct{}),
		pumpErr:       make(chan error, 1),
		eventsDone:    make(chan struct{}),
		superviseDone: make(chan struct{}),
	}

	go func() {
		h.pumpErr <- pumpAudioChunks(audioSession, stream, s.cfg.ChunkSize)
	}()
	go h.forwardTranscripts()
	go s.supervise(h)

	s.logger.Info("speech capture started", zap.String("handle_id", h.ID()))
	return h, nil
}

func (h *speechHandle) forwardTranscripts() {
	defer close(h.eventsDone)
	defer close(h.transcripts)

	for event := range h.stream.Events() {
		event.Text = strings.TrimSpace(event.Text)
		if event.Text == "" {
			continue
		}
		select {
		case h.transcripts <- event:
		case <-h.quit:
			return
		}
	}
}

// supervise turns an unrequested end of either the mic pump or the provider
// stream into a dropped capture.
func (s *Stream) supervise(h *speechHandle) {
	defer close(h.superviseDone)

	var cause error
	select {
	case <-h.quit:
		return
	case cause = <-h.pumpErr:
		h.pumpErr <- cause
	case <-h.eventsDone:
		cause = h.stream.Wait()
		if cause == nil {
			cause = errors.New("transcription stream closed")
		}
	}

	if h.stopping.Load() {
		return
	}
	s.logger.Warn("speech capture dropped", zap.String("handle_id", h.ID()), zap.Error(cause))
	h.Finish(capture.Dropped(domain.CaptureSourceSpeech, cause))
}

// Stop releases the provider session and the microphone. It never fails;
// teardown errors are logged. Stopping an unknown or already stopped handle
// is a no-op.
func (s *Stream) Stop(handle ports.SpeechHandle) {
	h, ok := handle.(*speechHandle)
	if !ok || h == nil {
		return
	}

	s.mu.Lock()
	if s.current != h {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.mu.Unlock()

	h.stopping.Store(true)
	close(h.quit)

	if err := h.audio.Stop(); err != nil {
		s.logger.Warn("microphone stop failed", zap.String("handle_id", h.ID()), zap.Error(err))
	}
	if err := h.stream.Close(); err != nil {
		s.logger.Debug("provider close reported error", zap.String("handle_id", h.ID()), zap.Error(err))
	}
	h.cancel()

	<-h.pumpErr
	<-h.eventsDone
	<-h.superviseDone
	h.Finish(nil)

	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()

	s.logger.Info("speech capture stopped", zap.String("handle_id", h.ID()))
}

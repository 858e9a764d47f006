package volume

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"interviewmic/internal/audio"
	"interviewmic/internal/capture"
	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

// Config controls microphone level sampling.
type Config struct {
	Audio    ports.AudioConfig
	Interval time.Duration
}

// Monitor samples microphone amplitude once per interval of captured audio.
type Monitor struct {
	audio  ports.AudioCapture
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	busy    bool
	current *volumeHandle
}

func NewMonitor(audioCapture ports.AudioCapture, cfg Config, logger *zap.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		audio:  audioCapture,
		cfg:    cfg,
		logger: logger.Named("volume"),
		now:    time.Now,
	}
}

type volumeHandle struct {
	*capture.Lifecycle

	cancel  context.CancelFunc
	session ports.AudioSession

	samples  chan domain.VolumeSample
	quit     chan struct{}
	stopping atomic.Bool
	loopDone chan struct{}
}

func (h *volumeHandle) Samples() <-chan domain.VolumeSample {
	return h.samples
}

// Start opens the microphone and begins sampling. A second Start before Stop
// is rejected.
func (m *Monitor) Start(ctx context.Context) (ports.VolumeHandle, error) {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return nil, capture.ClassifyStart(domain.CaptureSourceVolume, domain.ErrCaptureAlreadyStarted)
	}
	m.busy = true
	m.mu.Unlock()

	// The microphone outlives the start call and runs until Stop.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	detach := context.AfterFunc(ctx, cancel)
	session, err := m.audio.Start(runCtx, m.cfg.Audio)
	if err == nil && !detach() {
		if stopErr := session.Stop(); stopErr != nil {
			m.logger.Debug("microphone stop after cancelled start", zap.Error(stopErr))
		}
		err = ctx.Err()
	}
	if err != nil {
		detach()
		cancel()
		m.mu.Lock()
		m.busy = false
		m.mu.Unlock()
		return nil, capture.ClassifyStart(domain.CaptureSourceVolume, err)
	}

	h := &volumeHandle{
		Lifecycle: capture.NewLifecycle(),
		cancel:    cancel,
		session:   session,
		samples:   make(chan domain.VolumeSample, 32),
		quit:      make(chan struct{}),
		loopDone:  make(chan struct{}),
	}

	m.mu.Lock()
	m.current = h
	m.mu.Unlock()

	go m.sample(h)

	m.logger.Info("volume monitor started", zap.String("handle_id", h.ID()))
	return h, nil
}

func (m *Monitor) sample(h *volumeHandle) {
	defer close(h.loopDone)
	defer close(h.samples)

	windowMillis := int(m.cfg.Interval / time.Millisecond)
	buf := make([]byte, audio.BytesPerWindow(m.cfg.Audio.SampleRate, m.cfg.Audio.Channels, windowMillis))

	for {
		n, err := io.ReadFull(h.session, buf)
		if n > 0 {
			sample := domain.VolumeSample{Level: audio.Level(buf[:n]), Timestamp: m.now()}
			select {
			case h.samples <- sample:
			case <-h.quit:
				return
			default:
				// consumer is behind; levels are ephemeral
			}
		}
		if err != nil {
			if h.stopping.Load() {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				err = errors.New("microphone capture ended")
			} else {
				err = fmt.Errorf("audio capture error: %w", err)
			}
			m.logger.Warn("volume monitor dropped", zap.String("handle_id", h.ID()), zap.Error(err))
			h.Finish(capture.Dropped(domain.CaptureSourceVolume, err))
			return
		}
	}
}

// Stop releases the microphone. It never fails; teardown errors are logged.
func (m *Monitor) Stop(handle ports.VolumeHandle) {
	h, ok := handle.(*volumeHandle)
	if !ok || h == nil {
		return
	}

	m.mu.Lock()
	if m.current != h {
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.mu.Unlock()

	h.stopping.Store(true)
	close(h.quit)

	if err := h.session.Stop(); err != nil {
		m.logger.Warn("microphone stop failed", zap.String("handle_id", h.ID()), zap.Error(err))
	}
	h.cancel()

	<-h.loopDone
	h.Finish(nil)

	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()

	m.logger.Info("volume monitor stopped", zap.String("handle_id", h.ID()))
}

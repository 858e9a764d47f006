package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

var (
	ErrSessionBusy       = errors.New("a session is already in progress")
	ErrNoActiveSession   = errors.New("no active capture session")
	ErrInvalidTransition = errors.New("invalid session state transition")
	ErrSessionCancelled  = errors.New("session cancelled")
)

// Config controls session orchestration.
type Config struct {
	// StartTimeout bounds the Starting state; zero waits indefinitely.
	StartTimeout time.Duration
}

// SessionController registers a candidate and, on success, runs speech and
// volume capture together as a single session.
type SessionController struct {
	registrar ports.Registrar
	speech    ports.SpeechCapture
	volume    ports.VolumeCapture
	events    ports.EventSink
	logger    *zap.Logger
	cfg       Config

	newID func() string
	now   func() time.Time

	mu      sync.Mutex
	state   domain.SessionState
	reason  domain.SessionStateReason
	message string
	current *activeSession
}

func NewSessionController(
	registrar ports.Registrar,
	speech ports.SpeechCapture,
	volume ports.VolumeCapture,
	events ports.EventSink,
	logger *zap.Logger,
	cfg Config,
) *SessionController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionController{
		registrar: registrar,
		speech:    speech,
		volume:    volume,
		events:    events,
		logger:    logger.Named("session"),
		cfg:       cfg,
		newID:     uuid.NewString,
		now:       time.Now,
		state:     domain.SessionStateIdle,
		reason:    domain.SessionReasonReady,
	}
}

// Submit registers the profile and starts capture. It returns once the
// session is Active, or with the registration or capture start failure.
// Cancelling ctx aborts registration and start; a running capture lasts
// until Stop.
func (c *SessionController) Submit(ctx context.Context, profile domain.CandidateProfile) error {
	c.mu.Lock()
	if c.state != domain.SessionStateIdle {
		c.mu.Unlock()
		return ErrSessionBusy
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	session := newActiveSession(c.newID(), c.now(), cancel)
	c.current = session
	c.message = ""
	c.transitionLocked(domain.SessionStateRegistering, domain.SessionReasonRegistering)
	c.mu.Unlock()

	logger := c.logger.With(zap.String("session_id", session.id))
	logger.Info("registering candidate", zap.String("resume_name", profile.ResumeName))

	result := c.registrar.Register(sessionCtx, profile)

	c.mu.Lock()
	if session.stopRequested {
		c.mu.Unlock()
		return c.finishCancelled(session, nil, nil)
	}
	if !result.Success {
		c.message = result.Reason
		c.transitionLocked(domain.SessionStateFailed, domain.SessionReasonRegistrationFailed)
		c.events.SessionError(result.Kind, result.Reason)
		c.current = nil
		c.transitionLocked(domain.SessionStateIdle, domain.SessionReasonRegistrationFailed)
		close(session.settled)
		c.mu.Unlock()

		session.cancel()
		logger.Warn("registration failed", zap.String("kind", string(result.Kind)), zap.String("reason", result.Reason))
		return result.Err()
	}
	c.message = result.Message
	session.candidate = result.Candidate
	c.transitionLocked(domain.SessionStateStarting, domain.SessionReasonRegistered)
	c.mu.Unlock()

	speechHandle, volumeHandle, err := c.startCapture(sessionCtx, session)

	c.mu.Lock()
	if session.stopRequested {
		c.mu.Unlock()
		return c.finishCancelled(session, speechHandle, volumeHandle)
	}
	if err != nil {
		c.message = err.Error()
		c.transitionLocked(domain.SessionStateFailed, domain.SessionReasonCaptureStartFailed)
		c.events.SessionError(domain.ErrorCodeOf(err, domain.ErrorCodeCapabilityUnavailable), err.Error())
		c.mu.Unlock()

		c.releaseStarted(speechHandle, volumeHandle)
		session.cancel()
		close(session.settled)

		logger.Warn("capture start failed", zap.Error(err))
		return err
	}

	session.speech = speechHandle
	session.volume = volumeHandle
	session.watchDone = make(chan struct{})
	go c.watch(session)
	c.transitionLocked(domain.SessionStateActive, domain.SessionReasonCaptureStarted)
	close(session.settled)
	c.mu.Unlock()

	logger.Info("capture session active")
	return nil
}

// startCapture starts both streams concurrently. The first failure cancels
// the group context so the other start is interrupted. Handles that did
// start are returned even on error so the caller can release them.
func (c *SessionController) startCapture(ctx context.Context, session *activeSession) (ports.SpeechHandle, ports.VolumeHandle, error) {
	var timer *time.Timer
	if c.cfg.StartTimeout > 0 {
		timer = time.AfterFunc(c.cfg.StartTimeout, session.cancel)
	}

	var (
		speechHandle ports.SpeechHandle
		volumeHandle ports.VolumeHandle
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		handle, err := c.speech.Start(gctx)
		if err != nil {
			return err
		}
		speechHandle = handle
		return nil
	})
	g.Go(func() error {
		handle, err := c.volume.Start(gctx)
		if err != nil {
			return err
		}
		volumeHandle = handle
		return nil
	})
	err := g.Wait()

	if timer != nil && !timer.Stop() {
		source := domain.CaptureSourceVolume
		if speechHandle == nil {
			source = domain.CaptureSourceSpeech
		}
		err = domain.NewCaptureError(source, domain.ErrorCodeCapabilityUnavailable,
			fmt.Errorf("capture did not start within %s", c.cfg.StartTimeout))
	}
	return speechHandle, volumeHandle, err
}

// finishCancelled completes a Stop that arrived while work was pending.
func (c *SessionController) finishCancelled(session *activeSession, speech ports.SpeechHandle, volume ports.VolumeHandle) error {
	c.releaseStarted(speech, volume)
	session.cancel()

	c.mu.Lock()
	c.transitionLocked(domain.SessionStateStopped, domain.SessionReasonCancelled)
	close(session.settled)
	close(session.stopped)
	c.mu.Unlock()

	c.logger.Info("session cancelled before capture became active", zap.String("session_id", session.id))
	return ErrSessionCancelled
}

func (c *SessionController) releaseStarted(speech ports.SpeechHandle, volume ports.VolumeHandle) {
	if speech != nil {
		c.speech.Stop(speech)
	}
	if volume != nil {
		c.volume.Stop(volume)
	}
}

// watch forwards stream events while Active and turns an unrequested end of
// either stream into a consolidated failure.
func (c *SessionController) watch(session *activeSession) {
	defer close(session.watchDone)

	transcripts := session.speech.Transcripts()
	samples := session.volume.Samples()
	for {
		select {
		case event, ok := <-transcripts:
			if !ok {
				transcripts = nil
				continue
			}
			session.aggregator.Add(event)
			c.events.Transcript(event)
		case sample, ok := <-samples:
			if !ok {
				samples = nil
				continue
			}
			c.events.VolumeLevel(sample)
		case <-session.speech.Done():
			c.handleDrop(session, domain.CaptureSourceSpeech, session.speech.Err())
			return
		case <-session.volume.Done():
			c.handleDrop(session, domain.CaptureSourceVolume, session.volume.Err())
			return
		}
	}
}

func (c *SessionController) handleDrop(session *activeSession, source domain.CaptureSource, cause error) {
	if cause == nil {
		cause = domain.NewCaptureError(source, domain.ErrorCodeCapabilityDropped, errors.New("capture ended unexpectedly"))
	}

	c.mu.Lock()
	if c.current != session || c.state != domain.SessionStateActive {
		// A requested stop owns the teardown.
		c.mu.Unlock()
		return
	}
	c.message = cause.Error()
	c.transitionLocked(domain.SessionStateFailed, domain.SessionReasonCaptureDropped)
	c.events.SessionError(domain.ErrorCodeOf(cause, domain.ErrorCodeCapabilityDropped), cause.Error())
	c.mu.Unlock()

	c.logger.Warn("capture dropped mid-session",
		zap.String("session_id", session.id),
		zap.String("source", string(source)),
		zap.Error(cause),
	)
	c.releaseStarted(session.speech, session.volume)
	session.cancel()
}

// Stop ends the current session. While registering or starting it cancels
// the pending work. Both streams are stopped exactly once, and every Stop
// call returns only after the session has reached Stopped.
func (c *SessionController) Stop(ctx context.Context) error {
	c.mu.Lock()
	session := c.current
	switch c.state {
	case domain.SessionStateRegistering, domain.SessionStateStarting:
		session.stopRequested = true
		c.transitionLocked(domain.SessionStateStopping, domain.SessionReasonCaptureStopping)
		c.mu.Unlock()

		session.cancel()
		return waitStopped(ctx, session)
	case domain.SessionStateActive:
		c.transitionLocked(domain.SessionStateStopping, domain.SessionReasonCaptureStopping)
		c.mu.Unlock()
	case domain.SessionStateStopping:
		c.mu.Unlock()
		return waitStopped(ctx, session)
	default:
		c.mu.Unlock()
		return ErrNoActiveSession
	}

	c.releaseStarted(session.speech, session.volume)
	session.waitWatcher()
	session.cancel()

	c.mu.Lock()
	c.transitionLocked(domain.SessionStateStopped, domain.SessionReasonCaptureStopped)
	close(session.stopped)
	c.mu.Unlock()

	c.logger.Info("capture session stopped", zap.String("session_id", session.id))
	return nil
}

func waitStopped(ctx context.Context, session *activeSession) error {
	select {
	case <-session.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset returns a terminal session to Idle. It is a no-op when already Idle.
func (c *SessionController) Reset() error {
	c.mu.Lock()
	if c.state == domain.SessionStateIdle {
		c.mu.Unlock()
		return nil
	}
	if !c.state.Terminal() {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot reset from %s", ErrInvalidTransition, state)
	}
	session := c.current
	c.mu.Unlock()

	if session != nil {
		<-session.settled
		session.waitWatcher()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.Terminal() || c.current != session {
		return nil
	}
	c.current = nil
	c.message = ""
	c.transitionLocked(domain.SessionStateIdle, domain.SessionReasonReset)
	return nil
}

// Shutdown stops whatever is running; used on page teardown.
func (c *SessionController) Shutdown() {
	if err := c.Stop(context.Background()); err != nil && !errors.Is(err, ErrNoActiveSession) {
		c.logger.Warn("shutdown stop failed", zap.Error(err))
	}
}

// Status returns a snapshot of the current session.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *SessionController) statusLocked() domain.Status {
	status := domain.Status{
		State:            c.state,
		Reason:           c.reason,
		Active:           c.state != domain.SessionStateIdle && !c.state.Terminal(),
		IndicatorVisible: domain.IndicatorVisible(c.state),
		SubmitEnabled:    domain.SubmitEnabled(c.state),
		Message:          c.message,
	}
	if c.current != nil {
		startedAt := c.current.startedAt
		status.SessionID = c.current.id
		status.StartedAt = &startedAt
		status.Transcript = c.current.aggregator.Text()
		status.Candidate = c.current.candidate
	}
	return status
}

// transitionLocked records the new state and emits it. Emitting under the
// mutex keeps the event order identical to the transition order.
func (c *SessionController) transitionLocked(state domain.SessionState, reason domain.SessionStateReason) {
	c.state = state
	c.reason = reason
	c.events.SessionStateChanged(c.statusLocked())
}

package main

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"interviewmic/internal/bootstrap"
	"interviewmic/internal/config"
	"interviewmic/internal/domain"
	"interviewmic/internal/gate"
	"interviewmic/internal/usecase"
)

const (
	eventSession    = "interviewmic:session"
	eventTranscript = "interviewmic:transcript"
	eventVolume     = "interviewmic:volume"
	eventError      = "interviewmic:error"
	eventSubmit     = "interviewmic:submit"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	controller *usecase.SessionController
	gate       *gate.Gate
	cfg        config.Config
	logger     *zap.Logger
	validate   *validator.Validate
	bootErr    error
}

func NewApp() *App {
	return &App{validate: newProfileValidator(), logger: zap.NewNop()}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.logger = services.Logger
	a.controller = services.Controller
	a.gate = services.Gate
	status := a.controller.Status()
	a.SessionStateChanged(status)
	a.SetEnabled(status.SubmitEnabled)
}

func (a *App) shutdown(_ context.Context) {
	if a.controller != nil {
		a.controller.Shutdown()
	}
	_ = a.logger.Sync()
}

// SubmitProfile registers the candidate and starts the voice session. A
// submit while another is still in flight is ignored.
func (a *App) SubmitProfile(linkedin string, resumeName string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}

	profile, err := a.profileFrom(linkedin, resumeName)
	if err != nil {
		return a.controller.Status(), err
	}

	ran, err := a.gate.Guard(a.runCtx(), func(ctx context.Context) error {
		if a.controller.Status().State.Terminal() {
			if err := a.controller.Reset(); err != nil {
				return err
			}
		}
		return a.controller.Submit(ctx, profile)
	})
	if !ran {
		a.logger.Debug("submit ignored while another is in flight")
		return a.controller.Status(), nil
	}
	if err != nil && !errors.Is(err, usecase.ErrSessionCancelled) {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// StopSession stops the current session, including one still registering.
func (a *App) StopSession() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Stop(a.runCtx()); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// ResetSession returns a stopped or failed session to idle.
func (a *App) ResetSession() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Reset(); err != nil {
		return a.controller.Status(), err
	}
	return a.controller.Status(), nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateFailed, Message: a.bootErr.Error()}
		}
		return domain.Status{
			State:         domain.SessionStateIdle,
			Reason:        domain.SessionReasonReady,
			SubmitEnabled: domain.SubmitEnabled(domain.SessionStateIdle),
		}
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"backend":          a.cfg.Backend.BaseURL,
		"provider":         "Deepgram",
		"model":            a.cfg.Deepgram.Model,
		"language":         a.cfg.Deepgram.Language,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"volumeInterval":   a.cfg.Session.VolumeInterval.String(),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil || a.gate == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) runCtx() context.Context {
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

func (a *App) profileFrom(linkedin string, resumeName string) (domain.CandidateProfile, error) {
	profile := domain.CandidateProfile{
		LinkedInURL: strings.TrimSpace(linkedin),
		ResumeName:  strings.TrimSpace(resumeName),
	}
	if a.validate == nil {
		a.validate = newProfileValidator()
	}
	if err := a.validate.Struct(profile); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			return profile, fmt.Errorf("invalid profile: %s is %s", invalid[0].Field(), validationProblem(invalid[0].Tag()))
		}
		return profile, fmt.Errorf("invalid profile: %w", err)
	}
	return profile, nil
}

func newProfileValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationProblem(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "url":
		return "not a valid URL"
	default:
		return "invalid"
	}
}

type sessionPayload struct {
	domain.Status
	Label string `json:"label"`
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(status domain.Status) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, sessionPayload{Status: status, Label: sessionReasonMessage(status.Reason)})
}

type transcriptPayload struct {
	domain.TranscriptEvent
	// Transcript is the session's running text: every final segment so far
	// plus the trailing interim one.
	Transcript string `json:"transcript"`
}

// Transcript emits live transcript text.
func (a *App) Transcript(event domain.TranscriptEvent) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventTranscript, a.transcriptPayload(event))
}

func (a *App) transcriptPayload(event domain.TranscriptEvent) transcriptPayload {
	payload := transcriptPayload{TranscriptEvent: event, Transcript: event.Text}
	if a.controller != nil {
		payload.Transcript = a.controller.Status().Transcript
	}
	return payload
}

// VolumeLevel emits one microphone level sample.
func (a *App) VolumeLevel(sample domain.VolumeSample) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventVolume, map[string]any{
		"level":     sample.Level,
		"timestamp": sample.Timestamp.UnixMilli(),
	})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
		"at":      time.Now().Format(time.RFC3339),
	})
}

// SetEnabled toggles the submit control in the frontend. It receives the
// combined gate and session signal.
func (a *App) SetEnabled(enabled bool) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSubmit, map[string]bool{"enabled": enabled})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady, domain.SessionReasonReset:
		return "Ready"
	case domain.SessionReasonRegistering:
		return "Submitting profile..."
	case domain.SessionReasonRegistered:
		return "Profile submitted. Starting microphone..."
	case domain.SessionReasonCaptureStarted:
		return "Listening"
	case domain.SessionReasonCaptureStopping:
		return "Stopping..."
	case domain.SessionReasonCaptureStopped:
		return "Session ended"
	case domain.SessionReasonCancelled:
		return "Session cancelled"
	case domain.SessionReasonRegistrationFailed:
		return "Submission failed"
	case domain.SessionReasonCaptureStartFailed:
		return "Microphone could not start"
	case domain.SessionReasonCaptureDropped:
		return "Microphone stopped unexpectedly"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeNetworkFailure:
		return "Could not reach the server"
	case domain.ErrorCodeServerRejected:
		return "The server rejected the submission"
	case domain.ErrorCodeMalformedResponse:
		return "Unexpected server response"
	case domain.ErrorCodeCapabilityDenied:
		return "Microphone or speech access denied"
	case domain.ErrorCodeCapabilityUnavailable:
		return "Microphone or speech service unavailable"
	case domain.ErrorCodeCapabilityDropped:
		return "Capture stopped unexpectedly"
	case domain.ErrorCodeStartup:
		return "Startup failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

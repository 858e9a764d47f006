package domain

import "time"

// SessionState models the registration and capture lifecycle.
type SessionState string

const (
	SessionStateIdle        SessionState = "idle"
	SessionStateRegistering SessionState = "registering"
	SessionStateStarting    SessionState = "starting"
	SessionStateActive      SessionState = "active"
	SessionStateStopping    SessionState = "stopping"
	SessionStateStopped     SessionState = "stopped"
	SessionStateFailed      SessionState = "failed"
)

// Terminal reports whether the state only leaves through an explicit reset.
func (s SessionState) Terminal() bool {
	return s == SessionStateStopped || s == SessionStateFailed
}

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady              SessionStateReason = "ready"
	SessionReasonRegistering        SessionStateReason = "registering"
	SessionReasonRegistered         SessionStateReason = "registered"
	SessionReasonCaptureStarted     SessionStateReason = "capture_started"
	SessionReasonCaptureStopping    SessionStateReason = "capture_stopping"
	SessionReasonCaptureStopped     SessionStateReason = "capture_stopped"
	SessionReasonCancelled          SessionStateReason = "cancelled"
	SessionReasonRegistrationFailed SessionStateReason = "registration_failed"
	SessionReasonCaptureStartFailed SessionStateReason = "capture_start_failed"
	SessionReasonCaptureDropped     SessionStateReason = "capture_dropped"
	SessionReasonReset              SessionStateReason = "reset"
)

// ErrorCode identifies registration, capture and plumbing failures.
type ErrorCode string

const (
	ErrorCodeNetworkFailure        ErrorCode = "network_failure"
	ErrorCodeServerRejected        ErrorCode = "server_rejected"
	ErrorCodeMalformedResponse     ErrorCode = "malformed_response"
	ErrorCodeCapabilityDenied      ErrorCode = "capability_denied"
	ErrorCodeCapabilityUnavailable ErrorCode = "capability_unavailable"
	ErrorCodeCapabilityDropped     ErrorCode = "capability_dropped"
	ErrorCodeStartup               ErrorCode = "startup"
)

// CaptureSource names one half of a capture session.
type CaptureSource string

const (
	CaptureSourceSpeech CaptureSource = "speech"
	CaptureSourceVolume CaptureSource = "volume"
)

// CandidateProfile is the identity submitted to the backend.
type CandidateProfile struct {
	LinkedInURL string `json:"linkedin" validate:"required,url"`
	ResumeName  string `json:"resumeName" validate:"required"`
}

// CandidateSummary is what the backend reports back about a registered candidate.
type CandidateSummary struct {
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	Experiences int    `json:"experiences"`
}

// RegistrationResult is either a success or a failure with a classified reason.
type RegistrationResult struct {
	Success   bool              `json:"success"`
	Kind      ErrorCode         `json:"kind,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Message   string            `json:"message,omitempty"`
	Candidate *CandidateSummary `json:"candidate,omitempty"`
}

func RegistrationSucceeded(message string, candidate *CandidateSummary) RegistrationResult {
	return RegistrationResult{Success: true, Message: message, Candidate: candidate}
}

func RegistrationFailed(kind ErrorCode, reason string) RegistrationResult {
	return RegistrationResult{Kind: kind, Reason: reason}
}

// Err converts a failed result into a *RegistrationError; nil on success.
func (r RegistrationResult) Err() error {
	if r.Success {
		return nil
	}
	return &RegistrationError{Code: r.Kind, Reason: r.Reason}
}

// TranscriptEvent represents incremental transcription output.
type TranscriptEvent struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// VolumeSample is a normalized microphone level in [0, 1].
type VolumeSample struct {
	Level     float64   `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// Status summarizes the current session for the UI.
type Status struct {
	SessionID        string             `json:"sessionId,omitempty"`
	State            SessionState       `json:"state"`
	Reason           SessionStateReason `json:"reason,omitempty"`
	StartedAt        *time.Time         `json:"startedAt,omitempty"`
	Active           bool               `json:"active"`
	IndicatorVisible bool               `json:"indicatorVisible"`
	SubmitEnabled    bool               `json:"submitEnabled"`
	Transcript       string             `json:"transcript,omitempty"`
	Message          string             `json:"message,omitempty"`
	Candidate        *CandidateSummary  `json:"candidate,omitempty"`
}

// IndicatorVisible is true only while capture is fully running.
func IndicatorVisible(state SessionState) bool {
	return state == SessionStateActive
}

// SubmitEnabled is true when a fresh submit cycle may begin.
func SubmitEnabled(state SessionState) bool {
	return state == SessionStateIdle || state.Terminal()
}

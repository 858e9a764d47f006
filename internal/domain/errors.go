package domain

import (
	"errors"
	"fmt"
)

var ErrCaptureAlreadyStarted = errors.New("capture is already started")

// RegistrationError is a classified registration failure.
type RegistrationError struct {
	Code   ErrorCode
	Reason string
}

func (e *RegistrationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("registration failed: %s", e.Code)
	}
	return fmt.Sprintf("registration failed: %s: %s", e.Code, e.Reason)
}

// CaptureError is a classified failure of one capture stream.
type CaptureError struct {
	Source CaptureSource
	Code   ErrorCode
	Err    error
}

func NewCaptureError(source CaptureSource, code ErrorCode, err error) *CaptureError {
	return &CaptureError{Source: source, Code: code, Err: err}
}

func (e *CaptureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s capture: %s", e.Source, e.Code)
	}
	return fmt.Sprintf("%s capture: %s: %v", e.Source, e.Code, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// ErrorCodeOf extracts the code of a classified error, falling back to fallback.
func ErrorCodeOf(err error, fallback ErrorCode) ErrorCode {
	var regErr *RegistrationError
	if errors.As(err, &regErr) {
		return regErr.Code
	}
	var capErr *CaptureError
	if errors.As(err, &capErr) {
		return capErr.Code
	}
	return fallback
}

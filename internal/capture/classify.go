package capture

import (
	"errors"

	"interviewmic/internal/audio"
	"interviewmic/internal/domain"
	"interviewmic/internal/providers/deepgram"
)

// ClassifyStart maps a capability start failure onto the capture error taxonomy.
func ClassifyStart(source domain.CaptureSource, err error) error {
	if err == nil {
		return nil
	}
	var capErr *domain.CaptureError
	if errors.As(err, &capErr) {
		return err
	}

	code := domain.ErrorCodeCapabilityUnavailable
	if errors.Is(err, audio.ErrDeviceRefused) || errors.Is(err, deepgram.ErrUnauthorized) {
		code = domain.ErrorCodeCapabilityDenied
	}
	return domain.NewCaptureError(source, code, err)
}

// Dropped wraps a mid-session failure.
func Dropped(source domain.CaptureSource, err error) error {
	if err == nil {
		err = errors.New("capture ended unexpectedly")
	}
	return domain.NewCaptureError(source, domain.ErrorCodeCapabilityDropped, err)
}

package speech

import (
	"errors"
	"fmt"
	"io"

	"interviewmic/internal/ports"
)

var errMicrophoneClosed = errors.New("microphone capture ended")

// pumpAudioChunks copies microphone PCM into the provider session until
// either side fails. It always returns a non-nil error.
func pumpAudioChunks(audio ports.AudioSession, stream ports.StreamingSession, chunkSize int) error {
	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				return fmt.Errorf("failed to stream audio: %w", sendErr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return errMicrophoneClosed
			}
			return fmt.Errorf("audio capture error: %w", err)
		}
	}
}

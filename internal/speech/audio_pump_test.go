package speech

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPumpAudioChunksReportsSendError(t *testing.T) {
	t.Parallel()

	mic := newFakeAudioSession([]byte("abc"))
	stream := newFakeStreamingSession()
	stream.sendErr = errors.New("send failed")

	err := pumpAudioChunks(mic, stream, 256)
	assert.ErrorContains(t, err, "failed to stream audio: send failed")
}

func TestPumpAudioChunksReportsReadError(t *testing.T) {
	t.Parallel()

	mic := newFakeAudioSession()
	mic.readErr = errors.New("read failed")

	err := pumpAudioChunks(mic, newFakeStreamingSession(), 256)
	assert.ErrorContains(t, err, "audio capture error: read failed")
}

func TestPumpAudioChunksEndOfMicrophone(t *testing.T) {
	t.Parallel()

	mic := newFakeAudioSession([]byte("a"), []byte("b"))
	stream := newFakeStreamingSession()
	_ = mic.Stop()

	err := pumpAudioChunks(mic, stream, 0)
	assert.ErrorIs(t, err, errMicrophoneClosed)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b")}, stream.sent)
}

package audio

import (
	"encoding/binary"
	"math"
)

// Level returns the RMS amplitude of little-endian signed 16-bit PCM,
// normalized to [0, 1]. A trailing odd byte is ignored.
func Level(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < samples; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
		sum += v * v
	}

	rms := math.Sqrt(sum / float64(samples))
	if rms > 1 {
		return 1
	}
	return rms
}

// BytesPerWindow is the PCM byte count covering one window of audio.
func BytesPerWindow(sampleRate, channels int, windowMillis int) int {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	if windowMillis <= 0 {
		windowMillis = 100
	}
	n := sampleRate * channels * 2 * windowMillis / 1000
	if n < 2 {
		n = 2
	}
	return n - n%2
}

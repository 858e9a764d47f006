package usecase

import (
	"strings"
	"sync"

	"interviewmic/internal/domain"
)

// transcriptAggregator accumulates one session's transcript: finalized
// segments in order, plus the latest interim segment if it extends them.
type transcriptAggregator struct {
	mu      sync.Mutex
	finals  []string
	interim string
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

func (a *transcriptAggregator) Add(event domain.TranscriptEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	text := strings.TrimSpace(event.Text)
	if text == "" {
		return
	}
	if event.IsFinal {
		a.finals = append(a.finals, text)
		a.interim = ""
		return
	}
	a.interim = text
}

func (a *transcriptAggregator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	joined := strings.Join(a.finals, " ")
	if a.interim == "" {
		return joined
	}
	if joined == "" {
		return a.interim
	}
	return joined + " " + a.interim
}

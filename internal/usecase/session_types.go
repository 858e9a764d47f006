package usecase

import (
	"context"
	"time"

	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

// activeSession is the single session slot owned by SessionController.
// Fields other than the channels are guarded by the controller mutex.
type activeSession struct {
	id        string
	startedAt time.Time
	cancel    context.CancelFunc

	// settled is closed once Submit has finished its pending work.
	settled       chan struct{}
	stopRequested bool
	// stopped is closed once a requested stop has reached Stopped.
	stopped chan struct{}

	speech ports.SpeechHandle
	volume ports.VolumeHandle

	// watchDone is closed when the event watcher exits; nil until Active.
	watchDone chan struct{}

	aggregator *transcriptAggregator
	candidate  *domain.CandidateSummary
}

func newActiveSession(id string, startedAt time.Time, cancel context.CancelFunc) *activeSession {
	return &activeSession{
		id:         id,
		startedAt:  startedAt,
		cancel:     cancel,
		settled:    make(chan struct{}),
		stopped:    make(chan struct{}),
		aggregator: newTranscriptAggregator(),
	}
}

func (s *activeSession) waitWatcher() {
	if s.watchDone != nil {
		<-s.watchDone
	}
}

package gate

import (
	"sync"

	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

// Interlock drives a trigger control from two inputs: the gate's in-flight
// signal and whether the session state allows a submit. The control is
// enabled only while both allow it, and it is told only about changes.
type Interlock struct {
	out ports.TriggerControl

	mu        sync.Mutex
	open      bool
	allowed   bool
	published bool
	last      bool
}

func NewInterlock(out ports.TriggerControl) *Interlock {
	return &Interlock{out: out, open: true, allowed: true}
}

// SetEnabled receives the gate side. It makes Interlock usable as the
// control passed to New.
func (l *Interlock) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = enabled
	l.publishLocked()
}

// Allow receives the session side.
func (l *Interlock) Allow(allowed bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowed = allowed
	l.publishLocked()
}

// Enabled reports whether both inputs currently allow a submit.
func (l *Interlock) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open && l.allowed
}

func (l *Interlock) publishLocked() {
	enabled := l.open && l.allowed
	if l.published && enabled == l.last {
		return
	}
	l.published = true
	l.last = enabled
	l.out.SetEnabled(enabled)
}

// Track wraps sink so every session state change also updates Allow.
func (l *Interlock) Track(sink ports.EventSink) ports.EventSink {
	return trackedSink{EventSink: sink, interlock: l}
}

type trackedSink struct {
	ports.EventSink
	interlock *Interlock
}

func (s trackedSink) SessionStateChanged(status domain.Status) {
	s.interlock.Allow(status.SubmitEnabled)
	s.EventSink.SessionStateChanged(status)
}

package gate

import (
	"context"
	"sync"

	"interviewmic/internal/ports"
)

// Gate keeps at most one guarded action in flight per trigger control.
type Gate struct {
	control ports.TriggerControl

	mu       sync.Mutex
	inFlight bool
}

func New(control ports.TriggerControl) *Gate {
	return &Gate{control: control}
}

// Guard disables the control, runs action and re-enables the control on every
// exit path, including a panic inside action. While an action is in flight a
// second Guard call does nothing and reports ran=false.
func (g *Gate) Guard(ctx context.Context, action func(ctx context.Context) error) (ran bool, err error) {
	g.mu.Lock()
	if g.inFlight {
		g.mu.Unlock()
		return false, nil
	}
	g.inFlight = true
	g.control.SetEnabled(false)
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.inFlight = false
		g.control.SetEnabled(true)
		g.mu.Unlock()
	}()

	return true, action(ctx)
}

// InFlight reports whether a guarded action is running.
func (g *Gate) InFlight() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

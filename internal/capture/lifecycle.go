package capture

import (
	"sync"

	"github.com/google/uuid"
)

// Lifecycle is the Done/Err half shared by capture handles.
type Lifecycle struct {
	id   string
	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{id: uuid.NewString(), done: make(chan struct{})}
}

func (l *Lifecycle) ID() string {
	return l.id
}

func (l *Lifecycle) Done() <-chan struct{} {
	return l.done
}

func (l *Lifecycle) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Finish records err and closes Done. Only the first call has any effect.
func (l *Lifecycle) Finish(err error) {
	l.once.Do(func() {
		l.mu.Lock()
		l.err = err
		l.mu.Unlock()
		close(l.done)
	})
}

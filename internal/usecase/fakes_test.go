package usecase

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeRegistrar struct {
	mu       sync.Mutex
	result   domain.RegistrationResult
	block    bool
	calls    int
	profiles []domain.CandidateProfile
	log      *callLog
}

func (f *fakeRegistrar) Register(ctx context.Context, profile domain.CandidateProfile) domain.RegistrationResult {
	f.mu.Lock()
	f.calls++
	f.profiles = append(f.profiles, profile)
	block := f.block
	result := f.result
	f.mu.Unlock()
	f.log.add("register")

	if block {
		<-ctx.Done()
		return domain.RegistrationFailed(domain.ErrorCodeNetworkFailure, "registration cancelled")
	}
	return result
}

func (f *fakeRegistrar) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeHandle struct {
	id          string
	transcripts chan domain.TranscriptEvent
	samples     chan domain.VolumeSample
	done        chan struct{}
	once        sync.Once

	mu  sync.Mutex
	err error
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		id:          uuid.NewString(),
		transcripts: make(chan domain.TranscriptEvent, 16),
		samples:     make(chan domain.VolumeSample, 16),
		done:        make(chan struct{}),
	}
}

func (h *fakeHandle) ID() string                                 { return h.id }
func (h *fakeHandle) Done() <-chan struct{}                      { return h.done }
func (h *fakeHandle) Transcripts() <-chan domain.TranscriptEvent { return h.transcripts }
func (h *fakeHandle) Samples() <-chan domain.VolumeSample        { return h.samples }

func (h *fakeHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *fakeHandle) finish(err error) {
	h.once.Do(func() {
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		close(h.done)
	})
}

// fakeCapture backs both capture fakes. A start waits on after (if set),
// then either blocks until cancelled, fails with startErr, or succeeds. A
// stop waits on holdStop (if set).
type fakeCapture struct {
	source domain.CaptureSource
	log    *callLog

	mu               sync.Mutex
	startErr         error
	blockUntilCancel bool
	after            <-chan struct{}
	holdStop         <-chan struct{}
	started          chan struct{}
	startCtx         context.Context
	handles          []*fakeHandle
	startCalls       int
	stopCalls        int
}

func newFakeCapture(source domain.CaptureSource, log *callLog) *fakeCapture {
	return &fakeCapture{source: source, log: log, started: make(chan struct{}, 8)}
}

func (f *fakeCapture) start(ctx context.Context) (*fakeHandle, error) {
	f.mu.Lock()
	f.startCalls++
	f.startCtx = ctx
	startErr := f.startErr
	block := f.blockUntilCancel
	after := f.after
	f.mu.Unlock()
	f.log.add("start:" + string(f.source))

	if after != nil {
		select {
		case <-after:
		case <-ctx.Done():
			return nil, domain.NewCaptureError(f.source, domain.ErrorCodeCapabilityUnavailable, ctx.Err())
		}
	}
	if block {
		<-ctx.Done()
		return nil, domain.NewCaptureError(f.source, domain.ErrorCodeCapabilityUnavailable, ctx.Err())
	}
	if startErr != nil {
		return nil, startErr
	}

	h := newFakeHandle()
	f.mu.Lock()
	f.handles = append(f.handles, h)
	f.mu.Unlock()
	f.started <- struct{}{}
	return h, nil
}

func (f *fakeCapture) stop(h *fakeHandle) {
	f.mu.Lock()
	f.stopCalls++
	hold := f.holdStop
	f.mu.Unlock()
	f.log.add("stop:" + string(f.source))
	if hold != nil {
		<-hold
	}
	h.finish(nil)
}

func (f *fakeCapture) counts() (starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls, f.stopCalls
}

func (f *fakeCapture) lastStartCtx() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCtx
}

func (f *fakeCapture) lastHandle() *fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.handles) == 0 {
		return nil
	}
	return f.handles[len(f.handles)-1]
}

type fakeSpeech struct{ *fakeCapture }

func (f fakeSpeech) Start(ctx context.Context) (ports.SpeechHandle, error) {
	h, err := f.start(ctx)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (f fakeSpeech) Stop(handle ports.SpeechHandle) {
	f.stop(handle.(*fakeHandle))
}

type fakeVolume struct{ *fakeCapture }

func (f fakeVolume) Start(ctx context.Context) (ports.VolumeHandle, error) {
	h, err := f.start(ctx)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (f fakeVolume) Stop(handle ports.VolumeHandle) {
	f.stop(handle.(*fakeHandle))
}

type sinkError struct {
	code   domain.ErrorCode
	detail string
}

type recordingSink struct {
	mu          sync.Mutex
	statuses    []domain.Status
	transcripts []domain.TranscriptEvent
	volumes     []domain.VolumeSample
	errors      []sinkError
}

func (s *recordingSink) SessionStateChanged(status domain.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *recordingSink) Transcript(event domain.TranscriptEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts = append(s.transcripts, event)
}

func (s *recordingSink) VolumeLevel(sample domain.VolumeSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volumes = append(s.volumes, sample)
}

func (s *recordingSink) SessionError(code domain.ErrorCode, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, sinkError{code: code, detail: detail})
}

func (s *recordingSink) states() []domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SessionState, 0, len(s.statuses))
	for _, status := range s.statuses {
		out = append(out, status.State)
	}
	return out
}

func (s *recordingSink) snapshotStatuses() []domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Status(nil), s.statuses...)
}

func (s *recordingSink) snapshotErrors() []sinkError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkError(nil), s.errors...)
}

func (s *recordingSink) counts() (transcripts, volumes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcripts), len(s.volumes)
}

package relay

import (
	"sync"

	"github.com/gammazero/deque"
	"github.com/livekit/protocol/logger"
	"go.uber.org/atomic"

	"github.com/dmisol/lkportal/defs"
	"github.com/dmisol/lkportal/stats"
)

const (
	defaultLimit = 256
)

// Stream is the native event stream: SDK callbacks push, the relay pops.
// Push never blocks; beyond limit the oldest event is dropped.
type Stream struct {
	mu    sync.Mutex
	q     deque.Deque[defs.Event]
	limit int
	thr   int
	warn  bool

	ready   chan struct{}
	dropped atomic.Uint64

	logger logger.Logger
}

func NewStream(limit int, l logger.Logger) *Stream {
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Stream{
		limit:  limit,
		thr:    int(0.7 * float64(limit)),
		ready:  make(chan struct{}, 1),
		logger: l,
	}
}

func (s *Stream) Push(ev defs.Event) {
	s.mu.Lock()
	if s.q.Len() >= s.limit {
		s.q.PopFront()
		s.dropped.Inc()
		stats.PromEvents.WithLabelValues("dropped").Inc()
	}
	s.q.PushBack(ev)
	n := s.q.Len()
	warn := n >= s.thr && !s.warn
	if warn {
		s.warn = true
	} else if n < s.thr {
		s.warn = false
	}
	s.mu.Unlock()

	if warn {
		s.logger.Warnw("events piling up", nil, "pending", n, "dropped", s.dropped.Load())
	}

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *Stream) pop() (ev defs.Event, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.q.Len() == 0 {
		return
	}
	return s.q.PopFront(), true
}

// Ready fires after a Push; it may fire spuriously.
func (s *Stream) Ready() <-chan struct{} {
	return s.ready
}

func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Len()
}

func (s *Stream) Dropped() uint64 {
	return s.dropped.Load()
}

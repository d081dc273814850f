package relay

import (
	"github.com/frostbyte73/core"
	"github.com/livekit/protocol/logger"

	"github.com/dmisol/lkportal/defs"
	"github.com/dmisol/lkportal/stats"
)

// Relay moves events from a Stream to a channel with a single slot,
// so at most one event is ever buffered for the caller.
type Relay struct {
	in  *Stream
	out chan defs.Event

	stop core.Fuse
	done chan struct{}

	logger logger.Logger
}

func NewRelay(in *Stream, l logger.Logger) (r *Relay) {
	r = &Relay{
		in:     in,
		out:    make(chan defs.Event, 1),
		done:   make(chan struct{}),
		logger: l,
	}
	go r.run()
	return
}

func (r *Relay) run() {
	defer func() {
		close(r.out)
		close(r.done)
		r.logger.Debugw("relay stopped", "pending", r.in.Len())
	}()

	for {
		ev, ok := r.in.pop()
		if !ok {
			select {
			case <-r.stop.Watch():
				return
			case <-r.in.Ready():
				continue
			}
		}

		select {
		case <-r.stop.Watch():
			return
		case r.out <- ev:
			stats.PromEvents.WithLabelValues("relayed").Inc()
		}
	}
}

// Events is closed once the relay stops.
func (r *Relay) Events() <-chan defs.Event {
	return r.out
}

// Poll checks for one event without blocking.
func (r *Relay) Poll() (ev defs.Event, ok bool) {
	select {
	case ev, ok = <-r.out:
	default:
	}
	return
}

// Stop is idempotent and returns after the loop has exited.
func (r *Relay) Stop() {
	r.stop.Break()
	<-r.done
}

func (r *Relay) Done() <-chan struct{} {
	return r.done
}

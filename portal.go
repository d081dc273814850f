package lkportal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/livekit/protocol/logger"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/dmisol/lkportal/defs"
	"github.com/dmisol/lkportal/relay"
	"github.com/dmisol/lkportal/stats"
	"github.com/dmisol/lkportal/video"
)

type Params struct {
	Conf *defs.PortalConf

	// optional, default to livekit
	Dialer  Dialer
	Remover Remover

	// no encoder means PublishVideo fails with ErrNoEncoder
	Encoder video.EncoderFactory
	Source  video.SourceFactory

	Logger logger.Logger
}

// Portal owns one room connection. All mutations happen on its worker goroutine,
// driven by actions queued one at a time; readers see the published Status snapshot.
type Portal struct {
	conf    *defs.PortalConf
	dialer  Dialer
	remover Remover
	encoder video.EncoderFactory
	source  video.SourceFactory
	logger  logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	smu      sync.Mutex // serializes submitters against the worker's exit
	actions  chan defs.RoomAction
	results  chan defs.Result
	status   atomic.Pointer[defs.Status]
	stopping core.Fuse
	closed   core.Fuse
	done     chan struct{}

	// worker-owned, locked for readers
	mu      sync.Mutex
	session Session
	relay   *relay.Relay
	tracks  map[string]*video.Publisher
}

func NewPortal(ctx context.Context, p Params) (*Portal, error) {
	if p.Conf == nil {
		return nil, errors.Wrap(defs.ErrBadConfig, "no config")
	}
	l := p.Logger
	if l == nil {
		l = logger.GetLogger()
	}
	if p.Dialer == nil {
		p.Dialer = NewDialer(l)
	}
	if p.Remover == nil {
		p.Remover = lksdk.NewRoomServiceClient(p.Conf.HttpURL(), p.Conf.Key, p.Conf.Secret)
	}
	results := p.Conf.Results
	if results <= 0 {
		results = 16
	}

	pt := &Portal{
		conf:    p.Conf,
		dialer:  p.Dialer,
		remover: p.Remover,
		encoder: p.Encoder,
		source:  p.Source,
		logger:  l.WithName("portal"),
		actions: make(chan defs.RoomAction, 1),
		results: make(chan defs.Result, results),
		done:    make(chan struct{}),
		tracks:  make(map[string]*video.Publisher),
	}
	pt.ctx, pt.cancel = context.WithCancel(ctx)
	pt.status.Store(&defs.Status{State: defs.NotConnected, Since: time.Now()})
	stats.PromState.Set(float64(defs.NotConnected))

	go pt.run()
	return pt, nil
}

func (p *Portal) run() {
	defer close(p.done)
	defer p.teardown()

	for {
		select {
		case <-p.closed.Watch():
			return
		case <-p.ctx.Done():
			return
		case a := <-p.actions:
			last := p.process(a)
			if last {
				return
			}
		}
	}
}

func (p *Portal) process(a defs.RoomAction) (last bool) {
	p.logger.Debugw("processing", "action", a.String())

	var err error
	switch a.Kind {
	case defs.ConnectRoom:
		err = p.connect(a.RoomID, a.UserID)
	case defs.LeaveRoom:
		err = p.leave(a.RoomID, a.UserID)
		last = true
	case defs.PublishVideo:
		err = p.publish(a.TrackName)
	case defs.UnpublishVideo:
		err = p.unpublish(a.TrackName)
	case defs.ResetState:
		err = p.reset()
	default:
		err = errors.Wrapf(defs.ErrInvalidState, "unknown action %s", a.Kind)
	}

	p.report(a, err)
	return
}

// report never blocks the worker: with a full results queue the oldest result goes.
func (p *Portal) report(a defs.RoomAction, err error) {
	stats.ActionDone(a.Kind.String(), err)
	if err != nil {
		p.logger.Warnw("action failed", err, "action", a.String())
	} else {
		p.logger.Infow("action done", "action", a.String())
	}

	res := defs.Result{Action: a, Err: err, At: time.Now()}
	for {
		select {
		case p.results <- res:
			return
		default:
		}
		select {
		case old := <-p.results:
			p.logger.Debugw("result dropped", "action", old.Action.String())
		default:
		}
	}
}

// setState publishes a new snapshot; transitions the state machine doesn't allow are refused.
func (p *Portal) setState(next defs.ConnectionState, room, identity string, err error) bool {
	cur := p.status.Load()
	if !cur.State.CanMove(next) {
		p.logger.Errorw("state transition refused", nil, "from", cur.State, "to", next)
		return false
	}
	p.status.Store(&defs.Status{
		State:    next,
		Room:     room,
		Identity: identity,
		Err:      err,
		Since:    time.Now(),
	})
	stats.PromState.Set(float64(next))
	p.logger.Infow("state", "state", next, "room", room, "participant", identity)
	return true
}

func (p *Portal) teardown() {
	p.stopping.Break()

	// nothing queued from now on gets processed
	p.smu.Lock()
	for drained := false; !drained; {
		select {
		case a := <-p.actions:
			p.report(a, defs.ErrClosed)
		default:
			drained = true
		}
	}
	p.smu.Unlock()

	p.mu.Lock()
	s, r := p.session, p.relay
	p.session, p.relay = nil, nil
	p.mu.Unlock()

	if r != nil {
		r.Stop()
	}
	p.dropTracks(false)
	if s != nil {
		s.Disconnect()
	}
	if st := p.status.Load(); st.State == defs.Connected || st.State == defs.Failed {
		p.setState(defs.NotConnected, "", "", nil)
	}
	p.cancel()
	p.logger.Infow("portal closed")
}

func (p *Portal) submit(ctx context.Context, a defs.RoomAction, block bool) error {
	if !block {
		// somebody is already waiting for the slot
		if !p.smu.TryLock() {
			return defs.ErrBusy
		}
	} else {
		p.smu.Lock()
	}
	defer p.smu.Unlock()

	if p.stopping.IsBroken() {
		return defs.ErrClosed
	}
	if !block {
		select {
		case p.actions <- a:
			return nil
		default:
			return defs.ErrBusy
		}
	}
	select {
	case p.actions <- a:
		return nil
	case <-p.stopping.Watch():
		return defs.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do queues a, waiting for the slot until ctx ends.
func (p *Portal) Do(ctx context.Context, a defs.RoomAction) error {
	return p.submit(ctx, a, true)
}

func (p *Portal) CreateRoom(room, user string) error {
	return p.submit(p.ctx, defs.RoomAction{Kind: defs.ConnectRoom, RoomID: room, UserID: user}, false)
}

func (p *Portal) Leave(room, user string) error {
	return p.submit(p.ctx, defs.RoomAction{Kind: defs.LeaveRoom, RoomID: room, UserID: user}, false)
}

func (p *Portal) PublishVideoTrack(name string) error {
	return p.submit(p.ctx, defs.RoomAction{Kind: defs.PublishVideo, TrackName: name}, false)
}

func (p *Portal) UnpublishVideoTrack(name string) error {
	return p.submit(p.ctx, defs.RoomAction{Kind: defs.UnpublishVideo, TrackName: name}, false)
}

// Reset clears a Failed state.
func (p *Portal) Reset() error {
	return p.submit(p.ctx, defs.RoomAction{Kind: defs.ResetState}, false)
}

func (p *Portal) Status() defs.Status {
	return *p.status.Load()
}

func (p *Portal) IsMultiplayer() bool {
	return p.status.Load().State == defs.Connected
}

func (p *Portal) SessionName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return ""
	}
	return p.session.Name()
}

func (p *Portal) Tracks() (names []string) {
	p.mu.Lock()
	for name := range p.tracks {
		names = append(names, name)
	}
	p.mu.Unlock()
	sort.Strings(names)
	return
}

func (p *Portal) currentRelay() *relay.Relay {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.relay
}

// Poll takes at most one room event without blocking.
func (p *Portal) Poll() (ev defs.Event, ok bool) {
	if r := p.currentRelay(); r != nil {
		ev, ok = r.Poll()
	}
	return
}

func (p *Portal) PollResult() (res defs.Result, ok bool) {
	select {
	case res = <-p.results:
		ok = true
	default:
	}
	return
}

// Update carries exactly one of Event and Result.
type Update struct {
	Event  *defs.Event
	Result *defs.Result
}

// Next waits for the next room event or action result.
// Events of a session opened while waiting show up on the following call.
func (p *Portal) Next(ctx context.Context) (u Update, err error) {
	var events <-chan defs.Event
	if r := p.currentRelay(); r != nil {
		events = r.Events()
	}

	select {
	case ev, ok := <-events:
		if ok {
			u.Event = &ev
			return
		}
		// relay stopped under us
		select {
		case res := <-p.results:
			u.Result = &res
		case <-ctx.Done():
			err = ctx.Err()
		}
	case res := <-p.results:
		u.Result = &res
	case <-ctx.Done():
		err = ctx.Err()
	}
	return
}

// Done is closed when the worker has exited, after a leave or Close.
func (p *Portal) Done() <-chan struct{} {
	return p.done
}

// Close stops the worker without talking to the room service and waits for it.
// A dial in flight is abandoned.
func (p *Portal) Close() {
	p.closed.Break()
	p.cancel()
	<-p.done
}

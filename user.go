package lkportal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/livekit/protocol/livekit"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dmisol/lkportal/defs"
	"github.com/dmisol/lkportal/relay"
	"github.com/dmisol/lkportal/stats"
	"github.com/dmisol/lkportal/video"
)

// handlers below run on the worker goroutine only

func (p *Portal) connect(room, identity string) (err error) {
	if room == "" {
		room = p.conf.Room
	}
	if identity == "" {
		identity = p.conf.Identity
	}
	if identity == "" {
		identity = "portal-" + uuid.NewString()[:8]
	}

	if st := p.status.Load(); st.State != defs.NotConnected {
		return errors.Wrapf(defs.ErrInvalidState, "connect while %s", st.State)
	}
	p.setState(defs.Connecting, room, identity, nil)
	l := p.logger.WithValues("room", room, "participant", identity)

	defer func() {
		if err != nil {
			p.setState(defs.Failed, room, identity, err)
		}
	}()

	token, err := signToken(p.conf, room, identity)
	if err != nil {
		return
	}

	stream := relay.NewStream(p.conf.PendingEvents, l)
	info := DialInfo{URL: p.conf.Ws, Token: token, Room: room, Identity: identity}

	var s Session
	err = retryOnce(p.ctx, p.conf.RetryDelay, l, func() (err error) {
		ctx, cancel := p.apiContext(p.conf.ConnectTimeout)
		defer cancel()
		s, err = p.dialer.Dial(ctx, info, stream)
		return
	})
	if err != nil {
		return errors.Wrapf(defs.ErrConnect, "%s: %v", room, err)
	}

	p.mu.Lock()
	p.session = s
	p.relay = relay.NewRelay(stream, l)
	p.mu.Unlock()

	p.setState(defs.Connected, room, identity, nil)
	return nil
}

func (p *Portal) leave(room, identity string) (err error) {
	st := p.status.Load()
	if room == "" {
		room = st.Room
	}
	if identity == "" {
		identity = st.Identity
	}

	p.mu.Lock()
	s, r := p.session, p.relay
	p.session, p.relay = nil, nil
	p.mu.Unlock()

	if r != nil {
		r.Stop()
	}
	err = p.dropTracks(s != nil)

	if s != nil {
		ctx, cancel := p.apiContext(p.conf.ApiTimeout)
		_, rerr := p.remover.RemoveParticipant(ctx, &livekit.RoomParticipantIdentity{
			Room:     room,
			Identity: identity,
		})
		cancel()
		if rerr != nil {
			err = multierr.Append(err, errors.Wrapf(defs.ErrManagement, "remove %s from %s: %v", identity, room, rerr))
		}
		s.Disconnect()
	}

	if st.State == defs.Connected || st.State == defs.Failed {
		p.setState(defs.NotConnected, "", "", nil)
	}
	return
}

// dropTracks empties the registry, stopping every pump and optionally unpublishing in parallel.
func (p *Portal) dropTracks(unpublish bool) error {
	p.mu.Lock()
	pubs := p.tracks
	p.tracks = make(map[string]*video.Publisher)
	p.mu.Unlock()
	stats.PromTracks.Set(0)

	var g errgroup.Group
	for _, pub := range pubs {
		g.Go(func() error {
			defer pub.Close()
			if unpublish {
				return pub.Unpublish()
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *Portal) publish(name string) error {
	p.mu.Lock()
	_, dup := p.tracks[name]
	s := p.session
	p.mu.Unlock()

	if dup {
		p.logger.Debugw("already published", "track", name)
		return nil
	}
	if s == nil {
		return errors.Wrap(defs.ErrNotConnected, name)
	}

	pub := video.NewPublisher(s, p.conf.Video, p.source, p.encoder, p.logger)
	if err := pub.Publish(name); err != nil {
		pub.Close()
		return err
	}

	p.mu.Lock()
	p.tracks[name] = pub
	n := len(p.tracks)
	p.mu.Unlock()
	stats.PromTracks.Set(float64(n))
	return nil
}

func (p *Portal) unpublish(name string) error {
	p.mu.Lock()
	pub, ok := p.tracks[name]
	delete(p.tracks, name)
	n := len(p.tracks)
	p.mu.Unlock()

	if !ok {
		return nil
	}
	stats.PromTracks.Set(float64(n))
	defer pub.Close()
	return pub.Unpublish()
}

func (p *Portal) reset() error {
	switch st := p.status.Load(); st.State {
	case defs.NotConnected:
		return nil
	case defs.Failed:
		p.setState(defs.NotConnected, "", "", nil)
		return nil
	default:
		return errors.Wrapf(defs.ErrInvalidState, "reset while %s", st.State)
	}
}

func (p *Portal) apiContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(p.ctx)
	}
	return context.WithTimeout(p.ctx, timeout)
}

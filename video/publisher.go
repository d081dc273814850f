package video

import (
	"sync"

	"github.com/livekit/protocol/logger"
	"github.com/pkg/errors"

	"github.com/dmisol/lkportal/defs"
)

// Publisher owns one outgoing video track: its source, its frame pump and its publication.
type Publisher struct {
	room    Room
	conf    defs.VideoConf
	source  SourceFactory
	encoder EncoderFactory
	logger  logger.Logger

	mu     sync.Mutex
	handle *trackHandle
}

type trackHandle struct {
	name string
	sid  string
	pump *pump
}

func NewPublisher(room Room, conf defs.VideoConf, source SourceFactory, encoder EncoderFactory, l logger.Logger) *Publisher {
	if source == nil {
		source = PatternFactory(conf.W, conf.H)
	}
	if conf.FPS <= 0 {
		conf.FPS = 15
	}
	return &Publisher{
		room:    room,
		conf:    conf,
		source:  source,
		encoder: encoder,
		logger:  l,
	}
}

// Publish replaces whatever this instance published before.
func (p *Publisher) Publish(name string) (err error) {
	if p.encoder == nil {
		return defs.ErrNoEncoder
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err = p.unpublish(); err != nil {
		p.logger.Warnw("unpublishing previous track", err)
	}

	src, err := p.source()
	if err != nil {
		return errors.Wrapf(defs.ErrPublish, "%s: source: %v", name, err)
	}
	track, err := p.room.CreateVideoTrack(p.encoder.Capability())
	if err != nil {
		_ = src.Close()
		return errors.Wrapf(defs.ErrPublish, "%s: track: %v", name, err)
	}

	pm := newPump(track, src, p.encoder, p.conf, p.logger.WithValues("track", name))
	pm.start()

	sid, err := p.room.PublishVideoTrack(track, name)
	if err != nil {
		pm.stop()
		return errors.Wrapf(defs.ErrPublish, "%s: %v", name, err)
	}

	p.handle = &trackHandle{name: name, sid: sid, pump: pm}
	p.logger.Infow("track published", "track", name, "sid", sid)
	return nil
}

// Unpublish is a no-op when nothing is published.
func (p *Publisher) Unpublish() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.unpublish()
}

func (p *Publisher) unpublish() error {
	h := p.handle
	if h == nil {
		return nil
	}
	p.handle = nil

	h.pump.stop()
	if err := p.room.UnpublishTrack(h.sid); err != nil {
		return errors.Wrapf(defs.ErrUnpublish, "%s: %v", h.name, err)
	}
	p.logger.Infow("track unpublished", "track", h.name, "sid", h.sid)
	return nil
}

// Close stops the frame pump without talking to the room.
// It is safe to call on every teardown path, also after Unpublish.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h := p.handle; h != nil {
		p.handle = nil
		h.pump.stop()
	}
}

func (p *Publisher) Published() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle != nil
}

func (p *Publisher) SID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == nil {
		return ""
	}
	return p.handle.sid
}

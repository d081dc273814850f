package video

import (
	"time"

	"github.com/frostbyte73/core"
	"github.com/livekit/protocol/logger"
	"github.com/pion/webrtc/v4/pkg/media"
	"go.uber.org/atomic"

	"github.com/dmisol/lkportal/defs"
	"github.com/dmisol/lkportal/stats"
)

// pump encodes one frame per tick and hands it to the track until stopped.
type pump struct {
	track    Track
	source   Source
	factory  EncoderFactory
	fps      int
	interval time.Duration

	conv converter
	enc  Encoder

	stopped core.Fuse
	done    chan struct{}

	frames  atomic.Uint64
	failing bool

	logger logger.Logger
}

func newPump(track Track, source Source, factory EncoderFactory, conf defs.VideoConf, l logger.Logger) *pump {
	return &pump{
		track:    track,
		source:   source,
		factory:  factory,
		fps:      conf.FPS,
		interval: conf.FrameInterval(),
		done:     make(chan struct{}),
		logger:   l,
	}
}

func (p *pump) start() {
	go p.run()
}

func (p *pump) run() {
	defer func() {
		if p.enc != nil {
			_ = p.enc.Close()
		}
		_ = p.source.Close()
		close(p.done)
		p.logger.Debugw("frame pump stopped", "frames", p.frames.Load())
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopped.Watch():
			return
		case <-ticker.C:
		}

		if err := p.tick(); err != nil {
			stats.PromFrames.WithLabelValues("error").Inc()
			if !p.failing {
				p.failing = true
				p.logger.Warnw("frame dropped", err)
			}
			continue
		}
		if p.failing {
			p.failing = false
			p.logger.Infow("frames flowing again")
		}
	}
}

func (p *pump) tick() (err error) {
	img, err := p.source.Frame()
	if err != nil {
		return
	}

	fb, resized, err := p.conv.convert(img)
	if err != nil {
		return
	}

	if resized || p.enc == nil {
		if p.enc != nil {
			_ = p.enc.Close()
			p.enc = nil
		}
		w, h := fb.Rect.Dx(), fb.Rect.Dy()
		p.logger.Debugw("encoder (re)created", "width", w, "height", h)
		if p.enc, err = p.factory.NewEncoder(w, h, p.fps); err != nil {
			return
		}
	}

	data, err := p.enc.Encode(fb)
	if err != nil || len(data) == 0 {
		return
	}
	if err = p.track.WriteSample(media.Sample{Data: data, Duration: p.interval}, nil); err != nil {
		return
	}
	p.frames.Inc()
	stats.PromFrames.WithLabelValues("ok").Inc()
	return
}

// stop signals the loop; it exits at the latest one tick later.
func (p *pump) stop() {
	p.stopped.Break()
}

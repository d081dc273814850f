package dummyclient

import (
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v4/pkg/media/samplebuilder"
)

const (
	maxLate = 64
)

// frameCounter reassembles H.264 frames from rtp and counts them.
type frameCounter struct {
	sb *samplebuilder.SampleBuilder

	packets int
	frames  int
	bytes   int
}

func newFrameCounter(clockRate uint32) *frameCounter {
	return &frameCounter{
		sb: samplebuilder.New(maxLate, &codecs.H264Packet{}, clockRate),
	}
}

func (c *frameCounter) push(pkt *rtp.Packet) {
	c.packets++
	c.sb.Push(pkt)
	for s := c.sb.Pop(); s != nil; s = c.sb.Pop() {
		c.frames++
		c.bytes += len(s.Data)
	}
}

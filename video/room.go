package video

import (
	"image"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// Room is the part of a live session the publisher needs.
type Room interface {
	CreateVideoTrack(codec webrtc.RTPCodecCapability) (Track, error)
	PublishVideoTrack(t Track, name string) (sid string, err error)
	UnpublishTrack(sid string) error
}

// Track takes encoded samples, *lksdk.LocalSampleTrack in production.
type Track interface {
	WriteSample(s media.Sample, opts *lksdk.SampleWriteOptions) error
}

type Encoder interface {
	// Encode takes the RGBA framebuffer and converts it to I420 itself.
	// It may return no data while the encoder is buffering.
	Encode(img *image.RGBA) ([]byte, error)
	Close() error
}

type EncoderFactory interface {
	Capability() webrtc.RTPCodecCapability
	NewEncoder(w, h, fps int) (Encoder, error)
}

type Source interface {
	Frame() (image.Image, error)
	Close() error
}

type SourceFactory func() (Source, error)

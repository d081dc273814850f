package video

import (
	"fmt"
	"image"
	"sync"

	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"go.uber.org/atomic"
)

type fakeTrack struct {
	samples atomic.Int32
}

func (t *fakeTrack) WriteSample(s media.Sample, _ *lksdk.SampleWriteOptions) error {
	t.samples.Inc()
	return nil
}

type fakeRoom struct {
	mu          sync.Mutex
	tracks      []*fakeTrack
	published   map[string]string
	unpublished []string
	publishErr  error
}

func newFakeRoom() *fakeRoom {
	return &fakeRoom{published: make(map[string]string)}
}

func (r *fakeRoom) CreateVideoTrack(codec webrtc.RTPCodecCapability) (Track, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &fakeTrack{}
	r.tracks = append(r.tracks, t)
	return t, nil
}

func (r *fakeRoom) PublishVideoTrack(t Track, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.publishErr != nil {
		return "", r.publishErr
	}
	sid := fmt.Sprintf("TR_%s_%d", name, len(r.tracks))
	r.published[sid] = name
	return sid, nil
}

func (r *fakeRoom) UnpublishTrack(sid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.published, sid)
	r.unpublished = append(r.unpublished, sid)
	return nil
}

func (r *fakeRoom) lastTrack() *fakeTrack {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tracks[len(r.tracks)-1]
}

func (r *fakeRoom) unpublishedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.unpublished)
}

type fakeEncoder struct {
	f    *fakeFactory
	w, h int
}

func (e *fakeEncoder) Encode(img *image.RGBA) ([]byte, error) {
	return []byte{0, 0, 0, 1, 0x65, byte(img.Rect.Dx())}, nil
}

func (e *fakeEncoder) Close() error {
	e.f.closed.Inc()
	return nil
}

type fakeFactory struct {
	mu     sync.Mutex
	sizes  []image.Point
	closed atomic.Int32
}

func (f *fakeFactory) Capability() webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, ClockRate: 90000}
}

func (f *fakeFactory) NewEncoder(w, h, fps int) (Encoder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes = append(f.sizes, image.Pt(w, h))
	return &fakeEncoder{f: f, w: w, h: h}, nil
}

func (f *fakeFactory) created() []image.Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]image.Point(nil), f.sizes...)
}

// growing returns a larger picture every call
type growing struct {
	n int
}

func (g *growing) Frame() (image.Image, error) {
	g.n++
	return image.NewRGBA(image.Rect(0, 0, 2*g.n, 2)), nil
}

func (g *growing) Close() error { return nil }

package lkportal

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"go.uber.org/atomic"

	"github.com/dmisol/lkportal/relay"
	"github.com/dmisol/lkportal/video"
)

type fakeTrack struct {
	samples atomic.Int32
}

func (t *fakeTrack) WriteSample(media.Sample, *lksdk.SampleWriteOptions) error {
	t.samples.Inc()
	return nil
}

type fakeSession struct {
	name string

	mu           sync.Mutex
	tracks       []*fakeTrack
	published    map[string]string
	unpublished  []string
	disconnected int
	unpublishErr error
}

func (s *fakeSession) Name() string { return s.name }

func (s *fakeSession) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected++
}

func (s *fakeSession) CreateVideoTrack(webrtc.RTPCodecCapability) (video.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTrack{}
	s.tracks = append(s.tracks, t)
	return t, nil
}

func (s *fakeSession) PublishVideoTrack(_ video.Track, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sid := fmt.Sprintf("TR_%s", name)
	s.published[sid] = name
	return sid, nil
}

func (s *fakeSession) UnpublishTrack(sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unpublishErr != nil {
		return s.unpublishErr
	}
	delete(s.published, sid)
	s.unpublished = append(s.unpublished, sid)
	return nil
}

func (s *fakeSession) failUnpublish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unpublishErr = err
}

// samples reports how many samples every created track has taken so far.
func (s *fakeSession) samples() []int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := make([]int32, len(s.tracks))
	for i, t := range s.tracks {
		n[i] = t.samples.Load()
	}
	return n
}

func (s *fakeSession) counts() (published, unpublished, disconnected int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published), len(s.unpublished), s.disconnected
}

type fakeDialer struct {
	mu       sync.Mutex
	errs     []error // returned by the next dials, in order
	infos    []DialInfo
	sessions []*fakeSession
	stream   *relay.Stream
	onDial   func()
}

func (d *fakeDialer) Dial(ctx context.Context, info DialInfo, events *relay.Stream) (Session, error) {
	d.mu.Lock()
	d.infos = append(d.infos, info)
	hook := d.onDial
	var err error
	if len(d.errs) > 0 {
		err, d.errs = d.errs[0], d.errs[1:]
	}
	d.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}

	s := &fakeSession{name: info.Room, published: make(map[string]string)}
	d.mu.Lock()
	d.sessions = append(d.sessions, s)
	d.stream = events
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.infos)
}

func (d *fakeDialer) last() (DialInfo, *fakeSession, *relay.Stream) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.infos[len(d.infos)-1], d.sessions[len(d.sessions)-1], d.stream
}

type fakeRemover struct {
	mu    sync.Mutex
	calls []*livekit.RoomParticipantIdentity
	err   error
}

func (r *fakeRemover) RemoveParticipant(_ context.Context, req *livekit.RoomParticipantIdentity) (*livekit.RemoveParticipantResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req)
	if r.err != nil {
		return nil, r.err
	}
	return &livekit.RemoveParticipantResponse{}, nil
}

func (r *fakeRemover) removed() []*livekit.RoomParticipantIdentity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*livekit.RoomParticipantIdentity(nil), r.calls...)
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(*image.RGBA) ([]byte, error) { return []byte{0, 0, 0, 1, 0x65}, nil }
func (fakeEncoder) Close() error                       { return nil }

type fakeEncoders struct{}

func (fakeEncoders) Capability() webrtc.RTPCodecCapability {
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, ClockRate: 90000}
}

func (fakeEncoders) NewEncoder(w, h, fps int) (video.Encoder, error) {
	return fakeEncoder{}, nil
}

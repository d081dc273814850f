package lkportal

import (
	"context"
	"time"

	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/logger"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"

	"github.com/dmisol/lkportal/defs"
	"github.com/dmisol/lkportal/relay"
	"github.com/dmisol/lkportal/video"
)

// Session is an established room connection.
type Session interface {
	video.Room
	Name() string
	Disconnect()
}

type DialInfo struct {
	URL      string
	Token    string
	Room     string
	Identity string
}

// Dialer opens sessions; room events go to the given stream for as long as the session lives.
type Dialer interface {
	Dial(ctx context.Context, info DialInfo, events *relay.Stream) (Session, error)
}

type lkDialer struct {
	logger logger.Logger
}

func NewDialer(l logger.Logger) Dialer {
	return &lkDialer{logger: l}
}

func (d *lkDialer) Dial(ctx context.Context, info DialInfo, events *relay.Stream) (Session, error) {
	s := &lkSession{
		room:   info.Room,
		events: events,
		logger: d.logger.WithValues("room", info.Room, "participant", info.Identity),
	}

	type joined struct {
		room *lksdk.Room
		err  error
	}
	ch := make(chan joined, 1)
	go func() {
		r, err := lksdk.ConnectToRoomWithToken(info.URL, info.Token, s.callback(), lksdk.WithAutoSubscribe(true))
		ch <- joined{r, err}
	}()

	select {
	case j := <-ch:
		if j.err != nil {
			if authFailure(j.err) {
				return nil, defs.Permanent(j.err)
			}
			return nil, j.err
		}
		s.lk = j.room
		return s, nil

	case <-ctx.Done():
		// the join can't be aborted, drop it once it lands
		go func() {
			if j := <-ch; j.room != nil {
				j.room.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

type lkSession struct {
	lk     *lksdk.Room
	room   string
	events *relay.Stream
	logger logger.Logger
}

func (s *lkSession) Name() string {
	return s.lk.Name()
}

func (s *lkSession) Disconnect() {
	s.lk.Disconnect()
}

func (s *lkSession) CreateVideoTrack(codec webrtc.RTPCodecCapability) (video.Track, error) {
	t, err := lksdk.NewLocalSampleTrack(codec)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *lkSession) PublishVideoTrack(t video.Track, name string) (sid string, err error) {
	track, ok := t.(*lksdk.LocalSampleTrack)
	if !ok {
		return "", errors.Errorf("unexpected track type %T", t)
	}
	pub, err := s.lk.LocalParticipant.PublishTrack(track, &lksdk.TrackPublicationOptions{
		Name:   name,
		Source: livekit.TrackSource_SCREEN_SHARE,
	})
	if err != nil {
		return
	}
	sid = pub.SID()
	return
}

func (s *lkSession) UnpublishTrack(sid string) error {
	return s.lk.LocalParticipant.UnpublishTrack(sid)
}

func (s *lkSession) push(ev defs.Event) {
	ev.Room = s.room
	ev.At = time.Now()
	s.events.Push(ev)
}

func (s *lkSession) callback() *lksdk.RoomCallback {
	return &lksdk.RoomCallback{
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			s.push(defs.Event{Kind: defs.ParticipantConnected, Participant: rp.Identity()})
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			s.push(defs.Event{Kind: defs.ParticipantDisconnected, Participant: rp.Identity()})
		},
		OnRoomMetadataChanged: func(metadata string) {
			s.push(defs.Event{Kind: defs.RoomMetadataChanged, Metadata: metadata})
		},
		OnReconnecting: func() {
			s.logger.Infow("reconnecting")
			s.push(defs.Event{Kind: defs.Reconnecting})
		},
		OnReconnected: func() {
			s.logger.Infow("reconnected")
			s.push(defs.Event{Kind: defs.Reconnected})
		},
		OnDisconnected: func() {
			s.logger.Infow("disconnected")
			s.push(defs.Event{Kind: defs.Disconnected})
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackPublished: func(pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				s.push(defs.Event{Kind: defs.TrackPublished, Participant: rp.Identity(), TrackSID: pub.SID(), TrackName: pub.Name()})
			},
			OnTrackUnpublished: func(pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				s.push(defs.Event{Kind: defs.TrackUnpublished, Participant: rp.Identity(), TrackSID: pub.SID(), TrackName: pub.Name()})
			},
			OnTrackSubscribed: func(_ *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				s.push(defs.Event{Kind: defs.TrackSubscribed, Participant: rp.Identity(), TrackSID: pub.SID(), TrackName: pub.Name()})
			},
			OnTrackUnsubscribed: func(_ *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				s.push(defs.Event{Kind: defs.TrackUnsubscribed, Participant: rp.Identity(), TrackSID: pub.SID(), TrackName: pub.Name()})
			},
			OnDataPacket: func(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
				p, ok := data.(*lksdk.UserDataPacket)
				if !ok {
					return
				}
				s.push(defs.Event{Kind: defs.DataReceived, Participant: params.SenderIdentity, Topic: p.Topic, Data: p.Payload})
			},
		},
	}
}

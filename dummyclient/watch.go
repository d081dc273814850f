package dummyclient

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/livekit/protocol/logger"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/pkg/errors"

	"github.com/dmisol/lkportal/defs"
)

const (
	reportEvery = 5 * time.Second
)

// Watch joins room as a plain subscriber and logs what the portal publishes, until ctx ends.
func Watch(ctx context.Context, c *defs.PortalConf, room, identity string) error {
	l := logger.GetLogger().WithValues("room", room, "participant", identity)

	r, err := lksdk.ConnectToRoom(c.Ws, lksdk.ConnectInfo{
		APIKey:              c.Key,
		APISecret:           c.Secret,
		RoomName:            room,
		ParticipantIdentity: identity,
		ParticipantName:     identity,
	}, &lksdk.RoomCallback{
		OnParticipantConnected: func(rp *lksdk.RemoteParticipant) {
			l.Infow("participant joined", "remote", rp.Identity())
		},
		OnParticipantDisconnected: func(rp *lksdk.RemoteParticipant) {
			l.Infow("participant left", "remote", rp.Identity())
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				l.Infow("subscribed", "remote", rp.Identity(), "track", pub.Name(), "source", pub.Source(), "mime", track.Codec().MimeType)
				if track.Kind() == webrtc.RTPCodecTypeVideo && strings.EqualFold(track.Codec().MimeType, webrtc.MimeTypeH264) {
					go read(ctx, track, l.WithValues("track", pub.Name()))
				}
			},
			OnTrackUnsubscribed: func(_ *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				l.Infow("unsubscribed", "remote", rp.Identity(), "track", pub.Name())
			},
		},
	}, lksdk.WithAutoSubscribe(true))
	if err != nil {
		return errors.Wrapf(defs.ErrConnect, "watch %s: %v", room, err)
	}
	defer r.Disconnect()

	<-ctx.Done()
	return nil
}

func read(ctx context.Context, track *webrtc.TrackRemote, l logger.Logger) {
	c := newFrameCounter(track.Codec().ClockRate)
	last := time.Now()

	for ctx.Err() == nil {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				l.Warnw("reading rtp", err)
			}
			break
		}
		c.push(pkt)

		if time.Since(last) > reportEvery {
			last = time.Now()
			l.Infow("receiving", "packets", c.packets, "frames", c.frames, "bytes", c.bytes)
		}
	}
	l.Infow("track done", "packets", c.packets, "frames", c.frames)
}

package lkportal

import (
	"context"
	"strings"
	"time"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/logger"
	"github.com/pkg/errors"

	"github.com/dmisol/lkportal/defs"
)

// Remover is the part of the room service the portal needs on leave.
// *lksdk.RoomServiceClient satisfies it.
type Remover interface {
	RemoveParticipant(ctx context.Context, req *livekit.RoomParticipantIdentity) (*livekit.RemoveParticipantResponse, error)
}

func signToken(conf *defs.PortalConf, room, identity string) (token string, err error) {
	yes := true

	at := auth.NewAccessToken(conf.Key, conf.Secret)
	grant := &auth.VideoGrant{
		RoomJoin:             true,
		RoomAdmin:            conf.Admin,
		Room:                 room,
		CanPublish:           &yes,
		CanPublishData:       &yes,
		CanSubscribe:         &yes,
		CanUpdateOwnMetadata: &yes,
	}
	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetName(identity).
		SetValidFor(conf.TokenTTL)

	if token, err = at.ToJWT(); err != nil {
		err = defs.Permanent(errors.Wrapf(defs.ErrCredentials, "%s/%s: %v", room, identity, err))
	}
	return
}

// retryOnce runs f, and once more after delay unless the first error is permanent.
func retryOnce(ctx context.Context, delay time.Duration, l logger.Logger, f func() error) error {
	err := f()
	if err == nil || defs.IsPermanent(err) || errors.Is(err, context.Canceled) {
		return err
	}
	l.Warnw("retrying", err, "delay", delay)

	select {
	case <-ctx.Done():
		return err
	case <-time.After(delay):
	}
	return f()
}

// authFailure spots rejections from the signal endpoint, which a retry can't fix.
func authFailure(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unauthorized") ||
		strings.Contains(s, "permission denied") ||
		strings.Contains(s, "401")
}

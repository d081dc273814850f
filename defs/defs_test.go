package defs

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCanMove(t *testing.T) {
	allowed := map[ConnectionState][]ConnectionState{
		NotConnected: {Connecting},
		Connecting:   {Connected, Failed},
		Connected:    {NotConnected},
		Failed:       {NotConnected},
	}
	all := []ConnectionState{NotConnected, Connecting, Connected, Failed}

	for from, to := range allowed {
		for _, next := range all {
			require.Equal(t, contains(to, next), from.CanMove(next), "%s -> %s", from, next)
		}
	}
}

func contains(states []ConnectionState, s ConnectionState) bool {
	for _, v := range states {
		if v == s {
			return true
		}
	}
	return false
}

func TestStatusJSON(t *testing.T) {
	st := Status{State: Failed, Room: "room-A", Err: ErrConnect}
	require.Equal(t, ErrConnect.Error(), st.Reason())

	b, err := json.Marshal(st)
	require.NoError(t, err)
	require.Contains(t, string(b), `"state":"failed"`)
	require.NotContains(t, string(b), "Err")
}

func TestActionString(t *testing.T) {
	require.Equal(t, "connect(room-A/alice)", RoomAction{Kind: ConnectRoom, RoomID: "room-A", UserID: "alice"}.String())
	require.Equal(t, "publish(cam1)", RoomAction{Kind: PublishVideo, TrackName: "cam1"}.String())
	require.Equal(t, "reset", RoomAction{Kind: ResetState}.String())
}

func TestPermanent(t *testing.T) {
	require.Nil(t, Permanent(nil))

	err := errors.Wrap(Permanent(ErrCredentials), "signing")
	require.True(t, IsPermanent(err))
	require.ErrorIs(t, err, ErrCredentials)
	require.False(t, IsPermanent(ErrConnect))
}

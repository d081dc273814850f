package defs

import (
	"fmt"
	"time"
)

type EventKind int

const (
	ParticipantConnected EventKind = iota
	ParticipantDisconnected
	TrackPublished
	TrackUnpublished
	TrackSubscribed
	TrackUnsubscribed
	DataReceived
	RoomMetadataChanged
	Reconnecting
	Reconnected
	Disconnected
)

var eventNames = map[EventKind]string{
	ParticipantConnected:    "participant_connected",
	ParticipantDisconnected: "participant_disconnected",
	TrackPublished:          "track_published",
	TrackUnpublished:        "track_unpublished",
	TrackSubscribed:         "track_subscribed",
	TrackUnsubscribed:       "track_unsubscribed",
	DataReceived:            "data_received",
	RoomMetadataChanged:     "room_metadata_changed",
	Reconnecting:            "reconnecting",
	Reconnected:             "reconnected",
	Disconnected:            "disconnected",
}

func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return fmt.Sprintf("event(%d)", int(k))
}

func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is a room event as seen by the caller.
type Event struct {
	Kind        EventKind `json:"kind"`
	Room        string    `json:"room,omitempty"`
	Participant string    `json:"participant,omitempty"`
	TrackSID    string    `json:"track_sid,omitempty"`
	TrackName   string    `json:"track_name,omitempty"`
	Topic       string    `json:"topic,omitempty"`
	Data        []byte    `json:"data,omitempty"`
	Metadata    string    `json:"metadata,omitempty"`
	At          time.Time `json:"at"`
}

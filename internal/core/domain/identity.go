package domain

import (
	"crypto/rand"
	"fmt"
)

type ClientID string
type RoomID string

// TransportPeerID is assigned by the media transport layer on
// registration, distinct from the application-level client id.
type TransportPeerID string

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func randomSuffix(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	for i := range b {
		b[i] = idAlphabet[int(b[i])%len(idAlphabet)]
	}
	return string(b)
}

// NewClientID generates a role-prefixed client identity, unique per
// process lifetime. Immutable after creation.
func NewClientID(rolePrefix string) ClientID {
	return ClientID(fmt.Sprintf("%s-%s", rolePrefix, randomSuffix(6)))
}

// NewRoomID generates a random room identifier for hosts that were not
// handed one by the page.
func NewRoomID() RoomID {
	return RoomID(randomSuffix(10))
}

// ViewerURL builds the shareable viewer URL for a room.
func ViewerURL(origin string, room RoomID) string {
	return fmt.Sprintf("%s/live/%s", origin, room)
}

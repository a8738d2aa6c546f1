package presence

import (
	"errors"
	"fmt"
)

// Errors reported by the room directory and the identity allocator.
var (
	ErrRoomFull      = errors.New("room is full")
	ErrNotInRoom     = errors.New("participant is not in a room")
	ErrUnknownTarget = errors.New("target is not a participant of the room")
	ErrShareBusy     = errors.New("another participant is sharing the screen")

	ErrUnknownSharePolicy = errors.New("unknown screen share policy")
)

// Participant is a session's membership in a room.
type Participant struct {
	ID          string `json:"id"`
	RoomID      string `json:"roomId"`
	DisplayName string `json:"name"`
	Emotion     string `json:"-"`
	Animal      string `json:"-"`
}

// Peer is the public view of a participant.
type Peer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Peer returns the public view of p.
func (p *Participant) Peer() Peer {
	return Peer{ID: p.ID, Name: p.DisplayName}
}

// Identity is an allocated display name and the tags it was built from.
type Identity struct {
	DisplayName string
	Emotion     string
	Animal      string
}

// Vocabulary holds the two word lists display names are drawn from.
type Vocabulary struct {
	Emotions []string
	Animals  []string
}

// Capacity is the number of participants a room can hold under v.
func (v Vocabulary) Capacity() int {
	return min(len(v.Emotions), len(v.Animals))
}

// DefaultVocabulary returns the stock 8x8 vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Emotions: []string{"Happy", "Sleepy", "Grumpy", "Cheerful", "Brave", "Curious", "Calm", "Jolly"},
		Animals:  []string{"Panda", "Otter", "Fox", "Koala", "Penguin", "Owl", "Tiger", "Dolphin"},
	}
}

// SharePolicy decides what happens when a participant starts sharing while
// someone else already shares.
type SharePolicy string

const (
	// SharePreempt hands the slot to the new sharer and notifies the old one.
	SharePreempt SharePolicy = "preempt"
	// ShareReject refuses the request while another share is active.
	ShareReject SharePolicy = "reject"
)

// ParseSharePolicy converts a config value into a SharePolicy.
func ParseSharePolicy(s string) (SharePolicy, error) {
	switch SharePolicy(s) {
	case SharePreempt, "":
		return SharePreempt, nil
	case ShareReject:
		return ShareReject, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSharePolicy, s)
}

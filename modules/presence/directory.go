package presence

import (
	domain "github.com/example/pinch-server/domain/presence"
)

// RoomState is the in-memory state of one room.
type RoomState struct {
	ID           string
	participants map[string]*domain.Participant
	order        []string // participant IDs in join order
	usedEmotions map[string]struct{}
	usedAnimals  map[string]struct{}
	share        ShareState
}

func newRoomState(id string) *RoomState {
	return &RoomState{
		ID:           id,
		participants: make(map[string]*domain.Participant),
		usedEmotions: make(map[string]struct{}),
		usedAnimals:  make(map[string]struct{}),
	}
}

// Len returns the number of participants in the room.
func (r *RoomState) Len() int {
	return len(r.order)
}

// Participant returns the member with the given ID.
func (r *RoomState) Participant(id string) (*domain.Participant, bool) {
	p, ok := r.participants[id]
	return p, ok
}

// Participants returns the members in join order.
func (r *RoomState) Participants() []*domain.Participant {
	result := make([]*domain.Participant, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.participants[id])
	}
	return result
}

// Peers returns the public view of every member except excludeID, in join order.
func (r *RoomState) Peers(excludeID string) []domain.Peer {
	peers := make([]domain.Peer, 0, len(r.order))
	for _, id := range r.order {
		if id == excludeID {
			continue
		}
		peers = append(peers, r.participants[id].Peer())
	}
	return peers
}

// Sharer returns the participant currently sharing the screen, if any.
func (r *RoomState) Sharer() (*domain.Participant, bool) {
	owner, ok := r.share.Owner()
	if !ok {
		return nil, false
	}
	return r.Participant(owner)
}

func (r *RoomState) remove(id string) {
	delete(r.participants, id)
	for i, pid := range r.order {
		if pid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// JoinResult describes a successful join.
type JoinResult struct {
	Participant *domain.Participant
	Others      []domain.Peer
	Sharer      *domain.Peer
	Left        *LeaveResult
}

// LeaveResult describes a removed membership.
type LeaveResult struct {
	Participant  *domain.Participant
	StoppedShare bool
	Remaining    []domain.Peer
	Empty        bool
}

// Stats is a point-in-time summary of the directory.
type Stats struct {
	Rooms        int `json:"rooms"`
	Participants int `json:"participants"`
}

// Directory maps room IDs to room state. It is not safe for concurrent use;
// the controller serializes access.
type Directory struct {
	rooms     map[string]*RoomState
	members   map[string]string // participant ID -> room ID
	allocator *Allocator
}

// NewDirectory creates an empty Directory.
func NewDirectory(allocator *Allocator) *Directory {
	return &Directory{
		rooms:     make(map[string]*RoomState),
		members:   make(map[string]string),
		allocator: allocator,
	}
}

// Join adds participantID to roomID, creating the room on first use. A
// previous membership is torn down first and reported in JoinResult.Left; it
// is kept if the target room has no capacity.
func (d *Directory) Join(roomID, participantID string) (*JoinResult, error) {
	prevRoomID, inRoom := d.members[participantID]

	if !inRoom || prevRoomID != roomID {
		if !d.allocator.HasCapacity(d.rooms[roomID]) {
			return nil, domain.ErrRoomFull
		}
	}

	var left *LeaveResult
	if inRoom {
		left, _ = d.Leave(prevRoomID, participantID)
	}

	room, ok := d.rooms[roomID]
	if !ok {
		room = newRoomState(roomID)
		d.rooms[roomID] = room
	}

	identity, err := d.allocator.Allocate(room)
	if err != nil {
		if room.Len() == 0 {
			delete(d.rooms, roomID)
		}
		return &JoinResult{Left: left}, err
	}

	p := &domain.Participant{
		ID:          participantID,
		RoomID:      roomID,
		DisplayName: identity.DisplayName,
		Emotion:     identity.Emotion,
		Animal:      identity.Animal,
	}
	others := room.Peers("")
	room.participants[participantID] = p
	room.order = append(room.order, participantID)
	d.members[participantID] = roomID

	result := &JoinResult{
		Participant: p,
		Others:      others,
		Left:        left,
	}
	if sharer, ok := room.Sharer(); ok {
		peer := sharer.Peer()
		result.Sharer = &peer
	}
	return result, nil
}

// Leave removes participantID from roomID, releases its identity tags, clears
// the screen share it held and evicts the room once it is empty.
func (d *Directory) Leave(roomID, participantID string) (*LeaveResult, bool) {
	room, ok := d.rooms[roomID]
	if !ok {
		return nil, false
	}
	p, ok := room.participants[participantID]
	if !ok {
		return nil, false
	}

	stopped := room.share.Stop(participantID)
	d.allocator.Release(room, p)
	room.remove(participantID)
	delete(d.members, participantID)

	result := &LeaveResult{
		Participant:  p,
		StoppedShare: stopped,
		Remaining:    room.Peers(""),
		Empty:        room.Len() == 0,
	}
	if result.Empty {
		delete(d.rooms, roomID)
	}
	return result, true
}

// Room returns the state of roomID.
func (d *Directory) Room(roomID string) (*RoomState, bool) {
	room, ok := d.rooms[roomID]
	return room, ok
}

// RoomOf returns the room participantID is a member of.
func (d *Directory) RoomOf(participantID string) (*RoomState, bool) {
	roomID, ok := d.members[participantID]
	if !ok {
		return nil, false
	}
	return d.Room(roomID)
}

// Member returns participantID if it is a member of roomID.
func (d *Directory) Member(roomID, participantID string) (*domain.Participant, bool) {
	room, ok := d.rooms[roomID]
	if !ok {
		return nil, false
	}
	return room.Participant(participantID)
}

// Stats returns the number of live rooms and participants.
func (d *Directory) Stats() Stats {
	return Stats{Rooms: len(d.rooms), Participants: len(d.members)}
}

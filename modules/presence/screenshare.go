package presence

import (
	domain "github.com/example/pinch-server/domain/presence"
)

// ShareState is the screen share slot of a room: Idle when owner is empty,
// Sharing(owner) otherwise.
type ShareState struct {
	owner string
}

// Owner returns the current sharer.
func (s *ShareState) Owner() (string, bool) {
	return s.owner, s.owner != ""
}

// ShareTransition is the outcome of a start request.
type ShareTransition struct {
	Started   bool
	Preempted string
}

// Start moves the slot to Sharing(participantID). A request by the current
// owner changes nothing. When another participant shares, policy decides
// between preemption and ErrShareBusy.
func (s *ShareState) Start(participantID string, policy domain.SharePolicy) (ShareTransition, error) {
	switch s.owner {
	case "":
		s.owner = participantID
		return ShareTransition{Started: true}, nil
	case participantID:
		return ShareTransition{}, nil
	}

	if policy == domain.ShareReject {
		return ShareTransition{}, domain.ErrShareBusy
	}
	prev := s.owner
	s.owner = participantID
	return ShareTransition{Started: true, Preempted: prev}, nil
}

// Stop returns the slot to Idle if participantID owns it.
func (s *ShareState) Stop(participantID string) bool {
	if s.owner == "" || s.owner != participantID {
		return false
	}
	s.owner = ""
	return true
}

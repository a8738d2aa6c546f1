package presence

import (
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/example/pinch-server/domain/presence"
)

// ErrMalformedPayload is returned for payloads missing a required field.
var ErrMalformedPayload = errors.New("malformed payload")

type relayField int

const (
	fieldSDP relayField = iota
	fieldCandidate
)

var relayKinds = map[string]relayField{
	EventOffer:              fieldSDP,
	EventAnswer:             fieldSDP,
	EventScreenOffer:        fieldSDP,
	EventScreenAnswer:       fieldSDP,
	EventICECandidate:       fieldCandidate,
	EventScreenICECandidate: fieldCandidate,
}

// IsRelayKind reports whether kind is one of the six negotiation events.
func IsRelayKind(kind string) bool {
	_, ok := relayKinds[kind]
	return ok
}

type relayRequest struct {
	Target    *string         `json:"target"`
	SDP       json.RawMessage `json:"sdp"`
	Candidate json.RawMessage `json:"candidate"`
}

// SDPRelay is delivered to the target of an offer or answer.
type SDPRelay struct {
	SDP  json.RawMessage `json:"sdp"`
	From string          `json:"from"`
}

// CandidateRelay is delivered to the target of an ICE candidate.
type CandidateRelay struct {
	Candidate json.RawMessage `json:"candidate"`
	From      string          `json:"from"`
}

// RelayDelivery is a validated relay message ready for its target.
type RelayDelivery struct {
	Kind    string
	Target  string
	Payload any
}

// Router validates negotiation payloads and resolves their target inside the
// sender's room. Like Directory it relies on the controller for locking.
type Router struct {
	directory *Directory
}

// NewRouter creates a Router over directory.
func NewRouter(directory *Directory) *Router {
	return &Router{directory: directory}
}

// Route checks payload and returns the delivery for its target. The target
// must be a member of the room senderID is in.
func (r *Router) Route(kind, senderID string, payload json.RawMessage) (*RelayDelivery, error) {
	field, ok := relayKinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported relay kind %q", ErrMalformedPayload, kind)
	}

	var req relayRequest
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: %s requires a payload", ErrMalformedPayload, kind)
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if req.Target == nil || *req.Target == "" {
		return nil, fmt.Errorf("%w: %s requires a target", ErrMalformedPayload, kind)
	}

	delivery := &RelayDelivery{Kind: kind, Target: *req.Target}
	switch field {
	case fieldSDP:
		if isEmptyJSON(req.SDP) {
			return nil, fmt.Errorf("%w: %s requires sdp", ErrMalformedPayload, kind)
		}
		delivery.Payload = SDPRelay{SDP: req.SDP, From: senderID}
	case fieldCandidate:
		if isEmptyJSON(req.Candidate) {
			return nil, fmt.Errorf("%w: %s requires candidate", ErrMalformedPayload, kind)
		}
		delivery.Payload = CandidateRelay{Candidate: req.Candidate, From: senderID}
	}

	room, ok := r.directory.RoomOf(senderID)
	if !ok {
		return nil, domain.ErrNotInRoom
	}
	if _, ok := room.Participant(delivery.Target); !ok {
		return delivery, domain.ErrUnknownTarget
	}
	return delivery, nil
}

func isEmptyJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

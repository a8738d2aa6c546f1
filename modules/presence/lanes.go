package presence

import "sync"

// lanes hands out one mutex per room so chat appends and history reads of a
// room run one at a time. Idle lanes are dropped.
type lanes struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	mu   sync.Mutex
	refs int
}

func newLanes() *lanes {
	return &lanes{lanes: make(map[string]*lane)}
}

// acquire blocks until the lane of roomID is free and returns its release func.
func (l *lanes) acquire(roomID string) func() {
	l.mu.Lock()
	ln, ok := l.lanes[roomID]
	if !ok {
		ln = &lane{}
		l.lanes[roomID] = ln
	}
	ln.refs++
	l.mu.Unlock()

	ln.mu.Lock()
	return func() {
		ln.mu.Unlock()
		l.mu.Lock()
		ln.refs--
		if ln.refs == 0 {
			delete(l.lanes, roomID)
		}
		l.mu.Unlock()
	}
}

func (l *lanes) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lanes)
}

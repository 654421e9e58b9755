package presence

import "sync"

// fakeTransport mirrors the websocket hub's semantics in memory and records
// every event each connection would have received.
type fakeTransport struct {
	mu       sync.Mutex
	conns    map[string]bool
	groups   map[string]map[string]bool
	received map[string][]Event
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		conns:    map[string]bool{},
		groups:   map[string]map[string]bool{},
		received: map[string][]Event{},
	}
}

func (f *fakeTransport) open(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conns[id] = true
}

func (f *fakeTransport) close(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conns, id)
	for _, members := range f.groups {
		delete(members, id)
	}
}

func (f *fakeTransport) Send(connID string, ev Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.conns[connID] {
		return false
	}
	f.received[connID] = append(f.received[connID], ev)
	return true
}

func (f *fakeTransport) Broadcast(ev Event, except string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range f.conns {
		if id != except {
			f.received[id] = append(f.received[id], ev)
		}
	}
}

func (f *fakeTransport) SendGroup(groupID string, ev Event, except string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id := range f.groups[groupID] {
		if id != except {
			f.received[id] = append(f.received[id], ev)
		}
	}
}

func (f *fakeTransport) AddToGroup(connID, groupID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.conns[connID] {
		return
	}
	if f.groups[groupID] == nil {
		f.groups[groupID] = map[string]bool{}
	}
	f.groups[groupID][connID] = true
}

func (f *fakeTransport) RemoveFromGroup(connID, groupID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.groups[groupID], connID)
	if len(f.groups[groupID]) == 0 {
		delete(f.groups, groupID)
	}
}

// events returns what id received under the given name.
func (f *fakeTransport) events(id, name string) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Event
	for _, ev := range f.received[id] {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func (f *fakeTransport) all(id string) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.received[id]...)
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = map[string][]Event{}
}

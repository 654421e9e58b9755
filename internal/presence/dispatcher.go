package presence

import "go.uber.org/zap"

// Transport is the connection layer the core delivers through. Every method
// must return without waiting on the remote peer; frames for connections or
// groups that no longer exist are dropped.
type Transport interface {
	// Send delivers ev to one connection and reports whether it was queued.
	Send(connID string, ev Event) bool
	// Broadcast delivers ev to every connection except the one named by except.
	Broadcast(ev Event, except string)
	// SendGroup delivers ev to every connection in groupID except the one
	// named by except.
	SendGroup(groupID string, ev Event, except string)
	AddToGroup(connID, groupID string)
	RemoveFromGroup(connID, groupID string)
}

type selectorKind int

const (
	selectAll selectorKind = iota
	selectAllExcept
	selectOne
	selectGroup
	selectGroupExcept
)

// Selector names the recipients of one fan-out.
type Selector struct {
	kind     selectorKind
	clientID string
	groupID  string
}

func All() Selector { return Selector{kind: selectAll} }
func AllExcept(clientID string) Selector { return Selector{kind: selectAllExcept, clientID: clientID} }
func One(clientID string) Selector { return Selector{kind: selectOne, clientID: clientID} }
func Group(groupID string) Selector { return Selector{kind: selectGroup, groupID: groupID} }

func GroupExcept(groupID, clientID string) Selector {
	return Selector{kind: selectGroupExcept, groupID: groupID, clientID: clientID}
}

// Dispatcher is stateless; it maps selectors onto transport calls.
type Dispatcher struct {
	transport Transport
	log       *zap.Logger
}

func NewDispatcher(transport Transport, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{transport: transport, log: log}
}

func (d *Dispatcher) Dispatch(sel Selector, ev Event) {
	switch sel.kind {
	case selectAll:
		d.transport.Broadcast(ev, "")
	case selectAllExcept:
		d.transport.Broadcast(ev, sel.clientID)
	case selectOne:
		if !d.transport.Send(sel.clientID, ev) {
			d.log.Debug("dropped event for absent client",
				zap.String("event", ev.Name),
				zap.String("client_id", sel.clientID))
		}
	case selectGroup:
		d.transport.SendGroup(sel.groupID, ev, "")
	case selectGroupExcept:
		d.transport.SendGroup(sel.groupID, ev, sel.clientID)
	}
}

package presence

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Router is the surface connections invoke. Each operation takes the id of
// the calling connection first. Absent targets are answered with a failed
// event to the caller; operations from unknown callers are dropped.
type Router struct {
	clients *Registry
	groups  *GroupStore
	fanout  *Dispatcher
	tr      Transport
	now     func() time.Time
	log     *zap.Logger
}

type Option func(*routerOptions)

type routerOptions struct {
	now             func() time.Time
	log             *zap.Logger
	checkInvariants bool
}

func WithClock(now func() time.Time) Option {
	return func(o *routerOptions) { o.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *routerOptions) { o.log = log }
}

// WithInvariantChecks makes the group store panic on a broken invariant.
func WithInvariantChecks(enabled bool) Option {
	return func(o *routerOptions) { o.checkInvariants = enabled }
}

func NewRouter(tr Transport, opts ...Option) *Router {
	o := routerOptions{now: utcNow, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.Named("presence")
	return &Router{
		clients: NewRegistry(o.now),
		groups:  NewGroupStore(o.now, o.checkInvariants),
		fanout:  NewDispatcher(tr, log),
		tr:      tr,
		now:     o.now,
		log:     log,
	}
}

func (r *Router) Clients() *Registry  { return r.clients }
func (r *Router) Groups() *GroupStore { return r.groups }

// ---------------------- CONNECTION ----------------------

func (r *Router) Connect(id string) {
	if _, ok := r.clients.Connect(id); !ok {
		r.log.Warn("duplicate connect ignored", zap.String("client_id", id))
		return
	}
	r.fanout.Dispatch(One(id), NewEvent(EventRequestRegistration, nil))
	r.fanout.Dispatch(AllExcept(id), NewEvent(EventClientConnected, ClientRef{ClientID: id}))
	r.fanout.Dispatch(One(id), NewEvent(EventConnectedClients, r.clients.All()))
	r.log.Info("client connected", zap.String("client_id", id))
}

// Disconnect removes the client and cascades its departure through every
// group it belonged to. Repeated calls are harmless.
func (r *Router) Disconnect(id string) {
	_, wasConnected := r.clients.Remove(id)
	if wasConnected {
		r.fanout.Dispatch(AllExcept(id), NewEvent(EventClientDisconnected, ClientRef{ClientID: id}))
	}
	for _, groupID := range r.groups.GroupsOf(id) {
		r.groups.Leave(groupID, id, func(ch GroupChannel, removed bool) {
			r.tr.RemoveFromGroup(id, groupID)
			r.fanout.Dispatch(Group(groupID), NewEvent(EventGroupMemberLeft, MemberLeftPayload{GroupID: groupID, ClientID: id}))
			if removed {
				r.fanout.Dispatch(AllExcept(id), NewEvent(EventGroupRemoved, GroupRef{GroupID: groupID}))
				r.log.Info("group removed", zap.String("group_id", groupID), zap.String("reason", "disconnect"))
			}
		})
	}
	if wasConnected {
		r.log.Info("client disconnected", zap.String("client_id", id))
	}
}

func (r *Router) Register(id, name string, metadata map[string]string) {
	s, ok := r.clients.Register(id, name, metadata)
	if !ok {
		r.log.Debug("register from unknown client", zap.String("client_id", id))
		return
	}
	r.groups.RefreshMember(id, s)
	r.fanout.Dispatch(AllExcept(id), NewEvent(EventClientUpdated, ClientPayload{ClientID: id, Client: s}))
	r.fanout.Dispatch(One(id), NewEvent(EventSuccessRegistered, ClientPayload{ClientID: id, Client: s}))
	r.log.Info("client registered", zap.String("client_id", id), zap.String("name", name))
}

func (r *Router) UpdateMetadata(id string, metadata map[string]string) {
	s, ok := r.clients.UpdateMetadata(id, metadata)
	if !ok {
		r.log.Debug("metadata update from unknown client", zap.String("client_id", id))
		return
	}
	r.groups.RefreshMember(id, s)
	r.fanout.Dispatch(AllExcept(id), NewEvent(EventClientUpdated, ClientPayload{ClientID: id, Client: s}))
}

func (r *Router) RequestConnectedClients(id string) {
	r.fanout.Dispatch(One(id), NewEvent(EventConnectedClients, r.clients.All()))
}

func (r *Router) RequestClientInfo(id, targetID string) {
	s, ok := r.clients.Get(targetID)
	if !ok {
		r.fanout.Dispatch(One(id), NewFailure(EventClientUpdated, CodeClientNotFound, clientNotFound(targetID)))
		return
	}
	r.fanout.Dispatch(One(id), NewEvent(EventClientUpdated, ClientPayload{ClientID: targetID, Client: s}))
}

// ---------------------- MESSAGES ----------------------

func (r *Router) Broadcast(id, message string) {
	if !r.connected(id) {
		return
	}
	r.fanout.Dispatch(All(), NewEvent(EventReceiveMessage, r.message(id, message)))
}

func (r *Router) SendToOthers(id, message string) {
	if !r.connected(id) {
		return
	}
	r.fanout.Dispatch(AllExcept(id), NewEvent(EventReceiveMessage, r.message(id, message)))
}

func (r *Router) SendToClient(id, targetID, message string) {
	if _, ok := r.clients.Get(targetID); !ok {
		r.fanout.Dispatch(One(id), NewFailure(EventReceiveMessage, CodeClientNotFound, clientNotFound(targetID)))
		return
	}
	r.fanout.Dispatch(One(targetID), NewEvent(EventReceiveMessage, r.message(id, message)))
}

func (r *Router) SendToGroup(id, groupID, message string) {
	r.fanout.Dispatch(Group(groupID), NewEvent(EventReceiveGroupMessage, r.groupMessage(id, groupID, message)))
}

func (r *Router) SendToOthersInGroup(id, groupID, message string) {
	r.fanout.Dispatch(GroupExcept(groupID, id), NewEvent(EventReceiveGroupMessage, r.groupMessage(id, groupID, message)))
}

// ---------------------- GROUPS ----------------------

// Join adds the caller to groupID, creating the group on first join. The
// caller is added to the transport group before the fan-out, so it receives
// its own GroupMemberJoined.
func (r *Router) Join(id, groupID string, metadata map[string]string) {
	s, ok := r.clients.Get(id)
	if !ok {
		r.log.Debug("join from unknown client", zap.String("client_id", id), zap.String("group_id", groupID))
		return
	}
	r.groups.JoinOrCreate(groupID, id, s, metadata, func(ch GroupChannel, created bool) {
		r.tr.AddToGroup(id, groupID)
		if created {
			r.fanout.Dispatch(AllExcept(id), NewEvent(EventGroupCreated, ch))
			r.log.Info("group created", zap.String("group_id", groupID), zap.String("client_id", id))
		} else {
			r.fanout.Dispatch(GroupExcept(groupID, id), NewEvent(EventGroupInfo, ch))
		}
		r.fanout.Dispatch(Group(groupID), NewEvent(EventGroupMemberJoined, MemberJoinedPayload{GroupID: groupID, ClientID: id, Client: s}))
	})

	// A disconnect that raced this join may already have swept the groups.
	if !r.connected(id) {
		r.leave(id, groupID)
		return
	}
	r.log.Info("client joined group", zap.String("client_id", id), zap.String("group_id", groupID))
}

// Leave removes the caller from groupID. The caller leaves the transport
// group first and so does not receive its own GroupMemberLeft.
func (r *Router) Leave(id, groupID string) {
	if !r.connected(id) {
		return
	}
	if r.leave(id, groupID) {
		r.log.Info("client left group", zap.String("client_id", id), zap.String("group_id", groupID))
	}
}

func (r *Router) leave(id, groupID string) bool {
	_, _, ok := r.groups.Leave(groupID, id, func(ch GroupChannel, removed bool) {
		r.tr.RemoveFromGroup(id, groupID)
		r.fanout.Dispatch(Group(groupID), NewEvent(EventGroupMemberLeft, MemberLeftPayload{GroupID: groupID, ClientID: id}))
		if removed {
			r.fanout.Dispatch(AllExcept(id), NewEvent(EventGroupRemoved, GroupRef{GroupID: groupID}))
			r.log.Info("group removed", zap.String("group_id", groupID), zap.String("reason", "last member left"))
			return
		}
		r.fanout.Dispatch(GroupExcept(groupID, id), NewEvent(EventGroupInfo, ch))
	})
	if !ok {
		// Keep the transport in step even if the store never saw the member.
		r.tr.RemoveFromGroup(id, groupID)
	}
	return ok
}

func (r *Router) UpdateGroupMetadata(id, groupID string, metadata map[string]string) {
	_, ok := r.groups.UpdateMetadata(groupID, metadata, func(ch GroupChannel, _ bool) {
		r.fanout.Dispatch(Group(groupID), NewEvent(EventGroupMetadataUpdated, ch))
	})
	if !ok {
		r.fanout.Dispatch(One(id), NewFailure(EventGroupMetadataUpdated, CodeGroupNotFound, groupNotFound(groupID)))
	}
}

func (r *Router) GetGroupInfo(id, groupID string) {
	ch, ok := r.groups.Get(groupID)
	if !ok {
		r.fanout.Dispatch(One(id), NewFailure(EventGroupInfo, CodeGroupNotFound, groupNotFound(groupID)))
		return
	}
	r.fanout.Dispatch(One(id), NewEvent(EventGroupInfo, ch))
}

func (r *Router) GetGroupList(id string) {
	r.fanout.Dispatch(One(id), NewEvent(EventGroupList, r.groups.All()))
}

func (r *Router) GetGroupMember(id, groupID string) {
	members, ok := r.groups.MembersOf(groupID)
	if !ok {
		r.fanout.Dispatch(One(id), NewFailure(EventGroupMemberList, CodeGroupNotFound, groupNotFound(groupID)))
		return
	}
	r.fanout.Dispatch(One(id), NewEvent(EventGroupMemberList, members))
}

// Fail answers the caller with a failure that has no operation of its own,
// such as an undecodable frame.
func (r *Router) Fail(id, code string, err error) {
	r.fanout.Dispatch(One(id), NewFailure(EventInvocationFailed, code, err))
}

func (r *Router) connected(id string) bool {
	_, ok := r.clients.Get(id)
	return ok
}

func (r *Router) message(senderID, text string) MessagePayload {
	return MessagePayload{SenderID: senderID, Message: text, Timestamp: r.now()}
}

func (r *Router) groupMessage(senderID, groupID, text string) GroupMessagePayload {
	return GroupMessagePayload{GroupID: groupID, SenderID: senderID, Message: text, Timestamp: r.now()}
}

func clientNotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrClientNotFound, id)
}

func groupNotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrGroupNotFound, id)
}

package presence

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"
)

// ErrInvariant marks a broken group-store invariant. It is only ever raised
// as a panic, and only when invariant checks are enabled.
var ErrInvariant = errors.New("presence: group invariant violated")

const groupShards = 32

// GroupHook runs inside the group's critical section, after the mutation and
// before any other operation on the same group can observe it. Hooks must not
// block: enqueueing notifications is fine, waiting on a peer is not.
type GroupHook func(ch GroupChannel, changed bool)

type groupShard struct {
	mu     sync.Mutex
	groups map[string]*channel
}

// GroupStore owns the active groups. A group exists exactly while it has at
// least one member; creation and removal happen inside the same critical
// section as the membership change that causes them. Groups are spread over
// independently locked shards so unrelated rooms never contend.
type GroupStore struct {
	shards          [groupShards]groupShard
	now             func() time.Time
	checkInvariants bool
}

func NewGroupStore(now func() time.Time, checkInvariants bool) *GroupStore {
	if now == nil {
		now = utcNow
	}
	s := &GroupStore{now: now, checkInvariants: checkInvariants}
	for i := range s.shards {
		s.shards[i].groups = map[string]*channel{}
	}
	return s
}

func (s *GroupStore) shard(groupID string) *groupShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(groupID))
	return &s.shards[h.Sum32()%groupShards]
}

// JoinOrCreate adds clientID to groupID, creating the group when absent.
// created is true for exactly one caller per group lifetime. Joining a group
// twice only refreshes the member snapshot.
func (s *GroupStore) JoinOrCreate(groupID, clientID string, session ClientSession, metadata map[string]string, hook GroupHook) (ch GroupChannel, created bool) {
	sh := s.shard(groupID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.groups[groupID]
	if !ok {
		c = &channel{
			id:        groupID,
			createdAt: s.now(),
			metadata:  cloneMetadata(metadata),
			members:   map[string]ClientSession{},
		}
		sh.groups[groupID] = c
		created = true
	}
	c.members[clientID] = session.clone()
	s.verify(sh, groupID)

	ch = c.snapshot()
	if hook != nil {
		hook(ch, created)
	}
	return ch, created
}

// Leave removes clientID from groupID. ok is false when the group or the
// membership did not exist. When the last member leaves the group is deleted
// and removed is true; ch is then the final snapshot with no members.
func (s *GroupStore) Leave(groupID, clientID string, hook GroupHook) (ch GroupChannel, removed, ok bool) {
	sh := s.shard(groupID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, exists := sh.groups[groupID]
	if !exists {
		return GroupChannel{}, false, false
	}
	if _, member := c.members[clientID]; !member {
		return GroupChannel{}, false, false
	}
	delete(c.members, clientID)
	if len(c.members) == 0 {
		delete(sh.groups, groupID)
		removed = true
	}
	s.verify(sh, groupID)

	ch = c.snapshot()
	if hook != nil {
		hook(ch, removed)
	}
	return ch, removed, true
}

// UpdateMetadata replaces a group's metadata. ok is false if the group is gone.
func (s *GroupStore) UpdateMetadata(groupID string, metadata map[string]string, hook GroupHook) (GroupChannel, bool) {
	sh := s.shard(groupID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.groups[groupID]
	if !ok {
		return GroupChannel{}, false
	}
	c.metadata = cloneMetadata(metadata)
	ch := c.snapshot()
	if hook != nil {
		hook(ch, true)
	}
	return ch, true
}

// RefreshMember replaces the cached session of clientID in every group it
// belongs to.
func (s *GroupStore) RefreshMember(clientID string, session ClientSession) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for _, c := range sh.groups {
			if _, ok := c.members[clientID]; ok {
				c.members[clientID] = session.clone()
			}
		}
		sh.mu.Unlock()
	}
}

func (s *GroupStore) Get(groupID string) (GroupChannel, bool) {
	sh := s.shard(groupID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	c, ok := sh.groups[groupID]
	if !ok {
		return GroupChannel{}, false
	}
	return c.snapshot(), true
}

// All returns every active group ordered by id.
func (s *GroupStore) All() []GroupChannel {
	var out []GroupChannel
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for _, c := range sh.groups {
			out = append(out, c.snapshot())
		}
		sh.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if out == nil {
		out = []GroupChannel{}
	}
	return out
}

// MembersOf returns the cached member sessions of a group.
func (s *GroupStore) MembersOf(groupID string) ([]ClientSession, bool) {
	sh := s.shard(groupID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	c, ok := sh.groups[groupID]
	if !ok {
		return nil, false
	}
	return c.memberSessions(), true
}

// GroupsOf lists the ids of the groups clientID currently belongs to.
func (s *GroupStore) GroupsOf(clientID string) []string {
	var ids []string
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id, c := range sh.groups {
			if _, ok := c.members[clientID]; ok {
				ids = append(ids, id)
			}
		}
		sh.mu.Unlock()
	}
	sort.Strings(ids)
	return ids
}

func (s *GroupStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.groups)
		sh.mu.Unlock()
	}
	return n
}

// verify must be called with sh.mu held.
func (s *GroupStore) verify(sh *groupShard, groupID string) {
	if !s.checkInvariants {
		return
	}
	c, ok := sh.groups[groupID]
	if !ok {
		return
	}
	if len(c.members) == 0 {
		panic(fmt.Errorf("%w: group %q stored with no members", ErrInvariant, groupID))
	}
	if c.id != groupID {
		panic(fmt.Errorf("%w: group %q stored under key %q", ErrInvariant, c.id, groupID))
	}
}

package presence

import (
	"sort"
	"time"
)

// ClientSession is the registry's record of one connected identity.
// Values handed out by the registry and the group store are snapshots;
// mutating one never changes shared state.
type ClientSession struct {
	ID          string            `json:"clientId"`
	Name        string            `json:"name"`
	ConnectedAt time.Time         `json:"connectedAt"`
	Metadata    map[string]string `json:"metadata"`
}

func (s ClientSession) clone() ClientSession {
	s.Metadata = cloneMetadata(s.Metadata)
	return s
}

// GroupChannel is a snapshot of one room. Members holds the ids of the
// members at the time the snapshot was taken, sorted.
type GroupChannel struct {
	ID        string            `json:"groupId"`
	CreatedAt time.Time         `json:"createdAt"`
	Metadata  map[string]string `json:"metadata"`
	Members   []string          `json:"members"`
}

// channel is the live, store-owned state behind a GroupChannel.
type channel struct {
	id        string
	createdAt time.Time
	metadata  map[string]string
	members   map[string]ClientSession
}

func (c *channel) snapshot() GroupChannel {
	ids := make([]string, 0, len(c.members))
	for id := range c.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return GroupChannel{
		ID:        c.id,
		CreatedAt: c.createdAt,
		Metadata:  cloneMetadata(c.metadata),
		Members:   ids,
	}
}

func (c *channel) memberSessions() []ClientSession {
	out := make([]ClientSession, 0, len(c.members))
	for _, s := range c.members {
		out = append(out, s.clone())
	}
	sortSessions(out)
	return out
}

// cloneMetadata never returns nil so payloads always carry an object.
func cloneMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortSessions(s []ClientSession) {
	sort.Slice(s, func(i, j int) bool { return s[i].ID < s[j].ID })
}

package presence

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func session(id string) ClientSession {
	return ClientSession{ID: id, Name: "n-" + id, Metadata: map[string]string{}}
}

func TestGroupStoreJoinCreatesOnce(t *testing.T) {
	s := NewGroupStore(fixedClock(), true)

	ch, created := s.JoinOrCreate("room1", "a", session("a"), map[string]string{"topic": "go"}, nil)
	if !created {
		t.Fatal("first join should create the group")
	}
	if ch.ID != "room1" || ch.Metadata["topic"] != "go" || ch.CreatedAt.IsZero() {
		t.Errorf("unexpected channel %+v", ch)
	}

	ch, created = s.JoinOrCreate("room1", "b", session("b"), map[string]string{"topic": "ignored"}, nil)
	if created {
		t.Error("second join must not recreate the group")
	}
	if ch.Metadata["topic"] != "go" {
		t.Error("metadata is only taken from the creating join")
	}
	if len(ch.Members) != 2 {
		t.Errorf("expected 2 members, got %v", ch.Members)
	}
}

func TestGroupStoreRejoinIsIdempotent(t *testing.T) {
	s := NewGroupStore(fixedClock(), true)
	first, _ := s.JoinOrCreate("room1", "a", session("a"), nil, nil)

	renamed := session("a")
	renamed.Name = "renamed"
	ch, created := s.JoinOrCreate("room1", "a", renamed, nil, nil)
	if created {
		t.Error("rejoin must not report creation")
	}
	if len(ch.Members) != 1 {
		t.Errorf("rejoin duplicated member: %v", ch.Members)
	}
	if !ch.CreatedAt.Equal(first.CreatedAt) {
		t.Error("rejoin must not reset createdAt")
	}
	members, _ := s.MembersOf("room1")
	if members[0].Name != "renamed" {
		t.Error("rejoin should refresh the member snapshot")
	}
}

func TestGroupStoreLeave(t *testing.T) {
	s := NewGroupStore(fixedClock(), true)
	s.JoinOrCreate("room1", "a", session("a"), nil, nil)
	s.JoinOrCreate("room1", "b", session("b"), nil, nil)

	if _, _, ok := s.Leave("room1", "ghost", nil); ok {
		t.Error("leaving as a non-member should be a no-op")
	}
	if _, _, ok := s.Leave("nowhere", "a", nil); ok {
		t.Error("leaving an absent group should be a no-op")
	}

	ch, removed, ok := s.Leave("room1", "a", nil)
	if !ok || removed {
		t.Fatalf("leave = %v removed=%v", ok, removed)
	}
	if len(ch.Members) != 1 || ch.Members[0] != "b" {
		t.Errorf("unexpected members %v", ch.Members)
	}

	ch, removed, ok = s.Leave("room1", "b", nil)
	if !ok || !removed {
		t.Fatalf("last leave should remove the group, ok=%v removed=%v", ok, removed)
	}
	if ch.ID != "room1" || len(ch.Members) != 0 {
		t.Errorf("final snapshot should be empty, got %+v", ch)
	}
	if _, exists := s.Get("room1"); exists {
		t.Error("group must be gone once empty")
	}
	if s.Len() != 0 {
		t.Errorf("expected no groups, got %d", s.Len())
	}

	_, created := s.JoinOrCreate("room1", "c", session("c"), nil, nil)
	if !created {
		t.Error("joining a removed group should recreate it")
	}
}

func TestGroupStoreHooksRunWithResult(t *testing.T) {
	s := NewGroupStore(fixedClock(), true)

	var gotCreated bool
	s.JoinOrCreate("room1", "a", session("a"), nil, func(ch GroupChannel, created bool) {
		gotCreated = created
		if len(ch.Members) != 1 {
			t.Errorf("hook saw %v", ch.Members)
		}
	})
	if !gotCreated {
		t.Error("join hook should see created=true")
	}

	called := false
	s.Leave("room1", "ghost", func(GroupChannel, bool) { called = true })
	if called {
		t.Error("leave hook must not run for a no-op leave")
	}

	var gotRemoved bool
	s.Leave("room1", "a", func(_ GroupChannel, removed bool) { gotRemoved = removed })
	if !gotRemoved {
		t.Error("leave hook should see removed=true")
	}
}

func TestGroupStoreUpdateMetadata(t *testing.T) {
	s := NewGroupStore(fixedClock(), true)
	if _, ok := s.UpdateMetadata("room1", map[string]string{"x": "1"}, nil); ok {
		t.Error("updating an absent group should fail")
	}

	s.JoinOrCreate("room1", "a", session("a"), map[string]string{"a": "1"}, nil)
	ch, ok := s.UpdateMetadata("room1", map[string]string{"b": "2"}, nil)
	if !ok {
		t.Fatal("update should succeed")
	}
	if len(ch.Metadata) != 1 || ch.Metadata["b"] != "2" {
		t.Errorf("metadata should be replaced wholesale, got %v", ch.Metadata)
	}
}

func TestGroupStoreGroupsOfAndRefresh(t *testing.T) {
	s := NewGroupStore(fixedClock(), true)
	s.JoinOrCreate("room1", "a", session("a"), nil, nil)
	s.JoinOrCreate("room2", "a", session("a"), nil, nil)
	s.JoinOrCreate("room2", "b", session("b"), nil, nil)

	groups := s.GroupsOf("a")
	if len(groups) != 2 || groups[0] != "room1" || groups[1] != "room2" {
		t.Errorf("GroupsOf(a) = %v", groups)
	}

	updated := session("a")
	updated.Metadata = map[string]string{"status": "away"}
	s.RefreshMember("a", updated)

	for _, g := range []string{"room1", "room2"} {
		members, _ := s.MembersOf(g)
		for _, m := range members {
			if m.ID == "a" && m.Metadata["status"] != "away" {
				t.Errorf("%s still holds a stale snapshot", g)
			}
		}
	}
	if _, ok := s.MembersOf("nowhere"); ok {
		t.Error("MembersOf an absent group should report absence")
	}
}

func TestGroupStoreConcurrentFirstJoinCreatesOnce(t *testing.T) {
	s := NewGroupStore(nil, true)
	const joiners = 64

	var creations int32
	var wg sync.WaitGroup
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			if _, created := s.JoinOrCreate("lobby", id, session(id), nil, nil); created {
				atomic.AddInt32(&creations, 1)
			}
		}(i)
	}
	wg.Wait()

	if creations != 1 {
		t.Errorf("expected exactly one creation, got %d", creations)
	}
	ch, ok := s.Get("lobby")
	if !ok || len(ch.Members) != joiners {
		t.Errorf("expected %d members, got %+v", joiners, ch)
	}
}

func TestGroupStoreConcurrentJoinLeaveNeverLeaks(t *testing.T) {
	s := NewGroupStore(nil, true)
	const workers = 16
	const rounds = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", w)
			for i := 0; i < rounds; i++ {
				s.JoinOrCreate("hot", id, session(id), nil, nil)
				if ch, ok := s.Get("hot"); ok && len(ch.Members) == 0 {
					t.Error("observed an existing group with zero members")
				}
				s.Leave("hot", id, nil)
			}
		}(w)
	}
	wg.Wait()

	if _, ok := s.Get("hot"); ok {
		t.Error("group leaked after every member left")
	}
	if s.Len() != 0 {
		t.Errorf("expected no groups, got %d", s.Len())
	}
}

func TestGroupStoreInvariantPanics(t *testing.T) {
	s := NewGroupStore(fixedClock(), true)
	sh := s.shard("broken")
	sh.groups["broken"] = &channel{id: "broken", members: map[string]ClientSession{}}

	defer func() {
		rec := recover()
		err, ok := rec.(error)
		if !ok || !errors.Is(err, ErrInvariant) {
			t.Fatalf("expected ErrInvariant panic, got %v", rec)
		}
	}()
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s.verify(sh, "broken")
}

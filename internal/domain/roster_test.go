package domain

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRosterAddRemove(t *testing.T) {
	r := NewRoster()

	assert.True(t, r.Upsert(NewParticipant("abcdef1234", false)))
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Remove("abcdef1234"))
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.List())
}

func TestRosterRemoveUnknownIsNoop(t *testing.T) {
	r := NewRoster()
	r.Upsert(NewParticipant("a1", false))

	assert.False(t, r.Remove("missing"))
	assert.Equal(t, 1, r.Len())
}

func TestRosterUpdateUnknownLeavesRosterUnchanged(t *testing.T) {
	r := NewRoster()
	r.Upsert(NewParticipant("a1", false))
	name := "Ada"

	_, ok := r.Update("missing", ParticipantPatch{Name: &name})
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
	_, found := r.Get("missing")
	assert.False(t, found)
}

func TestRosterUpdateMergesFields(t *testing.T) {
	r := NewRoster()
	r.Upsert(NewParticipant("a1", false))
	peer := "ROOM-a1"
	muted := true

	p, ok := r.Update("a1", ParticipantPatch{PeerID: &peer, Muted: &muted})
	require.True(t, ok)
	assert.Equal(t, "ROOM-a1", p.PeerID)
	assert.True(t, p.Muted)
	assert.Equal(t, "User a1", p.Name)
}

func TestRosterDuplicateAnnouncementMerges(t *testing.T) {
	r := NewRoster()
	first := NewParticipant("abcd1234", true)
	r.Upsert(first)

	again := NewPresence("abcd1234", "ROOM-abcd1234").Participant()
	again.JoinedAt = first.JoinedAt.Add(time.Minute)
	assert.False(t, r.Upsert(again))

	require.Equal(t, 1, r.Len())
	p, _ := r.Get("abcd1234")
	assert.True(t, p.IsHost, "host flag must survive a duplicate announcement")
	assert.Equal(t, "ROOM-abcd1234", p.PeerID)
	assert.True(t, p.JoinedAt.Equal(first.JoinedAt))
}

func TestRosterListOrder(t *testing.T) {
	r := NewRoster()
	base := time.Now()
	for i, id := range []string{"c", "a", "b"} {
		p := NewParticipant(id, false)
		p.JoinedAt = base.Add(time.Duration(i) * time.Second)
		r.Upsert(p)
	}

	ids := make([]string, 0, 3)
	for _, p := range r.List() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestRosterSubscribe(t *testing.T) {
	r := NewRoster()
	events, cancel := r.Subscribe(8)

	r.Upsert(NewParticipant("a1", false))
	name := "Ada"
	r.Update("a1", ParticipantPatch{Name: &name})
	r.Remove("a1")
	cancel()

	var kinds []RosterEventKind
	for ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []RosterEventKind{RosterAdded, RosterUpdated, RosterRemoved}, kinds)
}

func TestRosterConcurrentUpserts(t *testing.T) {
	r := NewRoster()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Upsert(NewParticipant("same", false))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, r.Len())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "User abcd", DisplayName("abcdefghij"))
	assert.Equal(t, "User ab", DisplayName("ab"))
}

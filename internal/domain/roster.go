package domain

import (
	"sort"
	"sync"
)

type RosterEventKind string

const (
	RosterAdded   RosterEventKind = "added"
	RosterUpdated RosterEventKind = "updated"
	RosterRemoved RosterEventKind = "removed"
)

type RosterEvent struct {
	Kind        RosterEventKind
	Participant Participant
}

// Roster is the set of participants in a room keyed by participant id.
// Observers registered with Subscribe see every mutation in order; an
// observer that falls behind loses events instead of stalling writers.
type Roster struct {
	mu           sync.RWMutex
	participants map[string]Participant
	observers    map[int]chan RosterEvent
	nextObserver int
}

func NewRoster() *Roster {
	return &Roster{
		participants: make(map[string]Participant),
		observers:    make(map[int]chan RosterEvent),
	}
}

// Upsert inserts p or merges it into the entry with the same id. A merge
// keeps the original join time, takes non-empty name and peer id from p,
// and never clears the host flag. It reports whether a new entry was created.
func (r *Roster) Upsert(p Participant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.participants[p.ID]
	if !ok {
		if p.Name == "" {
			p.Name = DisplayName(p.ID)
		}
		r.participants[p.ID] = p
		r.notify(RosterEvent{Kind: RosterAdded, Participant: p})
		return true
	}

	if p.Name != "" {
		existing.Name = p.Name
	}
	if p.PeerID != "" {
		existing.PeerID = p.PeerID
	}
	existing.IsHost = existing.IsHost || p.IsHost
	existing.Muted = p.Muted
	existing.VideoOff = p.VideoOff
	if existing.JoinedAt.IsZero() {
		existing.JoinedAt = p.JoinedAt
	}

	r.participants[p.ID] = existing
	r.notify(RosterEvent{Kind: RosterUpdated, Participant: existing})
	return false
}

// Remove deletes the entry for id. Unknown ids are ignored.
func (r *Roster) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return false
	}
	delete(r.participants, id)
	r.notify(RosterEvent{Kind: RosterRemoved, Participant: p})
	return true
}

// Update merges patch into the entry for id. It never creates an entry.
func (r *Roster) Update(id string, patch ParticipantPatch) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return Participant{}, false
	}
	patch.apply(&p)
	r.participants[id] = p
	r.notify(RosterEvent{Kind: RosterUpdated, Participant: p})
	return p, true
}

func (r *Roster) Get(id string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	return p, ok
}

// List returns a copy of the roster ordered by join time, then id.
func (r *Roster) List() []Participant {
	r.mu.RLock()
	result := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		result = append(result, p)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].JoinedAt.Equal(result[j].JoinedAt) {
			return result[i].JoinedAt.Before(result[j].JoinedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// Replace swaps the whole roster content without notifying observers.
func (r *Roster) Replace(participants []Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants = make(map[string]Participant, len(participants))
	for _, p := range participants {
		r.participants[p.ID] = p
	}
}

// Subscribe registers an observer. The returned cancel func must be called
// to release it; it closes the channel.
func (r *Roster) Subscribe(buffer int) (<-chan RosterEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan RosterEvent, buffer)

	r.mu.Lock()
	id := r.nextObserver
	r.nextObserver++
	r.observers[id] = ch
	r.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.observers, id)
			r.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// notify must be called with r.mu held.
func (r *Roster) notify(ev RosterEvent) {
	for _, ch := range r.observers {
		select {
		case ch <- ev:
		default:
		}
	}
}

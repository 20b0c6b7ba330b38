package domain

import (
	"errors"
	"sync"
	"time"
)

// MaxEditorUpdateSize bounds a single replicated editor update.
const MaxEditorUpdateSize = 256 << 10

var (
	ErrEmptyUpdate    = errors.New("editor update is empty")
	ErrUpdateTooLarge = errors.New("editor update is too large")
)

// EditorUpdate is an opaque update produced by the client-side replication
// library. A snapshot update supersedes every update before it.
type EditorUpdate struct {
	Seq       int64     `json:"seq" msgpack:"seq"`
	AuthorID  string    `json:"author_id" msgpack:"author_id"`
	Data      []byte    `json:"data" msgpack:"data"`
	Snapshot  bool      `json:"snapshot,omitempty" msgpack:"snapshot,omitempty"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

func (u EditorUpdate) sequence() int64 { return u.Seq }

func NewEditorUpdate(authorID string, data []byte, snapshot bool) (EditorUpdate, error) {
	if len(data) == 0 {
		return EditorUpdate{}, ErrEmptyUpdate
	}
	if len(data) > MaxEditorUpdateSize {
		return EditorUpdate{}, ErrUpdateTooLarge
	}
	return EditorUpdate{
		AuthorID:  authorID,
		Data:      data,
		Snapshot:  snapshot,
		CreatedAt: time.Now().UTC(),
	}, nil
}

type EditorDocument struct {
	mu  sync.RWMutex
	log seqLog[EditorUpdate]
}

func NewEditorDocument() *EditorDocument {
	return &EditorDocument{}
}

// Apply assigns the next sequence number to u and records it.
func (d *EditorDocument) Apply(u EditorUpdate) EditorUpdate {
	d.mu.Lock()
	defer d.mu.Unlock()
	u.Seq = d.log.next()
	d.insertLocked(u)
	return u
}

// Compact replaces the whole log with snapshot.
func (d *EditorDocument) Compact(snapshot EditorUpdate) EditorUpdate {
	snapshot.Snapshot = true
	return d.Apply(snapshot)
}

// Insert records an update that already carries its sequence number.
// Stale updates are ignored.
func (d *EditorDocument) Insert(u EditorUpdate) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.insertLocked(u)
}

func (d *EditorDocument) insertLocked(u EditorUpdate) bool {
	if u.Snapshot {
		d.log.compact(u.Seq - 1)
	}
	return d.log.insert(u)
}

func (d *EditorDocument) Since(seq int64) []EditorUpdate {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.log.since(seq)
}

func (d *EditorDocument) Seq() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.log.last
}

func (d *EditorDocument) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.log.len()
}

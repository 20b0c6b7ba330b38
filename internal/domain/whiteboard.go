package domain

import (
	"errors"
	"sync"
	"time"
)

const (
	MinBrushSize       = 1
	MaxBrushSize       = 20
	MaxPointsPerStroke = 4096
)

var ErrInvalidStroke = errors.New("invalid stroke")

type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Stroke is one continuous line drawn on the whiteboard. Epoch is the
// whiteboard epoch the stroke was drawn in; a clear starts a new epoch.
type Stroke struct {
	Seq       int64     `json:"seq" msgpack:"seq"`
	Epoch     int64     `json:"epoch" msgpack:"epoch"`
	AuthorID  string    `json:"author_id" msgpack:"author_id"`
	Color     string    `json:"color" msgpack:"color" validate:"required,hexcolor"`
	Width     int       `json:"width" msgpack:"width" validate:"min=1,max=20"`
	Points    []Point   `json:"points" msgpack:"points" validate:"required,min=1,max=4096"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

func (s Stroke) sequence() int64 { return s.Seq }

func (s Stroke) Validate() error {
	if err := validate.Struct(s); err != nil {
		return errors.Join(ErrInvalidStroke, err)
	}
	return nil
}

// Whiteboard keeps the strokes of the current epoch in drawing order.
// Observers catch up with Since and only render what is new.
type Whiteboard struct {
	mu    sync.RWMutex
	log   seqLog[Stroke]
	epoch int64
}

func NewWhiteboard() *Whiteboard {
	return &Whiteboard{}
}

// Append validates s, stamps it with the next sequence number and the
// current epoch, and records it.
func (w *Whiteboard) Append(s Stroke) (Stroke, error) {
	if err := s.Validate(); err != nil {
		return Stroke{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	s.Seq = w.log.next()
	s.Epoch = w.epoch
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	w.log.insert(s)
	return s, nil
}

// Insert records a stroke that already carries its sequence number and
// epoch. Strokes from an older epoch or with a stale sequence are ignored.
func (w *Whiteboard) Insert(s Stroke) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if s.Epoch < w.epoch {
		return false
	}
	if s.Epoch > w.epoch {
		w.epoch = s.Epoch
		w.log.compact(w.log.last)
	}
	return w.log.insert(s)
}

// Clear removes every stroke and starts a new epoch, which it returns.
func (w *Whiteboard) Clear() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.epoch++
	w.log.compact(w.log.last)
	return w.epoch
}

// ClearTo moves the whiteboard to epoch if it is newer than the current one.
func (w *Whiteboard) ClearTo(epoch int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if epoch <= w.epoch {
		return false
	}
	w.epoch = epoch
	w.log.compact(w.log.last)
	return true
}

func (w *Whiteboard) Since(seq int64) []Stroke {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.log.since(seq)
}

func (w *Whiteboard) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.log.len()
}

func (w *Whiteboard) Epoch() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.epoch
}

func (w *Whiteboard) Seq() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.log.last
}

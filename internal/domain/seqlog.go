package domain

import (
	"slices"
	"sort"
)

type sequenced interface {
	sequence() int64
}

// seqLog is a log of entries ordered by sequence number. Entries may arrive
// out of order; duplicates and entries at or below the floor are ignored.
// It is not safe for concurrent use; owners guard it.
type seqLog[T sequenced] struct {
	entries []T
	last    int64
	floor   int64
}

func (l *seqLog[T]) insert(e T) bool {
	seq := e.sequence()
	if seq <= l.floor {
		return false
	}
	if seq > l.last {
		l.entries = append(l.entries, e)
		l.last = seq
		return true
	}

	i := l.search(seq - 1)
	if i < len(l.entries) && l.entries[i].sequence() == seq {
		return false
	}
	l.entries = slices.Insert(l.entries, i, e)
	return true
}

func (l *seqLog[T]) next() int64 {
	return l.last + 1
}

// since returns a copy of the entries with a sequence greater than seq.
func (l *seqLog[T]) since(seq int64) []T {
	i := l.search(seq)
	out := make([]T, len(l.entries)-i)
	copy(out, l.entries[i:])
	return out
}

// compact drops the entries at or below floor and rejects them from then on.
// The sequence counter is kept.
func (l *seqLog[T]) compact(floor int64) {
	if floor <= l.floor {
		return
	}
	l.floor = floor
	l.entries = l.entries[l.search(floor):]
	if floor > l.last {
		l.last = floor
	}
}

func (l *seqLog[T]) len() int {
	return len(l.entries)
}

// search returns the index of the first entry with a sequence above seq.
func (l *seqLog[T]) search(seq int64) int {
	return sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].sequence() > seq
	})
}

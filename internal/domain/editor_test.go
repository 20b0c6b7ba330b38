package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditorUpdateValidation(t *testing.T) {
	_, err := NewEditorUpdate("a", nil, false)
	assert.ErrorIs(t, err, ErrEmptyUpdate)

	_, err = NewEditorUpdate("a", make([]byte, MaxEditorUpdateSize+1), false)
	assert.ErrorIs(t, err, ErrUpdateTooLarge)
}

func TestEditorSnapshotCompactsLog(t *testing.T) {
	d := NewEditorDocument()
	for i := 0; i < 3; i++ {
		u, err := NewEditorUpdate("a", []byte{byte(i + 1)}, false)
		require.NoError(t, err)
		d.Apply(u)
	}
	require.Equal(t, 3, d.Len())

	snap, err := NewEditorUpdate("a", []byte("state"), true)
	require.NoError(t, err)
	applied := d.Apply(snap)

	assert.Equal(t, int64(4), applied.Seq)
	assert.Equal(t, 1, d.Len())
	all := d.Since(0)
	require.Len(t, all, 1)
	assert.True(t, all[0].Snapshot)

	more, err := NewEditorUpdate("b", []byte("later"), false)
	require.NoError(t, err)
	d.Apply(more)
	compacted := d.Compact(more)
	assert.Equal(t, int64(6), compacted.Seq)
	assert.Equal(t, 1, d.Len())
}

func TestEditorInsertIgnoresStale(t *testing.T) {
	d := NewEditorDocument()
	u := EditorUpdate{Seq: 7, Data: []byte{1}}

	assert.True(t, d.Insert(u))
	assert.False(t, d.Insert(EditorUpdate{Seq: 7, Data: []byte{2}}))
	assert.Equal(t, int64(7), d.Seq())
}

func TestEditorInsertOutOfOrder(t *testing.T) {
	d := NewEditorDocument()

	assert.True(t, d.Insert(EditorUpdate{Seq: 3, Data: []byte{3}}))
	assert.True(t, d.Insert(EditorUpdate{Seq: 1, Data: []byte{1}}))
	assert.True(t, d.Insert(EditorUpdate{Seq: 2, Data: []byte{2}}))
	assert.False(t, d.Insert(EditorUpdate{Seq: 2, Data: []byte{9}}))

	got := d.Since(1)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Seq)
	assert.Equal(t, int64(3), got[1].Seq)

	// A late snapshot keeps the updates that followed it.
	assert.True(t, d.Insert(EditorUpdate{Seq: 5, Data: []byte{5}}))
	assert.True(t, d.Insert(EditorUpdate{Seq: 4, Data: []byte("state"), Snapshot: true}))
	assert.False(t, d.Insert(EditorUpdate{Seq: 2, Data: []byte{2}}))
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, int64(5), d.Seq())
}

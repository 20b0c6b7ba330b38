package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptHostOnly(t *testing.T) {
	tr := NewTranscript()

	_, err := tr.Execute(NewParticipant("guest", false), "ls")
	assert.ErrorIs(t, err, ErrHostOnly)
	assert.Zero(t, tr.Len())

	line, err := tr.Execute(NewParticipant("host", true), "  go test ./...  ")
	require.NoError(t, err)
	assert.Equal(t, "go test ./...", line.Command)
	assert.Equal(t, "$ go test ./...\n> Command executed", line.Output)
	assert.Equal(t, int64(1), line.Seq)
}

func TestTranscriptValidation(t *testing.T) {
	host := NewParticipant("host", true)

	_, err := NewTranscriptLine(host, "   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = NewTranscriptLine(host, strings.Repeat("x", maxCommandLength+1))
	assert.ErrorIs(t, err, ErrCommandTooLong)
}

func TestTranscriptSince(t *testing.T) {
	tr := NewTranscript()
	host := NewParticipant("host", true)
	for _, cmd := range []string{"a", "b", "c"} {
		_, err := tr.Execute(host, cmd)
		require.NoError(t, err)
	}

	lines := tr.Since(1)
	require.Len(t, lines, 2)
	assert.Equal(t, "b", lines[0].Command)
}

package domain

import (
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const maxCommandLength = 1024

var (
	ErrHostOnly       = errors.New("only the host can run terminal commands")
	ErrEmptyCommand   = errors.New("command is empty")
	ErrCommandTooLong = errors.New("command is too long")
)

type TranscriptLine struct {
	Seq       int64     `json:"seq" msgpack:"seq"`
	AuthorID  string    `json:"author_id" msgpack:"author_id"`
	Command   string    `json:"command" msgpack:"command"`
	Output    string    `json:"output" msgpack:"output"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

func (l TranscriptLine) sequence() int64 { return l.Seq }

// FormatCommand renders a command the way the shared terminal shows it.
func FormatCommand(command string) string {
	return "$ " + command + "\n> Command executed"
}

// NewTranscriptLine builds the transcript entry for command. The terminal
// is writable by the host only; the check lives here so every path that
// writes a transcript goes through it.
func NewTranscriptLine(author Participant, command string) (TranscriptLine, error) {
	if !author.IsHost {
		return TranscriptLine{}, ErrHostOnly
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return TranscriptLine{}, ErrEmptyCommand
	}
	if utf8.RuneCountInString(command) > maxCommandLength {
		return TranscriptLine{}, ErrCommandTooLong
	}
	return TranscriptLine{
		AuthorID:  author.ID,
		Command:   command,
		Output:    FormatCommand(command),
		CreatedAt: time.Now().UTC(),
	}, nil
}

type Transcript struct {
	mu  sync.RWMutex
	log seqLog[TranscriptLine]
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

// Execute appends the output of command on behalf of author.
func (t *Transcript) Execute(author Participant, command string) (TranscriptLine, error) {
	line, err := NewTranscriptLine(author, command)
	if err != nil {
		return TranscriptLine{}, err
	}

	return t.Append(line), nil
}

// Append stamps an already validated line with the next sequence number.
func (t *Transcript) Append(line TranscriptLine) TranscriptLine {
	t.mu.Lock()
	defer t.mu.Unlock()
	line.Seq = t.log.next()
	t.log.insert(line)
	return line
}

func (t *Transcript) Insert(line TranscriptLine) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.log.insert(line)
}

func (t *Transcript) Since(seq int64) []TranscriptLine {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.log.since(seq)
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.log.len()
}

func (t *Transcript) Seq() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.log.last
}

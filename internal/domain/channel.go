package domain

import (
	"errors"
	"strings"
)

type Panel string

const (
	PanelEditor     Panel = "editor"
	PanelWhiteboard Panel = "whiteboard"
	PanelTerminal   Panel = "terminal"
)

// ChannelPresence is the room-wide channel that carries roster changes,
// chat and untargeted signals.
const ChannelPresence = "presence"

var ErrUnknownPanel = errors.New("unknown panel")

// Panels lists every shared-content panel of a room.
func Panels() []Panel {
	return []Panel{PanelEditor, PanelWhiteboard, PanelTerminal}
}

func ParsePanel(s string) (Panel, error) {
	switch p := Panel(strings.ToLower(strings.TrimSpace(s))); p {
	case PanelEditor, PanelWhiteboard, PanelTerminal:
		return p, nil
	}
	return "", ErrUnknownPanel
}

// reservedChannel reports whether name is the suffix of a room-wide channel.
func reservedChannel(name string) bool {
	if strings.EqualFold(name, ChannelPresence) {
		return true
	}
	_, err := ParsePanel(name)
	return err == nil
}

// EndpointName names a participant's connection endpoint inside a room.
// It doubles as the participant's private broker channel.
func EndpointName(roomCode, participantID string) string {
	return roomCode + "-" + participantID
}

// ReplicationChannel names the channel a panel of a room replicates over.
func ReplicationChannel(scope string, panel Panel) string {
	return scope + "-" + string(panel)
}

func PresenceChannel(roomCode string) string {
	return roomCode + "-" + ChannelPresence
}

// RoomChannels returns every room-wide channel for roomCode.
func RoomChannels(roomCode string) []string {
	channels := []string{PresenceChannel(roomCode)}
	for _, p := range Panels() {
		channels = append(channels, ReplicationChannel(roomCode, p))
	}
	return channels
}

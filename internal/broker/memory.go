package broker

import (
	"context"
	"log/slog"
	"sync"
)

const defaultBuffer = 64

// Memory is an in-process broker. Each subscription has a bounded buffer;
// a subscriber that falls behind loses messages.
type Memory struct {
	mu     sync.RWMutex
	subs   map[string]map[*memorySubscription]struct{}
	buffer int
	log    *slog.Logger
	closed bool
}

func NewMemory(buffer int, log *slog.Logger) *Memory {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if log == nil {
		log = slog.Default()
	}
	return &Memory{
		subs:   make(map[string]map[*memorySubscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

func (m *Memory) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}

	msg := Message{Channel: channel, Payload: payload}
	for sub := range m.subs[channel] {
		if !sub.deliver(msg) {
			m.log.Debug("dropping broker message", slog.String("channel", channel))
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, channels ...string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &memorySubscription{
		broker:   m,
		channels: channels,
		ch:       make(chan Message, m.buffer),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	for _, channel := range channels {
		set, ok := m.subs[channel]
		if !ok {
			set = make(map[*memorySubscription]struct{})
			m.subs[channel] = set
		}
		set[sub] = struct{}{}
	}
	return sub, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	subs := make(map[*memorySubscription]struct{})
	for _, set := range m.subs {
		for sub := range set {
			subs[sub] = struct{}{}
		}
	}
	m.subs = make(map[string]map[*memorySubscription]struct{})
	m.mu.Unlock()

	for sub := range subs {
		sub.closeChannel()
	}
	return nil
}

func (m *Memory) unsubscribe(sub *memorySubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, channel := range sub.channels {
		set := m.subs[channel]
		delete(set, sub)
		if len(set) == 0 {
			delete(m.subs, channel)
		}
	}
}

type memorySubscription struct {
	broker   *Memory
	channels []string
	ch       chan Message

	mu     sync.Mutex
	closed bool
}

func (s *memorySubscription) C() <-chan Message {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.broker.unsubscribe(s)
	s.closeChannel()
	return nil
}

func (s *memorySubscription) deliver(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

func (s *memorySubscription) closeChannel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

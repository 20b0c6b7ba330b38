// Package broker fans room events out by channel name. Channel names are
// the room protocol: anyone subscribed to the same name sees the same events.
package broker

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("broker closed")

type Message struct {
	Channel string
	Payload []byte
}

type Subscription interface {
	C() <-chan Message
	Close() error
}

type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
	Close() error
}

package runtime

import (
	"context"

	"chat-core/domain/event"
)

// NoopRelay is the default external fan-out: none. A deployment bridging
// several broadcast domains plugs its own contract.EventRelay instead.
type NoopRelay struct{}

func (NoopRelay) Forward(_ context.Context, _ event.DomainEvent) error {
	return nil
}

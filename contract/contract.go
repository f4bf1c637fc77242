package contract

import (
	"context"
	"reflect"

	"chat-core/domain"
	"chat-core/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes, avoiding the need
// for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives events fanned out for one room. A non-nil error means
// this recipient could not accept the event; the hub isolates the failure
// and tears the recipient down without affecting the others.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IHub is the in-memory per-room fan-out index from room to live sessions.
type IHub interface {
	Subscribe(roomID domain.RoomID, sessionID string, sink EventSink)
	Unsubscribe(roomID domain.RoomID, sessionID string)
	Publish(ctx context.Context, roomID domain.RoomID, e event.DomainEvent)
}

// EventRelay is the seam for external fan-out (cross-process pub/sub).
// The hub forwards every published event to it; the default relay is a no-op
// since a single broadcast domain per process is assumed.
type EventRelay interface {
	Forward(ctx context.Context, e event.DomainEvent) error
}

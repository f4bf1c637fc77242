package workers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type scriptedWorker struct {
	calls  atomic.Int32
	action func(ctx context.Context) error
}

func (w *scriptedWorker) Run(ctx context.Context) error {
	w.calls.Add(1)
	return w.action(ctx)
}

func TestSupervisor_RestartOnPanic(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	worker := &scriptedWorker{action: func(ctx context.Context) error {
		panic("boom")
	}}

	sup := NewSupervisor(log)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	go sup.Add(worker).Run(ctx)

	// Waiting for panics and restarts
	time.Sleep(900 * time.Millisecond)

	req.GreaterOrEqual(worker.calls.Load(), int32(2))
}

func TestSupervisor_RestartOnError(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	worker := &scriptedWorker{action: func(ctx context.Context) error {
		return errors.New("transient failure")
	}}

	sup := NewSupervisor(log)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	go sup.Add(worker).Run(ctx)

	time.Sleep(900 * time.Millisecond)

	req.GreaterOrEqual(worker.calls.Load(), int32(2))
}

func TestSupervisor_StopOnSuccess(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	// Given a worker running only once
	worker := &scriptedWorker{action: func(ctx context.Context) error {
		return nil
	}}

	sup := NewSupervisor(log)

	// Given a channel to notify when Run() terminated
	done := make(chan struct{})

	go func() {
		sup.Add(worker).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
		// Then supervisor detected a success, returned nil and stopped
		req.Equal(int32(1), worker.calls.Load())
	case <-time.After(500 * time.Millisecond):
		req.Fail("Supervisor should have stopped after worker success")
	}
}

func TestSupervisor_StopCancelsWorkers(t *testing.T) {
	req := require.New(t)
	log := slog.Default()

	worker := &scriptedWorker{action: func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}}

	sup := NewSupervisor(log)
	done := make(chan struct{})

	go func() {
		sup.Add(worker).Run(context.Background())
		close(done)
	}()

	// Give the worker time to start, then stop the supervisor
	time.Sleep(100 * time.Millisecond)
	sup.Stop()

	select {
	case <-done:
		req.Equal(int32(1), worker.calls.Load())
	case <-time.After(500 * time.Millisecond):
		req.Fail("Supervisor should have stopped after Stop()")
	}
}

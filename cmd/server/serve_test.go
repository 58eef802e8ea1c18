package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeServer blocks in ListenAndServe until Shutdown has finished. Shutdown
// itself waits on release, standing in for requests still in flight.
type fakeServer struct {
	listenErr error

	shutdownStarted chan struct{}
	release         chan struct{}
	closed          chan struct{}
	shutdownDone    atomic.Bool
	startOnce       sync.Once
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		shutdownStarted: make(chan struct{}),
		release:         make(chan struct{}),
		closed:          make(chan struct{}),
	}
}

func (s *fakeServer) ListenAndServe() error {
	if s.listenErr != nil {
		return s.listenErr
	}
	<-s.closed
	return http.ErrServerClosed
}

func (s *fakeServer) Shutdown(ctx context.Context) error {
	s.startOnce.Do(func() { close(s.shutdownStarted) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.shutdownDone.Store(true)
	close(s.closed)
	return nil
}

// fakeWorkers records whether its context ended before the server finished
// shutting down.
type fakeWorkers struct {
	server       *fakeServer
	stopped      chan struct{}
	stoppedEarly atomic.Bool
}

func (w *fakeWorkers) Run(ctx context.Context) error {
	<-ctx.Done()
	if !w.server.shutdownDone.Load() {
		w.stoppedEarly.Store(true)
	}
	close(w.stopped)
	return nil
}

// TestRunServer_WorkersOutliveShutdown tests that background workers keep
// running while the server drains in-flight requests.
func TestRunServer_WorkersOutliveShutdown(t *testing.T) {
	// ARRANGE
	srv := newFakeServer()
	workers := &fakeWorkers{server: srv, stopped: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServer(ctx, srv, workers, 5*time.Second, zap.NewNop())
	}()

	// ACT: Signal shutdown while a request is still being served
	cancel()
	<-srv.shutdownStarted

	// ASSERT: Workers are still running during Shutdown
	select {
	case <-workers.stopped:
		t.Fatal("workers stopped before server shutdown finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(srv.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runServer did not return")
	}
	<-workers.stopped
	assert.False(t, workers.stoppedEarly.Load(), "Workers must stop only after Shutdown returns")
}

func TestRunServer_ListenFailureStopsWorkers(t *testing.T) {
	srv := newFakeServer()
	srv.listenErr = errors.New("address already in use")
	close(srv.release)
	workers := &fakeWorkers{server: srv, stopped: make(chan struct{})}

	err := runServer(context.Background(), srv, workers, time.Second, zap.NewNop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "address already in use")
	<-workers.stopped
	assert.False(t, workers.stoppedEarly.Load())
}

func TestRunServer_WithoutWorkers(t *testing.T) {
	srv := newFakeServer()
	close(srv.release)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runServer(ctx, srv, nil, time.Second, zap.NewNop())

	assert.NoError(t, err)
	assert.True(t, srv.shutdownDone.Load())
}

// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package worker provides a library framework for processes that
// answer render requests from a dispatch.Bus.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/omero-ms/go-imageregion/dispatch"
	"github.com/satori/go.uuid"
)

// ErrStopping is returned to requests that arrive while a worker is
// shutting down.
var ErrStopping = errors.New("worker is stopping")

// Status is a snapshot of a worker, reported every heartbeat.
type Status struct {
	WorkerID   string
	Hostname   string
	IPAddrs    []string
	CPUs       int
	Go         string
	Goroutines int
	PID        int
	Running    int
	Handled    int64
	Failed     int64
	Time       time.Time
}

// Worker answers requests for a set of addresses on a bus.
type Worker struct {
	// Bus is where requests come from.  This field is required
	// when creating a Worker.
	Bus dispatch.Bus

	// Tasks defines the tasks this Worker is capable of running,
	// keyed by the address each one listens on.
	//
	// The task function is called with a context and the request
	// body.  The context will be canceled when the worker is
	// stopped or the task runs past TaskTimeout.  Tasks should
	// return a dispatch.ReplyError for failures the client should
	// see with a specific status.
	Tasks map[string]dispatch.Handler

	// WorkerID provides the name of the worker in status reports.
	// If unset, a worker ID will be generated.
	WorkerID string

	// Concurrency states how many tasks may run in parallel.
	// Further requests wait for a free slot.  If unset, uses
	// runtime.NumCPU().
	Concurrency int

	// TaskTimeout, if set, limits how long a single task may run
	// before its context is canceled.
	TaskTimeout time.Duration

	// HeartbeatInterval states how often the worker should report
	// its status to StatusHandler.  If unset, defaults to 15
	// seconds.
	HeartbeatInterval time.Duration

	// StatusHandler, if set, receives a status report every
	// heartbeat.
	StatusHandler func(Status)

	// ErrorHandler is called when a task fails without a code or
	// panics.
	ErrorHandler func(error)

	// Clock defines a time source for the worker.  Only test code
	// should need to set this.  If unset, uses a time source
	// backed by real wall-clock time.
	Clock clock.Clock

	// slots holds one token per running task.
	slots chan struct{}

	// stopping is closed when the worker begins to shut down.
	stopping chan struct{}

	// runCtx is canceled when the worker stops.
	runCtx    context.Context
	runCancel func()

	subscriptions []dispatch.Subscription
	running       sync.WaitGroup
	heartbeats    sync.WaitGroup

	mutex   sync.Mutex
	active  int
	handled int64
	failed  int64
}

// setDefaults sets default values for any Worker fields that are
// uninitialized.
func (w *Worker) setDefaults() {
	if w.WorkerID == "" {
		w.WorkerID = uuid.NewV4().String()
	}

	if w.Concurrency == 0 {
		w.Concurrency = runtime.NumCPU()
	}

	if w.HeartbeatInterval == time.Duration(0) {
		w.HeartbeatInterval = time.Duration(15) * time.Second
	}

	if w.Clock == nil {
		w.Clock = clock.New()
	}
}

// Start subscribes every task to its address and returns.  Requests
// are answered until ctx is canceled or Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	w.setDefaults()
	w.slots = make(chan struct{}, w.Concurrency)
	w.stopping = make(chan struct{})
	w.runCtx, w.runCancel = context.WithCancel(ctx)

	for address, task := range w.Tasks {
		sub, err := w.Bus.Handle(address, w.wrap(task))
		if err != nil {
			w.Stop()
			return fmt.Errorf("subscribing to %q: %w", address, err)
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	ticker := w.Clock.Ticker(w.HeartbeatInterval)
	w.heartbeats.Add(1)
	go func() {
		defer w.heartbeats.Done()
		defer ticker.Stop()
		for {
			select {
			case <-w.runCtx.Done():
				return
			case <-ticker.C:
				w.heartbeat()
			}
		}
	}()
	return nil
}

// Stop unsubscribes from the bus, cancels running tasks, and waits
// for them to return.  It may be called more than once.
func (w *Worker) Stop() {
	w.mutex.Lock()
	select {
	case <-w.stopping:
		w.mutex.Unlock()
		return
	default:
		close(w.stopping)
	}
	w.mutex.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			w.handleError(err)
		}
	}
	w.runCancel()
	w.running.Wait()
	w.heartbeats.Wait()
}

// Run answers requests until the provided context is cancelled.  If
// it returns, either there was a startup error subscribing to the
// bus, in which case the corresponding error is returned, or
// execution was cancelled, returning nil.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

// wrap adds the concurrency limit, timeout, and panic recovery to a
// task.
func (w *Worker) wrap(task dispatch.Handler) dispatch.Handler {
	return func(ctx context.Context, body []byte) (reply []byte, err error) {
		select {
		case w.slots <- struct{}{}:
		case <-w.stopping:
			return nil, ErrStopping
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		defer func() { <-w.slots }()

		// Check for a race between stopping and getting a slot
		w.mutex.Lock()
		select {
		case <-w.stopping:
			w.mutex.Unlock()
			return nil, ErrStopping
		default:
		}
		w.running.Add(1)
		w.active++
		w.mutex.Unlock()
		defer w.running.Done()

		taskCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(w.runCtx, cancel)
		defer stop()
		if w.TaskTimeout > 0 {
			timer := w.Clock.Timer(w.TaskTimeout)
			defer timer.Stop()
			go func() {
				select {
				case <-timer.C:
					cancel()
				case <-taskCtx.Done():
				}
			}()
		}

		defer func() {
			if r := recover(); r != nil {
				reply = nil
				err = dispatch.Fail(http.StatusInternalServerError, "task panicked: %v", r)
				w.handleError(err)
			}
			w.finish(err)
		}()
		reply, err = task(taskCtx, body)
		var rerr dispatch.ReplyError
		if err != nil && !errors.As(err, &rerr) {
			w.handleError(err)
		}
		return reply, err
	}
}

// finish updates the counters after a task returns.
func (w *Worker) finish(err error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.active--
	w.handled++
	if err != nil {
		w.failed++
	}
}

func (w *Worker) handleError(err error) {
	if w.ErrorHandler != nil {
		w.ErrorHandler(err)
	}
}

// Status returns the current worker status.
func (w *Worker) Status() Status {
	status := Status{
		WorkerID:   w.WorkerID,
		CPUs:       runtime.NumCPU(),
		Go:         runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		PID:        os.Getpid(),
		Time:       w.Clock.Now(),
	}
	hostname, err := os.Hostname()
	if err == nil {
		status.Hostname = hostname
	}
	interfaces, err := net.Interfaces()
	if err == nil {
		for _, interf := range interfaces {
			addrs, err := interf.Addrs()
			if err == nil {
				for _, addr := range addrs {
					status.IPAddrs = append(status.IPAddrs, addr.String())
				}
			}
		}
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()
	status.Running = w.active
	status.Handled = w.handled
	status.Failed = w.failed
	return status
}

// heartbeat reports the current status of the worker.
func (w *Worker) heartbeat() {
	if w.StatusHandler != nil {
		w.StatusHandler(w.Status())
	}
}

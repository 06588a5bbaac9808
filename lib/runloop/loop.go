// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package runloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// ErrStopped is returned by Do when the loop stops before the task
// runs.
var ErrStopped = errors.New("runloop: stopped")

// ErrAlreadyRunning is returned by Run when another Run call is active.
var ErrAlreadyRunning = errors.New("runloop: already running")

// Loop is a FIFO task queue drained by a single goroutine.
type Loop struct {
	logger *slog.Logger

	mu      sync.Mutex
	queue   []func()
	stopped bool

	// wake has capacity 1; a pending token means the queue may be
	// non-empty or the loop was stopped.
	wake    chan struct{}
	done    chan struct{}
	running atomic.Bool
}

// New returns a loop that is not yet running. A nil logger discards
// task panic reports.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post queues task and reports whether it was accepted. Tasks are not
// accepted after Stop.
func (l *Loop) Post(task func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()
	l.signal()
	return true
}

// Do posts task and waits for it to finish. It returns ErrStopped if
// the loop refuses or abandons the task, or ctx.Err() if ctx ends
// first (the task may still run later).
func (l *Loop) Do(ctx context.Context, task func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		task()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		// The task may have been the last one run before the loop
		// exited.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop prevents further posts. Run finishes the tasks already queued
// and then returns. Stop is idempotent and does not wait; use Done.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.signal()
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Run executes tasks until Stop drains the queue (returning nil) or
// ctx is cancelled (returning ctx.Err() and abandoning queued tasks).
// A loop can be run once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(l.done)

	for {
		task, stopped := l.next()
		if task != nil {
			l.execute(task)
			if ctx.Err() != nil {
				l.abandon()
				return ctx.Err()
			}
			continue
		}
		if stopped {
			return nil
		}
		select {
		case <-l.wake:
		case <-ctx.Done():
			l.abandon()
			return ctx.Err()
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, l.stopped
	}
	task := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return task, l.stopped
}

func (l *Loop) abandon() {
	l.mu.Lock()
	dropped := len(l.queue)
	l.queue = nil
	l.stopped = true
	l.mu.Unlock()
	if dropped > 0 {
		l.logger.Debug("run loop cancelled with queued tasks", "dropped", dropped)
	}
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) execute(task func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			l.logger.Error("run loop task panicked",
				"panic", fmt.Sprint(recovered),
				"stack", string(debug.Stack()),
			)
		}
	}()
	task()
}

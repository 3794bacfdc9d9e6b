// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool runs indexed tasks with bounded parallelism.
package workerspool

import (
	"runtime"
	"sync"
)

// Pool limits the number of tasks running at the same time.
//
// A maxParallelism of 0 disables parallelism: tasks run inline, in order.
// A negative maxParallelism means unlimited.
type Pool struct {
	maxParallelism int
	mu             sync.Mutex
	cond           sync.Cond // Signaled whenever numRunning is decreased.
	numRunning     int
}

// New returns a Pool with the given parallelism. See Pool for the meaning of 0 and negative values.
func New(maxParallelism int) *Pool {
	w := &Pool{maxParallelism: maxParallelism}
	w.cond = sync.Cond{L: &w.mu}
	return w
}

// NewDefault returns a Pool with runtime.NumCPU() parallelism.
func NewDefault() *Pool {
	return New(runtime.NumCPU())
}

// IsEnabled returns whether parallelism is enabled (maxParallelism != 0).
func (w *Pool) IsEnabled() bool {
	return w != nil && w.maxParallelism != 0
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0).
func (w *Pool) IsUnlimited() bool {
	return w != nil && w.maxParallelism < 0
}

// MaxParallelism returns the configured limit. See Pool.
func (w *Pool) MaxParallelism() int {
	if w == nil {
		return 0
	}
	return w.maxParallelism
}

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with w.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= w.maxParallelism
}

// WaitToStart waits until there is a worker available and starts task in a goroutine.
// It's up to the caller to wait for the task to finish.
//
// If parallelism is disabled, it runs the task inline and returns when it is finished.
func (w *Pool) WaitToStart(task func()) {
	if !w.IsEnabled() {
		task()
		return
	}
	if w.IsUnlimited() {
		go task()
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for w.lockedIsFull() {
		w.cond.Wait()
	}
	w.numRunning++
	go func() {
		defer func() {
			w.mu.Lock()
			w.numRunning--
			w.cond.Signal()
			w.mu.Unlock()
		}()
		task()
	}()
}

// Run calls task(ii) for ii in 0..numTasks-1 and returns once all calls are finished.
//
// Tasks may run in any order and concurrently, unless parallelism is disabled (or w is nil),
// in which case they run sequentially in index order.
func (w *Pool) Run(numTasks int, task func(ii int)) {
	if !w.IsEnabled() {
		for ii := 0; ii < numTasks; ii++ {
			task(ii)
		}
		return
	}
	var wg sync.WaitGroup
	wg.Add(numTasks)
	for ii := 0; ii < numTasks; ii++ {
		w.WaitToStart(func() {
			defer wg.Done()
			task(ii)
		})
	}
	wg.Wait()
}

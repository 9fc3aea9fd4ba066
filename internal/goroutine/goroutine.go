/*
 *    Copyright 2026 The Mercurio Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package goroutine provides the broker-wide worker pool: every
// per-connection read loop runs through Go instead of a bare "go
// func()", so connection count is bounded by pool capacity rather than
// unbounded OS thread/goroutine growth. Router deliveries run on the
// publishing connection's goroutine.
package goroutine

import (
	"runtime"

	"github.com/panjf2000/ants/v2"
)

var pool *ants.Pool

// Init builds the process-wide pool with the given capacity (0 or
// negative picks 256x GOMAXPROCS, ants' convention for "large but
// bounded").
func Init(capacity int) error {
	if capacity <= 0 {
		capacity = runtime.GOMAXPROCS(0) * 256
	}
	p, err := ants.NewPool(capacity, ants.WithNonblocking(false))
	if err != nil {
		return err
	}
	pool = p
	return nil
}

// Go submits task to the pool, falling back to an unmanaged goroutine
// if the pool hasn't been initialized (e.g. in tests).
func Go(task func()) {
	if pool == nil {
		go task()
		return
	}
	if err := pool.Submit(task); err != nil {
		go task()
	}
}

// Release shuts the pool down; it does not wait for running tasks.
func Release() {
	if pool != nil {
		pool.Release()
	}
}

// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package watch

import (
	"sync"
	"time"
)

// Debouncer runs a func once a quiet period has passed since the last
// call to [Debouncer.Trigger].
type Debouncer struct {
	d time.Duration
	f func()

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer
func NewDebouncer(d time.Duration, f func()) *Debouncer {
	return &Debouncer{d: d, f: f}
}

// Trigger cancels any pending run and schedules a new one.
func (db *Debouncer) Trigger() {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.timer != nil {
		db.timer.Stop()
	}
	db.timer = time.AfterFunc(db.d, db.f)
}

// Stop cancels any pending run.
func (db *Debouncer) Stop() {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.timer != nil {
		db.timer.Stop()
		db.timer = nil
	}
}

package sync

import "time"

// Status is the read-only projection the UI renders: the offline banner, the
// pending badge, and the "Sync Now" affordance all derive from it. It holds
// no logic of its own.
type Status struct {
	IsOnline     bool       `json:"is_online"`
	IsSyncing    bool       `json:"is_syncing"`
	PendingCount int        `json:"pending_count"`
	FailedCount  int        `json:"failed_count"`
	LastSync     *time.Time `json:"last_sync,omitempty"`
}

// Status recomputes the projection from the monitor, the store, and the
// engine's own drain state.
func (e *Engine) Status() Status {
	pending, _ := e.store.PendingCount()
	failed, _ := e.store.FailedCount()

	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		IsOnline:     e.online(),
		IsSyncing:    e.isSyncing,
		PendingCount: pending,
		FailedCount:  failed,
		LastSync:     e.lastSync,
	}
}

// OnStatusChange registers a callback invoked whenever the projection may
// have changed, and returns its id. Callbacks must not block; they run on
// whatever goroutine mutated the state.
func (e *Engine) OnStatusChange(fn func(Status)) int {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.nextSub++
	id := e.nextSub
	e.statusSubs[id] = fn
	return id
}

// RemoveStatusListener unregisters a status callback.
func (e *Engine) RemoveStatusListener(id int) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	delete(e.statusSubs, id)
}

// NotifyOnlineChanged lets the composition root forward connectivity
// transitions so banner subscribers re-render without polling.
func (e *Engine) NotifyOnlineChanged() {
	e.notifyStatus()
}

func (e *Engine) notifyStatus() {
	e.statusMu.RLock()
	if len(e.statusSubs) == 0 {
		e.statusMu.RUnlock()
		return
	}
	subs := make([]func(Status), 0, len(e.statusSubs))
	for _, fn := range e.statusSubs {
		subs = append(subs, fn)
	}
	e.statusMu.RUnlock()

	status := e.Status()
	for _, fn := range subs {
		fn(status)
	}
}

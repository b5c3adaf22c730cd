// Package sync provides the offline mutation queue and its drain engine.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	stdsync "sync"

	apperrors "github.com/stockpoint-app/backend/internal/errors"
	"github.com/stockpoint-app/backend/internal/logging"
	"github.com/stockpoint-app/backend/internal/models"
	"github.com/stockpoint-app/backend/internal/remote"
)

// Store is the durable queue surface the engine drives. Implemented by
// db.Store; narrowed here so tests can substitute fakes.
type Store interface {
	AppendOperation(op *models.PendingOperation) error
	ListPending() ([]*models.PendingOperation, error)
	ListFailed() ([]*models.PendingOperation, error)
	Remove(id models.UUID) error
	MarkInFlight(id models.UUID) error
	MarkRetry(id models.UUID, attempts int, nextAttemptAt int64, lastError string) error
	MarkFailed(id models.UUID, reason string) error
	DiscardFailed(id models.UUID) error
	PendingCount() (int, error)
	FailedCount() (int, error)
}

// Options tunes the drain loop.
type Options struct {
	OpTimeout   time.Duration // per-operation remote call budget
	BackoffBase time.Duration // first retry delay
	BackoffCap  time.Duration // retry delay ceiling
}

// DefaultOptions returns the built-in drain tuning.
func DefaultOptions() Options {
	return Options{
		OpTimeout:   15 * time.Second,
		BackoffBase: 30 * time.Second,
		BackoffCap:  time.Hour,
	}
}

// Engine owns the pending-operations queue: it is the single writer that
// records mutation intents while offline and drains them against the remote
// store when connectivity returns or the user asks.
type Engine struct {
	store  Store
	remote remote.DocumentStore
	online func() bool
	opts   Options

	mu        stdsync.Mutex
	isSyncing bool
	rerun     bool
	lastSync  *time.Time
	lastErr   error

	statusMu   stdsync.RWMutex
	statusSubs map[int]func(Status)
	nextSub    int

	// test seam
	now func() time.Time
}

// NewEngine creates an Engine. online reports the connectivity monitor's
// published state; it gates automatic drains but not manual ones.
func NewEngine(store Store, docs remote.DocumentStore, online func() bool, opts Options) *Engine {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOptions().OpTimeout
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultOptions().BackoffBase
	}
	if opts.BackoffCap < opts.BackoffBase {
		opts.BackoffCap = DefaultOptions().BackoffCap
	}
	if online == nil {
		online = func() bool { return true }
	}
	return &Engine{
		store:      store,
		remote:     docs,
		online:     online,
		opts:       opts,
		statusSubs: make(map[int]func(Status)),
		now:        time.Now,
	}
}

// =====================================================
// Enqueue API
// =====================================================

// Enqueue durably records one intended mutation and returns its id.
//
// The write is committed before Enqueue returns; a crash immediately after a
// nil return does not lose the operation. Validation problems are rejected
// here and never queued; only connectivity-shaped failures belong in the
// queue. The caller owns its own optimistic in-memory update.
func (e *Engine) Enqueue(kind models.OperationKind, collection models.Collection, documentID string, patch map[string]interface{}) (models.UUID, error) {
	if !kind.Valid() {
		return "", apperrors.New(apperrors.ErrValidation, fmt.Sprintf("unknown operation kind %q", kind))
	}
	if !collection.Valid() {
		return "", apperrors.New(apperrors.ErrValidation, fmt.Sprintf("unknown collection %q", collection))
	}
	if documentID == "" {
		return "", apperrors.New(apperrors.ErrValidation, "document id must not be empty")
	}
	if kind != models.OpDelete && len(patch) == 0 {
		return "", apperrors.New(apperrors.ErrValidation, "payload must not be empty")
	}

	payload := json.RawMessage("{}")
	if len(patch) > 0 {
		data, err := json.Marshal(patch)
		if err != nil {
			return "", apperrors.Wrap(apperrors.ErrValidation, "unencodable payload", err)
		}
		payload = data
	}

	op := &models.PendingOperation{
		Kind:       kind,
		Collection: collection,
		DocumentID: documentID,
		Payload:    payload,
		EnqueuedAt: e.now().Unix(),
	}
	if err := e.store.AppendOperation(op); err != nil {
		return "", err
	}

	logging.Debug("operation enqueued", map[string]interface{}{
		"op_id":      op.ID.String(),
		"kind":       string(kind),
		"collection": string(collection),
		"doc_id":     documentID,
	})
	e.notifyStatus()
	return op.ID, nil
}

// =====================================================
// Drain
// =====================================================

// Result summarizes one drain pass.
type Result struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Applied   int
	Failed    int // newly marked permanent failures
	Remaining int // still pending after the pass
	Error     string
}

// Drain applies queued operations in FIFO order. Operations still inside
// their backoff window end the pass early, preserving ordering. A Drain
// requested while one is running is coalesced into a single follow-up pass
// and returns nil.
func (e *Engine) Drain(ctx context.Context) (*Result, error) {
	return e.drain(ctx, false)
}

// TriggerSync is the manual "Sync Now" affordance: it drains like Drain but
// ignores the backoff gate.
func (e *Engine) TriggerSync(ctx context.Context) (*Result, error) {
	return e.drain(ctx, true)
}

func (e *Engine) drain(ctx context.Context, force bool) (*Result, error) {
	e.mu.Lock()
	if e.isSyncing {
		// Coalesce: the running pass picks this request up at its end.
		e.rerun = true
		e.mu.Unlock()
		return nil, nil
	}
	e.isSyncing = true
	e.lastErr = nil
	e.mu.Unlock()

	e.notifyStatus()

	var (
		result  *Result
		lastErr error
	)
	for {
		result, lastErr = e.drainCycle(ctx, force)

		e.mu.Lock()
		again := e.rerun && lastErr == nil && ctx.Err() == nil
		e.rerun = false
		if !again {
			e.lastErr = lastErr
			if lastErr == nil {
				t := e.now()
				e.lastSync = &t
			}
			e.isSyncing = false
			e.mu.Unlock()
			break
		}
		e.mu.Unlock()
		force = false
	}

	e.notifyStatus()
	return result, lastErr
}

// drainCycle runs one pass over a snapshot of the queue. Operations enqueued
// mid-pass are picked up by the next pass.
func (e *Engine) drainCycle(ctx context.Context, force bool) (*Result, error) {
	result := &Result{StartTime: e.now()}
	defer func() {
		result.EndTime = e.now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		if remaining, err := e.store.PendingCount(); err == nil {
			result.Remaining = remaining
		}
	}()

	ops, err := e.store.ListPending()
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	if len(ops) == 0 {
		return result, nil
	}

	logging.Info("drain started", map[string]interface{}{
		"pending": len(ops),
		"forced":  force,
	})

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			result.Error = err.Error()
			return result, apperrors.Wrap(apperrors.ErrSyncFailed, "drain cancelled", err)
		}

		// FIFO holds even under backoff: a not-yet-due head ends the pass
		// rather than letting a later op overtake it.
		if !force && !op.Ready(e.now()) {
			return result, nil
		}

		if err := e.store.MarkInFlight(op.ID); err != nil {
			result.Error = err.Error()
			return result, err
		}

		applyErr := e.applyOne(ctx, op)
		if applyErr == nil {
			if err := e.store.Remove(op.ID); err != nil {
				result.Error = err.Error()
				return result, err
			}
			result.Applied++
			e.notifyStatus()
			continue
		}

		if apperrors.IsPermanent(applyErr) {
			logging.Error("operation failed permanently", applyErr, map[string]interface{}{
				"op_id":      op.ID.String(),
				"kind":       string(op.Kind),
				"collection": string(op.Collection),
				"doc_id":     op.DocumentID,
			})
			if err := e.store.MarkFailed(op.ID, applyErr.Error()); err != nil {
				result.Error = err.Error()
				return result, err
			}
			result.Failed++
			e.notifyStatus()
			// Unrelated later operations still drain.
			continue
		}

		// Transient: leave in place with a backoff gate and end the pass so
		// later ops on the same target cannot jump the failed one.
		attempts := op.Attempts + 1
		delay := calculateBackoff(attempts, e.opts.BackoffBase, e.opts.BackoffCap)
		next := e.now().Add(delay).Unix()

		logging.Warn("operation deferred after transient failure", map[string]interface{}{
			"op_id":    op.ID.String(),
			"attempts": attempts,
			"retry_in": delay.String(),
			"error":    applyErr.Error(),
		})
		if err := e.store.MarkRetry(op.ID, attempts, next, applyErr.Error()); err != nil {
			result.Error = err.Error()
			return result, err
		}
		result.Error = applyErr.Error()
		return result, applyErr
	}

	return result, nil
}

// applyOne pushes a single operation to the remote store under the
// per-operation timeout. The dispatch is exhaustive over the closed kind set.
func (e *Engine) applyOne(ctx context.Context, op *models.PendingOperation) error {
	opCtx, cancel := context.WithTimeout(ctx, e.opts.OpTimeout)
	defer cancel()

	var patch remote.Patch
	if len(op.Payload) > 0 {
		if err := json.Unmarshal(op.Payload, &patch); err != nil {
			return apperrors.Wrap(apperrors.ErrValidation, "stored payload is corrupt", err)
		}
	}

	switch op.Kind {
	case models.OpCreate:
		return e.remote.Create(opCtx, op.Collection, op.DocumentID, patch)
	case models.OpUpdate:
		return e.remote.Update(opCtx, op.Collection, op.DocumentID, patch)
	case models.OpDelete:
		err := e.remote.Delete(opCtx, op.Collection, op.DocumentID)
		if apperrors.Is(err, apperrors.ErrNotFound) {
			// Already gone remotely; the intent is satisfied.
			return nil
		}
		return err
	default:
		return apperrors.New(apperrors.ErrValidation, fmt.Sprintf("unknown operation kind %q", op.Kind))
	}
}

// =====================================================
// Introspection
// =====================================================

// IsSyncing reports whether a drain pass is in progress.
func (e *Engine) IsSyncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isSyncing
}

// LastSync returns the end time of the last fully successful drain.
func (e *Engine) LastSync() *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

// LastError returns the error that ended the last drain, nil on success.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// FailedOperations lists permanently failed operations for user inspection.
func (e *Engine) FailedOperations() ([]*models.PendingOperation, error) {
	return e.store.ListFailed()
}

// DiscardFailed drops one inspected permanent failure.
func (e *Engine) DiscardFailed(id models.UUID) error {
	if err := e.store.DiscardFailed(id); err != nil {
		return err
	}
	e.notifyStatus()
	return nil
}

// Package sync provides the offline mutation queue and its drain engine.
package sync

import (
	"context"
	"time"

	"github.com/stockpoint-app/backend/internal/models"
)

// EngineInterface defines the engine surface consumed by the scheduler and
// the UI layer. It allows mocking in tests and alternative implementations.
type EngineInterface interface {
	// Enqueue durably records one intended mutation and returns its id.
	Enqueue(kind models.OperationKind, collection models.Collection, documentID string, patch map[string]interface{}) (models.UUID, error)

	// Drain applies queued operations in FIFO order, honoring backoff gates.
	Drain(ctx context.Context) (*Result, error)

	// TriggerSync drains immediately, ignoring backoff gates (manual "Sync Now").
	TriggerSync(ctx context.Context) (*Result, error)

	// Status returns the read projection for the UI.
	Status() Status

	// IsSyncing reports whether a drain pass is in progress.
	IsSyncing() bool

	// LastSync returns the end time of the last fully successful drain.
	LastSync() *time.Time

	// LastError returns the error that ended the last drain, nil on success.
	LastError() error
}

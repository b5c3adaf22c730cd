// Package remote provides clients for the hosted document store.
package remote

import (
	"context"

	"github.com/stockpoint-app/backend/internal/models"
)

// Patch is a partial field-map describing only the fields to change on a
// target document. Values are absolute (not deltas), which makes re-applying
// the same patch idempotent.
type Patch map[string]interface{}

// DocumentStore is the remote collection/document surface the sync engine
// drains against. The engine depends on Create/Update/Delete; Get exists for
// the read paths of the application.
type DocumentStore interface {
	// Get fetches a document by collection and id.
	Get(ctx context.Context, collection models.Collection, id string) (map[string]interface{}, error)

	// Create stores a new document under a client-assigned id. Creating the
	// same id twice must behave as an upsert so a repeated drain attempt is
	// harmless.
	Create(ctx context.Context, collection models.Collection, id string, doc Patch) error

	// Update applies a partial field patch to an existing document.
	Update(ctx context.Context, collection models.Collection, id string, patch Patch) error

	// Delete removes a document.
	Delete(ctx context.Context, collection models.Collection, id string) error
}

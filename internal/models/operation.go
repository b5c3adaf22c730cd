// Package models provides data model definitions for the StockPoint offline core.
package models

import (
	"encoding/json"
	"time"
)

// OperationKind identifies the semantic mutation recorded by a queue entry.
type OperationKind string

const (
	OpCreate OperationKind = "create"
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
)

// Valid reports whether the kind belongs to the closed set.
func (k OperationKind) Valid() bool {
	switch k {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Collection identifies a remote document collection that queued mutations
// may target. The set is closed so the drain loop can dispatch exhaustively.
type Collection string

const (
	CollectionProducts  Collection = "products"
	CollectionSales     Collection = "sales"
	CollectionRestores  Collection = "restores"
	CollectionBranches  Collection = "branches"
	CollectionEmployees Collection = "employees"
	CollectionBusiness  Collection = "business"
)

// Valid reports whether the collection belongs to the closed set.
func (c Collection) Valid() bool {
	switch c {
	case CollectionProducts, CollectionSales, CollectionRestores,
		CollectionBranches, CollectionEmployees, CollectionBusiness:
		return true
	}
	return false
}

// OperationStatus represents the queue lifecycle state of a pending operation.
type OperationStatus string

const (
	StatusPending  OperationStatus = "pending"
	StatusInFlight OperationStatus = "in_flight"
	StatusFailed   OperationStatus = "failed"
)

// PendingOperation is a durable record of one intended mutation.
//
// Seq is assigned by the store (AUTOINCREMENT) and is the authoritative FIFO
// order; EnqueuedAt is kept for display. ID doubles as the idempotency key:
// the payload is an absolute field patch, so re-applying after a crash
// between apply and removal is harmless.
type PendingOperation struct {
	Seq           int64           `db:"seq" json:"seq"`
	ID            UUID            `db:"id" json:"id"`
	Kind          OperationKind   `db:"kind" json:"kind"`
	Collection    Collection      `db:"collection" json:"collection"`
	DocumentID    string          `db:"document_id" json:"document_id"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	Status        OperationStatus `db:"status" json:"status"`
	Attempts      int             `db:"attempts" json:"attempts"`
	NextAttemptAt int64           `db:"next_attempt_at" json:"next_attempt_at"`
	LastError     string          `db:"last_error" json:"last_error,omitempty"`
	EnqueuedAt    int64           `db:"enqueued_at" json:"enqueued_at"`
}

// TableName returns the table name for PendingOperation.
func (PendingOperation) TableName() string {
	return "pending_operations"
}

// EnqueuedAtTime returns EnqueuedAt as time.Time.
func (p *PendingOperation) EnqueuedAtTime() time.Time {
	return time.Unix(p.EnqueuedAt, 0)
}

// Ready reports whether the operation is eligible for a drain attempt at now,
// i.e. its backoff gate has elapsed.
func (p *PendingOperation) Ready(now time.Time) bool {
	return p.NextAttemptAt <= now.Unix()
}

// Package db provides the durable local store for the offline core.
package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/stockpoint-app/backend/internal/errors"
	"github.com/stockpoint-app/backend/internal/models"
	"github.com/stockpoint-app/backend/internal/uuid"
)

// Store provides durable access to the pending-operations queue and the
// cached user profile. Every write is committed before the call returns;
// there is no in-memory buffering between an accepted enqueue and disk.
type Store struct {
	db       *sql.DB
	queueCap int

	// Prepared statement cache for frequently used queries.
	// Statements are prepared on first use and cached for reuse.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewStore creates a new Store. queueCap bounds the number of live
// (pending or in-flight) operations; 0 means unbounded.
func NewStore(db *sql.DB, queueCap int) *Store {
	return &Store{db: db, queueCap: queueCap}
}

// PrepareStmt gets or creates a prepared statement from the cache.
func (s *Store) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := s.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := s.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}
	return stmt, nil
}

// Close closes all cached prepared statements.
func (s *Store) Close() error {
	var firstErr error
	s.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

const operationColumns = `seq, id, kind, collection, document_id, payload, status, attempts, next_attempt_at, last_error, enqueued_at`

// =====================================================
// PendingOperation Queue
// =====================================================

// AppendOperation persists a new pending operation. ID and EnqueuedAt are
// assigned here when unset. The INSERT commits before the call returns, so a
// caller that sees a nil error may crash immediately without losing the write.
func (s *Store) AppendOperation(op *models.PendingOperation) error {
	if s.queueCap > 0 {
		count, err := s.PendingCount()
		if err != nil {
			return err
		}
		if count >= s.queueCap {
			return apperrors.New(apperrors.ErrQueueFull,
				fmt.Sprintf("pending queue is full (cap %d)", s.queueCap))
		}
	}

	if op.ID == "" {
		op.ID = models.UUID(uuid.New())
	}
	if op.EnqueuedAt == 0 {
		op.EnqueuedAt = time.Now().Unix()
	}
	op.Status = models.StatusPending

	query := `
	INSERT INTO pending_operations (id, kind, collection, document_id, payload, status, attempts, next_attempt_at, last_error, enqueued_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.Exec(query, op.ID, op.Kind, op.Collection, op.DocumentID,
		string(op.Payload), op.Status, op.Attempts, op.NextAttemptAt, op.LastError, op.EnqueuedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to append operation", err)
	}
	op.Seq, _ = res.LastInsertId()
	return nil
}

// ListPending returns the live queue ordered by sequence number. In-flight
// entries are included: they are crash leftovers from an interrupted drain
// and must be re-attempted (the apply is idempotent).
func (s *Store) ListPending() ([]*models.PendingOperation, error) {
	query := `SELECT ` + operationColumns + `
	FROM pending_operations WHERE status IN ('pending', 'in_flight') ORDER BY seq`
	return s.listOperations(query)
}

// ListFailed returns permanently failed operations, retained for user
// inspection, ordered by sequence number.
func (s *Store) ListFailed() ([]*models.PendingOperation, error) {
	query := `SELECT ` + operationColumns + `
	FROM pending_operations WHERE status = 'failed' ORDER BY seq`
	return s.listOperations(query)
}

func (s *Store) listOperations(query string) ([]*models.PendingOperation, error) {
	stmt, err := s.PrepareStmt(query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to list operations", err)
	}

	rows, err := stmt.Query()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to list operations", err)
	}
	defer rows.Close()

	var ops []*models.PendingOperation
	for rows.Next() {
		var op models.PendingOperation
		var payload string
		err := rows.Scan(&op.Seq, &op.ID, &op.Kind, &op.Collection, &op.DocumentID,
			&payload, &op.Status, &op.Attempts, &op.NextAttemptAt, &op.LastError, &op.EnqueuedAt)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to scan operation", err)
		}
		op.Payload = []byte(payload)
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to iterate operations", err)
	}
	return ops, nil
}

// Remove deletes an operation after its remote apply was acknowledged.
func (s *Store) Remove(id models.UUID) error {
	result, err := s.db.Exec(`DELETE FROM pending_operations WHERE id = ?`, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to remove operation", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("operation not found: %s", id))
	}
	return nil
}

// MarkInFlight flags an operation as being applied, for crash visibility.
func (s *Store) MarkInFlight(id models.UUID) error {
	return s.setStatus(id, models.StatusInFlight, "")
}

// MarkRetry records a transient failure: attempts, the backoff gate, and the
// last error, returning the operation to pending.
func (s *Store) MarkRetry(id models.UUID, attempts int, nextAttemptAt int64, lastError string) error {
	query := `
	UPDATE pending_operations
	SET status = 'pending', attempts = ?, next_attempt_at = ?, last_error = ?
	WHERE id = ?
	`
	result, err := s.db.Exec(query, attempts, nextAttemptAt, lastError, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to mark retry", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("operation not found: %s", id))
	}
	return nil
}

// MarkFailed records a permanent failure. The row is kept out of the active
// queue but retained so the user can inspect and discard it.
func (s *Store) MarkFailed(id models.UUID, reason string) error {
	return s.setStatus(id, models.StatusFailed, reason)
}

func (s *Store) setStatus(id models.UUID, status models.OperationStatus, lastError string) error {
	query := `UPDATE pending_operations SET status = ?, last_error = ? WHERE id = ?`
	result, err := s.db.Exec(query, status, lastError, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to update operation status", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("operation not found: %s", id))
	}
	return nil
}

// DiscardFailed removes a permanently failed operation after user review.
func (s *Store) DiscardFailed(id models.UUID) error {
	result, err := s.db.Exec(`DELETE FROM pending_operations WHERE id = ? AND status = 'failed'`, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to discard operation", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("failed operation not found: %s", id))
	}
	return nil
}

// PendingCount returns the number of live (pending or in-flight) operations.
func (s *Store) PendingCount() (int, error) {
	stmt, err := s.PrepareStmt(`SELECT COUNT(*) FROM pending_operations WHERE status IN ('pending', 'in_flight')`)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to count operations", err)
	}
	var count int
	if err := stmt.QueryRow().Scan(&count); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to count operations", err)
	}
	return count, nil
}

// FailedCount returns the number of permanently failed operations.
func (s *Store) FailedCount() (int, error) {
	stmt, err := s.PrepareStmt(`SELECT COUNT(*) FROM pending_operations WHERE status = 'failed'`)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to count operations", err)
	}
	var count int
	if err := stmt.QueryRow().Scan(&count); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to count operations", err)
	}
	return count, nil
}

// ClearOperations empties the whole queue, failed entries included.
// Used on sign-out: the queue is tied to the signed-in identity.
func (s *Store) ClearOperations() error {
	if _, err := s.db.Exec(`DELETE FROM pending_operations`); err != nil {
		return apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to clear operations", err)
	}
	return nil
}

// =====================================================
// CachedUserProfile
// =====================================================

// GetCachedUser returns the cached profile snapshot, or NOT_FOUND when the
// cache is empty.
func (s *Store) GetCachedUser() (*models.CachedUserProfile, error) {
	query := `SELECT id, name, role, branch_id, business_id, is_active, avatar_url, cached_at
	FROM cached_user LIMIT 1`

	var p models.CachedUserProfile
	err := s.db.QueryRow(query).Scan(&p.ID, &p.Name, &p.Role, &p.BranchID,
		&p.BusinessID, &p.IsActive, &p.AvatarURL, &p.CachedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.ErrNotFound, "no cached user profile")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to read cached user", err)
	}
	return &p, nil
}

// SetCachedUser overwrites the cached profile snapshot. The cache holds at
// most one profile: the currently signed-in user.
func (s *Store) SetCachedUser(p *models.CachedUserProfile) error {
	if p.CachedAt == 0 {
		p.CachedAt = time.Now().Unix()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to cache user", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cached_user WHERE id != ?`, p.ID); err != nil {
		return apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to cache user", err)
	}

	query := `
	INSERT INTO cached_user (id, name, role, branch_id, business_id, is_active, avatar_url, cached_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		role = excluded.role,
		branch_id = excluded.branch_id,
		business_id = excluded.business_id,
		is_active = excluded.is_active,
		avatar_url = excluded.avatar_url,
		cached_at = excluded.cached_at
	`
	if _, err := tx.Exec(query, p.ID, p.Name, p.Role, p.BranchID,
		p.BusinessID, p.IsActive, p.AvatarURL, p.CachedAt); err != nil {
		return apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to cache user", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to cache user", err)
	}
	return nil
}

// ClearCachedUser removes the cached profile (sign-out).
func (s *Store) ClearCachedUser() error {
	if _, err := s.db.Exec(`DELETE FROM cached_user`); err != nil {
		return apperrors.Wrap(apperrors.ErrStorageUnavailable, "failed to clear cached user", err)
	}
	return nil
}

// Package models provides data model definitions for the StockPoint offline core.
package models

import "time"

// CachedUserProfile is a denormalized last-known-good snapshot of the
// signed-in identity. It is a read cache for offline continuity only: it is
// overwritten on every successful identity fetch, read when the identity
// provider is unreachable, and deleted on sign-out. It is never synced.
type CachedUserProfile struct {
	ID         string `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Role       string `db:"role" json:"role"`
	BranchID   string `db:"branch_id" json:"branch_id,omitempty"`
	BusinessID string `db:"business_id" json:"business_id,omitempty"`
	IsActive   bool   `db:"is_active" json:"is_active"`
	AvatarURL  string `db:"avatar_url" json:"avatar_url,omitempty"`
	CachedAt   int64  `db:"cached_at" json:"cached_at"`
}

// TableName returns the table name for CachedUserProfile.
func (CachedUserProfile) TableName() string {
	return "cached_user"
}

// CachedAtTime returns CachedAt as time.Time.
func (c *CachedUserProfile) CachedAtTime() time.Time {
	return time.Unix(c.CachedAt, 0)
}

// Package auth provides the signed-in identity with offline continuity.
package auth

import (
	"context"
	"sync"

	apperrors "github.com/stockpoint-app/backend/internal/errors"
	"github.com/stockpoint-app/backend/internal/logging"
	"github.com/stockpoint-app/backend/internal/models"
)

// Identity is the external authentication provider: it returns the current
// user's profile and a bearer token.
type Identity interface {
	CurrentUser(ctx context.Context) (*models.CachedUserProfile, string, error)
}

// ProfileCache is the durable store surface the service caches profiles in.
type ProfileCache interface {
	GetCachedUser() (*models.CachedUserProfile, error)
	SetCachedUser(*models.CachedUserProfile) error
	ClearCachedUser() error
	ClearOperations() error
}

// Service resolves the signed-in profile, falling back to the last cached
// snapshot when the identity provider is unreachable. The cache is read-only
// continuity: it is overwritten on every successful fetch and never synced.
type Service struct {
	identity Identity
	cache    ProfileCache

	mu    sync.RWMutex
	token string
}

// NewService creates a Service.
func NewService(identity Identity, cache ProfileCache) *Service {
	return &Service{identity: identity, cache: cache}
}

// Profile returns the signed-in user's profile.
//
// A fresh fetch refreshes the cache and the held token. A transient fetch
// failure falls back to the cached snapshot; a permanent failure (revoked
// session, disabled account) is returned as-is and never masked by the cache.
func (s *Service) Profile(ctx context.Context) (*models.CachedUserProfile, error) {
	profile, token, err := s.identity.CurrentUser(ctx)
	if err == nil {
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()

		if cacheErr := s.cache.SetCachedUser(profile); cacheErr != nil {
			logging.Warn("failed to refresh cached profile",
				map[string]interface{}{"error": cacheErr.Error()})
		}
		return profile, nil
	}

	if apperrors.IsPermanent(err) {
		return nil, err
	}

	cached, cacheErr := s.cache.GetCachedUser()
	if cacheErr != nil {
		return nil, apperrors.Wrap(apperrors.ErrAuthFailed,
			"identity provider unreachable and no cached profile", err)
	}

	logging.Info("using cached profile while identity provider is unreachable",
		map[string]interface{}{"user_id": cached.ID})
	return cached, nil
}

// Token returns the most recently issued bearer token, empty when signed out.
func (s *Service) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SignOut clears the cached profile, the held token, and the pending
// operation queue. Queued mutations belong to the signed-in identity and
// must not drain under a different account.
func (s *Service) SignOut() error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()

	if err := s.cache.ClearCachedUser(); err != nil {
		return err
	}
	if err := s.cache.ClearOperations(); err != nil {
		return err
	}
	logging.Info("signed out; cached profile and pending queue cleared", nil)
	return nil
}

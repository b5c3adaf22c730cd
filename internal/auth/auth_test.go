package auth

import (
	"context"
	"testing"

	apperrors "github.com/stockpoint-app/backend/internal/errors"
	"github.com/stockpoint-app/backend/internal/models"
)

// fakeIdentity scripts the identity provider.
type fakeIdentity struct {
	profile *models.CachedUserProfile
	token   string
	err     error
}

func (f *fakeIdentity) CurrentUser(ctx context.Context) (*models.CachedUserProfile, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.profile, f.token, nil
}

// fakeCache is an in-memory ProfileCache.
type fakeCache struct {
	profile      *models.CachedUserProfile
	opsCleared   bool
	cacheCleared bool
}

func (f *fakeCache) GetCachedUser() (*models.CachedUserProfile, error) {
	if f.profile == nil {
		return nil, apperrors.New(apperrors.ErrNotFound, "no cached user profile")
	}
	return f.profile, nil
}

func (f *fakeCache) SetCachedUser(p *models.CachedUserProfile) error {
	f.profile = p
	return nil
}

func (f *fakeCache) ClearCachedUser() error {
	f.profile = nil
	f.cacheCleared = true
	return nil
}

func (f *fakeCache) ClearOperations() error {
	f.opsCleared = true
	return nil
}

func TestProfileFreshFetchRefreshesCacheAndToken(t *testing.T) {
	identity := &fakeIdentity{
		profile: &models.CachedUserProfile{ID: "u1", Name: "Amina", Role: "manager"},
		token:   "tok-fresh",
	}
	cache := &fakeCache{}
	svc := NewService(identity, cache)

	profile, err := svc.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if profile.ID != "u1" {
		t.Errorf("profile id = %s, want u1", profile.ID)
	}
	if cache.profile == nil || cache.profile.ID != "u1" {
		t.Error("a fresh fetch must refresh the cache")
	}
	if svc.Token() != "tok-fresh" {
		t.Errorf("Token() = %q, want tok-fresh", svc.Token())
	}
}

func TestProfileTransientFailureFallsBackToCache(t *testing.T) {
	identity := &fakeIdentity{err: apperrors.New(apperrors.ErrNetworkUnavailable, "unreachable")}
	cache := &fakeCache{profile: &models.CachedUserProfile{ID: "u1", Name: "Amina", Role: "manager"}}
	svc := NewService(identity, cache)

	profile, err := svc.Profile(context.Background())
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if profile.ID != "u1" {
		t.Errorf("profile id = %s, want the cached snapshot", profile.ID)
	}
}

func TestProfileTransientFailureWithEmptyCache(t *testing.T) {
	identity := &fakeIdentity{err: apperrors.New(apperrors.ErrNetworkUnavailable, "unreachable")}
	svc := NewService(identity, &fakeCache{})

	_, err := svc.Profile(context.Background())
	if err == nil {
		t.Fatal("expected an error with no cache to fall back on")
	}
	if !apperrors.Is(err, apperrors.ErrAuthFailed) {
		t.Errorf("code = %s, want AUTH_FAILED", apperrors.Code(err))
	}
}

// TestProfilePermanentFailureIsNeverMasked verifies a revoked session is not
// papered over by a stale cached profile.
func TestProfilePermanentFailureIsNeverMasked(t *testing.T) {
	identity := &fakeIdentity{err: apperrors.New(apperrors.ErrPermission, "session revoked")}
	cache := &fakeCache{profile: &models.CachedUserProfile{ID: "u1", Name: "Amina", Role: "manager"}}
	svc := NewService(identity, cache)

	_, err := svc.Profile(context.Background())
	if err == nil {
		t.Fatal("expected the permanent error to surface")
	}
	if !apperrors.Is(err, apperrors.ErrPermission) {
		t.Errorf("code = %s, want PERMISSION_DENIED", apperrors.Code(err))
	}
}

func TestSignOutClearsEverything(t *testing.T) {
	identity := &fakeIdentity{
		profile: &models.CachedUserProfile{ID: "u1", Name: "Amina", Role: "manager"},
		token:   "tok-fresh",
	}
	cache := &fakeCache{}
	svc := NewService(identity, cache)

	if _, err := svc.Profile(context.Background()); err != nil {
		t.Fatalf("Profile failed: %v", err)
	}

	if err := svc.SignOut(); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if svc.Token() != "" {
		t.Error("token should be empty after sign-out")
	}
	if !cache.cacheCleared {
		t.Error("cached profile should be cleared on sign-out")
	}
	if !cache.opsCleared {
		t.Error("pending queue should be cleared on sign-out")
	}
}

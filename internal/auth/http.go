package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/stockpoint-app/backend/internal/errors"
	"github.com/stockpoint-app/backend/internal/models"
)

// HTTPIdentity resolves the signed-in user from the hosted auth endpoint
// (GET /v1/me). The device token is exchanged for a fresh session token on
// every call.
type HTTPIdentity struct {
	base        string
	client      *http.Client
	deviceToken func() string
}

// NewHTTPIdentity creates an HTTPIdentity.
func NewHTTPIdentity(baseURL string, client *http.Client, deviceToken func() string) *HTTPIdentity {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPIdentity{base: baseURL, client: client, deviceToken: deviceToken}
}

type meResponse struct {
	Profile models.CachedUserProfile `json:"profile"`
	Token   string                   `json:"token"`
}

// CurrentUser implements Identity.
func (h *HTTPIdentity) CurrentUser(ctx context.Context) (*models.CachedUserProfile, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/v1/me", nil)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.ErrInvalid, "failed to build identity request", err)
	}
	req.Header.Set("Accept", "application/json")
	if h.deviceToken != nil {
		if tok := h.deviceToken(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.ErrNetworkUnavailable, "identity provider unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, "", apperrors.New(apperrors.ErrPermission,
			fmt.Sprintf("identity provider rejected the session (%d)", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, "", apperrors.New(apperrors.ErrNetworkUnavailable,
			fmt.Sprintf("identity provider returned %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, "", apperrors.Wrap(apperrors.ErrNetworkUnavailable, "failed to read identity response", err)
	}

	var me meResponse
	if err := json.Unmarshal(data, &me); err != nil {
		return nil, "", apperrors.Wrap(apperrors.ErrInternal, "malformed identity response", err)
	}
	return &me.Profile, me.Token, nil
}

// Package remote provides clients for the hosted document store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/stockpoint-app/backend/internal/errors"
	"github.com/stockpoint-app/backend/internal/models"
)

// TokenSource supplies the current bearer token, empty when signed out.
type TokenSource func() string

// HTTPStore is the REST client for the hosted document store.
//
// Routes: GET/PUT/PATCH/DELETE /v1/{collection}/{id}. PUT with a
// client-assigned id is an upsert, PATCH carries a partial field map; both
// are idempotent, which the drain loop relies on.
type HTTPStore struct {
	base   string
	client *http.Client
	token  TokenSource
}

// NewHTTPStore creates an HTTPStore. token may be nil for anonymous access.
func NewHTTPStore(baseURL string, client *http.Client, token TokenSource) *HTTPStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPStore{base: baseURL, client: client, token: token}
}

// Get fetches a document by collection and id.
func (s *HTTPStore) Get(ctx context.Context, collection models.Collection, id string) (map[string]interface{}, error) {
	body, err := s.do(ctx, http.MethodGet, collection, id, nil)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "malformed document body", err)
	}
	return doc, nil
}

// Create upserts a new document under a client-assigned id.
func (s *HTTPStore) Create(ctx context.Context, collection models.Collection, id string, doc Patch) error {
	_, err := s.do(ctx, http.MethodPut, collection, id, doc)
	return err
}

// Update applies a partial field patch to an existing document.
func (s *HTTPStore) Update(ctx context.Context, collection models.Collection, id string, patch Patch) error {
	_, err := s.do(ctx, http.MethodPatch, collection, id, patch)
	return err
}

// Delete removes a document.
func (s *HTTPStore) Delete(ctx context.Context, collection models.Collection, id string) error {
	_, err := s.do(ctx, http.MethodDelete, collection, id, nil)
	return err
}

func (s *HTTPStore) do(ctx context.Context, method string, collection models.Collection, id string, payload Patch) ([]byte, error) {
	url := fmt.Sprintf("%s/v1/%s/%s", s.base, collection, id)

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalid, "unencodable payload", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != nil {
		if tok := s.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || (ctx.Err() == context.DeadlineExceeded) {
			return nil, apperrors.Wrap(apperrors.ErrSyncTimeout,
				fmt.Sprintf("%s %s/%s timed out", method, collection, id), err)
		}
		return nil, apperrors.Wrap(apperrors.ErrNetworkUnavailable,
			fmt.Sprintf("%s %s/%s failed", method, collection, id), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNetworkUnavailable, "failed to read response", err)
	}

	if code := classifyStatus(resp.StatusCode); code != "" {
		return nil, apperrors.New(code,
			fmt.Sprintf("%s %s/%s returned %d", method, collection, id, resp.StatusCode))
	}
	return data, nil
}

// classifyStatus maps an HTTP status onto the error taxonomy; "" means ok.
func classifyStatus(status int) apperrors.ErrorCode {
	switch {
	case status >= 200 && status < 300:
		return ""
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.ErrPermission
	case status == http.StatusNotFound || status == http.StatusGone:
		return apperrors.ErrNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return apperrors.ErrValidation
	case status == http.StatusRequestTimeout:
		return apperrors.ErrSyncTimeout
	case status == http.StatusTooManyRequests:
		return apperrors.ErrRateLimited
	case status >= 500:
		return apperrors.ErrNetworkUnavailable
	default:
		return apperrors.ErrInternal
	}
}

// ABOUTME: HTTP client for the Circle community platform API
// ABOUTME: Creates, renames, and deletes spaces and invites members across the v1 and admin v2 APIs

package circle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Space is a Circle space as returned by the admin API.
type Space struct {
	ID   string
	Name string
	Slug string
}

// Community is a Circle community the token can see.
type Community struct {
	ID   string
	Name string
}

// SpaceGroup is a grouping of spaces within a community.
type SpaceGroup struct {
	ID   string
	Name string
}

// CreateSpaceParams describes a space to create.
type CreateSpaceParams struct {
	CommunityID          string
	SpaceGroupID         string
	Name                 string
	Slug                 string
	Private              bool
	HiddenFromNonMembers bool
	Hidden               bool
}

// Client performs space and membership operations against Circle.
//
// Circle splits its surface across two APIs: space creation and updates go
// through the admin v2 API, while deletion, member invites, and community
// discovery only exist on v1. Each API takes its own token.
type Client interface {
	CreateSpace(ctx context.Context, params CreateSpaceParams) (string, error)
	RenameSpace(ctx context.Context, spaceID, name, slug string) error
	DeleteSpace(ctx context.Context, spaceID string) error
	InviteMember(ctx context.Context, email, communityID, spaceID string) error
	ListCommunities(ctx context.Context) ([]Community, error)
	ListSpaceGroups(ctx context.Context, communityID string) ([]SpaceGroup, error)
}

// APIError is a non-2xx response from Circle.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("circle API returned %d: %s", e.StatusCode, e.Body)
}

// HTTPClient talks to the real Circle API.
type HTTPClient struct {
	baseURL string
	tokenV1 string
	tokenV2 string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a Circle client.
func NewHTTPClient(baseURL, tokenV1, tokenV2 string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		tokenV1: tokenV1,
		tokenV2: tokenV2,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "circle"),
	}
}

// doV1 performs a request against the v1 API with token auth.
func (c *HTTPClient) doV1(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.tokenV1)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client.Do(req)
}

// doV2 performs a request against the admin v2 API with bearer auth.
func (c *HTTPClient) doV2(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.tokenV2)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client.Do(req)
}

// readBody drains and closes the response body, truncated for error messages.
func readBody(resp *http.Response) string {
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return ""
	}
	return string(b)
}

// CreateSpace creates a new course space and returns its Circle space ID.
func (c *HTTPClient) CreateSpace(ctx context.Context, params CreateSpaceParams) (string, error) {
	payload := map[string]any{
		"community_id":               params.CommunityID,
		"name":                       params.Name,
		"slug":                       params.Slug,
		"is_private":                 params.Private,
		"is_hidden_from_non_members": params.HiddenFromNonMembers,
		"is_hidden":                  params.Hidden,
		"space_group_id":             params.SpaceGroupID,
		"topics":                     []int{1},
		"space_type":                 "course",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding space payload: %w", err)
	}

	resp, err := c.doV2(ctx, http.MethodPost, "/api/admin/v2/spaces", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating space: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: readBody(resp)}
	}

	var parsed struct {
		Space struct {
			ID json.Number `json:"id"`
		} `json:"space"`
	}
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding space response: %w", err)
	}
	if parsed.Space.ID.String() == "" {
		return "", fmt.Errorf("space response missing id")
	}

	c.logger.Info("created space", "space_id", parsed.Space.ID.String(), "name", params.Name)
	return parsed.Space.ID.String(), nil
}

// RenameSpace updates a space's name and slug.
func (c *HTTPClient) RenameSpace(ctx context.Context, spaceID, name, slug string) error {
	payload := map[string]any{
		"name": name,
		"slug": slug,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding rename payload: %w", err)
	}

	resp, err := c.doV2(ctx, http.MethodPatch, "/api/admin/v2/spaces/"+url.PathEscape(spaceID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("renaming space: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: readBody(resp)}
	}
	_ = resp.Body.Close()

	c.logger.Info("renamed space", "space_id", spaceID, "name", name)
	return nil
}

// DeleteSpace removes a space. Circle answers 200 or 204 on success.
func (c *HTTPClient) DeleteSpace(ctx context.Context, spaceID string) error {
	resp, err := c.doV1(ctx, http.MethodDelete, "/api/v1/spaces/"+url.PathEscape(spaceID), nil)
	if err != nil {
		return fmt.Errorf("deleting space: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return &APIError{StatusCode: resp.StatusCode, Body: readBody(resp)}
	}
	_ = resp.Body.Close()

	c.logger.Info("deleted space", "space_id", spaceID)
	return nil
}

// InviteMember adds a member to a space by email. Circle creates the
// membership if it does not exist and answers 2xx either way, so inviting an
// existing member is safe.
func (c *HTTPClient) InviteMember(ctx context.Context, email, communityID, spaceID string) error {
	q := url.Values{}
	q.Set("email", email)
	q.Set("community_id", communityID)
	q.Set("space_id", spaceID)

	resp, err := c.doV1(ctx, http.MethodPost, "/api/v1/space_members?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("inviting member: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Body: readBody(resp)}
	}
	_ = resp.Body.Close()

	c.logger.Info("invited member", "space_id", spaceID)
	return nil
}

// ListCommunities returns the communities visible to the v1 token.
func (c *HTTPClient) ListCommunities(ctx context.Context) ([]Community, error) {
	resp, err := c.doV1(ctx, http.MethodGet, "/api/v1/communities", nil)
	if err != nil {
		return nil, fmt.Errorf("listing communities: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: readBody(resp)}
	}

	var parsed []struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
	}
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding communities response: %w", err)
	}

	communities := make([]Community, 0, len(parsed))
	for _, raw := range parsed {
		communities = append(communities, Community{ID: raw.ID.String(), Name: raw.Name})
	}
	return communities, nil
}

// ListSpaceGroups returns the space groups for a community.
func (c *HTTPClient) ListSpaceGroups(ctx context.Context, communityID string) ([]SpaceGroup, error) {
	q := url.Values{}
	q.Set("community_id", communityID)

	resp, err := c.doV1(ctx, http.MethodGet, "/api/v1/space_groups?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("listing space groups: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: readBody(resp)}
	}

	var parsed []struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
	}
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding space groups response: %w", err)
	}

	groups := make([]SpaceGroup, 0, len(parsed))
	for _, raw := range parsed {
		groups = append(groups, SpaceGroup{ID: raw.ID.String(), Name: raw.Name})
	}
	return groups, nil
}

var _ Client = (*HTTPClient)(nil)

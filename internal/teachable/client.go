// ABOUTME: HTTP client for the Teachable course API
// ABOUTME: Lists courses with apiKey header auth and classifies API errors

package teachable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Course is a single course as reported by Teachable.
// Teachable sends numeric IDs; we normalize them to strings at the edge so
// the rest of the system never does arithmetic on them.
type Course struct {
	ID   string
	Name string
}

// Client lists the courses that currently exist in Teachable.
type Client interface {
	ListCourses(ctx context.Context) ([]Course, error)
}

// APIError is a non-2xx response from Teachable.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("teachable API returned %d: %s", e.StatusCode, e.Body)
}

// IsUnauthorized reports whether err is a Teachable 401, meaning the
// configured API key is missing or wrong.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a Teachable 404, which usually means the
// account has no API access on its current plan.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// HTTPClient talks to the real Teachable API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a Teachable client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "teachable"),
	}
}

// coursesResponse mirrors the Teachable list payload.
type coursesResponse struct {
	Courses []struct {
		ID   json.Number `json:"id"`
		Name string      `json:"name"`
	} `json:"courses"`
}

// ListCourses fetches all courses from Teachable.
func (c *HTTPClient) ListCourses(ctx context.Context) ([]Course, error) {
	url := c.baseURL + "/v1/courses"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building courses request: %w", err)
	}
	req.Header.Set("apiKey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching courses: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading courses response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("courses request failed", "status", resp.StatusCode)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var parsed coursesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding courses response: %w", err)
	}

	courses := make([]Course, 0, len(parsed.Courses))
	for _, raw := range parsed.Courses {
		courses = append(courses, Course{
			ID:   raw.ID.String(),
			Name: raw.Name,
		})
	}

	c.logger.Debug("listed courses", "count", len(courses))
	return courses, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ Client = (*HTTPClient)(nil)

// ABOUTME: Tests for the Teachable HTTP client against a stub server
// ABOUTME: Covers course listing, ID normalization, and error classification

package teachable

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestListCourses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/courses", r.URL.Path)
		assert.Equal(t, "tk-123", r.Header.Get("apiKey"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"courses":[{"id":101,"name":"Intro 101"},{"id":202,"name":"Advanced"}]}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "tk-123", 5*time.Second, testLogger())

	courses, err := client.ListCourses(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 2)

	// Numeric IDs come back as strings
	assert.Equal(t, "101", courses[0].ID)
	assert.Equal(t, "Intro 101", courses[0].Name)
	assert.Equal(t, "202", courses[1].ID)
}

func TestListCourses_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"courses":[]}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "tk-123", 5*time.Second, testLogger())

	courses, err := client.ListCourses(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, courses)
	assert.Empty(t, courses)
}

func TestListCourses_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid key"}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "bad-key", 5*time.Second, testLogger())

	_, err := client.ListCourses(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.False(t, IsNotFound(err))
}

func TestListCourses_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "tk-123", 5*time.Second, testLogger())

	_, err := client.ListCourses(context.Background())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsUnauthorized(err))
}

func TestListCourses_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "tk-123", 5*time.Second, testLogger())

	_, err := client.ListCourses(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestListCourses_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "tk-123", 5*time.Second, testLogger())

	_, err := client.ListCourses(context.Background())
	assert.Error(t, err)
}

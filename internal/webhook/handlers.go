// ABOUTME: HTTP handlers for inbound enrollment webhooks and the read-only admin API
// ABOUTME: Maps reconciler outcomes onto HTTP statuses and guards routes with secrets

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/spacesync/internal/auth"
	"github.com/2389/spacesync/internal/reconcile"
	"github.com/2389/spacesync/internal/store"
)

// enrollmentHandler is the slice of the reconciler the webhook needs.
// This allows injecting mock implementations for testing.
type enrollmentHandler interface {
	HandleEnrollment(ctx context.Context, ev reconcile.Event) (string, error)
}

// Handler serves the webhook and admin API routes.
type Handler struct {
	reconciler    enrollmentHandler
	store         store.Store
	verifier      auth.TokenVerifier
	webhookSecret string
	logger        *slog.Logger
}

// New creates a Handler. verifier may be nil, in which case the admin API
// is unauthenticated. webhookSecret may be empty, in which case the
// enrollment webhook accepts any caller.
func New(reconciler enrollmentHandler, st store.Store, verifier auth.TokenVerifier, webhookSecret string, logger *slog.Logger) *Handler {
	return &Handler{
		reconciler:    reconciler,
		store:         st,
		verifier:      verifier,
		webhookSecret: webhookSecret,
		logger:        logger.With("component", "webhook"),
	}
}

// Routes returns the HTTP mux with all routes registered.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/teachable/enrollment", h.handleEnrollment)
	mux.HandleFunc("/api/mappings", h.requireAuth(h.handleListMappings))
	mux.HandleFunc("/api/logs", h.requireAuth(h.handleListLogs))
	mux.HandleFunc("/health", h.handleHealth)
	return mux
}

// enrollmentPayload mirrors the Teachable webhook body.
type enrollmentPayload struct {
	Object struct {
		Course struct {
			ID   json.Number `json:"id"`
			Name string      `json:"name"`
		} `json:"course"`
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	} `json:"object"`
}

// handleEnrollment processes one enrollment webhook.
func (h *Handler) handleEnrollment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if h.webhookSecret != "" && r.Header.Get("X-Webhook-Secret") != h.webhookSecret {
		h.sendJSONError(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	var payload enrollmentPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ev := reconcile.Event{
		CourseID:    payload.Object.Course.ID.String(),
		CourseName:  payload.Object.Course.Name,
		MemberEmail: payload.Object.User.Email,
	}

	spaceID, err := h.reconciler.HandleEnrollment(r.Context(), ev)
	if err != nil {
		var verr *reconcile.ValidationError
		switch {
		case errors.As(err, &verr):
			h.sendJSONError(w, http.StatusBadRequest, verr.Error())
		case errors.Is(err, reconcile.ErrMissingCredentials):
			h.sendJSONError(w, http.StatusInternalServerError, "registry credentials not configured")
		case errors.Is(err, reconcile.ErrInviteFailed):
			// Space exists; the caller may redeliver to retry the invite.
			h.sendJSONError(w, http.StatusBadGateway, "space ready but member invite failed")
		default:
			h.logger.Error("enrollment failed", "course_id", ev.CourseID, "error", err)
			h.sendJSONError(w, http.StatusInternalServerError, "space creation failed")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message":  "enrollment processed",
		"space_id": spaceID,
	})
}

// mappingResponse is the JSON shape for a course-space mapping.
type mappingResponse struct {
	CourseID   string `json:"course_id"`
	SpaceID    string `json:"space_id"`
	CourseName string `json:"course_name"`
	Slug       string `json:"slug"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// handleListMappings returns all course-space mappings.
func (h *Handler) handleListMappings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	mappings, err := h.store.ListMappings(r.Context())
	if err != nil {
		h.logger.Error("failed to list mappings", "error", err)
		h.sendJSONError(w, http.StatusInternalServerError, "failed to list mappings")
		return
	}

	resp := make([]mappingResponse, 0, len(mappings))
	for _, m := range mappings {
		resp = append(resp, mappingResponse{
			CourseID:   m.CourseID,
			SpaceID:    m.SpaceID,
			CourseName: m.CourseName,
			Slug:       m.Slug,
			CreatedAt:  m.CreatedAt.Format(time.RFC3339),
			UpdatedAt:  m.UpdatedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"mappings": resp})
}

// logEntryResponse is the JSON shape for an action log entry.
type logEntryResponse struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// handleListLogs returns action log entries, newest first. Supports
// ?action=, ?limit=, and ?offset= query parameters.
func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var filter store.ActionFilter

	if raw := r.URL.Query().Get("action"); raw != "" {
		action := store.Action(raw)
		if !action.Valid() {
			h.sendJSONError(w, http.StatusBadRequest, "unknown action")
			return
		}
		filter.Action = &action
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.sendJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.sendJSONError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	entries, err := h.store.ListActions(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list actions", "error", err)
		h.sendJSONError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}

	resp := make([]logEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, logEntryResponse{
			ID:        e.ID,
			Action:    string(e.Action),
			Message:   e.Message,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"logs": resp})
}

// handleHealth reports liveness.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// requireAuth wraps a handler with JWT bearer auth when a verifier is set.
func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.verifier == nil {
			next(w, r)
			return
		}

		token, err := auth.FromHeader(r.Header.Get("Authorization"))
		if err != nil {
			h.sendJSONError(w, http.StatusUnauthorized, "missing or malformed bearer token")
			return
		}

		if _, err := h.verifier.Verify(token); err != nil {
			h.sendJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next(w, r)
	}
}

// sendJSONError writes a JSON error response.
func (h *Handler) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

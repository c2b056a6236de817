package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ukydev/car-rental/internal/lifecycle"
	"github.com/ukydev/car-rental/internal/models"
)

// PermissionFunc returns middleware that admits only callers holding perm.
type PermissionFunc func(perm string) func(http.Handler) http.Handler

// RecordHandler serves the HTTP routes of one record collection
type RecordHandler struct {
	controller *lifecycle.Controller
	timeout    time.Duration
	title      string
}

// NewRecordHandler creates a handler for controller. timeout bounds the
// store work of each request; zero means no extra deadline.
func NewRecordHandler(controller *lifecycle.Controller, timeout time.Duration) *RecordHandler {
	noun := controller.Noun()
	return &RecordHandler{
		controller: controller,
		timeout:    timeout,
		title:      strings.ToUpper(noun[:1]) + noun[1:],
	}
}

// Routes returns the collection's router. require may be nil, in which case
// no permission checks are applied.
func (h *RecordHandler) Routes(require PermissionFunc) chi.Router {
	if require == nil {
		require = func(string) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler { return next }
		}
	}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(require(models.PermViewRecords))
		r.Get("/", h.List)
		r.Get("/subject/{subjectId}", h.ListBySubject)
		r.Get("/status/{status}", h.ListByStatus)
		r.Get("/{id}", h.Get)
	})
	r.With(require(models.PermManageRecords)).Post("/", h.Create)
	r.With(require(models.PermManageRecords)).Put("/{id}", h.Update)
	r.With(require(models.PermDeleteRecords)).Delete("/{id}", h.Delete)
	return r
}

func (h *RecordHandler) context(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

// List handles GET /
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	views, err := h.controller.List(ctx)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ListResponse(h.title+"s retrieved successfully", views, len(views)))
}

// ListBySubject handles GET /subject/{subjectId}
func (h *RecordHandler) ListBySubject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	views, err := h.controller.ListBySubject(ctx, chi.URLParam(r, "subjectId"))
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ListResponse(h.title+"s retrieved successfully", views, len(views)))
}

// ListByStatus handles GET /status/{status}
func (h *RecordHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	views, err := h.controller.ListByStatus(ctx, chi.URLParam(r, "status"))
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ListResponse(h.title+"s retrieved successfully", views, len(views)))
}

// Get handles GET /{id}. The ETag carries the record version for If-Match.
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	view, err := h.controller.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	setETag(w, view.Version)
	writeJSON(w, http.StatusOK, models.Response{
		Success: true,
		Message: h.title + " retrieved successfully",
		Data:    view,
	})
}

// Create handles POST /
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := readInput(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()

	view, err := h.controller.Create(ctx, in)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	setETag(w, view.Version)
	writeJSON(w, http.StatusCreated, models.Response{
		Success: true,
		Message: h.title + " created successfully",
		Data:    view,
	})
}

// Update handles PUT /{id}. Only the fields present in the body change.
func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	ifMatch, err := parseIfMatch(r.Header.Get("If-Match"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "If-Match must be a record version")
		return
	}

	in, ok := readInput(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()

	view, err := h.controller.Update(ctx, chi.URLParam(r, "id"), in, ifMatch)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	setETag(w, view.Version)
	writeJSON(w, http.StatusOK, models.Response{
		Success: true,
		Message: h.title + " updated successfully",
		Data:    view,
	})
}

// Delete handles DELETE /{id} and returns the removed record.
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	view, err := h.controller.Delete(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Response{
		Success: true,
		Message: h.title + " deleted successfully",
		Data:    view,
	})
}

// readInput decodes a record payload. An empty body is an empty payload.
func readInput(w http.ResponseWriter, r *http.Request) (models.RecordInput, bool) {
	var in models.RecordInput

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return in, false
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return in, true
	}
	if err := json.Unmarshal(body, &in); err != nil {
		writeJSON(w, http.StatusBadRequest,
			models.KindErrorResponse(string(lifecycle.KindMalformedInput), "Invalid JSON"))
		return in, false
	}
	return in, true
}

// parseIfMatch accepts `3`, `"3"`, `W/"3"` and `*`. Empty and `*` mean no
// precondition and return 0.
func parseIfMatch(header string) (int64, error) {
	v := strings.TrimSpace(header)
	if v == "" || v == "*" {
		return 0, nil
	}
	v = strings.TrimPrefix(v, "W/")
	v = strings.Trim(v, `"`)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

func setETag(w http.ResponseWriter, version int64) {
	w.Header().Set("ETag", `"`+strconv.FormatInt(version, 10)+`"`)
}

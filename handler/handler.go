// Package handler provides the HTTP handlers for the item server.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stevemurr/simple-item-server/record"
	"github.com/stevemurr/simple-item-server/service"
)

const (
	msgListed    = "Items retrieved successfully"
	msgRetrieved = "Item retrieved successfully"
	msgCreated   = "Item created successfully"
	msgUpdated   = "Item updated successfully"
	msgDeleted   = "Item deleted successfully"
	msgNotFound  = "Item not found"
	msgBadBody   = "Invalid request body"
	msgTooLarge  = "Request body too large"
	msgReadErr   = "Error reading data"
	msgCreateErr = "Error creating item"
	msgUpdateErr = "Error updating item"
	msgDeleteErr = "Error deleting item"
	msgNoRoute   = "Route not found"
	msgNoMethod  = "Method not allowed"
	serviceName  = "Simple Item Server"
	idParam      = "id"
	itemsPath    = "/items"
	itemPath     = "/items/{" + idParam + "}"

	// maxBodyBytes caps JSON request bodies at 100kb.
	maxBodyBytes = 100 << 10
)

// envelope is the body of every items response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message"`
}

// Handler holds the server dependencies and registers routes.
type Handler struct {
	items *service.ItemService
	log   *slog.Logger
	mux   chi.Router
}

// Option configures a Handler.
type Option func(*Handler)

// WithMiddleware installs middlewares ahead of every route, outermost first.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.mux.Use(mw...)
	}
}

// New creates a Handler and wires up all routes.
func New(items *service.ItemService, log *slog.Logger, opts ...Option) *Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	h := &Handler{items: items, log: log, mux: chi.NewRouter()}
	for _, opt := range opts {
		opt(h)
	}
	h.mux.Use(RequestLogger(log))
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	// Health / status
	h.mux.Get("/", h.root)
	h.mux.Get("/health", h.health)

	h.mux.Get(itemsPath, h.listItems)
	h.mux.Post(itemsPath, h.createItem)
	h.mux.Get(itemPath, h.getItem)
	h.mux.Put(itemPath, h.updateItem)
	h.mux.Delete(itemPath, h.deleteItem)

	h.mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, msgNoRoute)
	})
	h.mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, msgNoMethod)
	})
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, data any, msg string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: msg})
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Message: msg})
}

// fail maps a service error to a response. Not-found is an expected
// outcome; everything else is logged and reported with the fixed message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if errors.Is(err, service.ErrNotFound) {
		writeFailure(w, http.StatusNotFound, msgNotFound)
		return
	}
	h.log.ErrorContext(
		r.Context(),
		msg,
		slog.String("request_id", RequestIDFrom(r.Context())),
		slog.String("error", err.Error()),
	)
	writeFailure(w, http.StatusInternalServerError, msg)
}

// itemID returns the decoded id path segment. chi matches on the escaped
// path, so "a%2Fb" must become "a/b" before it is compared with stored ids.
func itemID(r *http.Request) string {
	raw := chi.URLParam(r, idParam)
	id, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return id
}

// isJSON reports whether a request carries a JSON body. A missing
// Content-Type is accepted.
func isJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// readItem decodes the request body into an item. Bodies that are not
// declared as JSON are ignored and yield an empty item.
func (h *Handler) readItem(w http.ResponseWriter, r *http.Request) (record.Item, bool) {
	defer r.Body.Close()
	if !isJSON(r) {
		return record.New(), true
	}
	it, err := record.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.log.DebugContext(
			r.Context(),
			"rejected request body",
			slog.String("request_id", RequestIDFrom(r.Context())),
			slog.String("error", err.Error()),
		)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeFailure(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return record.Item{}, false
		}
		writeFailure(w, http.StatusBadRequest, msgBadBody)
		return record.Item{}, false
	}
	return it, true
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": serviceName,
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ---------- item CRUD ----------

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.List(r.Context())
	if err != nil {
		h.fail(w, r, err, msgReadErr)
		return
	}
	if items == nil {
		items = []record.Item{}
	}
	writeSuccess(w, http.StatusOK, items, msgListed)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.items.Get(r.Context(), itemID(r))
	if err != nil {
		h.fail(w, r, err, msgReadErr)
		return
	}
	writeSuccess(w, http.StatusOK, it, msgRetrieved)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.readItem(w, r)
	if !ok {
		return
	}
	it, err := h.items.Create(r.Context(), fields)
	if err != nil {
		h.fail(w, r, err, msgCreateErr)
		return
	}
	writeSuccess(w, http.StatusCreated, it, msgCreated)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	patch, ok := h.readItem(w, r)
	if !ok {
		return
	}
	it, err := h.items.Update(r.Context(), itemID(r), patch)
	if err != nil {
		h.fail(w, r, err, msgUpdateErr)
		return
	}
	writeSuccess(w, http.StatusOK, it, msgUpdated)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.items.Delete(r.Context(), itemID(r)); err != nil {
		h.fail(w, r, err, msgDeleteErr)
		return
	}
	writeSuccess(w, http.StatusOK, nil, msgDeleted)
}

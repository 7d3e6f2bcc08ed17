// Package api exposes the registry over HTTP: entity reads, the match write
// endpoint, storage backend inspection, and person-record transfer jobs.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"linkreview/internal/blob"
	"linkreview/internal/observability"
	"linkreview/internal/registry"
	"linkreview/internal/transfer"
	"linkreview/pkg/domain"
)

// Handler routes the registry API under /api/v1.
type Handler struct {
	Store     *registry.Store
	Blobs     blob.Store
	Transfers *transfer.Service
	Logger    observability.Logger
}

// NewHandler constructs the API handler. Blobs and Transfers are optional;
// their endpoints 404 when absent.
func NewHandler(store *registry.Store, blobs blob.Store, transfers *transfer.Service, logger observability.Logger) *Handler {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Handler{Store: store, Blobs: blobs, Transfers: transfers, Logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusInternalServerError, "registry store not configured")
		return
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodGet && path == "/api/v1/data-sources":
		h.handleDataSources(w, r)
	case r.Method == http.MethodGet && path == "/api/v1/persons":
		h.handleListPersons(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/api/v1/persons/"):
		h.handleGetPerson(w, r, strings.TrimPrefix(path, "/api/v1/persons/"))
	case r.Method == http.MethodGet && path == "/api/v1/potential-matches":
		h.handleListPotentialMatches(w, r)
	case strings.HasPrefix(path, "/api/v1/potential-matches/"):
		h.handlePotentialMatch(w, r, strings.TrimPrefix(path, "/api/v1/potential-matches/"))
	case strings.HasPrefix(path, "/api/v1/storage"):
		h.handleStorage(w, r, path)
	case strings.HasPrefix(path, "/api/v1/person-records/"):
		h.handleTransfer(w, r, strings.TrimPrefix(path, "/api/v1/person-records/"))
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleDataSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.Store.FetchDataSources(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data_sources": sources})
}

func termsFromQuery(r *http.Request) domain.SearchTerms {
	terms := domain.SearchTerms{}
	for _, key := range domain.TermKeys() {
		if v := r.URL.Query().Get(key); v != "" {
			terms[key] = v
		}
	}
	return terms
}

func pageFromQuery(r *http.Request) registry.PageRequest {
	var req registry.PageRequest
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			req.Page = n
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			req.PageSize = n
		}
	}
	return req
}

func (h *Handler) handleListPersons(w http.ResponseWriter, r *http.Request) {
	summaries, page, err := h.Store.ListPersonSummaries(r.Context(), termsFromQuery(r), pageFromQuery(r))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"persons": summaries, "pagination": page})
}

func (h *Handler) handleListPotentialMatches(w http.ResponseWriter, r *http.Request) {
	summaries, page, err := h.Store.ListPotentialMatchSummaries(r.Context(), termsFromQuery(r), pageFromQuery(r))
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"potential_matches": summaries, "pagination": page})
}

func (h *Handler) handleGetPerson(w http.ResponseWriter, r *http.Request, id string) {
	person, err := h.Store.FetchPerson(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"person": person})
}

func (h *Handler) handlePotentialMatch(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	switch {
	case len(segments) == 1 && r.Method == http.MethodGet:
		match, err := h.Store.FetchPotentialMatch(r.Context(), segments[0])
		if err != nil {
			h.writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"potential_match": match})
	case len(segments) == 2 && segments[1] == "match" && r.Method == http.MethodPost:
		var update domain.MatchUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeError(w, http.StatusBadRequest, "malformed match update: "+err.Error())
			return
		}
		if err := h.Store.MatchPersonRecords(r.Context(), segments[0], update.Version, update.PersonUpdates); err != nil {
			h.writeStoreError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleStorage(w http.ResponseWriter, r *http.Request, path string) {
	if h.Blobs == nil {
		http.NotFound(w, r)
		return
	}
	switch {
	case r.Method == http.MethodGet && path == "/api/v1/storage/backends":
		_, presignErr := h.Blobs.PresignURL(r.Context(), "probe", blob.SignedURLOptions{})
		writeJSON(w, http.StatusOK, map[string]any{
			"driver":           h.Blobs.Driver(),
			"supports_presign": !errors.Is(presignErr, blob.ErrUnsupported),
		})
	case r.Method == http.MethodPost && path == "/api/v1/storage/test":
		var req struct {
			URI string `json:"uri"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request: "+err.Error())
			return
		}
		key, err := transfer.ParseStorageURI(req.URI, h.Blobs.Driver())
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "key": key})
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request, remainder string) {
	if h.Transfers == nil {
		http.NotFound(w, r)
		return
	}
	switch {
	case r.Method == http.MethodPost && (remainder == "import" || remainder == "export"):
		var req struct {
			URI string `json:"uri"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request: "+err.Error())
			return
		}
		var (
			job transfer.Job
			err error
		)
		if remainder == "import" {
			job, err = h.Transfers.StartImport(req.URI)
		} else {
			job, err = h.Transfers.StartExport(req.URI)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"job": job})
	case r.Method == http.MethodGet && strings.HasPrefix(remainder, "jobs/"):
		id := strings.TrimPrefix(remainder, "jobs/")
		job, ok := h.Transfers.GetJob(id)
		if !ok {
			writeError(w, http.StatusNotFound, "transfer job not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"job": job})
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	var notFound registry.NotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, notFound.Error())
		return
	}
	var conflict registry.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":            conflict.Error(),
			"expected_version": conflict.Expected,
			"actual_version":   conflict.Actual,
		})
		return
	}
	h.Logger.Error("registry request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

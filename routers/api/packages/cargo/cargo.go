// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package cargo

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/cargohold/cargohold/modules/json"
	"github.com/cargohold/cargohold/modules/log"
	"github.com/cargohold/cargohold/modules/util"
	"github.com/cargohold/cargohold/services/auth"
	packages_service "github.com/cargohold/cargohold/services/packages"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the cargo web API on top of the orchestrator
type Handler struct {
	service *packages_service.Service
}

// NewHandler creates a cargo API handler
func NewHandler(service *packages_service.Service) *Handler {
	return &Handler{service: service}
}

// https://doc.rust-lang.org/cargo/reference/registry-web-api.html

type statusMessage struct {
	OK bool `json:"ok"`
}

type statusResponse struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg,omitempty"`
}

type errorResponse struct {
	Errors []errorDetail `json:"errors"`
}

type errorDetail struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, obj any) {
	data, err := json.Marshal(obj)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// apiError maps the registry error taxonomy onto HTTP statuses. Conflicts
// and unavailable backends are retriable for the client, validation and
// permission failures are not.
func apiError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, util.ErrNotExist):
		status = http.StatusNotFound
	case errors.Is(err, util.ErrAlreadyExist), errors.Is(err, util.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, util.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, util.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, util.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, util.ErrUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, util.ErrInvariantBroken):
		log.Error("Registry invariant broken: %v", err)
		status = http.StatusInternalServerError
	default:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorResponse{Errors: []errorDetail{{Detail: err.Error()}}})
}

// WriteError serializes err in the cargo error format, used by the other
// registry endpoints so every error looks the same to clients
func WriteError(w http.ResponseWriter, err error) {
	apiError(w, err)
}

// Publish handles PUT /api/v1/crates/new
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	result, err := h.service.Publish(r.Context(), auth.DoerFromContext(r.Context()), r.Body)
	if err != nil {
		apiError(w, err)
		return
	}

	log.Trace("Publish acknowledged: %s@%s (%s)", result.Name, result.Version, result.Checksum)
	writeJSON(w, http.StatusOK, map[string]any{
		"warnings": map[string][]string{
			"invalid_categories": {},
			"invalid_badges":     {},
			"other":              {},
		},
	})
}

// Search handles GET /api/v1/crates
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	perPage := 10
	if pp := r.URL.Query().Get("per_page"); pp != "" {
		if n, err := strconv.Atoi(pp); err == nil && n > 0 && n <= 100 {
			perPage = n
		}
	}

	results, err := h.service.Search(r.Context(), query, perPage)
	if err != nil {
		apiError(w, err)
		return
	}

	type searchCrate struct {
		Name        string `json:"name"`
		MaxVersion  string `json:"max_version"`
		Description string `json:"description"`
	}
	crates := make([]searchCrate, 0, len(results))
	for _, res := range results {
		crates = append(crates, searchCrate{
			Name:        res.Name,
			MaxVersion:  res.MaxVersion,
			Description: res.Description,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"crates": crates,
		"meta":   map[string]int{"total": len(crates)},
	})
}

// Download handles GET /api/v1/crates/{crate}/{version}/download
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	obj, err := h.service.Download(r.Context(), chi.URLParam(r, "crate"), chi.URLParam(r, "version"))
	if err != nil {
		apiError(w, err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", "application/x-tar")
	_, _ = io.Copy(w, obj)
}

// Yank handles DELETE /api/v1/crates/{crate}/{version}/yank
func (h *Handler) Yank(w http.ResponseWriter, r *http.Request) {
	h.setYanked(w, r, true)
}

// Unyank handles PUT /api/v1/crates/{crate}/{version}/unyank
func (h *Handler) Unyank(w http.ResponseWriter, r *http.Request) {
	h.setYanked(w, r, false)
}

func (h *Handler) setYanked(w http.ResponseWriter, r *http.Request, yanked bool) {
	err := h.service.Yank(r.Context(), auth.DoerFromContext(r.Context()), chi.URLParam(r, "crate"), chi.URLParam(r, "version"), yanked)
	if err != nil {
		apiError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusMessage{OK: true})
}

// ListOwners handles GET /api/v1/crates/{crate}/owners
func (h *Handler) ListOwners(w http.ResponseWriter, r *http.Request) {
	owners, err := h.service.ListOwners(r.Context(), chi.URLParam(r, "crate"))
	if err != nil {
		apiError(w, err)
		return
	}

	type owner struct {
		ID    int    `json:"id"`
		Login string `json:"login"`
	}
	users := make([]owner, 0, len(owners))
	for i, login := range owners {
		users = append(users, owner{ID: i + 1, Login: login})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

type ownerRequest struct {
	Users []string `json:"users"`
}

// AddOwners handles PUT /api/v1/crates/{crate}/owners
func (h *Handler) AddOwners(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOwnerRequest(w, r)
	if !ok {
		return
	}
	if err := h.service.AddOwners(r.Context(), auth.DoerFromContext(r.Context()), chi.URLParam(r, "crate"), req.Users); err != nil {
		apiError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{OK: true, Msg: "owners added"})
}

// RemoveOwners handles DELETE /api/v1/crates/{crate}/owners
func (h *Handler) RemoveOwners(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOwnerRequest(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveOwners(r.Context(), auth.DoerFromContext(r.Context()), chi.URLParam(r, "crate"), req.Users); err != nil {
		apiError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{OK: true, Msg: "owners removed"})
}

// IndexFile handles GET /index/*
func (h *Handler) IndexFile(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.GetIndexFile(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		apiError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(data)
}

func decodeOwnerRequest(w http.ResponseWriter, r *http.Request) (*ownerRequest, bool) {
	defer r.Body.Close()

	req := &ownerRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		apiError(w, util.NewInvalidArgumentErrorf("invalid owner request: %v", err))
		return nil, false
	}
	if len(req.Users) == 0 {
		apiError(w, util.NewInvalidArgumentErrorf("owner request names no users"))
		return nil, false
	}
	return req, true
}


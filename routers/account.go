// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package routers

import (
	"net/http"

	"github.com/cargohold/cargohold/modules/json"
	"github.com/cargohold/cargohold/modules/log"
	cargo_router "github.com/cargohold/cargohold/routers/api/packages/cargo"
	"github.com/cargohold/cargohold/services/auth"

	"github.com/go-chi/chi/v5"
)

// accountHandler manages registry tokens for the static auth provider
type accountHandler struct {
	provider *auth.StaticProvider
}

func newAccountHandler(provider *auth.StaticProvider) *accountHandler {
	return &accountHandler{provider: provider}
}

// Register handles POST /cargohold/api/v1/register/{login} and returns the
// freshly issued token. The token is shown exactly once, only its hash is
// stored.
func (h *accountHandler) Register(w http.ResponseWriter, r *http.Request) {
	login := chi.URLParam(r, "login")

	token, err := h.provider.Register(r.Context(), login)
	if err != nil {
		cargo_router.WriteError(w, err)
		return
	}

	log.Info("Issued token for %s", login)
	data, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(data)
}

// RevokeToken handles DELETE /cargohold/api/v1/token, revoking the token
// presented in the Authorization header
func (h *accountHandler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	if err := h.provider.Revoke(r.Context(), credentialFromRequest(r)); err != nil {
		cargo_router.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

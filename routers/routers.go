// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

// Package routers wires the HTTP surface of the registry. Handlers are thin,
// they authenticate, delegate to the orchestrator and serialize the typed
// result.
package routers

import (
	"net/http"
	"strings"

	cargo_router "github.com/cargohold/cargohold/routers/api/packages/cargo"
	"github.com/cargohold/cargohold/services/auth"
	packages_service "github.com/cargohold/cargohold/services/packages"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// BuildRoutes creates the registry router
func BuildRoutes(service *packages_service.Service, authProvider auth.Provider, staticProvider *auth.StaticProvider) http.Handler {
	h := cargo_router.NewHandler(service)
	a := newAccountHandler(staticProvider)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// sparse HTTP index, read-only
	r.Get("/index/*", h.IndexFile)

	r.Route("/api/v1/crates", func(r chi.Router) {
		r.Get("/", h.Search)
		r.Get("/{crate}/{version}/download", h.Download)

		r.Group(func(r chi.Router) {
			r.Use(authenticate(authProvider))
			r.Put("/new", h.Publish)
			r.Delete("/{crate}/{version}/yank", h.Yank)
			r.Put("/{crate}/{version}/unyank", h.Unyank)
			r.Get("/{crate}/owners", h.ListOwners)
			r.Put("/{crate}/owners", h.AddOwners)
			r.Delete("/{crate}/owners", h.RemoveOwners)
		})
	})

	r.Route("/cargohold/api/v1", func(r chi.Router) {
		r.Post("/register/{login}", a.Register)
		r.Delete("/token", a.RevokeToken)
	})

	return r
}

// credentialFromRequest extracts the registry token or bearer token from the
// request. Cargo sends the raw token in the Authorization header, OpenID
// clients send "Bearer <jwt>".
func credentialFromRequest(r *http.Request) string {
	credential := r.Header.Get("Authorization")
	if after, found := strings.CutPrefix(credential, "Bearer "); found {
		return after
	}
	return credential
}

// authenticate rejects requests whose credential does not resolve to an
// identity and stores the identity in the request context
func authenticate(provider auth.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			doer, err := provider.Validate(r.Context(), credentialFromRequest(r))
			if err != nil {
				cargo_router.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithDoer(r.Context(), doer)))
		})
	}
}

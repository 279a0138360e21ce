// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

// Package auth authenticates the credential attached to a request.
//
// The orchestrator consumes the resulting Identity opaquely, it never learns
// which provider produced it. Every rejection surfaces as
// util.ErrUnauthenticated with a generic message, so a caller cannot probe
// whether a login exists.
package auth

import (
	"context"
	"errors"

	"github.com/cargohold/cargohold/modules/log"
	"github.com/cargohold/cargohold/modules/util"
)

// Identity is an authenticated principal
type Identity struct {
	Login string
}

// Provider validates a credential and resolves it to an Identity
type Provider interface {
	// Validate returns the identity bound to the credential, or an error
	// unwrapping to util.ErrUnauthenticated
	Validate(ctx context.Context, credential string) (*Identity, error)

	Name() string
}

// Group is a Provider that asks each of its providers in order and accepts
// the first success
type Group struct {
	providers []Provider
}

var _ Provider = (*Group)(nil)

// NewGroup creates a provider group
func NewGroup(providers ...Provider) *Group {
	return &Group{providers: providers}
}

// Name implements Provider
func (g *Group) Name() string {
	return "group"
}

// Validate implements Provider
func (g *Group) Validate(ctx context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, util.NewUnauthenticatedErrorf("no credential provided")
	}
	for _, p := range g.providers {
		identity, err := p.Validate(ctx, credential)
		if err == nil {
			return identity, nil
		}
		if !errors.Is(err, util.ErrUnauthenticated) {
			// backend fault, fail closed but keep the class so the caller
			// can retry
			return nil, err
		}
		log.Trace("Auth provider %s rejected credential", p.Name())
	}
	return nil, util.NewUnauthenticatedErrorf("credential rejected")
}

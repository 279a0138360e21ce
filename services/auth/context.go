// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package auth

import "context"

type contextKey struct{}

// WithDoer stores the authenticated identity in the context
func WithDoer(ctx context.Context, doer *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, doer)
}

// DoerFromContext returns the authenticated identity, or nil if the request
// was not authenticated
func DoerFromContext(ctx context.Context) *Identity {
	doer, _ := ctx.Value(contextKey{}).(*Identity)
	return doer
}

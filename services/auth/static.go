// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/cargohold/cargohold/models/registry"
	"github.com/cargohold/cargohold/modules/util"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
)

// tokenHashSalt is fixed so a presented token can be hashed deterministically
// and looked up by its hash. Tokens themselves are high-entropy UUIDs, the
// salt only keeps the stored hashes from being plain digests.
const tokenHashSalt = "cargohold.token.v1"

// HashToken returns the stored form of a registry token
func HashToken(token string) string {
	h := pbkdf2.Key([]byte(token), []byte(tokenHashSalt), 10000, 32, sha256.New)
	return hex.EncodeToString(h)
}

// GenerateToken mints a new registry token
func GenerateToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// StaticProvider authenticates registry tokens against the token store.
// Validation is a single synchronous store lookup.
type StaticProvider struct {
	store       registry.TokenStore
	loginPrefix string
}

var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider creates a static token provider
func NewStaticProvider(store registry.TokenStore, loginPrefix string) *StaticProvider {
	return &StaticProvider{store: store, loginPrefix: loginPrefix}
}

// Name implements Provider
func (p *StaticProvider) Name() string {
	return "static"
}

// Validate implements Provider
func (p *StaticProvider) Validate(ctx context.Context, credential string) (*Identity, error) {
	login, err := p.store.LookupToken(ctx, HashToken(credential))
	if errors.Is(err, util.ErrNotExist) {
		return nil, util.NewUnauthenticatedErrorf("credential rejected")
	}
	if err != nil {
		return nil, err
	}
	return &Identity{Login: login}, nil
}

// Register creates a login and issues its first token. The login is
// namespaced with the configured prefix so it cannot collide with identities
// coming from an OpenID provider.
func (p *StaticProvider) Register(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", util.NewInvalidArgumentErrorf("login must not be empty")
	}
	token := GenerateToken()
	if err := p.store.PutToken(ctx, HashToken(token), p.loginPrefix+login); err != nil {
		return "", err
	}
	return token, nil
}

// Revoke invalidates the presented token. Revoking an unknown token fails
// with the same error as any other rejected credential.
func (p *StaticProvider) Revoke(ctx context.Context, credential string) error {
	hash := HashToken(credential)
	if _, err := p.store.LookupToken(ctx, hash); err != nil {
		if errors.Is(err, util.ErrNotExist) {
			return util.NewUnauthenticatedErrorf("credential rejected")
		}
		return err
	}
	return p.store.RevokeToken(ctx, hash)
}

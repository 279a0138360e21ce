// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package registry

import (
	"context"

	"github.com/cargohold/cargohold/modules/log"
	"github.com/cargohold/cargohold/modules/setting"
)

// Backend is the storage contract of the registry. Every mutation that
// touches more than one logical field is a single Backend operation so each
// engine can choose its own atomic grouping; callers never compose a publish
// out of primitives.
//
// All engines provide per-package ordering only: two concurrent publishes of
// the same crate resolve to exactly one winner, the loser gets an error
// unwrapping to util.ErrConflict or util.ErrAlreadyExist. Operations on
// different crates are unordered relative to each other.
type Backend interface {
	// GetPackage returns the current state of a crate
	GetPackage(ctx context.Context, name string) (*Package, error)

	// PublishVersion atomically appends a version and its index line. For a
	// new crate the publisher becomes the sole initial owner.
	PublishVersion(ctx context.Context, name string, v *Version, publisher string) error

	// SetYanked flips the yanked flag of a published version. Setting the
	// flag to its current value succeeds as a no-op.
	SetYanked(ctx context.Context, name, vers string, yanked bool) error

	// ListOwners returns the owner set of a crate
	ListOwners(ctx context.Context, name string) ([]string, error)

	// AddOwners adds logins to the owner set
	AddOwners(ctx context.Context, name string, logins []string) error

	// RemoveOwners removes logins from the owner set, failing if the set
	// would become empty
	RemoveOwners(ctx context.Context, name string, logins []string) error

	// IncrementDownload bumps the download counters of a crate version.
	// Best effort: increments may be lost under contention.
	IncrementDownload(ctx context.Context, name, vers string) error

	// SearchPackages returns packages matching the query, newest state of
	// some valid prior point in time, stale reads are acceptable
	SearchPackages(ctx context.Context, query string, limit int) ([]*Package, error)

	// IndexLines returns the index records of a crate in publish order
	IndexLines(ctx context.Context, name string) ([]string, error)

	Close() error
}

// TokenStore persists registry tokens for the static auth provider. It is
// implemented by the same engines as Backend but consumed only by the auth
// layer, the publish orchestrator never sees tokens.
type TokenStore interface {
	// PutToken binds a hashed token to a login
	PutToken(ctx context.Context, tokenHash, login string) error

	// LookupToken resolves a hashed token to its login
	LookupToken(ctx context.Context, tokenHash string) (string, error)

	// RevokeToken deletes a hashed token
	RevokeToken(ctx context.Context, tokenHash string) error
}

// FullBackend is a Backend that also stores tokens. All bundled engines
// implement it.
type FullBackend interface {
	Backend
	TokenStore
}

// NewBackend creates the backend selected by the configuration. The choice
// is made once at process start; callers hold the interface value and never
// branch on the engine.
func NewBackend(ctx context.Context) (FullBackend, error) {
	switch setting.Registry.Backend {
	case setting.RegistryBackendLevelDB:
		log.Info("Using leveldb registry backend at %s", setting.Registry.LevelDBPath)
		return newLevelDBBackendFromPath(setting.Registry.LevelDBPath)
	case setting.RegistryBackendRedis:
		log.Info("Using redis registry backend at %s", setting.Registry.RedisConn)
		return newRedisBackendFromConn(setting.Registry.RedisConn)
	case setting.RegistryBackendMongo:
		log.Info("Using mongo registry backend, database %s", setting.Registry.MongoDatabase)
		return newMongoBackendFromURI(ctx, setting.Registry.MongoURI, setting.Registry.MongoDatabase)
	default:
		log.Fatal("Unknown registry backend: %s", setting.Registry.Backend)
		return nil, nil
	}
}

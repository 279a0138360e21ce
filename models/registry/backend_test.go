// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package registry

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/cargohold/cargohold/modules/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	leveldb_storage "github.com/syndtr/goleveldb/leveldb/storage"
)

func newTestLevelDBBackend(t *testing.T) FullBackend {
	db, err := leveldb.Open(leveldb_storage.NewMemStorage(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return NewLevelDBBackend(db)
}

func TestLevelDBBackend(t *testing.T) {
	testBackendContract(t, newTestLevelDBBackend(t))
}

func TestLevelDBIndexDesync(t *testing.T) {
	db, err := leveldb.Open(leveldb_storage.NewMemStorage(), nil)
	require.NoError(t, err)
	defer db.Close()

	b := NewLevelDBBackend(db)
	ctx := context.Background()

	t.Run("MissingIndexStream", func(t *testing.T) {
		require.NoError(t, b.PublishVersion(ctx, "foo", &Version{Vers: "1.0.0", Cksum: "c1"}, "alice"))
		require.NoError(t, db.Delete(levelDBIndexKey("foo"), nil))

		err := b.PublishVersion(ctx, "foo", &Version{Vers: "1.1.0", Cksum: "c2"}, "alice")
		assert.ErrorIs(t, err, util.ErrInvariantBroken)
	})

	t.Run("StrayIndexLine", func(t *testing.T) {
		require.NoError(t, b.PublishVersion(ctx, "bar", &Version{Vers: "1.0.0", Cksum: "c3"}, "alice"))

		data, err := db.Get(levelDBIndexKey("bar"), nil)
		require.NoError(t, err)
		require.NoError(t, db.Put(levelDBIndexKey("bar"), append(data, []byte("{}\n")...), nil))

		err = b.PublishVersion(ctx, "bar", &Version{Vers: "1.1.0", Cksum: "c4"}, "alice")
		assert.ErrorIs(t, err, util.ErrInvariantBroken)
	})
}

func TestRedisBackend(t *testing.T) {
	conn := os.Getenv("TEST_REDIS_CONN")
	if conn == "" {
		t.Skip("TEST_REDIS_CONN not set")
	}
	b, err := newRedisBackendFromConn(conn)
	require.NoError(t, err)
	testBackendContract(t, b)
}

func TestMongoBackend(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	b, err := newMongoBackendFromURI(context.Background(), uri, "cargohold_test")
	require.NoError(t, err)
	testBackendContract(t, b)
}

// testBackendContract verifies the behavior every storage engine must
// provide, independent of its atomicity mechanism
func testBackendContract(t *testing.T, b FullBackend) {
	ctx := context.Background()

	t.Run("MissingPackage", func(t *testing.T) {
		_, err := b.GetPackage(ctx, "missing")
		assert.ErrorIs(t, err, util.ErrNotExist)

		_, err = b.IndexLines(ctx, "missing")
		assert.ErrorIs(t, err, util.ErrNotExist)

		err = b.SetYanked(ctx, "missing", "1.0.0", true)
		assert.ErrorIs(t, err, util.ErrNotExist)
	})

	t.Run("PublishFlow", func(t *testing.T) {
		err := b.PublishVersion(ctx, "foo", &Version{Vers: "1.0.0", Cksum: "c1"}, "alice")
		require.NoError(t, err)

		p, err := b.GetPackage(ctx, "foo")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, p.Owners, "first publisher becomes sole owner")
		require.Len(t, p.Versions, 1)

		lines, err := b.IndexLines(ctx, "foo")
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], `"name":"foo"`)
		assert.Contains(t, lines[0], `"vers":"1.0.0"`)
		assert.Contains(t, lines[0], `"cksum":"c1"`)
		assert.Contains(t, lines[0], `"yanked":false`)

		// duplicate version is rejected and the index is unchanged
		err = b.PublishVersion(ctx, "foo", &Version{Vers: "1.0.0", Cksum: "c1"}, "alice")
		assert.ErrorIs(t, err, util.ErrAlreadyExist)

		lines, err = b.IndexLines(ctx, "foo")
		require.NoError(t, err)
		assert.Len(t, lines, 1)

		// a second version appends without touching the first line
		err = b.PublishVersion(ctx, "foo", &Version{Vers: "1.1.0", Cksum: "c2"}, "alice")
		require.NoError(t, err)

		lines, err = b.IndexLines(ctx, "foo")
		require.NoError(t, err)
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], `"vers":"1.0.0"`)
		assert.Contains(t, lines[1], `"vers":"1.1.0"`)
	})

	t.Run("Yank", func(t *testing.T) {
		require.NoError(t, b.SetYanked(ctx, "foo", "1.0.0", true))

		lines, err := b.IndexLines(ctx, "foo")
		require.NoError(t, err)
		require.Len(t, lines, 2, "yanking flips a flag, it never adds or removes lines")
		assert.Contains(t, lines[0], `"yanked":true`)
		assert.Contains(t, lines[1], `"yanked":false`)

		// idempotent
		require.NoError(t, b.SetYanked(ctx, "foo", "1.0.0", true))

		require.NoError(t, b.SetYanked(ctx, "foo", "1.0.0", false))
		lines, err = b.IndexLines(ctx, "foo")
		require.NoError(t, err)
		assert.Contains(t, lines[0], `"yanked":false`)

		err = b.SetYanked(ctx, "foo", "9.9.9", true)
		assert.ErrorIs(t, err, util.ErrNotExist)
	})

	t.Run("Owners", func(t *testing.T) {
		owners, err := b.ListOwners(ctx, "foo")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, owners)

		require.NoError(t, b.AddOwners(ctx, "foo", []string{"bob"}))
		owners, err = b.ListOwners(ctx, "foo")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, owners)

		require.NoError(t, b.RemoveOwners(ctx, "foo", []string{"bob"}))

		err = b.RemoveOwners(ctx, "foo", []string{"alice"})
		assert.ErrorIs(t, err, util.ErrConflict, "removing the last owner must fail")

		owners, err = b.ListOwners(ctx, "foo")
		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, owners)
	})

	t.Run("Downloads", func(t *testing.T) {
		require.NoError(t, b.IncrementDownload(ctx, "foo", "1.0.0"))
		require.NoError(t, b.IncrementDownload(ctx, "foo", "1.0.0"))

		// a semver alias of the stored spelling lands on the same counter
		require.NoError(t, b.IncrementDownload(ctx, "foo", "1.0"))

		p, err := b.GetPackage(ctx, "foo")
		require.NoError(t, err)
		assert.Equal(t, int64(3), p.Downloads)
		assert.Equal(t, int64(3), p.FindVersion("1.0.0").Downloads)

		err = b.IncrementDownload(ctx, "foo", "9.9.9")
		assert.ErrorIs(t, err, util.ErrNotExist)
	})

	t.Run("Search", func(t *testing.T) {
		require.NoError(t, b.PublishVersion(ctx, "bar", &Version{Vers: "0.1.0", Cksum: "c3"}, "alice"))

		pkgs, err := b.SearchPackages(ctx, "foo", 10)
		require.NoError(t, err)
		require.Len(t, pkgs, 1)
		assert.Equal(t, "foo", pkgs[0].Name)

		pkgs, err = b.SearchPackages(ctx, "", 10)
		require.NoError(t, err)
		assert.Len(t, pkgs, 2)

		pkgs, err = b.SearchPackages(ctx, "", 1)
		require.NoError(t, err)
		assert.Len(t, pkgs, 1)
	})

	t.Run("NameNormalization", func(t *testing.T) {
		p, err := b.GetPackage(ctx, "FOO")
		require.NoError(t, err)
		assert.Equal(t, "foo", p.Name)
	})

	t.Run("PreservesPublishedName", func(t *testing.T) {
		err := b.PublishVersion(ctx, "Serde_Json", &Version{Vers: "1.0.0", Cksum: "c5"}, "alice")
		require.NoError(t, err)

		// lookups fold case and separators, the stored and indexed name is
		// the crate name exactly as published
		p, err := b.GetPackage(ctx, "serde-json")
		require.NoError(t, err)
		assert.Equal(t, "Serde_Json", p.Name)

		lines, err := b.IndexLines(ctx, "serde_json")
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0], `"name":"Serde_Json"`)
	})

	t.Run("ConcurrentPublish", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = b.PublishVersion(ctx, "race", &Version{Vers: "1.0.0", Cksum: "c4"}, "alice")
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			if !errors.Is(err, util.ErrAlreadyExist) && !errors.Is(err, util.ErrConflict) {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, succeeded, "exactly one concurrent publish must win")

		lines, err := b.IndexLines(ctx, "race")
		require.NoError(t, err)
		assert.Len(t, lines, 1, "exactly one index line must exist for the version")
	})

	t.Run("Tokens", func(t *testing.T) {
		_, err := b.LookupToken(ctx, "missing")
		assert.ErrorIs(t, err, util.ErrNotExist)

		require.NoError(t, b.PutToken(ctx, "hash1", "alice"))
		login, err := b.LookupToken(ctx, "hash1")
		require.NoError(t, err)
		assert.Equal(t, "alice", login)

		require.NoError(t, b.RevokeToken(ctx, "hash1"))
		_, err = b.LookupToken(ctx, "hash1")
		assert.ErrorIs(t, err, util.ErrNotExist)
	})
}

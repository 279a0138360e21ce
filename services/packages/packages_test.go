// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package packages

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"testing"

	"github.com/cargohold/cargohold/models/registry"
	"github.com/cargohold/cargohold/modules/json"
	cargo_module "github.com/cargohold/cargohold/modules/packages/cargo"
	"github.com/cargohold/cargohold/modules/storage"
	"github.com/cargohold/cargohold/modules/util"
	"github.com/cargohold/cargohold/services/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	leveldb_storage "github.com/syndtr/goleveldb/leveldb/storage"
)

var (
	alice = &auth.Identity{Login: "alice"}
	bob   = &auth.Identity{Login: "bob"}
)

func newTestService(t *testing.T) *Service {
	db, err := leveldb.Open(leveldb_storage.NewMemStorage(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	return NewService(
		registry.NewLevelDBBackend(db),
		store,
		"http://localhost:3000/api/v1/crates",
		"http://localhost:3000",
	)
}

// buildPublishPayload frames metadata and crate bytes the way `cargo publish`
// sends them: u32-le length, JSON metadata, u32-le length, crate file.
func buildPublishPayload(t *testing.T, name, vers, description string, content []byte) io.Reader {
	meta, err := json.Marshal(map[string]any{
		"name":        name,
		"vers":        vers,
		"description": description,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(meta))))
	buf.Write(meta)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(content))))
	buf.Write(content)
	return &buf
}

func TestPublish(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	content := []byte("crate tarball bytes")
	expectedChecksum := hex.EncodeToString(func() []byte {
		h := sha256.Sum256(content)
		return h[:]
	}())

	result, err := s.Publish(ctx, alice, buildPublishPayload(t, "foo", "1.0.0", "a test crate", content))
	require.NoError(t, err)
	assert.Equal(t, "foo", result.Name)
	assert.Equal(t, "1.0.0", result.Version)
	assert.Equal(t, expectedChecksum, result.Checksum)

	t.Run("BlobRoundTrip", func(t *testing.T) {
		obj, err := s.GetBlob(ctx, result.Checksum)
		require.NoError(t, err)
		defer obj.Close()

		data, err := io.ReadAll(obj)
		require.NoError(t, err)
		assert.Equal(t, content, data)
	})

	t.Run("DuplicateVersion", func(t *testing.T) {
		_, err := s.Publish(ctx, alice, buildPublishPayload(t, "foo", "1.0.0", "a test crate", content))
		assert.ErrorIs(t, err, util.ErrAlreadyExist)
	})

	t.Run("SecondVersion", func(t *testing.T) {
		result, err := s.Publish(ctx, alice, buildPublishPayload(t, "foo", "1.1.0", "a test crate", []byte("newer bytes")))
		require.NoError(t, err)
		assert.Equal(t, "1.1.0", result.Version)
	})

	t.Run("NonOwner", func(t *testing.T) {
		_, err := s.Publish(ctx, bob, buildPublishPayload(t, "foo", "2.0.0", "", content))
		assert.ErrorIs(t, err, util.ErrPermissionDenied)
	})

	t.Run("InvalidName", func(t *testing.T) {
		_, err := s.Publish(ctx, alice, buildPublishPayload(t, "0day", "1.0.0", "", content))
		assert.ErrorIs(t, err, util.ErrInvalidArgument)
	})

	t.Run("InvalidVersion", func(t *testing.T) {
		_, err := s.Publish(ctx, alice, buildPublishPayload(t, "bar", "not-semver", "", content))
		assert.ErrorIs(t, err, util.ErrInvalidArgument)
	})

	t.Run("TruncatedContent", func(t *testing.T) {
		meta, err := json.Marshal(map[string]any{"name": "bar", "vers": "1.0.0"})
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(meta))))
		buf.Write(meta)
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(100)))
		buf.WriteString("short")

		_, err = s.Publish(ctx, alice, &buf)
		assert.ErrorIs(t, err, util.ErrInvalidArgument)
	})
}

func TestYank(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Publish(ctx, alice, buildPublishPayload(t, "foo", "1.0.0", "", []byte("bytes")))
	require.NoError(t, err)

	err = s.Yank(ctx, bob, "foo", "1.0.0", true)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	require.NoError(t, s.Yank(ctx, alice, "foo", "1.0.0", true))

	index, err := s.GetIndexFile(ctx, cargo_module.BuildPackagePath("foo"))
	require.NoError(t, err)
	assert.Contains(t, string(index), `"yanked":true`)

	require.NoError(t, s.Yank(ctx, alice, "foo", "1.0.0", false))

	index, err = s.GetIndexFile(ctx, cargo_module.BuildPackagePath("foo"))
	require.NoError(t, err)
	assert.Contains(t, string(index), `"yanked":false`)
}

func TestOwners(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Publish(ctx, alice, buildPublishPayload(t, "foo", "1.0.0", "", []byte("bytes")))
	require.NoError(t, err)

	err = s.AddOwners(ctx, bob, "foo", []string{"bob"})
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	require.NoError(t, s.AddOwners(ctx, alice, "foo", []string{"bob"}))

	owners, err := s.ListOwners(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, owners)

	// once added, bob can act as an owner
	require.NoError(t, s.RemoveOwners(ctx, bob, "foo", []string{"alice"}))

	err = s.RemoveOwners(ctx, bob, "foo", []string{"bob"})
	assert.ErrorIs(t, err, util.ErrConflict)
}

func TestSearch(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for i, name := range []string{"serde", "serde-json", "tokio"} {
		_, err := s.Publish(ctx, alice, buildPublishPayload(t, name, "1.0.0", fmt.Sprintf("crate %d", i), []byte(name)))
		require.NoError(t, err)
	}
	_, err := s.Publish(ctx, alice, buildPublishPayload(t, "serde", "1.2.0", "newest serde", []byte("serde 1.2")))
	require.NoError(t, err)

	results, err := s.Search(ctx, "serde", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		if r.Name == "serde" {
			assert.Equal(t, "1.2.0", r.MaxVersion)
			assert.Equal(t, "newest serde", r.Description)
		}
	}

	results, err = s.Search(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = s.Search(ctx, "nothing-matches", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDownload(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	content := []byte("downloadable bytes")
	_, err := s.Publish(ctx, alice, buildPublishPayload(t, "foo", "1.0.0", "", content))
	require.NoError(t, err)

	obj, err := s.Download(ctx, "foo", "1.0.0")
	require.NoError(t, err)
	defer obj.Close()

	data, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, content, data)

	_, err = s.Download(ctx, "foo", "9.9.9")
	assert.ErrorIs(t, err, util.ErrNotExist)

	_, err = s.Download(ctx, "missing", "1.0.0")
	assert.ErrorIs(t, err, util.ErrNotExist)
}

func TestGetIndexFile(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	t.Run("Config", func(t *testing.T) {
		data, err := s.GetIndexFile(ctx, "config.json")
		require.NoError(t, err)

		cfg := &cargo_module.Config{}
		require.NoError(t, json.Unmarshal(data, cfg))
		assert.Equal(t, "http://localhost:3000/api/v1/crates", cfg.DownloadURL)
		assert.Equal(t, "http://localhost:3000", cfg.APIURL)
	})

	t.Run("CratePath", func(t *testing.T) {
		_, err := s.Publish(ctx, alice, buildPublishPayload(t, "foo", "1.0.0", "", []byte("bytes")))
		require.NoError(t, err)

		data, err := s.GetIndexFile(ctx, "3/f/foo")
		require.NoError(t, err)
		assert.Contains(t, string(data), `"name":"foo"`)

		// a crate path must match its sharding exactly
		_, err = s.GetIndexFile(ctx, "aa/bb/foo")
		assert.ErrorIs(t, err, util.ErrNotExist)

		_, err = s.GetIndexFile(ctx, "mi/ss/missing")
		assert.ErrorIs(t, err, util.ErrNotExist)
	})

	t.Run("PublishedSpelling", func(t *testing.T) {
		_, err := s.Publish(ctx, alice, buildPublishPayload(t, "serde_json", "1.0.0", "", []byte("sj")))
		require.NoError(t, err)

		// the entries served for the crate's own index path carry the name
		// exactly as published, a client matching on it can resolve them
		data, err := s.GetIndexFile(ctx, "se/rd/serde_json")
		require.NoError(t, err)
		assert.Contains(t, string(data), `"name":"serde_json"`)
		assert.NotContains(t, string(data), `"name":"serde-json"`)
	})
}

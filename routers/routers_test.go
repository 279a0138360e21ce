// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package routers

import (
	"bytes"
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cargohold/cargohold/models/registry"
	"github.com/cargohold/cargohold/modules/json"
	"github.com/cargohold/cargohold/modules/storage"
	"github.com/cargohold/cargohold/services/auth"
	packages_service "github.com/cargohold/cargohold/services/packages"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	leveldb_storage "github.com/syndtr/goleveldb/leveldb/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	db, err := leveldb.Open(leveldb_storage.NewMemStorage(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	backend := registry.NewLevelDBBackend(db)
	service := packages_service.NewService(backend, store, "http://localhost:3000/api/v1/crates", "http://localhost:3000")
	staticProvider := auth.NewStaticProvider(backend, "cargohold:")

	server := httptest.NewServer(BuildRoutes(service, auth.NewGroup(staticProvider), staticProvider))
	t.Cleanup(server.Close)
	return server
}

func doRequest(t *testing.T, method, url, token string, body io.Reader) *http.Response {
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, obj any) {
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, obj))
}

func publishPayload(t *testing.T, name, vers string, content []byte) io.Reader {
	meta, err := json.Marshal(map[string]any{"name": name, "vers": vers})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(meta))))
	buf.Write(meta)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(content))))
	buf.Write(content)
	return &buf
}

func registerUser(t *testing.T, server *httptest.Server, login string) string {
	resp := doRequest(t, http.MethodPost, server.URL+"/cargohold/api/v1/register/"+login, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &body)
	require.NotEmpty(t, body.Token)
	return body.Token
}

// walks a crate through its whole life over HTTP: register, publish, index,
// search, download, yank
func TestRegistryFlow(t *testing.T) {
	server := newTestServer(t)
	content := []byte("crate tarball bytes")

	token := registerUser(t, server, "alice")

	t.Run("PublishUnauthenticated", func(t *testing.T) {
		resp := doRequest(t, http.MethodPut, server.URL+"/api/v1/crates/new", "", publishPayload(t, "foo", "1.0.0", content))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Publish", func(t *testing.T) {
		resp := doRequest(t, http.MethodPut, server.URL+"/api/v1/crates/new", token, publishPayload(t, "foo", "1.0.0", content))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		// republishing the same version conflicts
		resp = doRequest(t, http.MethodPut, server.URL+"/api/v1/crates/new", token, publishPayload(t, "foo", "1.0.0", content))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("IndexConfig", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, server.URL+"/index/config.json", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var cfg struct {
			DL  string `json:"dl"`
			API string `json:"api"`
		}
		decodeBody(t, resp, &cfg)
		assert.Equal(t, "http://localhost:3000/api/v1/crates", cfg.DL)
		assert.Equal(t, "http://localhost:3000", cfg.API)
	})

	t.Run("IndexFile", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, server.URL+"/index/3/f/foo", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(string(data), "\n"))
		assert.Contains(t, string(data), `"vers":"1.0.0"`)

		resp = doRequest(t, http.MethodGet, server.URL+"/index/3/b/bar", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Search", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, server.URL+"/api/v1/crates?q=foo", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Crates []struct {
				Name       string `json:"name"`
				MaxVersion string `json:"max_version"`
			} `json:"crates"`
			Meta struct {
				Total int `json:"total"`
			} `json:"meta"`
		}
		decodeBody(t, resp, &body)
		require.Equal(t, 1, body.Meta.Total)
		assert.Equal(t, "foo", body.Crates[0].Name)
		assert.Equal(t, "1.0.0", body.Crates[0].MaxVersion)
	})

	t.Run("Download", func(t *testing.T) {
		resp := doRequest(t, http.MethodGet, server.URL+"/api/v1/crates/foo/1.0.0/download", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, content, data)

		resp = doRequest(t, http.MethodGet, server.URL+"/api/v1/crates/foo/9.9.9/download", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Yank", func(t *testing.T) {
		resp := doRequest(t, http.MethodDelete, server.URL+"/api/v1/crates/foo/1.0.0/yank", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = doRequest(t, http.MethodGet, server.URL+"/index/3/f/foo", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"yanked":true`)

		resp = doRequest(t, http.MethodPut, server.URL+"/api/v1/crates/foo/1.0.0/unyank", token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Owners", func(t *testing.T) {
		bobToken := registerUser(t, server, "bob")

		// bob is not an owner yet
		resp := doRequest(t, http.MethodDelete, server.URL+"/api/v1/crates/foo/1.0.0/yank", bobToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		body := strings.NewReader(`{"users":["cargohold:bob"]}`)
		resp = doRequest(t, http.MethodPut, server.URL+"/api/v1/crates/foo/owners", token, body)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = doRequest(t, http.MethodGet, server.URL+"/api/v1/crates/foo/owners", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var owners struct {
			Users []struct {
				Login string `json:"login"`
			} `json:"users"`
		}
		decodeBody(t, resp, &owners)
		require.Len(t, owners.Users, 2)
		assert.Equal(t, "cargohold:alice", owners.Users[0].Login)
		assert.Equal(t, "cargohold:bob", owners.Users[1].Login)

		// bob can yank now
		resp = doRequest(t, http.MethodDelete, server.URL+"/api/v1/crates/foo/1.0.0/yank", bobToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		// removing every owner is rejected
		body = strings.NewReader(`{"users":["cargohold:alice","cargohold:bob"]}`)
		resp = doRequest(t, http.MethodDelete, server.URL+"/api/v1/crates/foo/owners", token, body)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		body = strings.NewReader(`{"users":[]}`)
		resp = doRequest(t, http.MethodDelete, server.URL+"/api/v1/crates/foo/owners", token, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("RevokeToken", func(t *testing.T) {
		resp := doRequest(t, http.MethodDelete, server.URL+"/cargohold/api/v1/token", token, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = doRequest(t, http.MethodPut, server.URL+"/api/v1/crates/new", token, publishPayload(t, "foo", "2.0.0", content))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

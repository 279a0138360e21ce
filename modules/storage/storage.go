// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

// Package storage holds the crate archive files. Archives are
// content-addressed: the path of a blob is derived from the sha256 of its
// bytes, so writes are idempotent and never conflict.
package storage

import (
	"io"
	"os"
)

// Object represents an object on the storage
type Object interface {
	io.ReadCloser
	io.Seeker
	Stat() (os.FileInfo, error)
}

// ObjectStorage represents an object storage to handle files
type ObjectStorage interface {
	Open(path string) (Object, error)
	// Save stores an object, if size is unknown set -1
	Save(path string, r io.Reader, size int64) (int64, error)
	Stat(path string) (os.FileInfo, error)
	Delete(path string) error
}

// BlobPath returns the storage path for a content hash, sharded by the first
// two byte pairs so a single directory never holds every blob
func BlobPath(hash string) string {
	if len(hash) < 4 {
		return hash
	}
	return hash[0:2] + "/" + hash[2:4] + "/" + hash
}

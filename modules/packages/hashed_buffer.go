// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package packages

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"

	"github.com/cargohold/cargohold/modules/util/filebuffer"
)

// DefaultMemorySize is the memory budget above which a buffered upload
// spills to a temporary file
const DefaultMemorySize = 32 * 1024 * 1024

// HashedBuffer is a buffer which calculates the sha256 checksum of the data
// written to it, so an archive can be checksummed in the same pass that
// spools it for storage. Large payloads are backed by a temporary file, the
// caller must Close the buffer.
type HashedBuffer struct {
	*filebuffer.FileBackedBuffer

	hash           hash.Hash
	combinedWriter io.Writer
}

// NewHashedBuffer creates a hashed buffer with the default memory size
func NewHashedBuffer() *HashedBuffer {
	return NewHashedBufferWithSize(DefaultMemorySize)
}

// NewHashedBufferWithSize creates a hashed buffer with a specific memory size
func NewHashedBufferWithSize(maxMemorySize int) *HashedBuffer {
	b := filebuffer.New(maxMemorySize)
	h := sha256.New()
	return &HashedBuffer{
		FileBackedBuffer: b,
		hash:             h,
		combinedWriter:   io.MultiWriter(b, h),
	}
}

// CreateHashedBufferFromReader creates a hashed buffer with the default
// memory size and copies the provided reader data into it
func CreateHashedBufferFromReader(r io.Reader) (*HashedBuffer, error) {
	return CreateHashedBufferFromReaderWithSize(r, DefaultMemorySize)
}

// CreateHashedBufferFromReaderWithSize creates a hashed buffer and copies the
// provided reader data into it
func CreateHashedBufferFromReaderWithSize(r io.Reader, maxMemorySize int) (*HashedBuffer, error) {
	b := NewHashedBufferWithSize(maxMemorySize)
	if _, err := io.Copy(b, r); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

// Write implements io.Writer
func (b *HashedBuffer) Write(p []byte) (int, error) {
	return b.combinedWriter.Write(p)
}

// Sum returns the lowercase hex sha256 checksum of the written data
func (b *HashedBuffer) Sum() string {
	return hex.EncodeToString(b.hash.Sum(nil))
}

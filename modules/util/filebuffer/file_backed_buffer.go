// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

// Package filebuffer provides a buffer that spills to a temporary file once
// it outgrows its memory budget, so buffering an upload never holds an
// arbitrarily large payload in memory.
package filebuffer

import (
	"bytes"
	"errors"
	"io"
	"os"
)

// ErrWriteAfterRead occurs if Write is called after a read operation
var ErrWriteAfterRead = errors.New("write is unsupported after a read operation")

// FileBackedBuffer uses a memory buffer with a fixed size. If more data is
// written a temporary file is used instead. The buffer is write-then-read:
// the first read freezes the content.
type FileBackedBuffer struct {
	maxMemorySize int64
	size          int64
	buffer        bytes.Buffer
	file          *os.File
	reader        io.ReadSeeker
}

// New creates a file backed buffer with a specific maximum memory size
func New(maxMemorySize int) *FileBackedBuffer {
	return &FileBackedBuffer{maxMemorySize: int64(maxMemorySize)}
}

// Write implements io.Writer
func (b *FileBackedBuffer) Write(p []byte) (int, error) {
	if b.reader != nil {
		return 0, ErrWriteAfterRead
	}

	var n int
	var err error

	if b.file != nil {
		n, err = b.file.Write(p)
	} else {
		if b.size+int64(len(p)) > b.maxMemorySize {
			b.file, err = os.CreateTemp("", "cargohold-buffer-")
			if err != nil {
				return 0, err
			}

			if _, err = io.Copy(b.file, &b.buffer); err != nil {
				return 0, err
			}

			return b.Write(p)
		}

		n, err = b.buffer.Write(p)
	}

	if err != nil {
		return n, err
	}
	b.size += int64(n)
	return n, nil
}

// Size returns the byte size of the buffered data
func (b *FileBackedBuffer) Size() int64 {
	return b.size
}

func (b *FileBackedBuffer) switchToReader() error {
	if b.reader != nil {
		return nil
	}

	if b.file != nil {
		if _, err := b.file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		b.reader = b.file
	} else {
		b.reader = bytes.NewReader(b.buffer.Bytes())
	}
	return nil
}

// Read implements io.Reader
func (b *FileBackedBuffer) Read(p []byte) (int, error) {
	if err := b.switchToReader(); err != nil {
		return 0, err
	}
	return b.reader.Read(p)
}

// Seek implements io.Seeker
func (b *FileBackedBuffer) Seek(offset int64, whence int) (int64, error) {
	if err := b.switchToReader(); err != nil {
		return 0, err
	}
	return b.reader.Seek(offset, whence)
}

// Close implements io.Closer, removing the temporary file if one was created
func (b *FileBackedBuffer) Close() error {
	if b.file != nil {
		err := b.file.Close()
		_ = os.Remove(b.file.Name())
		b.file = nil
		return err
	}
	return nil
}

// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cargohold/cargohold/modules/util"
)

var _ ObjectStorage = (*LocalStorage)(nil)

// LocalStorage represents local file system storage
type LocalStorage struct {
	dir    string
	tmpdir string
}

// NewLocalStorage returns a local files storage rooted at dir
func NewLocalStorage(dir string) (*LocalStorage, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absDir, os.ModePerm); err != nil {
		return nil, err
	}
	tmpdir := filepath.Join(absDir, "tmp")
	if err := os.MkdirAll(tmpdir, os.ModePerm); err != nil {
		return nil, err
	}
	return &LocalStorage{dir: absDir, tmpdir: tmpdir}, nil
}

func (l *LocalStorage) buildLocalPath(p string) (string, error) {
	p = filepath.Clean("/" + strings.ReplaceAll(p, "\\", "/"))[1:]
	if p == "" || p == "tmp" || strings.HasPrefix(p, "tmp/") {
		return "", util.NewInvalidArgumentErrorf("invalid storage path %q", p)
	}
	return filepath.Join(l.dir, p), nil
}

// Open a file
func (l *LocalStorage) Open(p string) (Object, error) {
	local, err := l.buildLocalPath(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(local)
	if os.IsNotExist(err) {
		return nil, util.NewNotExistErrorf("object %q does not exist", p)
	}
	return f, err
}

// Save a file. The write goes through a temporary file renamed into place so
// a reader can never observe a partially written object.
func (l *LocalStorage) Save(p string, r io.Reader, size int64) (int64, error) {
	local, err := l.buildLocalPath(p)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(local), os.ModePerm); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(l.tmpdir, "upload-*")
	if err != nil {
		return 0, err
	}
	tmpRemoved := false
	defer func() {
		if !tmpRemoved {
			_ = os.Remove(tmp.Name())
		}
	}()

	var n int64
	if size >= 0 {
		n, err = io.CopyN(tmp, r, size)
	} else {
		n, err = io.Copy(tmp, r)
	}
	if err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if size >= 0 && n != size {
		return 0, fmt.Errorf("short write: wrote %d of %d bytes", n, size)
	}

	if err := os.Rename(tmp.Name(), local); err != nil {
		return 0, err
	}
	tmpRemoved = true

	return n, nil
}

// Stat a file
func (l *LocalStorage) Stat(p string) (os.FileInfo, error) {
	local, err := l.buildLocalPath(p)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(local)
	if os.IsNotExist(err) {
		return nil, util.NewNotExistErrorf("object %q does not exist", p)
	}
	return fi, err
}

// Delete a file
func (l *LocalStorage) Delete(p string) error {
	local, err := l.buildLocalPath(p)
	if err != nil {
		return err
	}
	return os.Remove(local)
}

// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package registry

import "github.com/cargohold/cargohold/modules/util"

var (
	// ErrPackageNotExist indicates a package not exist error
	ErrPackageNotExist = util.NewNotExistErrorf("package does not exist")
	// ErrVersionNotExist indicates a package version not exist error
	ErrVersionNotExist = util.NewNotExistErrorf("package version does not exist")
	// ErrDuplicateVersion indicates the version was published before
	ErrDuplicateVersion = util.NewAlreadyExistErrorf("package version already exists")
	// ErrOwnersWouldBeEmpty indicates an owner removal that would leave the
	// package without any owner
	ErrOwnersWouldBeEmpty = util.NewConflictErrorf("cannot remove all owners of a package")
	// ErrWriteConflict indicates the package was modified by a concurrent
	// writer, the operation can be retried with fresh state
	ErrWriteConflict = util.NewConflictErrorf("package was modified concurrently")
	// ErrTokenNotExist indicates a token not exist error
	ErrTokenNotExist = util.NewNotExistErrorf("token does not exist")
)

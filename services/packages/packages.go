// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

// Package packages orchestrates the registry operations.
//
// A publish request moves through Received → Validated → Stored → Indexed →
// Acknowledged, or straight to Rejected during validation. The crate file is
// stored before the backend commits metadata and index line, so a failure at
// any point leaves either the previous fully-valid state or the new
// fully-valid state visible, never a version whose file or index entry is
// missing. The ordering logic lives here so correctness never depends on the
// strongest guarantee of any single engine.
package packages

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/cargohold/cargohold/models/registry"
	"github.com/cargohold/cargohold/modules/json"
	"github.com/cargohold/cargohold/modules/log"
	packages_module "github.com/cargohold/cargohold/modules/packages"
	cargo_module "github.com/cargohold/cargohold/modules/packages/cargo"
	"github.com/cargohold/cargohold/modules/storage"
	"github.com/cargohold/cargohold/modules/util"
	"github.com/cargohold/cargohold/services/auth"
)

// Service drives the registry backend and the crate file store
type Service struct {
	backend registry.Backend
	store   storage.ObjectStorage

	downloadURL string
	apiURL      string
}

// NewService creates the orchestrator. downloadURL and apiURL end up in the
// index config.json consumed by cargo.
func NewService(backend registry.Backend, store storage.ObjectStorage, downloadURL, apiURL string) *Service {
	return &Service{
		backend:     backend,
		store:       store,
		downloadURL: downloadURL,
		apiURL:      apiURL,
	}
}

// PublishResult describes an accepted publish
type PublishResult struct {
	Name     string
	Version  string
	Checksum string
}

// Publish validates and stores a new crate version from a cargo publish
// payload. The requester must be an owner of the crate, or the crate must be
// new, in which case the requester becomes its sole owner.
func (s *Service) Publish(ctx context.Context, doer *auth.Identity, r io.Reader) (*PublishResult, error) {
	cp, err := cargo_module.ParsePackage(r)
	if err != nil {
		if errors.Is(err, cargo_module.ErrInvalidName) || errors.Is(err, cargo_module.ErrInvalidVersion) {
			return nil, util.NewInvalidArgumentErrorf("%v", err)
		}
		return nil, util.NewInvalidArgumentErrorf("invalid publish payload: %v", err)
	}

	buf, err := packages_module.CreateHashedBufferFromReader(cp.Content)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	if buf.Size() != cp.ContentSize {
		return nil, util.NewInvalidArgumentErrorf("crate file is truncated")
	}
	checksum := buf.Sum()

	p, err := s.backend.GetPackage(ctx, cp.Name)
	switch {
	case errors.Is(err, util.ErrNotExist):
		// first publish, doer becomes the sole owner
	case err != nil:
		return nil, err
	default:
		if p.FindVersion(cp.Version) != nil {
			return nil, registry.ErrDuplicateVersion
		}
		if !p.HasOwner(doer.Login) {
			return nil, util.NewPermissionDeniedErrorf("%s is not an owner of %s", doer.Login, cp.Name)
		}
	}

	// Stored: idempotent, re-publishing identical bytes is a no-op
	blobPath := storage.BlobPath(checksum)
	if _, err := s.store.Stat(blobPath); errors.Is(err, util.ErrNotExist) {
		if _, err := s.store.Save(blobPath, buf, buf.Size()); err != nil {
			return nil, util.NewUnavailableErrorf("cannot store crate file: %v", err)
		}
	} else if err != nil {
		return nil, util.NewUnavailableErrorf("cannot store crate file: %v", err)
	}

	// Indexed: one backend operation commits metadata and index line
	v := &registry.Version{
		Vers:        cp.Version,
		Deps:        cp.Metadata.Dependencies,
		Cksum:       checksum,
		Features:    cp.Metadata.Features,
		Links:       cp.Metadata.Links,
		Description: cp.Metadata.Description,
	}
	if err := s.backend.PublishVersion(ctx, cp.Name, v, doer.Login); err != nil {
		return nil, err
	}

	log.Info("Published %s@%s by %s", cp.Name, cp.Version, doer.Login)
	return &PublishResult{Name: cp.Name, Version: cp.Version, Checksum: checksum}, nil
}

// Yank marks a version as not-to-be-selected, Unyank reverses it. Both are
// idempotent and require the requester to be an owner.
func (s *Service) Yank(ctx context.Context, doer *auth.Identity, name, vers string, yanked bool) error {
	if err := s.requireOwner(ctx, doer, name); err != nil {
		return err
	}
	return s.backend.SetYanked(ctx, name, vers, yanked)
}

// ListOwners returns the owner set of a crate
func (s *Service) ListOwners(ctx context.Context, name string) ([]string, error) {
	return s.backend.ListOwners(ctx, name)
}

// AddOwners adds owners to a crate on behalf of an existing owner
func (s *Service) AddOwners(ctx context.Context, doer *auth.Identity, name string, logins []string) error {
	if err := s.requireOwner(ctx, doer, name); err != nil {
		return err
	}
	return s.backend.AddOwners(ctx, name, logins)
}

// RemoveOwners removes owners from a crate on behalf of an existing owner.
// Removing the last owner fails with registry.ErrOwnersWouldBeEmpty.
func (s *Service) RemoveOwners(ctx context.Context, doer *auth.Identity, name string, logins []string) error {
	if err := s.requireOwner(ctx, doer, name); err != nil {
		return err
	}
	return s.backend.RemoveOwners(ctx, name, logins)
}

// SearchResult is one row of a search response
type SearchResult struct {
	Name        string
	MaxVersion  string
	Description string
}

// Search returns crates matching the query. Reads may be stale, they
// reflect some valid prior state.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*SearchResult, error) {
	pkgs, err := s.backend.SearchPackages(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	results := make([]*SearchResult, 0, len(pkgs))
	for _, p := range pkgs {
		latest := p.LatestVersion()
		if latest == nil {
			continue
		}
		results = append(results, &SearchResult{
			Name:        p.Name,
			MaxVersion:  latest.Vers,
			Description: latest.Description,
		})
	}
	return results, nil
}

// Download opens the crate file of a version and bumps the download
// counters. The counter update runs detached from the request, a lost
// increment is acceptable, a blocked download is not.
func (s *Service) Download(ctx context.Context, name, vers string) (storage.Object, error) {
	p, err := s.backend.GetPackage(ctx, name)
	if err != nil {
		return nil, err
	}
	v := p.FindVersion(vers)
	if v == nil {
		return nil, registry.ErrVersionNotExist
	}

	obj, err := s.store.Open(storage.BlobPath(v.Cksum))
	if err != nil {
		return nil, err
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.backend.IncrementDownload(ctx, name, vers); err != nil {
			log.Debug("Cannot increment download counter for %s@%s: %v", name, vers, err)
		}
	}()

	return obj, nil
}

// GetBlob opens a crate file by its exact checksum
func (s *Service) GetBlob(_ context.Context, checksum string) (storage.Object, error) {
	return s.store.Open(storage.BlobPath(checksum))
}

// GetIndexFile serves one file of the sparse HTTP index. The path is either
// the config file or a sharded crate path like "ca/rg/cargohold".
func (s *Service) GetIndexFile(ctx context.Context, path string) ([]byte, error) {
	path = strings.Trim(path, "/")
	if path == cargo_module.ConfigFileName {
		return json.Marshal(&cargo_module.Config{
			DownloadURL: s.downloadURL,
			APIURL:      s.apiURL,
		})
	}

	name := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		name = path[i+1:]
	}
	if !cargo_module.IsValidName(name) || cargo_module.BuildPackagePath(name) != path {
		return nil, util.NewNotExistErrorf("index file %q does not exist", path)
	}

	lines, err := s.backend.IndexLines(ctx, name)
	if err != nil {
		return nil, err
	}
	return []byte(strings.Join(lines, "\n") + "\n"), nil
}

func (s *Service) requireOwner(ctx context.Context, doer *auth.Identity, name string) error {
	owners, err := s.backend.ListOwners(ctx, name)
	if err != nil {
		return err
	}
	for _, o := range owners {
		if o == doer.Login {
			return nil
		}
	}
	return util.NewPermissionDeniedErrorf("%s is not an owner of %s", doer.Login, name)
}

// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

// Package registry defines the storage contract of the crate registry and
// the document model shared by every storage engine.
//
// A crate and everything belonging to it — its publish-ordered versions, its
// owner set and its download counter — form one logical document. Each
// engine persists that document inside its own atomic unit (leveldb batch,
// redis MULTI/EXEC under WATCH, mongo single-document update) so a reader
// can never observe a version whose index entry or metadata is missing.
package registry

import (
	"strings"

	"github.com/cargohold/cargohold/modules/json"
	cargo_module "github.com/cargohold/cargohold/modules/packages/cargo"
	"github.com/cargohold/cargohold/modules/util"

	"github.com/hashicorp/go-version"
)

// Package is the stored state of one crate
type Package struct {
	// Name is the name as first published, preserved for display. Lookups
	// and uniqueness use the normalized form.
	Name string `json:"name" bson:"name"`

	// Versions are in strict publish order and are never removed
	Versions []*Version `json:"versions" bson:"versions"`

	// Owners are the logins allowed to publish, yank and manage the crate.
	// The set is never empty.
	Owners []string `json:"owners" bson:"owners"`

	Downloads int64 `json:"downloads" bson:"downloads"`

	// Revision counts accepted mutations, used by engines without
	// multi-key transactions to detect concurrent writers
	Revision int64 `json:"revision" bson:"revision"`
}

// Version is one published version of a crate. Once published only the
// Yanked flag and the download counter may change.
type Version struct {
	Vers        string                     `json:"vers" bson:"vers"`
	Deps        []*cargo_module.Dependency `json:"deps" bson:"deps"`
	Cksum       string                     `json:"cksum" bson:"cksum"`
	Features    map[string][]string        `json:"features" bson:"features"`
	Yanked      bool                       `json:"yanked" bson:"yanked"`
	Links       string                     `json:"links,omitempty" bson:"links,omitempty"`
	Description string                     `json:"description,omitempty" bson:"description,omitempty"`
	Downloads   int64                      `json:"downloads" bson:"downloads"`
}

// NormalizeName folds a crate name for storage keys and uniqueness checks
func NormalizeName(name string) string {
	return cargo_module.NormalizeName(name)
}

// FindVersion returns the version matching vers, or nil. Versions are
// compared as semvers, so "1.0.0" and "1.0.0+meta" do not collide silently.
func (p *Package) FindVersion(vers string) *Version {
	want, err := version.NewSemver(vers)
	if err != nil {
		return nil
	}
	for _, v := range p.Versions {
		have, err := version.NewSemver(v.Vers)
		if err != nil {
			continue
		}
		if have.Equal(want) {
			return v
		}
	}
	return nil
}

// HasOwner reports whether login is in the owner set
func (p *Package) HasOwner(login string) bool {
	for _, o := range p.Owners {
		if o == login {
			return true
		}
	}
	return false
}

// LatestVersion returns the last published version
func (p *Package) LatestVersion() *Version {
	if len(p.Versions) == 0 {
		return nil
	}
	return p.Versions[len(p.Versions)-1]
}

// AddVersion appends a new version, rejecting duplicates
func (p *Package) AddVersion(v *Version) error {
	if p.FindVersion(v.Vers) != nil {
		return ErrDuplicateVersion
	}
	p.Versions = append(p.Versions, v)
	p.Revision++
	return nil
}

// SetYanked flips the yanked flag of an existing version. It reports whether
// the flag actually changed, yanking an already-yanked version is a no-op.
func (p *Package) SetYanked(vers string, yanked bool) (bool, error) {
	v := p.FindVersion(vers)
	if v == nil {
		return false, ErrVersionNotExist
	}
	if v.Yanked == yanked {
		return false, nil
	}
	v.Yanked = yanked
	p.Revision++
	return true, nil
}

// AddOwners adds logins to the owner set, ignoring ones already present
func (p *Package) AddOwners(logins []string) {
	for _, login := range logins {
		if !p.HasOwner(login) {
			p.Owners = append(p.Owners, login)
		}
	}
	p.Revision++
}

// RemoveOwners removes logins from the owner set. Removing the last owner is
// rejected: a crate must have at least one owner at all times.
func (p *Package) RemoveOwners(logins []string) error {
	remaining := make([]string, 0, len(p.Owners))
	for _, o := range p.Owners {
		keep := true
		for _, login := range logins {
			if o == login {
				keep = false
				break
			}
		}
		if keep {
			remaining = append(remaining, o)
		}
	}
	if len(remaining) == 0 {
		return ErrOwnersWouldBeEmpty
	}
	p.Owners = remaining
	p.Revision++
	return nil
}

// BuildIndexLine renders the index record of a single version
func BuildIndexLine(name string, v *Version) (string, error) {
	deps := v.Deps
	if deps == nil {
		deps = make([]*cargo_module.Dependency, 0)
	}
	features := v.Features
	if features == nil {
		features = make(map[string][]string)
	}
	entry, err := json.Marshal(&cargo_module.IndexVersionEntry{
		Name:         name,
		Version:      v.Vers,
		Dependencies: deps,
		FileChecksum: v.Cksum,
		Features:     features,
		Yanked:       v.Yanked,
		Links:        v.Links,
	})
	if err != nil {
		return "", err
	}
	return string(entry), nil
}

// BuildIndex renders the full index stream of a package, one line per
// version in publish order
func (p *Package) BuildIndex() ([]string, error) {
	lines := make([]string, 0, len(p.Versions))
	for _, v := range p.Versions {
		line, err := BuildIndexLine(p.Name, v)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// MatchesQuery reports whether the package matches a search query
func (p *Package) MatchesQuery(query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(NormalizeName(p.Name), NormalizeName(query))
}

func checkIndexSync(p *Package, indexLineCount int) error {
	if indexLineCount != len(p.Versions) {
		return util.NewInvariantBrokenErrorf("package %s has %d versions but %d index lines", p.Name, len(p.Versions), indexLineCount)
	}
	return nil
}

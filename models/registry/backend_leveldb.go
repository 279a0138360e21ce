// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package registry

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/cargohold/cargohold/modules/json"
	"github.com/cargohold/cargohold/modules/nosql"
	"github.com/cargohold/cargohold/modules/util"

	"github.com/syndtr/goleveldb/leveldb"
	leveldb_util "github.com/syndtr/goleveldb/leveldb/util"
)

// levelDBBackend stores each crate under two keys, pkg/<name>/meta holding
// the package document and pkg/<name>/index holding the newline-delimited
// index stream. A publish writes both through one leveldb batch, so the
// metadata update and the index append become visible together. This engine
// has the strongest guarantees of the three and serves as the correctness
// reference.
type levelDBBackend struct {
	db *leveldb.DB

	// per-package write locks, leveldb batches are atomic but not
	// conditional, so read-modify-write cycles serialize per crate
	locks sync.Map
}

var _ FullBackend = (*levelDBBackend)(nil)

func newLevelDBBackendFromPath(path string) (*levelDBBackend, error) {
	db, err := nosql.GetManager().GetLevelDB(path)
	if err != nil {
		return nil, util.NewUnavailableErrorf("cannot open leveldb at %s: %v", path, err)
	}
	return NewLevelDBBackend(db), nil
}

// NewLevelDBBackend creates a backend on an open leveldb handle. Tests use
// this with an in-memory storage.
func NewLevelDBBackend(db *leveldb.DB) *levelDBBackend {
	return &levelDBBackend{db: db}
}

const (
	levelDBPkgPrefix   = "pkg/"
	levelDBMetaSuffix  = "/meta"
	levelDBIndexSuffix = "/index"
	levelDBTokenPrefix = "token/"
)

func levelDBMetaKey(name string) []byte {
	return []byte(levelDBPkgPrefix + NormalizeName(name) + levelDBMetaSuffix)
}

func levelDBIndexKey(name string) []byte {
	return []byte(levelDBPkgPrefix + NormalizeName(name) + levelDBIndexSuffix)
}

func (b *levelDBBackend) lock(name string) func() {
	mu, _ := b.locks.LoadOrStore(NormalizeName(name), &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	return mu.(*sync.Mutex).Unlock
}

func (b *levelDBBackend) getPackage(name string) (*Package, error) {
	data, err := b.db.Get(levelDBMetaKey(name), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrPackageNotExist
	}
	if err != nil {
		return nil, util.NewUnavailableErrorf("leveldb get: %v", err)
	}
	p := &Package{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *levelDBBackend) getIndex(name string) ([]string, error) {
	data, err := b.db.Get(levelDBIndexKey(name), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrPackageNotExist
	}
	if err != nil {
		return nil, util.NewUnavailableErrorf("leveldb get: %v", err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n"), nil
}

func (b *levelDBBackend) putPackage(p *Package, indexLines []string) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Put(levelDBMetaKey(p.Name), data)
	batch.Put(levelDBIndexKey(p.Name), []byte(strings.Join(indexLines, "\n")+"\n"))
	if err := b.db.Write(batch, nil); err != nil {
		return util.NewUnavailableErrorf("leveldb write: %v", err)
	}
	return nil
}

func (b *levelDBBackend) putMeta(p *Package) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := b.db.Put(levelDBMetaKey(p.Name), data, nil); err != nil {
		return util.NewUnavailableErrorf("leveldb put: %v", err)
	}
	return nil
}

// GetPackage implements Backend
func (b *levelDBBackend) GetPackage(_ context.Context, name string) (*Package, error) {
	return b.getPackage(name)
}

// PublishVersion implements Backend
func (b *levelDBBackend) PublishVersion(_ context.Context, name string, v *Version, publisher string) error {
	defer b.lock(name)()

	p, err := b.getPackage(name)
	if errors.Is(err, util.ErrNotExist) {
		p = &Package{Name: name, Owners: []string{publisher}}
	} else if err != nil {
		return err
	}

	existing := 0
	if len(p.Versions) > 0 {
		lines, err := b.getIndex(name)
		if err != nil && !errors.Is(err, util.ErrNotExist) {
			return err
		}
		existing = len(lines)
	}
	if err := checkIndexSync(p, existing); err != nil {
		return err
	}

	if err := p.AddVersion(v); err != nil {
		return err
	}
	lines, err := p.BuildIndex()
	if err != nil {
		return err
	}
	return b.putPackage(p, lines)
}

// SetYanked implements Backend
func (b *levelDBBackend) SetYanked(_ context.Context, name, vers string, yanked bool) error {
	defer b.lock(name)()

	p, err := b.getPackage(name)
	if err != nil {
		return err
	}
	changed, err := p.SetYanked(vers, yanked)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	lines, err := p.BuildIndex()
	if err != nil {
		return err
	}
	return b.putPackage(p, lines)
}

// ListOwners implements Backend
func (b *levelDBBackend) ListOwners(_ context.Context, name string) ([]string, error) {
	p, err := b.getPackage(name)
	if err != nil {
		return nil, err
	}
	return p.Owners, nil
}

// AddOwners implements Backend
func (b *levelDBBackend) AddOwners(_ context.Context, name string, logins []string) error {
	defer b.lock(name)()

	p, err := b.getPackage(name)
	if err != nil {
		return err
	}
	p.AddOwners(logins)
	return b.putMeta(p)
}

// RemoveOwners implements Backend
func (b *levelDBBackend) RemoveOwners(_ context.Context, name string, logins []string) error {
	defer b.lock(name)()

	p, err := b.getPackage(name)
	if err != nil {
		return err
	}
	if err := p.RemoveOwners(logins); err != nil {
		return err
	}
	return b.putMeta(p)
}

// IncrementDownload implements Backend
func (b *levelDBBackend) IncrementDownload(_ context.Context, name, vers string) error {
	defer b.lock(name)()

	p, err := b.getPackage(name)
	if err != nil {
		return err
	}
	v := p.FindVersion(vers)
	if v == nil {
		return ErrVersionNotExist
	}
	v.Downloads++
	p.Downloads++
	return b.putMeta(p)
}

// SearchPackages implements Backend
func (b *levelDBBackend) SearchPackages(_ context.Context, query string, limit int) ([]*Package, error) {
	it := b.db.NewIterator(leveldb_util.BytesPrefix([]byte(levelDBPkgPrefix)), nil)
	defer it.Release()

	var result []*Package
	for it.Next() {
		if !strings.HasSuffix(string(it.Key()), levelDBMetaSuffix) {
			continue
		}
		p := &Package{}
		if err := json.Unmarshal(it.Value(), p); err != nil {
			return nil, err
		}
		if !p.MatchesQuery(query) {
			continue
		}
		result = append(result, p)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	if err := it.Error(); err != nil {
		return nil, util.NewUnavailableErrorf("leveldb iterate: %v", err)
	}
	return result, nil
}

// IndexLines implements Backend
func (b *levelDBBackend) IndexLines(_ context.Context, name string) ([]string, error) {
	return b.getIndex(name)
}

// PutToken implements TokenStore
func (b *levelDBBackend) PutToken(_ context.Context, tokenHash, login string) error {
	if err := b.db.Put([]byte(levelDBTokenPrefix+tokenHash), []byte(login), nil); err != nil {
		return util.NewUnavailableErrorf("leveldb put: %v", err)
	}
	return nil
}

// LookupToken implements TokenStore
func (b *levelDBBackend) LookupToken(_ context.Context, tokenHash string) (string, error) {
	login, err := b.db.Get([]byte(levelDBTokenPrefix+tokenHash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", ErrTokenNotExist
	}
	if err != nil {
		return "", util.NewUnavailableErrorf("leveldb get: %v", err)
	}
	return string(login), nil
}

// RevokeToken implements TokenStore
func (b *levelDBBackend) RevokeToken(_ context.Context, tokenHash string) error {
	if err := b.db.Delete([]byte(levelDBTokenPrefix+tokenHash), nil); err != nil {
		return util.NewUnavailableErrorf("leveldb delete: %v", err)
	}
	return nil
}

// Close implements Backend
func (b *levelDBBackend) Close() error {
	return b.db.Close()
}

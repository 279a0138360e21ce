// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package registry

import (
	"context"
	"errors"
	"strconv"

	"github.com/cargohold/cargohold/modules/json"
	"github.com/cargohold/cargohold/modules/nosql"
	"github.com/cargohold/cargohold/modules/util"

	"github.com/redis/go-redis/v9"
)

// redisBackend stores the package document under a string key and the index
// stream as a list, one line per element. Redis has no multi-key
// transactions in the leveldb sense, so every read-modify-write runs under
// WATCH on the document key: the MULTI/EXEC block aborts if a concurrent
// writer touched the document, the losing writer surfaces ErrWriteConflict
// and must retry with fresh state. Index and document are written inside the
// same EXEC, so both become visible together.
//
// Download counters live in a side hash updated with a single HINCRBY, not
// under WATCH. They are statistics, losing an increment under contention is
// accepted.
type redisBackend struct {
	client redis.UniversalClient
}

var _ FullBackend = (*redisBackend)(nil)

func newRedisBackendFromConn(conn string) (*redisBackend, error) {
	client, err := nosql.GetManager().GetRedisClient(conn)
	if err != nil {
		return nil, util.NewUnavailableErrorf("cannot connect to redis: %v", err)
	}
	return NewRedisBackend(client), nil
}

// NewRedisBackend creates a backend on an established redis client
func NewRedisBackend(client redis.UniversalClient) *redisBackend {
	return &redisBackend{client: client}
}

const (
	redisMetaPrefix      = "cargohold:pkg:"
	redisIndexPrefix     = "cargohold:index:"
	redisDownloadsPrefix = "cargohold:dl:"
	redisTokenPrefix     = "cargohold:token:"
)

func redisMetaKey(name string) string {
	return redisMetaPrefix + NormalizeName(name)
}

func redisIndexKey(name string) string {
	return redisIndexPrefix + NormalizeName(name)
}

func redisDownloadsKey(name string) string {
	return redisDownloadsPrefix + NormalizeName(name)
}

func unmarshalRedisPackage(data []byte) (*Package, error) {
	p := &Package{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *redisBackend) getPackage(ctx context.Context, name string) (*Package, error) {
	data, err := b.client.Get(ctx, redisMetaKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrPackageNotExist
	}
	if err != nil {
		return nil, util.NewUnavailableErrorf("redis get: %v", err)
	}
	return unmarshalRedisPackage(data)
}

// mergeDownloads folds the side-hash counters into the document
func (b *redisBackend) mergeDownloads(ctx context.Context, p *Package) {
	counts, err := b.client.HGetAll(ctx, redisDownloadsKey(p.Name)).Result()
	if err != nil {
		return
	}
	var total int64
	for _, v := range p.Versions {
		var n int64
		if s, ok := counts[v.Vers]; ok {
			n, _ = strconv.ParseInt(s, 10, 64)
		}
		v.Downloads = n
		total += n
	}
	p.Downloads = total
}

// update runs fn on the current document under WATCH and writes the result
// together with the full index stream. A concurrent writer aborts the EXEC
// and the caller sees ErrWriteConflict.
func (b *redisBackend) update(ctx context.Context, name string, allowMissing bool, fn func(p *Package) (*Package, error)) error {
	metaKey := redisMetaKey(name)
	indexKey := redisIndexKey(name)

	err := b.client.Watch(ctx, func(tx *redis.Tx) error {
		var p *Package
		data, err := tx.Get(ctx, metaKey).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if !allowMissing {
				return ErrPackageNotExist
			}
		case err != nil:
			return util.NewUnavailableErrorf("redis get: %v", err)
		default:
			if p, err = unmarshalRedisPackage(data); err != nil {
				return err
			}
		}

		if p != nil {
			n, err := tx.LLen(ctx, indexKey).Result()
			if err != nil {
				return util.NewUnavailableErrorf("redis llen: %v", err)
			}
			if err := checkIndexSync(p, int(n)); err != nil {
				return err
			}
		}

		p, err = fn(p)
		if err != nil {
			return err
		}

		doc, err := json.Marshal(p)
		if err != nil {
			return err
		}
		lines, err := p.BuildIndex()
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, indexKey)
			for _, line := range lines {
				pipe.RPush(ctx, indexKey, line)
			}
			pipe.Set(ctx, metaKey, doc, 0)
			return nil
		})
		return err
	}, metaKey)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrWriteConflict
	}
	return err
}

// GetPackage implements Backend
func (b *redisBackend) GetPackage(ctx context.Context, name string) (*Package, error) {
	p, err := b.getPackage(ctx, name)
	if err != nil {
		return nil, err
	}
	b.mergeDownloads(ctx, p)
	return p, nil
}

// PublishVersion implements Backend
func (b *redisBackend) PublishVersion(ctx context.Context, name string, v *Version, publisher string) error {
	return b.update(ctx, name, true, func(p *Package) (*Package, error) {
		if p == nil {
			p = &Package{Name: name, Owners: []string{publisher}}
		}
		if err := p.AddVersion(v); err != nil {
			return nil, err
		}
		return p, nil
	})
}

// SetYanked implements Backend
func (b *redisBackend) SetYanked(ctx context.Context, name, vers string, yanked bool) error {
	return b.update(ctx, name, false, func(p *Package) (*Package, error) {
		if _, err := p.SetYanked(vers, yanked); err != nil {
			return nil, err
		}
		return p, nil
	})
}

// ListOwners implements Backend
func (b *redisBackend) ListOwners(ctx context.Context, name string) ([]string, error) {
	p, err := b.getPackage(ctx, name)
	if err != nil {
		return nil, err
	}
	return p.Owners, nil
}

// AddOwners implements Backend
func (b *redisBackend) AddOwners(ctx context.Context, name string, logins []string) error {
	return b.update(ctx, name, false, func(p *Package) (*Package, error) {
		p.AddOwners(logins)
		return p, nil
	})
}

// RemoveOwners implements Backend
func (b *redisBackend) RemoveOwners(ctx context.Context, name string, logins []string) error {
	return b.update(ctx, name, false, func(p *Package) (*Package, error) {
		if err := p.RemoveOwners(logins); err != nil {
			return nil, err
		}
		return p, nil
	})
}

// IncrementDownload implements Backend. The hash field is the stored version
// spelling, resolved by semver, so an increment through an alias like "1.0"
// lands on the same counter mergeDownloads reads back.
func (b *redisBackend) IncrementDownload(ctx context.Context, name, vers string) error {
	p, err := b.getPackage(ctx, name)
	if err != nil {
		return err
	}
	v := p.FindVersion(vers)
	if v == nil {
		return ErrVersionNotExist
	}
	if err := b.client.HIncrBy(ctx, redisDownloadsKey(name), v.Vers, 1).Err(); err != nil {
		return util.NewUnavailableErrorf("redis hincrby: %v", err)
	}
	return nil
}

// SearchPackages implements Backend
func (b *redisBackend) SearchPackages(ctx context.Context, query string, limit int) ([]*Package, error) {
	var result []*Package
	iter := b.client.Scan(ctx, 0, redisMetaPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := b.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, util.NewUnavailableErrorf("redis get: %v", err)
		}
		p, err := unmarshalRedisPackage(data)
		if err != nil {
			return nil, err
		}
		if !p.MatchesQuery(query) {
			continue
		}
		b.mergeDownloads(ctx, p)
		result = append(result, p)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, util.NewUnavailableErrorf("redis scan: %v", err)
	}
	return result, nil
}

// IndexLines implements Backend
func (b *redisBackend) IndexLines(ctx context.Context, name string) ([]string, error) {
	lines, err := b.client.LRange(ctx, redisIndexKey(name), 0, -1).Result()
	if err != nil {
		return nil, util.NewUnavailableErrorf("redis lrange: %v", err)
	}
	if len(lines) == 0 {
		return nil, ErrPackageNotExist
	}
	return lines, nil
}

// PutToken implements TokenStore
func (b *redisBackend) PutToken(ctx context.Context, tokenHash, login string) error {
	if err := b.client.Set(ctx, redisTokenPrefix+tokenHash, login, 0).Err(); err != nil {
		return util.NewUnavailableErrorf("redis set: %v", err)
	}
	return nil
}

// LookupToken implements TokenStore
func (b *redisBackend) LookupToken(ctx context.Context, tokenHash string) (string, error) {
	login, err := b.client.Get(ctx, redisTokenPrefix+tokenHash).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenNotExist
	}
	if err != nil {
		return "", util.NewUnavailableErrorf("redis get: %v", err)
	}
	return login, nil
}

// RevokeToken implements TokenStore
func (b *redisBackend) RevokeToken(ctx context.Context, tokenHash string) error {
	if err := b.client.Del(ctx, redisTokenPrefix+tokenHash).Err(); err != nil {
		return util.NewUnavailableErrorf("redis del: %v", err)
	}
	return nil
}

// Close implements Backend
func (b *redisBackend) Close() error {
	return b.client.Close()
}

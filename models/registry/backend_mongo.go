// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package registry

import (
	"context"
	"errors"

	"github.com/cargohold/cargohold/modules/nosql"
	"github.com/cargohold/cargohold/modules/util"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongo_options "go.mongodb.org/mongo-driver/mongo/options"
)

// mongoBackend keeps the whole state of a crate — metadata, owner set and
// version history — in a single document, because mongo guarantees atomicity
// only within one document. Concurrent writers are detected through the
// Revision counter embedded in the document: every replace filters on the
// revision it read, a mismatch means somebody else won and the operation
// fails with ErrWriteConflict.
type mongoBackend struct {
	client   *mongo.Client
	packages *mongo.Collection
	tokens   *mongo.Collection
}

var _ FullBackend = (*mongoBackend)(nil)

func newMongoBackendFromURI(ctx context.Context, uri, database string) (*mongoBackend, error) {
	client, err := nosql.GetManager().GetMongoClient(ctx, uri)
	if err != nil {
		return nil, util.NewUnavailableErrorf("cannot connect to mongo: %v", err)
	}
	return NewMongoBackend(client, database), nil
}

// NewMongoBackend creates a backend on an established mongo client
func NewMongoBackend(client *mongo.Client, database string) *mongoBackend {
	db := client.Database(database)
	return &mongoBackend{
		client:   client,
		packages: db.Collection("packages"),
		tokens:   db.Collection("tokens"),
	}
}

type mongoPackage struct {
	ID      string `bson:"_id"`
	Package `bson:",inline"`
}

type mongoToken struct {
	ID    string `bson:"_id"`
	Login string `bson:"login"`
}

func (b *mongoBackend) getPackage(ctx context.Context, name string) (*Package, error) {
	doc := &mongoPackage{}
	err := b.packages.FindOne(ctx, bson.M{"_id": NormalizeName(name)}).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPackageNotExist
	}
	if err != nil {
		return nil, util.NewUnavailableErrorf("mongo find: %v", err)
	}
	return &doc.Package, nil
}

// replaceAtRevision writes back a mutated document, failing with
// ErrWriteConflict if the stored revision no longer matches the one the
// mutation was based on
func (b *mongoBackend) replaceAtRevision(ctx context.Context, p *Package, readRevision int64) error {
	res, err := b.packages.ReplaceOne(ctx,
		bson.M{"_id": NormalizeName(p.Name), "revision": readRevision},
		&mongoPackage{ID: NormalizeName(p.Name), Package: *p})
	if err != nil {
		return util.NewUnavailableErrorf("mongo replace: %v", err)
	}
	if res.MatchedCount == 0 {
		return ErrWriteConflict
	}
	return nil
}

func (b *mongoBackend) update(ctx context.Context, name string, fn func(p *Package) error) error {
	p, err := b.getPackage(ctx, name)
	if err != nil {
		return err
	}
	readRevision := p.Revision
	if err := fn(p); err != nil {
		return err
	}
	return b.replaceAtRevision(ctx, p, readRevision)
}

// GetPackage implements Backend
func (b *mongoBackend) GetPackage(ctx context.Context, name string) (*Package, error) {
	return b.getPackage(ctx, name)
}

// PublishVersion implements Backend
func (b *mongoBackend) PublishVersion(ctx context.Context, name string, v *Version, publisher string) error {
	p, err := b.getPackage(ctx, name)
	if errors.Is(err, util.ErrNotExist) {
		p = &Package{Name: name, Owners: []string{publisher}}
		if err := p.AddVersion(v); err != nil {
			return err
		}
		_, err := b.packages.InsertOne(ctx, &mongoPackage{ID: NormalizeName(name), Package: *p})
		if mongo.IsDuplicateKeyError(err) {
			// somebody created the crate between our read and the insert
			return ErrWriteConflict
		}
		if err != nil {
			return util.NewUnavailableErrorf("mongo insert: %v", err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	readRevision := p.Revision
	if err := p.AddVersion(v); err != nil {
		return err
	}
	return b.replaceAtRevision(ctx, p, readRevision)
}

// SetYanked implements Backend
func (b *mongoBackend) SetYanked(ctx context.Context, name, vers string, yanked bool) error {
	return b.update(ctx, name, func(p *Package) error {
		_, err := p.SetYanked(vers, yanked)
		return err
	})
}

// ListOwners implements Backend
func (b *mongoBackend) ListOwners(ctx context.Context, name string) ([]string, error) {
	p, err := b.getPackage(ctx, name)
	if err != nil {
		return nil, err
	}
	return p.Owners, nil
}

// AddOwners implements Backend
func (b *mongoBackend) AddOwners(ctx context.Context, name string, logins []string) error {
	return b.update(ctx, name, func(p *Package) error {
		p.AddOwners(logins)
		return nil
	})
}

// RemoveOwners implements Backend
func (b *mongoBackend) RemoveOwners(ctx context.Context, name string, logins []string) error {
	return b.update(ctx, name, func(p *Package) error {
		return p.RemoveOwners(logins)
	})
}

// IncrementDownload implements Backend. The counter bump is a single $inc,
// atomic within the document and independent of the revision counter. The
// version is resolved by semver first so the filter matches the stored
// spelling, not whatever alias the caller used.
func (b *mongoBackend) IncrementDownload(ctx context.Context, name, vers string) error {
	p, err := b.getPackage(ctx, name)
	if err != nil {
		return err
	}
	v := p.FindVersion(vers)
	if v == nil {
		return ErrVersionNotExist
	}
	res, err := b.packages.UpdateOne(ctx,
		bson.M{"_id": NormalizeName(name), "versions.vers": v.Vers},
		bson.M{"$inc": bson.M{"downloads": 1, "versions.$.downloads": 1}})
	if err != nil {
		return util.NewUnavailableErrorf("mongo update: %v", err)
	}
	if res.MatchedCount == 0 {
		return ErrVersionNotExist
	}
	return nil
}

// SearchPackages implements Backend
func (b *mongoBackend) SearchPackages(ctx context.Context, query string, limit int) ([]*Package, error) {
	cursor, err := b.packages.Find(ctx, bson.M{}, mongo_options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, util.NewUnavailableErrorf("mongo find: %v", err)
	}
	defer cursor.Close(ctx)

	var result []*Package
	for cursor.Next(ctx) {
		doc := &mongoPackage{}
		if err := cursor.Decode(doc); err != nil {
			return nil, err
		}
		if !doc.MatchesQuery(query) {
			continue
		}
		p := doc.Package
		result = append(result, &p)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, util.NewUnavailableErrorf("mongo cursor: %v", err)
	}
	return result, nil
}

// IndexLines implements Backend. The index stream is derived from the
// version history embedded in the document, which is publish-ordered.
func (b *mongoBackend) IndexLines(ctx context.Context, name string) ([]string, error) {
	p, err := b.getPackage(ctx, name)
	if err != nil {
		return nil, err
	}
	return p.BuildIndex()
}

// PutToken implements TokenStore
func (b *mongoBackend) PutToken(ctx context.Context, tokenHash, login string) error {
	_, err := b.tokens.ReplaceOne(ctx,
		bson.M{"_id": tokenHash},
		&mongoToken{ID: tokenHash, Login: login},
		mongo_options.Replace().SetUpsert(true))
	if err != nil {
		return util.NewUnavailableErrorf("mongo replace: %v", err)
	}
	return nil
}

// LookupToken implements TokenStore
func (b *mongoBackend) LookupToken(ctx context.Context, tokenHash string) (string, error) {
	doc := &mongoToken{}
	err := b.tokens.FindOne(ctx, bson.M{"_id": tokenHash}).Decode(doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", ErrTokenNotExist
	}
	if err != nil {
		return "", util.NewUnavailableErrorf("mongo find: %v", err)
	}
	return doc.Login, nil
}

// RevokeToken implements TokenStore
func (b *mongoBackend) RevokeToken(ctx context.Context, tokenHash string) error {
	if _, err := b.tokens.DeleteOne(ctx, bson.M{"_id": tokenHash}); err != nil {
		return util.NewUnavailableErrorf("mongo delete: %v", err)
	}
	return nil
}

// Close implements Backend
func (b *mongoBackend) Close() error {
	return b.client.Disconnect(context.Background())
}

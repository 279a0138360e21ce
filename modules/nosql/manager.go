// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

// Package nosql manages the connections to the storage engines a registry
// backend can be built on. Connections are shared by connection string, so a
// backend and a token store pointing at the same engine reuse one client.
package nosql

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/syndtr/goleveldb/leveldb"
	"go.mongodb.org/mongo-driver/mongo"
	mongo_options "go.mongodb.org/mongo-driver/mongo/options"
)

var (
	manager *Manager
	once    sync.Once
)

// Manager is the nosql connection manager
type Manager struct {
	mutex sync.Mutex

	redisConnections   map[string]redis.UniversalClient
	levelDBConnections map[string]*leveldb.DB
	mongoConnections   map[string]*mongo.Client
}

// GetManager returns the singleton Manager
func GetManager() *Manager {
	once.Do(func() {
		manager = &Manager{
			redisConnections:   make(map[string]redis.UniversalClient),
			levelDBConnections: make(map[string]*leveldb.DB),
			mongoConnections:   make(map[string]*mongo.Client),
		}
	})
	return manager
}

// GetRedisClient gets a redis client for a particular connection uri,
// creating it if necessary
func (m *Manager) GetRedisClient(connection string) (redis.UniversalClient, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if client, ok := m.redisConnections[connection]; ok {
		return client, nil
	}

	opts, err := redis.ParseURL(connection)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	m.redisConnections[connection] = client
	return client, nil
}

// GetLevelDB gets a level db at a particular path, opening it if necessary
func (m *Manager) GetLevelDB(path string) (*leveldb.DB, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if db, ok := m.levelDBConnections[path]; ok {
		return db, nil
	}

	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	m.levelDBConnections[path] = db
	return db, nil
}

// GetMongoClient gets a mongo client for a particular connection uri,
// connecting it if necessary
func (m *Manager) GetMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if client, ok := m.mongoConnections[uri]; ok {
		return client, nil
	}

	client, err := mongo.Connect(ctx, mongo_options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	m.mongoConnections[uri] = client
	return client, nil
}

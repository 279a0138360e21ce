// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package setting

import (
	"path/filepath"

	"github.com/cargohold/cargohold/modules/log"

	"gopkg.in/ini.v1"
)

// Registry backend types
const (
	RegistryBackendLevelDB = "leveldb"
	RegistryBackendRedis   = "redis"
	RegistryBackendMongo   = "mongo"
)

// Registry holds the storage engine selection. Exactly one backend is active
// for the lifetime of the process.
var Registry = struct {
	Backend string

	LevelDBPath   string
	RedisConn     string
	MongoURI      string
	MongoDatabase string

	// CratesPath is the directory of the content-addressed crate files
	CratesPath string
}{}

func loadRegistryFrom(rootCfg *ini.File) {
	sec := rootCfg.Section("registry")
	Registry.Backend = sec.Key("BACKEND").In(RegistryBackendLevelDB, []string{
		RegistryBackendLevelDB, RegistryBackendRedis, RegistryBackendMongo,
	})

	dataDir := sec.Key("DATA_DIR").MustString("data")

	switch Registry.Backend {
	case RegistryBackendLevelDB:
		Registry.LevelDBPath = sec.Key("LEVELDB_PATH").MustString(filepath.Join(dataDir, "registry"))
	case RegistryBackendRedis:
		Registry.RedisConn = sec.Key("REDIS_CONN").MustString("redis://127.0.0.1:6379/0")
	case RegistryBackendMongo:
		Registry.MongoURI = sec.Key("MONGO_URI").MustString("mongodb://127.0.0.1:27017")
		Registry.MongoDatabase = sec.Key("MONGO_DATABASE").MustString("cargohold")
	default:
		log.Fatal("Unknown registry backend: %s", Registry.Backend)
	}

	Registry.CratesPath = sec.Key("CRATES_PATH").MustString(filepath.Join(dataDir, "crates"))
}

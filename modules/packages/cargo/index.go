// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package cargo

import "path"

// https://doc.rust-lang.org/cargo/reference/registries.html#index-format

// IndexVersionEntry is one line of a crate index file. The index of a crate
// is append-only and strictly publish-ordered; the only permitted in-place
// change to an existing line is flipping the yanked flag.
type IndexVersionEntry struct {
	Name         string              `json:"name"`
	Version      string              `json:"vers"`
	Dependencies []*Dependency       `json:"deps"`
	FileChecksum string              `json:"cksum"`
	Features     map[string][]string `json:"features"`
	Yanked       bool                `json:"yanked"`
	Links        string              `json:"links,omitempty"`
}

// Config is the content of the index config.json file
type Config struct {
	DownloadURL  string `json:"dl"`
	APIURL       string `json:"api"`
	AuthRequired bool   `json:"auth-required"`
}

// ConfigFileName is the name of the index configuration file
const ConfigFileName = "config.json"

// BuildPackagePath returns the sharded index path of a crate
func BuildPackagePath(name string) string {
	switch len(name) {
	case 0:
		panic("Cargo package name can not be empty")
	case 1:
		return path.Join("1", name)
	case 2:
		return path.Join("2", name)
	case 3:
		return path.Join("3", string(name[0]), name)
	default:
		return path.Join(name[0:2], name[2:4], name)
	}
}

// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

// Package setting loads the Cargohold configuration.
//
// The configuration is read from an INI file exactly once at process start.
// All exported values are treated as immutable afterwards; components receive
// what they need through their constructors and never mutate it.
package setting

import (
	"os"

	"github.com/cargohold/cargohold/modules/log"

	"gopkg.in/ini.v1"
)

// CustomConf is the path of the config file in use
var CustomConf = "custom/conf/app.ini"

// Cfg is the root of the loaded configuration
var Cfg *ini.File

// LoadCommonSettings loads the given config file and initializes every
// settings section. A missing file is not an error, defaults apply.
func LoadCommonSettings(customConf string) {
	if customConf != "" {
		CustomConf = customConf
	}

	var err error
	if _, statErr := os.Stat(CustomConf); statErr == nil {
		Cfg, err = ini.Load(CustomConf)
		if err != nil {
			log.Fatal("Failed to parse %q: %v", CustomConf, err)
		}
	} else {
		Cfg = ini.Empty()
	}
	loadLogFrom(Cfg)
	loadServerFrom(Cfg)
	loadRegistryFrom(Cfg)
	loadAuthFrom(Cfg)
}

// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package setting

import (
	"github.com/cargohold/cargohold/modules/log"

	"gopkg.in/ini.v1"
)

func loadLogFrom(rootCfg *ini.File) {
	sec := rootCfg.Section("log")
	log.SetLevel(log.LevelFromString(sec.Key("LEVEL").MustString("info")))
}

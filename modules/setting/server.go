// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package setting

import (
	"net"
	"strings"

	"gopkg.in/ini.v1"
)

// Server settings
var (
	// AppURL is the full public URL of the registry, used in the index
	// config.json so cargo knows where to download crates from
	AppURL string

	HTTPAddr string
	HTTPPort string
)

func loadServerFrom(rootCfg *ini.File) {
	sec := rootCfg.Section("server")
	HTTPAddr = sec.Key("HTTP_ADDR").MustString("0.0.0.0")
	HTTPPort = sec.Key("HTTP_PORT").MustString("8000")

	defaultAppURL := "http://" + net.JoinHostPort(HTTPAddr, HTTPPort) + "/"
	AppURL = sec.Key("ROOT_URL").MustString(defaultAppURL)
	if !strings.HasSuffix(AppURL, "/") {
		AppURL += "/"
	}
}

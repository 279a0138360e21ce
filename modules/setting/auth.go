// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package setting

import (
	"time"

	"github.com/cargohold/cargohold/modules/log"

	"gopkg.in/ini.v1"
)

// Auth holds the authentication configuration. Static tokens are always
// enabled; OpenID validation is additive and opt-in.
var Auth = struct {
	// LoginPrefix namespaces logins created through this registry so they
	// cannot collide with logins minted by an OpenID provider
	LoginPrefix string

	EnableOpenID bool

	OpenID struct {
		IssuerURL        string
		ClientID         string
		ClientSecret     string
		AdditionalScopes []string
		Timeout          time.Duration
	}
}{}

func loadAuthFrom(rootCfg *ini.File) {
	sec := rootCfg.Section("auth")
	Auth.LoginPrefix = sec.Key("LOGIN_PREFIX").MustString("cargohold:")
	Auth.EnableOpenID = sec.Key("ENABLE_OPENID").MustBool(false)

	if !Auth.EnableOpenID {
		return
	}

	sec = rootCfg.Section("auth.openid")
	Auth.OpenID.IssuerURL = sec.Key("ISSUER_URL").String()
	Auth.OpenID.ClientID = sec.Key("CLIENT_ID").String()
	Auth.OpenID.ClientSecret = sec.Key("CLIENT_SECRET").String()
	Auth.OpenID.AdditionalScopes = sec.Key("ADDITIONAL_SCOPES").Strings(",")
	Auth.OpenID.Timeout = sec.Key("TIMEOUT").MustDuration(10 * time.Second)

	if Auth.OpenID.IssuerURL == "" || Auth.OpenID.ClientID == "" {
		log.Fatal("OpenID auth enabled but ISSUER_URL or CLIENT_ID is missing")
	}
}

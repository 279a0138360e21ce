// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cargohold/cargohold/modules/json"
	"github.com/cargohold/cargohold/modules/util"

	"github.com/golang-jwt/jwt/v5"
)

// OpenIDProvider validates bearer tokens issued by an OpenID Connect
// provider. The discovery document is fetched once at construction; each
// validation is one bounded round trip to the UserInfo endpoint. Any
// failure — malformed token, expired token, provider timeout — fails closed
// with ErrUnauthenticated, the provider never authorizes on a timeout.
type OpenIDProvider struct {
	issuerURL        string
	userInfoEndpoint string
	client           *http.Client
}

var _ Provider = (*OpenIDProvider)(nil)

type discoveryDocument struct {
	Issuer           string `json:"issuer"`
	UserInfoEndpoint string `json:"userinfo_endpoint"`
}

type userInfoResponse struct {
	Subject           string `json:"sub"`
	PreferredUsername string `json:"preferred_username"`
}

// NewOpenIDProvider creates an OpenID provider from its issuer URL. The
// timeout bounds every network call the provider makes.
func NewOpenIDProvider(ctx context.Context, issuerURL string, timeout time.Duration) (*OpenIDProvider, error) {
	client := &http.Client{Timeout: timeout}

	discoveryURL, err := url.JoinPath(issuerURL, ".well-known", "openid-configuration")
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, util.NewUnavailableErrorf("OpenID discovery failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, util.NewUnavailableErrorf("OpenID discovery returned status %d", resp.StatusCode)
	}

	doc := &discoveryDocument{}
	if err := json.NewDecoder(resp.Body).Decode(doc); err != nil {
		return nil, util.NewUnavailableErrorf("OpenID discovery document is invalid: %v", err)
	}
	if doc.UserInfoEndpoint == "" {
		return nil, util.NewUnavailableErrorf("OpenID provider does not advertise a userinfo endpoint")
	}

	return &OpenIDProvider{
		issuerURL:        issuerURL,
		userInfoEndpoint: doc.UserInfoEndpoint,
		client:           client,
	}, nil
}

// Name implements Provider
func (p *OpenIDProvider) Name() string {
	return "openid"
}

// Validate implements Provider
func (p *OpenIDProvider) Validate(ctx context.Context, credential string) (*Identity, error) {
	// reject tokens that are not JWTs or are already expired before
	// spending a network round trip on them; the signature is checked by
	// the provider itself when the userinfo endpoint is called
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, claims); err != nil {
		return nil, util.NewUnauthenticatedErrorf("credential rejected")
	}
	if exp, err := claims.GetExpirationTime(); err != nil || exp == nil || exp.Before(time.Now()) {
		return nil, util.NewUnauthenticatedErrorf("credential rejected")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoEndpoint, nil)
	if err != nil {
		return nil, util.NewUnauthenticatedErrorf("credential rejected")
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := p.client.Do(req)
	if err != nil {
		// timeout or network fault: fail closed
		return nil, util.NewUnauthenticatedErrorf("credential rejected")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, util.NewUnauthenticatedErrorf("credential rejected")
	}

	info := &userInfoResponse{}
	if err := json.NewDecoder(resp.Body).Decode(info); err != nil {
		return nil, util.NewUnauthenticatedErrorf("credential rejected")
	}

	login := info.PreferredUsername
	if login == "" {
		login = info.Subject
	}
	if strings.TrimSpace(login) == "" {
		return nil, util.NewUnauthenticatedErrorf("credential rejected")
	}
	return &Identity{Login: login}, nil
}

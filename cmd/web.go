// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cargohold/cargohold/models/registry"
	"github.com/cargohold/cargohold/modules/log"
	"github.com/cargohold/cargohold/modules/setting"
	"github.com/cargohold/cargohold/modules/storage"
	"github.com/cargohold/cargohold/routers"
	"github.com/cargohold/cargohold/services/auth"
	packages_service "github.com/cargohold/cargohold/services/packages"

	"github.com/urfave/cli/v2"
)

// CmdWeb starts the registry server
var CmdWeb = &cli.Command{
	Name:   "web",
	Usage:  "Start the registry server",
	Action: runWeb,
}

func runWeb(cliCtx *cli.Context) error {
	setting.LoadCommonSettings(cliCtx.String("config"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := registry.NewBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	store, err := storage.NewLocalStorage(setting.Registry.CratesPath)
	if err != nil {
		return err
	}

	staticProvider := auth.NewStaticProvider(backend, setting.Auth.LoginPrefix)
	providers := []auth.Provider{staticProvider}
	if setting.Auth.EnableOpenID {
		openIDProvider, err := auth.NewOpenIDProvider(ctx, setting.Auth.OpenID.IssuerURL, setting.Auth.OpenID.Timeout)
		if err != nil {
			return err
		}
		providers = append(providers, openIDProvider)
	}

	service := packages_service.NewService(
		backend,
		store,
		setting.AppURL+"api/v1/crates",
		strings.TrimSuffix(setting.AppURL, "/"),
	)

	server := &http.Server{
		Addr:    net.JoinHostPort(setting.HTTPAddr, setting.HTTPPort),
		Handler: routers.BuildRoutes(service, auth.NewGroup(providers...), staticProvider),
	}

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("Listening on %s", server.Addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

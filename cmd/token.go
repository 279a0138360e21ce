// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"fmt"

	"github.com/cargohold/cargohold/models/registry"
	"github.com/cargohold/cargohold/modules/setting"
	"github.com/cargohold/cargohold/services/auth"

	"github.com/urfave/cli/v2"
)

// CmdToken issues a registry token without going through the HTTP API,
// useful for bootstrapping the first account
var CmdToken = &cli.Command{
	Name:      "token",
	Usage:     "Issue a registry token for a login",
	ArgsUsage: "<login>",
	Action:    runToken,
}

func runToken(cliCtx *cli.Context) error {
	if cliCtx.NArg() != 1 {
		return fmt.Errorf("expected exactly one login argument")
	}
	setting.LoadCommonSettings(cliCtx.String("config"))

	ctx := context.Background()
	backend, err := registry.NewBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	provider := auth.NewStaticProvider(backend, setting.Auth.LoginPrefix)
	token, err := provider.Register(ctx, cliCtx.Args().First())
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmd provides the cargohold commands
package cmd

import (
	"github.com/cargohold/cargohold/modules/setting"

	"github.com/urfave/cli/v2"
)

func appGlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   setting.CustomConf,
			Usage:   "Set custom config file",
		},
	}
}

// NewApp creates the cargohold CLI application
func NewApp() *cli.App {
	app := cli.NewApp()
	app.Name = "cargohold"
	app.Usage = "A self-hosted alternate registry for cargo"
	app.Description = "Cargohold serves a sparse crate index and the cargo web API on top of a pluggable storage backend."
	app.DefaultCommand = CmdWeb.Name
	app.Flags = appGlobalFlags()
	app.Commands = []*cli.Command{
		CmdWeb,
		CmdToken,
	}
	return app
}

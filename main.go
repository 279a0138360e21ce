// Copyright 2026 The Cargohold Authors. All rights reserved.
// SPDX-License-Identifier: MIT

// Cargohold is a self-hosted alternate registry for cargo.
package main

import (
	"os"

	"github.com/cargohold/cargohold/cmd"
	"github.com/cargohold/cargohold/modules/log"
)

func main() {
	app := cmd.NewApp()
	if err := app.Run(os.Args); err != nil {
		log.Fatal("Failed to run app with %s: %v", os.Args, err)
	}
}

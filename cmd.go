// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package hlafreq

import (
	"os"

	"git.arvados.org/arvados.git/lib/cmd"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	handler = cmd.Multi(map[string]cmd.Handler{
		"version":   cmd.Version,
		"-version":  cmd.Version,
		"--version": cmd.Version,

		"fetch":         &fetchcmd{},
		"resolution":    &resolutioncmd{},
		"complete":      &completecmd{},
		"expand":        &expandcmd{},
		"combine":       &combinecmd{},
		"intervals":     &intervalscmd{},
		"density":       &densitycmd{},
		"coverage":      &coveragecmd{},
		"count-matrix":  &countMatrix{},
		"heterogeneity": &heterogeneitycmd{},
		"simulate":      &simulatecmd{},
		"supertypes":    &supertypescmd{},
		"batch":         &batchcmd{},
	})
)

func Main() {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		logrus.StandardLogger().Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	}
	os.Exit(handler.RunCommand(os.Args[0], os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

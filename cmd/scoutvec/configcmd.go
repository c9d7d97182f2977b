// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bCommonsLAB/CommonKnowledgeScout-sub001/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the scoutvec configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the commented default configuration",
		Long:  "Write the default configuration to path (default ~/.config/scoutvec/scoutvec.yaml). An existing file is left untouched.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit,
	})
	return cmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	written, err := config.WriteDefaultConfig(path)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !written {
		_, err = fmt.Fprintf(out, "Config already exists at %s\n", path)
		return err
	}
	_, err = fmt.Fprintf(out, "Wrote default config to %s\n", path)
	return err
}

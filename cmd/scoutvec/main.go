// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CommonKnowledgeScout Contributors

package main

import (
	"fmt"
	"os"

	scouterr "github.com/bCommonsLAB/CommonKnowledgeScout-sub001/pkg/errors"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "scoutvec:", err)
		os.Exit(scouterr.ExitCode(err))
	}
}

// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the semindex CLI, a thin shell that exercises
// the indexing core end-to-end. It is not part of the specified core —
// configuration loading, CLI ergonomics, and server surfaces are the
// excluded "external collaborator" concerns spec.md §1 names — but it
// needs to exist for the core to be runnable at all.
//
// Usage:
//
//	semindex index <path>          Index a repository snapshot at HEAD
//	semindex status <path>         Show snapshots recorded for a repository
//	semindex query <path> <fqn>    Find a symbol's definition/references/implementations
//	semindex search <path> <text>  Lexical search over indexed chunks
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	version = "dev"
	commit  = "unknown"
)

// globalFlags holds flags shared by every subcommand.
type globalFlags struct {
	JSON     bool
	NoColor  bool
	DataDir  string
	FullScan bool
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		dataDir     = flag.String("data-dir", "", "Directory for the snapshot database (default: <repo>/.semindex)")
		full        = flag.Bool("full", false, "Force a full re-index instead of incremental")
	)
	flag.SetInterspersed(false)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `semindex - code-intelligence indexing core CLI

Usage:
  semindex <command> <repo-path> [args...]

Commands:
  index <path>            Index the repository at <path> as a new snapshot
  status <path>            List snapshots recorded for the repository
  query <path> <fqn>       Find definition/references/implementations of <fqn>
  search <path> <text>     Lexical search over the most recent snapshot's chunks

Global options:
  --json          Output machine-readable JSON
  --no-color      Disable color output
  --data-dir      Snapshot database directory (default: <repo>/.semindex)
  --full          Force a full re-index

`)
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("semindex version %s (%s)\n", version, commit)
		return
	}
	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		// Piped/redirected output: no ANSI color escapes.
		*noColor = true
	}
	color.NoColor = *noColor

	globals := globalFlags{JSON: *jsonOutput, NoColor: *noColor, DataDir: *dataDir, FullScan: *full}

	args := flag.Args()
	if len(args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	command, repoPath, rest := args[0], args[1], args[2:]

	var err error
	switch command {
	case "index":
		err = runIndex(repoPath, globals)
	case "status":
		err = runStatus(repoPath, globals)
	case "query":
		if len(rest) < 1 {
			err = fmt.Errorf("query requires a fully-qualified name argument")
		} else {
			err = runQuery(repoPath, rest[0], globals)
		}
	case "search":
		if len(rest) < 1 {
			err = fmt.Errorf("search requires a query string")
		} else {
			err = runSearch(repoPath, rest[0], globals)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		os.Exit(1)
	}
}

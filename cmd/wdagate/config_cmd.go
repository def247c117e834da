// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ManuGH/wdagate/internal/config"
)

const redacted = "***"

func runConfigCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "init":
		return runConfigInit(args[1:], stdout, stderr)
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	case "print", "dump":
		return runConfigPrint(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  wdagate config init [--file|-f config.yaml] [--force]")
	fmt.Fprintln(w, "  wdagate config validate --file|-f config.yaml")
	fmt.Fprintln(w, "  wdagate config print [--file|-f config.yaml] [--format=yaml|json]")
}

func fileFlag(fs *flag.FlagSet) *string {
	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	return &file
}

// runConfigInit writes the defaults to a new config file.
func runConfigInit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wdagate config init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fileFlag(fs)
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	path := strings.TrimSpace(*file)
	if path == "" {
		path = "wdagate.yaml"
	}
	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Fprintf(stderr, "Error: %s already exists (use --force to overwrite)\n", path)
		return 1
	}
	if err := config.WriteFile(path, config.Defaults()); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return 0
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wdagate config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fileFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	path := strings.TrimSpace(*file)
	if path == "" {
		fmt.Fprintln(stderr, "Error: --file is required")
		return 2
	}
	if _, err := config.NewLoader(path, version).Load(); err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", path, err)
		return 1
	}
	fmt.Fprintf(stdout, "%s is valid\n", path)
	return 0
}

// runConfigPrint prints the effective configuration (defaults, file, env)
// with secrets redacted.
func runConfigPrint(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wdagate config print", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fileFlag(fs)
	format := fs.String("format", "yaml", "output format: yaml or json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.NewLoader(strings.TrimSpace(*file), version).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}
	cfg = redactSecrets(cfg)

	switch strings.ToLower(*format) {
	case "yaml", "yml":
		out, err := config.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		_, _ = stdout.Write(out)
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	default:
		fmt.Fprintf(stderr, "Error: unknown format %q\n", *format)
		return 2
	}
	return 0
}

func redactSecrets(cfg config.AppConfig) config.AppConfig {
	if cfg.Cache.Redis.Password != "" {
		cfg.Cache.Redis.Password = redacted
	}
	cfg.WDA.URL = maskURL(cfg.WDA.URL)
	return cfg
}

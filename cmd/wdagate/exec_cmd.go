// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ManuGH/wdagate/internal/audit"
	"github.com/ManuGH/wdagate/internal/config"
	xglog "github.com/ManuGH/wdagate/internal/log"
)

// runExec dispatches one command and prints its value as JSON.
//
//	wdagate exec [-config file] <command> [json-args]
func runExec(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wdagate exec", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "Usage: wdagate exec [-config file] <command> [json-args]")
		return 2
	}

	name, cmdArgs, err := parseInvocation(strings.Join(fs.Args(), " "))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	rt, code := openRuntime(*configPath, stderr)
	if rt == nil {
		return code
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = audit.ContextWithActor(ctx, "cli")

	value, err := rt.dispatcher.Dispatch(ctx, name, cmdArgs)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return printValue(stdout, stderr, value)
}

// openRuntime loads configuration and builds the runtime for one-shot
// tools. Logs go to stderr so stdout stays machine readable.
func openRuntime(configPath string, stderr io.Writer) (*runtime, int) {
	xglog.Configure(xglog.Config{Level: "warn", Output: stderr, Service: "wdagate", Version: version})

	cfg, err := config.NewLoader(strings.TrimSpace(configPath), version).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return nil, 1
	}
	if cfg.LogLevel != "info" {
		_ = xglog.SetLevel(cfg.LogLevel)
	}

	rt, err := buildRuntime(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return nil, 1
	}
	return rt, 0
}

func printValue(stdout, stderr io.Writer, value any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		fmt.Fprintf(stderr, "Error: encode result: %v\n", err)
		return 1
	}
	return 0
}

// parseInvocation splits "name {json}" into a command name and arguments.
// Names may contain spaces, as in "mobile: pressButton".
func parseInvocation(line string) (string, map[string]any, error) {
	line = strings.TrimSpace(line)
	name, rawArgs := line, ""
	if i := strings.IndexByte(line, '{'); i >= 0 {
		name, rawArgs = strings.TrimSpace(line[:i]), line[i:]
	}
	if name == "" {
		return "", nil, errors.New("missing command name")
	}

	args := map[string]any{}
	if rawArgs != "" {
		dec := json.NewDecoder(strings.NewReader(rawArgs))
		dec.UseNumber()
		if err := dec.Decode(&args); err != nil {
			return "", nil, fmt.Errorf("arguments must be a JSON object: %w", err)
		}
		if dec.More() {
			return "", nil, errors.New("trailing data after arguments")
		}
	}
	return name, args, nil
}

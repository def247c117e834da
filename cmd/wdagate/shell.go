// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ManuGH/wdagate/internal/audit"
	"github.com/chzyer/readline"
)

// runShell starts an interactive command loop against the device.
func runShell(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("wdagate shell", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "wda> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		HistoryLimit:    500,
	})
	if err != nil {
		fmt.Fprintf(stderr, "failed to create readline: %v\n", err)
		return 1
	}
	defer rl.Close()

	rt, code := openRuntime(*configPath, rl.Stderr())
	if rt == nil {
		return code
	}
	defer rt.Close()

	sh := &shell{rt: rt, out: rl.Stdout()}
	ctx := audit.ContextWithActor(context.Background(), "shell")
	sh.printHelp()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(sh.out, "Exiting...")
			return 0
		}
		if !sh.handle(ctx, line) {
			fmt.Fprintln(sh.out, "Exiting...")
			return 0
		}
	}
}

type shell struct {
	rt  *runtime
	out io.Writer
}

// handle runs one input line and reports whether the loop should continue.
func (s *shell) handle(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	switch strings.ToLower(input) {
	case "":
		return true
	case "help", "?":
		s.printHelp()
		return true
	case "commands", "ls":
		names := s.rt.dispatcher.Names()
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(s.out, "  %s\n", n)
		}
		return true
	case "refresh":
		s.rt.screen.Invalidate(ctx)
		fmt.Fprintln(s.out, "screen metrics cache cleared")
		return true
	case "stats":
		st := s.rt.cache.Stats()
		fmt.Fprintf(s.out, "cache: hits=%d misses=%d sets=%d evictions=%d size=%d\n",
			st.Hits, st.Misses, st.Sets, st.Evictions, st.CurrentSize)
		return true
	case "quit", "exit", "q":
		return false
	}

	name, args, err := parseInvocation(input)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return true
	}
	value, err := s.rt.dispatcher.Dispatch(ctx, name, args)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return true
	}
	_ = printValue(s.out, s.out, value)
	return true
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out, `
Commands:
  <command> [json-args]   dispatch a device command, e.g. background {"seconds": 3}
  commands, ls            list known commands
  refresh                 clear cached screen metrics
  stats                   show cache counters
  help, ?                 show this help
  quit, exit, q           leave the shell`)
}

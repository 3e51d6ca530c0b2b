// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

const chatBanner = `autoagent ready. Type "stats" for statistics, "tools" to list tools
and "quit" to leave.`

// turnRunner is what the REPL needs from the agent. Stats and tool
// rendering go through the app.
type turnRunner interface {
	ProcessTurn(ctx context.Context, text string) string
}

func runChat(ctx context.Context, flags *globalFlags, in io.Reader, out io.Writer) error {
	a, err := newApp(ctx, flags, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	return repl(ctx, in, out, a.agent, func(w io.Writer, cmd string) error {
		switch cmd {
		case "stats":
			return renderStats(w, a.agent.Stats(ctx), "text")
		default:
			return renderTools(w, a.agent.ListTools(), "text")
		}
	})
}

// repl reads one message per line until EOF, a quit word or cancellation.
func repl(ctx context.Context, in io.Reader, out io.Writer, agent turnRunner, local func(io.Writer, string) error) error {
	fmt.Fprintln(out, chatBanner)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "stats", "tools":
			if err := local(out, strings.ToLower(line)); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			continue
		}
		fmt.Fprintf(out, "Agent: %s\n", agent.ProcessTurn(ctx, line))
	}
}

// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/autoagent/pkg/agent"
	"github.com/jllopis/autoagent/pkg/errors"
	"github.com/jllopis/autoagent/pkg/memory"
	"github.com/jllopis/autoagent/pkg/tools"
)

func encode(w io.Writer, v any, format string) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return true, enc.Encode(v)
	case "", "text":
		return false, nil
	default:
		return true, errors.Newf(errors.CodeInvalidInput, "unknown format %q", format)
	}
}

func renderStats(w io.Writer, st agent.Stats, format string) error {
	if done, err := encode(w, st, format); done {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintf(tw, "Turns:\t%d\n", st.Turns)
	fmt.Fprintf(tw, "Degraded responses:\t%d\n", st.DegradedResponses)
	fmt.Fprintf(tw, "Conversation length:\t%d\n", st.ConversationLength)
	fmt.Fprintf(tw, "Tools:\t%d\n", st.Tools)
	fmt.Fprintf(tw, "Tool executions:\t%d\n", st.ToolExecutions)
	fmt.Fprintf(tw, "LLM:\t%s (breaker %s)\n", st.LLMStatus, st.CircuitBreaker)
	fmt.Fprintf(tw, "Uptime:\t%s\n", st.Uptime)
	switch {
	case st.Memory != nil:
		fmt.Fprintf(tw, "Memory:\t%s, %d records, dimension %d\n", st.Memory.Backend, st.Memory.Total, st.Memory.Dimension)
		names := make([]string, 0, len(st.Memory.Collections))
		for c := range st.Memory.Collections {
			names = append(names, string(c))
		}
		sort.Strings(names)
		for _, name := range names {
			cs := st.Memory.Collections[memory.Collection(name)]
			fmt.Fprintf(tw, "  %s:\t%d/%d (~%d bytes)\n", name, cs.Count, cs.Limit, cs.ApproxBytes)
		}
	case st.MemoryError != "":
		fmt.Fprintf(tw, "Memory:\tunavailable (%s)\n", st.MemoryError)
	default:
		fmt.Fprintf(tw, "Memory:\tdisabled\n")
	}
	return tw.Flush()
}

func renderTools(w io.Writer, list []tools.Descriptor, format string) error {
	if done, err := encode(w, list, format); done {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCAPABILITY\tREQUIRES\tDESCRIPTION")
	for _, d := range list {
		requires := string(d.RequiresFlag)
		if requires == "" {
			requires = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, d.Capability, requires, d.Description)
	}
	return tw.Flush()
}

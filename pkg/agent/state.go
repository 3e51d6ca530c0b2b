// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"github.com/jllopis/autoagent/pkg/llm"
	"github.com/jllopis/autoagent/pkg/memory"
)

// Phase is a step of the turn state machine.
type Phase string

const (
	PhaseThink   Phase = "THINK"
	PhaseAct     Phase = "ACT"
	PhaseRespond Phase = "RESPOND"
	PhaseDone    Phase = "DONE"
)

// State is the working state of a single turn. Turns never share a State.
type State struct {
	TurnID         string
	Phase          Phase
	Messages       []llm.Message
	CurrentTask    string
	ToolResults    []string
	MemoryContext  []memory.Match
	ShouldContinue bool
	Conversational bool
	Degraded       bool
	Response       string
}

func (s *State) enter(p Phase) {
	s.Phase = p
}

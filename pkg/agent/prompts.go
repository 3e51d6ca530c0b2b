// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jllopis/autoagent/pkg/memory"
)

// DegradedResponse is returned when the language model cannot be reached.
const DegradedResponse = "I'm sorry, I can't reach my language model right now. Please try again shortly."

const systemPrompt = "You are a helpful autonomous assistant running locally. Answer accurately and concisely."

// conversationalPattern matches greetings and small talk as whole words.
var conversationalPattern = regexp.MustCompile(`(?i)\b(` + strings.Join([]string{
	`hello`, `hi`, `hey`, `greetings`, `how are you`, `what's up`, `whats up`,
	`good morning`, `good afternoon`, `good evening`,
	`thank you`, `thanks`, `bye`, `goodbye`,
	`who are you`, `what are you`, `what can you do`,
}, `|`) + `)\b`)

// factPattern detects definitional answers worth remembering.
var factPattern = regexp.MustCompile(`(?i)\b(is|are|means|refers)\b`)

func isConversational(task string) bool {
	return conversationalPattern.MatchString(task)
}

func looksLikeFact(response string) bool {
	return factPattern.MatchString(response)
}

func conversationalPrompt(input string) string {
	return fmt.Sprintf(`You are a friendly and helpful AI assistant. Respond naturally to this message: %q

Keep your response:
- Natural and conversational (not formal or academic)
- Brief (1-2 sentences for greetings, 2-3 for questions)
- Focused on how you can assist the user

Examples of good responses:
User: "Hello, how are you?"
Response: "Hello! I'm doing well, thank you for asking. How can I assist you today?"

User: "What can you do?"
Response: "I'm an AI assistant that can look up information, search the web, read files and remember what we talk about. What would you like help with?"

Now respond to: %q`, input, input)
}

func toolPrompt(input string, results []string) string {
	return fmt.Sprintf(`The user asked: %q

Information from tools:
%s

Based on this information, provide a clear, helpful, and natural response. Be conversational but informative. Don't mention the tools or how you got the information, just answer the question naturally.`, input, strings.Join(results, "\n"))
}

func directPrompt(input string) string {
	return fmt.Sprintf(`The user asked: %q

Provide a clear, helpful, and conversational response. Be friendly and natural, not overly formal or academic. Keep it concise but informative.`, input)
}

func memorySection(matches []memory.Match) string {
	if len(matches) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant memories:")
	for _, m := range matches {
		fmt.Fprintf(&b, "\n- [%s] %s", m.Record.Collection, truncate(m.Record.Text, 300))
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package discuss

import (
	"fmt"
	"strings"

	"voxcrew/pkg/persistence"
	"voxcrew/pkg/research"
	"voxcrew/pkg/summarize"
)

// Context-bounding knobs for prompt assembly. Later agents see summaries of
// earlier output, never full transcripts, so prompt size stays bounded across
// the four-stage pipeline.
const (
	historyEntryLimit  = 3
	historySummaryLen  = 150
	contextSummaryLen  = 250
	researchSummaryLen = 600
	// Demo mode halves the research block along with everything else.
	researchSummaryLenDemo = 300
)

// apologyMessage substitutes for an empty model response. An empty extraction
// is degraded output, not a failed turn.
const apologyMessage = "I'm sorry, I wasn't able to produce a response for that request. Please try rephrasing it."

// detailedInstructions are the full per-role system prompts.
//
//nolint:gochecknoglobals // Static prompt table
var detailedInstructions = map[Role]string{
	RoleArchitect: `You are the Architect on a four-person software team. Given the user's request, produce a high-level technical plan: the major components, how they communicate, the data model, and the key trade-offs you considered. Name concrete technologies where the choice matters and explain briefly why. Flag anything in the request that is ambiguous and state the assumption you made. Your plan is the foundation the rest of the team builds on, so be specific about boundaries and interfaces.`,

	RoleBackend: `You are the Backend engineer on a four-person software team. Using the architect's plan from the discussion so far, describe the server-side implementation: API endpoints with methods and payloads, the persistence schema, validation and error handling, and any background work. Call out security-sensitive surfaces. Stay consistent with the architect's component boundaries; if you must deviate, say why.`,

	RoleFrontend: `You are the Frontend engineer on a four-person software team. Using the architect's plan from the discussion so far, describe the client-side implementation: the screen/component breakdown, state management, how and when the client calls the backend, and loading/error states the user will see. Stay consistent with the architect's component boundaries; if you must deviate, say why.`,

	RoleQA: `You are the QA engineer on a four-person software team. Review the architect's plan and the backend and frontend proposals from the discussion so far. Identify the riskiest behaviors, enumerate the test cases that would catch regressions in them, and point out any inconsistencies between the three proposals. Prioritize: name the three tests you would write first and why.`,
}

// conciseInstructions are the demo-mode variants: same role, capped length,
// depth requirements dropped.
//
//nolint:gochecknoglobals // Static prompt table
var conciseInstructions = map[Role]string{
	RoleArchitect: `You are the Architect on a software team. Give a brief technical plan for the user's request: main components, data flow, and one or two key technology choices. Keep it under 150 words.`,

	RoleBackend: `You are the Backend engineer. Based on the discussion so far, briefly describe the server-side approach: key endpoints and data storage. Keep it under 150 words.`,

	RoleFrontend: `You are the Frontend engineer. Based on the discussion so far, briefly describe the client-side approach: main screens and how they talk to the backend. Keep it under 150 words.`,

	RoleQA: `You are the QA engineer. Based on the discussion so far, briefly list the most important test cases and any inconsistencies you noticed. Keep it under 150 words.`,
}

// instructionsFor returns the system instructions for a role and mode.
func instructionsFor(role Role, demoMode bool) string {
	if demoMode {
		return conciseInstructions[role]
	}
	return detailedInstructions[role]
}

// buildUserPrompt assembles the conversational prompt blob: transcript,
// summarized history, the research findings block when present, summarized
// prior context, and the closing instruction.
func buildUserPrompt(req *Request, history []*persistence.Command, researchData *research.Data) string {
	var b strings.Builder

	b.WriteString("User request: ")
	b.WriteString(strings.TrimSpace(req.Transcript))
	b.WriteString("\n")

	writeHistory(&b, history)
	writeResearch(&b, researchData, req.DemoMode)
	writeContext(&b, req.Context)

	b.WriteString("\nRespond now as the ")
	b.WriteString(req.Role.DisplayName())
	if req.DemoMode {
		b.WriteString(". Keep your analysis brief.")
	} else {
		b.WriteString(". Provide your full analysis.")
	}

	return b.String()
}

func writeHistory(b *strings.Builder, history []*persistence.Command) {
	if len(history) == 0 {
		return
	}
	if len(history) > historyEntryLimit {
		history = history[:historyEntryLimit]
	}

	b.WriteString("\nRelated past requests from this user:\n")
	for _, cmd := range history {
		fmt.Fprintf(b, "- %s\n", summarize.Summarize(cmd.Transcript, historySummaryLen))
	}
}

func writeResearch(b *strings.Builder, data *research.Data, demoMode bool) {
	if data == nil {
		return
	}

	maxLen := researchSummaryLen
	if demoMode {
		maxLen = researchSummaryLenDemo
	}

	b.WriteString("\nResearch findings for this request:\n")
	b.WriteString(summarize.Summarize(data.Summary, maxLen))
	b.WriteString("\n")
}

func writeContext(b *strings.Builder, entries []ContextEntry) {
	if len(entries) == 0 {
		return
	}

	b.WriteString("\nDiscussion so far:\n")
	for _, entry := range entries {
		fmt.Fprintf(b, "%s: %s\n", entry.Role, summarize.Summarize(entry.Message, contextSummaryLen))
	}
}

// researchMessage is the short-circuit response text when the research gate
// fires: it presents the findings and asks the user to confirm before the
// pipeline escalates a question into a build.
func researchMessage(data *research.Data) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I looked into that before planning anything. Top finding of %d:\n\n", data.TotalAvailable)
	b.WriteString(data.Summary)
	b.WriteString("\n\nSay the word and I'll have the team design it with this in mind.")
	return b.String()
}

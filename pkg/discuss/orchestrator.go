package discuss

import (
	"context"
	"strings"
	"time"

	"voxcrew/pkg/agent/llm"
	"voxcrew/pkg/config"
	"voxcrew/pkg/logx"
	"voxcrew/pkg/metrics"
	"voxcrew/pkg/persistence"
	"voxcrew/pkg/research"
	"voxcrew/pkg/speech"
	"voxcrew/pkg/summarize"
	"voxcrew/pkg/tokens"
)

// Sampling and research knobs.
const (
	samplingTemperature = 0.7
	researchResultCount = 5
	historyLookupLimit  = 3
	speechMaxChars      = 500
	finishResearch      = "research"
)

// ContextEntry is one prior agent's contribution within a turn. Role is a
// free-text display label, not necessarily an AgentRole value.
type ContextEntry struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// TokenInfo carries sizing diagnostics back to the caller.
type TokenInfo struct {
	PromptTokens          int    `json:"promptTokens"`
	AllocatedOutputTokens int    `json:"allocatedOutputTokens"`
	FinishReason          string `json:"finishReason"`
}

// Request is one agent invocation within a turn.
type Request struct {
	Transcript       string         `json:"transcript"`
	Role             Role           `json:"agentRole"`
	Context          []ContextEntry `json:"context"`
	DemoMode         bool           `json:"demoMode"`
	PreviousResearch *research.Data `json:"previousResearch"`
}

// Response is the structured result of one agent invocation.
type Response struct {
	Message      string         `json:"message"`
	Warning      string         `json:"warning,omitempty"`
	Truncated    bool           `json:"truncated"`
	ResearchData *research.Data `json:"researchData,omitempty"`
	AudioData    []byte         `json:"audioData,omitempty"`
	TokenInfo    TokenInfo      `json:"tokenInfo"`
}

// HistoryStore is the read side of the command store consumed by the
// orchestrator. persistence.Operations satisfies it.
type HistoryStore interface {
	SearchCommands(query string, limit int) ([]*persistence.Command, error)
	ListRecent(limit int) ([]*persistence.Command, error)
}

// Deps are the external collaborators, injected explicitly. Each is
// constructed once per process and passed by reference; every collaborator
// except LLM may be nil, in which case its stage degrades to absence.
type Deps struct {
	LLM           llm.Client
	Searcher      research.Searcher
	Speech        speech.Synthesizer
	History       HistoryStore
	Recorder      *metrics.Recorder
	Counter       *tokens.Counter
	Voices        config.VoicesConfig
	SpeechEnabled bool
}

// Orchestrator runs one agent invocation per call. It is stateless between
// calls: all conversation state is passed in and returned, never retained.
type Orchestrator struct {
	deps   Deps
	logger *logx.Logger
}

// New creates an Orchestrator with the given collaborators.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{
		deps:   deps,
		logger: logx.NewLogger("discuss"),
	}
}

// RunAgent processes one agent invocation: validate, look up history,
// optionally research (architect only, may short-circuit the turn), assemble
// the prompt, budget tokens, call the model, detect truncation, and attach
// best-effort speech. History, research, and speech failures degrade to
// absent data; only validation and model failures abort the turn.
func (o *Orchestrator) RunAgent(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		o.deps.Recorder.RecordTurn(string(req.Role), metrics.StatusError, time.Since(start))
		return nil, err
	}

	history := o.lookupHistory(req.Transcript)

	researchData := req.PreviousResearch
	if o.shouldRunResearch(req) {
		if data := o.runResearch(ctx, req.Transcript); data != nil {
			// Research-only short circuit: the caller must ask again
			// explicitly before a question escalates into a build.
			o.deps.Recorder.RecordTurn(string(req.Role), metrics.StatusResearchOnly, time.Since(start))
			return &Response{
				Message:      researchMessage(data),
				ResearchData: data,
				TokenInfo:    TokenInfo{FinishReason: finishResearch},
			}, nil
		}
	}

	systemPrompt := instructionsFor(req.Role, req.DemoMode)
	userPrompt := buildUserPrompt(req, history, researchData)
	fullPrompt := systemPrompt + "\n" + userPrompt

	tier := llm.TierQuality
	if req.DemoMode {
		tier = llm.TierFast
	}

	modelInfo := config.ModelFor(o.deps.LLM.ModelName(tier))
	estimated := tokens.Estimate(fullPrompt)
	allocation, heavy := allocateOutput(tier, estimated, modelInfo.MaxOutputTokens)

	warning := ""
	if heavy {
		warning = "This is a complex request; the response may take longer than usual."
	}

	o.deps.Recorder.RecordTokens(string(req.Role), estimated, allocation)

	completion, err := o.deps.LLM.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.CompletionMessage{
			llm.NewSystemMessage(systemPrompt),
			llm.NewUserMessage(userPrompt),
		},
		Tier:        tier,
		Temperature: samplingTemperature,
		MaxTokens:   allocation,
	})
	if err != nil {
		o.deps.Recorder.RecordLLMRequest(o.deps.LLM.ModelName(tier), metrics.StatusError)
		o.deps.Recorder.RecordTurn(string(req.Role), metrics.StatusError, time.Since(start))
		return nil, NewModelFailure(err, "model invocation failed")
	}
	o.deps.Recorder.RecordLLMRequest(o.deps.LLM.ModelName(tier), metrics.StatusOK)

	message := strings.TrimSpace(completion.Content)
	if message == "" {
		message = apologyMessage
	}

	truncated := completion.StopReason == llm.StopMaxTokens
	if truncated {
		// Truncation overrides the complexity warning.
		warning = "The response was cut off at the output limit. Ask a follow-up to continue."
		o.deps.Recorder.RecordTruncation(string(req.Role))
	}

	audio := o.synthesizeSpeech(ctx, req.Role, message)

	o.deps.Recorder.RecordTurn(string(req.Role), metrics.StatusOK, time.Since(start))

	return &Response{
		Message:      message,
		Warning:      warning,
		Truncated:    truncated,
		ResearchData: req.PreviousResearch,
		AudioData:    audio,
		TokenInfo: TokenInfo{
			PromptTokens:          o.deps.Counter.Count(fullPrompt),
			AllocatedOutputTokens: allocation,
			FinishReason:          string(completion.StopReason),
		},
	}, nil
}

func validateRequest(req *Request) error {
	if strings.TrimSpace(req.Transcript) == "" {
		return NewInvalidInput("transcript must not be empty")
	}
	if !ValidRole(req.Role) {
		return NewInvalidInput("unknown agent role %q (accepted: %s)", req.Role, roleList())
	}
	return nil
}

// lookupHistory fetches relevance-ranked past commands, falling back to a
// recency listing and then to empty history. Never aborts the turn.
func (o *Orchestrator) lookupHistory(transcript string) []*persistence.Command {
	if o.deps.History == nil {
		return nil
	}

	history, err := o.deps.History.SearchCommands(transcript, historyLookupLimit)
	if err == nil {
		return history
	}
	o.logger.Warn("History search failed, trying recency listing: %v", err)
	o.deps.Recorder.RecordAuxFailure(metrics.ServiceHistory)

	history, err = o.deps.History.ListRecent(historyLookupLimit)
	if err == nil {
		return history
	}
	o.logger.Warn("History listing failed, proceeding without history: %v", err)
	return nil
}

// shouldRunResearch applies the research gate: architect only, no carried
// research, trigger phrase present, searcher wired.
func (o *Orchestrator) shouldRunResearch(req *Request) bool {
	return req.Role == RoleArchitect &&
		req.PreviousResearch == nil &&
		o.deps.Searcher != nil &&
		research.ShouldResearch(req.Transcript)
}

// runResearch performs the one-shot search pass. Any failure or empty result
// set returns nil so the turn proceeds without research.
func (o *Orchestrator) runResearch(ctx context.Context, transcript string) *research.Data {
	results, err := o.deps.Searcher.Search(ctx, transcript, researchResultCount)
	if err != nil {
		o.logger.Warn("Research search failed, proceeding without research: %v", err)
		o.deps.Recorder.RecordAuxFailure(metrics.ServiceResearch)
		return nil
	}
	return research.BuildData(transcript, results)
}

// synthesizeSpeech renders the response as audio with the role's voice.
// Best-effort: any failure returns nil audio and the turn succeeds.
func (o *Orchestrator) synthesizeSpeech(ctx context.Context, role Role, message string) []byte {
	if !o.deps.SpeechEnabled || o.deps.Speech == nil {
		return nil
	}

	text := summarize.TruncateForSpeech(message, speechMaxChars)
	voice := o.deps.Voices.VoiceForRole(string(role))

	audio, err := o.deps.Speech.Synthesize(ctx, text, voice)
	if err != nil {
		o.logger.Warn("Speech synthesis failed, returning text only: %v", err)
		o.deps.Recorder.RecordAuxFailure(metrics.ServiceSpeech)
		return nil
	}
	return audio
}

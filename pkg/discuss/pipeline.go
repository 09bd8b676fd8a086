package discuss

import (
	"context"

	"golang.org/x/sync/errgroup"

	"voxcrew/pkg/metrics"
	"voxcrew/pkg/persistence"
	"voxcrew/pkg/research"
)

// CommandStore is the full command-store surface the pipeline needs: history
// reads plus the single write per completed turn. persistence.Operations
// satisfies it.
type CommandStore interface {
	HistoryStore
	SaveCommand(transcript string, responses []persistence.AgentMessage) (*Command, error)
}

// Command aliases the persisted record type so callers of this package do
// not need to import persistence directly.
type Command = persistence.Command

// StageResult pairs a role with its response in pipeline order.
type StageResult struct {
	Role     Role      `json:"role"`
	Response *Response `json:"response"`
}

// PipelineResult is the outcome of one full user turn.
type PipelineResult struct {
	Stages       []StageResult `json:"stages"`
	ResearchOnly bool          `json:"researchOnly"`
	SaveWarning  string        `json:"saveWarning,omitempty"`
	Command      *Command      `json:"command,omitempty"`
}

// RunPipeline drives a full turn: architect alone, then backend and frontend
// concurrently, then qa. If the architect short-circuits into research, the
// turn ends there. Stage outputs are appended to the shared context in fixed
// pipeline order (backend before frontend) regardless of which finished
// first, so later prompts are deterministic. The completed turn is persisted
// at the end; a save failure becomes a warning, never an error, since the
// agent results are already computed.
func (o *Orchestrator) RunPipeline(ctx context.Context, store CommandStore, transcript string, demoMode bool, previousResearch *research.Data) (*PipelineResult, error) {
	architectResp, err := o.RunAgent(ctx, &Request{
		Transcript:       transcript,
		Role:             RoleArchitect,
		DemoMode:         demoMode,
		PreviousResearch: previousResearch,
	})
	if err != nil {
		return nil, err
	}

	if architectResp.TokenInfo.FinishReason == finishResearch {
		return &PipelineResult{
			Stages:       []StageResult{{Role: RoleArchitect, Response: architectResp}},
			ResearchOnly: true,
		}, nil
	}

	sharedContext := []ContextEntry{
		{Role: RoleArchitect.DisplayName(), Message: architectResp.Message},
	}

	var backendResp, frontendResp *Response
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		backendResp, err = o.RunAgent(gctx, &Request{
			Transcript:       transcript,
			Role:             RoleBackend,
			Context:          sharedContext,
			DemoMode:         demoMode,
			PreviousResearch: previousResearch,
		})
		return err
	})
	g.Go(func() error {
		var err error
		frontendResp, err = o.RunAgent(gctx, &Request{
			Transcript:       transcript,
			Role:             RoleFrontend,
			Context:          sharedContext,
			DemoMode:         demoMode,
			PreviousResearch: previousResearch,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Fixed insertion order, not arrival order.
	sharedContext = append(sharedContext,
		ContextEntry{Role: RoleBackend.DisplayName(), Message: backendResp.Message},
		ContextEntry{Role: RoleFrontend.DisplayName(), Message: frontendResp.Message},
	)

	qaResp, err := o.RunAgent(ctx, &Request{
		Transcript:       transcript,
		Role:             RoleQA,
		Context:          sharedContext,
		DemoMode:         demoMode,
		PreviousResearch: previousResearch,
	})
	if err != nil {
		return nil, err
	}

	result := &PipelineResult{
		Stages: []StageResult{
			{Role: RoleArchitect, Response: architectResp},
			{Role: RoleBackend, Response: backendResp},
			{Role: RoleFrontend, Response: frontendResp},
			{Role: RoleQA, Response: qaResp},
		},
	}

	if store != nil {
		result.Command, result.SaveWarning = o.persistTurn(store, transcript, result.Stages)
	}

	return result, nil
}

// persistTurn writes the completed turn to the command store. The save
// failure path degrades to a user-visible warning.
func (o *Orchestrator) persistTurn(store CommandStore, transcript string, stages []StageResult) (*Command, string) {
	responses := make([]persistence.AgentMessage, 0, len(stages))
	for _, stage := range stages {
		responses = append(responses, persistence.AgentMessage{
			Role:    string(stage.Role),
			Message: stage.Response.Message,
		})
	}

	cmd, err := store.SaveCommand(transcript, responses)
	if err != nil {
		o.logger.Warn("Failed to save completed turn: %v", err)
		o.deps.Recorder.RecordAuxFailure(metrics.ServicePersistence)
		return nil, "This conversation could not be saved to history."
	}
	return cmd, ""
}

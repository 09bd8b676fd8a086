package discuss

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"voxcrew/pkg/agent"
	"voxcrew/pkg/agent/llm"
	"voxcrew/pkg/research"
)

func ok(content string) llm.CompletionResponse {
	return llm.CompletionResponse{Content: content, StopReason: llm.StopEnd}
}

func TestRunPipelineFullTurn(t *testing.T) {
	client := agent.NewMockClient(
		ok("architect plan"),
		ok("stage two output"),
		ok("stage three output"),
		ok("qa review"),
	)
	store := &mockStore{}
	o := New(Deps{LLM: client, History: store})

	result, err := o.RunPipeline(context.Background(), store, "Build a todo list app", false, nil)

	require.NoError(t, err)
	require.Equal(t, 4, client.CallCount())
	require.False(t, result.ResearchOnly)
	require.Len(t, result.Stages, 4)
	require.Equal(t, RoleArchitect, result.Stages[0].Role)
	require.Equal(t, RoleBackend, result.Stages[1].Role)
	require.Equal(t, RoleFrontend, result.Stages[2].Role)
	require.Equal(t, RoleQA, result.Stages[3].Role)

	// The turn is persisted once with responses in pipeline order.
	require.Empty(t, result.SaveWarning)
	require.NotNil(t, result.Command)
	require.Len(t, store.saved, 1)
	require.Equal(t, "Build a todo list app", store.saved[0].Transcript)
	require.Len(t, store.saved[0].AgentResponses, 4)
	require.Equal(t, "architect", store.saved[0].AgentResponses[0].Role)
	require.Equal(t, "architect plan", store.saved[0].AgentResponses[0].Message)
}

func TestRunPipelineQASeesAllThreeInFixedOrder(t *testing.T) {
	client := agent.NewMockClient(ok("the architect plan"), ok("mid output"), ok("mid output"), ok("qa review"))
	o := New(Deps{LLM: client})

	_, err := o.RunPipeline(context.Background(), nil, "Build a todo list app", false, nil)
	require.NoError(t, err)

	requests := client.Requests()
	require.Len(t, requests, 4)

	// Backend and frontend both see only the architect's entry.
	for _, req := range requests[1:3] {
		text := allMessageText(&req)
		require.Contains(t, text, "the architect plan")
		require.NotContains(t, text, "qa review")
	}

	// QA sees backend before frontend regardless of completion order.
	qaPrompt := allMessageText(&requests[3])
	backendIdx := strings.Index(qaPrompt, "Backend:")
	frontendIdx := strings.Index(qaPrompt, "Frontend:")
	require.True(t, backendIdx >= 0, "qa prompt must contain the backend entry")
	require.True(t, frontendIdx > backendIdx, "backend entry must precede frontend entry")
}

func TestRunPipelineResearchShortCircuitEndsTurn(t *testing.T) {
	client := agent.NewMockClient()
	searcher := &mockSearcher{results: fiveResults()}
	store := &mockStore{}
	o := New(Deps{LLM: client, Searcher: searcher})

	result, err := o.RunPipeline(context.Background(), store, "What is the best way to do authentication?", false, nil)

	require.NoError(t, err)
	require.True(t, result.ResearchOnly)
	require.Len(t, result.Stages, 1)
	require.Equal(t, 0, client.CallCount())
	require.NotNil(t, result.Stages[0].Response.ResearchData)
	require.Empty(t, store.saved, "research-only turns are not persisted")
}

func TestRunPipelineCarriedResearchRunsFullTurn(t *testing.T) {
	client := agent.NewMockClient(ok("plan"), ok("b"), ok("f"), ok("qa"))
	searcher := &mockSearcher{results: fiveResults()}
	o := New(Deps{LLM: client, Searcher: searcher})

	prior := research.BuildData("What is the best way to do authentication?", fiveResults())
	result, err := o.RunPipeline(context.Background(), nil, "What is the best way to do authentication?", false, prior)

	require.NoError(t, err)
	require.False(t, result.ResearchOnly)
	require.Equal(t, 4, client.CallCount())
	require.Equal(t, 0, searcher.callCount())
}

func TestRunPipelineArchitectFailureAborts(t *testing.T) {
	client := agent.NewFailingMockClient(errors.New("provider down"))
	o := New(Deps{LLM: client})

	_, err := o.RunPipeline(context.Background(), nil, "Build a todo list app", false, nil)

	require.Error(t, err)
	require.Equal(t, KindModelFailure, KindOf(err))
	require.Equal(t, 1, client.CallCount(), "later stages must not run after the architect fails")
}

func TestRunPipelineSaveFailureBecomesWarning(t *testing.T) {
	client := agent.NewMockClient(ok("plan"), ok("b"), ok("f"), ok("qa"))
	store := &mockStore{saveErr: errors.New("disk full")}
	o := New(Deps{LLM: client})

	result, err := o.RunPipeline(context.Background(), store, "Build a todo list app", false, nil)

	require.NoError(t, err, "persistence failure must not discard computed results")
	require.Len(t, result.Stages, 4)
	require.NotEmpty(t, result.SaveWarning)
	require.Nil(t, result.Command)
}

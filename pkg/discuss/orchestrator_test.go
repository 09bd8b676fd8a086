package discuss

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"voxcrew/pkg/agent"
	"voxcrew/pkg/agent/llm"
	"voxcrew/pkg/persistence"
	"voxcrew/pkg/research"
)

// mockSearcher counts calls and replays canned results or a fixed error.
type mockSearcher struct {
	mu      sync.Mutex
	results []research.Result
	err     error
	calls   int
}

func (m *mockSearcher) Search(_ context.Context, _ string, _ int) ([]research.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *mockSearcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockSpeech returns fixed audio bytes or a fixed error.
type mockSpeech struct {
	audio []byte
	err   error
}

func (m *mockSpeech) Synthesize(_ context.Context, _, _ string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.audio, nil
}

// mockStore simulates command-store failures per method.
type mockStore struct {
	searchErr error
	recentErr error
	saveErr   error
	commands  []*persistence.Command
	saved     []*persistence.Command
}

func (m *mockStore) SearchCommands(_ string, _ int) ([]*persistence.Command, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.commands, nil
}

func (m *mockStore) ListRecent(_ int) ([]*persistence.Command, error) {
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	return m.commands, nil
}

func (m *mockStore) SaveCommand(transcript string, responses []persistence.AgentMessage) (*persistence.Command, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	cmd := &persistence.Command{
		ID:             persistence.GenerateCommandID(),
		Transcript:     transcript,
		AgentResponses: responses,
	}
	m.saved = append(m.saved, cmd)
	return cmd, nil
}

func fiveResults() []research.Result {
	return []research.Result{
		{Title: "OAuth 2.0 overview", URL: "https://example.com/1", Description: "Token-based auth."},
		{Title: "Session auth", URL: "https://example.com/2", Description: "Cookie sessions."},
		{Title: "JWT pitfalls", URL: "https://example.com/3", Description: "Common mistakes."},
		{Title: "Passkeys", URL: "https://example.com/4", Description: "WebAuthn flows."},
		{Title: "SSO basics", URL: "https://example.com/5", Description: "Identity providers."},
	}
}

func allMessageText(req *llm.CompletionRequest) string {
	var b strings.Builder
	for _, m := range req.Messages {
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func TestRunAgentRejectsEmptyTranscript(t *testing.T) {
	client := agent.NewMockClient()
	o := New(Deps{LLM: client})

	_, err := o.RunAgent(context.Background(), &Request{Transcript: "  ", Role: RoleArchitect})

	require.Error(t, err)
	require.Equal(t, KindInvalidInput, KindOf(err))
	require.Equal(t, 0, client.CallCount())
}

func TestRunAgentRejectsUnknownRole(t *testing.T) {
	client := agent.NewMockClient()
	searcher := &mockSearcher{results: fiveResults()}
	o := New(Deps{LLM: client, Searcher: searcher})

	_, err := o.RunAgent(context.Background(), &Request{Transcript: "build something", Role: Role("manager")})

	require.Error(t, err)
	require.Equal(t, KindInvalidInput, KindOf(err))
	require.Contains(t, err.Error(), "architect")
	require.Equal(t, 0, client.CallCount())
	require.Equal(t, 0, searcher.callCount())
}

func TestRunAgentDirectBuildSkipsResearch(t *testing.T) {
	client := agent.NewMockClient(llm.CompletionResponse{Content: "Plan: three tiers.", StopReason: llm.StopEnd})
	searcher := &mockSearcher{results: fiveResults()}
	o := New(Deps{LLM: client, Searcher: searcher})

	resp, err := o.RunAgent(context.Background(), &Request{
		Transcript: "Build a todo list app",
		Role:       RoleArchitect,
	})

	require.NoError(t, err)
	require.Equal(t, 0, searcher.callCount())
	require.Equal(t, 1, client.CallCount())
	require.Nil(t, resp.ResearchData)
	require.NotContains(t, allMessageText(client.LastRequest()), "Research findings")
}

func TestRunAgentResearchShortCircuit(t *testing.T) {
	client := agent.NewMockClient()
	searcher := &mockSearcher{results: fiveResults()}
	synth := &mockSpeech{audio: []byte{1, 2, 3}}
	o := New(Deps{LLM: client, Searcher: searcher, Speech: synth, SpeechEnabled: true})

	resp, err := o.RunAgent(context.Background(), &Request{
		Transcript: "What is the best way to do authentication?",
		Role:       RoleArchitect,
	})

	require.NoError(t, err)
	require.Equal(t, 0, client.CallCount(), "short circuit must not invoke the model")
	require.Equal(t, 1, searcher.callCount())
	require.NotNil(t, resp.ResearchData)
	require.Len(t, resp.ResearchData.Results, 1)
	require.Len(t, resp.ResearchData.AllResults, 5)
	require.Equal(t, 5, resp.ResearchData.TotalAvailable)
	require.Nil(t, resp.AudioData, "short circuit must not synthesize speech")
	require.Contains(t, resp.Message, "OAuth 2.0 overview")
}

func TestRunAgentPreviousResearchSkipsSearch(t *testing.T) {
	client := agent.NewMockClient(llm.CompletionResponse{Content: "Use OAuth.", StopReason: llm.StopEnd})
	searcher := &mockSearcher{results: fiveResults()}
	o := New(Deps{LLM: client, Searcher: searcher})

	prior := research.BuildData("What is the best way to do authentication?", fiveResults())
	resp, err := o.RunAgent(context.Background(), &Request{
		Transcript:       "What is the best way to do authentication?",
		Role:             RoleArchitect,
		PreviousResearch: prior,
	})

	require.NoError(t, err)
	require.Equal(t, 0, searcher.callCount(), "carried research must suppress a new search")
	require.Equal(t, 1, client.CallCount())
	require.Contains(t, allMessageText(client.LastRequest()), prior.Summary)
	require.Equal(t, prior, resp.ResearchData)
	require.False(t, resp.Truncated)
}

func TestRunAgentResearchGateArchitectOnly(t *testing.T) {
	client := agent.NewMockClient()
	searcher := &mockSearcher{results: fiveResults()}
	o := New(Deps{LLM: client, Searcher: searcher})

	resp, err := o.RunAgent(context.Background(), &Request{
		Transcript: "What is the best way to do authentication?",
		Role:       RoleBackend,
	})

	require.NoError(t, err)
	require.Equal(t, 0, searcher.callCount())
	require.Equal(t, 1, client.CallCount())
	require.Nil(t, resp.ResearchData)
}

func TestRunAgentResearchFailureProceedsWithoutIt(t *testing.T) {
	client := agent.NewMockClient(llm.CompletionResponse{Content: "Proceeding.", StopReason: llm.StopEnd})
	searcher := &mockSearcher{err: errors.New("search down")}
	o := New(Deps{LLM: client, Searcher: searcher})

	resp, err := o.RunAgent(context.Background(), &Request{
		Transcript: "What is the best way to do authentication?",
		Role:       RoleArchitect,
	})

	require.NoError(t, err)
	require.Equal(t, 1, searcher.callCount())
	require.Equal(t, 1, client.CallCount())
	require.Nil(t, resp.ResearchData)
}

func TestRunAgentModelFailureIsFatal(t *testing.T) {
	client := agent.NewFailingMockClient(errors.New("provider exploded"))
	o := New(Deps{LLM: client})

	_, err := o.RunAgent(context.Background(), &Request{
		Transcript: "build something",
		Role:       RoleBackend,
	})

	require.Error(t, err)
	require.Equal(t, KindModelFailure, KindOf(err))
	require.Contains(t, err.Error(), "provider exploded")
}

func TestRunAgentTruncationFlagged(t *testing.T) {
	client := agent.NewMockClient(llm.CompletionResponse{Content: "Partial answer", StopReason: llm.StopMaxTokens})
	o := New(Deps{LLM: client})

	resp, err := o.RunAgent(context.Background(), &Request{
		Transcript: "build something",
		Role:       RoleQA,
	})

	require.NoError(t, err)
	require.True(t, resp.Truncated)
	require.NotEmpty(t, resp.Warning)
	require.Equal(t, "Partial answer", resp.Message)
	require.Equal(t, string(llm.StopMaxTokens), resp.TokenInfo.FinishReason)
}

func TestRunAgentEmptyContentGetsApology(t *testing.T) {
	client := agent.NewMockClient(llm.CompletionResponse{Content: "   ", StopReason: llm.StopEnd})
	o := New(Deps{LLM: client})

	resp, err := o.RunAgent(context.Background(), &Request{
		Transcript: "build something",
		Role:       RoleFrontend,
	})

	require.NoError(t, err)
	require.Equal(t, apologyMessage, resp.Message)
}

func TestRunAgentSpeechFailureIsNonFatal(t *testing.T) {
	client := agent.NewMockClient(llm.CompletionResponse{Content: "All good.", StopReason: llm.StopEnd})
	synth := &mockSpeech{err: errors.New("tts down")}
	o := New(Deps{LLM: client, Speech: synth, SpeechEnabled: true})

	resp, err := o.RunAgent(context.Background(), &Request{
		Transcript: "build something",
		Role:       RoleArchitect,
	})

	require.NoError(t, err)
	require.Nil(t, resp.AudioData)
	require.Equal(t, "All good.", resp.Message)
}

func TestRunAgentSpeechAttachedOnSuccess(t *testing.T) {
	client := agent.NewMockClient(llm.CompletionResponse{Content: "All good.", StopReason: llm.StopEnd})
	synth := &mockSpeech{audio: []byte{0xAB, 0xCD}}
	o := New(Deps{LLM: client, Speech: synth, SpeechEnabled: true})

	resp, err := o.RunAgent(context.Background(), &Request{
		Transcript: "build something",
		Role:       RoleArchitect,
	})

	require.NoError(t, err)
	require.Equal(t, []byte{0xAB, 0xCD}, resp.AudioData)
}

func TestRunAgentHistorySearchFallsBackToRecent(t *testing.T) {
	client := agent.NewMockClient(llm.CompletionResponse{Content: "Plan.", StopReason: llm.StopEnd})
	store := &mockStore{
		searchErr: errors.New("index broken"),
		commands: []*persistence.Command{
			{ID: "1", Transcript: "earlier request about widgets"},
		},
	}
	o := New(Deps{LLM: client, History: store})

	_, err := o.RunAgent(context.Background(), &Request{
		Transcript: "build something",
		Role:       RoleArchitect,
	})

	require.NoError(t, err)
	require.Contains(t, allMessageText(client.LastRequest()), "earlier request about widgets")
}

func TestRunAgentBothHistoryPathsFailingIsNonFatal(t *testing.T) {
	client := agent.NewMockClient(llm.CompletionResponse{Content: "Plan.", StopReason: llm.StopEnd})
	store := &mockStore{
		searchErr: errors.New("index broken"),
		recentErr: errors.New("db broken"),
	}
	o := New(Deps{LLM: client, History: store})

	resp, err := o.RunAgent(context.Background(), &Request{
		Transcript: "build something",
		Role:       RoleArchitect,
	})

	require.NoError(t, err)
	require.NotEmpty(t, resp.Message)
}

func TestRunAgentDemoModeUsesFastTier(t *testing.T) {
	client := agent.NewMockClient(llm.CompletionResponse{Content: "Brief plan.", StopReason: llm.StopEnd})
	o := New(Deps{LLM: client})

	_, err := o.RunAgent(context.Background(), &Request{
		Transcript: "build something",
		Role:       RoleArchitect,
		DemoMode:   true,
	})

	require.NoError(t, err)
	req := client.LastRequest()
	require.Equal(t, llm.TierFast, req.Tier)
	require.Contains(t, req.Messages[0].Content, "under 150 words")
}

func TestRunAgentContextEntriesAppearInOrder(t *testing.T) {
	client := agent.NewMockClient(llm.CompletionResponse{Content: "Tests.", StopReason: llm.StopEnd})
	o := New(Deps{LLM: client})

	_, err := o.RunAgent(context.Background(), &Request{
		Transcript: "build something",
		Role:       RoleQA,
		Context: []ContextEntry{
			{Role: "Architect", Message: "first entry"},
			{Role: "Backend", Message: "second entry"},
			{Role: "Frontend", Message: "third entry"},
		},
	})

	require.NoError(t, err)
	prompt := allMessageText(client.LastRequest())
	first := strings.Index(prompt, "first entry")
	second := strings.Index(prompt, "second entry")
	third := strings.Index(prompt, "third entry")
	require.True(t, first >= 0 && second > first && third > second, "context order must be preserved")
}

package webapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"voxcrew/pkg/agent"
	"voxcrew/pkg/agent/llm"
	"voxcrew/pkg/discuss"
	"voxcrew/pkg/persistence"
)

// stubStore is an in-memory CommandStore for handler tests.
type stubStore struct {
	commands []*persistence.Command
	saveErr  error
}

func (s *stubStore) SearchCommands(_ string, _ int) ([]*persistence.Command, error) {
	return s.commands, nil
}

func (s *stubStore) ListRecent(limit int) ([]*persistence.Command, error) {
	if limit > 0 && limit < len(s.commands) {
		return s.commands[:limit], nil
	}
	return s.commands, nil
}

func (s *stubStore) GetCommand(id string) (*persistence.Command, error) {
	for _, cmd := range s.commands {
		if cmd.ID == id {
			return cmd, nil
		}
	}
	return nil, nil
}

func (s *stubStore) SaveCommand(transcript string, responses []persistence.AgentMessage) (*persistence.Command, error) {
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	cmd := &persistence.Command{
		ID:             persistence.GenerateCommandID(),
		Transcript:     transcript,
		Timestamp:      time.Now().UTC(),
		AgentResponses: responses,
	}
	s.commands = append([]*persistence.Command{cmd}, s.commands...)
	return cmd, nil
}

func testServer(t *testing.T, client llm.Client, store discuss.CommandStore, password string) *httptest.Server {
	t.Helper()

	orchestrator := discuss.New(discuss.Deps{LLM: client})
	srv := NewServer(orchestrator, store, nil, password, client != nil)

	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestDiscussEndpointSuccess(t *testing.T) {
	client := agent.NewMockClient(llm.CompletionResponse{Content: "A fine plan.", StopReason: llm.StopEnd})
	ts := testServer(t, client, &stubStore{}, "")

	resp := postJSON(t, ts.URL+"/agents/discuss", map[string]any{
		"transcript": "Build a todo list app",
		"agentRole":  "architect",
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[discuss.Response](t, resp)
	require.Equal(t, "A fine plan.", body.Message)
	require.False(t, body.Truncated)
	require.Positive(t, body.TokenInfo.AllocatedOutputTokens)
}

func TestDiscussEndpointValidationError(t *testing.T) {
	client := agent.NewMockClient()
	ts := testServer(t, client, &stubStore{}, "")

	resp := postJSON(t, ts.URL+"/agents/discuss", map[string]any{
		"transcript": "Build a todo list app",
		"agentRole":  "manager",
	})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	require.Contains(t, body["error"], "architect")
	require.Equal(t, 0, client.CallCount())
}

func TestDiscussEndpointModelFailure(t *testing.T) {
	client := agent.NewFailingMockClient(errors.New("provider down"))
	ts := testServer(t, client, &stubStore{}, "")

	resp := postJSON(t, ts.URL+"/agents/discuss", map[string]any{
		"transcript": "Build a todo list app",
		"agentRole":  "architect",
	})

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	require.Contains(t, body["error"], "provider down")
}

func TestDiscussEndpointNormalizesRoleCase(t *testing.T) {
	client := agent.NewMockClient(llm.CompletionResponse{Content: "ok", StopReason: llm.StopEnd})
	ts := testServer(t, client, &stubStore{}, "")

	resp := postJSON(t, ts.URL+"/agents/discuss", map[string]any{
		"transcript": "Build a todo list app",
		"agentRole":  " Architect ",
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPipelineEndpointRunsAllStages(t *testing.T) {
	client := agent.NewMockClient(llm.CompletionResponse{Content: "stage output", StopReason: llm.StopEnd})
	store := &stubStore{}
	ts := testServer(t, client, store, "")

	resp := postJSON(t, ts.URL+"/agents/pipeline", map[string]any{
		"transcript": "Build a todo list app",
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[discuss.PipelineResult](t, resp)
	require.Len(t, body.Stages, 4)
	require.Equal(t, 4, client.CallCount())
	require.Len(t, store.commands, 1)
}

func TestSaveCommandAssignsServerTimestamp(t *testing.T) {
	ts := testServer(t, agent.NewMockClient(), &stubStore{}, "")

	clientTimestamp := "1999-01-01T00:00:00Z"
	resp := postJSON(t, ts.URL+"/commands", map[string]any{
		"transcript": "save me",
		"timestamp":  clientTimestamp,
		"agentResponses": []map[string]string{
			{"role": "architect", "message": "X"},
		},
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[persistence.Command](t, resp)
	require.NotEmpty(t, body.ID)
	require.Equal(t, "X", body.AgentResponses[0].Message)
	require.NotEqual(t, clientTimestamp, body.Timestamp.Format(time.RFC3339))
}

func TestSaveCommandRejectsEmptyTranscript(t *testing.T) {
	ts := testServer(t, agent.NewMockClient(), &stubStore{}, "")

	resp := postJSON(t, ts.URL+"/commands", map[string]any{"transcript": "  "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListCommands(t *testing.T) {
	store := &stubStore{}
	_, err := store.SaveCommand("hello", nil)
	require.NoError(t, err)
	ts := testServer(t, agent.NewMockClient(), store, "")

	resp, err := http.Get(ts.URL + "/commands")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[[]persistence.Command](t, resp)
	require.Len(t, body, 1)
	require.Equal(t, "hello", body[0].Transcript)
}

func TestRecentCommandsLimit(t *testing.T) {
	store := &stubStore{}
	for _, tr := range []string{"a", "b", "c"} {
		_, err := store.SaveCommand(tr, nil)
		require.NoError(t, err)
	}
	ts := testServer(t, agent.NewMockClient(), store, "")

	resp, err := http.Get(ts.URL + "/commands/recent/2")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[[]persistence.Command](t, resp)
	require.Len(t, body, 2)
}

func TestRecentCommandsRejectsBadLimit(t *testing.T) {
	ts := testServer(t, agent.NewMockClient(), &stubStore{}, "")

	resp, err := http.Get(ts.URL + "/commands/recent/zero")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetCommandByID(t *testing.T) {
	store := &stubStore{}
	saved, err := store.SaveCommand("find me", nil)
	require.NoError(t, err)
	ts := testServer(t, agent.NewMockClient(), store, "")

	resp, err := http.Get(ts.URL + "/commands/" + saved.ID)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[persistence.Command](t, resp)
	require.Equal(t, "find me", body.Transcript)

	resp, err = http.Get(ts.URL + "/commands/no-such-id")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchCommands(t *testing.T) {
	store := &stubStore{}
	_, err := store.SaveCommand("authentication question", nil)
	require.NoError(t, err)
	ts := testServer(t, agent.NewMockClient(), store, "")

	resp := postJSON(t, ts.URL+"/commands/search", map[string]any{"query": "authentication"})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[[]persistence.Command](t, resp)
	require.Len(t, body, 1)
}

func TestHealthEndpoint(t *testing.T) {
	ts := testServer(t, agent.NewMockClient(), &stubStore{}, "")

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[healthResponse](t, resp)
	require.Equal(t, "ok", body.Status)
	require.True(t, body.ModelConfigured)
}

func TestBasicAuthProtectsAPIRoutes(t *testing.T) {
	ts := testServer(t, agent.NewMockClient(), &stubStore{}, "sekrit")

	resp, err := http.Get(ts.URL + "/commands")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/commands", nil)
	require.NoError(t, err)
	req.SetBasicAuth("voxcrew", "sekrit")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Health stays open for load balancers.
	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

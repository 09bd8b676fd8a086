package webapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"voxcrew/pkg/discuss"
	"voxcrew/pkg/logx"
	"voxcrew/pkg/persistence"
	"voxcrew/pkg/research"
)

// defaultListLimit bounds unqualified command listings.
const defaultListLimit = 50

// discussRequest is the wire shape of POST /agents/discuss.
type discussRequest struct {
	Transcript       string                 `json:"transcript"`
	AgentRole        string                 `json:"agentRole"`
	Context          []discuss.ContextEntry `json:"context"`
	DemoMode         bool                   `json:"demoMode"`
	PreviousResearch *research.Data         `json:"previousResearch"`
}

// handleDiscuss implements POST /agents/discuss: one agent invocation.
func (s *Server) handleDiscuss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req discussRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	resp, err := s.orchestrator.RunAgent(r.Context(), &discuss.Request{
		Transcript:       req.Transcript,
		Role:             discuss.ParseRole(req.AgentRole),
		Context:          req.Context,
		DemoMode:         req.DemoMode,
		PreviousResearch: req.PreviousResearch,
	})
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}

	s.writeJSON(w, resp)
}

// pipelineRequest is the wire shape of POST /agents/pipeline.
type pipelineRequest struct {
	Transcript       string         `json:"transcript"`
	DemoMode         bool           `json:"demoMode"`
	PreviousResearch *research.Data `json:"previousResearch"`
}

// handlePipeline implements POST /agents/pipeline: a full four-stage turn.
func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req pipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	result, err := s.orchestrator.RunPipeline(r.Context(), s.store, req.Transcript, req.DemoMode, req.PreviousResearch)
	if err != nil {
		s.writeOrchestratorError(w, err)
		return
	}

	s.writeJSON(w, result)
}

// saveCommandRequest is the wire shape of POST /commands. A client-supplied
// timestamp is accepted in the body but discarded; the store assigns its own.
type saveCommandRequest struct {
	Transcript     string                     `json:"transcript"`
	Timestamp      string                     `json:"timestamp"`
	AgentResponses []persistence.AgentMessage `json:"agentResponses"`
}

// handleCommands routes GET (list) and POST (save) for /commands.
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listCommands(w, defaultListLimit)
	case http.MethodPost:
		s.saveCommand(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) saveCommand(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusInternalServerError, "command store unavailable")
		return
	}

	var req saveCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		s.writeError(w, http.StatusBadRequest, "transcript must not be empty")
		return
	}

	cmd, err := s.store.SaveCommand(req.Transcript, req.AgentResponses)
	if err != nil {
		s.logger.Error("Failed to save command: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to save command")
		return
	}

	s.writeJSON(w, cmd)
}

func (s *Server) listCommands(w http.ResponseWriter, limit int) {
	if s.store == nil {
		s.writeError(w, http.StatusInternalServerError, "command store unavailable")
		return
	}

	commands, err := s.store.ListRecent(limit)
	if err != nil {
		s.logger.Error("Failed to list commands: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list commands")
		return
	}
	if commands == nil {
		commands = []*discuss.Command{}
	}

	s.writeJSON(w, commands)
}

// CommandGetter is the optional single-record read the store may support.
// persistence.Operations implements it.
type CommandGetter interface {
	GetCommand(id string) (*persistence.Command, error)
}

// handleCommandByID implements GET /commands/{id}.
func (s *Server) handleCommandByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	getter, ok := s.store.(CommandGetter)
	if !ok {
		s.writeError(w, http.StatusNotFound, "command lookup unavailable")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/commands/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusBadRequest, "command id required")
		return
	}

	cmd, err := getter.GetCommand(id)
	if err != nil {
		s.logger.Error("Failed to get command %s: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, "failed to get command")
		return
	}
	if cmd == nil {
		s.writeError(w, http.StatusNotFound, "command not found")
		return
	}

	s.writeJSON(w, cmd)
}

// handleCommandsRecent implements GET /commands/recent/{limit}.
func (s *Server) handleCommandsRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/commands/recent/")
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	s.listCommands(w, limit)
}

// searchRequest is the wire shape of POST /commands/search.
type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// handleCommandsSearch implements POST /commands/search: relevance-ranked
// lookup with the store's documented recency fallback.
func (s *Server) handleCommandsSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		s.writeError(w, http.StatusInternalServerError, "command store unavailable")
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultListLimit
	}

	commands, err := s.store.SearchCommands(req.Query, req.Limit)
	if err != nil {
		s.logger.Error("Failed to search commands: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to search commands")
		return
	}
	if commands == nil {
		commands = []*discuss.Command{}
	}

	s.writeJSON(w, commands)
}

// healthResponse is the wire shape of GET /health.
type healthResponse struct {
	Status          string `json:"status"`
	ModelConfigured bool   `json:"modelConfigured"`
}

// handleHealth implements GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, healthResponse{
		Status:          "ok",
		ModelConfigured: s.modelConfigured,
	})
}

// handleLogs implements GET /api/logs?component=X&since=RFC3339 over the
// in-memory log buffer.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	component := r.URL.Query().Get("component")
	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		since = parsed
	}

	entries := logx.GetRecentLogEntries(component, since)
	if entries == nil {
		entries = []logx.LogEntry{}
	}
	s.writeJSON(w, entries)
}

// handleMetricsSummary implements GET /api/metrics/summary: per-role usage
// aggregated from Prometheus. Requires a configured Prometheus address.
func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.queries == nil {
		s.writeError(w, http.StatusServiceUnavailable, "metrics queries not configured")
		return
	}

	summary, err := s.queries.GetAllRoleMetrics(r.Context())
	if err != nil {
		s.logger.Error("Failed to query metrics summary: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to query metrics")
		return
	}

	s.writeJSON(w, summary)
}

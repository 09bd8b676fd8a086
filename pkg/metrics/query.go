package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// RoleMetrics represents aggregated usage for one agent role.
type RoleMetrics struct {
	Role            string `json:"role"`
	Turns           int64  `json:"turns"`
	PromptTokens    int64  `json:"prompt_tokens"`
	AllocatedTokens int64  `json:"allocated_tokens"`
	TotalTokens     int64  `json:"total_tokens"`
}

// QueryService queries aggregated metrics back out of a Prometheus server
// that scrapes this process. Optional: only constructed when a Prometheus
// address is configured.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a metrics query service for the given Prometheus
// server address.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// queryScalar runs a PromQL query expected to yield a single-sample vector
// and returns its value, or 0 when the vector is empty.
func (q *QueryService) queryScalar(ctx context.Context, query string) (int64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to query %q: %w", query, err)
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return int64(vector[0].Value), nil
	}
	return 0, nil
}

// GetRoleMetrics retrieves aggregated turn and token counts for one role.
func (q *QueryService) GetRoleMetrics(ctx context.Context, role string) (*RoleMetrics, error) {
	metrics := &RoleMetrics{Role: role}

	turns, err := q.queryScalar(ctx, fmt.Sprintf(`sum(voxcrew_agent_turns_total{role=%q})`, role))
	if err != nil {
		return nil, err
	}
	metrics.Turns = turns

	prompt, err := q.queryScalar(ctx, fmt.Sprintf(`sum(voxcrew_llm_tokens_total{role=%q, type="prompt"})`, role))
	if err != nil {
		return nil, err
	}
	metrics.PromptTokens = prompt

	allocated, err := q.queryScalar(ctx, fmt.Sprintf(`sum(voxcrew_llm_tokens_total{role=%q, type="allocated"})`, role))
	if err != nil {
		return nil, err
	}
	metrics.AllocatedTokens = allocated

	metrics.TotalTokens = metrics.PromptTokens + metrics.AllocatedTokens
	return metrics, nil
}

// GetAllRoleMetrics retrieves aggregated metrics for every role that has
// recorded at least one turn.
func (q *QueryService) GetAllRoleMetrics(ctx context.Context) (map[string]*RoleMetrics, error) {
	rolesResult, _, err := q.queryAPI.Query(ctx, `group by (role) (voxcrew_agent_turns_total)`, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}

	var roles []string
	if vector, ok := rolesResult.(model.Vector); ok {
		for _, sample := range vector {
			if role, ok := sample.Metric["role"]; ok {
				roles = append(roles, string(role))
			}
		}
	}

	result := make(map[string]*RoleMetrics)
	for _, role := range roles {
		metrics, err := q.GetRoleMetrics(ctx, role)
		if err != nil {
			return nil, err
		}
		result[role] = metrics
	}
	return result, nil
}

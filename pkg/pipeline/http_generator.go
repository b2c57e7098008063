package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPGenerator calls an external content-generation service over HTTP.
// The service owns all reasoning and prompt logic; this client only
// moves the request and response.
type HTTPGenerator struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGenerator creates a generator client for the given base URL.
func NewHTTPGenerator(baseURL string, timeout time.Duration) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPGenerator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type generateRequestBody struct {
	Agent          string `json:"agent"`
	Input          string `json:"input"`
	MissionTitle   string `json:"mission_title,omitempty"`
	CheckpointGoal string `json:"checkpoint_goal,omitempty"`
}

type generateResponseBody struct {
	Reply              string `json:"reply"`
	Handover           bool   `json:"handover"`
	HandoverTo         string `json:"handover_to,omitempty"`
	CheckpointComplete bool   `json:"checkpoint_complete"`
}

// Generate implements Generator.
func (g *HTTPGenerator) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	body, err := json.Marshal(generateRequestBody{
		Agent:          string(req.Agent),
		Input:          req.Input,
		MissionTitle:   req.MissionTitle,
		CheckpointGoal: req.CheckpointGoal,
	})
	if err != nil {
		return GenerateResult{}, fmt.Errorf("encode generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return GenerateResult{}, fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("call generator service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return GenerateResult{}, fmt.Errorf("generator service returned %d: %s", resp.StatusCode, data)
	}

	var out generateResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return GenerateResult{}, fmt.Errorf("decode generate response: %w", err)
	}

	return GenerateResult{
		Reply:              out.Reply,
		Handover:           out.Handover,
		HandoverTo:         AgentName(out.HandoverTo),
		CheckpointComplete: out.CheckpointComplete,
	}, nil
}

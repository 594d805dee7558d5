package llm

import (
	"context"
	"fmt"
	"strings"

	apphttp "homewise/internal/common/http"
	"homewise/internal/common/logger"
	"homewise/internal/common/validation"
	"homewise/internal/tools"
)

const generatePath = "/api/ai/generate"

// HTTPModel calls a generation gateway over JSON/HTTP.
//
// Request:  {"prompt", "format": "json"|"text", "outputSchema", "tools", "toolResults", "temperature"}
// Response: {"text", "toolCalls": [{"name", "args"}]}
//
// A response with toolCalls is answered by resending the request with the results appended.
type HTTPModel struct {
	cfg      Config
	client   *apphttp.Client
	registry *tools.Registry
	logger   logger.Logger
}

type toolDeclaration struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Parameters  validation.JSONSchema `json:"parameters"`
}

type generateRequest struct {
	Prompt       string                 `json:"prompt"`
	Format       string                 `json:"format"`
	Model        string                 `json:"model,omitempty"`
	OutputSchema *validation.JSONSchema `json:"outputSchema,omitempty"`
	Tools        []toolDeclaration      `json:"tools,omitempty"`
	ToolResults  []ToolCall             `json:"toolResults,omitempty"`
	Temperature  float64                `json:"temperature,omitempty"`
}

type generateResponse struct {
	Text      string `json:"text"`
	ToolCalls []struct {
		Name string                 `json:"name"`
		Args map[string]interface{} `json:"args"`
	} `json:"toolCalls"`
}

func NewHTTPModel(cfg Config, registry *tools.Registry, log logger.Logger) *HTTPModel {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = defaultMaxToolRounds
	}
	return &HTTPModel{
		cfg: cfg,
		// deadlines come from the request context
		client:   apphttp.NewClient(0),
		registry: registry,
		logger:   log.With(map[string]interface{}{"provider": ProviderHTTP}),
	}
}

func (m *HTTPModel) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := withTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	body := generateRequest{
		Prompt:       req.Prompt,
		Format:       "text",
		Model:        m.cfg.Model,
		OutputSchema: req.OutputSchema,
		Temperature:  m.cfg.Temperature,
	}
	if req.OutputSchema != nil {
		body.Format = "json"
	}
	if len(req.Tools) > 0 {
		if m.registry == nil {
			return nil, fmt.Errorf("%w: no tool registry configured", ErrProviderFailed)
		}
		declared, err := m.registry.Lookup(req.Tools)
		if err != nil {
			return nil, err
		}
		for _, t := range declared {
			body.Tools = append(body.Tools, toolDeclaration{Name: t.Name, Description: t.Description, Parameters: t.InputSchema})
		}
	}

	headers := map[string]string{}
	if m.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + m.cfg.APIKey
	}
	url := strings.TrimRight(m.cfg.BaseURL, "/") + generatePath

	for round := 0; ; round++ {
		var resp generateResponse
		if err := m.client.PostJSON(ctx, url, headers, body, &resp); err != nil {
			return nil, wrapCallError(ctx, err)
		}

		if len(resp.ToolCalls) == 0 {
			return &Response{Text: resp.Text, ToolCalls: body.ToolResults}, nil
		}
		if round >= m.cfg.MaxToolRounds {
			return nil, fmt.Errorf("%w: %d rounds", ErrToolLoopExceeded, round)
		}

		for _, call := range resp.ToolCalls {
			result := invokeTool(ctx, m.registry, m.logger, call.Name, call.Args)
			body.ToolResults = append(body.ToolResults, ToolCall{Name: call.Name, Args: call.Args, Result: result})
		}
	}
}

package llm

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"homewise/internal/common/logger"
	"homewise/internal/common/validation"
	"homewise/internal/tools"
)

// GeminiModel talks to the Gemini API through the official genai client.
type GeminiModel struct {
	cli      *genai.Client
	cfg      Config
	registry *tools.Registry
	logger   logger.Logger
}

func NewGeminiModel(ctx context.Context, cfg Config, registry *tools.Registry, log logger.Logger) (*GeminiModel, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = defaultMaxToolRounds
	}
	return &GeminiModel{
		cli:      cli,
		cfg:      cfg,
		registry: registry,
		logger:   log.With(map[string]interface{}{"provider": ProviderGemini, "model": cfg.Model}),
	}, nil
}

// Generate sends the prompt, serving function calls from the tool registry until the
// model produces a final answer.
func (g *GeminiModel) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := withTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	config, err := g.buildConfig(req)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}}
	var calls []ToolCall

	for round := 0; ; round++ {
		resp, err := g.cli.Models.GenerateContent(ctx, g.cfg.Model, contents, config)
		if err != nil {
			return nil, wrapCallError(ctx, err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return &Response{ToolCalls: calls}, nil
		}

		content := resp.Candidates[0].Content
		var text strings.Builder
		var pending []*genai.FunctionCall
		for _, part := range content.Parts {
			if part == nil {
				continue
			}
			if part.FunctionCall != nil {
				pending = append(pending, part.FunctionCall)
				continue
			}
			text.WriteString(part.Text)
		}

		if len(pending) == 0 {
			return &Response{Text: text.String(), ToolCalls: calls}, nil
		}
		if round >= g.cfg.MaxToolRounds {
			return nil, fmt.Errorf("%w: %d rounds", ErrToolLoopExceeded, round)
		}

		contents = append(contents, content)
		replies := make([]*genai.Part, 0, len(pending))
		for _, fc := range pending {
			result := invokeTool(ctx, g.registry, g.logger, fc.Name, fc.Args)
			calls = append(calls, ToolCall{Name: fc.Name, Args: fc.Args, Result: result})
			replies = append(replies, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       fc.ID,
				Name:     fc.Name,
				Response: result,
			}})
		}
		contents = append(contents, &genai.Content{Role: "user", Parts: replies})
	}
}

// buildConfig offers tools when requested; otherwise a structured request uses JSON mode
// with the response schema. Gemini does not accept both at once.
func (g *GeminiModel) buildConfig(req Request) (*genai.GenerateContentConfig, error) {
	config := &genai.GenerateContentConfig{}
	if g.cfg.Temperature > 0 {
		t := float32(g.cfg.Temperature)
		config.Temperature = &t
	}

	if len(req.Tools) > 0 {
		if g.registry == nil {
			return nil, fmt.Errorf("%w: no tool registry configured", ErrProviderFailed)
		}
		declared, err := g.registry.Lookup(req.Tools)
		if err != nil {
			return nil, err
		}
		decls := make([]*genai.FunctionDeclaration, 0, len(declared))
		for _, t := range declared {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toGenaiSchema(t.InputSchema),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
		return config, nil
	}

	if req.OutputSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toGenaiSchema(*req.OutputSchema)
	}
	return config, nil
}

func toGenaiSchema(s validation.JSONSchema) *genai.Schema {
	out := &genai.Schema{
		Type:        genai.TypeObject,
		Description: s.Description,
		Required:    s.Required,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = propertyToGenai(p)
		}
	}
	return out
}

func propertyToGenai(p validation.Property) *genai.Schema {
	out := &genai.Schema{
		Type:        genaiType(p.Type),
		Description: p.Description,
		Enum:        p.Enum,
		Required:    p.Required,
	}
	if p.Items != nil {
		out.Items = propertyToGenai(*p.Items)
	}
	if len(p.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(p.Properties))
		for name, child := range p.Properties {
			out.Properties[name] = propertyToGenai(child)
		}
	}
	return out
}

func genaiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeObject
	}
}

// Package llm is the boundary to the hosted language model. Flows hand it a rendered
// prompt and, optionally, an output schema and the names of tools the model may call.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"homewise/internal/common/logger"
	"homewise/internal/common/validation"
	"homewise/internal/tools"
)

const (
	ProviderGemini = "gemini"
	ProviderHTTP   = "http"

	defaultMaxToolRounds = 5
)

var (
	ErrProviderFailed   = errors.New("LLM_PROVIDER_FAILED")
	ErrTimeout          = errors.New("LLM_TIMEOUT")
	ErrToolLoopExceeded = errors.New("LLM_TOOL_LOOP_EXCEEDED")
	ErrNoJSON           = errors.New("LLM_NO_JSON")
)

// Request is one generation. A nil OutputSchema asks for free text.
type Request struct {
	Name         string
	Prompt       string
	OutputSchema *validation.JSONSchema
	Tools        []string
}

// ToolCall records a tool the model asked for during a generation.
type ToolCall struct {
	Name   string                 `json:"name"`
	Args   map[string]interface{} `json:"args,omitempty"`
	Result map[string]interface{} `json:"result,omitempty"`
}

// Response carries the final text. Text may be empty; callers decide what that means.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// Model generates text for a prompt. Implementations do not retry.
type Model interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

type Config struct {
	Provider      string
	BaseURL       string
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxToolRounds int
	Temperature   float64
}

// New builds the configured provider.
func New(ctx context.Context, cfg Config, registry *tools.Registry, log logger.Logger) (Model, error) {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = defaultMaxToolRounds
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderGemini, "":
		return NewGeminiModel(ctx, cfg, registry, log)
	case ProviderHTTP:
		return NewHTTPModel(cfg, registry, log), nil
	default:
		return nil, fmt.Errorf("unknown genai provider %q", cfg.Provider)
	}
}

// ExtractJSON returns the JSON object contained in text, tolerating markdown fences
// and prose around it.
func ExtractJSON(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil, ErrNoJSON
	}
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if json.Valid([]byte(s)) {
		return json.RawMessage(s), nil
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil, ErrNoJSON
	}
	candidate := s[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return nil, ErrNoJSON
	}
	return json.RawMessage(candidate), nil
}

// invokeTool runs a requested tool. Failures are handed back to the model as an
// error payload instead of aborting the generation.
func invokeTool(ctx context.Context, registry *tools.Registry, log logger.Logger, name string, args map[string]interface{}) map[string]interface{} {
	if registry == nil {
		return map[string]interface{}{"error": fmt.Sprintf("tool %s is not available", name)}
	}
	out, err := registry.Invoke(ctx, name, args)
	if err != nil {
		log.Warn("Tool invocation failed", map[string]interface{}{"tool": name, "error": err.Error()})
		return map[string]interface{}{"error": err.Error()}
	}
	log.Debug("Tool invoked", map[string]interface{}{"tool": name})
	return out
}

func wrapCallError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrProviderFailed, err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

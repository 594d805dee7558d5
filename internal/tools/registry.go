// Package tools holds the capabilities advertised to the model and the registry the
// model boundary uses to invoke them by name.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"homewise/internal/common/validation"
)

var (
	ErrToolNotFound      = errors.New("TOOL_NOT_FOUND")
	ErrToolInvalidInput  = errors.New("TOOL_INVALID_INPUT")
	ErrToolInvalidOutput = errors.New("TOOL_INVALID_OUTPUT")
	ErrToolExists        = errors.New("TOOL_ALREADY_REGISTERED")
)

// HandlerFunc executes a tool with arguments that already passed the input schema.
type HandlerFunc func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error)

// Tool is a named capability the model may request mid-generation.
type Tool struct {
	Name         string
	Description  string
	InputSchema  validation.JSONSchema
	OutputSchema validation.JSONSchema
	Handler      HandlerFunc
}

// Registry maps tool names to tools. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t. Names are unique.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" || t.Handler == nil {
		return fmt.Errorf("tool must have a name and a handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolExists, t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves names to tools, failing on the first unknown name.
func (r *Registry) Lookup(names []string) ([]Tool, error) {
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		t, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
		}
		out = append(out, t)
	}
	return out, nil
}

// Invoke validates args, runs the handler and validates its result.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	if result := validation.Validate(t.InputSchema, args); !result.Valid {
		return nil, fmt.Errorf("%w: %s: %v", ErrToolInvalidInput, name, result.GetErrorMessages())
	}

	out, err := t.Handler(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	if result := validation.Validate(t.OutputSchema, out); !result.Valid {
		return nil, fmt.Errorf("%w: %s: %v", ErrToolInvalidOutput, name, result.GetErrorMessages())
	}
	return out, nil
}

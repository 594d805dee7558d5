package llm

import (
	"context"
	"strings"
	"time"

	"homewise/internal/common/logger"
)

// Outcomes reported to a Recorder.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

// Recorder receives one observation per model call.
type Recorder interface {
	RecordModelCall(ctx context.Context, flow, provider, outcome string, duration time.Duration)
}

type instrumented struct {
	next     Model
	provider string
	recorder Recorder
	logger   logger.Logger
}

// Instrument wraps next with call logging and metrics. rec may be nil.
func Instrument(next Model, provider string, rec Recorder, log logger.Logger) Model {
	return &instrumented{
		next:     next,
		provider: provider,
		recorder: rec,
		logger:   log.With(map[string]interface{}{"provider": provider}),
	}
}

func (i *instrumented) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	i.logger.Debug("Model request", map[string]interface{}{
		"flow":        req.Name,
		"promptBytes": len(req.Prompt),
		"structured":  req.OutputSchema != nil,
		"tools":       req.Tools,
	})

	resp, err := i.next.Generate(ctx, req)
	elapsed := time.Since(start)

	outcome := OutcomeSuccess
	switch {
	case err != nil:
		outcome = OutcomeError
		i.logger.Error("Model call failed", map[string]interface{}{
			"flow":       req.Name,
			"error":      err.Error(),
			"durationMs": elapsed.Milliseconds(),
		})
	case resp == nil || strings.TrimSpace(resp.Text) == "":
		outcome = OutcomeEmpty
		i.logger.Warn("Model returned an empty response", map[string]interface{}{
			"flow":       req.Name,
			"durationMs": elapsed.Milliseconds(),
		})
	default:
		i.logger.Info("Model call completed", map[string]interface{}{
			"flow":          req.Name,
			"responseBytes": len(resp.Text),
			"toolCalls":     len(resp.ToolCalls),
			"durationMs":    elapsed.Milliseconds(),
		})
	}

	if i.recorder != nil {
		i.recorder.RecordModelCall(ctx, req.Name, i.provider, outcome, elapsed)
	}
	return resp, err
}

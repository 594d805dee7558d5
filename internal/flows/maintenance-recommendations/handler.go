// internal/flows/maintenance-recommendations/handler.go
package maintenancerecommendations

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "homewise/internal/common/errors"
	"homewise/internal/common/llm"
	"homewise/internal/common/logger"
	"homewise/internal/common/validation"
	"homewise/internal/prompt"
	"homewise/internal/schemas"
	"homewise/internal/tools"
)

const (
	TaskType = "maintenance-recommendations"

	noRecommendationsMessage = "Unable to generate recommendations."
)

type Handler struct {
	config   *Config
	model    llm.Model
	renderer *prompt.Renderer
	tracer   trace.Tracer
	logger   logger.Logger
}

func NewHandler(config *Config, model llm.Model, renderer *prompt.Renderer, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		model:    model,
		renderer: renderer,
		tracer:   otel.Tracer("homewise/flows"),
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Execute asks the model for cost-saving tips, providers, remaining life and critical issues.
// The geolocation tool is offered only when the input carries a location.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	ctx, span := h.tracer.Start(ctx, TaskType)
	defer span.End()

	output, err := h.execute(ctx, input, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
		return nil, err
	}
	return output, nil
}

func (h *Handler) execute(ctx context.Context, input *Input, span trace.Span) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewValidationError("AI recommendations", []string{"(root): input is required"})
	}
	if result := validation.Validate(schemas.MaintenanceRecommendationsInput, input); !result.Valid {
		return nil, apperrors.NewValidationError("AI recommendations", result.GetErrorMessages())
	}

	text, err := h.renderer.Render(h.config.Template, input)
	if err != nil {
		return nil, err
	}

	req := llm.Request{
		Name:         TaskType,
		Prompt:       text,
		OutputSchema: &schemas.MaintenanceRecommendationsOutput,
	}
	if input.HasLocation() {
		req.Tools = []string{tools.GeolocationToolName}
	}
	span.SetAttributes(attribute.Bool("hasLocation", input.HasLocation()))

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	h.logger.Info("Requesting recommendations", map[string]interface{}{
		"category":     input.Category,
		"hasLocation":  input.HasLocation(),
		"historyCount": len(input.MaintenanceHistory),
	})

	resp, err := h.model.Generate(ctx, req)
	if err != nil {
		return nil, apperrors.NewModelUnavailableError(noRecommendationsMessage, err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return nil, apperrors.NewOutputShapeError(noRecommendationsMessage, nil)
	}

	raw, err := llm.ExtractJSON(resp.Text)
	if err != nil {
		return nil, apperrors.NewOutputShapeError(noRecommendationsMessage, []string{"(root): response is not a JSON object"})
	}
	output, result, err := validation.Decode[Output](schemas.MaintenanceRecommendationsOutput, raw)
	if err != nil {
		return nil, apperrors.NewOutputShapeError(noRecommendationsMessage, []string{err.Error()})
	}
	if !result.Valid {
		return nil, apperrors.NewOutputShapeError(noRecommendationsMessage, result.GetErrorMessages())
	}

	h.logger.Info("Recommendations generated", map[string]interface{}{
		"toolCalls": len(resp.ToolCalls),
	})
	return output, nil
}

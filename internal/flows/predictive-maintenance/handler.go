// internal/flows/predictive-maintenance/handler.go
package predictivemaintenance

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "homewise/internal/common/errors"
	"homewise/internal/common/llm"
	"homewise/internal/common/logger"
	"homewise/internal/common/validation"
	"homewise/internal/models"
	"homewise/internal/prompt"
	"homewise/internal/schemas"
)

const (
	TaskType = "predict-maintenance"

	noPredictionMessage = "Could not generate a prediction."
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

// Execute predicts the next maintenance task for a machine. Invalid input is rejected
// before the model is called.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	ctx, span := h.tracer.Start(ctx, TaskType)
	defer span.End()

	output, err := h.execute(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.String("urgencyLevel", string(output.UrgencyLevel)))
	return output, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewValidationError("predictive maintenance", []string{"(root): input is required"})
	}
	if result := validation.Validate(schemas.PredictiveMaintenanceInput, input); !result.Valid {
		return nil, apperrors.NewValidationError("predictive maintenance", result.GetErrorMessages())
	}

	text, err := h.renderer.Render(h.config.Template, input)
	if err != nil {
		return nil, err
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	h.logger.Info("Requesting prediction", map[string]interface{}{
		"category":     input.Category,
		"brand":        input.Brand,
		"historyCount": len(input.MaintenanceHistory),
	})

	resp, err := h.model.Generate(ctx, llm.Request{
		Name:         TaskType,
		Prompt:       text,
		OutputSchema: &schemas.PredictiveMaintenanceOutput,
	})
	if err != nil {
		return nil, apperrors.NewModelUnavailableError(noPredictionMessage, err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return nil, apperrors.NewOutputShapeError(noPredictionMessage, nil)
	}

	raw, err := llm.ExtractJSON(resp.Text)
	if err != nil {
		return nil, apperrors.NewOutputShapeError(noPredictionMessage, []string{"(root): response is not a JSON object"})
	}
	output, result, err := validation.Decode[Output](schemas.PredictiveMaintenanceOutput, raw)
	if err != nil {
		return nil, apperrors.NewOutputShapeError(noPredictionMessage, []string{err.Error()})
	}
	if !result.Valid {
		return nil, apperrors.NewOutputShapeError(noPredictionMessage, result.GetErrorMessages())
	}
	// the pattern admits calendar-invalid dates such as 2025-02-30
	if _, err := time.Parse(models.DateLayout, output.NextMaintenanceDate); err != nil {
		return nil, apperrors.NewOutputShapeError(noPredictionMessage, []string{"nextMaintenanceDate: must be a calendar date (YYYY-MM-DD)"})
	}

	h.logger.Info("Prediction generated", map[string]interface{}{
		"taskName":     output.TaskName,
		"urgencyLevel": output.UrgencyLevel,
	})
	return output, nil
}

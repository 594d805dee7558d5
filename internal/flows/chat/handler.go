// internal/flows/chat/handler.go
package chat

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
)

const TaskType = "chat"

// FallbackResponse replaces an empty model reply.
const FallbackResponse = "I'm sorry, I couldn't generate a response."

type Handler struct {
	config   *Config
	model    llm.Model
	renderer *prompt.Renderer
	tracer   trace.Tracer
	logger   logger.Logger
}

func NewHandler(config *Config, model llm.Model, renderer *prompt.Renderer, log logger.Logger) *Handler {
	if config.Fallback == "" {
		config.Fallback = FallbackResponse
	}
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

// Execute answers a chat message in free text. An empty reply degrades to the fallback
// instead of failing; provider errors still fail.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	ctx, span := h.tracer.Start(ctx, TaskType)
	defer span.End()

	if input == nil {
		err := apperrors.NewValidationError("chat", []string{"(root): input is required"})
		span.RecordError(err)
		return nil, err
	}
	if result := validation.Validate(schemas.ChatInput, input); !result.Valid {
		err := apperrors.NewValidationError("chat", result.GetErrorMessages())
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.ErrCodeValidationFailed))
		return nil, err
	}

	text, err := h.renderer.Render(h.config.Template, input)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	resp, err := h.model.Generate(ctx, llm.Request{Name: TaskType, Prompt: text})
	if err != nil {
		stdErr := apperrors.NewModelUnavailableError("Chat model unavailable", err)
		span.RecordError(stdErr)
		span.SetStatus(codes.Error, string(stdErr.Code))
		return nil, stdErr
	}

	reply := ""
	if resp != nil {
		reply = strings.TrimSpace(resp.Text)
	}
	if reply == "" {
		h.logger.Warn("Empty chat reply, using fallback", map[string]interface{}{
			"historyCount": len(input.History),
		})
		span.SetAttributes(attribute.Bool("fallback", true))
		return &Output{Response: h.config.Fallback}, nil
	}

	h.logger.Info("Chat reply generated", map[string]interface{}{
		"historyCount":  len(input.History),
		"responseBytes": len(reply),
	})
	return &Output{Response: reply}, nil
}

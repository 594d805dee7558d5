// Package actions is the boundary the HTTP API calls. Every entry point re-validates
// its raw input, delegates to a flow or the repository, and turns failures into
// user-safe errors while logging the original.
package actions

import (
	"context"
	"encoding/json"
	"time"

	apperrors "homewise/internal/common/errors"
	"homewise/internal/common/logger"
	"homewise/internal/common/metrics"
	"homewise/internal/common/validation"
	"homewise/internal/flows/chat"
	maintenancerecommendations "homewise/internal/flows/maintenance-recommendations"
	predictivemaintenance "homewise/internal/flows/predictive-maintenance"
	"homewise/internal/repository"
	"homewise/internal/schemas"
)

const (
	ActionPredictiveMaintenance = "runPredictiveMaintenance"
	ActionRecommendations       = "runAiRecommendations"
	ActionChat                  = "runChat"
	ActionPredictForMachine     = "predictForMachine"
	ActionRecommendForMachine   = "recommendForMachine"
	ActionAddMachine            = "addMachine"
	ActionAddReminder           = "addReminder"

	predictFailedMessage   = "Failed to get predictive maintenance data."
	recommendFailedMessage = "Failed to get AI recommendations."
	chatFailedMessage      = "Failed to get chat response."
	storeFailedMessage     = "Failed to save changes."
	loadFailedMessage      = "Failed to load data."
)

// TaskRecorder counts tasks created by the service. Optional.
type TaskRecorder interface {
	RecordTaskCreated(ctx context.Context, source string)
}

// Flows groups the flow handlers the service delegates to.
type Flows struct {
	Predict   *predictivemaintenance.Handler
	Recommend *maintenancerecommendations.Handler
	Chat      *chat.Handler
}

type Service struct {
	flows    Flows
	machines repository.MachineRepository
	tasks    repository.TaskRepository
	recorder TaskRecorder
	errors   *apperrors.ErrorHandler
	logger   logger.Logger
}

func NewService(flows Flows, machines repository.MachineRepository, tasks repository.TaskRepository, recorder TaskRecorder, log logger.Logger) *Service {
	scoped := log.With(map[string]interface{}{"component": "actions"})
	return &Service{
		flows:    flows,
		machines: machines,
		tasks:    tasks,
		recorder: recorder,
		errors:   apperrors.NewErrorHandler(scoped),
		logger:   scoped,
	}
}

// RunPredictiveMaintenance validates raw and runs the prediction flow.
func (s *Service) RunPredictiveMaintenance(ctx context.Context, raw json.RawMessage) (out *predictivemaintenance.Output, err error) {
	done := s.observe(ActionPredictiveMaintenance)
	defer func() { done(err) }()

	input, err := decode[predictivemaintenance.Input](schemas.PredictiveMaintenanceInput, raw, "predictive maintenance")
	if err != nil {
		return nil, s.fail(ActionPredictiveMaintenance, err, predictFailedMessage)
	}
	s.logger.Debug("Action input accepted", map[string]interface{}{"action": ActionPredictiveMaintenance, "input": input})

	out, err = s.flows.Predict.Execute(ctx, input)
	if err != nil {
		return nil, s.fail(ActionPredictiveMaintenance, err, predictFailedMessage)
	}
	s.logger.Info("Action completed", map[string]interface{}{"action": ActionPredictiveMaintenance, "output": out})
	return out, nil
}

// RunAiRecommendations validates raw and runs the recommendations flow. machineType is
// accepted as an alias of category.
func (s *Service) RunAiRecommendations(ctx context.Context, raw json.RawMessage) (out *maintenancerecommendations.Output, err error) {
	done := s.observe(ActionRecommendations)
	defer func() { done(err) }()

	input, err := decode[maintenancerecommendations.Input](schemas.MaintenanceRecommendationsInput, aliasField(raw, "machineType", "category"), "AI recommendations")
	if err != nil {
		return nil, s.fail(ActionRecommendations, err, recommendFailedMessage)
	}
	s.logger.Debug("Action input accepted", map[string]interface{}{"action": ActionRecommendations, "input": input})

	out, err = s.flows.Recommend.Execute(ctx, input)
	if err != nil {
		return nil, s.fail(ActionRecommendations, err, recommendFailedMessage)
	}
	s.logger.Info("Action completed", map[string]interface{}{"action": ActionRecommendations})
	return out, nil
}

// RunChat validates raw and runs the chat flow.
func (s *Service) RunChat(ctx context.Context, raw json.RawMessage) (out *chat.Output, err error) {
	done := s.observe(ActionChat)
	defer func() { done(err) }()

	input, err := decode[chat.Input](schemas.ChatInput, raw, "chat")
	if err != nil {
		return nil, s.fail(ActionChat, err, chatFailedMessage)
	}
	s.logger.Debug("Action input accepted", map[string]interface{}{"action": ActionChat, "historyCount": len(input.History)})

	out, err = s.flows.Chat.Execute(ctx, input)
	if err != nil {
		return nil, s.fail(ActionChat, err, chatFailedMessage)
	}
	s.logger.Info("Action completed", map[string]interface{}{"action": ActionChat})
	return out, nil
}

func (s *Service) fail(action string, err error, userMessage string) *apperrors.StandardError {
	return s.errors.Handle(action, err, userMessage)
}

// observe tracks an action in the Prometheus metrics and returns its completion hook.
func (s *Service) observe(action string) func(err error) {
	start := time.Now()
	metrics.ActionsActive.WithLabelValues(action).Inc()
	return func(err error) {
		metrics.ActionsActive.WithLabelValues(action).Dec()
		metrics.ActionDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ActionsFailed.WithLabelValues(action, string(apperrors.CodeOf(err))).Inc()
			return
		}
		metrics.ActionsCompleted.WithLabelValues(action).Inc()
	}
}

// decode validates raw against schema and decodes it, reporting every violation as a
// ValidationError about subject.
func decode[T any](schema validation.JSONSchema, raw json.RawMessage, subject string) (*T, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	out, result, err := validation.Decode[T](schema, raw)
	if err != nil {
		return nil, apperrors.NewValidationError(subject, []string{err.Error()})
	}
	if !result.Valid {
		return nil, apperrors.NewValidationError(subject, result.GetErrorMessages())
	}
	return out, nil
}

// aliasField copies alias into field when only alias is set. Non-object input is
// returned untouched for validation to reject.
func aliasField(raw json.RawMessage, alias, field string) json.RawMessage {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return raw
	}
	value, hasAlias := doc[alias]
	if _, hasField := doc[field]; hasField || !hasAlias {
		return raw
	}
	doc[field] = value
	delete(doc, alias)
	out, err := json.Marshal(doc)
	if err != nil {
		return raw
	}
	return out
}

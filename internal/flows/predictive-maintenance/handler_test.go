// internal/flows/predictive-maintenance/handler_test.go
package predictivemaintenance

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "homewise/internal/common/errors"
	"homewise/internal/common/llm"
	"homewise/internal/common/llm/llmtest"
	"homewise/internal/common/logger"
	"homewise/internal/models"
	"homewise/internal/prompt"
)

const echoResponse = `{"taskName":"Oil Change","nextMaintenanceDate":"2024-07-01","estimatedCost":75.5,"urgencyLevel":"Medium"}`

func createTestConfig() *Config {
	return &Config{
		Template: prompt.PredictMaintenance,
		Timeout:  5 * time.Second,
	}
}

func createTestInput() *Input {
	return &Input{
		Category:        "Vehicle",
		Brand:           "Toyota",
		Model:           "Corolla",
		LastMaintenance: "2024-01-01",
		PurchaseDate:    "2020-01-01",
		UsageFrequency:  "Daily",
		WarrantyExpiry:  "2025-01-01",
	}
}

func newTestHandler(t *testing.T, model llm.Model) *Handler {
	return NewHandler(createTestConfig(), model, prompt.MustNewRenderer(), logger.NewTestLogger(t))
}

func TestHandler_Execute_EchoesModelObject(t *testing.T) {
	stub := llmtest.NewStub(echoResponse)
	h := newTestHandler(t, stub)

	output, err := h.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.Equal(t, &Output{
		TaskName:            "Oil Change",
		NextMaintenanceDate: "2024-07-01",
		EstimatedCost:       75.5,
		UrgencyLevel:        models.UrgencyMedium,
	}, output)
	assert.Equal(t, 1, stub.Calls())

	req := stub.LastRequest()
	assert.Equal(t, TaskType, req.Name)
	require.NotNil(t, req.OutputSchema)
	assert.Empty(t, req.Tools)
	assert.Contains(t, req.Prompt, "- Brand: Toyota")
	assert.NotContains(t, req.Prompt, "- History:")
}

func TestHandler_Execute_FencedResponse(t *testing.T) {
	h := newTestHandler(t, llmtest.NewStub("```json\n"+echoResponse+"\n```"))

	output, err := h.Execute(context.Background(), createTestInput())

	require.NoError(t, err)
	assert.Equal(t, "Oil Change", output.TaskName)
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Input)
		expectedField string
	}{
		{
			name:          "missing brand",
			mutate:        func(i *Input) { i.Brand = "" },
			expectedField: "brand",
		},
		{
			name:          "missing warranty expiry",
			mutate:        func(i *Input) { i.WarrantyExpiry = "" },
			expectedField: "warrantyExpiry",
		},
		{
			name: "negative history cost",
			mutate: func(i *Input) {
				i.MaintenanceHistory = []models.MaintenanceHistoryEntry{{Task: "Oil Change", Date: "2023-01-01", Cost: -1}}
			},
			expectedField: "maintenanceHistory.0.cost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := llmtest.NewStub(echoResponse)
			h := newTestHandler(t, stub)
			input := createTestInput()
			tt.mutate(input)

			output, err := h.Execute(context.Background(), input)

			assert.Nil(t, output)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrValidationFailed))
			assert.Contains(t, err.Error(), tt.expectedField)
			assert.Equal(t, 0, stub.Calls())
		})
	}
}

func TestHandler_Execute_MissingFieldsAllReported(t *testing.T) {
	stub := llmtest.NewStub(echoResponse)
	h := newTestHandler(t, stub)

	_, err := h.Execute(context.Background(), &Input{Category: "Vehicle"})

	stdErr := apperrors.AsStandard(err)
	require.NotNil(t, stdErr)
	assert.Len(t, stdErr.Fields, 6)
	assert.Equal(t, 0, stub.Calls())

	_, err = h.Execute(context.Background(), nil)
	assert.True(t, errors.Is(err, apperrors.ErrValidationFailed))
	assert.Equal(t, 0, stub.Calls())
}

func TestHandler_Execute_OutputFailures(t *testing.T) {
	tests := []struct {
		name        string
		model       llm.Model
		expectedErr error
	}{
		{
			name:        "empty response",
			model:       llmtest.NewStub("  "),
			expectedErr: apperrors.ErrOutputShapeInvalid,
		},
		{
			name:        "not json",
			model:       llmtest.NewStub("Change the oil soon."),
			expectedErr: apperrors.ErrOutputShapeInvalid,
		},
		{
			name:        "invalid urgency",
			model:       llmtest.NewStub(`{"taskName":"Oil Change","nextMaintenanceDate":"2024-07-01","estimatedCost":75,"urgencyLevel":"Critical"}`),
			expectedErr: apperrors.ErrOutputShapeInvalid,
		},
		{
			name:        "lowercase urgency",
			model:       llmtest.NewStub(`{"taskName":"Oil Change","nextMaintenanceDate":"2024-07-01","estimatedCost":75,"urgencyLevel":"high"}`),
			expectedErr: apperrors.ErrOutputShapeInvalid,
		},
		{
			name:        "missing cost",
			model:       llmtest.NewStub(`{"taskName":"Oil Change","nextMaintenanceDate":"2024-07-01","urgencyLevel":"Low"}`),
			expectedErr: apperrors.ErrOutputShapeInvalid,
		},
		{
			name:        "free text date",
			model:       llmtest.NewStub(`{"taskName":"Oil Change","nextMaintenanceDate":"in about 3 months","estimatedCost":75,"urgencyLevel":"Low"}`),
			expectedErr: apperrors.ErrOutputShapeInvalid,
		},
		{
			name:        "impossible date",
			model:       llmtest.NewStub(`{"taskName":"Oil Change","nextMaintenanceDate":"2025-02-30","estimatedCost":75,"urgencyLevel":"Low"}`),
			expectedErr: apperrors.ErrOutputShapeInvalid,
		},
		{
			name:        "provider failure",
			model:       llmtest.NewFailingStub(llm.ErrProviderFailed),
			expectedErr: apperrors.ErrModelUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.model)

			output, err := h.Execute(context.Background(), createTestInput())

			assert.Nil(t, output)
			assert.True(t, errors.Is(err, tt.expectedErr), "got %v", err)
			assert.Equal(t, noPredictionMessage, apperrors.AsStandard(err).Message)
		})
	}
}

func TestHandler_Execute_ProviderCauseKept(t *testing.T) {
	h := newTestHandler(t, llmtest.NewFailingStub(llm.ErrTimeout))

	_, err := h.Execute(context.Background(), createTestInput())

	assert.True(t, errors.Is(err, apperrors.ErrModelUnavailable))
	assert.True(t, errors.Is(err, llm.ErrTimeout))
}

var historyLine = regexp.MustCompile(`(?m)^\s*- Task: (.+), Date: (.+), Cost: (.+)$`)

func TestHandler_Execute_HistoryRoundTrip(t *testing.T) {
	history := []models.MaintenanceHistoryEntry{
		{Task: "Oil Change", Date: "2023-01-10", Cost: 49.99},
		{Task: "Tire Rotation", Date: "2023-04-02", Cost: 30},
		{Task: "Brake Pads", Date: "2023-09-15", Cost: 180.25},
	}

	var parsed []models.MaintenanceHistoryEntry
	stub := llmtest.NewFuncStub(func(req llm.Request) (*llm.Response, error) {
		for _, m := range historyLine.FindAllStringSubmatch(req.Prompt, -1) {
			cost, err := strconv.ParseFloat(m[3], 64)
			require.NoError(t, err)
			parsed = append(parsed, models.MaintenanceHistoryEntry{Task: m[1], Date: m[2], Cost: cost})
		}
		return &llm.Response{Text: echoResponse}, nil
	})
	h := newTestHandler(t, stub)
	input := createTestInput()
	input.MaintenanceHistory = history

	_, err := h.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, history, parsed)
}

func TestHandler_Execute_TemplateFromConfig(t *testing.T) {
	config := createTestConfig()
	config.Template = "missing-template"
	stub := llmtest.NewStub(echoResponse)
	h := NewHandler(config, stub, prompt.MustNewRenderer(), logger.NewNoOpLogger())

	_, err := h.Execute(context.Background(), createTestInput())

	assert.Equal(t, apperrors.ErrCodeTemplateNotFound, apperrors.CodeOf(err))
	assert.Equal(t, 0, stub.Calls())
}

func TestFromMachine(t *testing.T) {
	vendor := "Jiffy Lube"
	m := &models.Machine{
		Category:        models.CategoryVehicle,
		Brand:           "Toyota",
		Model:           "Camry",
		PurchaseDate:    "2022-01-15",
		WarrantyExpiry:  "2025-01-15",
		LastMaintenance: "2023-12-01",
		UsageFrequency:  "Daily",
		MaintenanceHistory: []models.MaintenanceRecord{
			{ID: "h1", Task: "Oil Change", Date: "2023-12-01", Cost: 75, Vendor: &vendor},
		},
	}

	input := FromMachine(m)

	assert.Equal(t, "Vehicle", input.Category)
	assert.Equal(t, "2023-12-01", input.LastMaintenance)
	assert.Equal(t, []models.MaintenanceHistoryEntry{{Task: "Oil Change", Date: "2023-12-01", Cost: 75}}, input.MaintenanceHistory)
	assert.True(t, input.HasHistory())
}

// internal/actions/service_test.go
package actions

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "homewise/internal/common/errors"
	"homewise/internal/common/llm"
	"homewise/internal/common/llm/llmtest"
	"homewise/internal/common/logger"
	"homewise/internal/flows/chat"
	maintenancerecommendations "homewise/internal/flows/maintenance-recommendations"
	predictivemaintenance "homewise/internal/flows/predictive-maintenance"
	"homewise/internal/models"
	"homewise/internal/prompt"
	"homewise/internal/repository"
	"homewise/internal/tools"
)

const (
	predictionJSON      = `{"taskName":"Oil Change","nextMaintenanceDate":"2025-03-01","estimatedCost":70,"urgencyLevel":"High"}`
	recommendationsJSON = `{"costSavingTips":"Check tire pressure monthly.","recommendedServiceProviders":"A local auto shop.","estimatedRemainingLife":"6 years","criticalAttentionNeeded":"None"}`
	validPredictInput   = `{"category":"Vehicle","brand":"Toyota","model":"Corolla","lastMaintenance":"2024-01-01","purchaseDate":"2020-01-01","usageFrequency":"Daily","warrantyExpiry":"2025-01-01"}`
)

type fakeRecorder struct {
	sources []string
}

func (f *fakeRecorder) RecordTaskCreated(ctx context.Context, source string) {
	f.sources = append(f.sources, source)
}

type testEnv struct {
	service  *Service
	model    *llmtest.Stub
	store    *repository.MemoryStore
	recorder *fakeRecorder
}

// newTestEnv wires every flow to one stub model answering by flow name.
func newTestEnv(t *testing.T, answers map[string]string) *testEnv {
	model := llmtest.NewFuncStub(func(req llm.Request) (*llm.Response, error) {
		text, ok := answers[req.Name]
		if !ok {
			return nil, llm.ErrProviderFailed
		}
		return &llm.Response{Text: text}, nil
	})
	return newTestEnvWithModel(t, model)
}

func newTestEnvWithModel(t *testing.T, model *llmtest.Stub) *testEnv {
	log := logger.NewTestLogger(t)
	renderer := prompt.MustNewRenderer()
	flows := Flows{
		Predict:   predictivemaintenance.NewHandler(&predictivemaintenance.Config{Template: prompt.PredictMaintenance, Timeout: time.Second}, model, renderer, log),
		Recommend: maintenancerecommendations.NewHandler(&maintenancerecommendations.Config{Template: prompt.MaintenanceRecommendations, Timeout: time.Second}, model, renderer, log),
		Chat:      chat.NewHandler(&chat.Config{Template: prompt.Chat, Timeout: time.Second}, model, renderer, log),
	}
	store := repository.NewMemoryStore()
	recorder := &fakeRecorder{}
	return &testEnv{
		service:  NewService(flows, store, store, recorder, log),
		model:    model,
		store:    store,
		recorder: recorder,
	}
}

func (e *testEnv) seedMachine(t *testing.T) *models.Machine {
	m, err := e.store.InsertMachine(context.Background(), &models.Machine{
		Name:            "Toyota Corolla",
		Category:        models.CategoryVehicle,
		Brand:           "Toyota",
		Model:           "Corolla 2020",
		PurchaseDate:    "2020-06-15",
		WarrantyExpiry:  "2025-06-15",
		LastMaintenance: "2024-08-01",
		UsageFrequency:  "Daily",
		MaintenanceHistory: []models.MaintenanceRecord{
			{Task: "Oil Change", Date: "2024-08-01", Cost: 60},
		},
	})
	require.NoError(t, err)
	return m
}

func TestRunPredictiveMaintenance_Success(t *testing.T) {
	env := newTestEnv(t, map[string]string{predictivemaintenance.TaskType: predictionJSON})

	out, err := env.service.RunPredictiveMaintenance(context.Background(), json.RawMessage(validPredictInput))

	require.NoError(t, err)
	assert.Equal(t, "Oil Change", out.TaskName)
	assert.Equal(t, models.UrgencyHigh, out.UrgencyLevel)
}

func TestRunPredictiveMaintenance_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		fields []string
	}{
		{
			name:   "missing fields",
			raw:    `{"category":"Vehicle","brand":"Toyota"}`,
			fields: []string{"lastMaintenance", "model", "purchaseDate", "usageFrequency", "warrantyExpiry"},
		},
		{
			name:   "wrong type",
			raw:    `{"category":"Vehicle","brand":"Toyota","model":7,"lastMaintenance":"2024-01-01","purchaseDate":"2020-01-01","usageFrequency":"Daily","warrantyExpiry":"2025-01-01"}`,
			fields: []string{"model"},
		},
		{
			name:   "non iso dates",
			raw:    `{"category":"Vehicle","brand":"Toyota","model":"Corolla","lastMaintenance":"last spring","purchaseDate":"a while ago","usageFrequency":"Daily","warrantyExpiry":"never"}`,
			fields: []string{"lastMaintenance", "purchaseDate", "warrantyExpiry"},
		},
		{
			name: "non iso history date",
			raw: `{"category":"Vehicle","brand":"Toyota","model":"Corolla","lastMaintenance":"2024-01-01","purchaseDate":"2020-01-01","usageFrequency":"Daily","warrantyExpiry":"2025-01-01",
				"maintenanceHistory":[{"task":"Oil Change","date":"01/02/2024","cost":60}]}`,
			fields: []string{"maintenanceHistory.0.date"},
		},
		{name: "not json", raw: `{"category":`, fields: []string{"(root)"}},
		{name: "empty body", raw: ``, fields: []string{"(root)"}},
		{name: "array", raw: `[]`, fields: []string{"(root)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, map[string]string{predictivemaintenance.TaskType: predictionJSON})

			out, err := env.service.RunPredictiveMaintenance(context.Background(), json.RawMessage(tt.raw))

			assert.Nil(t, out)
			require.Error(t, err)
			stdErr := apperrors.AsStandard(err)
			require.NotNil(t, stdErr)
			assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
			assert.Contains(t, stdErr.Message, "Invalid input for predictive maintenance")
			for _, field := range tt.fields {
				assert.Contains(t, stdErr.Message, field)
			}
			assert.Equal(t, 0, env.model.Calls())
		})
	}
}

func TestRunPredictiveMaintenance_FlowFailureIsNormalized(t *testing.T) {
	tests := []struct {
		name     string
		answer   *string
		sentinel error
	}{
		{name: "provider down", answer: nil, sentinel: apperrors.ErrModelUnavailable},
		{name: "bad urgency", answer: strPtr(`{"taskName":"x","nextMaintenanceDate":"2025-01-01","estimatedCost":1,"urgencyLevel":"Urgent"}`), sentinel: apperrors.ErrOutputShapeInvalid},
		{name: "empty", answer: strPtr(""), sentinel: apperrors.ErrOutputShapeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers := map[string]string{}
			if tt.answer != nil {
				answers[predictivemaintenance.TaskType] = *tt.answer
			}
			env := newTestEnv(t, answers)

			_, err := env.service.RunPredictiveMaintenance(context.Background(), json.RawMessage(validPredictInput))

			require.Error(t, err)
			assert.Equal(t, "Failed to get predictive maintenance data.", apperrors.AsStandard(err).Message)
			assert.True(t, errors.Is(err, tt.sentinel))
		})
	}
}

func TestRunAiRecommendations_MachineTypeAlias(t *testing.T) {
	env := newTestEnv(t, map[string]string{maintenancerecommendations.TaskType: recommendationsJSON})
	raw := `{"machineType":"Vehicle","brand":"Honda","model":"Civic","usageFrequency":"Weekly","lastMaintenanceDate":"2024-02-01","purchaseDate":"2019-06-01"}`

	out, err := env.service.RunAiRecommendations(context.Background(), json.RawMessage(raw))

	require.NoError(t, err)
	assert.Equal(t, "A local auto shop.", out.RecommendedServiceProviders)
	assert.Contains(t, env.model.LastRequest().Prompt, "Machine Type: Vehicle")
}

func TestRunAiRecommendations_Failure(t *testing.T) {
	env := newTestEnv(t, map[string]string{maintenancerecommendations.TaskType: `{"costSavingTips":"only one"}`})
	raw := `{"category":"HVAC","brand":"Carrier","model":"Infinity 26","usageFrequency":"Daily","lastMaintenanceDate":"2024-04-10","purchaseDate":"2019-05-20"}`

	_, err := env.service.RunAiRecommendations(context.Background(), json.RawMessage(raw))

	require.Error(t, err)
	assert.Equal(t, "Failed to get AI recommendations.", apperrors.AsStandard(err).Message)
	assert.True(t, errors.Is(err, apperrors.ErrOutputShapeInvalid))
}

func TestRunChat(t *testing.T) {
	t.Run("fallback on empty reply", func(t *testing.T) {
		env := newTestEnv(t, map[string]string{chat.TaskType: ""})

		out, err := env.service.RunChat(context.Background(), json.RawMessage(`{"message":"hello","history":[]}`))

		require.NoError(t, err)
		assert.Equal(t, "I'm sorry, I couldn't generate a response.", out.Response)
	})

	t.Run("invalid role", func(t *testing.T) {
		env := newTestEnv(t, map[string]string{chat.TaskType: "hi"})

		_, err := env.service.RunChat(context.Background(), json.RawMessage(`{"message":"hello","history":[{"role":"bot","content":"x"}]}`))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "Invalid input for chat")
		assert.Equal(t, 0, env.model.Calls())
	})

	t.Run("provider failure", func(t *testing.T) {
		env := newTestEnv(t, map[string]string{})

		_, err := env.service.RunChat(context.Background(), json.RawMessage(`{"message":"hello"}`))

		require.Error(t, err)
		assert.Equal(t, "Failed to get chat response.", apperrors.AsStandard(err).Message)
		assert.True(t, errors.Is(err, llm.ErrProviderFailed))
	})
}

func TestPredictForMachine(t *testing.T) {
	env := newTestEnv(t, map[string]string{predictivemaintenance.TaskType: predictionJSON})
	m := env.seedMachine(t)

	result, err := env.service.PredictForMachine(context.Background(), m.ID)

	require.NoError(t, err)
	assert.Equal(t, "Oil Change", result.Prediction.TaskName)
	assert.Equal(t, m.ID, result.Task.MachineID)
	assert.Equal(t, models.StatusPending, result.Task.Status)
	assert.Equal(t, "2025-03-01", result.Task.DueDate)
	assert.False(t, result.Task.NotificationSent)
	assert.Equal(t, []string{TaskSourcePrediction}, env.recorder.sources)
	assert.Contains(t, env.model.LastRequest().Prompt, "Task: Oil Change, Date: 2024-08-01, Cost: 60")

	tasks, err := env.service.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	_, err = env.service.PredictForMachine(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrResourceNotFound))
}

func TestPredictForMachine_RejectsNonDatePrediction(t *testing.T) {
	for _, due := range []string{"in about 3 months", "2025-02-30"} {
		t.Run(due, func(t *testing.T) {
			answer := `{"taskName":"Oil Change","nextMaintenanceDate":"` + due + `","estimatedCost":70,"urgencyLevel":"High"}`
			env := newTestEnv(t, map[string]string{predictivemaintenance.TaskType: answer})
			m := env.seedMachine(t)

			result, err := env.service.PredictForMachine(context.Background(), m.ID)

			assert.Nil(t, result)
			assert.True(t, errors.Is(err, apperrors.ErrOutputShapeInvalid), "got %v", err)
			assert.Equal(t, predictFailedMessage, apperrors.AsStandard(err).Message)

			tasks, err := env.service.ListTasks(context.Background())
			require.NoError(t, err)
			assert.Empty(t, tasks)
			assert.Empty(t, env.recorder.sources)
		})
	}
}

func TestRunAiRecommendations_NonISODates(t *testing.T) {
	env := newTestEnv(t, map[string]string{maintenancerecommendations.TaskType: recommendationsJSON})

	_, err := env.service.RunAiRecommendations(context.Background(), json.RawMessage(
		`{"category":"HVAC","brand":"Carrier","model":"Infinity","usageFrequency":"Daily","lastMaintenanceDate":"a while ago","purchaseDate":"2019"}`))

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrValidationFailed))
	msg := apperrors.AsStandard(err).Message
	assert.Contains(t, msg, "lastMaintenanceDate")
	assert.Contains(t, msg, "purchaseDate")
	assert.Equal(t, 0, env.model.Calls())
}

func TestRecommendForMachine_Location(t *testing.T) {
	env := newTestEnv(t, map[string]string{maintenancerecommendations.TaskType: recommendationsJSON})
	m := env.seedMachine(t)

	_, err := env.service.RecommendForMachine(context.Background(), m.ID, json.RawMessage(`{"location":"Mountain View, CA"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{tools.GeolocationToolName}, env.model.LastRequest().Tools)

	_, err = env.service.RecommendForMachine(context.Background(), m.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, env.model.LastRequest().Tools)
}

func TestAddReminder(t *testing.T) {
	env := newTestEnv(t, nil)
	m := env.seedMachine(t)

	task, err := env.service.AddReminder(context.Background(), json.RawMessage(
		`{"machineId":"`+m.ID+`","taskName":"Brake Inspection","dueDate":"2025-10-01","urgencyLevel":"High","estimatedCost":150}`))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, task.Status)
	assert.Equal(t, models.UrgencyHigh, task.UrgencyLevel)
	assert.Equal(t, []string{TaskSourceReminder}, env.recorder.sources)

	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"short task name", `{"machineId":"` + m.ID + `","taskName":"A","dueDate":"2025-10-01","urgencyLevel":"High"}`, "taskName"},
		{"bad urgency", `{"machineId":"` + m.ID + `","taskName":"Brakes","dueDate":"2025-10-01","urgencyLevel":"urgent"}`, "urgencyLevel"},
		{"bad date", `{"machineId":"` + m.ID + `","taskName":"Brakes","dueDate":"next week","urgencyLevel":"Low"}`, "dueDate"},
		{"unknown machine", `{"machineId":"nope","taskName":"Brakes","dueDate":"2025-10-01","urgencyLevel":"Low"}`, "machineId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.AddReminder(context.Background(), json.RawMessage(tt.raw))

			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrValidationFailed))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestAddMachine(t *testing.T) {
	env := newTestEnv(t, nil)
	raw := `{"id":"ignored","name":"LG Washing Machine","category":"Laundry","brand":"LG","model":"WM3900HWA",
		"purchaseDate":"2022-09-01","warrantyExpiry":"2027-09-01","lastMaintenance":"2024-03-01","usageFrequency":"Weekly",
		"maintenanceHistory":[{"task":"Drain and Drum Clean","date":"2024-03-01","cost":25}]}`

	m, err := env.service.AddMachine(context.Background(), json.RawMessage(raw))

	require.NoError(t, err)
	assert.NotEqual(t, "ignored", m.ID)
	assert.Equal(t, models.CategoryLaundry, m.Category)
	require.Len(t, m.MaintenanceHistory, 1)
	assert.NotEmpty(t, m.MaintenanceHistory[0].ID)

	machines, err := env.service.ListMachines(context.Background())
	require.NoError(t, err)
	assert.Len(t, machines, 1)

	_, err = env.service.AddMachine(context.Background(), json.RawMessage(`{"name":"Mower","category":"Garden","brand":"Honda","model":"HRX",
		"purchaseDate":"2022-13-45","warrantyExpiry":"2027-09-01","lastMaintenance":"2024-03-01","usageFrequency":"Weekly"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purchaseDate")

	_, err = env.service.AddMachine(context.Background(), json.RawMessage(`{"name":"Mower","category":"Boat"}`))
	assert.True(t, errors.Is(err, apperrors.ErrValidationFailed))
}

func TestListMachines_EmptyIsNotNil(t *testing.T) {
	env := newTestEnv(t, nil)

	machines, err := env.service.ListMachines(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, machines)
	assert.Empty(t, machines)
}

func strPtr(s string) *string { return &s }

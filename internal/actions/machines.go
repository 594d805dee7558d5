// internal/actions/machines.go
package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	apperrors "homewise/internal/common/errors"
	maintenancerecommendations "homewise/internal/flows/maintenance-recommendations"
	predictivemaintenance "homewise/internal/flows/predictive-maintenance"
	"homewise/internal/models"
	"homewise/internal/schemas"
)

const (
	TaskSourcePrediction = "prediction"
	TaskSourceReminder   = "reminder"
)

// MachinePrediction is a prediction together with the task stored for it.
type MachinePrediction struct {
	Prediction *predictivemaintenance.Output `json:"prediction"`
	Task       *models.MaintenanceTask       `json:"task"`
}

type reminderInput struct {
	MachineID     string         `json:"machineId"`
	TaskName      string         `json:"taskName"`
	DueDate       string         `json:"dueDate"`
	UrgencyLevel  models.Urgency `json:"urgencyLevel"`
	EstimatedCost float64        `json:"estimatedCost"`
}

type machineRecommendationsInput struct {
	Location *string `json:"location,omitempty"`
}

func (s *Service) ListMachines(ctx context.Context) ([]models.Machine, error) {
	machines, err := s.machines.ListMachines(ctx)
	if err != nil {
		return nil, s.fail("listMachines", err, loadFailedMessage)
	}
	if machines == nil {
		machines = []models.Machine{}
	}
	return machines, nil
}

func (s *Service) GetMachine(ctx context.Context, id string) (*models.Machine, error) {
	m, err := s.machines.FindMachine(ctx, id)
	if err != nil {
		return nil, s.fail("getMachine", err, loadFailedMessage)
	}
	return m, nil
}

func (s *Service) ListTasks(ctx context.Context) ([]models.MaintenanceTask, error) {
	tasks, err := s.tasks.ListTasks(ctx)
	if err != nil {
		return nil, s.fail("listTasks", err, loadFailedMessage)
	}
	if tasks == nil {
		tasks = []models.MaintenanceTask{}
	}
	return tasks, nil
}

// AddMachine validates and stores a new machine.
func (s *Service) AddMachine(ctx context.Context, raw json.RawMessage) (out *models.Machine, err error) {
	done := s.observe(ActionAddMachine)
	defer func() { done(err) }()

	m, err := decode[models.Machine](schemas.Machine, raw, "machine")
	if err != nil {
		return nil, s.fail(ActionAddMachine, err, storeFailedMessage)
	}
	violations := dateViolations(map[string]string{
		"purchaseDate":    m.PurchaseDate,
		"warrantyExpiry":  m.WarrantyExpiry,
		"lastMaintenance": m.LastMaintenance,
	})
	for i, h := range m.MaintenanceHistory {
		if _, perr := models.ParseDate(h.Date); perr != nil {
			violations = append(violations, fmt.Sprintf("maintenanceHistory.%d.date: must be a date (YYYY-MM-DD)", i))
		}
	}
	if len(violations) > 0 {
		return nil, s.fail(ActionAddMachine, apperrors.NewValidationError("machine", violations), storeFailedMessage)
	}

	// ids are always assigned by the store
	m.ID = ""
	out, err = s.machines.InsertMachine(ctx, m)
	if err != nil {
		return nil, s.fail(ActionAddMachine, err, storeFailedMessage)
	}
	s.logger.Info("Machine added", map[string]interface{}{"machineId": out.ID, "category": out.Category})
	return out, nil
}

// AddReminder stores a Pending task for an existing machine.
func (s *Service) AddReminder(ctx context.Context, raw json.RawMessage) (out *models.MaintenanceTask, err error) {
	done := s.observe(ActionAddReminder)
	defer func() { done(err) }()

	in, err := decode[reminderInput](schemas.Reminder, raw, "reminder")
	if err != nil {
		return nil, s.fail(ActionAddReminder, err, storeFailedMessage)
	}
	violations := dateViolations(map[string]string{"dueDate": in.DueDate})
	if _, ferr := s.machines.FindMachine(ctx, in.MachineID); ferr != nil {
		if apperrors.CodeOf(ferr) != apperrors.ErrCodeResourceNotFound {
			return nil, s.fail(ActionAddReminder, ferr, storeFailedMessage)
		}
		violations = append(violations, "machineId: no machine with this id")
	}
	if len(violations) > 0 {
		return nil, s.fail(ActionAddReminder, apperrors.NewValidationError("reminder", violations), storeFailedMessage)
	}

	out, err = s.tasks.InsertTask(ctx, &models.MaintenanceTask{
		MachineID:        in.MachineID,
		TaskName:         in.TaskName,
		DueDate:          in.DueDate,
		Status:           models.StatusPending,
		EstimatedCost:    in.EstimatedCost,
		UrgencyLevel:     in.UrgencyLevel,
		NotificationSent: false,
	})
	if err != nil {
		return nil, s.fail(ActionAddReminder, err, storeFailedMessage)
	}
	s.recordTask(ctx, TaskSourceReminder)
	s.logger.Info("Reminder added", map[string]interface{}{"taskId": out.ID, "machineId": out.MachineID})
	return out, nil
}

// PredictForMachine runs the prediction flow on a stored machine and stores the
// predicted task as Pending.
func (s *Service) PredictForMachine(ctx context.Context, machineID string) (out *MachinePrediction, err error) {
	done := s.observe(ActionPredictForMachine)
	defer func() { done(err) }()

	m, err := s.machines.FindMachine(ctx, machineID)
	if err != nil {
		return nil, s.fail(ActionPredictForMachine, err, predictFailedMessage)
	}

	prediction, err := s.flows.Predict.Execute(ctx, predictivemaintenance.FromMachine(m))
	if err != nil {
		return nil, s.fail(ActionPredictForMachine, err, predictFailedMessage)
	}

	task, err := s.tasks.InsertTask(ctx, &models.MaintenanceTask{
		MachineID:        m.ID,
		TaskName:         prediction.TaskName,
		DueDate:          prediction.NextMaintenanceDate,
		Status:           models.StatusPending,
		EstimatedCost:    prediction.EstimatedCost,
		UrgencyLevel:     prediction.UrgencyLevel,
		NotificationSent: false,
	})
	if err != nil {
		return nil, s.fail(ActionPredictForMachine, err, storeFailedMessage)
	}
	s.recordTask(ctx, TaskSourcePrediction)

	s.logger.Info("Prediction stored as task", map[string]interface{}{
		"machineId":    m.ID,
		"taskId":       task.ID,
		"urgencyLevel": task.UrgencyLevel,
	})
	return &MachinePrediction{Prediction: prediction, Task: task}, nil
}

// RecommendForMachine runs the recommendations flow on a stored machine. raw may be
// empty or carry {"location": "..."}.
func (s *Service) RecommendForMachine(ctx context.Context, machineID string, raw json.RawMessage) (out *maintenancerecommendations.Output, err error) {
	done := s.observe(ActionRecommendForMachine)
	defer func() { done(err) }()

	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	in, err := decode[machineRecommendationsInput](schemas.MachineRecommendations, raw, "AI recommendations")
	if err != nil {
		return nil, s.fail(ActionRecommendForMachine, err, recommendFailedMessage)
	}

	m, err := s.machines.FindMachine(ctx, machineID)
	if err != nil {
		return nil, s.fail(ActionRecommendForMachine, err, recommendFailedMessage)
	}

	out, err = s.flows.Recommend.Execute(ctx, maintenancerecommendations.FromMachine(m, in.Location))
	if err != nil {
		return nil, s.fail(ActionRecommendForMachine, err, recommendFailedMessage)
	}
	return out, nil
}

func (s *Service) recordTask(ctx context.Context, source string) {
	if s.recorder != nil {
		s.recorder.RecordTaskCreated(ctx, source)
	}
}

func dateViolations(fields map[string]string) []string {
	var violations []string
	for _, name := range sortedKeys(fields) {
		if _, err := models.ParseDate(fields[name]); err != nil {
			violations = append(violations, name+": must be a date (YYYY-MM-DD)")
		}
	}
	return violations
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

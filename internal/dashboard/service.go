// internal/dashboard/service.go
package dashboard

import (
	"context"
	"sort"
	"time"

	apperrors "homewise/internal/common/errors"
	"homewise/internal/common/logger"
	"homewise/internal/models"
	"homewise/internal/repository"
)

const (
	upcomingLimit      = 5
	attentionLimit     = 3
	warrantyWindowDays = 90
	unknownMachineName = "N/A"
)

type UpcomingTask struct {
	models.MaintenanceTask
	MachineName string `json:"machineName"`
}

type ExpiringWarranty struct {
	MachineID      string `json:"machineId"`
	MachineName    string `json:"machineName"`
	WarrantyExpiry string `json:"warrantyExpiry"`
	DaysLeft       int    `json:"daysLeft"`
}

// MonthlyCost sums maintenance history costs for one YYYY-MM month.
type MonthlyCost struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

type Summary struct {
	UpcomingTasks    []UpcomingTask     `json:"upcomingTasks"`
	NeedingAttention []models.Machine   `json:"machinesNeedingAttention"`
	ExpiringWarranty []ExpiringWarranty `json:"expiringWarranties"`
	CostByMonth      []MonthlyCost      `json:"costByMonth"`
	TotalMachines    int                `json:"totalMachines"`
	PendingTaskCount int                `json:"pendingTaskCount"`
	GeneratedAt      string             `json:"generatedAt"`
}

type Service struct {
	machines repository.MachineRepository
	tasks    repository.TaskRepository
	now      func() time.Time
	logger   logger.Logger
}

func NewService(machines repository.MachineRepository, tasks repository.TaskRepository, log logger.Logger) *Service {
	return &Service{
		machines: machines,
		tasks:    tasks,
		now:      time.Now,
		logger:   log.With(map[string]interface{}{"component": "dashboard"}),
	}
}

// WithClock replaces the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	machines, tasks, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	names := make(map[string]string, len(machines))
	for _, m := range machines {
		names[m.ID] = m.Name
	}

	summary := &Summary{
		UpcomingTasks:    []UpcomingTask{},
		NeedingAttention: []models.Machine{},
		ExpiringWarranty: []ExpiringWarranty{},
		CostByMonth:      costByMonth(machines),
		TotalMachines:    len(machines),
		GeneratedAt:      now.UTC().Format(time.RFC3339),
	}

	urgent := make(map[string]bool)
	for _, t := range tasks {
		if t.UrgencyLevel == models.UrgencyHigh {
			urgent[t.MachineID] = true
		}
		if t.Status != models.StatusPending {
			continue
		}
		summary.PendingTaskCount++
		if len(summary.UpcomingTasks) < upcomingLimit {
			name, ok := names[t.MachineID]
			if !ok {
				name = unknownMachineName
			}
			summary.UpcomingTasks = append(summary.UpcomingTasks, UpcomingTask{MaintenanceTask: t, MachineName: name})
		}
	}

	for _, m := range machines {
		if urgent[m.ID] && len(summary.NeedingAttention) < attentionLimit {
			summary.NeedingAttention = append(summary.NeedingAttention, m)
		}

		daysLeft, err := models.DaysUntil(m.WarrantyExpiry, now)
		if err != nil {
			s.logger.Warn("Skipping machine with unreadable warranty date", map[string]interface{}{
				"machineId":      m.ID,
				"warrantyExpiry": m.WarrantyExpiry,
			})
			continue
		}
		if daysLeft > 0 && daysLeft <= warrantyWindowDays {
			summary.ExpiringWarranty = append(summary.ExpiringWarranty, ExpiringWarranty{
				MachineID:      m.ID,
				MachineName:    m.Name,
				WarrantyExpiry: m.WarrantyExpiry,
				DaysLeft:       daysLeft,
			})
		}
	}

	s.logger.Debug("Dashboard summary built", map[string]interface{}{
		"machines":   summary.TotalMachines,
		"pending":    summary.PendingTaskCount,
		"warranties": len(summary.ExpiringWarranty),
	})
	return summary, nil
}

// UpcomingReminders returns pending tasks due after today, earliest first.
func (s *Service) UpcomingReminders(ctx context.Context) ([]UpcomingTask, error) {
	machines, tasks, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	names := make(map[string]string, len(machines))
	for _, m := range machines {
		names[m.ID] = m.Name
	}

	type dated struct {
		task UpcomingTask
		due  time.Time
	}
	var upcoming []dated
	for _, t := range tasks {
		if t.Status != models.StatusPending {
			continue
		}
		days, err := models.DaysUntil(t.DueDate, now)
		if err != nil || days <= 0 {
			continue
		}
		due, _ := models.ParseDate(t.DueDate)
		name, ok := names[t.MachineID]
		if !ok {
			name = unknownMachineName
		}
		upcoming = append(upcoming, dated{task: UpcomingTask{MaintenanceTask: t, MachineName: name}, due: due})
	}
	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].due.Before(upcoming[j].due) })

	out := make([]UpcomingTask, len(upcoming))
	for i, u := range upcoming {
		out[i] = u.task
	}
	return out, nil
}

func (s *Service) load(ctx context.Context) ([]models.Machine, []models.MaintenanceTask, error) {
	machines, err := s.machines.ListMachines(ctx)
	if err != nil {
		return nil, nil, s.wrap(err)
	}
	tasks, err := s.tasks.ListTasks(ctx)
	if err != nil {
		return nil, nil, s.wrap(err)
	}
	return machines, tasks, nil
}

func (s *Service) wrap(err error) error {
	if apperrors.AsStandard(err) != nil {
		return err
	}
	return apperrors.NewInternalError(err)
}

func costByMonth(machines []models.Machine) []MonthlyCost {
	totals := make(map[string]float64)
	for _, m := range machines {
		for _, r := range m.MaintenanceHistory {
			d, err := models.ParseDate(r.Date)
			if err != nil {
				continue
			}
			totals[d.Format("2006-01")] += r.Cost
		}
	}
	months := make([]string, 0, len(totals))
	for month := range totals {
		months = append(months, month)
	}
	sort.Strings(months)

	out := make([]MonthlyCost, len(months))
	for i, month := range months {
		out[i] = MonthlyCost{Month: month, Total: totals[month]}
	}
	return out
}

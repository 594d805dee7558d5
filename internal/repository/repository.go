// Package repository stores machines and maintenance tasks behind interfaces so the
// actions, dashboard and notifier never depend on a concrete datastore.
package repository

import (
	"context"

	"homewise/internal/models"
)

type MachineRepository interface {
	ListMachines(ctx context.Context) ([]models.Machine, error)
	FindMachine(ctx context.Context, id string) (*models.Machine, error)
	InsertMachine(ctx context.Context, m *models.Machine) (*models.Machine, error)
}

type TaskRepository interface {
	ListTasks(ctx context.Context) ([]models.MaintenanceTask, error)
	FindTask(ctx context.Context, id string) (*models.MaintenanceTask, error)
	InsertTask(ctx context.Context, t *models.MaintenanceTask) (*models.MaintenanceTask, error)
	MarkNotified(ctx context.Context, id string) error
}

// Store is a backend holding both collections.
type Store interface {
	MachineRepository
	TaskRepository
	Ping(ctx context.Context) error
}

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// internal/repository/memory.go
package repository

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	apperrors "homewise/internal/common/errors"
	"homewise/internal/models"
)

// MemoryStore keeps records in insertion order. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	machines []models.Machine
	tasks    []models.MaintenanceTask
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Seed is the on-disk shape of initial records.
type Seed struct {
	Machines []models.Machine         `yaml:"machines"`
	Tasks    []models.MaintenanceTask `yaml:"tasks"`
}

// LoadSeed reads a YAML seed file into the store.
func (s *MemoryStore) LoadSeed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file %s: %w", path, err)
	}

	ctx := context.Background()
	for i := range seed.Machines {
		if _, err := s.InsertMachine(ctx, &seed.Machines[i]); err != nil {
			return err
		}
	}
	for i := range seed.Tasks {
		if _, err := s.InsertTask(ctx, &seed.Tasks[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) ListMachines(ctx context.Context) ([]models.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Machine, len(s.machines))
	for i := range s.machines {
		out[i] = cloneMachine(s.machines[i])
	}
	return out, nil
}

func (s *MemoryStore) FindMachine(ctx context.Context, id string) (*models.Machine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.machines {
		if s.machines[i].ID == id {
			m := cloneMachine(s.machines[i])
			return &m, nil
		}
	}
	return nil, apperrors.NewNotFoundError("Machine", id)
}

// InsertMachine stores a copy of m, assigning ids where missing.
func (s *MemoryStore) InsertMachine(ctx context.Context, m *models.Machine) (*models.Machine, error) {
	stored := cloneMachine(*m)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	for i := range stored.MaintenanceHistory {
		if stored.MaintenanceHistory[i].ID == "" {
			stored.MaintenanceHistory[i].ID = uuid.New().String()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.machines {
		if existing.ID == stored.ID {
			return nil, apperrors.NewDatabaseInsertFailedError(fmt.Errorf("machine %s already exists", stored.ID))
		}
	}
	s.machines = append(s.machines, stored)

	out := cloneMachine(stored)
	return &out, nil
}

func (s *MemoryStore) ListTasks(ctx context.Context) ([]models.MaintenanceTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.MaintenanceTask, len(s.tasks))
	copy(out, s.tasks)
	return out, nil
}

func (s *MemoryStore) FindTask(ctx context.Context, id string) (*models.MaintenanceTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.ID == id {
			found := t
			return &found, nil
		}
	}
	return nil, apperrors.NewNotFoundError("Task", id)
}

func (s *MemoryStore) InsertTask(ctx context.Context, t *models.MaintenanceTask) (*models.MaintenanceTask, error) {
	stored := *t
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Status == "" {
		stored.Status = models.StatusPending
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tasks {
		if existing.ID == stored.ID {
			return nil, apperrors.NewDatabaseInsertFailedError(fmt.Errorf("task %s already exists", stored.ID))
		}
	}
	s.tasks = append(s.tasks, stored)

	out := stored
	return &out, nil
}

func (s *MemoryStore) MarkNotified(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].NotificationSent = true
			return nil
		}
	}
	return apperrors.NewNotFoundError("Task", id)
}

func cloneMachine(m models.Machine) models.Machine {
	if m.MaintenanceHistory != nil {
		history := make([]models.MaintenanceRecord, len(m.MaintenanceHistory))
		copy(history, m.MaintenanceHistory)
		m.MaintenanceHistory = history
	}
	return m
}

// internal/repository/postgres.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	apperrors "homewise/internal/common/errors"
	"homewise/internal/common/logger"
	"homewise/internal/models"
)

// Schema creates the tables PostgresStore reads and writes.
const Schema = `
CREATE TABLE IF NOT EXISTS machines (
	id                  TEXT PRIMARY KEY,
	user_id             TEXT NOT NULL DEFAULT '',
	name                TEXT NOT NULL,
	category            TEXT NOT NULL,
	brand               TEXT NOT NULL,
	model               TEXT NOT NULL,
	serial_number       TEXT,
	purchase_date       DATE NOT NULL,
	warranty_expiry     DATE NOT NULL,
	last_maintenance    DATE NOT NULL,
	usage_frequency     TEXT NOT NULL,
	maintenance_history JSONB NOT NULL DEFAULT '[]',
	image_url           TEXT NOT NULL DEFAULT '',
	image_hint          TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS maintenance_tasks (
	id                TEXT PRIMARY KEY,
	machine_id        TEXT NOT NULL REFERENCES machines(id),
	task_name         TEXT NOT NULL,
	due_date          DATE NOT NULL,
	status            TEXT NOT NULL,
	estimated_cost    NUMERIC(12,2) NOT NULL DEFAULT 0,
	urgency_level     TEXT NOT NULL,
	notification_sent BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const (
	machineColumns = `id, user_id, name, category, brand, model, serial_number,
		to_char(purchase_date, 'YYYY-MM-DD'), to_char(warranty_expiry, 'YYYY-MM-DD'),
		to_char(last_maintenance, 'YYYY-MM-DD'), usage_frequency, maintenance_history, image_url, image_hint`

	taskColumns = `id, machine_id, task_name, to_char(due_date, 'YYYY-MM-DD'), status,
		estimated_cost, urgency_level, notification_sent`
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// PostgresStore persists machines and tasks with lib/pq. History is a JSONB column.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.With(map[string]interface{}{"repository": BackendPostgres}),
	}
}

// Migrate creates missing tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) ListMachines(ctx context.Context) ([]models.Machine, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+machineColumns+` FROM machines ORDER BY created_at, id`)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list_machines", err)
	}
	defer rows.Close()

	var machines []models.Machine
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("list_machines", err)
		}
		machines = append(machines, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list_machines", err)
	}
	return machines, nil
}

func (s *PostgresStore) FindMachine(ctx context.Context, id string) (*models.Machine, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+machineColumns+` FROM machines WHERE id = $1`, id)
	m, err := scanMachine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Machine", id)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("find_machine", err)
	}
	return m, nil
}

func (s *PostgresStore) InsertMachine(ctx context.Context, m *models.Machine) (*models.Machine, error) {
	stored := cloneMachine(*m)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.MaintenanceHistory == nil {
		stored.MaintenanceHistory = []models.MaintenanceRecord{}
	}
	for i := range stored.MaintenanceHistory {
		if stored.MaintenanceHistory[i].ID == "" {
			stored.MaintenanceHistory[i].ID = uuid.New().String()
		}
	}

	historyJSON, err := json.Marshal(stored.MaintenanceHistory)
	if err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(fmt.Errorf("marshal history: %w", err))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO machines (
			id, user_id, name, category, brand, model, serial_number,
			purchase_date, warranty_expiry, last_maintenance, usage_frequency,
			maintenance_history, image_url, image_hint
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		stored.ID,
		stored.UserID,
		stored.Name,
		string(stored.Category),
		stored.Brand,
		stored.Model,
		nullString(stored.SerialNumber),
		stored.PurchaseDate,
		stored.WarrantyExpiry,
		stored.LastMaintenance,
		stored.UsageFrequency,
		historyJSON,
		stored.ImageURL,
		stored.ImageHint,
	)
	if err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	s.logger.Info("Machine stored", map[string]interface{}{"machineId": stored.ID})
	return &stored, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context) ([]models.MaintenanceTask, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM maintenance_tasks ORDER BY created_at, id`)
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list_tasks", err)
	}
	defer rows.Close()

	var tasks []models.MaintenanceTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, apperrors.NewDatabaseQueryFailedError("list_tasks", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("list_tasks", err)
	}
	return tasks, nil
}

func (s *PostgresStore) FindTask(ctx context.Context, id string) (*models.MaintenanceTask, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM maintenance_tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Task", id)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseQueryFailedError("find_task", err)
	}
	return t, nil
}

func (s *PostgresStore) InsertTask(ctx context.Context, t *models.MaintenanceTask) (*models.MaintenanceTask, error) {
	stored := *t
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Status == "" {
		stored.Status = models.StatusPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance_tasks (
			id, machine_id, task_name, due_date, status,
			estimated_cost, urgency_level, notification_sent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		stored.ID,
		stored.MachineID,
		stored.TaskName,
		stored.DueDate,
		string(stored.Status),
		stored.EstimatedCost,
		string(stored.UrgencyLevel),
		stored.NotificationSent,
	)
	if err != nil {
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}

	s.logger.Info("Task stored", map[string]interface{}{"taskId": stored.ID, "machineId": stored.MachineID})
	return &stored, nil
}

func (s *PostgresStore) MarkNotified(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE maintenance_tasks SET notification_sent = TRUE WHERE id = $1`, id)
	if err != nil {
		return apperrors.NewDatabaseQueryFailedError("mark_notified", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewDatabaseQueryFailedError("mark_notified", err)
	}
	if n == 0 {
		return apperrors.NewNotFoundError("Task", id)
	}
	return nil
}

func scanMachine(row rowScanner) (*models.Machine, error) {
	var (
		m           models.Machine
		category    string
		serial      sql.NullString
		historyJSON []byte
	)
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.Name,
		&category,
		&m.Brand,
		&m.Model,
		&serial,
		&m.PurchaseDate,
		&m.WarrantyExpiry,
		&m.LastMaintenance,
		&m.UsageFrequency,
		&historyJSON,
		&m.ImageURL,
		&m.ImageHint,
	)
	if err != nil {
		return nil, err
	}

	m.Category = models.MachineCategory(category)
	if serial.Valid {
		m.SerialNumber = &serial.String
	}
	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &m.MaintenanceHistory); err != nil {
			return nil, fmt.Errorf("decode maintenance history of %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

func scanTask(row rowScanner) (*models.MaintenanceTask, error) {
	var (
		t       models.MaintenanceTask
		status  string
		urgency string
	)
	err := row.Scan(
		&t.ID,
		&t.MachineID,
		&t.TaskName,
		&t.DueDate,
		&status,
		&t.EstimatedCost,
		&urgency,
		&t.NotificationSent,
	)
	if err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	t.UrgencyLevel = models.Urgency(urgency)
	return &t, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

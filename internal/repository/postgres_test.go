// internal/repository/postgres_test.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "homewise/internal/common/errors"
	"homewise/internal/common/logger"
	"homewise/internal/models"
)

var machineRowColumns = []string{
	"id", "user_id", "name", "category", "brand", "model", "serial_number",
	"purchase_date", "warranty_expiry", "last_maintenance", "usage_frequency",
	"maintenance_history", "image_url", "image_hint",
}

var taskRowColumns = []string{
	"id", "machine_id", "task_name", "due_date", "status", "estimated_cost", "urgency_level", "notification_sent",
}

func newTestPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresStore(db, logger.NewTestLogger(t)), mock, func() { db.Close() }
}

func TestPostgresStore_FindMachine(t *testing.T) {
	store, mock, closeDB := newTestPostgresStore(t)
	defer closeDB()

	rows := sqlmock.NewRows(machineRowColumns).AddRow(
		"m1", "u1", "Samsung Fridge", "Kitchen Appliance", "Samsung", "RF28R7551SR", "DEF67890",
		"2021-01-20", "2026-01-20", "2024-01-15", "Daily",
		[]byte(`[{"id":"hist3","task":"Water Filter Replacement","date":"2024-01-15","cost":50}]`),
		"", "kitchen appliance",
	)
	mock.ExpectQuery(`SELECT .+ FROM machines WHERE id = \$1`).
		WithArgs("m1").
		WillReturnRows(rows)

	m, err := store.FindMachine(context.Background(), "m1")

	require.NoError(t, err)
	assert.Equal(t, models.CategoryKitchenAppliance, m.Category)
	require.NotNil(t, m.SerialNumber)
	assert.Equal(t, "DEF67890", *m.SerialNumber)
	require.Len(t, m.MaintenanceHistory, 1)
	assert.Equal(t, "Water Filter Replacement", m.MaintenanceHistory[0].Task)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindMachine_NotFound(t *testing.T) {
	store, mock, closeDB := newTestPostgresStore(t)
	defer closeDB()

	mock.ExpectQuery(`SELECT .+ FROM machines WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.FindMachine(context.Background(), "missing")

	assert.True(t, errors.Is(err, apperrors.ErrResourceNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListMachines_QueryError(t *testing.T) {
	store, mock, closeDB := newTestPostgresStore(t)
	defer closeDB()

	mock.ExpectQuery(`SELECT .+ FROM machines ORDER BY`).WillReturnError(errors.New("connection refused"))

	_, err := store.ListMachines(context.Background())

	assert.Equal(t, apperrors.ErrCodeDatabaseQueryFailed, apperrors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertMachine(t *testing.T) {
	store, mock, closeDB := newTestPostgresStore(t)
	defer closeDB()

	mock.ExpectExec(`INSERT INTO machines`).
		WithArgs(
			sqlmock.AnyArg(), // id
			"userId123",
			"Toyota Corolla",
			"Vehicle",
			"Toyota",
			"Corolla 2020",
			"ABC12345",
			"2020-06-15",
			"2025-06-15",
			"2024-08-01",
			"Daily",
			sqlmock.AnyArg(), // history JSON
			"",
			"",
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	stored, err := store.InsertMachine(context.Background(), createTestMachine())

	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.Len(t, stored.MaintenanceHistory, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListTasks(t *testing.T) {
	store, mock, closeDB := newTestPostgresStore(t)
	defer closeDB()

	rows := sqlmock.NewRows(taskRowColumns).
		AddRow("t1", "m1", "Oil Change", "2024-12-01", "Pending", 70.0, "Medium", false).
		AddRow("t2", "m1", "Brake Inspection", "2024-10-01", "Pending", 150.0, "High", true)
	mock.ExpectQuery(`SELECT .+ FROM maintenance_tasks ORDER BY`).WillReturnRows(rows)

	tasks, err := store.ListTasks(context.Background())

	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, models.UrgencyHigh, tasks[1].UrgencyLevel)
	assert.True(t, tasks[1].NotificationSent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertTask(t *testing.T) {
	store, mock, closeDB := newTestPostgresStore(t)
	defer closeDB()

	mock.ExpectExec(`INSERT INTO maintenance_tasks`).
		WithArgs(sqlmock.AnyArg(), "m1", "Brake Inspection", "2024-10-01", "Pending", 150.0, "High", false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	task, err := store.InsertTask(context.Background(), createTestTask("m1"))

	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, task.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkNotified(t *testing.T) {
	store, mock, closeDB := newTestPostgresStore(t)
	defer closeDB()

	mock.ExpectExec(`UPDATE maintenance_tasks SET notification_sent = TRUE WHERE id = \$1`).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE maintenance_tasks SET notification_sent = TRUE WHERE id = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.MarkNotified(context.Background(), "t1"))
	err := store.MarkNotified(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperrors.ErrResourceNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	store, mock, closeDB := newTestPostgresStore(t)
	defer closeDB()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS machines`).WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

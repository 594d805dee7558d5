// internal/notifications/dispatcher.go
package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "homewise/internal/common/errors"
	"homewise/internal/common/logger"
	"homewise/internal/common/metrics"
	"homewise/internal/models"
	"homewise/internal/prompt"
	"homewise/internal/repository"
)

const TaskType = "send-reminder"

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

// reminder is the data the reminder templates render.
type reminder struct {
	TaskName      string
	MachineName   string
	DueDate       string
	UrgencyLevel  models.Urgency
	EstimatedCost float64
	DaysLeft      int
}

// Dispatcher sends one reminder per pending task once it falls inside the lead window.
type Dispatcher struct {
	config   *Config
	machines repository.MachineRepository
	tasks    repository.TaskRepository
	renderer *prompt.Renderer
	email    EmailSender
	sms      SMSSender
	logger   logger.Logger
}

// NewDispatcher builds a dispatcher. email and sms may be nil when the channel is off.
func NewDispatcher(config *Config, machines repository.MachineRepository, tasks repository.TaskRepository, renderer *prompt.Renderer, email EmailSender, sms SMSSender, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		config:   config,
		machines: machines,
		tasks:    tasks,
		renderer: renderer,
		email:    email,
		sms:      sms,
		logger:   log.With(map[string]interface{}{"taskType": TaskType}),
	}
}

// Run dispatches on every tick until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	interval := d.config.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("Reminder dispatcher started", map[string]interface{}{
		"interval": interval.String(),
		"leadDays": d.config.LeadDays,
	})
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Reminder dispatcher stopped", nil)
			return
		case now := <-ticker.C:
			d.tick(ctx, now)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context, now time.Time) {
	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	sent, err := d.Dispatch(ctx, now)
	if err != nil {
		d.logger.Error("Reminder dispatch failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if len(sent) > 0 {
		d.logger.Info("Reminder dispatch finished", map[string]interface{}{"notifications": len(sent)})
	}
}

// Dispatch sends reminders for pending, not yet notified tasks due within LeadDays of
// now (overdue ones included). Every task gets an email; High urgency tasks also get
// an SMS. A task is marked notified once any channel delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, now time.Time) ([]models.Notification, error) {
	tasks, err := d.tasks.ListTasks(ctx)
	if err != nil {
		return nil, err
	}

	var out []models.Notification
	for _, task := range tasks {
		if task.Status != models.StatusPending || task.NotificationSent {
			continue
		}
		daysLeft, err := models.DaysUntil(task.DueDate, now)
		if err != nil {
			d.logger.Warn("Skipping task with unreadable due date", map[string]interface{}{
				"taskId":  task.ID,
				"dueDate": task.DueDate,
			})
			continue
		}
		if daysLeft > d.config.LeadDays {
			continue
		}

		results := d.notify(ctx, task, daysLeft, now)
		out = append(out, results...)

		if !delivered(results) {
			continue
		}
		if err := d.tasks.MarkNotified(ctx, task.ID); err != nil {
			d.logger.Error("Failed to mark task notified", map[string]interface{}{
				"taskId": task.ID,
				"error":  err.Error(),
			})
		}
	}
	return out, nil
}

func (d *Dispatcher) notify(ctx context.Context, task models.MaintenanceTask, daysLeft int, now time.Time) []models.Notification {
	data := reminder{
		TaskName:      task.TaskName,
		MachineName:   d.machineName(ctx, task.MachineID),
		DueDate:       task.DueDate,
		UrgencyLevel:  task.UrgencyLevel,
		EstimatedCost: task.EstimatedCost,
		DaysLeft:      daysLeft,
	}

	results := []models.Notification{
		d.sendEmail(ctx, task, data, now),
	}
	if task.UrgencyLevel == models.UrgencyHigh {
		results = append(results, d.sendSMS(ctx, task, data, now))
	}
	return results
}

func (d *Dispatcher) sendEmail(ctx context.Context, task models.MaintenanceTask, data reminder, now time.Time) models.Notification {
	n := newNotification(task, models.ChannelEmail, now)
	if !d.config.EmailEnabled || d.email == nil || d.config.ToEmail == "" {
		return d.record(n, models.NotificationDisabled, "", nil)
	}

	subject, err := d.renderer.Render(prompt.ReminderSubject, data)
	if err != nil {
		return d.record(n, models.NotificationFailed, "", err)
	}
	body, err := d.renderer.Render(prompt.ReminderEmail, data)
	if err != nil {
		return d.record(n, models.NotificationFailed, "", err)
	}

	id, err := d.email.SendEmail(ctx, d.config.ToEmail, strings.TrimSpace(subject), body)
	if err != nil {
		return d.record(n, models.NotificationFailed, "", apperrors.NewNotificationSendFailedError(models.ChannelEmail, err))
	}
	return d.record(n, models.NotificationSent, id, nil)
}

func (d *Dispatcher) sendSMS(ctx context.Context, task models.MaintenanceTask, data reminder, now time.Time) models.Notification {
	n := newNotification(task, models.ChannelSMS, now)
	if !d.config.SMSEnabled || d.sms == nil || d.config.ToPhone == "" {
		return d.record(n, models.NotificationDisabled, "", nil)
	}

	message, err := d.renderer.Render(prompt.ReminderSMS, data)
	if err != nil {
		return d.record(n, models.NotificationFailed, "", err)
	}

	id, err := d.sms.SendSMS(ctx, d.config.ToPhone, strings.TrimSpace(message))
	if err != nil {
		return d.record(n, models.NotificationFailed, "", apperrors.NewNotificationSendFailedError(models.ChannelSMS, err))
	}
	return d.record(n, models.NotificationSent, id, nil)
}

func (d *Dispatcher) record(n models.Notification, status, messageID string, err error) models.Notification {
	n.Status = status
	n.MessageID = messageID
	fields := map[string]interface{}{
		"taskId":  n.TaskID,
		"channel": n.Channel,
		"status":  status,
	}
	if err != nil {
		n.Error = describe(err)
		fields["error"] = err.Error()
		if stdErr := apperrors.AsStandard(err); stdErr != nil && stdErr.Cause() != nil {
			fields["cause"] = stdErr.Cause().Error()
		}
		d.logger.Error("Reminder not delivered", fields)
	} else {
		d.logger.Debug("Reminder processed", fields)
	}
	metrics.NotificationsSent.WithLabelValues(n.Channel, status).Inc()
	return n
}

// describe keeps the provider's reason next to the user-facing message.
func describe(err error) string {
	stdErr := apperrors.AsStandard(err)
	if stdErr == nil || stdErr.Cause() == nil {
		return err.Error()
	}
	return fmt.Sprintf("%s: %v", stdErr.Message, stdErr.Cause())
}

func (d *Dispatcher) machineName(ctx context.Context, id string) string {
	m, err := d.machines.FindMachine(ctx, id)
	if err != nil {
		return "your machine"
	}
	return m.Name
}

func newNotification(task models.MaintenanceTask, channel string, now time.Time) models.Notification {
	return models.Notification{
		ID:        uuid.New().String(),
		TaskID:    task.ID,
		MachineID: task.MachineID,
		Channel:   channel,
		SentAt:    now.UTC().Format(time.RFC3339),
	}
}

func delivered(results []models.Notification) bool {
	for _, n := range results {
		if n.Status == models.NotificationSent {
			return true
		}
	}
	return false
}

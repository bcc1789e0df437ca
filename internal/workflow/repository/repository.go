// Package repository provides PostgreSQL persistence for workflow tasks,
// scheduled notifications, rep assignments, and routing settings.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("record not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Task statuses.
const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
)

// Notification statuses.
const (
	NotificationStatusScheduled = "scheduled"
	NotificationStatusSent      = "sent"
	NotificationStatusFailed    = "failed"
)

// Task is a follow-up action for the sales team.
type Task struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	TaskType    string
	Title       string
	Description string
	Priority    string
	Status      string
	DueAt       time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateTaskParams struct {
	LeadID      uuid.UUID
	TaskType    string
	Title       string
	Description string
	Priority    string
	DueAt       time.Time
}

func (r *Repository) CreateTask(ctx context.Context, params CreateTaskParams) (Task, error) {
	var task Task
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (lead_id, task_type, title, description, priority, due_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, lead_id, task_type, title, description, priority, status, due_at, created_at, updated_at
	`, params.LeadID, params.TaskType, params.Title, params.Description, params.Priority, params.DueAt).Scan(
		&task.ID, &task.LeadID, &task.TaskType, &task.Title, &task.Description,
		&task.Priority, &task.Status, &task.DueAt, &task.CreatedAt, &task.UpdatedAt,
	)
	return task, err
}

func (r *Repository) ListTasksByLead(ctx context.Context, leadID uuid.UUID) ([]Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, task_type, title, description, priority, status, due_at, created_at, updated_at
		FROM tasks
		WHERE lead_id = $1
		ORDER BY due_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]Task, 0)
	for rows.Next() {
		var task Task
		if err := rows.Scan(
			&task.ID, &task.LeadID, &task.TaskType, &task.Title, &task.Description,
			&task.Priority, &task.Status, &task.DueAt, &task.CreatedAt, &task.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (r *Repository) CompleteTask(ctx context.Context, id uuid.UUID, completedBy *uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET status = $1, completed_by = $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, TaskStatusCompleted, completedBy, id, TaskStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ScheduledNotification is an outbox row for a future email.
type ScheduledNotification struct {
	ID            uuid.UUID
	LeadID        uuid.UUID
	Kind          string
	Recipient     string
	RecipientName string
	Meta          map[string]string
	Status        string
	ScheduledAt   time.Time
	SentAt        *time.Time
	LastError     *string
	Attempts      int
	CreatedAt     time.Time
}

type ScheduleNotificationParams struct {
	LeadID        uuid.UUID
	Kind          string
	Recipient     string
	RecipientName string
	Meta          map[string]string
	ScheduledAt   time.Time
}

func (r *Repository) ScheduleNotification(ctx context.Context, params ScheduleNotificationParams) (ScheduledNotification, error) {
	meta := params.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return ScheduledNotification{}, err
	}

	var notif ScheduledNotification
	var rawMeta []byte
	err = r.pool.QueryRow(ctx, `
		INSERT INTO scheduled_notifications (lead_id, kind, recipient, recipient_name, meta, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, lead_id, kind, recipient, recipient_name, meta, status, scheduled_at, sent_at, last_error, attempts, created_at
	`, params.LeadID, params.Kind, params.Recipient, params.RecipientName, metaJSON, params.ScheduledAt).Scan(
		&notif.ID, &notif.LeadID, &notif.Kind, &notif.Recipient, &notif.RecipientName,
		&rawMeta, &notif.Status, &notif.ScheduledAt, &notif.SentAt, &notif.LastError,
		&notif.Attempts, &notif.CreatedAt,
	)
	if err != nil {
		return ScheduledNotification{}, err
	}
	_ = json.Unmarshal(rawMeta, &notif.Meta)
	return notif, nil
}

// ListDueNotifications returns pending notifications whose scheduled time has
// passed. Selection is by status only; rows are not claimed or locked, so
// concurrent pollers can observe the same row.
func (r *Repository) ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]ScheduledNotification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, kind, recipient, recipient_name, meta, status, scheduled_at, sent_at, last_error, attempts, created_at
		FROM scheduled_notifications
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
		LIMIT $3
	`, NotificationStatusScheduled, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifs := make([]ScheduledNotification, 0)
	for rows.Next() {
		var notif ScheduledNotification
		var rawMeta []byte
		if err := rows.Scan(
			&notif.ID, &notif.LeadID, &notif.Kind, &notif.Recipient, &notif.RecipientName,
			&rawMeta, &notif.Status, &notif.ScheduledAt, &notif.SentAt, &notif.LastError,
			&notif.Attempts, &notif.CreatedAt,
		); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(rawMeta, &notif.Meta)
		notifs = append(notifs, notif)
	}
	return notifs, rows.Err()
}

func (r *Repository) MarkNotificationSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE scheduled_notifications
		SET status = $1, sent_at = $2, attempts = attempts + 1
		WHERE id = $3
	`, NotificationStatusSent, sentAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) MarkNotificationFailed(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE scheduled_notifications
		SET status = $1, last_error = $2, attempts = attempts + 1
		WHERE id = $3
	`, NotificationStatusFailed, reason, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetNotification returns a single outbox row.
func (r *Repository) GetNotification(ctx context.Context, id uuid.UUID) (ScheduledNotification, error) {
	var notif ScheduledNotification
	var rawMeta []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, kind, recipient, recipient_name, meta, status, scheduled_at, sent_at, last_error, attempts, created_at
		FROM scheduled_notifications
		WHERE id = $1
	`, id).Scan(
		&notif.ID, &notif.LeadID, &notif.Kind, &notif.Recipient, &notif.RecipientName,
		&rawMeta, &notif.Status, &notif.ScheduledAt, &notif.SentAt, &notif.LastError,
		&notif.Attempts, &notif.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ScheduledNotification{}, ErrNotFound
	}
	if err != nil {
		return ScheduledNotification{}, err
	}
	_ = json.Unmarshal(rawMeta, &notif.Meta)
	return notif, nil
}

// LastAssignedRep returns the rep name of the most recent assignment.
// ok is false when the log is empty.
func (r *Repository) LastAssignedRep(ctx context.Context) (string, bool, error) {
	var rep string
	err := r.pool.QueryRow(ctx, `
		SELECT rep_name FROM lead_assignments
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`).Scan(&rep)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rep, true, nil
}

func (r *Repository) LogAssignment(ctx context.Context, leadID uuid.UUID, repName string, repIndex int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_assignments (lead_id, rep_name, rep_index)
		VALUES ($1, $2, $3)
	`, leadID, repName, repIndex)
	return err
}

// RoutingRules describe how captured leads are matched to sales reps.
// Project-type rules win, then the high-score rep, then the round-robin
// rotation over DefaultReps.
type RoutingRules struct {
	ByProjectType map[string]string `json:"by_project_type"`
	HighScoreRep  string            `json:"high_score_rep"`
	DefaultReps   []string          `json:"default_reps"`
}

type routingSettings struct {
	RoutingRules RoutingRules `json:"routing_rules"`
}

// GetRoutingRules reads the lead routing rules from the settings table.
// Missing settings yield empty rules, not an error.
func (r *Repository) GetRoutingRules(ctx context.Context) (RoutingRules, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT value FROM settings WHERE key = 'lead_routing'
	`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return RoutingRules{}, nil
	}
	if err != nil {
		return RoutingRules{}, err
	}

	var value routingSettings
	if err := json.Unmarshal(raw, &value); err != nil {
		return RoutingRules{}, err
	}
	return value.RoutingRules, nil
}

// SetRoutingRules replaces the lead routing rules.
func (r *Repository) SetRoutingRules(ctx context.Context, rules RoutingRules) error {
	value, err := json.Marshal(routingSettings{RoutingRules: rules})
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ('lead_routing', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, value)
	return err
}

// Stats aggregates workflow activity for the ops dashboard.
type Stats struct {
	PendingTasks           int64
	CompletedTasks         int64
	ScheduledNotifications int64
	SentNotifications      int64
	FailedNotifications    int64
	AssignmentsLast30Days  int64
}

func (r *Repository) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM tasks WHERE status = 'pending'),
			(SELECT count(*) FROM tasks WHERE status = 'completed'),
			(SELECT count(*) FROM scheduled_notifications WHERE status = 'scheduled'),
			(SELECT count(*) FROM scheduled_notifications WHERE status = 'sent'),
			(SELECT count(*) FROM scheduled_notifications WHERE status = 'failed'),
			(SELECT count(*) FROM lead_assignments WHERE created_at > now() - interval '30 days')
	`).Scan(
		&stats.PendingTasks, &stats.CompletedTasks,
		&stats.ScheduledNotifications, &stats.SentNotifications, &stats.FailedNotifications,
		&stats.AssignmentsLast30Days,
	)
	return stats, err
}

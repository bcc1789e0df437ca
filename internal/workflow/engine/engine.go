// Package engine automates what happens after a lead enters the pipeline:
// follow-up tasks for the sales team, a scheduled email nurture sequence,
// and round-robin rep assignment.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"granite_crm_backend/internal/email"
	"granite_crm_backend/internal/workflow/repository"
	"granite_crm_backend/platform/apperr"
	"granite_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Scoring and timeline thresholds for task creation.
const (
	urgentCallScoreThreshold   = 70
	highPriorityScoreThreshold = 50
	highScoreRepThreshold      = 80
	timelineASAP               = "asap"
)

// Task priorities.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// Repository is the persistence surface the engine needs.
type Repository interface {
	CreateTask(ctx context.Context, params repository.CreateTaskParams) (repository.Task, error)
	ScheduleNotification(ctx context.Context, params repository.ScheduleNotificationParams) (repository.ScheduledNotification, error)
	ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]repository.ScheduledNotification, error)
	MarkNotificationSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkNotificationFailed(ctx context.Context, id uuid.UUID, reason string) error
	LastAssignedRep(ctx context.Context) (string, bool, error)
	LogAssignment(ctx context.Context, leadID uuid.UUID, repName string, repIndex int) error
	GetStats(ctx context.Context) (repository.Stats, error)
}

// LeadInfo is the slice of lead data the engine works with.
type LeadInfo struct {
	ID          uuid.UUID
	Name        string
	Email       string
	LeadScore   int
	Timeline    string
	ProjectType string
}

// LeadDirectory reads and updates leads on behalf of the engine.
type LeadDirectory interface {
	GetLeadInfo(ctx context.Context, id uuid.UUID) (LeadInfo, error)
	AssignRep(ctx context.Context, id uuid.UUID, rep string) error
}

// RoutingSource supplies the lead routing rules for assignment.
type RoutingSource interface {
	Rules(ctx context.Context) (repository.RoutingRules, error)
}

// Engine runs the workflow triggers and the notification dispatch loop.
type Engine struct {
	repo    Repository
	leads   LeadDirectory
	routing RoutingSource
	sender  email.Sender
	log     *logger.Logger
	now     func() time.Time
}

func NewEngine(repo Repository, leads LeadDirectory, routing RoutingSource, sender email.Sender, log *logger.Logger) *Engine {
	return &Engine{
		repo:    repo,
		leads:   leads,
		routing: routing,
		sender:  sender,
		log:     log,
		now:     time.Now,
	}
}

// TriggerResult summarizes what a workflow trigger created.
type TriggerResult struct {
	TasksCreated           int    `json:"tasksCreated"`
	NotificationsScheduled int    `json:"notificationsScheduled"`
	AssignedRep            string `json:"assignedRep,omitempty"`
}

// TriggerLeadWorkflow creates the follow-up tasks and nurture emails for a
// freshly captured lead, and assigns the next sales rep.
//
// Task and notification creation are isolated per step: a failed insert is
// logged and counted out, the rest of the workflow still runs.
func (e *Engine) TriggerLeadWorkflow(ctx context.Context, leadID uuid.UUID) (TriggerResult, error) {
	lead, err := e.leads.GetLeadInfo(ctx, leadID)
	if err != nil {
		return TriggerResult{}, apperr.Wrap(apperr.KindNotFound, "lead not found", err)
	}

	now := e.now()
	var result TriggerResult

	// The intake handler sends its own welcome email; both call sites are
	// kept and deliver independently.
	if lead.Email != "" {
		err := e.sender.SendWelcomeEmail(ctx, lead.Email, lead.Name)
		e.log.EmailDispatch(email.KindWelcome, lead.Email, err)
	}

	if lead.LeadScore >= urgentCallScoreThreshold {
		result.TasksCreated += e.createTask(ctx, repository.CreateTaskParams{
			LeadID:      lead.ID,
			TaskType:    "call",
			Title:       fmt.Sprintf("URGENT: Call new lead - %s", lead.Name),
			Description: fmt.Sprintf("High-score lead (%d). Call within the hour.", lead.LeadScore),
			Priority:    PriorityUrgent,
			DueAt:       now.Add(1 * time.Hour),
		})
	}

	consultationPriority := PriorityMedium
	if lead.LeadScore >= highPriorityScoreThreshold {
		consultationPriority = PriorityHigh
	}
	result.TasksCreated += e.createTask(ctx, repository.CreateTaskParams{
		LeadID:      lead.ID,
		TaskType:    "consultation",
		Title:       fmt.Sprintf("Schedule consultation - %s", lead.Name),
		Description: "Reach out to schedule the free design consultation.",
		Priority:    consultationPriority,
		DueAt:       now.Add(24 * time.Hour),
	})

	if lead.Timeline == timelineASAP {
		result.TasksCreated += e.createTask(ctx, repository.CreateTaskParams{
			LeadID:      lead.ID,
			TaskType:    "quote",
			Title:       fmt.Sprintf("PRIORITY: Quote preparation - %s", lead.Name),
			Description: "Customer wants to start immediately. Prepare a quote.",
			Priority:    PriorityUrgent,
			DueAt:       now.Add(12 * time.Hour),
		})
	}

	sequence := []struct {
		kind  string
		delay time.Duration
	}{
		{email.KindConsultation, 24 * time.Hour},
		{email.KindFollowUp, 72 * time.Hour},
		{email.KindOffer, 168 * time.Hour},
	}
	for _, step := range sequence {
		result.NotificationsScheduled += e.scheduleNotification(ctx, repository.ScheduleNotificationParams{
			LeadID:        lead.ID,
			Kind:          step.kind,
			Recipient:     lead.Email,
			RecipientName: lead.Name,
			ScheduledAt:   now.Add(step.delay),
		})
	}

	result.AssignedRep = e.assignRep(ctx, lead)

	e.log.WorkflowEvent("lead_workflow_triggered", lead.ID.String(),
		slog.Int("tasks", result.TasksCreated),
		slog.Int("notifications", result.NotificationsScheduled),
		slog.String("assigned_rep", result.AssignedRep),
	)
	return result, nil
}

// EstimateRef identifies an estimate to the workflow engine.
type EstimateRef struct {
	Number     string
	URL        string
	TotalCents int64
}

// ContractRef identifies a contract to the workflow engine.
type ContractRef struct {
	Number     string
	URL        string
	TotalCents int64
}

// TriggerEstimateWorkflow sends the estimate to the client, then schedules
// the follow-up: one sales task plus two reminder emails. Unlike the lead
// workflow there is no per-step isolation; the first failure ends the run.
func (e *Engine) TriggerEstimateWorkflow(ctx context.Context, leadID uuid.UUID, est EstimateRef) (TriggerResult, error) {
	lead, err := e.leads.GetLeadInfo(ctx, leadID)
	if err != nil {
		return TriggerResult{}, apperr.Wrap(apperr.KindNotFound, "lead not found", err)
	}

	now := e.now()
	var result TriggerResult

	if lead.Email != "" {
		if err := e.sender.SendEstimateEmail(ctx, lead.Email, lead.Name, est.Number, est.URL, est.TotalCents); err != nil {
			e.log.EmailDispatch("estimate", lead.Email, err)
			return result, apperr.Wrap(apperr.KindInternal, "failed to send estimate email", err)
		}
		e.log.EmailDispatch("estimate", lead.Email, nil)
	}

	if _, err := e.repo.CreateTask(ctx, repository.CreateTaskParams{
		LeadID:      lead.ID,
		TaskType:    "follow_up_estimate",
		Title:       fmt.Sprintf("Follow up on estimate - %s", lead.Name),
		Description: fmt.Sprintf("Check whether the client has questions about estimate %s.", est.Number),
		Priority:    PriorityMedium,
		DueAt:       now.Add(3 * 24 * time.Hour),
	}); err != nil {
		return result, apperr.Wrap(apperr.KindInternal, "failed to create estimate follow-up task", err)
	}
	result.TasksCreated++

	meta := map[string]string{"estimateNumber": est.Number, "estimateURL": est.URL}
	for _, delay := range []time.Duration{3 * 24 * time.Hour, 7 * 24 * time.Hour} {
		if _, err := e.repo.ScheduleNotification(ctx, repository.ScheduleNotificationParams{
			LeadID:        lead.ID,
			Kind:          email.KindEstimateReminder,
			Recipient:     lead.Email,
			RecipientName: lead.Name,
			Meta:          meta,
			ScheduledAt:   now.Add(delay),
		}); err != nil {
			return result, apperr.Wrap(apperr.KindInternal, "failed to schedule estimate reminder", err)
		}
		result.NotificationsScheduled++
	}

	e.log.WorkflowEvent("estimate_workflow_triggered", lead.ID.String(),
		slog.String("estimate_number", est.Number),
	)
	return result, nil
}

// TriggerContractWorkflow sends the signed-contract confirmation to the
// client and creates the production kickoff tasks. The signing link itself
// goes out when the contract is sent; this confirmation uses its own
// template so the client does not get the same email twice. Same top-level
// failure handling as the estimate workflow.
func (e *Engine) TriggerContractWorkflow(ctx context.Context, leadID uuid.UUID, con ContractRef) (TriggerResult, error) {
	lead, err := e.leads.GetLeadInfo(ctx, leadID)
	if err != nil {
		return TriggerResult{}, apperr.Wrap(apperr.KindNotFound, "lead not found", err)
	}

	now := e.now()
	var result TriggerResult

	if lead.Email != "" {
		if err := e.sender.SendContractSignedEmail(ctx, lead.Email, lead.Name, con.Number, con.URL, con.TotalCents); err != nil {
			e.log.EmailDispatch("contract_signed", lead.Email, err)
			return result, apperr.Wrap(apperr.KindInternal, "failed to send contract confirmation email", err)
		}
		e.log.EmailDispatch("contract_signed", lead.Email, nil)
	}

	kickoff := []struct {
		taskType string
		title    string
		priority string
		delay    time.Duration
	}{
		{"site_measurement", "Schedule site measurement", PriorityHigh, 3 * 24 * time.Hour},
		{"order_materials", "Order materials", PriorityMedium, 7 * 24 * time.Hour},
		{"schedule_fabrication", "Schedule fabrication", PriorityMedium, 14 * 24 * time.Hour},
		{"schedule_installation", "Schedule installation", PriorityHigh, 21 * 24 * time.Hour},
	}
	for _, step := range kickoff {
		if _, err := e.repo.CreateTask(ctx, repository.CreateTaskParams{
			LeadID:      lead.ID,
			TaskType:    step.taskType,
			Title:       fmt.Sprintf("%s - %s", step.title, lead.Name),
			Description: fmt.Sprintf("Contract %s.", con.Number),
			Priority:    step.priority,
			DueAt:       now.Add(step.delay),
		}); err != nil {
			return result, apperr.Wrap(apperr.KindInternal, "failed to create kickoff task", err)
		}
		result.TasksCreated++
	}

	e.log.WorkflowEvent("contract_workflow_triggered", lead.ID.String(),
		slog.String("contract_number", con.Number),
		slog.Int("tasks", result.TasksCreated),
	)
	return result, nil
}

// DispatchResult summarizes one ProcessScheduledNotifications run.
type DispatchResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// ProcessScheduledNotifications sends all due scheduled emails. Each record
// is handled independently: one bad address never blocks the rest of the
// batch. Rows are selected by status alone, without claiming, so two
// pollers running at the same instant can both pick up a row.
func (e *Engine) ProcessScheduledNotifications(ctx context.Context) (DispatchResult, error) {
	due, err := e.repo.ListDueNotifications(ctx, e.now(), 100)
	if err != nil {
		return DispatchResult{}, apperr.Wrap(apperr.KindInternal, "failed to load due notifications", err)
	}

	var result DispatchResult
	for _, notif := range due {
		result.Processed++
		if err := e.dispatchOne(ctx, notif); err != nil {
			result.Failed++
			e.log.EmailDispatch(notif.Kind, notif.Recipient, err)
			if markErr := e.repo.MarkNotificationFailed(ctx, notif.ID, err.Error()); markErr != nil {
				e.log.DatabaseError("mark notification failed", markErr)
			}
			continue
		}

		result.Sent++
		e.log.EmailDispatch(notif.Kind, notif.Recipient, nil)
		if markErr := e.repo.MarkNotificationSent(ctx, notif.ID, e.now()); markErr != nil {
			e.log.DatabaseError("mark notification sent", markErr)
		}
	}

	return result, nil
}

// DispatchNotification sends a single outbox row, used by the asynq worker.
func (e *Engine) DispatchNotification(ctx context.Context, notif repository.ScheduledNotification) error {
	if notif.Status != repository.NotificationStatusScheduled {
		return nil
	}
	if err := e.dispatchOne(ctx, notif); err != nil {
		if markErr := e.repo.MarkNotificationFailed(ctx, notif.ID, err.Error()); markErr != nil {
			e.log.DatabaseError("mark notification failed", markErr)
		}
		return err
	}
	return e.repo.MarkNotificationSent(ctx, notif.ID, e.now())
}

func (e *Engine) dispatchOne(ctx context.Context, notif repository.ScheduledNotification) error {
	if notif.Recipient == "" {
		return fmt.Errorf("notification %s has no recipient", notif.ID)
	}

	if notif.Kind == email.KindEstimateReminder {
		return e.sender.SendEstimateReminderEmail(ctx, notif.Recipient, notif.RecipientName,
			notif.Meta["estimateNumber"], notif.Meta["estimateURL"])
	}
	return email.SendByKind(ctx, e.sender, notif.Kind, notif.Recipient, notif.RecipientName)
}

// GetStats returns aggregate workflow counters.
func (e *Engine) GetStats(ctx context.Context) (repository.Stats, error) {
	return e.repo.GetStats(ctx)
}

// assignRep resolves a sales rep for the lead: a project-type rule first,
// then the high-score rep, then the round-robin rotation. Empty rules mean
// no assignment, which is not an error.
func (e *Engine) assignRep(ctx context.Context, lead LeadInfo) string {
	rules, err := e.routing.Rules(ctx)
	if err != nil {
		e.log.Error("failed to load routing rules", "error", err)
		return ""
	}

	rep, repIndex := e.resolveRep(ctx, lead, rules)
	if rep == "" {
		return ""
	}

	if err := e.leads.AssignRep(ctx, lead.ID, rep); err != nil {
		e.log.DatabaseError("assign rep to lead", err)
		return ""
	}
	if err := e.repo.LogAssignment(ctx, lead.ID, rep, repIndex); err != nil {
		e.log.DatabaseError("log assignment", err)
	}

	return rep
}

// resolveRep picks exactly one tier. A matching project-type key or a score
// at the high-score threshold ends the resolution there, even when the
// configured rep is empty; the rotation only serves leads below the
// threshold with no project-type rule.
func (e *Engine) resolveRep(ctx context.Context, lead LeadInfo, rules repository.RoutingRules) (string, int) {
	if rep, ok := rules.ByProjectType[lead.ProjectType]; ok {
		return rep, -1
	}
	if lead.LeadScore >= highScoreRepThreshold {
		return rules.HighScoreRep, -1
	}
	return e.nextInRotation(ctx, rules.DefaultReps)
}

// nextInRotation advances the round-robin over the default reps list. The
// last assigned rep is located by name; a missing log or a rep no longer in
// the list both resolve to index 0, so with an empty assignment log the
// rotation starts at the second rep and the first rep joins on the
// wrap-around. Kept as is because downstream reporting was built around the
// existing order.
func (e *Engine) nextInRotation(ctx context.Context, reps []string) (string, int) {
	if len(reps) == 0 {
		return "", -1
	}

	lastRep, _, err := e.repo.LastAssignedRep(ctx)
	if err != nil {
		e.log.DatabaseError("read last assignment", err)
		return "", -1
	}

	lastIndex := 0
	for i, rep := range reps {
		if rep == lastRep {
			lastIndex = i
			break
		}
	}

	nextIndex := (lastIndex + 1) % len(reps)
	return reps[nextIndex], nextIndex
}

func (e *Engine) createTask(ctx context.Context, params repository.CreateTaskParams) int {
	if _, err := e.repo.CreateTask(ctx, params); err != nil {
		e.log.DatabaseError("create task", err)
		return 0
	}
	return 1
}

func (e *Engine) scheduleNotification(ctx context.Context, params repository.ScheduleNotificationParams) int {
	if _, err := e.repo.ScheduleNotification(ctx, params); err != nil {
		e.log.DatabaseError("schedule notification", err)
		return 0
	}
	return 1
}

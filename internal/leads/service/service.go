// Package service implements lead intake and management.
package service

import (
	"context"

	"granite_crm_backend/internal/email"
	"granite_crm_backend/internal/events"
	"granite_crm_backend/internal/leads/repository"
	"granite_crm_backend/internal/leads/scoring"
	"granite_crm_backend/internal/leads/transport"
	"granite_crm_backend/platform/apperr"
	"granite_crm_backend/platform/logger"
	"granite_crm_backend/platform/phone"

	"github.com/google/uuid"
)

// Defaults applied to public form submissions.
const (
	DefaultLeadSource    = "website"
	StatusNewLead        = "new_lead"
	captureThanksMessage = "Thank you! We'll contact you within 24 hours."
)

// intakeTaskScorePriority is the score at which the intake follow-up task
// becomes high priority.
const intakeTaskScorePriority = 70

// IntakeTaskCreator creates the immediate follow-up task for a new lead.
type IntakeTaskCreator interface {
	CreateIntakeTask(ctx context.Context, leadID uuid.UUID, leadName, priority string) error
}

// LeadsRepository is the persistence surface the service needs.
type LeadsRepository interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	List(ctx context.Context, params repository.ListLeadsParams) ([]repository.Lead, error)
	Update(ctx context.Context, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error)
	UpdateScore(ctx context.Context, id uuid.UUID, score int) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// Service handles lead intake from the public form and admin management.
type Service struct {
	repo     LeadsRepository
	scorer   *scoring.Service
	sender   email.Sender
	tasks    IntakeTaskCreator
	eventBus events.Bus
	log      *logger.Logger
}

func New(repo LeadsRepository, scorer *scoring.Service, sender email.Sender, tasks IntakeTaskCreator, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		scorer:   scorer,
		sender:   sender,
		tasks:    tasks,
		eventBus: eventBus,
		log:      log,
	}
}

// CaptureLead runs the intake pipeline for a public form submission.
//
// Only the database insert is fatal. Scoring falls back internally, the
// welcome email and workflow kickoff are isolated so a failure in one never
// loses the lead or blocks the visitor's response.
func (s *Service) CaptureLead(ctx context.Context, req transport.CaptureLeadRequest, clientIP, userAgent string) (transport.CaptureLeadResponse, error) {
	normalizedPhone := phone.NormalizeE164(req.Phone)

	score := s.scorer.Score(ctx, scoring.Input{
		Email:              req.Email,
		Phone:              normalizedPhone,
		ProjectType:        req.ProjectType,
		BudgetRange:        req.BudgetRange,
		Timeline:           req.Timeline,
		Address:            req.Address,
		ProjectDescription: req.ProjectDescription,
	})

	leadSource := req.LeadSource
	if leadSource == "" {
		leadSource = DefaultLeadSource
	}

	lead, err := s.repo.Create(ctx, repository.CreateLeadParams{
		Name:               req.Name,
		Email:              req.Email,
		Phone:              normalizedPhone,
		Address:            req.Address,
		ProjectType:        req.ProjectType,
		ProjectDescription: req.ProjectDescription,
		BudgetRange:        req.BudgetRange,
		Timeline:           req.Timeline,
		LeadSource:         leadSource,
		LeadScore:          score,
		ProjectStatus:      StatusNewLead,
		IPAddress:          optional(clientIP),
		UserAgent:          optional(userAgent),
	})
	if err != nil {
		s.log.DatabaseError("create lead", err)
		return transport.CaptureLeadResponse{}, apperr.Wrap(apperr.KindInternal, "failed to save lead", err)
	}

	s.log.WorkflowEvent("lead_captured", lead.ID.String())

	// Immediate acknowledgment to the visitor. The nurture sequence also
	// schedules a welcome email; both are kept intentionally.
	if lead.Email != "" {
		if err := s.sender.SendWelcomeEmail(ctx, lead.Email, lead.Name); err != nil {
			s.log.EmailDispatch(email.KindWelcome, lead.Email, err)
		} else {
			s.log.EmailDispatch(email.KindWelcome, lead.Email, nil)
		}
	}

	// Immediate follow-up task for the sales team. Not transactional with
	// the lead insert; a failure here leaves a lead without a task, which
	// the workflow trigger backfills later.
	if s.tasks != nil {
		priority := "medium"
		if lead.LeadScore >= intakeTaskScorePriority {
			priority = "high"
		}
		if err := s.tasks.CreateIntakeTask(ctx, lead.ID, lead.Name, priority); err != nil {
			s.log.DatabaseError("create intake follow-up task", err)
		}
	}

	s.eventBus.Publish(ctx, events.LeadCaptured{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		Name:        lead.Name,
		Email:       lead.Email,
		Phone:       lead.Phone,
		LeadScore:   lead.LeadScore,
		Timeline:    lead.Timeline,
		ProjectType: lead.ProjectType,
		LeadSource:  lead.LeadSource,
	})

	return transport.CaptureLeadResponse{
		Success:   true,
		LeadID:    lead.ID.String(),
		LeadScore: lead.LeadScore,
		Message:   captureThanksMessage,
	}, nil
}

// Get returns a single lead.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err == repository.ErrNotFound {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

// List returns leads matching the given filters.
func (s *Service) List(ctx context.Context, params repository.ListLeadsParams) ([]repository.Lead, error) {
	return s.repo.List(ctx, params)
}

// Update applies changes to a lead and re-scores it from the updated fields.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error) {
	if params.Phone != nil {
		normalized := phone.NormalizeE164(*params.Phone)
		params.Phone = &normalized
	}

	lead, err := s.repo.Update(ctx, id, params)
	if err == repository.ErrNotFound {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return repository.Lead{}, err
	}

	newScore := scoring.Score(scoring.Input{
		Email:              lead.Email,
		Phone:              lead.Phone,
		ProjectType:        lead.ProjectType,
		BudgetRange:        lead.BudgetRange,
		Timeline:           lead.Timeline,
		Address:            lead.Address,
		ProjectDescription: lead.ProjectDescription,
	})
	if newScore != lead.LeadScore {
		if err := s.repo.UpdateScore(ctx, id, newScore); err != nil {
			s.log.DatabaseError("update lead score", err)
		} else {
			s.eventBus.Publish(ctx, events.LeadScoreUpdated{
				BaseEvent: events.NewBaseEvent(),
				LeadID:    lead.ID,
				OldScore:  lead.LeadScore,
				NewScore:  newScore,
			})
			lead.LeadScore = newScore
		}
	}

	return lead, nil
}

// UpdateStatus moves a lead to a new pipeline status.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	err := s.repo.UpdateStatus(ctx, id, status)
	if err == repository.ErrNotFound {
		return apperr.NotFound("lead not found")
	}
	return err
}

// Delete soft-deletes a lead.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Deactivate(ctx, id)
	if err == repository.ErrNotFound {
		return apperr.NotFound("lead not found")
	}
	return err
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

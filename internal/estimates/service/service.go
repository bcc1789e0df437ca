// Package service implements estimate business logic: numbering, totals,
// sending and the accept/decline decision flow.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"granite_crm_backend/internal/estimates/repository"
	"granite_crm_backend/internal/estimates/transport"
	"granite_crm_backend/internal/events"
	leadsrepo "granite_crm_backend/internal/leads/repository"
	"granite_crm_backend/platform/apperr"
	"granite_crm_backend/platform/config"
	"granite_crm_backend/platform/logger"
)

// defaultDepositPercent applies when the request does not override it.
// Half up front is the standard term for fabrication work.
const defaultDepositPercent = 50

// EstimatesRepository is the persistence interface the service depends on.
type EstimatesRepository interface {
	NextEstimateNumber(ctx context.Context) (string, error)
	CreateWithItems(ctx context.Context, estimate *repository.Estimate, items []repository.EstimateItem) error
	GetByID(ctx context.Context, id uuid.UUID) (repository.Estimate, error)
	ListItems(ctx context.Context, estimateID uuid.UUID) ([]repository.EstimateItem, error)
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Estimate, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	SetDecision(ctx context.Context, id uuid.UUID, status string, decidedAt time.Time) error
}

// LeadDirectory resolves the lead an estimate belongs to.
type LeadDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (leadsrepo.Lead, error)
}

type Service struct {
	repo     EstimatesRepository
	leads    LeadDirectory
	eventBus events.Bus
	baseURL  string
	log      *logger.Logger
}

func New(repo EstimatesRepository, leads LeadDirectory, eventBus events.Bus, cfg config.DocumentConfig, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		leads:    leads,
		eventBus: eventBus,
		baseURL:  cfg.GetAppBaseURL(),
		log:      log,
	}
}

// Create builds a new draft estimate for a lead from the request lines.
func (s *Service) Create(ctx context.Context, req transport.CreateEstimateRequest) (transport.EstimateResponse, error) {
	const op = "estimates.Create"

	leadID, err := uuid.Parse(req.LeadID)
	if err != nil {
		return transport.EstimateResponse{}, apperr.BadRequest("invalid lead id")
	}
	if _, err := s.leads.GetByID(ctx, leadID); err != nil {
		if errors.Is(err, leadsrepo.ErrNotFound) {
			return transport.EstimateResponse{}, apperr.NotFound("lead not found")
		}
		return transport.EstimateResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err).WithOp(op)
	}

	lines := make([]LineInput, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, LineInput{
			Description:    item.Description,
			Quantity:       item.Quantity,
			Unit:           item.Unit,
			UnitPriceCents: item.UnitPriceCents,
		})
	}

	depositPercent := defaultDepositPercent
	if req.DepositPercent != nil {
		depositPercent = *req.DepositPercent
	}
	totals := Calculate(lines, req.TaxRateBps, depositPercent)

	number, err := s.repo.NextEstimateNumber(ctx)
	if err != nil {
		return transport.EstimateResponse{}, apperr.Wrap(apperr.KindInternal, "failed to generate estimate number", err).WithOp(op)
	}

	est := repository.Estimate{
		EstimateNumber: number,
		LeadID:         leadID,
		Status:         repository.StatusDraft,
		Notes:          req.Notes,
		SubtotalCents:  totals.SubtotalCents,
		TaxRateBps:     totals.TaxRateBps,
		TaxCents:       totals.TaxCents,
		DepositPercent: totals.DepositPercent,
		DepositCents:   totals.DepositCents,
		TotalCents:     totals.TotalCents,
	}
	items := make([]repository.EstimateItem, 0, len(totals.Lines))
	for i, line := range totals.Lines {
		items = append(items, repository.EstimateItem{
			Description:    line.Description,
			Quantity:       line.Quantity,
			Unit:           line.Unit,
			UnitPriceCents: line.UnitPriceCents,
			LineTotalCents: line.LineTotalCents,
			Position:       i,
		})
	}

	if err := s.repo.CreateWithItems(ctx, &est, items); err != nil {
		return transport.EstimateResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create estimate", err).WithOp(op)
	}

	s.log.WorkflowEvent("estimate_created", est.LeadID.String(),
		slog.String("estimate_number", est.EstimateNumber),
		slog.Int64("total_cents", est.TotalCents))

	return transport.ToEstimateResponse(est, items), nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.EstimateResponse, error) {
	est, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.EstimateResponse{}, apperr.NotFound("estimate not found")
		}
		return transport.EstimateResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load estimate", err)
	}
	items, err := s.repo.ListItems(ctx, est.ID)
	if err != nil {
		return transport.EstimateResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load estimate items", err)
	}
	return transport.ToEstimateResponse(est, items), nil
}

func (s *Service) ListByLead(ctx context.Context, leadID uuid.UUID) ([]transport.EstimateResponse, error) {
	estimates, err := s.repo.ListByLead(ctx, leadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list estimates", err)
	}
	out := make([]transport.EstimateResponse, 0, len(estimates))
	for _, est := range estimates {
		out = append(out, transport.ToEstimateResponse(est, nil))
	}
	return out, nil
}

// Send marks a draft estimate sent and publishes EstimateSent. The
// workflow module delivers the email to the client and schedules the
// follow-up sequence.
func (s *Service) Send(ctx context.Context, id uuid.UUID) (transport.EstimateResponse, error) {
	const op = "estimates.Send"

	est, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.EstimateResponse{}, apperr.NotFound("estimate not found")
		}
		return transport.EstimateResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load estimate", err).WithOp(op)
	}
	if est.Status != repository.StatusDraft {
		return transport.EstimateResponse{}, apperr.Conflict(fmt.Sprintf("estimate is %s, only drafts can be sent", est.Status))
	}

	lead, err := s.leads.GetByID(ctx, est.LeadID)
	if err != nil {
		return transport.EstimateResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err).WithOp(op)
	}

	sentAt := time.Now()
	if err := s.repo.MarkSent(ctx, est.ID, sentAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.EstimateResponse{}, apperr.Conflict("estimate was already sent")
		}
		return transport.EstimateResponse{}, apperr.Wrap(apperr.KindInternal, "failed to mark estimate sent", err).WithOp(op)
	}
	est.Status = repository.StatusSent
	est.SentAt = &sentAt

	s.eventBus.Publish(ctx, events.EstimateSent{
		BaseEvent:      events.NewBaseEvent(),
		EstimateID:     est.ID,
		EstimateNumber: est.EstimateNumber,
		EstimateURL:    s.EstimateURL(est.ID),
		LeadID:         est.LeadID,
		ClientName:     lead.Name,
		ClientEmail:    lead.Email,
		TotalCents:     est.TotalCents,
	})

	items, err := s.repo.ListItems(ctx, est.ID)
	if err != nil {
		return transport.EstimateResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load estimate items", err).WithOp(op)
	}
	return transport.ToEstimateResponse(est, items), nil
}

// Accept records the client's acceptance of a sent estimate.
func (s *Service) Accept(ctx context.Context, id uuid.UUID) error {
	return s.decide(ctx, id, repository.StatusAccepted)
}

// Decline records the client's rejection of a sent estimate.
func (s *Service) Decline(ctx context.Context, id uuid.UUID) error {
	return s.decide(ctx, id, repository.StatusDeclined)
}

func (s *Service) decide(ctx context.Context, id uuid.UUID, status string) error {
	err := s.repo.SetDecision(ctx, id, status, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Conflict("estimate is not awaiting a decision")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to record decision", err)
	}

	est, err := s.repo.GetByID(ctx, id)
	if err == nil {
		s.log.WorkflowEvent("estimate_"+status, est.LeadID.String(),
			slog.String("estimate_number", est.EstimateNumber))
	}
	return nil
}

// EstimateURL is the customer-facing link to view an estimate.
func (s *Service) EstimateURL(id uuid.UUID) string {
	return fmt.Sprintf("%s/estimates/%s", s.baseURL, id)
}

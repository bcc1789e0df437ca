// Package service implements contract business logic: creation from accepted
// estimates, the payment schedule and the send/sign flow.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"granite_crm_backend/internal/contracts/repository"
	"granite_crm_backend/internal/contracts/transport"
	"granite_crm_backend/internal/email"
	estrepo "granite_crm_backend/internal/estimates/repository"
	"granite_crm_backend/internal/events"
	leadsrepo "granite_crm_backend/internal/leads/repository"
	"granite_crm_backend/platform/apperr"
	"granite_crm_backend/platform/config"
	"granite_crm_backend/platform/logger"
)

// ContractsRepository is the persistence interface the service depends on.
type ContractsRepository interface {
	NextContractNumber(ctx context.Context) (string, error)
	CreateWithSchedule(ctx context.Context, contract *repository.Contract, schedule []repository.PaymentMilestone) error
	GetByID(ctx context.Context, id uuid.UUID) (repository.Contract, error)
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Contract, error)
	ListSchedule(ctx context.Context, contractID uuid.UUID) ([]repository.PaymentMilestone, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkSigned(ctx context.Context, id uuid.UUID, signerName string, signedAt time.Time) error
	Cancel(ctx context.Context, id uuid.UUID) error
}

// EstimateDirectory resolves the accepted estimate a contract is built from.
type EstimateDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (estrepo.Estimate, error)
}

// LeadDirectory resolves the lead a contract belongs to.
type LeadDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (leadsrepo.Lead, error)
}

type Service struct {
	repo      ContractsRepository
	estimates EstimateDirectory
	leads     LeadDirectory
	sender    email.Sender
	eventBus  events.Bus
	baseURL   string
	log       *logger.Logger
}

func New(repo ContractsRepository, estimates EstimateDirectory, leads LeadDirectory, sender email.Sender, eventBus events.Bus, cfg config.DocumentConfig, log *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		estimates: estimates,
		leads:     leads,
		sender:    sender,
		eventBus:  eventBus,
		baseURL:   cfg.GetAppBaseURL(),
		log:       log,
	}
}

// CreateFromEstimate builds a draft contract from an accepted estimate. The
// payment schedule carries the estimate's deposit up front and the remainder
// on completion.
func (s *Service) CreateFromEstimate(ctx context.Context, req transport.CreateContractRequest) (transport.ContractResponse, error) {
	const op = "contracts.CreateFromEstimate"

	estimateID, err := uuid.Parse(req.EstimateID)
	if err != nil {
		return transport.ContractResponse{}, apperr.BadRequest("invalid estimate id")
	}

	est, err := s.estimates.GetByID(ctx, estimateID)
	if err != nil {
		if errors.Is(err, estrepo.ErrNotFound) {
			return transport.ContractResponse{}, apperr.NotFound("estimate not found")
		}
		return transport.ContractResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load estimate", err).WithOp(op)
	}
	if est.Status != estrepo.StatusAccepted {
		return transport.ContractResponse{}, apperr.Conflict(fmt.Sprintf("estimate is %s, only accepted estimates can become contracts", est.Status))
	}

	number, err := s.repo.NextContractNumber(ctx)
	if err != nil {
		return transport.ContractResponse{}, apperr.Wrap(apperr.KindInternal, "failed to generate contract number", err).WithOp(op)
	}

	contract := repository.Contract{
		ContractNumber: number,
		LeadID:         est.LeadID,
		EstimateID:     &est.ID,
		Status:         repository.StatusDraft,
		ScopeOfWork:    req.ScopeOfWork,
		TotalCents:     est.TotalCents,
	}
	schedule := buildSchedule(est.TotalCents, est.DepositCents)

	if err := s.repo.CreateWithSchedule(ctx, &contract, schedule); err != nil {
		return transport.ContractResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create contract", err).WithOp(op)
	}

	s.log.WorkflowEvent("contract_created", contract.LeadID.String(),
		slog.String("contract_number", contract.ContractNumber),
		slog.String("estimate_number", est.EstimateNumber))

	return transport.ToContractResponse(contract, schedule), nil
}

// buildSchedule splits the contract amount into deposit and final milestones.
// A zero deposit collapses to a single final payment.
func buildSchedule(totalCents, depositCents int64) []repository.PaymentMilestone {
	if depositCents <= 0 || depositCents >= totalCents {
		return []repository.PaymentMilestone{
			{Kind: repository.MilestoneFinal, Description: "Due on completion", AmountCents: totalCents, Position: 0},
		}
	}
	return []repository.PaymentMilestone{
		{Kind: repository.MilestoneDeposit, Description: "Due at signing", AmountCents: depositCents, Position: 0},
		{Kind: repository.MilestoneFinal, Description: "Due on completion", AmountCents: totalCents - depositCents, Position: 1},
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (transport.ContractResponse, error) {
	con, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ContractResponse{}, apperr.NotFound("contract not found")
		}
		return transport.ContractResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load contract", err)
	}
	schedule, err := s.repo.ListSchedule(ctx, con.ID)
	if err != nil {
		return transport.ContractResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load payment schedule", err)
	}
	return transport.ToContractResponse(con, schedule), nil
}

func (s *Service) ListByLead(ctx context.Context, leadID uuid.UUID) ([]transport.ContractResponse, error) {
	contracts, err := s.repo.ListByLead(ctx, leadID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list contracts", err)
	}
	out := make([]transport.ContractResponse, 0, len(contracts))
	for _, con := range contracts {
		out = append(out, transport.ToContractResponse(con, nil))
	}
	return out, nil
}

// Send marks a draft contract sent and emails the signing link to the lead.
func (s *Service) Send(ctx context.Context, id uuid.UUID) (transport.ContractResponse, error) {
	const op = "contracts.Send"

	con, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ContractResponse{}, apperr.NotFound("contract not found")
		}
		return transport.ContractResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load contract", err).WithOp(op)
	}
	if con.Status != repository.StatusDraft {
		return transport.ContractResponse{}, apperr.Conflict(fmt.Sprintf("contract is %s, only drafts can be sent", con.Status))
	}

	lead, err := s.leads.GetByID(ctx, con.LeadID)
	if err != nil {
		return transport.ContractResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err).WithOp(op)
	}

	sentAt := time.Now()
	if err := s.repo.MarkSent(ctx, con.ID, sentAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ContractResponse{}, apperr.Conflict("contract was already sent")
		}
		return transport.ContractResponse{}, apperr.Wrap(apperr.KindInternal, "failed to mark contract sent", err).WithOp(op)
	}
	con.Status = repository.StatusSent
	con.SentAt = &sentAt

	if lead.Email != "" {
		err := s.sender.SendContractEmail(ctx, lead.Email, lead.Name, con.ContractNumber, s.ContractURL(con.ID), con.TotalCents)
		s.log.EmailDispatch("contract", lead.Email, err)
	}

	schedule, err := s.repo.ListSchedule(ctx, con.ID)
	if err != nil {
		return transport.ContractResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load payment schedule", err).WithOp(op)
	}
	return transport.ToContractResponse(con, schedule), nil
}

// Sign records the client's signature and publishes ContractSigned so the
// workflow module can create project kickoff tasks.
func (s *Service) Sign(ctx context.Context, id uuid.UUID, req transport.SignContractRequest) (transport.ContractResponse, error) {
	const op = "contracts.Sign"

	signedAt := time.Now()
	if err := s.repo.MarkSigned(ctx, id, req.SignerName, signedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ContractResponse{}, apperr.Conflict("contract is not awaiting signature")
		}
		return transport.ContractResponse{}, apperr.Wrap(apperr.KindInternal, "failed to record signature", err).WithOp(op)
	}

	con, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.ContractResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load contract", err).WithOp(op)
	}

	var clientEmail string
	lead, err := s.leads.GetByID(ctx, con.LeadID)
	if err == nil {
		clientEmail = lead.Email
	}

	s.log.WorkflowEvent("contract_signed", con.LeadID.String(),
		slog.String("contract_number", con.ContractNumber),
		slog.String("signer", req.SignerName))

	s.eventBus.Publish(ctx, events.ContractSigned{
		BaseEvent:      events.NewBaseEvent(),
		ContractID:     con.ID,
		ContractNumber: con.ContractNumber,
		ContractURL:    s.ContractURL(con.ID),
		LeadID:         con.LeadID,
		ClientName:     req.SignerName,
		ClientEmail:    clientEmail,
		TotalCents:     con.TotalCents,
	})

	schedule, err := s.repo.ListSchedule(ctx, con.ID)
	if err != nil {
		return transport.ContractResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load payment schedule", err).WithOp(op)
	}
	return transport.ToContractResponse(con, schedule), nil
}

// Cancel voids an unsigned contract.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Cancel(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.Conflict("contract cannot be cancelled")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to cancel contract", err)
	}
	return nil
}

// ContractURL is the customer-facing link to review and sign a contract.
func (s *Service) ContractURL(id uuid.UUID) string {
	return fmt.Sprintf("%s/contracts/%s", s.baseURL, id)
}

// Package workflow provides the workflow automation bounded context module.
// This file defines the module that encapsulates all workflow setup and route registration.
package workflow

import (
	"context"

	"granite_crm_backend/internal/email"
	"granite_crm_backend/internal/events"
	apphttp "granite_crm_backend/internal/http"
	leadsrepo "granite_crm_backend/internal/leads/repository"
	"granite_crm_backend/internal/workflow/engine"
	"granite_crm_backend/internal/workflow/handler"
	"granite_crm_backend/internal/workflow/repository"
	"granite_crm_backend/platform/config"
	"granite_crm_backend/platform/logger"
	"granite_crm_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// leadDirectoryAdapter exposes the leads repository through the engine's
// narrow LeadDirectory interface.
type leadDirectoryAdapter struct {
	repo *leadsrepo.Repository
}

func (a *leadDirectoryAdapter) GetLeadInfo(ctx context.Context, id uuid.UUID) (engine.LeadInfo, error) {
	lead, err := a.repo.GetByID(ctx, id)
	if err != nil {
		return engine.LeadInfo{}, err
	}
	return engine.LeadInfo{
		ID:          lead.ID,
		Name:        lead.Name,
		Email:       lead.Email,
		LeadScore:   lead.LeadScore,
		Timeline:    lead.Timeline,
		ProjectType: lead.ProjectType,
	}, nil
}

func (a *leadDirectoryAdapter) AssignRep(ctx context.Context, id uuid.UUID, rep string) error {
	return a.repo.AssignRep(ctx, id, rep)
}

// Module is the workflow bounded context module implementing http.Module.
type Module struct {
	engine  *engine.Engine
	repo    *repository.Repository
	handler *handler.Handler
	log     *logger.Logger
}

// NewModule creates and initializes the workflow module with all its dependencies.
func NewModule(pool *pgxpool.Pool, rdb *redis.Client, eventBus events.Bus, sender email.Sender, val *validator.Validator, cfg config.RoutingCacheConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	leadsDirectory := &leadDirectoryAdapter{repo: leadsrepo.New(pool)}
	routing := engine.NewRoutingCache(repo, rdb, cfg.GetRoutingCacheTTL(), log)
	eng := engine.NewEngine(repo, leadsDirectory, routing, sender, log)

	m := &Module{
		engine:  eng,
		repo:    repo,
		handler: handler.New(eng, repo, routing, val),
		log:     log,
	}
	m.subscribe(eventBus)
	return m
}

// subscribe wires the workflow triggers to domain events so capturing a
// lead, sending an estimate, or signing a contract kicks off automation
// without the publishing module knowing about the engine.
func (m *Module) subscribe(eventBus events.Bus) {
	eventBus.Subscribe(events.LeadCaptured{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadCaptured)
		if !ok {
			return nil
		}
		if _, err := m.engine.TriggerLeadWorkflow(ctx, e.LeadID); err != nil {
			m.log.Error("lead workflow trigger failed", "error", err, "leadId", e.LeadID)
		}
		return nil
	}))

	eventBus.Subscribe(events.EstimateSent{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.EstimateSent)
		if !ok {
			return nil
		}
		ref := engine.EstimateRef{Number: e.EstimateNumber, URL: e.EstimateURL, TotalCents: e.TotalCents}
		if _, err := m.engine.TriggerEstimateWorkflow(ctx, e.LeadID, ref); err != nil {
			m.log.Error("estimate workflow trigger failed", "error", err, "leadId", e.LeadID)
		}
		return nil
	}))

	eventBus.Subscribe(events.ContractSigned{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.ContractSigned)
		if !ok {
			return nil
		}
		ref := engine.ContractRef{Number: e.ContractNumber, URL: e.ContractURL, TotalCents: e.TotalCents}
		if _, err := m.engine.TriggerContractWorkflow(ctx, e.LeadID, ref); err != nil {
			m.log.Error("contract workflow trigger failed", "error", err, "leadId", e.LeadID)
		}
		return nil
	}))
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "workflow"
}

// Engine returns the workflow engine for the scheduler binary.
func (m *Module) Engine() *engine.Engine {
	return m.engine
}

// Repository returns the workflow repository for the scheduler binary.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts workflow routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	workflowGroup := ctx.Protected.Group("/workflow")
	m.handler.RegisterRoutes(workflowGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

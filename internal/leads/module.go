// Package leads provides the lead intake bounded context module.
// This file defines the module that encapsulates all leads setup and route registration.
package leads

import (
	"context"
	"fmt"
	"time"

	"granite_crm_backend/internal/email"
	"granite_crm_backend/internal/events"
	apphttp "granite_crm_backend/internal/http"
	"granite_crm_backend/internal/leads/handler"
	"granite_crm_backend/internal/leads/repository"
	"granite_crm_backend/internal/leads/scoring"
	"granite_crm_backend/internal/leads/service"
	workflowrepo "granite_crm_backend/internal/workflow/repository"
	"granite_crm_backend/platform/config"
	"granite_crm_backend/platform/logger"
	"granite_crm_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// intakeTaskAdapter writes the immediate follow-up task into the workflow
// task store on behalf of the intake pipeline.
type intakeTaskAdapter struct {
	repo *workflowrepo.Repository
}

func (a *intakeTaskAdapter) CreateIntakeTask(ctx context.Context, leadID uuid.UUID, leadName, priority string) error {
	_, err := a.repo.CreateTask(ctx, workflowrepo.CreateTaskParams{
		LeadID:      leadID,
		TaskType:    "follow_up",
		Title:       fmt.Sprintf("Follow up with new lead - %s", leadName),
		Description: "New lead from the website form. Make first contact.",
		Priority:    priority,
		DueAt:       time.Now(),
	})
	return err
}

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler       *handler.Handler
	publicHandler *handler.PublicHandler
	service       *service.Service
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, sender email.Sender, val *validator.Validator, cfg config.ScorerConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)

	var ai scoring.AIScorer
	if cfg.IsScorerEnabled() {
		ai = scoring.NewGrokScorer(cfg.GetScorerAPIKey(), cfg.GetScorerBaseURL(), cfg.GetScorerModel())
	}
	scorer := scoring.New(ai, log)

	tasks := &intakeTaskAdapter{repo: workflowrepo.New(pool)}
	svc := service.New(repo, scorer, sender, tasks, eventBus, log)

	return &Module{
		handler:       handler.New(svc, val),
		publicHandler: handler.NewPublicHandler(svc, val),
		service:       svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the leads service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	captureGroup := ctx.Public.Group("")
	captureGroup.Use(ctx.CaptureRateLimiter.RateLimit())
	m.publicHandler.RegisterRoutes(captureGroup)

	leadsGroup := ctx.Protected.Group("/leads")
	m.handler.RegisterRoutes(leadsGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

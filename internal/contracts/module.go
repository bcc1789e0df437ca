// Package contracts provides the contracting bounded context module.
package contracts

import (
	"granite_crm_backend/internal/contracts/handler"
	"granite_crm_backend/internal/contracts/repository"
	"granite_crm_backend/internal/contracts/service"
	"granite_crm_backend/internal/email"
	estrepo "granite_crm_backend/internal/estimates/repository"
	"granite_crm_backend/internal/events"
	apphttp "granite_crm_backend/internal/http"
	leadsrepo "granite_crm_backend/internal/leads/repository"
	"granite_crm_backend/platform/config"
	"granite_crm_backend/platform/logger"
	"granite_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the contracts bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the contracts module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, sender email.Sender, val *validator.Validator, cfg config.DocumentConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, estrepo.New(pool), leadsrepo.New(pool), sender, eventBus, cfg, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "contracts"
}

// Service returns the contracts service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts contract routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	contractsGroup := ctx.Protected.Group("/contracts")
	m.handler.RegisterRoutes(contractsGroup)

	leadsGroup := ctx.Protected.Group("/leads")
	m.handler.RegisterLeadRoutes(leadsGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

// Package estimates provides the estimating bounded context module.
package estimates

import (
	"granite_crm_backend/internal/estimates/handler"
	"granite_crm_backend/internal/estimates/repository"
	"granite_crm_backend/internal/estimates/service"
	"granite_crm_backend/internal/events"
	apphttp "granite_crm_backend/internal/http"
	leadsrepo "granite_crm_backend/internal/leads/repository"
	"granite_crm_backend/platform/config"
	"granite_crm_backend/platform/logger"
	"granite_crm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the estimates bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the estimates module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg config.DocumentConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, leadsrepo.New(pool), eventBus, cfg, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "estimates"
}

// Service returns the estimates service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts estimate routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	estimatesGroup := ctx.Protected.Group("/estimates")
	m.handler.RegisterRoutes(estimatesGroup)

	leadsGroup := ctx.Protected.Group("/leads")
	m.handler.RegisterLeadRoutes(leadsGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

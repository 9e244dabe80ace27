// Package leads provides the lead pipeline bounded context module.
// This file defines the module that wires the repository, the pipeline
// service and its routes.
package leads

import (
	"estate_crm_backend/internal/events"
	apphttp "estate_crm_backend/internal/http"
	"estate_crm_backend/internal/leads/handler"
	"estate_crm_backend/internal/leads/repository"
	"estate_crm_backend/internal/leads/service"
	"estate_crm_backend/internal/leads/transport"
	"estate_crm_backend/internal/notification/notice"
	"estate_crm_backend/internal/pipeline/board"
	"estate_crm_backend/internal/pipeline/workspace"
	"estate_crm_backend/platform/logger"
	"estate_crm_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the leads module. The validator gets the pipeline tags
// registered on it.
func NewModule(repo repository.LeadsRepository, cache *board.Cache, workspaces *workspace.Registry, eventBus events.Bus, notifier notice.Notifier, val *validator.Validator, log *logger.Logger) (*Module, error) {
	if err := transport.RegisterValidations(val); err != nil {
		return nil, err
	}

	svc := service.New(repo, cache, workspaces, eventBus, notifier, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the pipeline service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the pipeline and leads routes on the protected group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterPipelineRoutes(ctx.Protected.Group("/pipeline"))
	m.handler.RegisterLeadRoutes(ctx.Protected.Group("/leads"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

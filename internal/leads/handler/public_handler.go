// Package handler provides the HTTP handlers for the leads module.
package handler

import (
	"net/http"

	"granite_crm_backend/internal/leads/service"
	"granite_crm_backend/internal/leads/transport"
	"granite_crm_backend/platform/httpkit"
	"granite_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// PublicHandler handles the unauthenticated lead capture endpoint.
type PublicHandler struct {
	svc *service.Service
	val *validator.Validator
}

// NewPublicHandler creates a handler for the public capture form.
func NewPublicHandler(svc *service.Service, val *validator.Validator) *PublicHandler {
	return &PublicHandler{svc: svc, val: val}
}

// RegisterRoutes registers public routes under /public.
func (h *PublicHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/lead-capture", h.CaptureLead)
}

// CaptureLead accepts a form submission from the marketing site. The form
// is deliberately permissive: all fields optional, only size limits are
// enforced.
func (h *PublicHandler) CaptureLead(c *gin.Context) {
	var req transport.CaptureLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "Invalid input", err.Error())
		return
	}

	resp, err := h.svc.CaptureLead(c.Request.Context(), req, c.ClientIP(), c.Request.UserAgent())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, resp)
}

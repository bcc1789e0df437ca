// Package handler provides the HTTP handlers for the workflow module.
package handler

import (
	"net/http"
	"time"

	"granite_crm_backend/internal/workflow/engine"
	"granite_crm_backend/internal/workflow/repository"
	"granite_crm_backend/platform/httpkit"
	"granite_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes workflow triggers and the ops endpoints.
type Handler struct {
	engine  *engine.Engine
	repo    *repository.Repository
	routing *engine.RoutingCache
	val     *validator.Validator
}

func New(eng *engine.Engine, repo *repository.Repository, routing *engine.RoutingCache, val *validator.Validator) *Handler {
	return &Handler{engine: eng, repo: repo, routing: routing, val: val}
}

// RegisterRoutes registers workflow routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads/:id/trigger", h.TriggerLeadWorkflow)
	rg.POST("/leads/:id/trigger-estimate", h.TriggerEstimateWorkflow)
	rg.POST("/leads/:id/trigger-contract", h.TriggerContractWorkflow)
	rg.POST("/process-scheduled-emails", h.ProcessScheduledEmails)
	rg.GET("/stats", h.Stats)
	rg.GET("/leads/:id/tasks", h.ListTasks)
	rg.PATCH("/tasks/:id/complete", h.CompleteTask)
	rg.GET("/routing", h.GetRouting)
	rg.PUT("/routing", h.UpdateRouting)
}

func (h *Handler) TriggerLeadWorkflow(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.engine.TriggerLeadWorkflow(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

type estimateTriggerRequest struct {
	EstimateNumber string `json:"estimateNumber" validate:"omitempty,max=50"`
	EstimateURL    string `json:"estimateUrl" validate:"omitempty,url,max=500"`
	TotalCents     int64  `json:"totalCents" validate:"omitempty,min=0"`
}

func (h *Handler) TriggerEstimateWorkflow(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req estimateTriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		httpkit.Error(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "Invalid input", validator.Messages(err))
		return
	}

	ref := engine.EstimateRef{Number: req.EstimateNumber, URL: req.EstimateURL, TotalCents: req.TotalCents}
	result, err := h.engine.TriggerEstimateWorkflow(c.Request.Context(), id, ref)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

type contractTriggerRequest struct {
	ContractNumber string `json:"contractNumber" validate:"omitempty,max=50"`
	ContractURL    string `json:"contractUrl" validate:"omitempty,url,max=500"`
	TotalCents     int64  `json:"totalCents" validate:"omitempty,min=0"`
}

func (h *Handler) TriggerContractWorkflow(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req contractTriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		httpkit.Error(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "Invalid input", validator.Messages(err))
		return
	}

	ref := engine.ContractRef{Number: req.ContractNumber, URL: req.ContractURL, TotalCents: req.TotalCents}
	result, err := h.engine.TriggerContractWorkflow(c.Request.Context(), id, ref)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ProcessScheduledEmails runs one dispatch pass immediately. The scheduler
// runs the same pass on an interval; this endpoint exists for ops.
func (h *Handler) ProcessScheduledEmails(c *gin.Context) {
	result, err := h.engine.ProcessScheduledNotifications(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.engine.GetStats(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{
		"tasks": gin.H{
			"pending":   stats.PendingTasks,
			"completed": stats.CompletedTasks,
		},
		"notifications": gin.H{
			"scheduled": stats.ScheduledNotifications,
			"sent":      stats.SentNotifications,
			"failed":    stats.FailedNotifications,
		},
		"assignmentsLast30Days": stats.AssignmentsLast30Days,
	})
}

type taskResponse struct {
	ID          string    `json:"id"`
	LeadID      string    `json:"leadId"`
	TaskType    string    `json:"taskType"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	DueAt       time.Time `json:"dueAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (h *Handler) ListTasks(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	tasks, err := h.repo.ListTasksByLead(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskResponse{
			ID:          task.ID.String(),
			LeadID:      task.LeadID.String(),
			TaskType:    task.TaskType,
			Title:       task.Title,
			Description: task.Description,
			Priority:    task.Priority,
			Status:      task.Status,
			DueAt:       task.DueAt,
			CreatedAt:   task.CreatedAt,
		})
	}
	httpkit.OK(c, gin.H{"tasks": items})
}

func (h *Handler) CompleteTask(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var completedBy *uuid.UUID
	if ident := httpkit.GetIdentity(c); ident.IsAuthenticated() {
		uid := ident.UserID()
		completedBy = &uid
	}

	if err := h.repo.CompleteTask(c.Request.Context(), id, completedBy); err != nil {
		if err == repository.ErrNotFound {
			httpkit.Error(c, http.StatusNotFound, "Task not found or already completed", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"success": true})
}

type routingRulesBody struct {
	ByProjectType map[string]string `json:"byProjectType" validate:"omitempty,dive,keys,max=50,endkeys,max=200"`
	HighScoreRep  string            `json:"highScoreRep" validate:"omitempty,max=200"`
	DefaultReps   []string          `json:"defaultReps" validate:"omitempty,max=100,dive,max=200"`
}

func (h *Handler) GetRouting(c *gin.Context) {
	rules, err := h.routing.Rules(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, routingRulesBody{
		ByProjectType: rules.ByProjectType,
		HighScoreRep:  rules.HighScoreRep,
		DefaultReps:   rules.DefaultReps,
	})
}

func (h *Handler) UpdateRouting(c *gin.Context) {
	var req routingRulesBody
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "Invalid input", validator.Messages(err))
		return
	}

	rules := repository.RoutingRules{
		ByProjectType: req.ByProjectType,
		HighScoreRep:  req.HighScoreRep,
		DefaultReps:   req.DefaultReps,
	}
	if err := h.routing.Update(c.Request.Context(), rules); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, req)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "Invalid id", nil)
		return uuid.Nil, false
	}
	return id, true
}

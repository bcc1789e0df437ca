// Package transport defines the request/response DTOs for the leads API.
package transport

import (
	"time"

	"granite_crm_backend/internal/leads/repository"
)

// CaptureLeadRequest is the public form payload. Every field is optional:
// the form must accept whatever a visitor submits and score it, never
// reject it.
type CaptureLeadRequest struct {
	Name               string `json:"name" validate:"omitempty,max=200"`
	Email              string `json:"email" validate:"omitempty,max=320"`
	Phone              string `json:"phone" validate:"omitempty,max=50"`
	Address            string `json:"address" validate:"omitempty,max=500"`
	ProjectType        string `json:"projectType" validate:"omitempty,max=100"`
	ProjectDescription string `json:"projectDescription" validate:"omitempty,max=5000"`
	BudgetRange        string `json:"budgetRange" validate:"omitempty,max=50"`
	Timeline           string `json:"timeline" validate:"omitempty,max=50"`
	LeadSource         string `json:"leadSource" validate:"omitempty,max=100"`
}

// CaptureLeadResponse is returned to the public form.
type CaptureLeadResponse struct {
	Success   bool   `json:"success"`
	LeadID    string `json:"leadId"`
	LeadScore int    `json:"leadScore"`
	Message   string `json:"message"`
}

// UpdateLeadRequest updates an existing lead via the admin API.
type UpdateLeadRequest struct {
	Name               *string `json:"name" validate:"omitempty,max=200"`
	Email              *string `json:"email" validate:"omitempty,max=320"`
	Phone              *string `json:"phone" validate:"omitempty,max=50"`
	Address            *string `json:"address" validate:"omitempty,max=500"`
	ProjectType        *string `json:"projectType" validate:"omitempty,max=100"`
	ProjectDescription *string `json:"projectDescription" validate:"omitempty,max=5000"`
	BudgetRange        *string `json:"budgetRange" validate:"omitempty,max=50"`
	Timeline           *string `json:"timeline" validate:"omitempty,max=50"`
	ProjectStatus      *string `json:"projectStatus" validate:"omitempty,max=50"`
}

// LeadResponse is the admin API representation of a lead.
type LeadResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	Address            string    `json:"address"`
	ProjectType        string    `json:"projectType"`
	ProjectDescription string    `json:"projectDescription"`
	BudgetRange        string    `json:"budgetRange"`
	Timeline           string    `json:"timeline"`
	LeadSource         string    `json:"leadSource"`
	LeadScore          int       `json:"leadScore"`
	ProjectStatus      string    `json:"projectStatus"`
	AssignedRep        *string   `json:"assignedRep,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// ToLeadResponse maps a repository lead to its API representation.
func ToLeadResponse(lead repository.Lead) LeadResponse {
	return LeadResponse{
		ID:                 lead.ID.String(),
		Name:               lead.Name,
		Email:              lead.Email,
		Phone:              lead.Phone,
		Address:            lead.Address,
		ProjectType:        lead.ProjectType,
		ProjectDescription: lead.ProjectDescription,
		BudgetRange:        lead.BudgetRange,
		Timeline:           lead.Timeline,
		LeadSource:         lead.LeadSource,
		LeadScore:          lead.LeadScore,
		ProjectStatus:      lead.ProjectStatus,
		AssignedRep:        lead.AssignedRep,
		CreatedAt:          lead.CreatedAt,
		UpdatedAt:          lead.UpdatedAt,
	}
}

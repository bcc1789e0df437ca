// Package transport defines request and response DTOs for the contracts API.
package transport

import (
	"time"

	"granite_crm_backend/internal/contracts/repository"
)

type CreateContractRequest struct {
	EstimateID  string `json:"estimateId" validate:"required,uuid"`
	ScopeOfWork string `json:"scopeOfWork" validate:"omitempty,max=10000"`
}

type SignContractRequest struct {
	SignerName string `json:"signerName" validate:"required,max=200"`
}

type PaymentMilestoneResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	AmountCents int64  `json:"amountCents"`
}

type ContractResponse struct {
	ID             string                     `json:"id"`
	ContractNumber string                     `json:"contractNumber"`
	LeadID         string                     `json:"leadId"`
	EstimateID     *string                    `json:"estimateId,omitempty"`
	Status         string                     `json:"status"`
	ScopeOfWork    string                     `json:"scopeOfWork,omitempty"`
	TotalCents     int64                      `json:"totalCents"`
	Schedule       []PaymentMilestoneResponse `json:"paymentSchedule,omitempty"`
	SignerName     string                     `json:"signerName,omitempty"`
	SentAt         *time.Time                 `json:"sentAt,omitempty"`
	SignedAt       *time.Time                 `json:"signedAt,omitempty"`
	CreatedAt      time.Time                  `json:"createdAt"`
	UpdatedAt      time.Time                  `json:"updatedAt"`
}

func ToContractResponse(con repository.Contract, schedule []repository.PaymentMilestone) ContractResponse {
	resp := ContractResponse{
		ID:             con.ID.String(),
		ContractNumber: con.ContractNumber,
		LeadID:         con.LeadID.String(),
		Status:         con.Status,
		ScopeOfWork:    con.ScopeOfWork,
		TotalCents:     con.TotalCents,
		SignerName:     con.SignerName,
		SentAt:         con.SentAt,
		SignedAt:       con.SignedAt,
		CreatedAt:      con.CreatedAt,
		UpdatedAt:      con.UpdatedAt,
	}
	if con.EstimateID != nil {
		id := con.EstimateID.String()
		resp.EstimateID = &id
	}
	for _, m := range schedule {
		resp.Schedule = append(resp.Schedule, PaymentMilestoneResponse{
			ID:          m.ID.String(),
			Kind:        m.Kind,
			Description: m.Description,
			AmountCents: m.AmountCents,
		})
	}
	return resp
}

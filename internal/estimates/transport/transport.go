// Package transport defines request and response DTOs for the estimates API.
package transport

import (
	"time"

	"granite_crm_backend/internal/estimates/repository"
)

type CreateEstimateItemRequest struct {
	Description    string  `json:"description" validate:"required,max=500"`
	Quantity       float64 `json:"quantity" validate:"gte=0"`
	Unit           string  `json:"unit" validate:"omitempty,max=20"`
	UnitPriceCents int64   `json:"unitPriceCents" validate:"gte=0"`
}

type CreateEstimateRequest struct {
	LeadID         string                      `json:"leadId" validate:"required,uuid"`
	Notes          string                      `json:"notes" validate:"omitempty,max=5000"`
	TaxRateBps     int                         `json:"taxRateBps" validate:"gte=0,lte=2000"`
	DepositPercent *int                        `json:"depositPercent" validate:"omitempty,gte=0,lte=100"`
	Items          []CreateEstimateItemRequest `json:"items" validate:"required,min=1,max=100,dive"`
}

type EstimateItemResponse struct {
	ID             string  `json:"id"`
	Description    string  `json:"description"`
	Quantity       float64 `json:"quantity"`
	Unit           string  `json:"unit,omitempty"`
	UnitPriceCents int64   `json:"unitPriceCents"`
	LineTotalCents int64   `json:"lineTotalCents"`
}

type EstimateResponse struct {
	ID             string                 `json:"id"`
	EstimateNumber string                 `json:"estimateNumber"`
	LeadID         string                 `json:"leadId"`
	Status         string                 `json:"status"`
	Notes          string                 `json:"notes,omitempty"`
	SubtotalCents  int64                  `json:"subtotalCents"`
	TaxRateBps     int                    `json:"taxRateBps"`
	TaxCents       int64                  `json:"taxCents"`
	DepositPercent int                    `json:"depositPercent"`
	DepositCents   int64                  `json:"depositCents"`
	TotalCents     int64                  `json:"totalCents"`
	Items          []EstimateItemResponse `json:"items,omitempty"`
	SentAt         *time.Time             `json:"sentAt,omitempty"`
	DecidedAt      *time.Time             `json:"decidedAt,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

func ToEstimateResponse(est repository.Estimate, items []repository.EstimateItem) EstimateResponse {
	resp := EstimateResponse{
		ID:             est.ID.String(),
		EstimateNumber: est.EstimateNumber,
		LeadID:         est.LeadID.String(),
		Status:         est.Status,
		Notes:          est.Notes,
		SubtotalCents:  est.SubtotalCents,
		TaxRateBps:     est.TaxRateBps,
		TaxCents:       est.TaxCents,
		DepositPercent: est.DepositPercent,
		DepositCents:   est.DepositCents,
		TotalCents:     est.TotalCents,
		SentAt:         est.SentAt,
		DecidedAt:      est.DecidedAt,
		CreatedAt:      est.CreatedAt,
		UpdatedAt:      est.UpdatedAt,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, EstimateItemResponse{
			ID:             item.ID.String(),
			Description:    item.Description,
			Quantity:       item.Quantity,
			Unit:           item.Unit,
			UnitPriceCents: item.UnitPriceCents,
			LineTotalCents: item.LineTotalCents,
		})
	}
	return resp
}

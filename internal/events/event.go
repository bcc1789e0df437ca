// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"granite_crm_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCaptured is published when a public form submission creates a lead.
// The workflow module subscribes to this to kick off the lead workflow.
type LeadCaptured struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	LeadScore   int       `json:"leadScore"`
	Timeline    string    `json:"timeline"`
	ProjectType string    `json:"projectType"`
	LeadSource  string    `json:"leadSource"`
}

func (e LeadCaptured) EventName() string { return "leads.lead.captured" }

// LeadScoreUpdated is published when a lead is re-scored after an update.
type LeadScoreUpdated struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	OldScore int       `json:"oldScore"`
	NewScore int       `json:"newScore"`
}

func (e LeadScoreUpdated) EventName() string { return "leads.score.updated" }

// =============================================================================
// Estimates Domain Events
// =============================================================================

// EstimateSent is published when an estimate is marked sent to the client.
// The workflow module subscribes to this to schedule follow-up.
type EstimateSent struct {
	BaseEvent
	EstimateID     uuid.UUID `json:"estimateId"`
	EstimateNumber string    `json:"estimateNumber"`
	EstimateURL    string    `json:"estimateUrl"`
	LeadID         uuid.UUID `json:"leadId"`
	ClientName     string    `json:"clientName"`
	ClientEmail    string    `json:"clientEmail"`
	TotalCents     int64     `json:"totalCents"`
}

func (e EstimateSent) EventName() string { return "estimates.estimate.sent" }

// =============================================================================
// Contracts Domain Events
// =============================================================================

// ContractSigned is published when a contract is signed.
// The workflow module subscribes to this to create project kickoff tasks.
type ContractSigned struct {
	BaseEvent
	ContractID     uuid.UUID `json:"contractId"`
	ContractNumber string    `json:"contractNumber"`
	ContractURL    string    `json:"contractUrl"`
	LeadID         uuid.UUID `json:"leadId"`
	ClientName     string    `json:"clientName"`
	ClientEmail    string    `json:"clientEmail"`
	TotalCents     int64     `json:"totalCents"`
}

func (e ContractSigned) EventName() string { return "contracts.contract.signed" }

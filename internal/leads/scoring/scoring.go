// Package scoring assigns a 0-100 qualification score to incoming leads.
//
// The base model is a deterministic additive point table over the form
// fields. An optional AI scorer can refine the result; when it is disabled
// or fails, the point table is always the answer.
package scoring

import "strings"

// Budget range values as submitted by the capture form.
const (
	BudgetOver50K = "over_50k"
	Budget25K50K  = "25k_50k"
	Budget10K25K  = "10k_25k"
)

// Timeline values as submitted by the capture form.
const (
	TimelineASAP        = "asap"
	TimelineOneMonth    = "1_month"
	TimelineThreeMonths = "3_months"
)

// Project type values that carry score weight.
const (
	ProjectKitchen     = "kitchen"
	ProjectBathroom    = "bathroom"
	ProjectCountertops = "countertops"
	ProjectCommercial  = "commercial"
)

// descriptionScoreThreshold is the minimum description length that signals
// genuine buying intent.
const descriptionScoreThreshold = 50

// Input carries the form fields that contribute to the score.
type Input struct {
	Email              string
	Phone              string
	ProjectType        string
	BudgetRange        string
	Timeline           string
	Address            string
	ProjectDescription string
}

// Score computes the additive point-table score, clamped to [0, 100].
// Every contribution is non-negative, so adding information never lowers
// the score.
func Score(in Input) int {
	score := 0

	if strings.TrimSpace(in.Email) != "" {
		score += 10
	}
	if strings.TrimSpace(in.Phone) != "" {
		score += 10
	}

	switch strings.ToLower(strings.TrimSpace(in.ProjectType)) {
	case ProjectKitchen, ProjectBathroom, ProjectCountertops:
		score += 15
	case ProjectCommercial:
		score += 20
	}

	switch strings.ToLower(strings.TrimSpace(in.BudgetRange)) {
	case BudgetOver50K:
		score += 25
	case Budget25K50K:
		score += 20
	case Budget10K25K:
		score += 15
	}

	switch strings.ToLower(strings.TrimSpace(in.Timeline)) {
	case TimelineASAP:
		score += 20
	case TimelineOneMonth:
		score += 15
	case TimelineThreeMonths:
		score += 10
	}

	if strings.TrimSpace(in.Address) != "" {
		score += 10
	}
	if len(in.ProjectDescription) > descriptionScoreThreshold {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

package scoring

import (
	"context"

	"granite_crm_backend/platform/logger"
)

// AIScorer abstracts the optional model-backed scorer.
type AIScorer interface {
	Score(ctx context.Context, in Input) (int, error)
}

// Service combines the point table with the optional AI scorer.
type Service struct {
	ai  AIScorer
	log *logger.Logger
}

// New creates a scoring service. ai may be nil, in which case only the
// point table is used.
func New(ai AIScorer, log *logger.Logger) *Service {
	return &Service{ai: ai, log: log}
}

// Score returns the lead score. The AI scorer is consulted when configured;
// any failure falls back to the deterministic point table so intake never
// blocks on an external model.
func (s *Service) Score(ctx context.Context, in Input) int {
	basic := Score(in)
	if s.ai == nil {
		return basic
	}

	aiScore, err := s.ai.Score(ctx, in)
	if err != nil {
		s.log.Warn("ai scoring failed, using point table", "error", err, "fallback_score", basic)
		return basic
	}
	return aiScore
}

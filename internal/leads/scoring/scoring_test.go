package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"

	"granite_crm_backend/platform/logger"
)

func TestScore_EmptyInput(t *testing.T) {
	if got := Score(Input{}); got != 0 {
		t.Fatalf("expected score 0 for empty input, got %d", got)
	}
}

func TestScore_MaximumClampsTo100(t *testing.T) {
	in := Input{
		Email:              "owner@diner.example",
		Phone:              "+15125550101",
		ProjectType:        ProjectCommercial,
		BudgetRange:        BudgetOver50K,
		Timeline:           TimelineASAP,
		Address:            "500 Congress Ave, Austin TX",
		ProjectDescription: strings.Repeat("full commercial kitchen rebuild ", 4),
	}

	// Raw sum is 105; the clamp must cap it.
	if got := Score(in); got != 100 {
		t.Fatalf("expected clamped score 100, got %d", got)
	}
}

func TestScore_PointTable(t *testing.T) {
	in := Input{
		Email:       "jane@example.com",
		ProjectType: ProjectKitchen,
		BudgetRange: Budget10K25K,
		Timeline:    TimelineThreeMonths,
	}

	// 10 (email) + 15 (kitchen) + 15 (budget) + 10 (timeline).
	if got := Score(in); got != 50 {
		t.Fatalf("expected score 50, got %d", got)
	}
}

func TestScore_UnknownValuesScoreNothing(t *testing.T) {
	in := Input{
		ProjectType: "driveway",
		BudgetRange: "unsure",
		Timeline:    "someday",
	}

	if got := Score(in); got != 0 {
		t.Fatalf("expected score 0 for unrecognized values, got %d", got)
	}
}

func TestScore_CaseAndWhitespaceInsensitive(t *testing.T) {
	in := Input{
		ProjectType: "  Kitchen ",
		Timeline:    "ASAP",
	}

	if got := Score(in); got != 35 {
		t.Fatalf("expected score 35, got %d", got)
	}
}

func TestScore_DescriptionLengthThreshold(t *testing.T) {
	short := Input{ProjectDescription: strings.Repeat("x", 50)}
	long := Input{ProjectDescription: strings.Repeat("x", 51)}

	if got := Score(short); got != 0 {
		t.Fatalf("expected no bonus at threshold length, got %d", got)
	}
	if got := Score(long); got != 10 {
		t.Fatalf("expected description bonus 10, got %d", got)
	}
}

func TestScore_AddingInformationNeverLowersScore(t *testing.T) {
	base := Input{Email: "a@b.example", BudgetRange: Budget25K50K}
	withMore := base
	withMore.Phone = "+15125550102"
	withMore.Address = "12 Oak St"

	if Score(withMore) < Score(base) {
		t.Fatalf("score dropped when fields were added: %d < %d", Score(withMore), Score(base))
	}
}

type stubAIScorer struct {
	score int
	err   error
	calls int
}

func (s *stubAIScorer) Score(ctx context.Context, in Input) (int, error) {
	s.calls++
	return s.score, s.err
}

func TestService_AIFailureFallsBackToPointTable(t *testing.T) {
	in := Input{
		Email:       "jane@example.com",
		ProjectType: ProjectKitchen,
		BudgetRange: Budget10K25K,
		Timeline:    TimelineThreeMonths,
	}
	ai := &stubAIScorer{err: errors.New("model unavailable")}
	svc := New(ai, logger.New("development"))

	if got := svc.Score(context.Background(), in); got != 50 {
		t.Fatalf("expected fallback to the point-table score 50, got %d", got)
	}
	if ai.calls != 1 {
		t.Fatalf("expected the model consulted once, got %d calls", ai.calls)
	}
}

func TestService_AIScoreWins(t *testing.T) {
	in := Input{Email: "jane@example.com", ProjectType: ProjectKitchen}
	svc := New(&stubAIScorer{score: 92}, logger.New("development"))

	if got := svc.Score(context.Background(), in); got != 92 {
		t.Fatalf("expected the model score 92, got %d", got)
	}
}

func TestService_NilAIUsesPointTable(t *testing.T) {
	svc := New(nil, logger.New("development"))
	in := Input{Email: "jane@example.com", ProjectType: ProjectKitchen}

	// 10 (email) + 15 (kitchen).
	if got := svc.Score(context.Background(), in); got != 25 {
		t.Fatalf("expected the point-table score 25, got %d", got)
	}
}

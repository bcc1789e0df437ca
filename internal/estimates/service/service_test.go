package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"granite_crm_backend/internal/estimates/repository"
	"granite_crm_backend/internal/estimates/transport"
	"granite_crm_backend/internal/events"
	leadsrepo "granite_crm_backend/internal/leads/repository"
	"granite_crm_backend/platform/apperr"
	"granite_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeEstimatesRepo struct {
	nextNumber int
	estimates  map[uuid.UUID]repository.Estimate
	items      map[uuid.UUID][]repository.EstimateItem
}

func errKind(err error) apperr.Kind {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return apperr.KindUnknown
}

func newFakeEstimatesRepo() *fakeEstimatesRepo {
	return &fakeEstimatesRepo{
		estimates: make(map[uuid.UUID]repository.Estimate),
		items:     make(map[uuid.UUID][]repository.EstimateItem),
	}
}

func (r *fakeEstimatesRepo) NextEstimateNumber(ctx context.Context) (string, error) {
	r.nextNumber++
	return fmt.Sprintf("EST-2026-%04d", r.nextNumber), nil
}

func (r *fakeEstimatesRepo) CreateWithItems(ctx context.Context, est *repository.Estimate, items []repository.EstimateItem) error {
	est.ID = uuid.New()
	r.estimates[est.ID] = *est
	r.items[est.ID] = items
	return nil
}

func (r *fakeEstimatesRepo) GetByID(ctx context.Context, id uuid.UUID) (repository.Estimate, error) {
	est, ok := r.estimates[id]
	if !ok {
		return repository.Estimate{}, repository.ErrNotFound
	}
	return est, nil
}

func (r *fakeEstimatesRepo) ListItems(ctx context.Context, estimateID uuid.UUID) ([]repository.EstimateItem, error) {
	return r.items[estimateID], nil
}

func (r *fakeEstimatesRepo) ListByLead(ctx context.Context, leadID uuid.UUID) ([]repository.Estimate, error) {
	var out []repository.Estimate
	for _, est := range r.estimates {
		if est.LeadID == leadID {
			out = append(out, est)
		}
	}
	return out, nil
}

func (r *fakeEstimatesRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	est, ok := r.estimates[id]
	if !ok || est.Status != repository.StatusDraft {
		return repository.ErrNotFound
	}
	est.Status = repository.StatusSent
	est.SentAt = &sentAt
	r.estimates[id] = est
	return nil
}

func (r *fakeEstimatesRepo) SetDecision(ctx context.Context, id uuid.UUID, status string, decidedAt time.Time) error {
	est, ok := r.estimates[id]
	if !ok || est.Status != repository.StatusSent {
		return repository.ErrNotFound
	}
	est.Status = status
	est.DecidedAt = &decidedAt
	r.estimates[id] = est
	return nil
}

type fakeLeadDirectory struct {
	lead leadsrepo.Lead
}

func (d *fakeLeadDirectory) GetByID(ctx context.Context, id uuid.UUID) (leadsrepo.Lead, error) {
	if d.lead.ID != id {
		return leadsrepo.Lead{}, leadsrepo.ErrNotFound
	}
	return d.lead, nil
}

type captureBus struct {
	published []events.Event
}

func (b *captureBus) Publish(ctx context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *captureBus) PublishSync(ctx context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *captureBus) Subscribe(eventName string, handler events.Handler) {}

type testDocumentConfig struct{}

func (testDocumentConfig) GetAppBaseURL() string { return "https://crm.example.com" }

func newTestService(repo *fakeEstimatesRepo, lead leadsrepo.Lead, bus events.Bus) *Service {
	return New(repo, &fakeLeadDirectory{lead: lead}, bus, testDocumentConfig{}, logger.New("development"))
}

func testLead() leadsrepo.Lead {
	return leadsrepo.Lead{ID: uuid.New(), Name: "Maria Lopez", Email: "maria@example.com"}
}

func createDraft(t *testing.T, svc *Service, leadID uuid.UUID) transport.EstimateResponse {
	t.Helper()
	resp, err := svc.Create(context.Background(), transport.CreateEstimateRequest{
		LeadID:     leadID.String(),
		TaxRateBps: 625,
		Items: []transport.CreateEstimateItemRequest{
			{Description: "Granite countertop", Quantity: 40, Unit: "sqft", UnitPriceCents: 8500},
		},
	})
	if err != nil {
		t.Fatalf("failed to create estimate: %v", err)
	}
	return resp
}

func TestCreate_NumbersAndTotals(t *testing.T) {
	repo := newFakeEstimatesRepo()
	lead := testLead()
	svc := newTestService(repo, lead, &captureBus{})

	resp := createDraft(t, svc, lead.ID)

	if resp.EstimateNumber != "EST-2026-0001" {
		t.Fatalf("expected EST-2026-0001, got %s", resp.EstimateNumber)
	}
	if resp.Status != repository.StatusDraft {
		t.Fatalf("expected draft status, got %s", resp.Status)
	}
	if resp.SubtotalCents != 340000 {
		t.Fatalf("expected subtotal 340000, got %d", resp.SubtotalCents)
	}
	// 6.25% tax and the default 50% deposit.
	if resp.TaxCents != 21250 {
		t.Fatalf("expected tax 21250, got %d", resp.TaxCents)
	}
	if resp.DepositCents != 180625 {
		t.Fatalf("expected deposit 180625, got %d", resp.DepositCents)
	}

	second := createDraft(t, svc, lead.ID)
	if second.EstimateNumber != "EST-2026-0002" {
		t.Fatalf("expected sequential number, got %s", second.EstimateNumber)
	}
}

func TestCreate_UnknownLead(t *testing.T) {
	repo := newFakeEstimatesRepo()
	svc := newTestService(repo, testLead(), &captureBus{})

	_, err := svc.Create(context.Background(), transport.CreateEstimateRequest{
		LeadID: uuid.New().String(),
		Items:  []transport.CreateEstimateItemRequest{{Description: "x", Quantity: 1, UnitPriceCents: 100}},
	})
	if errKind(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSend_DraftBecomesSentAndEventPublished(t *testing.T) {
	repo := newFakeEstimatesRepo()
	lead := testLead()
	bus := &captureBus{}
	svc := newTestService(repo, lead, bus)

	draft := createDraft(t, svc, lead.ID)
	id := uuid.MustParse(draft.ID)

	sent, err := svc.Send(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent.Status != repository.StatusSent {
		t.Fatalf("expected sent status, got %s", sent.Status)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected one event, got %d", len(bus.published))
	}
	event, ok := bus.published[0].(events.EstimateSent)
	if !ok {
		t.Fatalf("expected an EstimateSent event, got %T", bus.published[0])
	}
	if event.EstimateNumber != "EST-2026-0001" {
		t.Fatalf("expected estimate number in event, got %s", event.EstimateNumber)
	}
	if event.EstimateURL != "https://crm.example.com/estimates/"+draft.ID {
		t.Fatalf("expected customer-facing link in event, got %s", event.EstimateURL)
	}
	if event.ClientEmail != lead.Email || event.TotalCents != sent.TotalCents {
		t.Fatalf("expected client and total carried on the event, got %+v", event)
	}
}

func TestSend_OnlyDrafts(t *testing.T) {
	repo := newFakeEstimatesRepo()
	lead := testLead()
	svc := newTestService(repo, lead, &captureBus{})

	draft := createDraft(t, svc, lead.ID)
	id := uuid.MustParse(draft.ID)

	if _, err := svc.Send(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.Send(context.Background(), id)
	if errKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict on double send, got %v", err)
	}
}

func TestAcceptDecline_RequireSentStatus(t *testing.T) {
	repo := newFakeEstimatesRepo()
	lead := testLead()
	svc := newTestService(repo, lead, &captureBus{})

	draft := createDraft(t, svc, lead.ID)
	id := uuid.MustParse(draft.ID)

	if err := svc.Accept(context.Background(), id); errKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict accepting a draft, got %v", err)
	}

	if _, err := svc.Send(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Accept(context.Background(), id); err != nil {
		t.Fatalf("unexpected error accepting a sent estimate: %v", err)
	}

	est, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if est.Status != repository.StatusAccepted {
		t.Fatalf("expected accepted status, got %s", est.Status)
	}
	if est.DecidedAt == nil {
		t.Fatal("expected a decision timestamp")
	}

	if err := svc.Decline(context.Background(), id); errKind(err) != apperr.KindConflict {
		t.Fatal("expected conflict declining an already accepted estimate")
	}
}

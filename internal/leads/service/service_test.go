package service

import (
	"context"
	"errors"
	"testing"

	"granite_crm_backend/internal/email"
	"granite_crm_backend/internal/events"
	"granite_crm_backend/internal/leads/repository"
	"granite_crm_backend/internal/leads/scoring"
	"granite_crm_backend/internal/leads/transport"
	"granite_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeLeadsRepo struct {
	created   []repository.CreateLeadParams
	createErr error
	lead      repository.Lead
}

func (r *fakeLeadsRepo) Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	if r.createErr != nil {
		return repository.Lead{}, r.createErr
	}
	r.created = append(r.created, params)
	return repository.Lead{
		ID:        uuid.New(),
		Name:      params.Name,
		Email:     params.Email,
		Phone:     params.Phone,
		LeadScore: params.LeadScore,
		Timeline:  params.Timeline,
	}, nil
}

func (r *fakeLeadsRepo) GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	return r.lead, nil
}

func (r *fakeLeadsRepo) List(ctx context.Context, params repository.ListLeadsParams) ([]repository.Lead, error) {
	return nil, nil
}

func (r *fakeLeadsRepo) Update(ctx context.Context, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error) {
	return r.lead, nil
}

func (r *fakeLeadsRepo) UpdateScore(ctx context.Context, id uuid.UUID, score int) error { return nil }

func (r *fakeLeadsRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return nil
}

func (r *fakeLeadsRepo) Deactivate(ctx context.Context, id uuid.UUID) error { return nil }

type failingWelcomeSender struct {
	email.NoopSender
	attempts int
}

func (s *failingWelcomeSender) SendWelcomeEmail(ctx context.Context, toEmail, name string) error {
	s.attempts++
	return errors.New("smtp unreachable")
}

type fakeTaskCreator struct {
	leadID   uuid.UUID
	priority string
	err      error
	calls    int
}

func (c *fakeTaskCreator) CreateIntakeTask(ctx context.Context, leadID uuid.UUID, leadName, priority string) error {
	c.calls++
	c.leadID = leadID
	c.priority = priority
	return c.err
}

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *recordingBus) Subscribe(eventName string, handler events.Handler) {}

func newCaptureService(repo *fakeLeadsRepo, sender email.Sender, tasks IntakeTaskCreator, bus events.Bus) *Service {
	log := logger.New("development")
	return New(repo, scoring.New(nil, log), sender, tasks, bus, log)
}

func highValueRequest() transport.CaptureLeadRequest {
	return transport.CaptureLeadRequest{
		Name:        "Maria Lopez",
		Email:       "maria@example.com",
		Phone:       "(512) 555-0142",
		Address:     "12 Oak St, Austin TX",
		ProjectType: "kitchen",
		BudgetRange: "over_50k",
		Timeline:    "asap",
	}
}

func TestCaptureLead_Success(t *testing.T) {
	repo := &fakeLeadsRepo{}
	tasks := &fakeTaskCreator{}
	bus := &recordingBus{}
	svc := newCaptureService(repo, email.NoopSender{}, tasks, bus)

	resp, err := svc.CaptureLead(context.Background(), highValueRequest(), "203.0.113.9", "curl/8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !resp.Success {
		t.Fatal("expected a success response")
	}
	if resp.LeadScore < 70 {
		t.Fatalf("expected a high score for a complete submission, got %d", resp.LeadScore)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected one lead persisted, got %d", len(repo.created))
	}
	if repo.created[0].LeadSource != DefaultLeadSource {
		t.Fatalf("expected default lead source, got %q", repo.created[0].LeadSource)
	}
	if repo.created[0].ProjectStatus != StatusNewLead {
		t.Fatalf("expected new_lead status, got %q", repo.created[0].ProjectStatus)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected one captured event, got %d", len(bus.published))
	}
	if bus.published[0].EventName() != "leads.lead.captured" {
		t.Fatalf("unexpected event %s", bus.published[0].EventName())
	}
}

func TestCaptureLead_WelcomeEmailFailureIsIsolated(t *testing.T) {
	repo := &fakeLeadsRepo{}
	sender := &failingWelcomeSender{}
	tasks := &fakeTaskCreator{}
	bus := &recordingBus{}
	svc := newCaptureService(repo, sender, tasks, bus)

	resp, err := svc.CaptureLead(context.Background(), highValueRequest(), "", "")
	if err != nil {
		t.Fatalf("expected capture to survive the email failure, got %v", err)
	}
	if !resp.Success {
		t.Fatal("expected a success response despite the email failure")
	}
	if sender.attempts != 1 {
		t.Fatalf("expected one delivery attempt, got %d", sender.attempts)
	}
	if tasks.calls != 1 {
		t.Fatal("expected the follow-up task despite the email failure")
	}
	if len(bus.published) != 1 {
		t.Fatal("expected the captured event despite the email failure")
	}
}

func TestCaptureLead_TaskFailureIsIsolated(t *testing.T) {
	repo := &fakeLeadsRepo{}
	tasks := &fakeTaskCreator{err: errors.New("tasks table locked")}
	bus := &recordingBus{}
	svc := newCaptureService(repo, email.NoopSender{}, tasks, bus)

	resp, err := svc.CaptureLead(context.Background(), highValueRequest(), "", "")
	if err != nil {
		t.Fatalf("expected capture to survive the task failure, got %v", err)
	}
	if !resp.Success {
		t.Fatal("expected a success response despite the task failure")
	}
	if len(bus.published) != 1 {
		t.Fatal("expected the captured event despite the task failure")
	}
}

func TestCaptureLead_PersistFailureIsFatal(t *testing.T) {
	repo := &fakeLeadsRepo{createErr: errors.New("connection refused")}
	tasks := &fakeTaskCreator{}
	bus := &recordingBus{}
	svc := newCaptureService(repo, email.NoopSender{}, tasks, bus)

	if _, err := svc.CaptureLead(context.Background(), highValueRequest(), "", ""); err == nil {
		t.Fatal("expected the insert failure to surface")
	}
	if tasks.calls != 0 {
		t.Fatal("expected no follow-up task for an unsaved lead")
	}
	if len(bus.published) != 0 {
		t.Fatal("expected no event for an unsaved lead")
	}
}

func TestCaptureLead_TaskPriorityFollowsScore(t *testing.T) {
	repo := &fakeLeadsRepo{}
	tasks := &fakeTaskCreator{}
	svc := newCaptureService(repo, email.NoopSender{}, tasks, &recordingBus{})

	if _, err := svc.CaptureLead(context.Background(), highValueRequest(), "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tasks.priority != "high" {
		t.Fatalf("expected high priority for a high-score lead, got %q", tasks.priority)
	}

	low := transport.CaptureLeadRequest{Name: "Walk In"}
	if _, err := svc.CaptureLead(context.Background(), low, "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tasks.priority != "medium" {
		t.Fatalf("expected medium priority for a sparse lead, got %q", tasks.priority)
	}
}

func TestCaptureLead_PhoneIsNormalized(t *testing.T) {
	repo := &fakeLeadsRepo{}
	svc := newCaptureService(repo, email.NoopSender{}, &fakeTaskCreator{}, &recordingBus{})

	if _, err := svc.CaptureLead(context.Background(), highValueRequest(), "", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.created[0].Phone != "+15125550142" {
		t.Fatalf("expected E.164 phone, got %q", repo.created[0].Phone)
	}
}

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"granite_crm_backend/internal/email"
	"granite_crm_backend/internal/workflow/repository"
	"granite_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	tasks         []repository.CreateTaskParams
	notifications []repository.ScheduleNotificationParams
	due           []repository.ScheduledNotification
	sent          []uuid.UUID
	failed        map[uuid.UUID]string
	lastRep       string
	hasLastRep    bool
	assignments   []string
	failTaskType  string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{failed: make(map[uuid.UUID]string)}
}

func (r *fakeRepo) CreateTask(ctx context.Context, params repository.CreateTaskParams) (repository.Task, error) {
	if r.failTaskType != "" && params.TaskType == r.failTaskType {
		return repository.Task{}, errors.New("insert failed")
	}
	r.tasks = append(r.tasks, params)
	return repository.Task{ID: uuid.New(), LeadID: params.LeadID, TaskType: params.TaskType}, nil
}

func (r *fakeRepo) ScheduleNotification(ctx context.Context, params repository.ScheduleNotificationParams) (repository.ScheduledNotification, error) {
	r.notifications = append(r.notifications, params)
	return repository.ScheduledNotification{ID: uuid.New(), LeadID: params.LeadID, Kind: params.Kind}, nil
}

func (r *fakeRepo) ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]repository.ScheduledNotification, error) {
	return r.due, nil
}

func (r *fakeRepo) MarkNotificationSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	r.sent = append(r.sent, id)
	return nil
}

func (r *fakeRepo) MarkNotificationFailed(ctx context.Context, id uuid.UUID, reason string) error {
	r.failed[id] = reason
	return nil
}

func (r *fakeRepo) LastAssignedRep(ctx context.Context) (string, bool, error) {
	return r.lastRep, r.hasLastRep, nil
}

func (r *fakeRepo) LogAssignment(ctx context.Context, leadID uuid.UUID, repName string, repIndex int) error {
	r.assignments = append(r.assignments, repName)
	return nil
}

func (r *fakeRepo) GetStats(ctx context.Context) (repository.Stats, error) {
	return repository.Stats{}, nil
}

type fakeDirectory struct {
	lead     LeadInfo
	assigned string
}

func (d *fakeDirectory) GetLeadInfo(ctx context.Context, id uuid.UUID) (LeadInfo, error) {
	if d.lead.ID != id {
		return LeadInfo{}, errors.New("no such lead")
	}
	return d.lead, nil
}

func (d *fakeDirectory) AssignRep(ctx context.Context, id uuid.UUID, rep string) error {
	d.assigned = rep
	return nil
}

type staticRules struct {
	rules repository.RoutingRules
}

func (s staticRules) Rules(ctx context.Context) (repository.RoutingRules, error) {
	return s.rules, nil
}

// countingSender records sends per kind and can fail specific recipients.
type countingSender struct {
	email.NoopSender
	welcomes  []string
	byKind    map[string]int
	failAddrs map[string]bool
}

func newCountingSender() *countingSender {
	return &countingSender{byKind: make(map[string]int), failAddrs: make(map[string]bool)}
}

func (s *countingSender) send(kind, toEmail string) error {
	if s.failAddrs[toEmail] {
		return errors.New("delivery refused")
	}
	s.byKind[kind]++
	return nil
}

func (s *countingSender) SendWelcomeEmail(ctx context.Context, toEmail, name string) error {
	s.welcomes = append(s.welcomes, toEmail)
	return s.send(email.KindWelcome, toEmail)
}

func (s *countingSender) SendConsultationEmail(ctx context.Context, toEmail, name string) error {
	return s.send(email.KindConsultation, toEmail)
}

func (s *countingSender) SendFollowUpEmail(ctx context.Context, toEmail, name string) error {
	return s.send(email.KindFollowUp, toEmail)
}

func (s *countingSender) SendOfferEmail(ctx context.Context, toEmail, name string) error {
	return s.send(email.KindOffer, toEmail)
}

func (s *countingSender) SendEstimateEmail(ctx context.Context, toEmail, clientName, estimateNumber, estimateURL string, totalCents int64, attachments ...email.Attachment) error {
	return s.send("estimate", toEmail)
}

func (s *countingSender) SendContractEmail(ctx context.Context, toEmail, clientName, contractNumber, contractURL string, totalCents int64, attachments ...email.Attachment) error {
	return s.send("contract", toEmail)
}

func (s *countingSender) SendContractSignedEmail(ctx context.Context, toEmail, clientName, contractNumber, contractURL string, totalCents int64, attachments ...email.Attachment) error {
	return s.send("contract_signed", toEmail)
}

func newTestEngine(repo *fakeRepo, dir *fakeDirectory, rules repository.RoutingRules, sender email.Sender) *Engine {
	eng := NewEngine(repo, dir, staticRules{rules: rules}, sender, logger.New("development"))
	eng.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return eng
}

func TestTriggerLeadWorkflow_HighScoreASAP(t *testing.T) {
	repo := newFakeRepo()
	leadID := uuid.New()
	dir := &fakeDirectory{lead: LeadInfo{
		ID: leadID, Name: "Maria Lopez", Email: "maria@example.com",
		LeadScore: 75, Timeline: "asap", ProjectType: "kitchen",
	}}
	sender := newCountingSender()
	eng := newTestEngine(repo, dir, repository.RoutingRules{}, sender)

	result, err := eng.TriggerLeadWorkflow(context.Background(), leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.TasksCreated != 3 {
		t.Fatalf("expected 3 tasks, got %d", result.TasksCreated)
	}
	if result.NotificationsScheduled != 3 {
		t.Fatalf("expected 3 notifications, got %d", result.NotificationsScheduled)
	}

	byType := make(map[string]repository.CreateTaskParams)
	for _, task := range repo.tasks {
		byType[task.TaskType] = task
	}
	call, ok := byType["call"]
	if !ok {
		t.Fatalf("expected an urgent call task, got %v", repo.tasks)
	}
	if call.Priority != PriorityUrgent {
		t.Fatalf("expected call priority urgent, got %s", call.Priority)
	}
	if got := call.DueAt.Sub(eng.now()); got != time.Hour {
		t.Fatalf("expected call due in 1h, got %s", got)
	}
	if byType["consultation"].Priority != PriorityHigh {
		t.Fatalf("expected consultation priority high, got %s", byType["consultation"].Priority)
	}
	if byType["quote"].Priority != PriorityUrgent {
		t.Fatalf("expected quote priority urgent, got %s", byType["quote"].Priority)
	}

	delays := []time.Duration{24 * time.Hour, 72 * time.Hour, 168 * time.Hour}
	kinds := []string{email.KindConsultation, email.KindFollowUp, email.KindOffer}
	for i, notif := range repo.notifications {
		if notif.Kind != kinds[i] {
			t.Fatalf("expected notification %d kind %s, got %s", i, kinds[i], notif.Kind)
		}
		if got := notif.ScheduledAt.Sub(eng.now()); got != delays[i] {
			t.Fatalf("expected notification %d scheduled +%s, got +%s", i, delays[i], got)
		}
	}

	if len(sender.welcomes) != 1 || sender.welcomes[0] != "maria@example.com" {
		t.Fatalf("expected one welcome email to the lead, got %v", sender.welcomes)
	}
}

func TestTriggerLeadWorkflow_LowScoreFlexibleTimeline(t *testing.T) {
	repo := newFakeRepo()
	leadID := uuid.New()
	dir := &fakeDirectory{lead: LeadInfo{
		ID: leadID, Name: "Pat Chen", Email: "pat@example.com",
		LeadScore: 40, Timeline: "planning", ProjectType: "other",
	}}
	eng := newTestEngine(repo, dir, repository.RoutingRules{}, newCountingSender())

	result, err := eng.TriggerLeadWorkflow(context.Background(), leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.TasksCreated != 1 {
		t.Fatalf("expected only the consultation task, got %d", result.TasksCreated)
	}
	if repo.tasks[0].TaskType != "consultation" || repo.tasks[0].Priority != PriorityMedium {
		t.Fatalf("expected medium consultation task, got %+v", repo.tasks[0])
	}
	if result.NotificationsScheduled != 3 {
		t.Fatalf("expected the full nurture sequence, got %d", result.NotificationsScheduled)
	}
}

func TestTriggerLeadWorkflow_TaskFailureDoesNotStopWorkflow(t *testing.T) {
	repo := newFakeRepo()
	repo.failTaskType = "call"
	leadID := uuid.New()
	dir := &fakeDirectory{lead: LeadInfo{
		ID: leadID, Name: "Sam Reid", Email: "sam@example.com",
		LeadScore: 90, Timeline: "asap",
	}}
	eng := newTestEngine(repo, dir, repository.RoutingRules{DefaultReps: []string{"Alex", "Brooke"}}, newCountingSender())

	result, err := eng.TriggerLeadWorkflow(context.Background(), leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.TasksCreated != 2 {
		t.Fatalf("expected 2 surviving tasks, got %d", result.TasksCreated)
	}
	if result.NotificationsScheduled != 3 {
		t.Fatalf("expected notifications despite task failure, got %d", result.NotificationsScheduled)
	}
	if result.AssignedRep == "" {
		t.Fatal("expected a rep assignment despite task failure")
	}
}

func TestTriggerLeadWorkflow_UnknownLead(t *testing.T) {
	repo := newFakeRepo()
	dir := &fakeDirectory{lead: LeadInfo{ID: uuid.New()}}
	eng := newTestEngine(repo, dir, repository.RoutingRules{}, newCountingSender())

	if _, err := eng.TriggerLeadWorkflow(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected an error for an unknown lead")
	}
	if len(repo.tasks) != 0 || len(repo.notifications) != 0 {
		t.Fatalf("expected nothing created for an unknown lead, got %d tasks %d notifications", len(repo.tasks), len(repo.notifications))
	}
}

func TestAssignRep_ProjectTypeRuleWins(t *testing.T) {
	repo := newFakeRepo()
	repo.lastRep, repo.hasLastRep = "Brooke", true
	leadID := uuid.New()
	dir := &fakeDirectory{lead: LeadInfo{
		ID: leadID, Name: "Lee", Email: "lee@example.com",
		LeadScore: 95, ProjectType: "commercial",
	}}
	rules := repository.RoutingRules{
		ByProjectType: map[string]string{"commercial": "Dana"},
		HighScoreRep:  "Victor",
		DefaultReps:   []string{"Alex", "Brooke", "Casey"},
	}
	eng := newTestEngine(repo, dir, rules, newCountingSender())

	result, err := eng.TriggerLeadWorkflow(context.Background(), leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AssignedRep != "Dana" {
		t.Fatalf("expected project-type rule to win, got %q", result.AssignedRep)
	}
	if dir.assigned != "Dana" {
		t.Fatalf("expected lead updated with Dana, got %q", dir.assigned)
	}
}

func TestAssignRep_HighScoreRep(t *testing.T) {
	repo := newFakeRepo()
	leadID := uuid.New()
	dir := &fakeDirectory{lead: LeadInfo{
		ID: leadID, Name: "Lee", Email: "lee@example.com",
		LeadScore: 80, ProjectType: "bathroom",
	}}
	rules := repository.RoutingRules{
		ByProjectType: map[string]string{"commercial": "Dana"},
		HighScoreRep:  "Victor",
		DefaultReps:   []string{"Alex", "Brooke"},
	}
	eng := newTestEngine(repo, dir, rules, newCountingSender())

	result, err := eng.TriggerLeadWorkflow(context.Background(), leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AssignedRep != "Victor" {
		t.Fatalf("expected high-score rep, got %q", result.AssignedRep)
	}
}

func TestAssignRep_HighScoreTierIsTerminal(t *testing.T) {
	repo := newFakeRepo()
	leadID := uuid.New()
	dir := &fakeDirectory{lead: LeadInfo{
		ID: leadID, Name: "Lee", Email: "lee@example.com",
		LeadScore: 85, ProjectType: "bathroom",
	}}
	// No high-score rep configured: the resolution still stops at the
	// high-score tier, the rotation never runs.
	rules := repository.RoutingRules{DefaultReps: []string{"Alex", "Brooke", "Casey"}}
	eng := newTestEngine(repo, dir, rules, newCountingSender())

	result, err := eng.TriggerLeadWorkflow(context.Background(), leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AssignedRep != "" {
		t.Fatalf("expected no assignment for a high-score lead without a high-score rep, got %q", result.AssignedRep)
	}
	if dir.assigned != "" {
		t.Fatalf("expected lead left unassigned, got %q", dir.assigned)
	}
	if len(repo.assignments) != 0 {
		t.Fatalf("expected no assignment logged, got %v", repo.assignments)
	}
}

func TestAssignRep_ProjectTypeTierIsTerminal(t *testing.T) {
	repo := newFakeRepo()
	leadID := uuid.New()
	dir := &fakeDirectory{lead: LeadInfo{
		ID: leadID, Name: "Lee", Email: "lee@example.com",
		LeadScore: 30, ProjectType: "commercial",
	}}
	rules := repository.RoutingRules{
		ByProjectType: map[string]string{"commercial": ""},
		DefaultReps:   []string{"Alex", "Brooke", "Casey"},
	}
	eng := newTestEngine(repo, dir, rules, newCountingSender())

	result, err := eng.TriggerLeadWorkflow(context.Background(), leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AssignedRep != "" {
		t.Fatalf("expected no assignment for an empty project-type mapping, got %q", result.AssignedRep)
	}
}

func TestAssignRep_RotationStartsAtSecondRep(t *testing.T) {
	repo := newFakeRepo()
	leadID := uuid.New()
	dir := &fakeDirectory{lead: LeadInfo{ID: leadID, Name: "Lee", Email: "lee@example.com", LeadScore: 30}}
	rules := repository.RoutingRules{DefaultReps: []string{"Alex", "Brooke", "Casey"}}
	eng := newTestEngine(repo, dir, rules, newCountingSender())

	// No assignment history: the rotation resolves the last index to 0 and
	// hands the lead to the second rep.
	result, err := eng.TriggerLeadWorkflow(context.Background(), leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AssignedRep != "Brooke" {
		t.Fatalf("expected rotation to start at Brooke, got %q", result.AssignedRep)
	}
}

func TestAssignRep_RotationContinuesByName(t *testing.T) {
	repo := newFakeRepo()
	repo.lastRep, repo.hasLastRep = "Brooke", true
	leadID := uuid.New()
	dir := &fakeDirectory{lead: LeadInfo{ID: leadID, Name: "Lee", Email: "lee@example.com", LeadScore: 30}}
	rules := repository.RoutingRules{DefaultReps: []string{"Alex", "Brooke", "Casey"}}
	eng := newTestEngine(repo, dir, rules, newCountingSender())

	result, err := eng.TriggerLeadWorkflow(context.Background(), leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AssignedRep != "Casey" {
		t.Fatalf("expected Casey after Brooke, got %q", result.AssignedRep)
	}
}

func TestAssignRep_DepartedRepRestartsRotation(t *testing.T) {
	repo := newFakeRepo()
	repo.lastRep, repo.hasLastRep = "Quinn", true
	leadID := uuid.New()
	dir := &fakeDirectory{lead: LeadInfo{ID: leadID, Name: "Lee", Email: "lee@example.com", LeadScore: 30}}
	rules := repository.RoutingRules{DefaultReps: []string{"Alex", "Brooke", "Casey"}}
	eng := newTestEngine(repo, dir, rules, newCountingSender())

	// The last assigned rep is no longer on the list, so the rotation falls
	// back to index 0 and advances from there.
	result, err := eng.TriggerLeadWorkflow(context.Background(), leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AssignedRep != "Brooke" {
		t.Fatalf("expected Brooke after a departed rep, got %q", result.AssignedRep)
	}
}

func TestAssignRep_NoRulesNoAssignment(t *testing.T) {
	repo := newFakeRepo()
	leadID := uuid.New()
	dir := &fakeDirectory{lead: LeadInfo{ID: leadID, Name: "Lee", Email: "lee@example.com", LeadScore: 99}}
	eng := newTestEngine(repo, dir, repository.RoutingRules{}, newCountingSender())

	result, err := eng.TriggerLeadWorkflow(context.Background(), leadID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AssignedRep != "" {
		t.Fatalf("expected no assignment with empty rules, got %q", result.AssignedRep)
	}
	if dir.assigned != "" {
		t.Fatalf("expected lead left unassigned, got %q", dir.assigned)
	}
}

func TestTriggerEstimateWorkflow(t *testing.T) {
	repo := newFakeRepo()
	leadID := uuid.New()
	dir := &fakeDirectory{lead: LeadInfo{ID: leadID, Name: "Maria Lopez", Email: "maria@example.com"}}
	sender := newCountingSender()
	eng := newTestEngine(repo, dir, repository.RoutingRules{}, sender)

	est := EstimateRef{Number: "EST-2026-0042", URL: "https://crm.example.com/estimates/abc", TotalCents: 410391}
	result, err := eng.TriggerEstimateWorkflow(context.Background(), leadID, est)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sender.byKind["estimate"] != 1 {
		t.Fatalf("expected the estimate emailed to the client, got %d sends", sender.byKind["estimate"])
	}
	if result.TasksCreated != 1 {
		t.Fatalf("expected 1 follow-up task, got %d", result.TasksCreated)
	}
	if result.NotificationsScheduled != 2 {
		t.Fatalf("expected 2 reminders, got %d", result.NotificationsScheduled)
	}
	for _, notif := range repo.notifications {
		if notif.Kind != email.KindEstimateReminder {
			t.Fatalf("expected estimate reminder kind, got %s", notif.Kind)
		}
		if notif.Meta["estimateNumber"] != "EST-2026-0042" {
			t.Fatalf("expected estimate number in meta, got %v", notif.Meta)
		}
		if notif.Meta["estimateURL"] != est.URL {
			t.Fatalf("expected estimate URL in meta, got %v", notif.Meta)
		}
	}
}

func TestTriggerEstimateWorkflow_NoEmailStillSchedules(t *testing.T) {
	repo := newFakeRepo()
	leadID := uuid.New()
	dir := &fakeDirectory{lead: LeadInfo{ID: leadID, Name: "Walk In"}}
	sender := newCountingSender()
	eng := newTestEngine(repo, dir, repository.RoutingRules{}, sender)

	result, err := eng.TriggerEstimateWorkflow(context.Background(), leadID, EstimateRef{Number: "EST-2026-0043"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.byKind["estimate"] != 0 {
		t.Fatal("expected no send without a client email")
	}
	if result.TasksCreated != 1 || result.NotificationsScheduled != 2 {
		t.Fatalf("expected the follow-up still created, got %+v", result)
	}
}

func TestTriggerEstimateWorkflow_SendFailureAbortsRun(t *testing.T) {
	repo := newFakeRepo()
	leadID := uuid.New()
	dir := &fakeDirectory{lead: LeadInfo{ID: leadID, Name: "Maria Lopez", Email: "maria@example.com"}}
	sender := newCountingSender()
	sender.failAddrs["maria@example.com"] = true
	eng := newTestEngine(repo, dir, repository.RoutingRules{}, sender)

	if _, err := eng.TriggerEstimateWorkflow(context.Background(), leadID, EstimateRef{Number: "EST-2026-0044"}); err == nil {
		t.Fatal("expected the send failure to surface")
	}
	if len(repo.tasks) != 0 || len(repo.notifications) != 0 {
		t.Fatalf("expected nothing scheduled after a failed send, got %d tasks %d notifications", len(repo.tasks), len(repo.notifications))
	}
}

func TestTriggerContractWorkflow(t *testing.T) {
	repo := newFakeRepo()
	leadID := uuid.New()
	dir := &fakeDirectory{lead: LeadInfo{ID: leadID, Name: "Maria Lopez", Email: "maria@example.com"}}
	sender := newCountingSender()
	eng := newTestEngine(repo, dir, repository.RoutingRules{}, sender)

	con := ContractRef{Number: "CON-2026-0007", URL: "https://crm.example.com/contracts/def", TotalCents: 410391}
	result, err := eng.TriggerContractWorkflow(context.Background(), leadID, con)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sender.byKind["contract_signed"] != 1 {
		t.Fatalf("expected the signed-contract confirmation emailed to the client, got %d sends", sender.byKind["contract_signed"])
	}
	if sender.byKind["contract"] != 0 {
		t.Fatalf("expected no second copy of the signing email, got %d sends", sender.byKind["contract"])
	}
	if result.TasksCreated != 4 {
		t.Fatalf("expected 4 kickoff tasks, got %d", result.TasksCreated)
	}
	types := make(map[string]bool)
	for _, task := range repo.tasks {
		types[task.TaskType] = true
	}
	for _, want := range []string{"site_measurement", "order_materials", "schedule_fabrication", "schedule_installation"} {
		if !types[want] {
			t.Fatalf("missing kickoff task %s, created %v", want, types)
		}
	}
}

func TestTriggerContractWorkflow_TaskFailureStopsRun(t *testing.T) {
	repo := newFakeRepo()
	repo.failTaskType = "order_materials"
	leadID := uuid.New()
	dir := &fakeDirectory{lead: LeadInfo{ID: leadID, Name: "Maria Lopez", Email: "maria@example.com"}}
	eng := newTestEngine(repo, dir, repository.RoutingRules{}, newCountingSender())

	result, err := eng.TriggerContractWorkflow(context.Background(), leadID, ContractRef{Number: "CON-2026-0008"})
	if err == nil {
		t.Fatal("expected the failed insert to surface")
	}
	if result.TasksCreated != 1 {
		t.Fatalf("expected only the first kickoff task, got %d", result.TasksCreated)
	}
}

func TestProcessScheduledNotifications_FailureIsolation(t *testing.T) {
	repo := newFakeRepo()
	good1 := repository.ScheduledNotification{ID: uuid.New(), Kind: email.KindConsultation, Recipient: "ok1@example.com", Status: repository.NotificationStatusScheduled}
	bad := repository.ScheduledNotification{ID: uuid.New(), Kind: email.KindFollowUp, Recipient: "bad@example.com", Status: repository.NotificationStatusScheduled}
	good2 := repository.ScheduledNotification{ID: uuid.New(), Kind: email.KindOffer, Recipient: "ok2@example.com", Status: repository.NotificationStatusScheduled}
	repo.due = []repository.ScheduledNotification{good1, bad, good2}

	sender := newCountingSender()
	sender.failAddrs["bad@example.com"] = true
	eng := newTestEngine(repo, &fakeDirectory{}, repository.RoutingRules{}, sender)

	result, err := eng.ProcessScheduledNotifications(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Processed != 3 || result.Sent != 2 || result.Failed != 1 {
		t.Fatalf("expected 3/2/1 processed/sent/failed, got %d/%d/%d", result.Processed, result.Sent, result.Failed)
	}
	if len(repo.sent) != 2 {
		t.Fatalf("expected 2 rows marked sent, got %d", len(repo.sent))
	}
	if _, ok := repo.failed[bad.ID]; !ok {
		t.Fatal("expected the bad row marked failed")
	}
}

func TestProcessScheduledNotifications_MissingRecipientFails(t *testing.T) {
	repo := newFakeRepo()
	noAddr := repository.ScheduledNotification{ID: uuid.New(), Kind: email.KindOffer, Status: repository.NotificationStatusScheduled}
	repo.due = []repository.ScheduledNotification{noAddr}
	eng := newTestEngine(repo, &fakeDirectory{}, repository.RoutingRules{}, newCountingSender())

	result, err := eng.ProcessScheduledNotifications(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected the recipient-less row to fail, got %+v", result)
	}
}

func TestDispatchNotification_SkipsAlreadySent(t *testing.T) {
	repo := newFakeRepo()
	sender := newCountingSender()
	eng := newTestEngine(repo, &fakeDirectory{}, repository.RoutingRules{}, sender)

	already := repository.ScheduledNotification{ID: uuid.New(), Kind: email.KindOffer, Recipient: "ok@example.com", Status: repository.NotificationStatusSent}
	if err := eng.DispatchNotification(context.Background(), already); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.byKind[email.KindOffer] != 0 {
		t.Fatal("expected no send for an already handled notification")
	}
	if len(repo.sent) != 0 {
		t.Fatal("expected no status update for an already handled notification")
	}
}

func TestDispatchNotification_SendsScheduled(t *testing.T) {
	repo := newFakeRepo()
	sender := newCountingSender()
	eng := newTestEngine(repo, &fakeDirectory{}, repository.RoutingRules{}, sender)

	scheduled := repository.ScheduledNotification{ID: uuid.New(), Kind: email.KindConsultation, Recipient: "ok@example.com", Status: repository.NotificationStatusScheduled}
	if err := eng.DispatchNotification(context.Background(), scheduled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.byKind[email.KindConsultation] != 1 {
		t.Fatalf("expected one consultation send, got %d", sender.byKind[email.KindConsultation])
	}
	if len(repo.sent) != 1 || repo.sent[0] != scheduled.ID {
		t.Fatalf("expected the row marked sent, got %v", repo.sent)
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"mandate-reconciler/internal/domain"
	"mandate-reconciler/internal/repository"
)

var testToday = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

const (
	todayStamp     = "2026-08-31T08:00:00Z"
	yesterdayStamp = "2026-08-30T08:00:00Z"
	lastWeekStamp  = "2026-08-24T08:00:00Z"
)

type fakePlans struct {
	plan      *domain.PaymentPlan
	planErr   error
	updates   []*domain.PlanUpdate
	updateErr error
	status    string
	statusErr error
}

func (f *fakePlans) GetPlan(ctx context.Context, planID string) (*domain.PaymentPlan, error) {
	return f.plan, f.planErr
}

func (f *fakePlans) UpdatePlan(ctx context.Context, planID string, update *domain.PlanUpdate) error {
	f.updates = append(f.updates, update)
	return f.updateErr
}

func (f *fakePlans) MandateStatus(ctx context.Context, planID string, scheduleID, instalmentID int64) (string, error) {
	return f.status, f.statusErr
}

type resolveCall struct {
	ref   domain.ProposalRef
	table string
}

type fakeIdentity struct {
	id    domain.ProposalID
	err   error
	calls []resolveCall
}

func (f *fakeIdentity) Resolve(ctx context.Context, ref domain.ProposalRef, table string) (domain.ProposalID, error) {
	f.calls = append(f.calls, resolveCall{ref: ref, table: table})
	return f.id, f.err
}

type fakePricing struct {
	premium    *domain.Premium
	premiumErr error
	valid      bool
	validErr   error
	validated  []domain.ProposalID
}

func (f *fakePricing) LatestPremium(ctx context.Context, ref domain.ProposalRef) (*domain.Premium, error) {
	return f.premium, f.premiumErr
}

func (f *fakePricing) ValidateMandate(ctx context.Context, id domain.ProposalID) (bool, error) {
	f.validated = append(f.validated, id)
	return f.valid, f.validErr
}

type cancelCall struct {
	id     domain.ProposalID
	reason string
}

type fakeMandates struct {
	cancels     []cancelCall
	cancelErr   error
	optOuts     []domain.ProposalRef
	optOutErr   error
	callbacks   [][]byte
	callbackErr error
}

func (f *fakeMandates) Cancel(ctx context.Context, id domain.ProposalID, reason string) error {
	f.cancels = append(f.cancels, cancelCall{id: id, reason: reason})
	return f.cancelErr
}

func (f *fakeMandates) OptOut(ctx context.Context, ref domain.ProposalRef) error {
	f.optOuts = append(f.optOuts, ref)
	return f.optOutErr
}

func (f *fakeMandates) ForwardPaymentCallback(ctx context.Context, raw []byte) error {
	f.callbacks = append(f.callbacks, raw)
	return f.callbackErr
}

type fakeEvents struct {
	emitted []domain.Premium
	err     error
}

func (f *fakeEvents) PricingChanged(ctx context.Context, ref domain.ProposalRef, premium domain.Premium) error {
	f.emitted = append(f.emitted, premium)
	return f.err
}

type fakeAudit struct {
	records []repository.ReconciliationRecord
}

func (f *fakeAudit) Record(ctx context.Context, rec repository.ReconciliationRecord) error {
	f.records = append(f.records, rec)
	return nil
}

type fixture struct {
	plans    *fakePlans
	identity *fakeIdentity
	pricing  *fakePricing
	mandates *fakeMandates
	events   *fakeEvents
	audit    *fakeAudit
	engine   *Reconciler
}

func newFixture() *fixture {
	f := &fixture{
		plans: &fakePlans{
			plan: &domain.PaymentPlan{
				Schedules: []domain.Schedule{
					{
						ScheduleID:          4,
						ScheduleReferenceID: "REF-OLD",
						GrossAmount:         2400,
						BreakUp:             domain.BreakUp{NetAmount: 2000, TaxBreakUp: []domain.TaxComponent{{Value: 400}}},
						Instalments: []domain.Instalment{
							{InstalmentID: 9, GrossAmount: 1100, BreakUp: domain.BreakUp{NetAmount: 900, TaxBreakUp: []domain.TaxComponent{{Value: 200}}}},
						},
					},
					{
						ScheduleID:          5,
						ScheduleReferenceID: "REF-LATEST",
						GrossAmount:         1100,
						BreakUp:             domain.BreakUp{NetAmount: 900, TaxBreakUp: []domain.TaxComponent{{Value: 200}}},
						Instalments: []domain.Instalment{
							{InstalmentID: 9, GrossAmount: 1100, BreakUp: domain.BreakUp{NetAmount: 900, TaxBreakUp: []domain.TaxComponent{{Value: 200}}}},
						},
					},
				},
			},
			status: "active",
		},
		identity: &fakeIdentity{id: "12345"},
		pricing:  &fakePricing{valid: true, premium: &domain.Premium{GrossPremium: 1200, NetPremium: 1000, GST: 200}},
		mandates: &fakeMandates{},
		events:   &fakeEvents{},
		audit:    &fakeAudit{},
	}
	f.engine = NewReconciler(f.plans, f.identity, f.pricing, f.mandates, f.events, f.audit)
	f.engine.now = func() time.Time { return testToday }
	return f
}

func paymentReminder() domain.MandateEvent {
	return domain.MandateEvent{
		EventType:           domain.EventPaymentReminder,
		ScheduleReferenceID: "R1",
		PaymentsPlanID:      "P1",
		ScheduleID:          5,
		InstallmentID:       9,
		NotificationDate:    todayStamp,
		ScheduledDate:       todayStamp,
	}
}

func TestReconcile_MandateReminderCancelsLatestSchedule(t *testing.T) {
	f := newFixture()

	event := domain.MandateEvent{EventType: domain.EventMandateReminder, PaymentsPlanID: "P1"}
	if err := f.engine.Reconcile(context.Background(), event, nil); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if len(f.identity.calls) != 1 {
		t.Fatalf("expected one resolve call, got %d", len(f.identity.calls))
	}
	if f.identity.calls[0].ref != "REF-LATEST" || f.identity.calls[0].table != domain.ProposalTable {
		t.Fatalf("resolved wrong ref/table: %+v", f.identity.calls[0])
	}
	if len(f.mandates.cancels) != 1 {
		t.Fatalf("expected one cancel, got %d", len(f.mandates.cancels))
	}
	if f.mandates.cancels[0].id != "12345" || f.mandates.cancels[0].reason != domain.CancelReasonMandateFailed {
		t.Fatalf("wrong cancel request: %+v", f.mandates.cancels[0])
	}
}

func TestReconcile_MandateReminderIsBestEffort(t *testing.T) {
	f := newFixture()
	f.plans.planErr = errors.New("payment service down")

	event := domain.MandateEvent{EventType: domain.EventMandateReminder, PaymentsPlanID: "P1"}
	if err := f.engine.Reconcile(context.Background(), event, nil); err != nil {
		t.Fatalf("cancellation failures must not propagate, got %v", err)
	}
	if len(f.mandates.cancels) != 0 {
		t.Fatal("cancel should not have been issued")
	}

	f = newFixture()
	f.mandates.cancelErr = &domain.UpstreamError{Service: "orchestrator", Status: 500}
	if err := f.engine.Reconcile(context.Background(), event, nil); err != nil {
		t.Fatalf("cancel rejection must not propagate, got %v", err)
	}
}

func TestReconcile_PaymentReminderRefreshEndToEnd(t *testing.T) {
	f := newFixture()

	if err := f.engine.Reconcile(context.Background(), paymentReminder(), nil); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if len(f.plans.updates) != 1 {
		t.Fatalf("expected exactly one plan update, got %d", len(f.plans.updates))
	}
	update := f.plans.updates[0]
	if len(update.Schedules) != 1 || update.Schedules[0].ScheduleID != 5 {
		t.Fatalf("update should carry schedule 5 only: %+v", update)
	}
	inst := update.Schedules[0].Instalments[0]
	if inst.GrossAmount != 1200 || inst.BreakUp.NetAmount != 1000 || inst.BreakUp.TaxBreakUp[0].Value != 200 {
		t.Fatalf("instalment 9 not refreshed to quoted premium: %+v", inst)
	}

	if len(f.mandates.optOuts) != 0 || len(f.mandates.cancels) != 0 {
		t.Fatal("refresh path must not opt out or cancel")
	}
	if len(f.events.emitted) != 1 {
		t.Fatalf("expected one pricing change event, got %d", len(f.events.emitted))
	}
	if len(f.pricing.validated) != 1 || f.pricing.validated[0] != "12345" {
		t.Fatalf("mandate validated with wrong id: %v", f.pricing.validated)
	}
}

func TestReconcile_NoSelectedPlanOptsOutOnce(t *testing.T) {
	f := newFixture()
	f.pricing.premium = nil
	// even a pending stale opt-out must not fire after the pricing opt-out
	event := paymentReminder()
	event.ScheduledDate = yesterdayStamp
	f.plans.status = domain.MandateStatusNotifyFailed

	if err := f.engine.Reconcile(context.Background(), event, nil); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	if len(f.mandates.optOuts) != 1 {
		t.Fatalf("expected exactly one opt-out, got %d", len(f.mandates.optOuts))
	}
	if f.mandates.optOuts[0] != "R1" {
		t.Fatalf("opt-out should use the event's schedule reference, got %s", f.mandates.optOuts[0])
	}
	if len(f.plans.updates) != 0 {
		t.Fatal("no instalment mutation may happen without a premium")
	}
}

func TestReconcile_PricingFetchErrorBehavesLikeNoPlan(t *testing.T) {
	f := newFixture()
	f.pricing.premium = nil
	f.pricing.premiumErr = errors.New("orchestrator timeout")

	if err := f.engine.Reconcile(context.Background(), paymentReminder(), nil); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(f.mandates.optOuts) != 1 || len(f.plans.updates) != 0 {
		t.Fatalf("expected single opt-out and no update, got %d/%d", len(f.mandates.optOuts), len(f.plans.updates))
	}
}

func TestReconcile_NotificationDateGate(t *testing.T) {
	// stale notification date: refresh skipped, stale check still runs
	f := newFixture()
	event := paymentReminder()
	event.NotificationDate = yesterdayStamp
	event.ScheduledDate = yesterdayStamp
	f.plans.status = domain.MandateStatusNotifyFailed

	if err := f.engine.Reconcile(context.Background(), event, nil); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(f.plans.updates) != 0 {
		t.Fatal("refresh must be gated by notification date")
	}
	if len(f.mandates.optOuts) != 1 {
		t.Fatalf("stale opt-out must run independently, got %d opt-outs", len(f.mandates.optOuts))
	}

	// malformed notification date fails open into the refresh
	f = newFixture()
	event = paymentReminder()
	event.NotificationDate = "garbage"
	if err := f.engine.Reconcile(context.Background(), event, nil); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(f.plans.updates) != 1 {
		t.Fatal("unparseable notification date must not block the refresh")
	}
}

func TestReconcile_InvalidMandateSkipsRefresh(t *testing.T) {
	f := newFixture()
	f.pricing.valid = false

	if err := f.engine.Reconcile(context.Background(), paymentReminder(), nil); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(f.plans.updates) != 0 || len(f.mandates.optOuts) != 0 {
		t.Fatal("invalid mandate must skip refresh without opting out")
	}
}

func TestReconcile_ResolveFailureDegradesToInvalid(t *testing.T) {
	f := newFixture()
	f.identity.err = &domain.UpstreamError{Service: "identity service", Status: 500}

	if err := f.engine.Reconcile(context.Background(), paymentReminder(), nil); err != nil {
		t.Fatalf("resolver failure must not fail the batch, got %v", err)
	}
	if len(f.pricing.validated) != 0 || len(f.plans.updates) != 0 {
		t.Fatal("refresh must be skipped when the ref cannot be resolved")
	}
}

func TestReconcile_ValidationTransportErrorPropagates(t *testing.T) {
	f := newFixture()
	f.pricing.validErr = errors.New("connection refused")

	if err := f.engine.Reconcile(context.Background(), paymentReminder(), nil); err == nil {
		t.Fatal("validation transport failure must fail the batch")
	}
}

func TestReconcile_MissingInstalmentPropagates(t *testing.T) {
	f := newFixture()
	event := paymentReminder()
	event.InstallmentID = 77

	err := f.engine.Reconcile(context.Background(), event, nil)
	if !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if len(f.plans.updates) != 0 {
		t.Fatal("no update may be pushed when the instalment is missing")
	}
}

func TestReconcile_StaleOptOutFailsOpen(t *testing.T) {
	// unparseable scheduled date opts out without a status lookup
	f := newFixture()
	event := paymentReminder()
	event.NotificationDate = yesterdayStamp // keep refresh path quiet
	event.ScheduledDate = "not-a-date"

	if err := f.engine.Reconcile(context.Background(), event, nil); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(f.mandates.optOuts) != 1 {
		t.Fatalf("expected fail-open opt-out, got %d", len(f.mandates.optOuts))
	}

	// status lookup failure also fails open
	f = newFixture()
	event.ScheduledDate = yesterdayStamp
	f.plans.statusErr = errors.New("payment service down")
	if err := f.engine.Reconcile(context.Background(), event, nil); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(f.mandates.optOuts) != 1 {
		t.Fatalf("expected fail-open opt-out, got %d", len(f.mandates.optOuts))
	}

	// a healthy mandate scheduled last week does nothing
	f = newFixture()
	event.ScheduledDate = lastWeekStamp
	f.plans.status = domain.MandateStatusNotifyFailed
	if err := f.engine.Reconcile(context.Background(), event, nil); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(f.mandates.optOuts) != 0 {
		t.Fatal("no opt-out expected outside the stale window")
	}
}

func TestReconcile_EmitFailureDoesNotAbortRefresh(t *testing.T) {
	f := newFixture()
	f.events.err = &domain.UpstreamError{Service: "r2d2", Status: 502}

	if err := f.engine.Reconcile(context.Background(), paymentReminder(), nil); err != nil {
		t.Fatalf("event emission is best-effort, got %v", err)
	}
	if len(f.plans.updates) != 1 {
		t.Fatal("refresh must proceed despite a failed event emit")
	}
}

func TestReconcile_PaymentExecutionForwardsRawPayload(t *testing.T) {
	f := newFixture()
	raw := []byte(`{"type":"payment","txn":"T1"}`)

	event := domain.MandateEvent{Type: domain.PayloadTypePayment}
	if err := f.engine.Reconcile(context.Background(), event, raw); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(f.mandates.callbacks) != 1 || string(f.mandates.callbacks[0]) != string(raw) {
		t.Fatalf("raw payload not forwarded: %v", f.mandates.callbacks)
	}

	// best-effort: forwarding errors stay inside the engine
	f = newFixture()
	f.mandates.callbackErr = errors.New("orchestrator down")
	if err := f.engine.Reconcile(context.Background(), event, raw); err != nil {
		t.Fatalf("callback failure must not propagate, got %v", err)
	}
}

func TestReconcile_UnknownShapeIgnored(t *testing.T) {
	f := newFixture()

	event := domain.MandateEvent{EventType: "something_else", Type: "sms"}
	if err := f.engine.Reconcile(context.Background(), event, nil); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(f.mandates.cancels)+len(f.mandates.optOuts)+len(f.mandates.callbacks)+len(f.plans.updates) != 0 {
		t.Fatal("unknown shapes must be ignored silently")
	}
	if len(f.audit.records) != 0 {
		t.Fatal("ignored events should not be audited")
	}
}

func TestReconcile_AuditsOutcomes(t *testing.T) {
	f := newFixture()

	if err := f.engine.Reconcile(context.Background(), paymentReminder(), nil); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(f.audit.records) != 1 {
		t.Fatalf("expected one audit record, got %d", len(f.audit.records))
	}
	if f.audit.records[0].Outcome != OutcomePremiumRefreshed {
		t.Fatalf("expected %s, got %s", OutcomePremiumRefreshed, f.audit.records[0].Outcome)
	}
}

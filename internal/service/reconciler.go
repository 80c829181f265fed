package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mandate-reconciler/internal/domain"
	"mandate-reconciler/internal/repository"
)

// Audit outcomes.
const (
	OutcomeMandateCancelled  = "mandate_cancelled"
	OutcomeCancelFailed      = "cancel_failed"
	OutcomePremiumRefreshed  = "premium_refreshed"
	OutcomeOptedOut          = "opted_out"
	OutcomeCallbackForwarded = "callback_forwarded"
	OutcomeCallbackFailed    = "callback_failed"
)

type PlanStore interface {
	GetPlan(ctx context.Context, planID string) (*domain.PaymentPlan, error)
	UpdatePlan(ctx context.Context, planID string, update *domain.PlanUpdate) error
	MandateStatus(ctx context.Context, planID string, scheduleID, instalmentID int64) (string, error)
}

type IdentityResolver interface {
	Resolve(ctx context.Context, ref domain.ProposalRef, table string) (domain.ProposalID, error)
}

type PricingSource interface {
	LatestPremium(ctx context.Context, ref domain.ProposalRef) (*domain.Premium, error)
	ValidateMandate(ctx context.Context, id domain.ProposalID) (bool, error)
}

type MandateGateway interface {
	Cancel(ctx context.Context, id domain.ProposalID, reason string) error
	OptOut(ctx context.Context, ref domain.ProposalRef) error
	ForwardPaymentCallback(ctx context.Context, raw []byte) error
}

type EventSink interface {
	PricingChanged(ctx context.Context, ref domain.ProposalRef, premium domain.Premium) error
}

type AuditLog interface {
	Record(ctx context.Context, rec repository.ReconciliationRecord) error
}

// Reconciler classifies each inbound mandate event and drives the upstream
// services to keep premium and mandate state consistent.
type Reconciler struct {
	plans    PlanStore
	identity IdentityResolver
	pricing  PricingSource
	mandates MandateGateway
	events   EventSink
	audit    AuditLog // optional

	now func() time.Time
}

func NewReconciler(plans PlanStore, identity IdentityResolver, pricing PricingSource, mandates MandateGateway, events EventSink, audit AuditLog) *Reconciler {
	return &Reconciler{
		plans:    plans,
		identity: identity,
		pricing:  pricing,
		mandates: mandates,
		events:   events,
		audit:    audit,
		now:      time.Now,
	}
}

// Reconcile handles one decoded event. raw is the undecoded record body, which
// payment-execution callbacks forward untouched.
//
// A returned error means the batch must fail and be redelivered; recoverable
// per-event failures are logged and swallowed here.
func (r *Reconciler) Reconcile(ctx context.Context, event domain.MandateEvent, raw []byte) error {
	switch {
	case event.EventType == domain.EventMandateReminder:
		r.cancelFailedMandate(ctx, event)
		return nil
	case event.EventType == domain.EventPaymentReminder:
		return r.reconcilePaymentReminder(ctx, event)
	case event.Type == domain.PayloadTypePayment:
		r.forwardPaymentExecution(ctx, event, raw)
		return nil
	default:
		// unrecognized shape, deliberately ignored
		return nil
	}
}

// cancelFailedMandate issues a cancellation for the proposal behind the
// plan's latest schedule. Best-effort: nothing here may fail the batch.
func (r *Reconciler) cancelFailedMandate(ctx context.Context, event domain.MandateEvent) {
	if err := r.cancel(ctx, event); err != nil {
		log.Printf("[reconciler] mandate cancel for plan %s failed: %v", event.PaymentsPlanID, err)
		r.record(ctx, event, OutcomeCancelFailed, err.Error())
		return
	}
	r.record(ctx, event, OutcomeMandateCancelled, "")
}

func (r *Reconciler) cancel(ctx context.Context, event domain.MandateEvent) error {
	plan, err := r.plans.GetPlan(ctx, event.PaymentsPlanID)
	if err != nil {
		return err
	}
	ref, err := plan.LatestScheduleRef()
	if err != nil {
		return err
	}
	id, err := r.identity.Resolve(ctx, ref, domain.ProposalTable)
	if err != nil {
		return err
	}
	return r.mandates.Cancel(ctx, id, domain.CancelReasonMandateFailed)
}

// reconcilePaymentReminder runs the pricing-refresh gates and, independently,
// the stale-notification opt-out check.
func (r *Reconciler) reconcilePaymentReminder(ctx context.Context, event domain.MandateEvent) error {
	ref := event.ScheduleReferenceID

	// Gate 1: only refresh on the day the reminder was raised. An unparseable
	// date counts as eligible so a reminder is never silently dropped.
	eligible := domain.SameDayEligibility(event.NotificationDate, r.now()).Allows()

	if eligible {
		valid, err := r.mandateDataValid(ctx, ref)
		if err != nil {
			return err
		}
		if valid {
			premium := r.latestPremium(ctx, ref)
			if premium == nil {
				// No refreshed price to charge against: withdraw consent and
				// stop; the stale-notification check must not double up.
				return r.optOut(ctx, event, "no selected plan for proposal")
			}
			if err := r.events.PricingChanged(ctx, ref, *premium); err != nil {
				log.Printf("[reconciler] pricing change event for %s failed: %v", ref, err)
			}
			if err := r.pushPremium(ctx, event, *premium); err != nil {
				return err
			}
			r.record(ctx, event, OutcomePremiumRefreshed,
				fmt.Sprintf("gross=%.2f net=%.2f gst=%.2f", premium.GrossPremium, premium.NetPremium, premium.GST))
		}
	}

	return r.staleNotificationOptOut(ctx, event)
}

// mandateDataValid is gate 2. A resolver failure degrades to "invalid" (the
// mandate cannot be validated without the internal id); a transport failure of
// the validation call itself propagates.
func (r *Reconciler) mandateDataValid(ctx context.Context, ref domain.ProposalRef) (bool, error) {
	id, err := r.identity.Resolve(ctx, ref, domain.ProposalTable)
	if err != nil {
		log.Printf("[reconciler] proposal resolve for %s failed: %v", ref, err)
		return false, nil
	}
	return r.pricing.ValidateMandate(ctx, id)
}

// latestPremium treats any pricing failure as "no premium available"; the
// caller turns that into an opt-out.
func (r *Reconciler) latestPremium(ctx context.Context, ref domain.ProposalRef) *domain.Premium {
	premium, err := r.pricing.LatestPremium(ctx, ref)
	if err != nil {
		log.Printf("[reconciler] pricing fetch for %s failed: %v", ref, err)
		return nil
	}
	return premium
}

// pushPremium fetches the plan, rewrites the event's instalment to the quoted
// premium and pushes the modified schedule back. A missing schedule or
// instalment propagates; updating the wrong thing silently is worse than
// failing the batch.
func (r *Reconciler) pushPremium(ctx context.Context, event domain.MandateEvent, premium domain.Premium) error {
	plan, err := r.plans.GetPlan(ctx, event.PaymentsPlanID)
	if err != nil {
		return err
	}
	update, err := plan.ApplyPremium(event.ScheduleID, event.InstallmentID, premium)
	if err != nil {
		return err
	}
	return r.plans.UpdatePlan(ctx, event.PaymentsPlanID, update)
}

// staleNotificationOptOut is gate 3: if the scheduled debit was yesterday and
// its mandate notification failed, withdraw consent. Both an unparseable
// scheduled_date and a failed status lookup fail open into the opt-out,
// preferring over-cancelling to silently retaining a broken mandate.
func (r *Reconciler) staleNotificationOptOut(ctx context.Context, event domain.MandateEvent) error {
	shouldOptOut := false
	switch domain.StaleNotificationEligibility(event.ScheduledDate, r.now()) {
	case domain.EligibilityUnknown:
		shouldOptOut = true
	case domain.Eligible:
		status, err := r.plans.MandateStatus(ctx, event.PaymentsPlanID, event.ScheduleID, event.InstallmentID)
		if err != nil {
			log.Printf("[reconciler] mandate status for plan %s failed: %v", event.PaymentsPlanID, err)
			shouldOptOut = true
		} else {
			shouldOptOut = status == domain.MandateStatusNotifyFailed
		}
	}
	if !shouldOptOut {
		return nil
	}
	return r.optOut(ctx, event, "mandate notification failed before debit")
}

// optOut withdraws consent for the event's schedule reference. A rejection
// from the orchestrator is logged and swallowed; a transport failure
// propagates so the batch is redelivered.
func (r *Reconciler) optOut(ctx context.Context, event domain.MandateEvent, why string) error {
	if err := r.mandates.OptOut(ctx, event.ScheduleReferenceID); err != nil {
		var upstream *domain.UpstreamError
		if !errors.As(err, &upstream) {
			return err
		}
		log.Printf("[reconciler] opt-out for %s rejected: %v", event.ScheduleReferenceID, err)
		why = fmt.Sprintf("%s (rejected: %v)", why, err)
	}
	r.record(ctx, event, OutcomeOptedOut, why)
	return nil
}

// forwardPaymentExecution relays a payment-execution payload to the
// orchestrator. Best-effort.
func (r *Reconciler) forwardPaymentExecution(ctx context.Context, event domain.MandateEvent, raw []byte) {
	if err := r.mandates.ForwardPaymentCallback(ctx, raw); err != nil {
		log.Printf("[reconciler] payment callback forward failed: %v", err)
		r.record(ctx, event, OutcomeCallbackFailed, err.Error())
		return
	}
	r.record(ctx, event, OutcomeCallbackForwarded, "")
}

func (r *Reconciler) record(ctx context.Context, event domain.MandateEvent, outcome, detail string) {
	if r.audit == nil {
		return
	}
	_ = r.audit.Record(ctx, repository.ReconciliationRecord{
		EventType:      event.EventType,
		ProposalRef:    string(event.ScheduleReferenceID),
		PaymentsPlanID: event.PaymentsPlanID,
		ScheduleID:     event.ScheduleID,
		InstalmentID:   event.InstallmentID,
		Outcome:        outcome,
		Detail:         detail,
		CreatedAt:      r.now().UTC(),
	})
}

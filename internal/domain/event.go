package domain

// Event types carried by mandate notification records.
const (
	EventMandateReminder = "mandate_reminder"
	EventPaymentReminder = "payment_reminder"

	// PayloadTypePayment marks a payment-execution callback; such records have
	// no event_type and are detected by their "type" field instead.
	PayloadTypePayment = "payment"
)

// MandateEvent is one decoded queue record. It lives for exactly one dispatch
// cycle and is never persisted locally.
type MandateEvent struct {
	EventType           string      `json:"event_type"`
	ScheduleReferenceID ProposalRef `json:"schedule_reference_id"`
	PaymentsPlanID      string      `json:"payments_plan_id"`
	ScheduleID          int64       `json:"schedule_id"`
	// The queue payload spells it "installment", the payment service spells it
	// "instalment". Both spellings are load-bearing wire contracts.
	InstallmentID    int64  `json:"installment_id"`
	NotificationDate string `json:"notification_date"`
	ScheduledDate    string `json:"scheduled_date"`
	Type             string `json:"type"`
}

// MandateStatusNotifyFailed is the transaction-details status that triggers a
// stale-notification opt-out.
const MandateStatusNotifyFailed = "notify_failed"

// CancelReasonMandateFailed is the reason sent with cancellations raised from
// mandate failure reminders.
const CancelReasonMandateFailed = "Mandate Failed by User"

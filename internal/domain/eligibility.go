package domain

import "time"

// Eligibility is the outcome of a temporal gate check. Unknown means the input
// could not be parsed; callers treat Unknown as eligible, preferring to act on
// a reminder over silently dropping it.
type Eligibility int

const (
	Eligible Eligibility = iota
	Ineligible
	EligibilityUnknown
)

// NotificationTimeLayout is the timestamp format used by the mandate
// notification feed.
const NotificationTimeLayout = "2006-01-02T15:04:05Z"

// Allows reports whether a gate with this outcome lets processing proceed.
func (e Eligibility) Allows() bool { return e != Ineligible }

func (e Eligibility) String() string {
	switch e {
	case Eligible:
		return "eligible"
	case Ineligible:
		return "ineligible"
	default:
		return "unknown"
	}
}

// SameDayEligibility checks whether the notification was raised today.
func SameDayEligibility(notificationDate string, today time.Time) Eligibility {
	t, err := time.Parse(NotificationTimeLayout, notificationDate)
	if err != nil {
		return EligibilityUnknown
	}
	if sameDate(t, today) {
		return Eligible
	}
	return Ineligible
}

// StaleNotificationEligibility checks whether the scheduled debit date was
// yesterday, i.e. the notification window has just lapsed.
func StaleNotificationEligibility(scheduledDate string, today time.Time) Eligibility {
	t, err := time.Parse(NotificationTimeLayout, scheduledDate)
	if err != nil {
		return EligibilityUnknown
	}
	if sameDate(t.AddDate(0, 0, 1), today) {
		return Eligible
	}
	return Ineligible
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

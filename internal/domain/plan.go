package domain

import "fmt"

// TaxComponent is one entry of a tax break-up. The first entry is the GST
// component on every plan this system touches.
type TaxComponent struct {
	Name  string  `json:"name,omitempty"`
	Value float64 `json:"value"`
}

// BreakUp splits a gross amount into its net amount and tax components.
type BreakUp struct {
	NetAmount  float64        `json:"net_amount"`
	TaxBreakUp []TaxComponent `json:"tax_break_up"`
}

// Instalment is one scheduled debit within a schedule.
type Instalment struct {
	InstalmentID int64   `json:"instalment_id"`
	GrossAmount  float64 `json:"gross_amount"`
	BreakUp      BreakUp `json:"break_up"`
}

// Schedule is one version of a payment schedule. Its aggregate amounts always
// equal the sum of its instalments' corresponding amounts.
type Schedule struct {
	ScheduleID          int64        `json:"schedule_id"`
	ScheduleReferenceID ProposalRef  `json:"schedule_reference_id"`
	GrossAmount         float64      `json:"gross_amount"`
	BreakUp             BreakUp      `json:"break_up"`
	Instalments         []Instalment `json:"instalments"`
}

// PaymentPlan is the payment service's aggregate for one payments_plan_id.
// The reconciler only ever holds a request-scoped copy of it.
type PaymentPlan struct {
	Schedules []Schedule `json:"schedules"`
}

// PlanUpdate is the partial payload posted back to the payment service: only
// the schedule that changed.
type PlanUpdate struct {
	Schedules []Schedule `json:"schedules"`
}

// Premium is the latest quoted price for a proposal.
type Premium struct {
	GrossPremium float64
	NetPremium   float64
	GST          float64
}

// LatestScheduleRef returns the schedule_reference_id of the schedule with the
// highest schedule_id.
func (p *PaymentPlan) LatestScheduleRef() (ProposalRef, error) {
	if len(p.Schedules) == 0 {
		return "", fmt.Errorf("payment plan has no schedules")
	}
	latest := p.Schedules[0]
	for _, s := range p.Schedules[1:] {
		if s.ScheduleID > latest.ScheduleID {
			latest = s
		}
	}
	if latest.ScheduleReferenceID.IsZero() {
		return "", fmt.Errorf("latest schedule %d has no schedule_reference_id", latest.ScheduleID)
	}
	return latest.ScheduleReferenceID, nil
}

// ApplyPremium sets the identified instalment's amounts to the quoted premium
// and adjusts the owning schedule's aggregates by the per-field delta. The
// payment service's update contract wants the parent moved by the delta of the
// edited instalment, not recomputed from all instalments.
//
// The returned PlanUpdate carries only the modified schedule.
func (p *PaymentPlan) ApplyPremium(scheduleID, instalmentID int64, premium Premium) (*PlanUpdate, error) {
	var schedule *Schedule
	for i := range p.Schedules {
		if p.Schedules[i].ScheduleID == scheduleID {
			schedule = &p.Schedules[i]
			break
		}
	}
	if schedule == nil {
		return nil, &NotFoundError{Kind: "schedule", ID: scheduleID}
	}

	var instalment *Instalment
	for i := range schedule.Instalments {
		if schedule.Instalments[i].InstalmentID == instalmentID {
			instalment = &schedule.Instalments[i]
			break
		}
	}
	if instalment == nil {
		return nil, &NotFoundError{Kind: "instalment", ID: instalmentID}
	}
	if len(instalment.BreakUp.TaxBreakUp) == 0 {
		return nil, fmt.Errorf("instalment %d has no tax break up", instalmentID)
	}
	if len(schedule.BreakUp.TaxBreakUp) == 0 {
		return nil, fmt.Errorf("schedule %d has no tax break up", scheduleID)
	}

	prevGross := instalment.GrossAmount
	prevNet := instalment.BreakUp.NetAmount
	prevGST := instalment.BreakUp.TaxBreakUp[0].Value

	instalment.GrossAmount = premium.GrossPremium
	instalment.BreakUp.NetAmount = premium.NetPremium
	instalment.BreakUp.TaxBreakUp[0].Value = premium.GST

	schedule.GrossAmount = schedule.GrossAmount - prevGross + premium.GrossPremium
	schedule.BreakUp.NetAmount = schedule.BreakUp.NetAmount - prevNet + premium.NetPremium
	schedule.BreakUp.TaxBreakUp[0].Value = schedule.BreakUp.TaxBreakUp[0].Value - prevGST + premium.GST

	return &PlanUpdate{Schedules: []Schedule{*schedule}}, nil
}

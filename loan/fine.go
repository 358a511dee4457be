package loan

import (
	"time"

	"github.com/warp/equipment-loan/generic"
)

// =============================================================================
// OVERDUE FINE
// =============================================================================

// DefaultFinePerDay is the daily fine in rupiah.
const DefaultFinePerDay = 5000

// FinePolicy holds the tunables of the fine calculation.
type FinePolicy struct {
	PerDay   generic.Money
	Location *time.Location
}

// DefaultFinePolicy charges Rp 5.000 per overdue day counted in WIB.
func DefaultFinePolicy() FinePolicy {
	return FinePolicy{
		PerDay:   generic.NewMoney(DefaultFinePerDay, generic.CurrencyIDR),
		Location: DefaultLocation,
	}
}

// FineInput is everything the calculation looks at. It is built from the
// loan by FineInputFor so the calculation itself stays pure.
type FineInput struct {
	Status     Status
	DueDate    generic.TimePoint
	NoFine     bool
	FinePaused bool
	PausedAt   generic.TimePoint
	Now        time.Time
}

// Fine is the computed overdue fine.
type Fine struct {
	DaysOverdue int               `json:"daysOverdue"`
	Amount      generic.Money     `json:"fineAmount"`
	Reference   generic.TimePoint `json:"reference"`
	Paused      bool              `json:"paused,omitempty"`
	Warnings    []Warning         `json:"warnings,omitempty"`
}

// FineEligible reports whether a loan in status s accrues fines. The
// equipment is still with the borrower in each of these.
func FineEligible(s Status) bool {
	switch s {
	case StatusBorrowed, StatusReturnRequested, StatusReturnFollowUp, StatusReturnRejected:
		return true
	}
	return false
}

// FineInputFor collects the fine inputs from a loan.
func FineInputFor(l *Loan, status Status, due generic.TimePoint, now time.Time) FineInput {
	in := FineInput{Status: status, DueDate: due, Now: now}
	if l != nil && l.ReturnStatus != nil {
		in.NoFine = l.ReturnStatus.NoFine
		in.FinePaused = l.ReturnStatus.FinePaused
		in.PausedAt = l.ReturnStatus.FinePausedAt
	}
	return in
}

// Calculate returns nil when no fine applies at all (ineligible status,
// waived, or no usable due date) and a zero fine when the loan is eligible
// but not overdue.
func (p FinePolicy) Calculate(in FineInput) *Fine {
	if !FineEligible(in.Status) || in.NoFine || !in.DueDate.Valid() {
		return nil
	}
	loc := p.Location
	if loc == nil {
		loc = DefaultLocation
	}
	perDay := p.PerDay
	if perDay.Currency == "" {
		perDay = generic.NewMoney(DefaultFinePerDay, generic.CurrencyIDR)
	}

	fine := &Fine{Paused: in.FinePaused}
	ref := generic.At(in.Now)
	if in.FinePaused {
		switch {
		case in.PausedAt.Valid() && in.PausedAt.Time.Before(in.Now):
			ref = in.PausedAt
		case !in.PausedAt.Valid():
			fine.Warnings = append(fine.Warnings, Warning{
				Code:    WarnMissingPauseTime,
				Field:   "returnStatus.finePausedAt",
				Value:   in.PausedAt.Raw,
				Message: "fine paused without a pause instant; counting to now",
			})
		}
	}
	fine.Reference = ref

	days := generic.DaysBetween(in.DueDate.CalendarDay(loc), ref.CalendarDay(loc))
	if days < 0 {
		days = 0
	}
	fine.DaysOverdue = days
	fine.Amount = perDay.MulInt(days)
	return fine
}

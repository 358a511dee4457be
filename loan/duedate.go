package loan

import (
	"fmt"

	"github.com/warp/equipment-loan/generic"
)

// =============================================================================
// EFFECTIVE DUE DATE
// =============================================================================

// DueDateSource tells where the effective due date came from.
type DueDateSource string

const (
	SourceSubmitted DueDateSource = "submitted"
	SourceExtension DueDateSource = "extension"
)

// DueDate is the date fines and durations are computed against.
type DueDate struct {
	Date   generic.TimePoint `json:"date"`
	Source DueDateSource     `json:"source"`
	// ExtensionIndex is the position in the extension history that supplied
	// the date, or -1.
	ExtensionIndex int       `json:"extensionIndex"`
	Warnings       []Warning `json:"warnings,omitempty"`
}

// ResolveDueDate returns the requested return date of the latest approved
// extension, falling back to the submitted return date. Array order is
// authoritative: an older approval never wins over a newer one. Approved
// entries with an unparseable date are skipped with a warning.
func ResolveDueDate(l *Loan) DueDate {
	if l == nil {
		return DueDate{Source: SourceSubmitted, ExtensionIndex: -1}
	}

	var warnings []Warning
	for i := len(l.Extensions) - 1; i >= 0; i-- {
		ext := l.Extensions[i]
		if ext.ApproveStatus.Kind() != KindApproved {
			continue
		}
		if !ext.RequestedReturnDate.Valid() {
			warnings = append(warnings, Warning{
				Code:    WarnMalformedDate,
				Field:   fmt.Sprintf("extendStatus[%d].requestedReturnDate", i),
				Value:   ext.RequestedReturnDate.Raw,
				Message: "approved extension has no usable date; skipped",
			})
			continue
		}
		return DueDate{
			Date:           ext.RequestedReturnDate,
			Source:         SourceExtension,
			ExtensionIndex: i,
			Warnings:       warnings,
		}
	}

	if l.ReturnDate.Malformed() {
		warnings = append(warnings, Warning{
			Code:    WarnMalformedDate,
			Field:   "returnDate",
			Value:   l.ReturnDate.Raw,
			Message: "submitted return date is not a date",
		})
	}
	return DueDate{
		Date:           l.ReturnDate,
		Source:         SourceSubmitted,
		ExtensionIndex: -1,
		Warnings:       warnings,
	}
}

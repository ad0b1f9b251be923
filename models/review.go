package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReviewInput is an officer's decision on a pending violation.
type ReviewInput struct {
	Reviewer   string
	Decision   ViolationStatus
	FineAmount *decimal.Decimal
	Notes      string
}

// Validate checks the decision, reviewer and fine independent of any record.
func (in ReviewInput) Validate() error {
	if in.Decision != ViolationApproved && in.Decision != ViolationRejected {
		return NewValidationError("status", "decision must be APPROVED or REJECTED, got %q", in.Decision)
	}
	if strings.TrimSpace(in.Reviewer) == "" {
		return NewValidationError("reviewer", "reviewer is required")
	}
	if in.FineAmount != nil && in.FineAmount.IsNegative() {
		return NewValidationError("fineAmount", "fine amount must not be negative")
	}
	return nil
}

// ApplyReview moves v out of PENDING. It returns the updated copy and never
// mutates v, so callers can write the result in one step.
//
// A well-formed decision against a record that already left PENDING is an
// invalid transition regardless of the remaining fields.
func ApplyReview(v Violation, in ReviewInput, now time.Time) (Violation, error) {
	if in.Decision.Terminal() && v.Status != ViolationPending {
		return v, ErrInvalidTransition
	}
	if err := in.Validate(); err != nil {
		return v, err
	}
	if v.Status != ViolationPending {
		return v, ErrInvalidTransition
	}

	fine := decimal.Zero
	if in.Decision == ViolationApproved && in.FineAmount != nil {
		fine = *in.FineAmount
	}

	reviewer := strings.TrimSpace(in.Reviewer)
	reviewedAt := now

	next := v
	next.Status = in.Decision
	next.FineAmount = fine
	next.Reviewer = &reviewer
	next.ReviewTimestamp = &reviewedAt
	next.ReviewNotes = in.Notes
	return next, nil
}

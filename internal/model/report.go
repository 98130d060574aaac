package model

import "time"

// ReportStatus tracks an expense report through its lifecycle.
type ReportStatus string

// Report status constants.
const (
	ReportDraft     ReportStatus = "DRAFT"
	ReportGenerated ReportStatus = "GENERATED"
	ReportSubmitted ReportStatus = "SUBMITTED"
	ReportApproved  ReportStatus = "APPROVED"
	ReportDeleted   ReportStatus = "DELETED"
)

// ExpenseReport is the header row of one expense report. Line items carry the
// learning signal; the header carries status and ownership.
type ExpenseReport struct {
	CreatedAt time.Time
	ID        string
	UserID    string
	Status    ReportStatus
}

// ReportLine is one line item on an expense report, the unit the pattern
// learner consumes.
type ReportLine struct {
	Date        time.Time
	ID          string
	ReportID    string
	Description string
	Vendor      string
	GLCode      string
	Department  string
	Amount      float64
}

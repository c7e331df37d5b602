package model

import "time"

// ReportStatus is the review lifecycle of a community report
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportReviewing ReportStatus = "reviewing"
	ReportApproved  ReportStatus = "approved"
	ReportRejected  ReportStatus = "rejected"
)

// ReportStatuses lists every status in lifecycle order
var ReportStatuses = []ReportStatus{ReportPending, ReportReviewing, ReportApproved, ReportRejected}

// Valid reports whether s is a known status
func (s ReportStatus) Valid() bool {
	for _, x := range ReportStatuses {
		if x == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether a review may move a report from s to next
func (s ReportStatus) CanTransition(next ReportStatus) bool {
	switch s {
	case ReportPending:
		return next == ReportReviewing || next == ReportApproved || next == ReportRejected
	case ReportReviewing:
		return next == ReportApproved || next == ReportRejected || next == ReportPending
	}
	return false
}

// ReportSubmission is the caller input for a new community report
type ReportSubmission struct {
	SuspectName string   `json:"suspect_name" validate:"required,max=100"`
	Location    string   `json:"location,omitempty" validate:"max=200"`
	Description string   `json:"description" validate:"required,min=10"`
	Attachments []string `json:"attachments,omitempty" validate:"max=10,dive,url"`
	ReporterIP  string   `json:"reporter_ip,omitempty" validate:"omitempty,ip"`
}

// Report is a stored community report
type Report struct {
	ID          int64        `json:"id"`
	SuspectName string       `json:"suspect_name"`
	Location    string       `json:"location,omitempty"`
	Description string       `json:"description"`
	Attachments []string     `json:"attachments,omitempty"`
	Status      ReportStatus `json:"status"`
	ReviewNote  string       `json:"review_note,omitempty"`
	ReporterIP  string       `json:"reporter_ip,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NotificationPayload flattens a report for the notification collaborator
func (r Report) NotificationPayload() map[string]string {
	return map[string]string{
		"suspectName": r.SuspectName,
		"location":    r.Location,
		"description": r.Description,
		"reporterIp":  r.ReporterIP,
		"timestamp":   r.CreatedAt.Format(time.RFC3339),
	}
}

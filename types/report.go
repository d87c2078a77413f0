package types

import "time"

// Status is the lifecycle state of a report. Moderators and admins may move a
// report between any two statuses; none of them is terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInReview Status = "in_review"
	StatusResolved Status = "resolved"
	StatusRejected Status = "rejected"
)

// Statuses lists every valid status.
var Statuses = []Status{StatusPending, StatusInReview, StatusResolved, StatusRejected}

// Valid reports whether s is one of the four lifecycle statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInReview, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// Severity grades how serious the reported incident is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Urgency grades how quickly the reporter needs a response.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyNormal    Urgency = "normal"
	UrgencyLow       Urgency = "low"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyImmediate, UrgencyUrgent, UrgencyNormal, UrgencyLow:
		return true
	}
	return false
}

// ContactMethod is how the reporter prefers to be reached.
type ContactMethod string

const (
	ContactEmail ContactMethod = "email"
	ContactPhone ContactMethod = "phone"
	ContactSMS   ContactMethod = "sms"
)

func (c ContactMethod) Valid() bool {
	switch c {
	case ContactEmail, ContactPhone, ContactSMS:
		return true
	}
	return false
}

// Attachment is the metadata of an uploaded evidence file. The bytes live in
// object storage; only this descriptor is persisted with the report.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Report represents an incident submitted by a user.
// It carries the incident description, supporting evidence, contact
// preferences, and the moderation status.
type Report struct {
	// ID is the unique identifier of the report.
	ID int `json:"id" db:"id"`

	// OwnerID identifies the user who submitted the report.
	OwnerID int `json:"owner_id,omitempty" db:"owner_id"`

	// ReportNumber is the human-facing identifier REP-YYYYMMDD-NNNN.
	// It is assigned once when the report is first stored and never changes.
	ReportNumber string `json:"report_number" db:"report_number"`

	Title       string  `json:"title" db:"title"`
	Description string  `json:"description" db:"description"`
	Category    string  `json:"category" db:"category"`
	Subcategory *string `json:"subcategory" db:"subcategory"`

	// Tags are free-form labels kept in submission order.
	Tags []string `json:"tags" db:"tags"`

	// Location is where the incident happened.
	Location *string `json:"location" db:"location"`

	// IncidentDate is when the incident happened, if the reporter knows.
	IncidentDate *time.Time `json:"incident_date" db:"incident_date"`

	Severity Severity `json:"severity" db:"severity"`
	Urgency  Urgency  `json:"urgency" db:"urgency"`

	// EvidenceText holds free-form evidence such as links or notes.
	EvidenceText *string `json:"evidence_text" db:"evidence_text"`

	// FileAttachments describes uploaded evidence files.
	FileAttachments []Attachment `json:"file_attachments" db:"file_attachments"`

	ContactPhone           *string       `json:"contact_phone" db:"contact_phone"`
	PreferredContactMethod ContactMethod `json:"preferred_contact_method" db:"preferred_contact_method"`
	FollowUpRequested      bool          `json:"follow_up_requested" db:"follow_up_requested"`

	Witnesses       *string `json:"witnesses" db:"witnesses"`
	PerpetratorInfo *string `json:"perpetrator_info" db:"perpetrator_info"`

	// Anonymous hides the reporter's identity from views that are not
	// entitled to it.
	Anonymous bool `json:"anonymous" db:"anonymous"`

	// RelatedReportIDs links other reports about the same incident.
	// Duplicates are removed on write.
	RelatedReportIDs []int `json:"related_report_ids" db:"related_report_ids"`

	Status          Status  `json:"status" db:"status"`
	ResolutionNotes *string `json:"resolution_notes" db:"resolution_notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Owner is loaded alongside the report and rendered through ReportView.
	Owner *UserSummary `json:"-" db:"-"`
}

// ReportInput is the payload used to submit a new report.
type ReportInput struct {
	Title                  string        `json:"title"`
	Description            string        `json:"description"`
	Category               string        `json:"category"`
	Subcategory            string        `json:"subcategory"`
	Tags                   []string      `json:"tags"`
	Location               string        `json:"location"`
	IncidentDate           string        `json:"incident_date"`
	Severity               Severity      `json:"severity"`
	Urgency                Urgency       `json:"urgency"`
	EvidenceText           string        `json:"evidence_text"`
	FileAttachments        []Attachment  `json:"file_attachments"`
	ContactPhone           string        `json:"contact_phone"`
	PreferredContactMethod ContactMethod `json:"preferred_contact_method"`
	FollowUpRequested      bool          `json:"follow_up_requested"`
	Witnesses              string        `json:"witnesses"`
	PerpetratorInfo        string        `json:"perpetrator_info"`
	Anonymous              bool          `json:"anonymous"`
	RelatedReportIDs       []int         `json:"related_report_ids"`
}

// ReportPatch is a partial update. Keys missing from the payload are left
// untouched, explicit nulls clear optional fields. Which keys are applied
// depends on the caller's permissions; the rest are ignored.
type ReportPatch struct {
	Title                  Optional[string]        `json:"title"`
	Description            Optional[string]        `json:"description"`
	Category               Optional[string]        `json:"category"`
	Subcategory            Optional[string]        `json:"subcategory"`
	Tags                   Optional[[]string]      `json:"tags"`
	Location               Optional[string]        `json:"location"`
	IncidentDate           Optional[string]        `json:"incident_date"`
	Severity               Optional[Severity]      `json:"severity"`
	Urgency                Optional[Urgency]       `json:"urgency"`
	EvidenceText           Optional[string]        `json:"evidence_text"`
	FileAttachments        Optional[[]Attachment]  `json:"file_attachments"`
	ContactPhone           Optional[string]        `json:"contact_phone"`
	PreferredContactMethod Optional[ContactMethod] `json:"preferred_contact_method"`
	FollowUpRequested      Optional[bool]          `json:"follow_up_requested"`
	Witnesses              Optional[string]        `json:"witnesses"`
	PerpetratorInfo        Optional[string]        `json:"perpetrator_info"`
	RelatedReportIDs       Optional[[]int]         `json:"related_report_ids"`
	Status                 Optional[Status]        `json:"status"`
	ResolutionNotes        Optional[string]        `json:"resolution_notes"`
}

// ReportFilter narrows a report listing. Zero values match everything.
type ReportFilter struct {
	OwnerID  int
	Statuses []Status
}

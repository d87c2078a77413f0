package types

import "time"

// Stats is the admin dashboard snapshot. Every status and role key is
// present, zero when no rows match.
type Stats struct {
	TotalReports    int            `json:"total_reports"`
	ReportsByStatus map[Status]int `json:"reports_by_status"`
	TotalUsers      int            `json:"total_users"`
	UsersByRole     map[Role]int   `json:"users_by_role"`
}

// NewStats returns a snapshot with every key zero-filled.
func NewStats() Stats {
	stats := Stats{
		ReportsByStatus: make(map[Status]int, len(Statuses)),
		UsersByRole:     make(map[Role]int, len(Roles)),
	}
	for _, status := range Statuses {
		stats.ReportsByStatus[status] = 0
	}
	for _, role := range Roles {
		stats.UsersByRole[role] = 0
	}
	return stats
}

// ExportRow is one flattened report line of the CSV export.
type ExportRow struct {
	ID           int
	ReportNumber string
	OwnerEmail   string
	Title        string
	Category     string
	Status       Status
	Description  string
	EvidenceText string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ExportJob is the message published when an admin requests an
// asynchronous export.
type ExportJob struct {
	ID          string    `json:"id"`
	RequestedBy int       `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

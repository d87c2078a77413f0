package types

// AnonymousName replaces the reporter's email and name on redacted views.
const AnonymousName = "Anonymous"

// OwnerView is the reporter identity as rendered on a report. ID is null
// when the report is redacted.
type OwnerView struct {
	ID       *int   `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// ReportView is the serialized form of a report: the report fields plus the
// reporter identity, redacted when the viewer is not entitled to it.
type ReportView struct {
	Report
	Owner *OwnerView `json:"owner"`
}

// ReportDetail is a report view with its moderator notes attached.
type ReportDetail struct {
	ReportView
	Notes []ModeratorNote `json:"notes"`
}

// NewReportView renders a report. With redact set the owner id is dropped
// and the reporter is shown as Anonymous.
func NewReportView(report Report, redact bool) ReportView {
	view := ReportView{Report: report}
	if redact {
		view.Report.OwnerID = 0
		view.Owner = &OwnerView{
			Email:    AnonymousName,
			FullName: AnonymousName,
		}
		return view
	}
	if report.Owner != nil {
		id := report.Owner.ID
		view.Owner = &OwnerView{
			ID:       &id,
			Email:    report.Owner.Email,
			FullName: report.Owner.FullName,
		}
	}
	return view
}

package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/safeher/apiserver/internal/logging"
	"github.com/safeher/apiserver/internal/policy"
	"github.com/safeher/apiserver/internal/store"
	"github.com/safeher/apiserver/types"
)

const reportNumberAttempts = 3

// ListOptions narrows a report listing.
type ListOptions struct {
	// All lists every user's reports. Honored for moderators and admins only.
	All bool
	// Status keeps a single status. Empty keeps every status.
	Status string
}

// ReportService encapsulates report use-cases.
type ReportService struct {
	reports ReportRepository
	notes   NoteRepository
}

func NewReportService(reports ReportRepository, notes NoteRepository) *ReportService {
	return &ReportService{reports: reports, notes: notes}
}

// Create validates input and stores a new pending report owned by actor.
func (s *ReportService) Create(ctx context.Context, actor types.Actor, in types.ReportInput) (types.ReportView, error) {
	if actor.ID < 1 {
		return types.ReportView{}, ErrForbidden
	}

	report, err := buildReport(in)
	if err != nil {
		return types.ReportView{}, err
	}
	report.OwnerID = actor.ID
	report.Status = types.StatusPending

	created, err := s.createWithNumber(ctx, report)
	if err != nil {
		return types.ReportView{}, err
	}

	loaded, err := s.reports.Get(ctx, created.ID)
	if err != nil {
		return types.ReportView{}, err
	}
	return types.NewReportView(loaded, false), nil
}

// createWithNumber retries when the derived report number is already taken.
// The failed insert is rolled back, so the next attempt gets a fresh id.
func (s *ReportService) createWithNumber(ctx context.Context, report types.Report) (types.Report, error) {
	var err error
	for attempt := 0; attempt < reportNumberAttempts; attempt++ {
		var created types.Report
		created, err = s.reports.Create(ctx, report)
		if !errors.Is(err, store.ErrReportNumberTaken) {
			return created, err
		}
	}
	return types.Report{}, err
}

// Get returns a report with its notes if actor may read it.
func (s *ReportService) Get(ctx context.Context, actor types.Actor, id int) (types.ReportDetail, error) {
	report, err := s.reports.Get(ctx, id)
	if err != nil {
		return types.ReportDetail{}, err
	}
	decision := policy.Decide(actor, report, policy.ActionRead)
	if !decision.Allowed {
		return types.ReportDetail{}, ErrForbidden
	}

	notes, err := s.notes.ListByReport(ctx, id)
	if err != nil {
		return types.ReportDetail{}, err
	}
	return types.ReportDetail{
		ReportView: types.NewReportView(report, decision.RedactOwner),
		Notes:      notes,
	}, nil
}

// List returns the actor's own reports, or every report when opts.All is set
// by a moderator or admin. Newest first.
func (s *ReportService) List(ctx context.Context, actor types.Actor, opts ListOptions) ([]types.ReportView, error) {
	filter := types.ReportFilter{OwnerID: actor.ID}
	if opts.All && actor.Privileged() {
		filter.OwnerID = 0
	}
	if filter.OwnerID == 0 && !actor.Privileged() {
		return nil, ErrForbidden
	}

	if status := strings.TrimSpace(opts.Status); status != "" && status != "all" {
		st := types.Status(status)
		if !st.Valid() {
			return nil, invalid("status", "invalid status %q", status)
		}
		filter.Statuses = []types.Status{st}
	}

	reports, err := s.reports.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return renderViews(actor, reports), nil
}

// Update applies the fields of patch the actor may change. Keys outside
// that set are ignored. updated_at is refreshed even when nothing changes.
func (s *ReportService) Update(ctx context.Context, actor types.Actor, id int, patch types.ReportPatch) (types.ReportView, error) {
	var redact bool
	updated, err := s.reports.Update(ctx, id, func(report *types.Report) error {
		content := policy.Decide(actor, *report, policy.ActionUpdateContent)
		status := policy.Decide(actor, *report, policy.ActionUpdateStatus)
		if !content.Allowed && !status.Allowed {
			return ErrForbidden
		}
		redact = policy.Decide(actor, *report, policy.ActionRead).RedactOwner
		return applyPatch(report, patch, policy.UpdatableFields(actor, *report))
	})
	if err != nil {
		return types.ReportView{}, err
	}
	return types.NewReportView(updated, redact), nil
}

func renderViews(actor types.Actor, reports []types.Report) []types.ReportView {
	views := make([]types.ReportView, 0, len(reports))
	for _, report := range reports {
		decision := policy.Decide(actor, report, policy.ActionRead)
		if !decision.Allowed {
			continue
		}
		views = append(views, types.NewReportView(report, decision.RedactOwner))
	}
	return views
}

func buildReport(in types.ReportInput) (types.Report, error) {
	report := types.Report{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
	}
	switch {
	case report.Title == "":
		return types.Report{}, invalid("title", "title is required")
	case report.Description == "":
		return types.Report{}, invalid("description", "description is required")
	case report.Category == "":
		return types.Report{}, invalid("category", "category is required")
	}

	report.Severity = types.SeverityMedium
	if in.Severity != "" {
		if !in.Severity.Valid() {
			return types.Report{}, invalid("severity", "invalid severity %q", in.Severity)
		}
		report.Severity = in.Severity
	}
	report.Urgency = types.UrgencyNormal
	if in.Urgency != "" {
		if !in.Urgency.Valid() {
			return types.Report{}, invalid("urgency", "invalid urgency %q", in.Urgency)
		}
		report.Urgency = in.Urgency
	}
	report.PreferredContactMethod = types.ContactEmail
	if in.PreferredContactMethod != "" {
		if !in.PreferredContactMethod.Valid() {
			return types.Report{}, invalid("preferred_contact_method", "invalid contact method %q", in.PreferredContactMethod)
		}
		report.PreferredContactMethod = in.PreferredContactMethod
	}

	report.Subcategory = optionalString(in.Subcategory)
	report.Location = optionalString(in.Location)
	report.EvidenceText = optionalString(in.EvidenceText)
	report.ContactPhone = optionalString(in.ContactPhone)
	report.Witnesses = optionalString(in.Witnesses)
	report.PerpetratorInfo = optionalString(in.PerpetratorInfo)
	report.IncidentDate = parseIncidentDate(in.IncidentDate)
	report.Tags = cleanTags(in.Tags)
	report.FileAttachments = cleanAttachments(in.FileAttachments)
	report.RelatedReportIDs = uniqueIDs(in.RelatedReportIDs)
	report.FollowUpRequested = in.FollowUpRequested
	report.Anonymous = in.Anonymous
	if err := checkColumnLengths(report); err != nil {
		return types.Report{}, err
	}
	return report, nil
}

func applyPatch(report *types.Report, patch types.ReportPatch, fields policy.FieldSet) error {
	required := []struct {
		field policy.Field
		value types.Optional[string]
		dst   *string
	}{
		{policy.FieldTitle, patch.Title, &report.Title},
		{policy.FieldDescription, patch.Description, &report.Description},
		{policy.FieldCategory, patch.Category, &report.Category},
	}
	for _, f := range required {
		if !fields.Has(f.field) || !f.value.Set {
			continue
		}
		value := strings.TrimSpace(f.value.Value)
		if !f.value.Valid || value == "" {
			return invalid(string(f.field), "%s cannot be empty", f.field)
		}
		*f.dst = value
	}

	optional := []struct {
		field policy.Field
		value types.Optional[string]
		dst   **string
	}{
		{policy.FieldSubcategory, patch.Subcategory, &report.Subcategory},
		{policy.FieldLocation, patch.Location, &report.Location},
		{policy.FieldEvidenceText, patch.EvidenceText, &report.EvidenceText},
		{policy.FieldContactPhone, patch.ContactPhone, &report.ContactPhone},
		{policy.FieldWitnesses, patch.Witnesses, &report.Witnesses},
		{policy.FieldPerpetratorInfo, patch.PerpetratorInfo, &report.PerpetratorInfo},
		{policy.FieldResolutionNotes, patch.ResolutionNotes, &report.ResolutionNotes},
	}
	for _, f := range optional {
		if !fields.Has(f.field) || !f.value.Set {
			continue
		}
		if !f.value.Valid {
			*f.dst = nil
			continue
		}
		*f.dst = optionalString(f.value.Value)
	}

	if fields.Has(policy.FieldTags) && patch.Tags.Set {
		report.Tags = cleanTags(patch.Tags.Value)
	}
	if fields.Has(policy.FieldFileAttachments) && patch.FileAttachments.Set {
		report.FileAttachments = cleanAttachments(patch.FileAttachments.Value)
	}
	if fields.Has(policy.FieldRelatedReportIDs) && patch.RelatedReportIDs.Set {
		report.RelatedReportIDs = uniqueIDs(patch.RelatedReportIDs.Value)
	}
	if fields.Has(policy.FieldIncidentDate) && patch.IncidentDate.Set {
		if !patch.IncidentDate.Valid || strings.TrimSpace(patch.IncidentDate.Value) == "" {
			report.IncidentDate = nil
		} else if parsed := parseIncidentDate(patch.IncidentDate.Value); parsed != nil {
			report.IncidentDate = parsed
		}
	}
	if fields.Has(policy.FieldFollowUpRequested) && patch.FollowUpRequested.Set && patch.FollowUpRequested.Valid {
		report.FollowUpRequested = patch.FollowUpRequested.Value
	}

	if fields.Has(policy.FieldSeverity) && patch.Severity.Set && patch.Severity.Valid {
		if !patch.Severity.Value.Valid() {
			return invalid("severity", "invalid severity %q", patch.Severity.Value)
		}
		report.Severity = patch.Severity.Value
	}
	if fields.Has(policy.FieldUrgency) && patch.Urgency.Set && patch.Urgency.Valid {
		if !patch.Urgency.Value.Valid() {
			return invalid("urgency", "invalid urgency %q", patch.Urgency.Value)
		}
		report.Urgency = patch.Urgency.Value
	}
	if fields.Has(policy.FieldPreferredContactMethod) && patch.PreferredContactMethod.Set && patch.PreferredContactMethod.Valid {
		if !patch.PreferredContactMethod.Value.Valid() {
			return invalid("preferred_contact_method", "invalid contact method %q", patch.PreferredContactMethod.Value)
		}
		report.PreferredContactMethod = patch.PreferredContactMethod.Value
	}

	// Unknown statuses are dropped silently.
	if fields.Has(policy.FieldStatus) && patch.Status.Set && patch.Status.Valid && patch.Status.Value.Valid() {
		report.Status = patch.Status.Value
	}
	return checkColumnLengths(*report)
}

// Column widths of the reports table, in characters.
const (
	maxTitleLen        = 255
	maxCategoryLen     = 100
	maxLocationLen     = 255
	maxContactPhoneLen = 20
)

func checkColumnLengths(report types.Report) error {
	limits := []struct {
		field string
		value string
		max   int
	}{
		{"title", report.Title, maxTitleLen},
		{"category", report.Category, maxCategoryLen},
		{"subcategory", deref(report.Subcategory), maxCategoryLen},
		{"location", deref(report.Location), maxLocationLen},
		{"contact_phone", deref(report.ContactPhone), maxContactPhoneLen},
	}
	for _, l := range limits {
		if utf8.RuneCountInString(l.value) > l.max {
			return invalid(l.field, "%s must be at most %d characters", l.field, l.max)
		}
	}
	return nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func cleanAttachments(attachments []types.Attachment) []types.Attachment {
	if attachments == nil {
		return []types.Attachment{}
	}
	return attachments
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var incidentDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseIncidentDate accepts ISO-8601 timestamps with or without an offset
// and plain dates. Values without an offset are taken as UTC. Unparseable
// input yields nil.
func parseIncidentDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range incidentDateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			parsed = parsed.UTC()
			return &parsed
		}
	}
	logging.Logger.WithFields(logrus.Fields{
		"source":        "reports",
		"incident_date": raw,
	}).Debug("ignoring malformed incident date")
	return nil
}

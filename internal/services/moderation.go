package services

import (
	"context"
	"strings"

	"github.com/safeher/apiserver/types"
)

// ModerationService encapsulates the moderator workflow: the review queue,
// notes, and status changes.
type ModerationService struct {
	reports ReportRepository
	notes   NoteRepository
}

func NewModerationService(reports ReportRepository, notes NoteRepository) *ModerationService {
	return &ModerationService{reports: reports, notes: notes}
}

// AddNote records a note on a report and optionally moves it to newStatus.
// A newStatus outside the four lifecycle statuses is ignored.
func (s *ModerationService) AddNote(ctx context.Context, actor types.Actor, reportID int, text string, newStatus *types.Status) (types.ModeratorNote, types.ReportView, error) {
	if !actor.Privileged() {
		return types.ModeratorNote{}, types.ReportView{}, ErrForbidden
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return types.ModeratorNote{}, types.ReportView{}, invalid("note", "note is required")
	}
	if newStatus != nil && !newStatus.Valid() {
		newStatus = nil
	}

	note, report, err := s.notes.Create(ctx, types.ModeratorNote{
		ReportID:    reportID,
		ModeratorID: actor.ID,
		Text:        text,
	}, newStatus)
	if err != nil {
		return types.ModeratorNote{}, types.ReportView{}, err
	}
	return note, types.NewReportView(report, false), nil
}

// NotesFor returns the notes of a report in creation order.
func (s *ModerationService) NotesFor(ctx context.Context, reportID int) ([]types.ModeratorNote, error) {
	return s.notes.ListByReport(ctx, reportID)
}

// Queue lists reports awaiting moderation with their notes, newest first.
// "all" or an empty filter selects pending and in_review reports.
func (s *ModerationService) Queue(ctx context.Context, actor types.Actor, statusFilter string) ([]types.ReportDetail, error) {
	if !actor.Privileged() {
		return nil, ErrForbidden
	}

	statuses := []types.Status{types.StatusPending, types.StatusInReview}
	if filter := strings.TrimSpace(statusFilter); filter != "" && filter != "all" {
		status := types.Status(filter)
		if !status.Valid() {
			return nil, invalid("status", "invalid status %q", filter)
		}
		statuses = []types.Status{status}
	}

	reports, err := s.reports.List(ctx, types.ReportFilter{Statuses: statuses})
	if err != nil {
		return nil, err
	}
	return s.withNotes(ctx, reports)
}

// Detail returns a single report with its notes.
func (s *ModerationService) Detail(ctx context.Context, actor types.Actor, reportID int) (types.ReportDetail, error) {
	if !actor.Privileged() {
		return types.ReportDetail{}, ErrForbidden
	}
	report, err := s.reports.Get(ctx, reportID)
	if err != nil {
		return types.ReportDetail{}, err
	}
	notes, err := s.NotesFor(ctx, reportID)
	if err != nil {
		return types.ReportDetail{}, err
	}
	return types.ReportDetail{ReportView: types.NewReportView(report, false), Notes: notes}, nil
}

// ReviewedBy lists the reports a moderator has annotated with their notes,
// most recently updated first. Moderators may only list their own history.
func (s *ModerationService) ReviewedBy(ctx context.Context, actor types.Actor, moderatorID int, statusFilter string) ([]types.ReportDetail, error) {
	if !actor.Privileged() {
		return nil, ErrForbidden
	}
	if moderatorID != actor.ID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	var statuses []types.Status
	if filter := strings.TrimSpace(statusFilter); filter != "" && filter != "all" {
		status := types.Status(filter)
		if !status.Valid() {
			return nil, invalid("status", "invalid status %q", filter)
		}
		statuses = []types.Status{status}
	}

	reports, err := s.reports.ListReviewedBy(ctx, moderatorID, statuses)
	if err != nil {
		return nil, err
	}
	return s.withNotes(ctx, reports)
}

func (s *ModerationService) withNotes(ctx context.Context, reports []types.Report) ([]types.ReportDetail, error) {
	ids := make([]int, 0, len(reports))
	for _, report := range reports {
		ids = append(ids, report.ID)
	}
	notes, err := s.notes.ListByReports(ctx, ids)
	if err != nil {
		return nil, err
	}

	details := make([]types.ReportDetail, 0, len(reports))
	for _, report := range reports {
		reportNotes := notes[report.ID]
		if reportNotes == nil {
			reportNotes = []types.ModeratorNote{}
		}
		details = append(details, types.ReportDetail{
			ReportView: types.NewReportView(report, false),
			Notes:      reportNotes,
		})
	}
	return details, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/safeher/apiserver/types"
)

const selectReport = `
	SELECT r.id, r.owner_id, r.report_number, r.title, r.description, r.category, r.subcategory,
		r.tags, r.location, r.incident_date, r.severity, r.urgency, r.evidence_text,
		r.file_attachments, r.contact_phone, r.preferred_contact_method, r.follow_up_requested,
		r.witnesses, r.perpetrator_info, r.anonymous, r.related_report_ids, r.status,
		r.resolution_notes, r.created_at, r.updated_at,
		u.id, u.email, u.full_name, u.role
	FROM reports r
	JOIN users u ON u.id = r.owner_id`

// ReportNumber derives the human-facing identifier from the UTC creation
// date and the row id.
func ReportNumber(createdAt time.Time, id int) string {
	return fmt.Sprintf("REP-%s-%04d", createdAt.UTC().Format("20060102"), id%10000)
}

// ReportRepository handles persistence for reports.
type ReportRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db, now: utcNow}
}

// Create stores a new report and assigns its report number in the same
// transaction, so the number is never observed unset.
func (r *ReportRepository) Create(ctx context.Context, report types.Report) (types.Report, error) {
	now := r.now()
	report.CreatedAt = now
	report.UpdatedAt = now

	tagsJSON, attachmentsJSON, err := encodeReportJSON(report)
	if err != nil {
		return types.Report{}, err
	}

	err = withTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		const insert = `
			INSERT INTO reports (
				owner_id, title, description, category, subcategory, tags, location, incident_date,
				severity, urgency, evidence_text, file_attachments, contact_phone,
				preferred_contact_method, follow_up_requested, witnesses, perpetrator_info,
				anonymous, related_report_ids, status, resolution_notes, created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
			RETURNING id`
		if err := tx.QueryRowContext(
			ctx,
			insert,
			report.OwnerID,
			report.Title,
			report.Description,
			report.Category,
			nullString(report.Subcategory),
			tagsJSON,
			nullString(report.Location),
			nullTime(report.IncidentDate),
			report.Severity,
			report.Urgency,
			nullString(report.EvidenceText),
			attachmentsJSON,
			nullString(report.ContactPhone),
			report.PreferredContactMethod,
			report.FollowUpRequested,
			nullString(report.Witnesses),
			nullString(report.PerpetratorInfo),
			report.Anonymous,
			pq.Array(toInt64s(report.RelatedReportIDs)),
			report.Status,
			nullString(report.ResolutionNotes),
			report.CreatedAt,
			report.UpdatedAt,
		).Scan(&report.ID); err != nil {
			return err
		}

		report.ReportNumber = ReportNumber(report.CreatedAt, report.ID)
		const assign = `
			UPDATE reports
			SET report_number = $1
			WHERE id = $2 AND report_number IS NULL`
		if _, err := tx.ExecContext(ctx, assign, report.ReportNumber, report.ID); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrReportNumberTaken, report.ReportNumber)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return types.Report{}, err
	}
	return report, nil
}

func (r *ReportRepository) Get(ctx context.Context, id int) (types.Report, error) {
	report, err := scanReport(r.db.QueryRowContext(ctx, selectReport+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Report{}, ErrNotFound
		}
		return types.Report{}, err
	}
	return report, nil
}

// List returns reports matching filter, newest first.
func (r *ReportRepository) List(ctx context.Context, filter types.ReportFilter) ([]types.Report, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.OwnerID > 0 {
		args = append(args, filter.OwnerID)
		conditions = append(conditions, fmt.Sprintf("r.owner_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, pq.Array(statusStrings(filter.Statuses)))
		conditions = append(conditions, fmt.Sprintf("r.status = ANY($%d)", len(args)))
	}

	query := selectReport
	if len(conditions) > 0 {
		query += "\n\tWHERE " + strings.Join(conditions, " AND ")
	}
	query += "\n\tORDER BY r.created_at DESC, r.id DESC"

	return r.queryReports(ctx, query, args...)
}

// ListReviewedBy returns the distinct reports the moderator has annotated,
// most recently updated first.
func (r *ReportRepository) ListReviewedBy(ctx context.Context, moderatorID int, statuses []types.Status) ([]types.Report, error) {
	query := selectReport + `
	WHERE EXISTS (
		SELECT 1 FROM moderator_notes n
		WHERE n.report_id = r.id AND n.moderator_id = $1
	)`
	args := []any{moderatorID}
	if len(statuses) > 0 {
		args = append(args, pq.Array(statusStrings(statuses)))
		query += " AND r.status = ANY($2)"
	}
	query += "\n\tORDER BY r.updated_at DESC, r.id DESC"

	return r.queryReports(ctx, query, args...)
}

// Update locks the report row, applies mutate, and writes the result back.
// updated_at is always refreshed. The report number, owner, anonymity and
// creation time are never written.
func (r *ReportRepository) Update(ctx context.Context, id int, mutate func(*types.Report) error) (types.Report, error) {
	var report types.Report
	err := withTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		var err error
		report, err = lockReport(ctx, tx, id)
		if err != nil {
			return err
		}
		locked := report
		if err := mutate(&report); err != nil {
			return err
		}
		report.ID = locked.ID
		report.OwnerID = locked.OwnerID
		report.Owner = locked.Owner
		report.ReportNumber = locked.ReportNumber
		report.Anonymous = locked.Anonymous
		report.CreatedAt = locked.CreatedAt
		report.UpdatedAt = r.now()

		tagsJSON, attachmentsJSON, err := encodeReportJSON(report)
		if err != nil {
			return err
		}

		const update = `
			UPDATE reports
			SET title = $1,
				description = $2,
				category = $3,
				subcategory = $4,
				tags = $5,
				location = $6,
				incident_date = $7,
				severity = $8,
				urgency = $9,
				evidence_text = $10,
				file_attachments = $11,
				contact_phone = $12,
				preferred_contact_method = $13,
				follow_up_requested = $14,
				witnesses = $15,
				perpetrator_info = $16,
				related_report_ids = $17,
				status = $18,
				resolution_notes = $19,
				updated_at = $20
			WHERE id = $21`
		_, err = tx.ExecContext(
			ctx,
			update,
			report.Title,
			report.Description,
			report.Category,
			nullString(report.Subcategory),
			tagsJSON,
			nullString(report.Location),
			nullTime(report.IncidentDate),
			report.Severity,
			report.Urgency,
			nullString(report.EvidenceText),
			attachmentsJSON,
			nullString(report.ContactPhone),
			report.PreferredContactMethod,
			report.FollowUpRequested,
			nullString(report.Witnesses),
			nullString(report.PerpetratorInfo),
			pq.Array(toInt64s(report.RelatedReportIDs)),
			report.Status,
			nullString(report.ResolutionNotes),
			report.UpdatedAt,
			id,
		)
		return err
	})
	if err != nil {
		return types.Report{}, err
	}
	return report, nil
}

func lockReport(ctx context.Context, tx *sql.Tx, id int) (types.Report, error) {
	report, err := scanReport(tx.QueryRowContext(ctx, selectReport+` WHERE r.id = $1 FOR UPDATE OF r`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Report{}, ErrNotFound
		}
		return types.Report{}, err
	}
	return report, nil
}

func (r *ReportRepository) queryReports(ctx context.Context, query string, args ...any) ([]types.Report, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]types.Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

func scanReport(s scanner) (types.Report, error) {
	var (
		report          types.Report
		owner           types.UserSummary
		number          sql.NullString
		subcategory     sql.NullString
		location        sql.NullString
		incidentDate    sql.NullTime
		evidence        sql.NullString
		phone           sql.NullString
		witnesses       sql.NullString
		perpetrator     sql.NullString
		resolution      sql.NullString
		tagsJSON        []byte
		attachmentsJSON []byte
		related         pq.Int64Array
	)
	if err := s.Scan(
		&report.ID,
		&report.OwnerID,
		&number,
		&report.Title,
		&report.Description,
		&report.Category,
		&subcategory,
		&tagsJSON,
		&location,
		&incidentDate,
		&report.Severity,
		&report.Urgency,
		&evidence,
		&attachmentsJSON,
		&phone,
		&report.PreferredContactMethod,
		&report.FollowUpRequested,
		&witnesses,
		&perpetrator,
		&report.Anonymous,
		&related,
		&report.Status,
		&resolution,
		&report.CreatedAt,
		&report.UpdatedAt,
		&owner.ID,
		&owner.Email,
		&owner.FullName,
		&owner.Role,
	); err != nil {
		return types.Report{}, err
	}

	report.ReportNumber = number.String
	report.Subcategory = stringPtr(subcategory)
	report.Location = stringPtr(location)
	report.IncidentDate = timePtr(incidentDate)
	report.EvidenceText = stringPtr(evidence)
	report.ContactPhone = stringPtr(phone)
	report.Witnesses = stringPtr(witnesses)
	report.PerpetratorInfo = stringPtr(perpetrator)
	report.ResolutionNotes = stringPtr(resolution)
	report.CreatedAt = report.CreatedAt.UTC()
	report.UpdatedAt = report.UpdatedAt.UTC()
	report.Owner = &owner

	report.Tags = []string{}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &report.Tags); err != nil {
			return types.Report{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	report.FileAttachments = []types.Attachment{}
	if len(attachmentsJSON) > 0 {
		if err := json.Unmarshal(attachmentsJSON, &report.FileAttachments); err != nil {
			return types.Report{}, fmt.Errorf("decode attachments: %w", err)
		}
	}
	report.RelatedReportIDs = make([]int, 0, len(related))
	for _, id := range related {
		report.RelatedReportIDs = append(report.RelatedReportIDs, int(id))
	}
	return report, nil
}

func encodeReportJSON(report types.Report) ([]byte, []byte, error) {
	tags := report.Tags
	if tags == nil {
		tags = []string{}
	}
	attachments := report.FileAttachments
	if attachments == nil {
		attachments = []types.Attachment{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, nil, err
	}
	attachmentsJSON, err := json.Marshal(attachments)
	if err != nil {
		return nil, nil, err
	}
	return tagsJSON, attachmentsJSON, nil
}

func toInt64s(ids []int) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}

func statusStrings(statuses []types.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}

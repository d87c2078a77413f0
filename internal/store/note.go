package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/safeher/apiserver/types"
)

const selectNote = `
	SELECT n.id, n.report_id, n.moderator_id, n.note, n.created_at,
		u.id, u.email, u.full_name, u.role
	FROM moderator_notes n
	JOIN users u ON u.id = n.moderator_id`

// NoteRepository handles persistence for moderator notes.
type NoteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db, now: utcNow}
}

// Create appends a note to a report and, when newStatus is set, moves the
// report to that status. Both writes commit together. The returned note
// carries its moderator.
func (r *NoteRepository) Create(ctx context.Context, note types.ModeratorNote, newStatus *types.Status) (types.ModeratorNote, types.Report, error) {
	var report types.Report
	err := withTx(ctx, r.db, nil, func(tx *sql.Tx) error {
		var err error
		report, err = lockReport(ctx, tx, note.ReportID)
		if err != nil {
			return err
		}

		note.CreatedAt = r.now()
		const insert = `
			INSERT INTO moderator_notes (report_id, moderator_id, note, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id`
		if err := tx.QueryRowContext(ctx, insert, note.ReportID, note.ModeratorID, note.Text, note.CreatedAt).Scan(&note.ID); err != nil {
			return err
		}

		var moderator types.UserSummary
		const author = `
			SELECT id, email, full_name, role
			FROM users
			WHERE id = $1`
		if err := tx.QueryRowContext(ctx, author, note.ModeratorID).Scan(
			&moderator.ID,
			&moderator.Email,
			&moderator.FullName,
			&moderator.Role,
		); err != nil {
			return err
		}
		note.Moderator = &moderator

		if newStatus == nil {
			return nil
		}
		report.Status = *newStatus
		report.UpdatedAt = note.CreatedAt
		const update = `
			UPDATE reports
			SET status = $1,
				updated_at = $2
			WHERE id = $3`
		_, err = tx.ExecContext(ctx, update, report.Status, report.UpdatedAt, report.ID)
		return err
	})
	if err != nil {
		return types.ModeratorNote{}, types.Report{}, err
	}
	return note, report, nil
}

// ListByReport returns the notes of a report in creation order.
func (r *NoteRepository) ListByReport(ctx context.Context, reportID int) ([]types.ModeratorNote, error) {
	rows, err := r.db.QueryContext(ctx, selectNote+`
	WHERE n.report_id = $1
	ORDER BY n.id`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]types.ModeratorNote, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notes, nil
}

// ListByReports returns the notes of several reports keyed by report id.
func (r *NoteRepository) ListByReports(ctx context.Context, reportIDs []int) (map[int][]types.ModeratorNote, error) {
	out := make(map[int][]types.ModeratorNote, len(reportIDs))
	if len(reportIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, selectNote+`
	WHERE n.report_id = ANY($1)
	ORDER BY n.report_id, n.id`, pq.Array(toInt64s(reportIDs)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out[note.ReportID] = append(out[note.ReportID], note)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanNote(s scanner) (types.ModeratorNote, error) {
	var (
		note      types.ModeratorNote
		moderator types.UserSummary
	)
	if err := s.Scan(
		&note.ID,
		&note.ReportID,
		&note.ModeratorID,
		&note.Text,
		&note.CreatedAt,
		&moderator.ID,
		&moderator.Email,
		&moderator.FullName,
		&moderator.Role,
	); err != nil {
		return types.ModeratorNote{}, err
	}
	note.CreatedAt = note.CreatedAt.UTC()
	note.Moderator = &moderator
	return note, nil
}

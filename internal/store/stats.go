package store

import (
	"context"
	"database/sql"

	"github.com/safeher/apiserver/types"
)

// StatsRepository reads aggregate figures for the admin dashboard.
type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Snapshot counts reports per status and users per role from a single
// consistent view of the database.
func (r *StatsRepository) Snapshot(ctx context.Context) (types.Stats, error) {
	stats := types.NewStats()
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

	err := withTx(ctx, r.db, opts, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT status, COUNT(*) FROM reports GROUP BY status`)
		if err != nil {
			return err
		}
		for rows.Next() {
			var (
				status types.Status
				count  int
			)
			if err := rows.Scan(&status, &count); err != nil {
				_ = rows.Close()
				return err
			}
			stats.ReportsByStatus[status] = count
			stats.TotalReports += count
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		rows, err = tx.QueryContext(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				role  types.Role
				count int
			)
			if err := rows.Scan(&role, &count); err != nil {
				return err
			}
			stats.UsersByRole[role] = count
			stats.TotalUsers += count
		}
		return rows.Err()
	})
	if err != nil {
		return types.Stats{}, err
	}
	return stats, nil
}

// ExportRows flattens every report for export, newest first. The owner
// email is included as stored.
func (r *StatsRepository) ExportRows(ctx context.Context) ([]types.ExportRow, error) {
	const query = `
		SELECT r.id, r.report_number, u.email, r.title, r.category, r.status,
			r.description, r.evidence_text, r.created_at, r.updated_at
		FROM reports r
		JOIN users u ON u.id = r.owner_id
		ORDER BY r.created_at DESC, r.id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.ExportRow, 0)
	for rows.Next() {
		var (
			row      types.ExportRow
			number   sql.NullString
			evidence sql.NullString
		)
		if err := rows.Scan(
			&row.ID,
			&number,
			&row.OwnerEmail,
			&row.Title,
			&row.Category,
			&row.Status,
			&row.Description,
			&evidence,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		row.ReportNumber = number.String
		row.EvidenceText = evidence.String
		row.CreatedAt = row.CreatedAt.UTC()
		row.UpdatedAt = row.UpdatedAt.UTC()
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

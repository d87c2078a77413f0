package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func setupMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

var reportColumns = []string{
	"id", "owner_id", "report_number", "title", "description", "category", "subcategory",
	"tags", "location", "incident_date", "severity", "urgency", "evidence_text",
	"file_attachments", "contact_phone", "preferred_contact_method", "follow_up_requested",
	"witnesses", "perpetrator_info", "anonymous", "related_report_ids", "status",
	"resolution_notes", "created_at", "updated_at",
	"user_id", "email", "full_name", "role",
}

func reportRows(id int, status string) *sqlmock.Rows {
	return sqlmock.NewRows(reportColumns).AddRow(
		id, 7, ReportNumber(fixedNow, id), "Harassment at bus stop", "details", "harassment", nil,
		[]byte(`["night","bus"]`), "Main St", nil, "high", "normal", nil,
		[]byte(`[{"name":"a.png","type":"image/png","url":"/uploads/attachments/a.png","size":12}]`),
		nil, "email", false,
		nil, nil, true, []byte("{3,5}"), status,
		nil, fixedNow, fixedNow,
		7, "owner@example.com", "Owner", "user",
	)
}

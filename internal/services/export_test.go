package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeher/apiserver/internal/mq"
	"github.com/safeher/apiserver/internal/store"
	"github.com/safeher/apiserver/internal/testutils"
	"github.com/safeher/apiserver/types"
)

func TestWriteCSV(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, err := f.reports.Create(ctx, f.owner, types.ReportInput{
		Title:        "Comma, inside",
		Description:  "Line one\nline two",
		Category:     "harassment",
		EvidenceText: "https://example.com/clip",
		Anonymous:    true,
	})
	require.NoError(t, err)

	svc := NewExportService(f.mem.Stats(), testutils.NewBlobs(), nil, "report-exports")
	var buf bytes.Buffer
	require.NoError(t, svc.WriteCSV(ctx, f.admin, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, exportHeader, records[0])
	assert.Equal(t, []string{
		"1",
		view.ReportNumber,
		"owner@example.com",
		"Comma, inside",
		"harassment",
		"pending",
		"Line one\nline two",
		"https://example.com/clip",
		"2024-01-15T10:30:00Z",
		"2024-01-15T10:30:00Z",
	}, records[1])

	assert.ErrorIs(t, svc.WriteCSV(ctx, f.moderator, io.Discard), ErrForbidden)
}

func TestExportJobRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createReport(t, f.owner, false)

	blobs := testutils.NewBlobs()
	publisher := &testutils.Publisher{}
	svc := NewExportService(f.mem.Stats(), blobs, publisher, "report-exports")

	job, err := svc.Enqueue(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, job.RequestedBy)
	require.Len(t, publisher.Messages, 1)
	assert.Equal(t, "report-exports", publisher.Channels[0])
	assert.Equal(t, "report_export", publisher.Messages[0].Attributes["type"])

	_, _, err = svc.OpenResult(ctx, f.admin, job.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, svc.HandleJob(ctx, publisher.Messages[0]))
	assert.Equal(t, []string{"exports/" + job.ID + ".csv"}, blobs.Keys())

	rc, info, err := svc.OpenResult(ctx, f.admin, job.ID)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "text/csv", info.ContentType)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "ID,Report Number,User Email"))
	assert.Equal(t, int64(len(data)), info.Size)
}

func TestExportJobErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	disabled := NewExportService(f.mem.Stats(), testutils.NewBlobs(), nil, "report-exports")
	_, err := disabled.Enqueue(ctx, f.admin)
	assert.ErrorIs(t, err, ErrUnavailable)

	publisher := &testutils.Publisher{Err: errors.New("broker down")}
	svc := NewExportService(f.mem.Stats(), testutils.NewBlobs(), publisher, "report-exports")
	_, err = svc.Enqueue(ctx, f.admin)
	assert.ErrorContains(t, err, "broker down")

	_, err = svc.Enqueue(ctx, f.moderator)
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = svc.OpenResult(ctx, f.admin, "../../etc/passwd")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.Error(t, svc.HandleJob(ctx, mq.Message{Data: []byte("{")}))
	bad, _ := json.Marshal(types.ExportJob{ID: "not-a-uuid"})
	assert.Error(t, svc.HandleJob(ctx, mq.Message{Data: bad}))
}

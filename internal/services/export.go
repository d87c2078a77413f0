package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/safeher/apiserver/internal/logging"
	"github.com/safeher/apiserver/internal/mq"
	"github.com/safeher/apiserver/internal/storage"
	"github.com/safeher/apiserver/internal/store"
	"github.com/safeher/apiserver/types"
)

// ExportFilename is the download name of the CSV export.
const ExportFilename = "safeher_reports_export.csv"

const exportContentType = "text/csv"

var exportHeader = []string{
	"ID", "Report Number", "User Email", "Title", "Category",
	"Status", "Description", "Evidence", "Created At", "Updated At",
}

// ExportService produces the CSV export of every report, either inline or
// as a queued job whose result is written to object storage.
type ExportService struct {
	repo      StatsRepository
	blobs     BlobStore
	publisher Publisher
	channel   string
	now       func() time.Time
}

// NewExportService builds the service. publisher may be nil, which disables
// queued exports.
func NewExportService(repo StatsRepository, blobs BlobStore, publisher Publisher, channel string) *ExportService {
	return &ExportService{
		repo:      repo,
		blobs:     blobs,
		publisher: publisher,
		channel:   channel,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WriteCSV writes the full export to w.
func (s *ExportService) WriteCSV(ctx context.Context, actor types.Actor, w io.Writer) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	rows, err := s.repo.ExportRows(ctx)
	if err != nil {
		return err
	}
	return writeExport(w, rows)
}

// Enqueue publishes an export job and returns it.
func (s *ExportService) Enqueue(ctx context.Context, actor types.Actor) (types.ExportJob, error) {
	if !actor.IsAdmin() {
		return types.ExportJob{}, ErrForbidden
	}
	if s.publisher == nil {
		return types.ExportJob{}, ErrUnavailable
	}

	job := types.ExportJob{
		ID:          uuid.NewString(),
		RequestedBy: actor.ID,
		RequestedAt: s.now(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		return types.ExportJob{}, err
	}
	if _, err := s.publisher.Publish(ctx, s.channel, data, map[string]string{"type": "report_export"}); err != nil {
		return types.ExportJob{}, fmt.Errorf("publish export job: %w", err)
	}
	return job, nil
}

// HandleJob runs a queued export and stores the CSV under the job id.
func (s *ExportService) HandleJob(ctx context.Context, msg mq.Message) error {
	var job types.ExportJob
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		return fmt.Errorf("decode export job: %w", err)
	}
	if _, err := uuid.Parse(job.ID); err != nil {
		return fmt.Errorf("invalid export job id %q", job.ID)
	}

	rows, err := s.repo.ExportRows(ctx)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := writeExport(&buf, rows); err != nil {
		return err
	}
	if err := s.blobs.Put(ctx, exportKey(job.ID), bytes.NewReader(buf.Bytes()), int64(buf.Len()), exportContentType); err != nil {
		return err
	}

	logging.Logger.WithFields(logrus.Fields{
		"source":       "export",
		"job_id":       job.ID,
		"requested_by": job.RequestedBy,
		"rows":         len(rows),
	}).Info("report export written")
	return nil
}

// OpenResult opens the CSV of a finished job. It returns store.ErrNotFound
// until the job has completed.
func (s *ExportService) OpenResult(ctx context.Context, actor types.Actor, jobID string) (io.ReadCloser, storage.ObjectInfo, error) {
	if !actor.IsAdmin() {
		return nil, storage.ObjectInfo{}, ErrForbidden
	}
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, storage.ObjectInfo{}, store.ErrNotFound
	}

	key := exportKey(jobID)
	info, err := s.blobs.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ObjectInfo{}, store.ErrNotFound
		}
		return nil, storage.ObjectInfo{}, err
	}
	rc, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	return rc, info, nil
}

func exportKey(jobID string) string {
	return "exports/" + jobID + ".csv"
}

func writeExport(w io.Writer, rows []types.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			strconv.Itoa(row.ID),
			row.ReportNumber,
			row.OwnerEmail,
			row.Title,
			row.Category,
			string(row.Status),
			row.Description,
			row.EvidenceText,
			row.CreatedAt.UTC().Format(time.RFC3339),
			row.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

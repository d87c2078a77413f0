package services

import (
	"context"
	"io"

	"github.com/safeher/apiserver/internal/storage"
	"github.com/safeher/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	SetActive(ctx context.Context, id int, active bool) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
}

// ReportRepository defines persistence operations for reports.
type ReportRepository interface {
	Create(ctx context.Context, report types.Report) (types.Report, error)
	Get(ctx context.Context, id int) (types.Report, error)
	List(ctx context.Context, filter types.ReportFilter) ([]types.Report, error)
	ListReviewedBy(ctx context.Context, moderatorID int, statuses []types.Status) ([]types.Report, error)
	Update(ctx context.Context, id int, mutate func(*types.Report) error) (types.Report, error)
}

// NoteRepository defines persistence operations for moderator notes.
type NoteRepository interface {
	Create(ctx context.Context, note types.ModeratorNote, newStatus *types.Status) (types.ModeratorNote, types.Report, error)
	ListByReport(ctx context.Context, reportID int) ([]types.ModeratorNote, error)
	ListByReports(ctx context.Context, reportIDs []int) (map[int][]types.ModeratorNote, error)
}

// StatsRepository defines the aggregate reads.
type StatsRepository interface {
	Snapshot(ctx context.Context) (types.Stats, error)
	ExportRows(ctx context.Context) ([]types.ExportRow, error)
}

// BlobStore is the subset of object storage the services use.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (storage.ObjectInfo, error)
}

// Publisher sends a message on a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

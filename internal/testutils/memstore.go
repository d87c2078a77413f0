// Package testutils holds in-memory stand-ins for the PostgreSQL
// repositories, object storage, the message queue and the cache.
package testutils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/safeher/apiserver/internal/mq"
	"github.com/safeher/apiserver/internal/storage"
	"github.com/safeher/apiserver/internal/store"
	"github.com/safeher/apiserver/types"
)

// MemStore keeps users, reports and notes in memory with the same
// invariants as the SQL repositories.
type MemStore struct {
	mu      sync.Mutex
	Now     func() time.Time
	users   map[int]types.User
	reports map[int]types.Report
	notes   []types.ModeratorNote
	nextID  map[string]int
}

func NewMemStore() *MemStore {
	return &MemStore{
		Now:     func() time.Time { return time.Now().UTC() },
		users:   make(map[int]types.User),
		reports: make(map[int]types.Report),
		nextID:  make(map[string]int),
	}
}

func (m *MemStore) id(table string) int {
	m.nextID[table]++
	return m.nextID[table]
}

// SkipIDs advances a table's id sequence as if n rows had been inserted
// and removed.
func (m *MemStore) SkipIDs(table string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID[table] += n
}

func (m *MemStore) Users() *UserRepo     { return &UserRepo{m} }
func (m *MemStore) Reports() *ReportRepo { return &ReportRepo{m} }
func (m *MemStore) Notes() *NoteRepo     { return &NoteRepo{m} }
func (m *MemStore) Stats() *StatsRepo    { return &StatsRepo{m} }

// ReportCount returns the number of stored reports.
func (m *MemStore) ReportCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reports)
}

func (m *MemStore) withOwner(report types.Report) types.Report {
	if owner, ok := m.users[report.OwnerID]; ok {
		summary := owner.Summary()
		report.Owner = &summary
	}
	report.Tags = append([]string{}, report.Tags...)
	report.FileAttachments = append([]types.Attachment{}, report.FileAttachments...)
	report.RelatedReportIDs = append([]int{}, report.RelatedReportIDs...)
	return report
}

type UserRepo struct{ m *MemStore }

func (r *UserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	user, ok := r.m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	email = types.NormalizeEmail(email)
	for _, user := range r.m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	user.Email = types.NormalizeEmail(user.Email)
	for _, existing := range r.m.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = r.m.id("users")
	user.CreatedAt = r.m.Now()
	r.m.users[user.ID] = user
	return user, nil
}

func (r *UserRepo) SetActive(ctx context.Context, id int, active bool) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	user, ok := r.m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.IsActive = active
	r.m.users[id] = user
	return user, nil
}

func (r *UserRepo) List(ctx context.Context) ([]types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	users := make([]types.User, 0, len(r.m.users))
	for _, user := range r.m.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

type ReportRepo struct{ m *MemStore }

func (r *ReportRepo) Create(ctx context.Context, report types.Report) (types.Report, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	now := r.m.Now()
	report.ID = r.m.id("reports")
	report.CreatedAt = now
	report.UpdatedAt = now
	report.ReportNumber = store.ReportNumber(now, report.ID)
	for _, existing := range r.m.reports {
		if existing.ReportNumber == report.ReportNumber {
			return types.Report{}, fmt.Errorf("%w: %s", store.ErrReportNumberTaken, report.ReportNumber)
		}
	}
	report.Owner = nil
	r.m.reports[report.ID] = report
	return report, nil
}

func (r *ReportRepo) Get(ctx context.Context, id int) (types.Report, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	report, ok := r.m.reports[id]
	if !ok {
		return types.Report{}, store.ErrNotFound
	}
	return r.m.withOwner(report), nil
}

func (r *ReportRepo) List(ctx context.Context, filter types.ReportFilter) ([]types.Report, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]types.Report, 0)
	for _, report := range r.m.reports {
		if filter.OwnerID > 0 && report.OwnerID != filter.OwnerID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, report.Status) {
			continue
		}
		out = append(out, r.m.withOwner(report))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *ReportRepo) ListReviewedBy(ctx context.Context, moderatorID int, statuses []types.Status) ([]types.Report, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	reviewed := make(map[int]struct{})
	for _, note := range r.m.notes {
		if note.ModeratorID == moderatorID {
			reviewed[note.ReportID] = struct{}{}
		}
	}
	out := make([]types.Report, 0, len(reviewed))
	for id := range reviewed {
		report := r.m.reports[id]
		if len(statuses) > 0 && !hasStatus(statuses, report.Status) {
			continue
		}
		out = append(out, r.m.withOwner(report))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *ReportRepo) Update(ctx context.Context, id int, mutate func(*types.Report) error) (types.Report, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored, ok := r.m.reports[id]
	if !ok {
		return types.Report{}, store.ErrNotFound
	}
	locked := r.m.withOwner(stored)
	report := locked
	if err := mutate(&report); err != nil {
		return types.Report{}, err
	}
	report.ID = locked.ID
	report.OwnerID = locked.OwnerID
	report.Owner = locked.Owner
	report.ReportNumber = locked.ReportNumber
	report.Anonymous = locked.Anonymous
	report.CreatedAt = locked.CreatedAt
	report.UpdatedAt = r.m.Now()

	saved := report
	saved.Owner = nil
	r.m.reports[id] = saved
	return report, nil
}

type NoteRepo struct{ m *MemStore }

func (r *NoteRepo) Create(ctx context.Context, note types.ModeratorNote, newStatus *types.Status) (types.ModeratorNote, types.Report, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	report, ok := r.m.reports[note.ReportID]
	if !ok {
		return types.ModeratorNote{}, types.Report{}, store.ErrNotFound
	}
	note.ID = r.m.id("notes")
	note.CreatedAt = r.m.Now()
	r.m.notes = append(r.m.notes, note)
	if newStatus != nil {
		report.Status = *newStatus
		report.UpdatedAt = note.CreatedAt
		r.m.reports[report.ID] = report
	}
	return r.withModerator(note), r.m.withOwner(report), nil
}

func (r *NoteRepo) ListByReport(ctx context.Context, reportID int) ([]types.ModeratorNote, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]types.ModeratorNote, 0)
	for _, note := range r.m.notes {
		if note.ReportID == reportID {
			out = append(out, r.withModerator(note))
		}
	}
	return out, nil
}

func (r *NoteRepo) ListByReports(ctx context.Context, reportIDs []int) (map[int][]types.ModeratorNote, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	wanted := make(map[int]struct{}, len(reportIDs))
	for _, id := range reportIDs {
		wanted[id] = struct{}{}
	}
	out := make(map[int][]types.ModeratorNote, len(reportIDs))
	for _, note := range r.m.notes {
		if _, ok := wanted[note.ReportID]; ok {
			out[note.ReportID] = append(out[note.ReportID], r.withModerator(note))
		}
	}
	return out, nil
}

func (r *NoteRepo) withModerator(note types.ModeratorNote) types.ModeratorNote {
	if user, ok := r.m.users[note.ModeratorID]; ok {
		summary := user.Summary()
		note.Moderator = &summary
	}
	return note
}

type StatsRepo struct{ m *MemStore }

func (r *StatsRepo) Snapshot(ctx context.Context) (types.Stats, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stats := types.NewStats()
	for _, report := range r.m.reports {
		stats.ReportsByStatus[report.Status]++
		stats.TotalReports++
	}
	for _, user := range r.m.users {
		stats.UsersByRole[user.Role]++
		stats.TotalUsers++
	}
	return stats, nil
}

func (r *StatsRepo) ExportRows(ctx context.Context) ([]types.ExportRow, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rows := make([]types.ExportRow, 0, len(r.m.reports))
	for _, report := range r.m.reports {
		row := types.ExportRow{
			ID:           report.ID,
			ReportNumber: report.ReportNumber,
			OwnerEmail:   r.m.users[report.OwnerID].Email,
			Title:        report.Title,
			Category:     report.Category,
			Status:       report.Status,
			Description:  report.Description,
			CreatedAt:    report.CreatedAt,
			UpdatedAt:    report.UpdatedAt,
		}
		if report.EvidenceText != nil {
			row.EvidenceText = *report.EvidenceText
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	return rows, nil
}

func hasStatus(statuses []types.Status, status types.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// Blobs is an in-memory object store.
type Blobs struct {
	mu      sync.Mutex
	objects map[string]blob
}

type blob struct {
	data        []byte
	contentType string
}

func NewBlobs() *Blobs {
	return &Blobs{objects: make(map[string]blob)}
}

func (b *Blobs) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = blob{data: data, contentType: contentType}
	return nil
}

func (b *Blobs) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (b *Blobs) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(obj.data)), ContentType: obj.contentType}, nil
}

// Keys lists stored keys in order.
func (b *Blobs) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Publisher records published messages.
type Publisher struct {
	mu       sync.Mutex
	Messages []mq.Message
	Channels []string
	Err      error
}

func (p *Publisher) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	id := time.Now().Format("150405.000000000")
	p.Messages = append(p.Messages, mq.Message{ID: id, Data: data, Attributes: attrs})
	p.Channels = append(p.Channels, channel)
	return id, nil
}

// Cache is an in-memory cache that ignores expiry.
type Cache struct {
	mu     sync.Mutex
	values map[string][]byte
	Gets   int
	Sets   int
	Err    error
}

func NewCache() *Cache {
	return &Cache{values: make(map[string][]byte)}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Gets++
	if c.Err != nil {
		return nil, false, c.Err
	}
	value, ok := c.values[key]
	return value, ok, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sets++
	if c.Err != nil {
		return c.Err
	}
	c.values[key] = value
	return nil
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeher/apiserver/internal/store"
	"github.com/safeher/apiserver/types"
)

func TestAddNoteWithStatusChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createReport(t, f.owner, true)
	later := f.advance(time.Hour)

	note, report, err := f.moderation.AddNote(ctx, f.moderator, view.ID, "  Contacted reporter ", statusPtr(types.StatusInReview))
	require.NoError(t, err)
	assert.Equal(t, "Contacted reporter", note.Text)
	assert.Equal(t, f.moderator.ID, note.ModeratorID)
	assert.Equal(t, types.StatusInReview, report.Status)
	assert.Equal(t, later, report.UpdatedAt)
	require.NotNil(t, report.Owner.ID)
	assert.Equal(t, f.owner.ID, *report.Owner.ID)

	detail, err := f.reports.Get(ctx, f.owner, view.ID)
	require.NoError(t, err)
	require.Len(t, detail.Notes, 1)
	require.NotNil(t, detail.Notes[0].Moderator)
	assert.Equal(t, "mod@example.com", detail.Notes[0].Moderator.Email)
}

func TestAddNoteWithoutStatusKeepsUpdatedAt(t *testing.T) {
	f := newFixture(t)
	view := f.createReport(t, f.owner, false)
	f.advance(time.Hour)

	_, report, err := f.moderation.AddNote(context.Background(), f.admin, view.ID, "FYI", nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, report.Status)
	assert.Equal(t, view.UpdatedAt, report.UpdatedAt)
}

func TestAddNoteRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createReport(t, f.owner, false)

	_, _, err := f.moderation.AddNote(ctx, f.owner, view.ID, "mine", nil)
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = f.moderation.AddNote(ctx, f.moderator, view.ID, "   ", nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "note", verr.Field)

	_, _, err = f.moderation.AddNote(ctx, f.moderator, 999, "lost", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, report, err := f.moderation.AddNote(ctx, f.moderator, view.ID, "odd status", statusPtr("escalated"))
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, report.Status)
}

func TestQueueDefaultsToOpenReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := f.createReport(t, f.owner, false)
	f.advance(time.Minute)
	reviewing := f.createReport(t, f.owner, false)
	f.advance(time.Minute)
	resolved := f.createReport(t, f.stranger, false)

	_, _, err := f.moderation.AddNote(ctx, f.moderator, reviewing.ID, "on it", statusPtr(types.StatusInReview))
	require.NoError(t, err)
	_, _, err = f.moderation.AddNote(ctx, f.moderator, resolved.ID, "closed", statusPtr(types.StatusResolved))
	require.NoError(t, err)

	queue, err := f.moderation.Queue(ctx, f.moderator, "")
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, reviewing.ID, queue[0].ID)
	assert.Len(t, queue[0].Notes, 1)
	assert.Equal(t, pending.ID, queue[1].ID)
	assert.Equal(t, []types.ModeratorNote{}, queue[1].Notes)

	done, err := f.moderation.Queue(ctx, f.admin, "resolved")
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, resolved.ID, done[0].ID)

	_, err = f.moderation.Queue(ctx, f.owner, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.moderation.Queue(ctx, f.moderator, "bogus")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestReviewedBy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.createReport(t, f.owner, false)
	second := f.createReport(t, f.owner, false)
	f.createReport(t, f.owner, false)

	_, _, err := f.moderation.AddNote(ctx, f.moderator, first.ID, "a", nil)
	require.NoError(t, err)
	_, _, err = f.moderation.AddNote(ctx, f.moderator, first.ID, "b", nil)
	require.NoError(t, err)
	f.advance(time.Minute)
	_, _, err = f.moderation.AddNote(ctx, f.moderator, second.ID, "c", statusPtr(types.StatusRejected))
	require.NoError(t, err)

	reviewed, err := f.moderation.ReviewedBy(ctx, f.moderator, f.moderator.ID, "")
	require.NoError(t, err)
	require.Len(t, reviewed, 2)
	assert.Equal(t, second.ID, reviewed[0].ID)
	assert.Equal(t, first.ID, reviewed[1].ID)
	assert.Len(t, reviewed[1].Notes, 2)

	rejected, err := f.moderation.ReviewedBy(ctx, f.admin, f.moderator.ID, "rejected")
	require.NoError(t, err)
	require.Len(t, rejected, 1)

	_, err = f.moderation.ReviewedBy(ctx, f.moderator, f.admin.ID, "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createReport(t, f.owner, true)

	detail, err := f.moderation.Detail(ctx, f.moderator, view.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Owner.ID)
	assert.Equal(t, "owner@example.com", detail.Owner.Email)

	_, err = f.moderation.Detail(ctx, f.owner, view.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

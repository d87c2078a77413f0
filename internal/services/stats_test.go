package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeher/apiserver/internal/testutils"
	"github.com/safeher/apiserver/types"
)

func TestStatsCountsAndZeroFill(t *testing.T) {
	f := newFixture(t)
	f.createReport(t, f.owner, false)
	f.createReport(t, f.stranger, false)

	svc := NewStatsService(f.mem.Stats(), nil, 0)
	stats, err := svc.Stats(context.Background(), f.admin)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalReports)
	assert.Equal(t, 2, stats.ReportsByStatus[types.StatusPending])
	assert.Equal(t, 0, stats.ReportsByStatus[types.StatusRejected])
	assert.Len(t, stats.ReportsByStatus, len(types.Statuses))
	assert.Equal(t, 4, stats.TotalUsers)
	assert.Equal(t, 2, stats.UsersByRole[types.RoleUser])
	assert.Equal(t, 1, stats.UsersByRole[types.RoleAdmin])

	_, err = svc.Stats(context.Background(), f.moderator)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestStatsServedFromCache(t *testing.T) {
	f := newFixture(t)
	cache := testutils.NewCache()
	svc := NewStatsService(f.mem.Stats(), cache, 30*time.Second)
	ctx := context.Background()

	first, err := svc.Stats(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Sets)

	f.createReport(t, f.owner, false)

	second, err := svc.Stats(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, cache.Gets)
	assert.Equal(t, 1, cache.Sets)
}

func TestStatsCacheFailureFallsBack(t *testing.T) {
	f := newFixture(t)
	cache := testutils.NewCache()
	cache.Err = errors.New("connection refused")
	svc := NewStatsService(f.mem.Stats(), cache, time.Minute)

	f.createReport(t, f.owner, false)
	stats, err := svc.Stats(context.Background(), f.admin)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalReports)
}

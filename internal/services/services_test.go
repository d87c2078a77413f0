package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/safeher/apiserver/internal/testutils"
	"github.com/safeher/apiserver/types"
)

type fixture struct {
	mem        *testutils.MemStore
	users      *UserService
	reports    *ReportService
	moderation *ModerationService

	owner     types.Actor
	stranger  types.Actor
	moderator types.Actor
	admin     types.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := testutils.NewMemStore()
	start := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	mem.Now = func() time.Time { return start }
	f := &fixture{
		mem:        mem,
		users:      NewUserService(mem.Users(), BcryptHasher{Cost: bcrypt.MinCost}),
		reports:    NewReportService(mem.Reports(), mem.Notes()),
		moderation: NewModerationService(mem.Reports(), mem.Notes()),
	}
	f.owner = f.seedUser(t, "owner@example.com", types.RoleUser)
	f.stranger = f.seedUser(t, "stranger@example.com", types.RoleUser)
	f.moderator = f.seedUser(t, "mod@example.com", types.RoleModerator)
	f.admin = f.seedUser(t, "admin@example.com", types.RoleAdmin)
	return f
}

func (f *fixture) seedUser(t *testing.T, email string, role types.Role) types.Actor {
	t.Helper()
	user, err := f.mem.Users().Create(context.Background(), types.User{
		Email:        email,
		FullName:     string(role) + " account",
		Role:         role,
		IsActive:     true,
		PasswordHash: "unused",
	})
	require.NoError(t, err)
	return types.Actor{ID: user.ID, Role: role}
}

func (f *fixture) createReport(t *testing.T, actor types.Actor, anonymous bool) types.ReportView {
	t.Helper()
	view, err := f.reports.Create(context.Background(), actor, types.ReportInput{
		Title:       "Harassment at bus stop",
		Description: "Repeated verbal harassment",
		Category:    "harassment",
		Anonymous:   anonymous,
	})
	require.NoError(t, err)
	return view
}

// advance moves the store clock forward so updated_at changes are visible.
func (f *fixture) advance(d time.Duration) time.Time {
	now := f.mem.Now().Add(d)
	f.mem.Now = func() time.Time { return now }
	return now
}

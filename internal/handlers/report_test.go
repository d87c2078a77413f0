package handlers

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeher/apiserver/types"
)

func itoa(id int) string { return strconv.Itoa(id) }

func createReport(t *testing.T, env *testEnv, token string, body map[string]any) types.ReportView {
	t.Helper()
	resp := env.do(t, http.MethodPost, "/api/reports", token, body)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[ReportResponse](t, resp).Report
}

func TestReportLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	owner, ownerToken := env.seed(t, "owner@example.com", types.RoleUser)
	_, modToken := env.seed(t, "mod@example.com", types.RoleModerator)

	report := createReport(t, env, ownerToken, map[string]any{
		"title":       "Catcalling",
		"description": "Near the station",
		"category":    "harassment",
		"tags":        []string{"street"},
		"anonymous":   true,
	})
	assert.Regexp(t, `^REP-\d{8}-0001$`, report.ReportNumber)
	assert.Equal(t, types.StatusPending, report.Status)

	path := "/api/reports/" + itoa(report.ID)

	resp := env.do(t, http.MethodPut, path, ownerToken, map[string]any{
		"title":  "Catcalling at night",
		"status": "resolved",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	updated := decode[ReportResponse](t, resp).Report
	assert.Equal(t, "Catcalling at night", updated.Title)
	assert.Equal(t, types.StatusPending, updated.Status)

	resp = env.do(t, http.MethodPost, "/api/moderator/reports/"+itoa(report.ID)+"/note", modToken, map[string]any{
		"note":   "Reviewing footage",
		"status": "in_review",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	noted := decode[NoteResponse](t, resp)
	assert.Equal(t, "Reviewing footage", noted.Note.Text)
	require.NotNil(t, noted.Note.Moderator)
	assert.Equal(t, "mod@example.com", noted.Note.Moderator.Email)
	assert.Equal(t, types.StatusInReview, noted.Report.Status)

	resp = env.do(t, http.MethodGet, path, ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	detail := decode[types.ReportDetail](t, resp)
	assert.Equal(t, types.StatusInReview, detail.Status)
	require.Len(t, detail.Notes, 1)
	require.NotNil(t, detail.Owner)
	require.NotNil(t, detail.Owner.ID)
	assert.Equal(t, owner.ID, *detail.Owner.ID)

	resp = env.do(t, http.MethodPut, path, modToken, map[string]any{
		"title":            "changed by moderator",
		"status":           "resolved",
		"resolution_notes": "Reported to transit police",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	updated = decode[ReportResponse](t, resp).Report
	assert.Equal(t, "Catcalling at night", updated.Title)
	assert.Equal(t, types.StatusResolved, updated.Status)
	assert.Equal(t, report.ReportNumber, updated.ReportNumber)
}

func TestReportAccessErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	_, ownerToken := env.seed(t, "owner@example.com", types.RoleUser)
	_, strangerToken := env.seed(t, "stranger@example.com", types.RoleUser)

	report := createReport(t, env, ownerToken, map[string]any{
		"title": "t", "description": "d", "category": "c",
	})
	path := "/api/reports/" + itoa(report.ID)

	resp := env.do(t, http.MethodGet, path, strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do(t, http.MethodPut, path, strangerToken, map[string]any{"title": "mine now"})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do(t, http.MethodGet, "/api/reports/9999", ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "report not found", errorMessage(t, resp))

	resp = env.do(t, http.MethodGet, "/api/reports/abc", ownerToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid report id", errorMessage(t, resp))

	resp = env.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.do(t, http.MethodPost, "/api/reports", ownerToken, map[string]any{"title": "only title"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "description is required", errorMessage(t, resp))

	resp = env.do(t, http.MethodPut, path, ownerToken, map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListReports(t *testing.T) {
	env := newTestEnv(t, nil)
	_, ownerToken := env.seed(t, "owner@example.com", types.RoleUser)
	_, otherToken := env.seed(t, "other@example.com", types.RoleUser)
	_, adminToken := env.seed(t, "admin@example.com", types.RoleAdmin)

	createReport(t, env, ownerToken, map[string]any{"title": "a", "description": "d", "category": "c"})
	createReport(t, env, otherToken, map[string]any{"title": "b", "description": "d", "category": "c"})

	resp := env.do(t, http.MethodGet, "/api/reports?all=true", ownerToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[[]types.ReportView](t, resp), 1)

	resp = env.do(t, http.MethodGet, "/api/reports?all=true", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[[]types.ReportView](t, resp), 2)

	resp = env.do(t, http.MethodGet, "/api/reports", adminToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "[]\n", resp.Body.String())

	resp = env.do(t, http.MethodGet, "/api/reports?all=true&status=nope", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateReportNumberExhausted(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.seed(t, "owner@example.com", types.RoleUser)
	body := map[string]any{"title": "t", "description": "d", "category": "c"}
	for i := 0; i < 3; i++ {
		createReport(t, env, token, body)
	}
	env.mem.SkipIDs("reports", 9997)

	resp := env.do(t, http.MethodPost, "/api/reports", token, body)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, "report number already in use, please retry", errorMessage(t, resp))
}

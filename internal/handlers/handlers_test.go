package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/safeher/apiserver/config"
	"github.com/safeher/apiserver/internal/auth"
	"github.com/safeher/apiserver/internal/logging"
	"github.com/safeher/apiserver/internal/services"
	"github.com/safeher/apiserver/internal/testutils"
	"github.com/safeher/apiserver/types"
)

func TestMain(m *testing.M) {
	logging.Logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type testEnv struct {
	router    *chi.Mux
	mem       *testutils.MemStore
	blobs     *testutils.Blobs
	publisher *testutils.Publisher
	tokens    *auth.TokenManager
	users     *services.UserService
	export    *services.ExportService
}

func newTestEnv(t *testing.T, publisher *testutils.Publisher) *testEnv {
	t.Helper()

	mem := testutils.NewMemStore()
	blobs := testutils.NewBlobs()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	users := services.NewUserService(mem.Users(), services.BcryptHasher{Cost: bcrypt.MinCost})
	reports := services.NewReportService(mem.Reports(), mem.Notes())
	moderation := services.NewModerationService(mem.Reports(), mem.Notes())
	stats := services.NewStatsService(mem.Stats(), testutils.NewCache(), time.Minute)

	var pub services.Publisher
	if publisher != nil {
		pub = publisher
	}
	export := services.NewExportService(mem.Stats(), blobs, pub, "report-exports")
	attachments := services.NewAttachmentService(blobs, config.UploadsConfig{
		MaxFileSize:       1024,
		AllowedExtensions: []string{"png", "jpg", "pdf"},
		PublicBaseURL:     "/uploads",
	})
	uploads := NewUploadHandler(attachments, 1024)
	authMiddleware := RequireAuth(tokens)

	router := chi.NewRouter()
	router.Get("/uploads/*", uploads.ServeFile)
	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) { AuthRouter(r, users, tokens) })
		r.Route("/reports", func(r chi.Router) { ReportRouter(r, reports, authMiddleware) })
		r.Route("/moderator", func(r chi.Router) { ModeratorRouter(r, moderation, authMiddleware) })
		r.Route("/admin", func(r chi.Router) { AdminRouter(r, users, stats, export, authMiddleware) })
		r.Route("/uploads", func(r chi.Router) { UploadRouter(r, uploads, authMiddleware) })
	})

	return &testEnv{
		router:    router,
		mem:       mem,
		blobs:     blobs,
		publisher: publisher,
		tokens:    tokens,
		users:     users,
		export:    export,
	}
}

// seed creates an account directly in the store and returns a bearer token
// for it.
func (e *testEnv) seed(t *testing.T, email string, role types.Role) (types.User, string) {
	t.Helper()
	hasher := services.BcryptHasher{Cost: bcrypt.MinCost}
	hashed, err := hasher.Hash("password")
	require.NoError(t, err)
	user, err := e.mem.Users().Create(context.Background(), types.User{
		Email:        email,
		FullName:     "Test " + string(role),
		Role:         role,
		IsActive:     true,
		PasswordHash: hashed,
	})
	require.NoError(t, err)
	token, err := e.tokens.Issue(user)
	require.NoError(t, err)
	return user, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), resp.Body.String())
	return out
}

func errorMessage(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorResponse](t, resp).Error
}

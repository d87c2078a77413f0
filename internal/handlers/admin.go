package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/safeher/apiserver/internal/services"
	"github.com/safeher/apiserver/types"
)

// AdminHandler serves account management, statistics and exports.
type AdminHandler struct {
	userService   *services.UserService
	statsService  *services.StatsService
	exportService *services.ExportService
}

func NewAdminHandler(userService *services.UserService, statsService *services.StatsService, exportService *services.ExportService) *AdminHandler {
	return &AdminHandler{
		userService:   userService,
		statsService:  statsService,
		exportService: exportService,
	}
}

// AdminRouter registers admin routes. Admins only.
func AdminRouter(
	r chi.Router,
	userService *services.UserService,
	statsService *services.StatsService,
	exportService *services.ExportService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewAdminHandler(userService, statsService, exportService)

	r.Use(authMiddleware, RequireRoles(types.RoleAdmin))
	r.Get("/users", handler.ListUsers)
	r.Post("/users", handler.CreateUser)
	r.Put("/users/{userID}", handler.UpdateUser)
	r.Get("/stats", handler.Stats)
	r.Get("/reports/export", handler.ExportCSV)
	r.Post("/reports/export-jobs", handler.EnqueueExport)
	r.Get("/reports/export-jobs/{jobID}", handler.DownloadExport)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	users, err := h.userService.List(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err, "user", "list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// CreateUser provisions an account with any role. Role defaults to user.
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	role := types.Role(strings.TrimSpace(req.Role))
	if role == "" {
		role = types.RoleUser
	}

	user, err := h.userService.CreateWithRole(r.Context(), actor, req.Email, req.Password, req.FullName, role)
	if err != nil {
		writeServiceError(w, r, err, "user", "create user")
		return
	}

	label := string(user.Role)
	writeJSON(w, http.StatusCreated, UserResponse{
		Message: strings.ToUpper(label[:1]) + label[1:] + " created successfully",
		User:    user,
	})
}

// UpdateUser toggles is_active. The role cannot be changed here.
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "userID", "user")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var user types.User
	if req.IsActive != nil {
		user, err = h.userService.SetActive(r.Context(), actor, id, *req.IsActive)
	} else {
		user, err = h.userService.GetByID(r.Context(), id)
	}
	if err != nil {
		writeServiceError(w, r, err, "user", "update user")
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{Message: "User updated successfully", User: user})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := h.statsService.Stats(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err, "stats", "load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ExportCSV streams every report as a CSV attachment.
func (h *AdminHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var buf bytes.Buffer
	if err := h.exportService.WriteCSV(r.Context(), actor, &buf); err != nil {
		writeServiceError(w, r, err, "report", "export reports")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", services.ExportFilename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// EnqueueExport queues an asynchronous export and returns the job.
func (h *AdminHandler) EnqueueExport(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	job, err := h.exportService.Enqueue(r.Context(), actor)
	if err != nil {
		writeServiceError(w, r, err, "export", "queue export")
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

// DownloadExport streams the CSV of a finished export job.
func (h *AdminHandler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rc, info, err := h.exportService.OpenResult(r.Context(), actor, chi.URLParam(r, "jobID"))
	if err != nil {
		writeServiceError(w, r, err, "export", "load export")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", services.ExportFilename))
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type UpdateUserRequest struct {
	IsActive *bool `json:"is_active"`
}

type UserResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}

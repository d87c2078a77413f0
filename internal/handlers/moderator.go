package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safeher/apiserver/internal/services"
	"github.com/safeher/apiserver/types"
)

// ModeratorHandler serves the review queue and note endpoints.
type ModeratorHandler struct {
	moderationService *services.ModerationService
}

func NewModeratorHandler(moderationService *services.ModerationService) *ModeratorHandler {
	return &ModeratorHandler{moderationService: moderationService}
}

// ModeratorRouter registers moderator routes. Moderators and admins only.
func ModeratorRouter(r chi.Router, moderationService *services.ModerationService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewModeratorHandler(moderationService)

	r.Use(authMiddleware, RequireRoles(types.RoleModerator, types.RoleAdmin))
	r.Get("/reports", handler.Queue)
	r.Get("/reports/reviewed", handler.Reviewed)
	r.Get("/reports/{reportID}", handler.Detail)
	r.Post("/reports/{reportID}/note", handler.AddNote)
}

func (h *ModeratorHandler) Queue(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reports, err := h.moderationService.Queue(r.Context(), actor, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err, "report", "list queue")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *ModeratorHandler) Reviewed(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reports, err := h.moderationService.ReviewedBy(r.Context(), actor, actor.ID, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err, "report", "list reviewed reports")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *ModeratorHandler) Detail(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "reportID", "report")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.moderationService.Detail(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, err, "report", "fetch report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// AddNote records a moderator note and optionally changes the status.
func (h *ModeratorHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseID(r, "reportID", "report")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req NoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	note, report, err := h.moderationService.AddNote(r.Context(), actor, id, req.Note, req.Status)
	if err != nil {
		writeServiceError(w, r, err, "report", "add note")
		return
	}
	writeJSON(w, http.StatusCreated, NoteResponse{
		Message: "Note added successfully",
		Note:    note,
		Report:  report,
	})
}

type NoteRequest struct {
	Note   string        `json:"note"`
	Status *types.Status `json:"status"`
}

type NoteResponse struct {
	Message string              `json:"message"`
	Note    types.ModeratorNote `json:"note"`
	Report  types.ReportView    `json:"report"`
}

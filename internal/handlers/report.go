package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/safeher/apiserver/internal/services"
	"github.com/safeher/apiserver/types"
)

// ReportHandler provides HTTP handlers for reports.
type ReportHandler struct {
	reportService *services.ReportService
}

func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// ReportRouter registers report routes on the given router. Every route
// requires authentication.
func ReportRouter(r chi.Router, reportService *services.ReportService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewReportHandler(reportService)

	r.Use(authMiddleware)
	r.Get("/", handler.ListReports)
	r.Post("/", handler.CreateReport)
	r.Route("/{reportID}", func(r chi.Router) {
		r.Get("/", handler.GetReport)
		r.Put("/", handler.UpdateReport)
	})
}

// ListReports returns the caller's reports, or every report for moderators
// and admins passing all=true.
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	query := r.URL.Query()
	reports, err := h.reportService.List(r.Context(), actor, services.ListOptions{
		All:    strings.EqualFold(strings.TrimSpace(query.Get("all")), "true"),
		Status: query.Get("status"),
	})
	if err != nil {
		writeServiceError(w, r, err, "report", "list reports")
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var input types.ReportInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.reportService.Create(r.Context(), actor, input)
	if err != nil {
		writeServiceError(w, r, err, "report", "create report")
		return
	}
	writeJSON(w, http.StatusCreated, ReportResponse{Message: "Report created successfully", Report: report})
}

func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
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

	report, err := h.reportService.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, r, err, "report", "fetch report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// UpdateReport applies a partial update. Keys the caller may not change are
// ignored.
func (h *ReportHandler) UpdateReport(w http.ResponseWriter, r *http.Request) {
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

	var patch types.ReportPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.reportService.Update(r.Context(), actor, id, patch)
	if err != nil {
		writeServiceError(w, r, err, "report", "update report")
		return
	}
	writeJSON(w, http.StatusOK, ReportResponse{Message: "Report updated successfully", Report: report})
}

type ReportResponse struct {
	Message string           `json:"message"`
	Report  types.ReportView `json:"report"`
}

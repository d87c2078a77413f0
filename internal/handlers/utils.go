package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/safeher/apiserver/internal/logging"
	"github.com/safeher/apiserver/internal/services"
	"github.com/safeher/apiserver/internal/store"
	"github.com/safeher/apiserver/types"
)

type contextKey string

const contextActorKey contextKey = "actor"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func withActor(ctx context.Context, actor types.Actor) context.Context {
	return context.WithValue(ctx, contextActorKey, actor)
}

func actorFromContext(ctx context.Context) (types.Actor, error) {
	actor, ok := ctx.Value(contextActorKey).(types.Actor)
	if !ok || actor.ID < 1 {
		return types.Actor{}, errors.New("missing actor")
	}
	return actor, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps a service error onto a status code. resource names
// the missing entity for 404s and action describes the failed step for 500s.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, resource, action string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, services.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, services.ErrAccountDeactivated):
		writeError(w, http.StatusForbidden, "Account is deactivated")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, store.ErrReportNumberTaken):
		writeError(w, http.StatusConflict, "report number already in use, please retry")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, resource+" not found")
	case errors.Is(err, services.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		internalError(w, r, err, "failed to "+action)
	}
}

// internalError logs and reports err and answers with a generic message.
func internalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	logging.Logger.WithError(err).WithFields(logrus.Fields{
		"source":     "http",
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": middleware.GetReqID(r.Context()),
	}).Error(message)
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
	}
	writeError(w, http.StatusInternalServerError, message)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid request")
	}
	return nil
}

func parseID(r *http.Request, param, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, param))
	if err != nil || id < 1 {
		return 0, errors.New("invalid " + name + " id")
	}
	return id, nil
}

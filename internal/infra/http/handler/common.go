// Package handler contains the HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/webscanio/api/internal/infra/http/middleware"
	"github.com/webscanio/api/pkg/apierror"
	"github.com/webscanio/api/pkg/domain/shared"
	"github.com/webscanio/api/pkg/logger"
	"github.com/webscanio/api/pkg/validator"
)

// HandlerFunc is the signature route handlers implement. A failing
// handler returns the error instead of writing a response; Wrap funnels
// it through the translator, so every failure is written exactly once.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Wrap adapts a HandlerFunc to http.HandlerFunc. Server-side failures
// are logged with request context; client errors are the caller's
// problem and stay out of the logs.
func Wrap(log *logger.Logger, fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		apiErr := apierror.FromError(err)
		if apiErr.Status >= http.StatusInternalServerError {
			log.WithContext(r.Context()).Error("request failed",
				"method", r.Method,
				"path", r.URL.Path,
				"status", apiErr.Status,
				"error", err,
			)
		}
		apiErr.WriteJSON(w)
	}
}

// respondJSON writes data as the response body. An encoding failure
// after the header is written cannot become an error response anymore,
// so it is dropped rather than handed back to Wrap for a second write.
func respondJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
	return nil
}

// decodeJSON decodes the request body into dst. A body over the size
// limit surfaces as 413; anything else unreadable is a plain 400.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return apierror.New(http.StatusRequestEntityTooLarge, "Request body too large")
		}
		return shared.InvalidInput("Invalid request body")
	}
	return nil
}

// callerID returns the authenticated subject. Routes behind the
// credential gate always carry one; a zero subject means the route was
// wired outside the gate by mistake.
func callerID(r *http.Request) (shared.ID, error) {
	id := middleware.GetSubject(r.Context())
	if id.IsZero() {
		return shared.ID{}, shared.Unauthenticated("Authentication required")
	}
	return id, nil
}

// pathID reads the {id} route parameter. A malformed id maps to the
// same not-found error as an absent record, so probing the id space
// reveals nothing about what exists.
func pathID(r *http.Request, notFound error) (shared.ID, error) {
	id, err := shared.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		return shared.ID{}, notFound
	}
	return id, nil
}

// queryInt reads an integer query parameter, falling back to def when
// the parameter is absent or unparseable. Range clamping is left to
// pagination.New.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// validationError converts validator failures into a 400 with
// per-field details. Anything else still becomes a 400: by this point
// the body was readable, just wrong.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(apierror.ValidationErrors, len(verrs))
		for i, ve := range verrs {
			details[i] = apierror.ValidationError{Field: ve.Field, Message: ve.Message}
		}
		return details.ToAPIError()
	}
	return apierror.BadRequest("Validation error")
}

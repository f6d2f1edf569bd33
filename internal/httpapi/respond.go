// Package httpapi holds the pieces every HTTP handler shares: JSON
// responders, the error translation layer, middleware and pagination.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jogardn/safety-storefront/internal/apperr"
	"github.com/jogardn/safety-storefront/internal/database"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

type ErrorBody struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
	Field   string            `json:"field,omitempty"`
	Stack   string            `json:"stack,omitempty"`
}

// Responder writes JSON responses and translates errors into status codes.
type Responder struct {
	logger     *logrus.Logger
	production bool
}

func NewResponder(logger *logrus.Logger, production bool) *Responder {
	return &Responder{logger: logger, production: production}
}

func (rs *Responder) JSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		rs.logger.WithError(err).Error("Failed to encode response")
		code = http.StatusInternalServerError
		response = []byte(`{"success":false,"message":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (rs *Responder) Message(w http.ResponseWriter, code int, message string) {
	rs.JSON(w, code, ErrorBody{Success: false, Message: message})
}

// Error maps err onto a status code: validation 400, unique violation 409,
// missing 404, auth 401/403, everything else 500 with the raw message. The
// stack is only exposed outside production.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	if database.IsUniqueViolation(err) {
		err = apperr.Conflict(database.ConflictField(err), err)
	}

	body := ErrorBody{Success: false, Message: err.Error()}
	code := http.StatusInternalServerError

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		body.Message = appErr.Error()
		switch appErr.Kind {
		case apperr.KindValidation:
			code = http.StatusBadRequest
			body.Errors = appErr.Fields
		case apperr.KindConflict:
			code = http.StatusConflict
			body.Field = appErr.Field
		case apperr.KindNotFound:
			code = http.StatusNotFound
		case apperr.KindUnauthorized:
			code = http.StatusUnauthorized
		case apperr.KindForbidden:
			code = http.StatusForbidden
		}
	}

	fields := logrus.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"status":     code,
		"request_id": RequestIDFrom(r.Context()),
	}
	if code == http.StatusInternalServerError {
		rs.logger.WithFields(fields).WithError(err).Error("Request failed")
		if !rs.production {
			var st stackTracer
			if !errors.As(err, &st) {
				// Plain wrapped errors carry no stack; record where the
				// failure was translated instead.
				st = pkgerrors.WithStack(err).(stackTracer)
			}
			body.Stack = fmt.Sprintf("%+v", st.StackTrace())
		}
	} else {
		rs.logger.WithFields(fields).WithError(err).Debug("Request rejected")
	}

	rs.JSON(w, code, body)
}

// Decode reads a JSON body into v.
func Decode(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return apperr.Invalid("body", "Request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Invalid("body", "Invalid request body")
	}
	return nil
}

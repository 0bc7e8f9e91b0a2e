package httpapi

import (
	"context"
	"errors"
	"net/http"

	sonic "github.com/bytedance/sonic"

	"github.com/icctweb/team-registration/internal/usecase"
)

const (
	googleAPIVersion = "2.0"
	errorDomain      = "team-registration"
)

type googleResponseEnvelope struct {
	APIVersion string           `json:"apiVersion"`
	Data       any              `json:"data,omitempty"`
	Error      *googleErrorBody `json:"error,omitempty"`
}

type googleErrorBody struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Status  string            `json:"status"`
	Errors  []googleErrorItem `json:"errors,omitempty"`
}

type googleErrorItem struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type mappedError struct {
	HTTPStatus int
	Reason     string
	Status     string

	// Message replaces the error text in the external envelope when set.
	// Operational failures carry driver and storage detail in their chain;
	// that detail is logged server-side and must not reach callers.
	Message string
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	ctx, span := startSpan(ctx, "httpapi.writeJSON")
	defer span.End()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeSuccess(ctx context.Context, w http.ResponseWriter, status int, data any) {
	ctx, span := startSpan(ctx, "httpapi.writeSuccess")
	defer span.End()

	writeJSON(ctx, w, status, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Data:       data,
	})
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	ctx, span := startSpan(ctx, "httpapi.writeError")
	defer span.End()

	mapped := mapError(err)
	message := mapped.Message
	if message == "" {
		message = err.Error()
	}
	writeJSON(ctx, w, mapped.HTTPStatus, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Error: &googleErrorBody{
			Code:    mapped.HTTPStatus,
			Message: message,
			Status:  mapped.Status,
			Errors: []googleErrorItem{
				{
					Domain:  errorDomain,
					Reason:  mapped.Reason,
					Message: message,
				},
			},
		},
	})
}

func writeInternalError(ctx context.Context, w http.ResponseWriter) {
	ctx, span := startSpan(ctx, "httpapi.writeInternalError")
	defer span.End()

	const msg = "internal server error"

	writeJSON(ctx, w, http.StatusInternalServerError, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Error: &googleErrorBody{
			Code:    http.StatusInternalServerError,
			Message: msg,
			Status:  "INTERNAL",
			Errors: []googleErrorItem{
				{
					Domain:  errorDomain,
					Reason:  "internalError",
					Message: msg,
				},
			},
		},
	})
}

func mapError(err error) mappedError {
	switch {
	case errors.Is(err, usecase.ErrInvalidInput):
		return mappedError{
			HTTPStatus: http.StatusBadRequest,
			Reason:     "validationFailed",
			Status:     "INVALID_ARGUMENT",
		}
	case errors.Is(err, usecase.ErrNotFound):
		return mappedError{
			HTTPStatus: http.StatusNotFound,
			Reason:     "notFound",
			Status:     "NOT_FOUND",
		}
	case errors.Is(err, usecase.ErrUnauthorized):
		return mappedError{
			HTTPStatus: http.StatusUnauthorized,
			Reason:     "unauthorized",
			Status:     "UNAUTHENTICATED",
		}
	case errors.Is(err, usecase.ErrDuplicateRegistration):
		return mappedError{
			HTTPStatus: http.StatusConflict,
			Reason:     "duplicateRegistration",
			Status:     "ALREADY_EXISTS",
		}
	case errors.Is(err, usecase.ErrSequenceNotInitialized):
		return mappedError{
			HTTPStatus: http.StatusInternalServerError,
			Reason:     "sequenceNotInitialized",
			Status:     "FAILED_PRECONDITION",
			Message:    "id sequence is not initialized",
		}
	case errors.Is(err, usecase.ErrSequenceAllocation):
		return mappedError{
			HTTPStatus: http.StatusServiceUnavailable,
			Reason:     "sequenceAllocationFailed",
			Status:     "UNAVAILABLE",
			Message:    "team id allocation failed",
		}
	case errors.Is(err, usecase.ErrFileUpload):
		return mappedError{
			HTTPStatus: http.StatusBadGateway,
			Reason:     "fileUploadFailed",
			Status:     "UNAVAILABLE",
			Message:    "document upload failed",
		}
	case errors.Is(err, usecase.ErrFileMigration):
		return mappedError{
			HTTPStatus: http.StatusBadGateway,
			Reason:     "fileMigrationFailed",
			Status:     "UNAVAILABLE",
			Message:    "document migration failed",
		}
	case errors.Is(err, usecase.ErrDatabase), errors.Is(err, usecase.ErrDependencyUnavailable):
		return mappedError{
			HTTPStatus: http.StatusServiceUnavailable,
			Reason:     "dependencyUnavailable",
			Status:     "UNAVAILABLE",
			Message:    "a backing service is unavailable",
		}
	default:
		return mappedError{
			HTTPStatus: http.StatusInternalServerError,
			Reason:     "internalError",
			Status:     "INTERNAL",
			Message:    "internal server error",
		}
	}
}

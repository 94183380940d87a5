package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragconsole/internal/apperr"
)

type ErrorCode string

const (
	ErrBadRequest           ErrorCode = "BAD_REQUEST"
	ErrUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrForbidden            ErrorCode = "FORBIDDEN"
	ErrNotFound             ErrorCode = "NOT_FOUND"
	ErrConflict             ErrorCode = "CONFLICT"
	ErrValidation           ErrorCode = "VALIDATION_ERROR"
	ErrBusy                 ErrorCode = "BUSY"
	ErrConfirmationRequired ErrorCode = "CONFIRMATION_REQUIRED"
	ErrRemote               ErrorCode = "REMOTE_ERROR"
	ErrInternalServer       ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrServiceUnavailable   ErrorCode = "SERVICE_UNAVAILABLE"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

func NewAppError(code ErrorCode, message string, details any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

func (e *AppError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// HandleError writes err using the status its classification maps to.
func HandleError(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		ErrorResponse(c, getStatusCode(appErr.Code), string(appErr.Code), appErr.Message)
		return
	}

	if e, ok := apperr.As(err); ok {
		code, status := fromKind(e)
		ErrorResponse(c, status, string(code), e.Message)
		return
	}

	InternalServerErrorResponse(c, err.Error())
}

func fromKind(e *apperr.Error) (ErrorCode, int) {
	switch e.Kind {
	case apperr.KindAuthentication:
		return ErrUnauthorized, http.StatusUnauthorized
	case apperr.KindValidation:
		return ErrValidation, http.StatusBadRequest
	case apperr.KindBusy:
		return ErrBusy, http.StatusConflict
	case apperr.KindNotConfirmed:
		return ErrConfirmationRequired, http.StatusPreconditionRequired
	case apperr.KindTransport:
		return ErrServiceUnavailable, http.StatusServiceUnavailable
	case apperr.KindRemote:
		switch e.Status {
		case http.StatusUnauthorized:
			return ErrUnauthorized, http.StatusUnauthorized
		case http.StatusNotFound:
			return ErrNotFound, http.StatusNotFound
		}
		return ErrRemote, http.StatusBadGateway
	default:
		return ErrInternalServer, http.StatusInternalServerError
	}
}

func getStatusCode(code ErrorCode) int {
	switch code {
	case ErrBadRequest, ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict, ErrBusy:
		return http.StatusConflict
	case ErrConfirmationRequired:
		return http.StatusPreconditionRequired
	case ErrRemote:
		return http.StatusBadGateway
	case ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

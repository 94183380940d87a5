package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func SuccessResponse(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func ErrorResponse(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}

type confirmationPayload struct {
	ConfirmToken string `json:"confirmToken"`
	Prompt       string `json:"prompt"`
}

// ConfirmationRequiredResponse asks the caller to repeat the request with
// the token in the X-Confirm-Token header.
func ConfirmationRequiredResponse(c *gin.Context, token, prompt string) {
	c.JSON(http.StatusPreconditionRequired, Response{
		Success: false,
		Data:    confirmationPayload{ConfirmToken: token, Prompt: prompt},
		Error: &ErrorInfo{
			Code:    string(ErrConfirmationRequired),
			Message: prompt,
		},
	})
}

func BadRequestResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, string(ErrBadRequest), message)
}

func InternalServerErrorResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, string(ErrInternalServer), message)
}

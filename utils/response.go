package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StandardResponse is the envelope of every successful API reply.
type StandardResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ErrorResponse is the envelope of every failed API reply. Error carries
// detail only for client mistakes; server side failures leave it empty.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Code    int    `json:"code"`
}

func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, StandardResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponseWithCode sends an error envelope with a custom status code.
func ErrorResponseWithCode(c *gin.Context, statusCode int, message string, err error) {
	errorMsg := ""
	if err != nil {
		errorMsg = err.Error()
	}

	c.JSON(statusCode, ErrorResponse{
		Success: false,
		Message: message,
		Error:   errorMsg,
		Code:    statusCode,
	})
}

func BadRequestError(c *gin.Context, message string, err error) {
	ErrorResponseWithCode(c, http.StatusBadRequest, message, err)
}

// InternalServerError logs err and replies 500 without exposing it.
func InternalServerError(c *gin.Context, message string, err error) {
	LogError(message, err, map[string]interface{}{"path": c.Request.URL.Path})
	ErrorResponseWithCode(c, http.StatusInternalServerError, message, nil)
}

func UnauthorizedError(c *gin.Context, message string) {
	ErrorResponseWithCode(c, http.StatusUnauthorized, message, nil)
}

func NotFoundError(c *gin.Context, message string) {
	ErrorResponseWithCode(c, http.StatusNotFound, message, nil)
}

// UnprocessableError reports a request that was understood but could not be
// carried out, such as an autofill stopped by a challenge.
func UnprocessableError(c *gin.Context, message string) {
	ErrorResponseWithCode(c, http.StatusUnprocessableEntity, message, nil)
}

func InsufficientStorageError(c *gin.Context, message string) {
	ErrorResponseWithCode(c, http.StatusInsufficientStorage, message, nil)
}

func ServiceUnavailableError(c *gin.Context, message string) {
	ErrorResponseWithCode(c, http.StatusServiceUnavailable, message, nil)
}

func ValidationError(c *gin.Context, err error) {
	BadRequestError(c, "Validation failed", err)
}

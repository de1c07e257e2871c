package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"formautofill/utils"
)

// MaxRequestSize rejects bodies that declare more than maxSize bytes and caps
// reads of the rest.
func MaxRequestSize(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			utils.ErrorResponseWithCode(c, http.StatusRequestEntityTooLarge, "Request body too large", nil)
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

func hasBody(method string) bool {
	switch method {
	case http.MethodGet, http.MethodDelete, http.MethodOptions, http.MethodHead:
		return false
	}
	return true
}

// ValidateContentType requires one of the expected content types on
// requests that carry a body. Empty bodies pass.
func ValidateContentType(expectedTypes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !hasBody(c.Request.Method) || c.Request.ContentLength == 0 {
			c.Next()
			return
		}
		contentType := c.GetHeader("Content-Type")
		for _, expected := range expectedTypes {
			if strings.Contains(contentType, expected) {
				c.Next()
				return
			}
		}
		utils.BadRequestError(c, "Invalid content type", nil)
		c.Abort()
	}
}

// ValidateJSON is ValidateContentType for JSON APIs.
func ValidateJSON() gin.HandlerFunc {
	return ValidateContentType("application/json")
}

// SanitizeInput strips null bytes and surrounding space from query parameters.
func SanitizeInput() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Request.URL.Query()
		for key, values := range query {
			for i, value := range values {
				query[key][i] = sanitizeString(value)
			}
		}
		c.Request.URL.RawQuery = query.Encode()
		c.Next()
	}
}

const maxParamLength = 10000

func sanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	input = strings.TrimSpace(input)
	if len(input) > maxParamLength {
		input = input[:maxParamLength]
	}
	return input
}

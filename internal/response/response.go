package response

import "github.com/gin-gonic/gin"

// SuccessResponse is a plain acknowledgement.
type SuccessResponse struct {
	Message string `json:"message" example:"ticket deleted"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	// Machine-readable error code
	// example: TICKET_NOT_FOUND
	Code string `json:"code"`

	// example: ticket not found
	Message string `json:"message"`

	// Underlying error, if any
	Details string `json:"details,omitempty"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status      string `json:"status" example:"ok"`
	Connections int    `json:"connections"`
}

// Error aborts the request with an ErrorResponse.
func Error(c *gin.Context, status int, code, message string, err error) {
	body := ErrorResponse{Code: code, Message: message}
	if err != nil {
		body.Details = err.Error()
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

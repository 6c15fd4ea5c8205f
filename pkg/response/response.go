package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/javandres/bultti-inspections-api/internal/models"
	appErrors "github.com/javandres/bultti-inspections-api/pkg/errors"
)

// Envelope is the response contract shared by every endpoint. Exactly one
// of Data or Error is set.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success envelope with optional pagination and meta.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	write(c, status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error maps the error through the application error contract and sends
// it with its HTTP status. Retryable failures carry a Retry-After hint so
// clients know re-fetching and repeating the action may succeed.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErrors.Retryable(appErr) {
		c.Header("Retry-After", "0")
	}
	write(c, appErr.Status, Envelope{Error: appErr})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func write(c *gin.Context, status int, envelope Envelope) {
	// Lifecycle state changes under the caller's feet; never let clients
	// cache a document response.
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, envelope)
}

package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/Amdreaith/elearning-api/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Success bool        `json:"success"`
	Count   *int        `json:"count,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details []string    `json:"details,omitempty"`
}

// JSON sends a success response.
func JSON(c *gin.Context, status int, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, Envelope{Success: true, Data: data})
}

// List sends a success response for collection payloads, including the count
// field the API contract exposes alongside the array.
func List(c *gin.Context, count int, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusOK, Envelope{Success: true, Count: &count, Data: data})
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Deleted responds with HTTP 200 and a confirmation message; the data field
// stays present as an empty object for clients that always read it.
func Deleted(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: struct{}{}})
}

// Error sends an error response converting the error to the common structure.
// Internal errors never leak the underlying cause to the client.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{Error: appErr.Message, Details: appErr.Details})
}

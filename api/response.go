package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unkn0wn-root/userd"
)

// Response is the envelope of every reply.
type Response struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
	Data    any    `json:"data"`
}

// statusData is the payload of delete and degraded update replies.
type statusData struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func ok(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusOK, Response{Message: msg, Success: true, Data: data})
}

// fail writes err with the status its kind maps to.
func fail(c *gin.Context, err error) {
	c.JSON(statusOf(err), Response{Message: err.Error(), Success: false})
}

func statusOf(err error) int {
	switch userd.KindOf(err) {
	case userd.KindValidation:
		return http.StatusBadRequest
	case userd.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

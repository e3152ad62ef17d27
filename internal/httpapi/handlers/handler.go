package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veltrane/chatvault/internal/chat"
	"github.com/veltrane/chatvault/internal/common"
	"github.com/veltrane/chatvault/internal/coordinator"
	"github.com/veltrane/chatvault/internal/files"
	"github.com/veltrane/chatvault/internal/store/kvstore"
	"github.com/veltrane/chatvault/internal/store/objectstore"
)

type Handler struct {
	Coord *coordinator.Coordinator
}

func NewHandler(coord *coordinator.Coordinator) *Handler {
	return &Handler{Coord: coord}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

// failFor maps store errors onto the response envelope. Backend
// unavailability is deliberately distinguishable from "not found".
func failFor(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrChatNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "chat not found")
	case errors.Is(err, chat.ErrMessageNotFound):
		common.Fail(c, http.StatusNotFound, 40402, "message not found")
	case errors.Is(err, chat.ErrInvalidTimestamp),
		errors.Is(err, chat.ErrEmptyDescription),
		errors.Is(err, chat.ErrMissingChatID),
		errors.Is(err, files.ErrMissingPath),
		errors.Is(err, files.ErrMissingFileID),
		errors.Is(err, kvstore.ErrMissingUserID),
		errors.Is(err, kvstore.ErrMissingProvider):
		common.Fail(c, http.StatusBadRequest, 40001, err.Error())
	case errors.Is(err, objectstore.ErrMissingObject):
		common.Fail(c, http.StatusNotFound, 40403, "object not found")
	case errors.Is(err, kvstore.ErrUnavailable),
		errors.Is(err, objectstore.ErrUnavailable):
		common.Fail(c, http.StatusServiceUnavailable, 50301, "storage not available")
	default:
		common.Fail(c, http.StatusInternalServerError, 50001, "storage operation failed")
	}
}

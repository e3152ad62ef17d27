package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veltrane/chatvault/internal/chat"
	"github.com/veltrane/chatvault/internal/common"
)

func (h *Handler) ListChats(c *gin.Context) {
	chats, err := h.Coord.GetAllChats(c.Request.Context())
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, chats)
}

func (h *Handler) GetChat(c *gin.Context) {
	rec, err := h.Coord.GetChat(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFor(c, err)
		return
	}
	if rec == nil {
		common.Fail(c, http.StatusNotFound, 40401, "chat not found")
		return
	}
	common.OK(c, rec)
}

type createChatReq struct {
	Description string             `json:"description"`
	Messages    chat.MessageList   `json:"messages" binding:"required"`
	Metadata    *chat.ChatMetadata `json:"metadata"`
}

func (h *Handler) CreateChat(c *gin.Context) {
	var req createChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	rec, err := h.Coord.CreateChatFromMessages(c.Request.Context(), req.Description, req.Messages, req.Metadata)
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, rec)
}

type upsertChatReq struct {
	Messages    chat.MessageList   `json:"messages" binding:"required"`
	URLID       *string            `json:"urlId"`
	Description *string            `json:"description"`
	Timestamp   string             `json:"timestamp"`
	Metadata    *chat.ChatMetadata `json:"metadata"`
}

func (h *Handler) UpsertChat(c *gin.Context) {
	var req upsertChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	err := h.Coord.SetMessages(c.Request.Context(), c.Param("id"), req.Messages, chat.SetMessagesParams{
		URLID:       req.URLID,
		Description: req.Description,
		Timestamp:   req.Timestamp,
		Metadata:    req.Metadata,
	})
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{"id": c.Param("id")})
}

func (h *Handler) DeleteChat(c *gin.Context) {
	if err := h.Coord.DeleteChat(c.Request.Context(), c.Param("id")); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, nil)
}

type forkChatReq struct {
	MessageID string `json:"message_id" binding:"required"`
}

func (h *Handler) ForkChat(c *gin.Context) {
	var req forkChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	rec, err := h.Coord.ForkChat(c.Request.Context(), c.Param("id"), req.MessageID)
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, rec)
}

func (h *Handler) DuplicateChat(c *gin.Context) {
	rec, err := h.Coord.DuplicateChat(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, rec)
}

type updateDescriptionReq struct {
	Description string `json:"description" binding:"required"`
}

func (h *Handler) UpdateChatDescription(c *gin.Context) {
	var req updateDescriptionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if err := h.Coord.UpdateChatDescription(c.Request.Context(), c.Param("id"), req.Description); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, nil)
}

type updateMetadataReq struct {
	Metadata *chat.ChatMetadata `json:"metadata"`
}

func (h *Handler) UpdateChatMetadata(c *gin.Context) {
	var req updateMetadataReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if err := h.Coord.UpdateChatMetadata(c.Request.Context(), c.Param("id"), req.Metadata); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, nil)
}

// Snapshots

func (h *Handler) GetSnapshot(c *gin.Context) {
	snap, err := h.Coord.GetSnapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFor(c, err)
		return
	}
	if snap == nil {
		common.Fail(c, http.StatusNotFound, 40404, "snapshot not found")
		return
	}
	common.OK(c, snap)
}

type setSnapshotReq struct {
	Data string `json:"data" binding:"required"`
}

func (h *Handler) SetSnapshot(c *gin.Context) {
	var req setSnapshotReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if err := h.Coord.SetSnapshot(c.Request.Context(), c.Param("id"), req.Data); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, nil)
}

func (h *Handler) DeleteSnapshot(c *gin.Context) {
	if err := h.Coord.DeleteSnapshot(c.Request.Context(), c.Param("id")); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, nil)
}

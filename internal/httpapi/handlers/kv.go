package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veltrane/chatvault/internal/common"
)

// Sessions

type setSessionReq struct {
	Data       json.RawMessage `json:"data" binding:"required"`
	TTLSeconds int             `json:"ttl_seconds"`
}

func (h *Handler) SetSession(c *gin.Context) {
	var req setSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if err := h.Coord.SetSession(c.Request.Context(), c.Param("id"), req.Data, ttl); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, nil)
}

func (h *Handler) GetSession(c *gin.Context) {
	var data json.RawMessage
	found, err := h.Coord.GetSession(c.Request.Context(), c.Param("id"), &data)
	if err != nil {
		failFor(c, err)
		return
	}
	if !found {
		common.Fail(c, http.StatusNotFound, 40406, "session not found")
		return
	}
	common.OK(c, data)
}

func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.Coord.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, nil)
}

// Cache

type setCacheReq struct {
	Value      json.RawMessage `json:"value" binding:"required"`
	TTLSeconds int             `json:"ttl_seconds"`
}

func (h *Handler) CacheSet(c *gin.Context) {
	var req setCacheReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if err := h.Coord.CacheSet(c.Request.Context(), c.Param("key"), req.Value, ttl); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, nil)
}

func (h *Handler) CacheGet(c *gin.Context) {
	var value json.RawMessage
	found, err := h.Coord.CacheGet(c.Request.Context(), c.Param("key"), &value)
	if err != nil {
		failFor(c, err)
		return
	}
	if !found {
		common.Fail(c, http.StatusNotFound, 40407, "cache entry not found")
		return
	}
	common.OK(c, value)
}

func (h *Handler) CacheDelete(c *gin.Context) {
	if err := h.Coord.CacheDelete(c.Request.Context(), c.Param("key")); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, nil)
}

// Credentials

type setAPIKeyReq struct {
	Secret string `json:"secret" binding:"required"`
}

func (h *Handler) SetAPIKey(c *gin.Context) {
	var req setAPIKeyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if err := h.Coord.SetAPIKey(c.Request.Context(), c.Param("id"), c.Param("provider"), req.Secret); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, nil)
}

func (h *Handler) ListAPIKeys(c *gin.Context) {
	masked, err := h.Coord.ListAPIKeyProviders(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, masked)
}

func (h *Handler) DeleteAPIKeys(c *gin.Context) {
	if err := h.Coord.DeleteAPIKeys(c.Request.Context(), c.Param("id")); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, nil)
}

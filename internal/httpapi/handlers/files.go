package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veltrane/chatvault/internal/common"
	"github.com/veltrane/chatvault/internal/files"
)

// StoreFile accepts a multipart upload under the form field "file".
// Optional form fields: chat_id, content_type (falls back to the part's own
// content type).
func (h *Handler) StoreFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "missing file field")
		return
	}
	f, err := fh.Open()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "unreadable file field")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "unreadable file field")
		return
	}

	contentType := c.PostForm("content_type")
	if contentType == "" {
		contentType = fh.Header.Get("Content-Type")
	}

	rec, err := h.Coord.StoreFile(c.Request.Context(), files.StoreFileInput{
		Data:        data,
		Path:        fh.Filename,
		ChatID:      c.PostForm("chat_id"),
		ContentType: contentType,
	})
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, rec)
}

func (h *Handler) GetFile(c *gin.Context) {
	data, found, err := h.Coord.GetFile(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFor(c, err)
		return
	}
	if !found {
		common.Fail(c, http.StatusNotFound, 40405, "file not found")
		return
	}

	contentType := "application/octet-stream"
	if rec, err := h.Coord.GetFileMetadata(c.Request.Context(), c.Param("id")); err == nil && rec != nil && rec.ContentType != nil {
		contentType = *rec.ContentType
	}
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handler) GetFileAsText(c *gin.Context) {
	text, found, err := h.Coord.GetFileAsText(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFor(c, err)
		return
	}
	if !found {
		common.Fail(c, http.StatusNotFound, 40405, "file not found")
		return
	}
	common.OK(c, gin.H{"text": text})
}

func (h *Handler) GetFileMetadata(c *gin.Context) {
	rec, err := h.Coord.GetFileMetadata(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFor(c, err)
		return
	}
	if rec == nil {
		common.Fail(c, http.StatusNotFound, 40405, "file not found")
		return
	}
	common.OK(c, rec)
}

func (h *Handler) DeleteFile(c *gin.Context) {
	if err := h.Coord.DeleteFile(c.Request.Context(), c.Param("id")); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, nil)
}

func (h *Handler) ListFilesForChat(c *gin.Context) {
	recs, err := h.Coord.ListFilesForChat(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, recs)
}

func (h *Handler) SearchFiles(c *gin.Context) {
	pattern := c.Query("q")
	if pattern == "" {
		common.Fail(c, http.StatusBadRequest, 10003, "missing q parameter")
		return
	}
	recs, err := h.Coord.SearchFilesByPath(c.Request.Context(), pattern)
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, recs)
}

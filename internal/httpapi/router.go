package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veltrane/chatvault/internal/common"
	"github.com/veltrane/chatvault/internal/coordinator"
	"github.com/veltrane/chatvault/internal/httpapi/handlers"
	"github.com/veltrane/chatvault/internal/httpapi/middleware"
)

func NewRouter(coord *coordinator.Coordinator) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(coord)

	r.GET("/ping", h.Ping)

	// Chats
	r.GET("/chats", h.ListChats)
	r.POST("/chats", h.CreateChat)
	r.GET("/chats/:id", h.GetChat)
	r.PUT("/chats/:id", h.UpsertChat)
	r.DELETE("/chats/:id", h.DeleteChat)
	r.POST("/chats/:id/fork", h.ForkChat)
	r.POST("/chats/:id/duplicate", h.DuplicateChat)
	r.PATCH("/chats/:id/description", h.UpdateChatDescription)
	r.PATCH("/chats/:id/metadata", h.UpdateChatMetadata)

	// Snapshots
	r.GET("/chats/:id/snapshot", h.GetSnapshot)
	r.PUT("/chats/:id/snapshot", h.SetSnapshot)
	r.DELETE("/chats/:id/snapshot", h.DeleteSnapshot)

	// Files
	r.POST("/files", h.StoreFile)
	r.GET("/files", h.SearchFiles)
	r.GET("/files/:id", h.GetFile)
	r.GET("/files/:id/text", h.GetFileAsText)
	r.GET("/files/:id/metadata", h.GetFileMetadata)
	r.DELETE("/files/:id", h.DeleteFile)
	r.GET("/chats/:id/files", h.ListFilesForChat)

	// Sessions
	r.PUT("/sessions/:id", h.SetSession)
	r.GET("/sessions/:id", h.GetSession)
	r.DELETE("/sessions/:id", h.DeleteSession)

	// Cache
	r.PUT("/cache/:key", h.CacheSet)
	r.GET("/cache/:key", h.CacheGet)
	r.DELETE("/cache/:key", h.CacheDelete)

	// Credentials
	r.PUT("/users/:id/keys/:provider", h.SetAPIKey)
	r.GET("/users/:id/keys", h.ListAPIKeys)
	r.DELETE("/users/:id/keys", h.DeleteAPIKeys)

	return r
}

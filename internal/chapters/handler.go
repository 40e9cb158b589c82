package chapters

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"novelhub/internal/identity"
	"novelhub/internal/syncnotify"
	"novelhub/pkg/dberr"
	"novelhub/pkg/models"
)

type Handler struct {
	Repo     *Repo
	Resolver *identity.Resolver
	Hub      *syncnotify.Hub
}

func NewHandler(repo *Repo, resolver *identity.Resolver, hub *syncnotify.Hub) *Handler {
	return &Handler{Repo: repo, Resolver: resolver, Hub: hub}
}

// Chapter URLs contain slashes, so they travel as a query parameter rather
// than a path segment.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)                   // GET /chapters
	rg.GET("/by-url", h.getByURL)        // GET /chapters/by-url?url=...
	rg.GET("/by-id/:stableId", h.getByStableID)
	rg.POST("", h.store)                 // POST /chapters
	rg.POST("/touch", h.touch)           // POST /chapters/touch?url=...
	rg.DELETE("", h.delete)              // DELETE /chapters?url=...
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.Repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(items), "items": items})
}

func (h *Handler) getByURL(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}
	ch, err := h.Repo.Get(c.Request.Context(), url)
	if err != nil {
		if dberr.IsKind(err, dberr.NotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (h *Handler) getByStableID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("stableId"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stable id required"})
		return
	}
	url, err := h.Resolver.ResolveURLForStableID(c.Request.Context(), id)
	if err != nil && !identity.IsRepairFailure(err) {
		if dberr.IsKind(err, dberr.NotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve failed"})
		return
	}
	ch, err := h.Repo.Get(c.Request.Context(), url)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (h *Handler) store(c *gin.Context) {
	var ch models.ChapterRecord
	if err := c.ShouldBindJSON(&ch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(ch.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}
	if err := h.Repo.Store(c.Request.Context(), &ch); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failed"})
		return
	}
	if h.Hub != nil {
		h.Hub.Broadcast(syncnotify.NewEvent(syncnotify.EventChapterStored, ch.StableID, ch.URL, 0))
	}
	c.JSON(http.StatusCreated, ch)
}

func (h *Handler) touch(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}
	if err := h.Repo.Touch(c.Request.Context(), url); err != nil {
		if dberr.IsKind(err, dberr.NotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "touch failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "touched"})
}

func (h *Handler) delete(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}
	ch, err := h.Repo.Get(c.Request.Context(), url)
	if err != nil {
		if dberr.IsKind(err, dberr.NotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if err := h.Repo.Delete(c.Request.Context(), url); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if h.Hub != nil {
		h.Hub.Broadcast(syncnotify.NewEvent(syncnotify.EventChapterDeleted, ch.StableID, url, 0))
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

package translations

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"novelhub/internal/syncnotify"
	"novelhub/pkg/dberr"
	"novelhub/pkg/models"
)

type Handler struct {
	Repo *Repo
	Hub  *syncnotify.Hub
}

func NewHandler(repo *Repo, hub *syncnotify.Hub) *Handler {
	return &Handler{Repo: repo, Hub: hub}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)                // GET /translations?url=...
	rg.GET("/active", h.getActive)    // GET /translations/active?url=...
	rg.POST("", h.store)              // POST /translations
	rg.POST("/activate", h.activate)  // POST /translations/activate
	rg.DELETE("", h.deleteVersion)    // DELETE /translations?url=...&version=N
}

func (h *Handler) list(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}
	items, err := h.Repo.ListByChapter(c.Request.Context(), url)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(items), "items": items})
}

func (h *Handler) getActive(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required"})
		return
	}
	t, err := h.Repo.GetActive(c.Request.Context(), url)
	if err != nil {
		if dberr.IsKind(err, dberr.NotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) store(c *gin.Context) {
	var t models.TranslationRecord
	if err := c.ShouldBindJSON(&t); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Repo.Store(c.Request.Context(), &t); err != nil {
		if dberr.IsKind(err, dberr.Constraint) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store failed"})
		return
	}
	if h.Hub != nil {
		h.Hub.Broadcast(syncnotify.NewEvent(
			syncnotify.EventTranslationStored, t.StableID, t.ChapterURL, t.Version))
	}
	c.JSON(http.StatusCreated, t)
}

type activateReq struct {
	ChapterURL string `json:"chapter_url"`
	StableID   string `json:"stable_id"`
	Version    int    `json:"version"`
}

// activate marks a version active, addressed by chapter URL or stable ID.
func (h *Handler) activate(c *gin.Context) {
	var req activateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Version <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version required"})
		return
	}

	var err error
	switch {
	case req.ChapterURL != "":
		err = h.Repo.SetActive(c.Request.Context(), req.ChapterURL, req.Version)
	case req.StableID != "":
		err = h.Repo.SetActiveByStableID(c.Request.Context(), req.StableID, req.Version)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "chapter_url or stable_id required"})
		return
	}
	if err != nil {
		if dberr.IsKind(err, dberr.NotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "activate failed"})
		return
	}
	if h.Hub != nil {
		h.Hub.Broadcast(syncnotify.NewEvent(
			syncnotify.EventTranslationActivated, req.StableID, req.ChapterURL, req.Version))
	}
	c.JSON(http.StatusOK, gin.H{"message": "activated"})
}

func (h *Handler) deleteVersion(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	version := parseInt(c.Query("version"), 0)
	if url == "" || version <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url and version required"})
		return
	}
	if err := h.Repo.DeleteVersion(c.Request.Context(), url, version); err != nil {
		if dberr.IsKind(err, dberr.NotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

package diffs

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"novelhub/pkg/dberr"
	"novelhub/pkg/models"
)

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.get)             // GET /diffs?url=...&version=N&algorithm=...
	rg.GET("/by-chapter", h.list) // GET /diffs/by-chapter?url=...
	rg.PUT("", h.put)             // PUT /diffs
}

func (h *Handler) get(c *gin.Context) {
	url := strings.TrimSpace(c.Query("url"))
	version, _ := strconv.Atoi(c.Query("version"))
	algorithm := strings.TrimSpace(c.Query("algorithm"))
	if url == "" || version <= 0 || algorithm == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url, version and algorithm required"})
		return
	}
	d, err := h.Repo.Get(c.Request.Context(), url, version, algorithm)
	if err != nil {
		if dberr.IsKind(err, dberr.NotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	c.JSON(http.StatusOK, d)
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

func (h *Handler) put(c *gin.Context) {
	var d models.DiffResult
	if err := c.ShouldBindJSON(&d); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if d.ChapterURL == "" || d.Version <= 0 || d.Algorithm == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chapter_url, version and algorithm required"})
		return
	}
	if err := h.Repo.Put(c.Request.Context(), &d); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	c.JSON(http.StatusOK, d)
}

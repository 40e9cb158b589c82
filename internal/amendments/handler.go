package amendments

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"novelhub/pkg/models"
)

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)    // GET /amendments?url=...
	rg.POST("", h.append) // POST /amendments
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

func (h *Handler) append(c *gin.Context) {
	var a models.AmendmentLog
	if err := c.ShouldBindJSON(&a); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(a.ChapterURL) == "" || a.Original == "" || a.Amended == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "chapter_url, original and amended required"})
		return
	}
	if err := h.Repo.Append(c.Request.Context(), &a); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	c.JSON(http.StatusCreated, a)
}

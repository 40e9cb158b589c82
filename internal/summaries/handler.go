package summaries

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"novelhub/pkg/dberr"
)

type Handler struct {
	Repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{Repo: repo}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)            // GET /summaries
	rg.GET("/:stableId", h.get)   // GET /summaries/:stableId
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.Repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(items), "items": items})
}

func (h *Handler) get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("stableId"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stable id required"})
		return
	}
	s, err := h.Repo.Get(c.Request.Context(), id)
	if err != nil {
		if dberr.IsKind(err, dberr.NotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	c.JSON(http.StatusOK, s)
}

package porter

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"novelhub/pkg/models"
)

type Handler struct {
	Exporter *Exporter
	Importer *Importer
}

func NewHandler(exporter *Exporter, importer *Importer) *Handler {
	return &Handler{Exporter: exporter, Importer: importer}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/export", h.export)
	rg.POST("/import", h.importEnvelope)
}

func (h *Handler) export(c *gin.Context) {
	env, err := h.Exporter.BuildEnvelope(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="novelhub-export.json"`)
	c.JSON(http.StatusOK, env)
}

func (h *Handler) importEnvelope(c *gin.Context) {
	var env models.ExportEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid envelope"})
		return
	}

	var last models.ImportProgress
	err := h.Importer.Import(c.Request.Context(), &env, func(p models.ImportProgress) {
		last = p
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    "import failed",
			"progress": last,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "import complete", "imported": last.Total})
}

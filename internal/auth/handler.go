package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Store  *Store
	Tokens TokenService
}

func NewHandler(store *Store, tokens TokenService) *Handler {
	return &Handler{Store: store, Tokens: tokens}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	grp := r.Group("/auth")
	grp.POST("/setup", h.Setup)
	grp.POST("/login", h.Login)
	grp.POST("/change-password", AuthMiddleware(h.Tokens, h.Store), h.ChangePassword)
	grp.POST("/logout-all", AuthMiddleware(h.Tokens, h.Store), h.LogoutAll)
}

type passwordRequest struct {
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// Setup sets the initial passphrase. Refused once one exists; use
// change-password after that.
func (h *Handler) Setup(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	has, err := h.Store.HasPassword(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if has {
		c.JSON(http.StatusConflict, gin.H{"error": "password already set"})
		return
	}
	if err := h.Store.SetPassword(c.Request.Context(), req.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "password set"})
}

func (h *Handler) Login(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.Store.CheckPassword(c.Request.Context(), req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	version, err := h.Store.TokenVersion(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	token, exp, err := h.Tokens.Sign(version)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": exp})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.Store.CheckPassword(c.Request.Context(), req.OldPassword); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if strings.TrimSpace(req.NewPassword) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "new password required"})
		return
	}
	if err := h.Store.SetPassword(c.Request.Context(), req.NewPassword); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password changed"})
}

// LogoutAll bumps the token version, invalidating every issued token.
func (h *Handler) LogoutAll(c *gin.Context) {
	if err := h.Store.BumpTokenVersion(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all sessions invalidated"})
}

package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/937bb/937cms-sub001/internal/logging"
)

type Handler struct {
	Operator Operator
	Tokens   TokenService
	Revoked  *Revocations
	Log      *logrus.Entry
}

func NewHandler(op Operator, tokens TokenService, log *logrus.Entry) *Handler {
	return &Handler{
		Operator: op,
		Tokens:   tokens,
		Revoked:  NewRevocations(),
		Log:      logging.Component(log, "auth"),
	}
}

// Middleware guards routes with this handler's tokens and revocations.
func (h *Handler) Middleware() gin.HandlerFunc {
	return AuthMiddleware(h.Tokens, h.Revoked, h.Log)
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", h.login)
	rg.POST("/logout", h.Middleware(), h.logout)
	rg.GET("/me", h.Middleware(), h.me)
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	if !h.Operator.Verify(username, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, exp, err := h.Tokens.Sign(username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) logout(c *gin.Context) {
	claims := MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	h.Revoked.Revoke(claims.ID, claims.ExpiresAt.Time)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func (h *Handler) me(c *gin.Context) {
	claims := MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"username":   claims.Username,
		"role":       claims.Role,
		"expires_at": claims.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

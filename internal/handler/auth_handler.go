package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_backoffice/internal/middleware"
	"github.com/GTDGit/gtd_backoffice/internal/models"
	"github.com/GTDGit/gtd_backoffice/internal/utils"
)

// AdminAuthenticator logs admin users in.
type AdminAuthenticator interface {
	Login(ctx context.Context, email, password string) (string, *models.AdminUser, error)
	CreateAdmin(ctx context.Context, email, password, name string) (*models.AdminUser, error)
}

type AuthHandler struct {
	authService AdminAuthenticator
	limiter     *middleware.InvalidAuthRateLimiter
}

func NewAuthHandler(authService AdminAuthenticator, limiter *middleware.InvalidAuthRateLimiter) *AuthHandler {
	return &AuthHandler{authService: authService, limiter: limiter}
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	ip := c.ClientIP()
	if h.limiter != nil && h.limiter.Blocked(ip) {
		utils.Error(c, 429, "TOO_MANY_REQUESTS", "Too many failed login attempts")
		return
	}

	token, admin, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if h.limiter != nil {
			h.limiter.Allow(ip)
		}
		respondError(c, err, "Failed to log in")
		return
	}

	utils.Success(c, 200, "Login successful", gin.H{
		"token": token,
		"admin": admin,
	})
}

// CreateAdmin handles POST /v1/admin/admins
func (h *AuthHandler) CreateAdmin(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		Name     string `json:"name" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	admin, err := h.authService.CreateAdmin(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		respondError(c, err, "Failed to create admin")
		return
	}
	utils.Success(c, 201, "Admin created", admin)
}

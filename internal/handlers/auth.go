// internal/handlers/auth.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/rafat/cronosflow/internal/services"
	"github.com/rafat/cronosflow/internal/utils"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}

	authResponse, err := h.authService.Register(&req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"identity":      authResponse.Identity,
		"token":         authResponse.AccessToken,
		"refresh_token": authResponse.RefreshToken,
	})
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	authResponse, err := h.authService.Login(&req)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"identity":      authResponse.Identity,
		"token":         authResponse.AccessToken,
		"refresh_token": authResponse.RefreshToken,
	})
}

// GET /auth/profile
func (h *AuthHandler) GetProfile(c *gin.Context) {
	identityID, ok := identityFromContext(c)
	if !ok {
		return
	}

	identity, err := h.authService.GetProfile(identityID)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, identity)
}

type assignRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1"`
}

// PUT /admin/identities/:id/roles
func (h *AuthHandler) AssignRoles(c *gin.Context) {
	identityID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req assignRolesRequest
	if !bindAndValidate(c, &req) {
		return
	}

	identity, err := h.authService.AssignRoles(identityID, req.Roles)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, identity)
}

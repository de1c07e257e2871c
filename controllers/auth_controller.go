package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"formautofill/middleware"
	"formautofill/utils"
)

type AuthController struct {
	jwtService *middleware.JWTService
}

func NewAuthController(jwtService *middleware.JWTService) *AuthController {
	return &AuthController{jwtService: jwtService}
}

type TokenRequest struct {
	Subject string `json:"subject" binding:"required"`
	Secret  string `json:"secret" binding:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// Token exchanges the operator secret for an API token.
func (c *AuthController) Token(ctx *gin.Context) {
	var req TokenRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, err)
		return
	}

	token, err := c.jwtService.Exchange(req.Subject, req.Secret)
	if errors.Is(err, middleware.ErrInvalidSecret) {
		utils.UnauthorizedError(ctx, "Invalid credentials")
		return
	}
	if err != nil {
		utils.InternalServerError(ctx, "Failed to generate token", err)
		return
	}

	utils.LogInfo("token issued", map[string]interface{}{"subject": req.Subject})
	utils.SuccessResponse(ctx, http.StatusOK, "Token issued", TokenResponse{Token: token})
}

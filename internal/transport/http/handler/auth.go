package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studybot/internal/app"
	"studybot/internal/transport/http/response"
)

type AuthHandler struct {
	authService *app.AuthService
}

type SignupRequest struct {
	Email      string `json:"email" binding:"required,email,max=128"`
	Password   string `json:"password" binding:"required,min=8,max=72"`
	FirstName  string `json:"first_name" binding:"max=64"`
	LastName   string `json:"last_name" binding:"max=64"`
	ProfilePic string `json:"profile_pic" binding:"omitempty,url,max=512"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func NewAuthHandler(authService *app.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "email and a password of 8 to 72 characters are required")
		return
	}

	session, err := h.authService.Register(c.Request.Context(), app.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		ProfilePic: req.ProfilePic,
	})
	if err != nil {
		writeError(c, err, "sign up failed")
		return
	}
	response.Created(c, session)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "email and password are required")
		return
	}

	session, err := h.authService.Login(c.Request.Context(), app.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err, "login failed")
		return
	}
	response.OK(c, session)
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	user, err := h.authService.Profile(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err, "load profile failed")
		return
	}
	response.OK(c, gin.H{"user": user, "display_name": user.DisplayName()})
}

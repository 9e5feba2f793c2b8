package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ========================
// LOGIN HANDLER
// ========================

func (a *API) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "username and password required")
		return
	}

	tokens, err := a.idp.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		jsonError(c, http.StatusUnauthorized, "login failed")
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// ========================
// REFRESH HANDLER
// ========================

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (a *API) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "missing refresh token")
		return
	}

	tokens, err := a.idp.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		jsonError(c, http.StatusUnauthorized, "failed to refresh token")
		return
	}

	c.JSON(http.StatusOK, tokens)
}

// ========================
// REGISTER HANDLER
// ========================

type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Birthday  string `json:"birthday"`
	Faculty   string `json:"faculty"`
}

func (a *API) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	user, err := a.users.Register(c.Request.Context(), Registration{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		Birthday:  req.Birthday,
		Faculty:   req.Faculty,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    user,
	})
}

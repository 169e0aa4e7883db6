package controllers

import (
	"net/http"
	"time"

	dbpkg "github.com/coralcommerce/dispatcher/db"
	"github.com/coralcommerce/dispatcher/models"
	"github.com/coralcommerce/dispatcher/tools"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type LoginResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token"`
	User         models.User `json:"user"`
}

func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		RespondError(c, "email and password are required", http.StatusBadRequest)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db not configured on context", http.StatusInternalServerError)
		return
	}

	var user models.User
	if err := db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		RespondError(c, "invalid credentials", http.StatusUnauthorized)
		return
	}

	// password hash: sha512(email + ":" + sha512(password)), set at provisioning time
	passwordEncode := tools.EncryptTextSHA512(req.Password)
	passwordEncode = user.Email + ":" + passwordEncode
	passwordEncode = tools.EncryptTextSHA512(passwordEncode)
	if user.Password != passwordEncode {
		RespondError(c, "invalid credentials", http.StatusUnauthorized)
		return
	}

	if user.Status == models.USER_STATUS_BLOCKED {
		RespondError(c, "account blocked", http.StatusForbidden)
		return
	}

	now := time.Now()
	secret := getJWTSecret()
	signed, err := signHS256JWT(secret, map[string]any{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
	})
	if err != nil {
		RespondError(c, "failed to sign token", http.StatusInternalServerError)
		return
	}

	// single session: any refresh token issued before this login becomes invalid
	if err := revokeAllUserRefreshTokens(db, user.ID, now); err != nil {
		RespondError(c, "failed to revoke previous sessions", http.StatusInternalServerError)
		return
	}
	refreshToken, err := issueRefreshToken(db, user.ID, now)
	if err != nil {
		RespondError(c, "failed to generate refresh token", http.StatusInternalServerError)
		return
	}

	user.Password = ""
	RespondSuccess(c, LoginResponse{Token: signed, RefreshToken: refreshToken, User: user})
}

package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	dbpkg "github.com/coralcommerce/dispatcher/db"
	"github.com/coralcommerce/dispatcher/models"
	"github.com/coralcommerce/dispatcher/tools"
)

// CreateUser handles POST /users: provisions an operator account for
// the admin API. There is no self-service signup — this is a bootstrap
// endpoint, expected to be run once per operator and then locked down
// at the network layer.
func CreateUser(c *gin.Context) {
	var user models.User
	if err := c.Bind(&user); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}
	if missing := user.MissingFields(); missing != "" {
		RespondError(c, "missing field: "+missing, http.StatusBadRequest)
		return
	}
	if !tools.ValidateEmail(user.Email) {
		RespondError(c, "invalid email", http.StatusBadRequest)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db not configured on context", http.StatusInternalServerError)
		return
	}

	// password hash: sha512(email + ":" + sha512(password)), matching
	// the scheme Login verifies against.
	passwordEncode := tools.EncryptTextSHA512(user.Password)
	passwordEncode = user.Email + ":" + passwordEncode
	user.Password = tools.EncryptTextSHA512(passwordEncode)
	user.Status = models.USER_STATUS_AVAILABLE

	if err := db.Create(&user).Error; err != nil {
		RespondError(c, "failed to create user", http.StatusInternalServerError)
		return
	}

	user.Password = ""
	RespondSuccess(c, user)
}

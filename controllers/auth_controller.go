package controllers

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"

	"github.com/pollhub/polls-server/config"
	"github.com/pollhub/polls-server/middleware"
	"github.com/pollhub/polls-server/models"
	"github.com/pollhub/polls-server/utils"
)

type RegisterReq struct {
	Name     string `json:"name" form:"name" binding:"required,min=1"`
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required,min=6"`
}

type LoginReq struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required"`
}

var (
	errEmailTaken = errors.New("email already registered")
	errBadLogin   = errors.New("invalid email or password")
	errNoPassword = errors.New("account has no password login")
)

// registerUser creates an account with a bcrypt-hashed password. Shared by
// the JSON endpoint and the signup page.
func registerUser(req RegisterReq) (models.User, error) {
	var count int64
	config.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&count)
	if count > 0 {
		return models.User{}, errEmailTaken
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := config.DB.Create(&user).Error; err != nil {
		return models.User{}, err
	}
	return user, nil
}

// authenticate checks the credentials and returns the matching user.
func authenticate(email, password string) (models.User, error) {
	var user models.User
	if err := config.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, errBadLogin
		}
		return models.User{}, err
	}
	if user.PasswordHash == "" {
		return models.User{}, errNoPassword
	}
	if !utils.CheckPassword(user.PasswordHash, password) {
		return models.User{}, errBadLogin
	}
	return user, nil
}

// issueSession generates a JWT and mirrors it into the auth cookie so the
// HTML pages share the login.
func issueSession(c *gin.Context, user models.User) (string, error) {
	token, err := utils.GenerateToken(user.ID, user.IsAdmin)
	if err != nil {
		return "", err
	}
	c.SetCookie(middleware.AuthCookie, token, 24*3600, "/", "", false, true)
	return token, nil
}

func userJSON(user models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"is_admin":   user.IsAdmin,
		"created_at": user.CreatedAt,
	}
}

func Register(c *gin.Context) {
	var req RegisterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	user, err := registerUser(req)
	if errors.Is(err, errEmailTaken) {
		c.JSON(http.StatusConflict, gin.H{"message": "Email already registered"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not create account"})
		return
	}

	token, err := issueSession(c, user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not issue token"})
		return
	}

	logrus.WithFields(logrus.Fields{"user": user.Email, "ip": c.ClientIP()}).Info("user registered")
	c.JSON(http.StatusCreated, gin.H{"user": userJSON(user), "token": token})
}

func Login(c *gin.Context) {
	var req LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	user, err := authenticate(req.Email, req.Password)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user": req.Email, "ip": c.ClientIP()}).Warn("failed login")
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
		return
	}

	token, err := issueSession(c, user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not issue token"})
		return
	}

	logrus.WithFields(logrus.Fields{"user": user.Email, "ip": c.ClientIP()}).Info("user logged in")
	c.JSON(http.StatusOK, gin.H{"user": userJSON(user), "token": token})
}

type googleLoginReq struct {
	IDToken string `json:"id_token" binding:"required"`
}

// GoogleLogin verifies a Google ID token and signs the user in, creating the
// account on first login.
func GoogleLogin(c *gin.Context) {
	var req googleLoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	if clientID == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Google login is not configured"})
		return
	}

	payload, err := idtoken.Validate(c.Request.Context(), req.IDToken, clientID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid Google token"})
		return
	}

	email, _ := payload.Claims["email"].(string)
	name, _ := payload.Claims["name"].(string)
	if email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Google token has no email"})
		return
	}
	if name == "" {
		name = email
	}

	var user models.User
	err = config.DB.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{Name: name, Email: email}
		err = config.DB.Create(&user).Error
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not sign in"})
		return
	}

	token, err := issueSession(c, user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not issue token"})
		return
	}

	logrus.WithFields(logrus.Fields{"user": user.Email, "ip": c.ClientIP()}).Info("user logged in via Google")
	c.JSON(http.StatusOK, gin.H{"user": userJSON(user), "token": token})
}

func Me(c *gin.Context) {
	u := c.MustGet(middleware.CtxUser).(models.User)
	c.JSON(http.StatusOK, gin.H{"user": userJSON(u)})
}

func Logout(c *gin.Context) {
	if v, ok := c.Get(middleware.CtxUser); ok {
		u := v.(models.User)
		logrus.WithFields(logrus.Fields{"user": u.Email, "ip": c.ClientIP()}).Info("user logged out")
	}
	c.SetCookie(middleware.AuthCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

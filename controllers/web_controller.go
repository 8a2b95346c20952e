package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/pollhub/polls-server/config"
	"github.com/pollhub/polls-server/middleware"
	"github.com/pollhub/polls-server/models"
)

// Server-rendered pages. These sit on top of the same models and auth as the
// JSON API; voting itself posts to the shared vote handler.

func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(middleware.CtxUser); ok {
		u := v.(models.User)
		return &u
	}
	return nil
}

type pollListItem struct {
	models.Question
	VotingAllowed bool
}

// IndexPage lists all published polls, newest first.
func IndexPage(c *gin.Context) {
	var questions []models.Question
	err := config.DB.
		Where("pub_date <= ?", time.Now()).
		Order("pub_date DESC, id DESC").
		Find(&questions).Error
	if err != nil {
		c.String(http.StatusInternalServerError, "Could not load polls")
		return
	}

	items := make([]pollListItem, 0, len(questions))
	for _, q := range questions {
		items = append(items, pollListItem{Question: q, VotingAllowed: q.CanVote()})
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"Polls": items,
		"User":  currentUser(c),
	})
}

// PollPage shows one poll with its vote form.
func PollPage(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.String(http.StatusNotFound, "Poll not found")
		return
	}

	q, err := loadPublishedQuestion(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.String(http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "Could not load poll")
		return
	}

	var previous uint
	user := currentUser(c)
	if user != nil {
		if p := previousChoiceID(user.ID, q.ID); p != nil {
			previous = *p
		}
	}

	c.HTML(http.StatusOK, "detail.html", gin.H{
		"Question":       q,
		"VotingAllowed":  q.CanVote(),
		"PreviousChoice": previous,
		"User":           user,
	})
}

// ResultsPage shows the tallies for one poll.
func ResultsPage(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.String(http.StatusNotFound, "Poll not found")
		return
	}

	q, err := loadPublishedQuestion(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.String(http.StatusNotFound, "Poll not found")
		return
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "Could not load poll")
		return
	}

	results, total, err := tallyResults(&q)
	if err != nil {
		c.String(http.StatusInternalServerError, "Could not tally results")
		return
	}

	c.HTML(http.StatusOK, "results.html", gin.H{
		"Question":   q,
		"Results":    results,
		"TotalVotes": total,
		"User":       currentUser(c),
	})
}

// LoginPage renders the login form.
func LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{"Next": c.Query("next")})
}

// LoginSubmit handles the login form post and sets the auth cookie.
func LoginSubmit(c *gin.Context) {
	var req LoginReq
	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusUnprocessableEntity, "login.html", gin.H{"Error": "Enter your email and password"})
		return
	}

	user, err := authenticate(req.Email, req.Password)
	if err != nil {
		logrus.WithFields(logrus.Fields{"user": req.Email, "ip": c.ClientIP()}).Warn("failed login")
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{"Error": "Invalid email or password"})
		return
	}

	if _, err := issueSession(c, user); err != nil {
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{"Error": "Could not sign in"})
		return
	}

	logrus.WithFields(logrus.Fields{"user": user.Email, "ip": c.ClientIP()}).Info("user logged in")

	next := c.PostForm("next")
	if next == "" || next[0] != '/' {
		next = "/"
	}
	c.Redirect(http.StatusSeeOther, next)
}

// SignupPage renders the registration form.
func SignupPage(c *gin.Context) {
	c.HTML(http.StatusOK, "signup.html", gin.H{})
}

// SignupSubmit registers the user and signs them in right away.
func SignupSubmit(c *gin.Context) {
	var req RegisterReq
	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusUnprocessableEntity, "signup.html", gin.H{"Error": "Fill in all fields (password needs 6+ characters)"})
		return
	}

	user, err := registerUser(req)
	if errors.Is(err, errEmailTaken) {
		c.HTML(http.StatusConflict, "signup.html", gin.H{"Error": "Email already registered"})
		return
	}
	if err != nil {
		c.HTML(http.StatusInternalServerError, "signup.html", gin.H{"Error": "Could not create account"})
		return
	}

	if _, err := issueSession(c, user); err != nil {
		c.HTML(http.StatusInternalServerError, "signup.html", gin.H{"Error": "Could not sign in"})
		return
	}

	logrus.WithFields(logrus.Fields{"user": user.Email, "ip": c.ClientIP()}).Info("user registered")
	c.Redirect(http.StatusSeeOther, "/")
}

// LogoutSubmit clears the auth cookie and goes back to the index.
func LogoutSubmit(c *gin.Context) {
	if u := currentUser(c); u != nil {
		logrus.WithFields(logrus.Fields{"user": u.Email, "ip": c.ClientIP()}).Info("user logged out")
	}
	c.SetCookie(middleware.AuthCookie, "", -1, "/", "", false, true)
	c.Redirect(http.StatusSeeOther, "/")
}

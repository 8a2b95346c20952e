package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/pollhub/polls-server/config"
	"github.com/pollhub/polls-server/middleware"
	"github.com/pollhub/polls-server/models"
)

// loadPublishedQuestion returns the question with its ordered choices, or
// gorm.ErrRecordNotFound when it does not exist or is not published yet.
// Unpublished questions are indistinguishable from missing ones on every
// non-admin surface.
func loadPublishedQuestion(id int) (models.Question, error) {
	var q models.Question
	err := config.DB.
		Where("id = ? AND pub_date <= ?", id, time.Now()).
		Preload("Choices", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		First(&q).Error
	return q, err
}

// previousChoiceID returns the id of the choice the user already picked for
// the question, or nil.
func previousChoiceID(userID, questionID uint) *uint {
	var vote models.Vote
	err := config.DB.
		Where("user_id = ? AND question_id = ?", userID, questionID).
		First(&vote).Error
	if err != nil {
		return nil
	}
	return &vote.ChoiceID
}

type choiceResult struct {
	ChoiceID uint   `json:"choice_id"`
	Text     string `json:"text"`
	Votes    int64  `json:"votes"`
}

// tallyResults counts votes per choice. Choices without votes still appear
// with a zero count.
func tallyResults(q *models.Question) ([]choiceResult, int64, error) {
	results := make([]choiceResult, 0, len(q.Choices))
	var total int64
	for _, ch := range q.Choices {
		var n int64
		if err := config.DB.Model(&models.Vote{}).Where("choice_id = ?", ch.ID).Count(&n).Error; err != nil {
			return nil, 0, err
		}
		results = append(results, choiceResult{ChoiceID: ch.ID, Text: ch.Text, Votes: n})
		total += n
	}
	return results, total, nil
}

/* ========== GET /api/polls ========== */

func ListPolls(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	now := time.Now()

	var total int64
	if err := config.DB.Model(&models.Question{}).Where("pub_date <= ?", now).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not list polls"})
		return
	}

	var questions []models.Question
	err := config.DB.
		Where("pub_date <= ?", now).
		Order("pub_date DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&questions).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not list polls"})
		return
	}

	polls := make([]gin.H, 0, len(questions))
	for i := range questions {
		q := &questions[i]
		polls = append(polls, gin.H{
			"id":       q.ID,
			"text":     q.Text,
			"pub_date": q.PubDate,
			"end_date": q.EndDate,
			"can_vote": q.CanVote(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"polls":     polls,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

/* ========== GET /api/polls/:id ========== */

func GetPoll(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid poll ID"})
		return
	}

	q, err := loadPublishedQuestion(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Poll not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not load poll"})
		return
	}

	resp := gin.H{
		"id":       q.ID,
		"text":     q.Text,
		"pub_date": q.PubDate,
		"end_date": q.EndDate,
		"can_vote": q.CanVote(),
		"choices":  q.Choices,
	}
	if v, ok := c.Get(middleware.CtxUser); ok {
		u := v.(models.User)
		resp["previous_choice_id"] = previousChoiceID(u.ID, q.ID)
	}

	c.JSON(http.StatusOK, resp)
}

/* ========== GET /api/polls/:id/results ========== */

func GetResults(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid poll ID"})
		return
	}

	q, err := loadPublishedQuestion(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Poll not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not load poll"})
		return
	}

	results, total, err := tallyResults(&q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not tally results"})
		return
	}

	resp := gin.H{
		"id":          q.ID,
		"text":        q.Text,
		"results":     results,
		"total_votes": total,
	}
	if v, ok := c.Get(middleware.CtxUser); ok {
		u := v.(models.User)
		resp["voted_choice_id"] = previousChoiceID(u.ID, q.ID)
	}

	c.JSON(http.StatusOK, resp)
}

/* ========== POST /api/polls/:id/vote ========== */

type voteReq struct {
	ChoiceID uint `json:"choice_id" form:"choice_id" binding:"required"`
}

// CastVote records the caller's vote. A user gets one vote per question;
// voting again moves the existing vote to the new choice.
func CastVote(c *gin.Context) {
	u := c.MustGet(middleware.CtxUser).(models.User)

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid poll ID"})
		return
	}

	q, err := loadPublishedQuestion(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Poll not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not load poll"})
		return
	}

	if !q.CanVote() {
		c.JSON(http.StatusForbidden, gin.H{"message": "Voting is not allowed for this poll"})
		return
	}

	var req voteReq
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "You didn't select a choice"})
		return
	}

	var choice models.Choice
	if err := config.DB.Where("id = ? AND question_id = ?", req.ChoiceID, q.ID).First(&choice).Error; err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Invalid choice selected"})
		return
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		var vote models.Vote
		e := tx.Where("user_id = ? AND question_id = ?", u.ID, q.ID).First(&vote).Error
		if errors.Is(e, gorm.ErrRecordNotFound) {
			vote = models.Vote{UserID: u.ID, QuestionID: q.ID, ChoiceID: choice.ID}
			return tx.Create(&vote).Error
		}
		if e != nil {
			return e
		}
		return tx.Model(&vote).Update("choice_id", choice.ID).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not record vote"})
		return
	}

	logrus.WithFields(logrus.Fields{
		"user":     u.Email,
		"question": q.ID,
		"choice":   choice.ID,
		"ip":       c.ClientIP(),
	}).Info("vote recorded")

	// Browser form posts go back to the results page.
	if strings.Contains(c.GetHeader("Content-Type"), "application/x-www-form-urlencoded") {
		c.Redirect(http.StatusSeeOther, "/polls/"+strconv.Itoa(id)+"/results")
		return
	}

	// JSON callers get the updated tally right away.
	results, total, err := tallyResults(&q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not tally results"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Your vote for " + choice.Text + " has been recorded",
		"choice_id":   choice.ID,
		"results":     results,
		"total_votes": total,
	})
}

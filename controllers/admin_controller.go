package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/pollhub/polls-server/config"
	"github.com/pollhub/polls-server/middleware"
	"github.com/pollhub/polls-server/models"
)

/* ========== POST /api/admin/questions ========== */

type createQuestionReq struct {
	Text    string     `json:"text" binding:"required,min=1,max=200"`
	PubDate *time.Time `json:"pub_date"` // defaults to now
	EndDate *time.Time `json:"end_date"`
	Choices []string   `json:"choices"`
}

func CreateQuestion(c *gin.Context) {
	u := c.MustGet(middleware.CtxUser).(models.User)

	var req createQuestionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	pubDate := time.Now()
	if req.PubDate != nil {
		pubDate = *req.PubDate
	}
	if req.EndDate != nil && req.EndDate.Before(pubDate) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "end_date must not be before pub_date"})
		return
	}

	q := models.Question{
		Text:        req.Text,
		PubDate:     pubDate,
		EndDate:     req.EndDate,
		CreatedByID: &u.ID,
	}
	for i, text := range req.Choices {
		q.Choices = append(q.Choices, models.Choice{Text: text, Position: i})
	}

	if err := config.DB.Create(&q).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not create question"})
		return
	}

	c.JSON(http.StatusCreated, q)
}

/* ========== GET /api/admin/questions ========== */

// ListAllQuestions returns every question, including unpublished ones.
func ListAllQuestions(c *gin.Context) {
	var questions []models.Question
	err := config.DB.
		Preload("Choices", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Order("pub_date DESC, id DESC").
		Find(&questions).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not list questions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

/* ========== PUT /api/admin/questions/:id ========== */

type updateQuestionReq struct {
	Text    *string    `json:"text"`
	PubDate *time.Time `json:"pub_date"`
	EndDate *time.Time `json:"end_date"`
	// JSON null and an absent field both bind EndDate to nil, so clearing
	// the deadline needs its own flag.
	ClearEndDate bool `json:"clear_end_date"`
}

func UpdateQuestion(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid question ID"})
		return
	}

	var q models.Question
	if err := config.DB.First(&q, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not load question"})
		return
	}

	var req updateQuestionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	// Validate the voting window as it would look after the update.
	pubDate := q.PubDate
	if req.PubDate != nil {
		pubDate = *req.PubDate
	}
	endDate := q.EndDate
	if req.ClearEndDate {
		endDate = nil
	} else if req.EndDate != nil {
		endDate = req.EndDate
	}
	if endDate != nil && endDate.Before(pubDate) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "end_date must not be before pub_date"})
		return
	}

	updates := map[string]interface{}{}
	if req.Text != nil {
		updates["text"] = *req.Text
	}
	if req.PubDate != nil {
		updates["pub_date"] = *req.PubDate
	}
	if req.ClearEndDate {
		updates["end_date"] = nil
	} else if req.EndDate != nil {
		updates["end_date"] = *req.EndDate
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, q)
		return
	}

	if err := config.DB.Model(&q).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not update question"})
		return
	}

	c.JSON(http.StatusOK, q)
}

/* ========== DELETE /api/admin/questions/:id ========== */

// DeleteQuestion removes the question with its choices and votes.
func DeleteQuestion(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid question ID"})
		return
	}

	var q models.Question
	if err := config.DB.First(&q, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not load question"})
		return
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if e := tx.Where("question_id = ?", q.ID).Delete(&models.Vote{}).Error; e != nil {
			return e
		}
		if e := tx.Where("question_id = ?", q.ID).Delete(&models.Choice{}).Error; e != nil {
			return e
		}
		return tx.Delete(&q).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not delete question"})
		return
	}

	c.Status(http.StatusNoContent)
}

/* ========== POST /api/admin/questions/:id/choices ========== */

type addChoiceReq struct {
	Text     string `json:"text" binding:"required,min=1,max=200"`
	Position *int   `json:"position"`
}

func AddChoice(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid question ID"})
		return
	}

	var q models.Question
	if err := config.DB.First(&q, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Question not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not load question"})
		return
	}

	var req addChoiceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	position := 0
	if req.Position != nil {
		position = *req.Position
	} else {
		var maxPos *int
		config.DB.Model(&models.Choice{}).Where("question_id = ?", q.ID).
			Select("MAX(position)").Scan(&maxPos)
		if maxPos != nil {
			position = *maxPos + 1
		}
	}

	choice := models.Choice{QuestionID: q.ID, Text: req.Text, Position: position}
	if err := config.DB.Create(&choice).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not create choice"})
		return
	}

	c.JSON(http.StatusCreated, choice)
}

/* ========== PUT /api/admin/choices/:id ========== */

type updateChoiceReq struct {
	Text     *string `json:"text"`
	Position *int    `json:"position"`
}

func UpdateChoice(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid choice ID"})
		return
	}

	var choice models.Choice
	if err := config.DB.First(&choice, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Choice not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not load choice"})
		return
	}

	var req updateChoiceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.Text != nil {
		updates["text"] = *req.Text
	}
	if req.Position != nil {
		updates["position"] = *req.Position
	}
	if len(updates) > 0 {
		if err := config.DB.Model(&choice).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not update choice"})
			return
		}
	}

	c.JSON(http.StatusOK, choice)
}

/* ========== DELETE /api/admin/choices/:id ========== */

func DeleteChoice(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid choice ID"})
		return
	}

	var choice models.Choice
	if err := config.DB.First(&choice, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Choice not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not load choice"})
		return
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if e := tx.Where("choice_id = ?", choice.ID).Delete(&models.Vote{}).Error; e != nil {
			return e
		}
		return tx.Delete(&choice).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not delete choice"})
		return
	}

	c.Status(http.StatusNoContent)
}

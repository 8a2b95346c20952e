package controllers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/pollhub/polls-server/config"
	"github.com/pollhub/polls-server/models"
)

type exportReq struct {
	Format string `json:"format"` // csv (default) or xlsx
}

// CreateExport queues an export of a question's votes and processes it in
// the background.
func CreateExport(c *gin.Context) {
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

	var req exportReq
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid payload"})
		return
	}
	if req.Format == "" {
		req.Format = "csv"
	}
	if req.Format != "csv" && req.Format != "xlsx" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "format must be csv or xlsx"})
		return
	}

	job := models.ExportJob{
		JobID:      uuid.New().String(),
		QuestionID: q.ID,
		Format:     req.Format,
		Status:     "queued",
	}
	if err := config.DB.Create(&job).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not create export job"})
		return
	}

	go processExportJob(job.JobID)

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.JobID,
		"status": job.Status,
	})
}

// GetExport serves the finished file, or reports the job status.
func GetExport(c *gin.Context) {
	jobID := c.Param("job_id")
	var job models.ExportJob
	if err := config.DB.First(&job, "job_id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Could not load job"})
		return
	}

	if job.Status == "done" && job.FilePath != nil {
		c.FileAttachment(*job.FilePath, path.Base(*job.FilePath))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id": job.JobID,
		"status": job.Status,
		"error":  job.ErrorMsg,
	})
}

type exportRow struct {
	VoteID     uint
	VoterEmail string
	ChoiceText string
	UpdatedAt  time.Time
}

func failExport(job *models.ExportJob, err error) {
	em := err.Error()
	config.DB.Model(job).Updates(map[string]interface{}{"status": "failed", "error_msg": em})
	logrus.WithError(err).WithField("job", job.JobID).Error("export failed")
}

func processExportJob(jobID string) {
	var job models.ExportJob
	if err := config.DB.First(&job, "job_id = ?", jobID).Error; err != nil {
		return
	}
	config.DB.Model(&job).Update("status", "processing")

	rows, err := collectExportRows(job.QuestionID)
	if err != nil {
		failExport(&job, err)
		return
	}

	outDir := os.Getenv("EXPORT_DIR")
	if outDir == "" {
		outDir = "./exports"
	}
	os.MkdirAll(outDir, 0755)
	outPath := path.Join(outDir, fmt.Sprintf("votes_%s.%s", job.JobID, job.Format))

	if job.Format == "xlsx" {
		err = writeXLSX(outPath, rows)
	} else {
		err = writeCSV(outPath, rows)
	}
	if err != nil {
		failExport(&job, err)
		return
	}

	config.DB.Model(&job).Updates(map[string]interface{}{"status": "done", "file_path": outPath})
	logrus.WithFields(logrus.Fields{"job": job.JobID, "rows": len(rows)}).Info("export done")
}

func collectExportRows(questionID uint) ([]exportRow, error) {
	var rows []exportRow
	err := config.DB.Model(&models.Vote{}).
		Select("votes.id AS vote_id, users.email AS voter_email, choices.text AS choice_text, votes.updated_at").
		Joins("JOIN users ON users.id = votes.user_id").
		Joins("JOIN choices ON choices.id = votes.choice_id").
		Where("votes.question_id = ?", questionID).
		Order("votes.id ASC").
		Scan(&rows).Error
	return rows, err
}

var exportHeader = []string{"vote_id", "voter_email", "choice", "voted_at"}

func writeCSV(outPath string, rows []exportRow) error {
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatUint(uint64(r.VoteID), 10),
			r.VoterEmail,
			r.ChoiceText,
			r.UpdatedAt.Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func writeXLSX(outPath string, rows []exportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, h := range exportHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for i, r := range rows {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", i+2), r.VoteID)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", i+2), r.VoterEmail)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", i+2), r.ChoiceText)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", i+2), r.UpdatedAt.Format(time.RFC3339))
	}

	return f.SaveAs(outPath)
}

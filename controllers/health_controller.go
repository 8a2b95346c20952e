package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pollhub/polls-server/config"
)

func HealthCheck(c *gin.Context) {
	response := gin.H{
		"status": "ok",
		"db":     "ok",
	}

	sqlDB, err := config.DB.DB()
	if err != nil {
		response["db"] = "error: cannot get DB instance"
		c.JSON(http.StatusInternalServerError, response)
		return
	}

	if err := sqlDB.Ping(); err != nil {
		response["db"] = "error: cannot connect to DB"
		c.JSON(http.StatusInternalServerError, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

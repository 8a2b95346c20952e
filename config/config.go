package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pollhub/polls-server/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

const (
	connectAttempts = 30
	connectBackoff  = 2 * time.Second
)

// ConnectDB opens the PostgreSQL connection and migrates the schema.
// The database container often comes up after the app, so the dial is
// retried with a fixed backoff before giving up.
func ConnectDB() {
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		host, user, password, dbName, port)

	var db *gorm.DB
	var err error
	for i := 1; i <= connectAttempts; i++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err == nil {
			break
		}
		logrus.WithError(err).WithField("attempt", i).Warn("database not ready, retrying")
		time.Sleep(connectBackoff)
	}
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect database")
	}

	if err := Migrate(db); err != nil {
		logrus.WithError(err).Fatal("failed to migrate")
	}

	DB = db
	logrus.Info("connected to PostgreSQL and migrated successfully")
}

// Migrate creates or updates the schema for all models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Question{},
		&models.Choice{},
		&models.Vote{},
		&models.ExportJob{},
	)
}

package controllers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pollhub/polls-server/config"
	"github.com/pollhub/polls-server/models"
	"github.com/pollhub/polls-server/routes"
	"github.com/pollhub/polls-server/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	logrus.SetLevel(logrus.ErrorLevel)
}

// setupTest wires config.DB to a fresh in-memory SQLite database and returns
// a router with the full route table.
func setupTest(t *testing.T) *gin.Engine {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// A second pooled connection would get its own empty :memory: database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	config.DB = db

	r := gin.New()
	r.LoadHTMLGlob("../templates/*.html")
	routes.SetupRoutes(r)
	return r
}

func createUser(t *testing.T, name, email, password string, admin bool) models.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := models.User{Name: name, Email: email, PasswordHash: hash, IsAdmin: admin}
	if err := config.DB.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

// createQuestion publishes a question offset from now by days (negative =
// past) with the given choices.
func createQuestion(t *testing.T, text string, days int, choices ...string) models.Question {
	t.Helper()
	q := models.Question{
		Text:    text,
		PubDate: time.Now().Add(time.Duration(days) * 24 * time.Hour),
	}
	for i, c := range choices {
		q.Choices = append(q.Choices, models.Choice{Text: c, Position: i})
	}
	if err := config.DB.Create(&q).Error; err != nil {
		t.Fatalf("failed to create question: %v", err)
	}
	return q
}

func tokenFor(t *testing.T, user models.User) string {
	t.Helper()
	token, err := utils.GenerateToken(user.ID, user.IsAdmin)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

type testRequest struct {
	method string
	path   string
	body   interface{} // marshalled to JSON when non-nil
	form   string      // urlencoded body, used instead of body when set
	token  string
	ip     string // RemoteAddr without port; defaults to 192.0.2.1
}

func doRequest(t *testing.T, r *gin.Engine, tr testRequest) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if tr.form != "" {
		reader = strings.NewReader(tr.form)
	} else if tr.body != nil {
		b, err := json.Marshal(tr.body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(tr.method, tr.path, reader)
	if tr.form != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else if tr.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tr.token != "" {
		req.Header.Set("Authorization", "Bearer "+tr.token)
	}
	ip := tr.ip
	if ip == "" {
		ip = "192.0.2.1"
	}
	req.RemoteAddr = ip + ":51234"

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

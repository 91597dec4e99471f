package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"rendiconto/config"
	"rendiconto/database"
	"rendiconto/middleware"
	"rendiconto/models"
	"rendiconto/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type recordingMailer struct {
	links []string
}

func (m *recordingMailer) SendPasswordResetEmail(_, _, resetLink string) error {
	m.links = append(m.links, resetLink)
	return nil
}

type testEnv struct {
	db            *gorm.DB
	users         *service.UserService
	categories    *service.CategoryService
	beneficiaries *service.BeneficiaryService
	reports       *service.ReportService
	mailer        *recordingMailer
	upload        config.UploadConfig
	log           *zap.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	log := zap.NewNop()
	mailer := &recordingMailer{}
	users := service.NewUserService(db, log, service.UserServiceConfig{
		BcryptCost: bcrypt.MinCost,
		Issuer: func(userID uint, role string) (string, error) {
			return fmt.Sprintf("token-%d-%s", userID, role), nil
		},
		Mailer:     mailer,
		ResetLink:  func(token string) string { return "http://localhost/reset?token=" + token },
		Signatures: service.InlineSignatureStore{},
	})
	categories := service.NewCategoryService(db, log)
	_, err = categories.SeedDefaults(context.Background())
	require.NoError(t, err)
	beneficiaries := service.NewBeneficiaryService(db, log)

	return &testEnv{
		db:            db,
		users:         users,
		categories:    categories,
		beneficiaries: beneficiaries,
		reports:       service.NewReportService(db, log, beneficiaries, users),
		mailer:        mailer,
		upload:        config.UploadConfig{Mode: "inline", MaxFileBytes: 2 << 20, MaxBase64Bytes: 5 << 20},
		log:           log,
	}
}

func (e *testEnv) register(t *testing.T, email, cf string) *models.User {
	t.Helper()
	u, _, err := e.users.Register(context.Background(), service.RegisterInput{
		FirstName:  "Mario",
		LastName:   "Rossi",
		Email:      email,
		Password:   "segreta123",
		FiscalCode: cf,
	})
	require.NoError(t, err)
	return u
}

// setUserIDMiddleware stands in for JWTAuth
func setUserIDMiddleware(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextUserRole, models.RoleAdministrator)
		c.Next()
	}
}

func doJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *Pagination     `json:"pagination"`
	Error      string          `json:"error"`
	Code       string          `json:"code"`
	Details    json.RawMessage `json:"details"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	env := decode(t, w)
	require.NoError(t, json.Unmarshal(env.Data, out), string(env.Data))
}

func mustDate(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

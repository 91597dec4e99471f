package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"rendiconto/database"
	"rendiconto/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// pngHeader is enough for content sniffing
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
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
	return db
}

type fakeMailer struct {
	mu    sync.Mutex
	to    []string
	links []string
}

func (m *fakeMailer) SendPasswordResetEmail(toEmail, _ string, resetLink string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, toEmail)
	m.links = append(m.links, resetLink)
	return nil
}

type testServices struct {
	db            *gorm.DB
	users         *UserService
	categories    *CategoryService
	beneficiaries *BeneficiaryService
	reports       *ReportService
	mailer        *fakeMailer
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()
	db := newTestDB(t)
	log := zap.NewNop()
	mailer := &fakeMailer{}
	users := NewUserService(db, log, UserServiceConfig{
		BcryptCost: bcrypt.MinCost,
		Issuer: func(userID uint, role string) (string, error) {
			return fmt.Sprintf("token-%d-%s", userID, role), nil
		},
		Mailer:     mailer,
		ResetLink:  func(token string) string { return "http://localhost/reset?token=" + token },
		Signatures: InlineSignatureStore{},
	})
	beneficiaries := NewBeneficiaryService(db, log)
	return &testServices{
		db:            db,
		users:         users,
		categories:    NewCategoryService(db, log),
		beneficiaries: beneficiaries,
		reports:       NewReportService(db, log, beneficiaries, users),
		mailer:        mailer,
	}
}

var fiscalCodeSeq int

func (ts *testServices) registerUser(t *testing.T, email string) *models.User {
	t.Helper()
	fiscalCodeSeq++
	u, _, err := ts.users.Register(context.Background(), RegisterInput{
		FirstName:  "Mario",
		LastName:   "Rossi",
		Email:      email,
		Password:   "segreta123",
		FiscalCode: fmt.Sprintf("RSSMRA%02dA01H%03dZ", fiscalCodeSeq%100, fiscalCodeSeq%1000),
	})
	require.NoError(t, err)
	return u
}

func (ts *testServices) createBeneficiary(t *testing.T, userID uint, cf string) *models.Beneficiary {
	t.Helper()
	b, err := ts.beneficiaries.Create(context.Background(), userID, BeneficiaryInput{
		FirstName:  "Giulia",
		LastName:   "Bianchi",
		FiscalCode: cf,
		BirthDate:  date(1940, time.May, 12),
		BirthPlace: "Torino",
		Address:    models.Address{Street: "Via Roma 1", City: "Torino", PostalCode: "10100", Province: "to"},
	})
	require.NoError(t, err)
	return b
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func completeSignature() *SignatureInput {
	return &SignatureInput{
		Truthfulness: ptr(true),
		DataConsent:  ptr(true),
		Place:        ptr("Torino"),
		Date:         ptr(date(2024, time.April, 10)),
	}
}

package testutil

import (
	"context"
	"net/mail"
	"os"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/registration"
	"github.com/pblportal/registry/storage/database"
)

// Config is the configuration used by every test.
func Config() *core.Config {
	return &core.Config{
		Env:              "TEST",
		Debug:            true,
		TestMode:         true,
		AppName:          "PBL Registry",
		SecretKey:        "test-secret",
		DefaultFromEmail: mail.Address{Name: "PBL Registry", Address: "noreply@test.test"},
		AdminSchoolCode:  "admin_school",
		Server:           core.ServerConfig{JWTExpirationDelta: time.Hour},
		Storage:          core.StorageConfig{Driver: core.StorageDriverMemory},
		Upload:           core.UploadConfig{Dir: os.TempDir(), MaxBytes: 10 << 20, PublicPrefix: "/uploads/"},
		Fees: core.FeesConfig{
			DraftAmount:         "20000.00",
			PrimaryPerCandidate: 2000,
			MiddlePerCandidate:  2250,
		},
	}
}

func NewValidator() *validator.Validate {
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate
}

// Logger discards everything but remembers the errors.
type Logger struct {
	Errors []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) Debug(string, ...interface{}) {}
func (l *Logger) Info(string, ...interface{})  {}
func (l *Logger) Warn(string, ...interface{})  {}
func (l *Logger) Error(msg string, _ ...interface{}) {
	l.Errors = append(l.Errors, msg)
}
func (l *Logger) Fatal(msg string, _ ...interface{}) {
	l.Errors = append(l.Errors, msg)
}

// CreateSchool inserts a school in the given phase, bypassing the service.
func CreateSchool(t *testing.T, repo registration.Repository, code, name string, status registration.Status, createdAt ...time.Time) registration.School {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	school := registration.School{
		SchoolCode:     code,
		Status:         status,
		SchoolName:     name,
		PrincipalName:  null.StringFrom("Principal " + code),
		PrincipalEmail: null.StringFrom("principal." + code + "@school.test"),
		GradeIV:        10,
		GradeV:         8,
		GradeVI:        6,
		IsActive:       true,
		CreatedAt:      tstamp,
		UpdatedAt:      tstamp,
	}
	if status == registration.StatusFinal {
		school.RegistrationCompletedAt = null.TimeFrom(tstamp)
	}
	school, err := repo.CreateSchool(context.Background(), school)
	if err != nil {
		t.Fatalf("CreateSchool() failed: %v", err)
	}
	return school
}

// CreateCredentials inserts credentials for a school, bypassing the service.
func CreateCredentials(t *testing.T, repo registration.Repository, code, username, pwd string, isActive bool) registration.Credentials {
	now := time.Now().UTC()
	creds := registration.Credentials{
		SchoolCode: code,
		Username:   username,
		IsActive:   isActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := creds.SetPassword(pwd); err != nil {
		t.Fatalf("CreateCredentials() failed: %v", err)
	}
	creds, err := repo.CreateCredentials(context.Background(), creds)
	if err != nil {
		t.Fatalf("CreateCredentials() failed: %v", err)
	}
	return creds
}

// PrepareDB connects to TEST_DATABASE_URL, migrates it and empties every table.
// The test is skipped when the variable is not set.
func PrepareDB(t *testing.T) *sqlx.DB {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	_, err = db.Exec(`TRUNCATE audit_logs, student_fees, students, school_credentials, fees, resources, schools RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/pblportal/registry/apps/api/echo"
	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
	"github.com/pblportal/registry/core/fees"
	"github.com/pblportal/registry/core/registration"
	"github.com/pblportal/registry/core/session"
	"github.com/pblportal/registry/core/student"
	emailsvc "github.com/pblportal/registry/services/email"
	"github.com/pblportal/registry/services/export"
	logsvc "github.com/pblportal/registry/services/logger"
	"github.com/pblportal/registry/services/upload"
	"github.com/pblportal/registry/storage/database"
	"github.com/pblportal/registry/storage/database/inmem"
	boiledrepos "github.com/pblportal/registry/storage/database/sqlboiler"
	sqlxrepos "github.com/pblportal/registry/storage/database/sqlx"
	redisstore "github.com/pblportal/registry/storage/redis"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories are backed by postgres, or by the in-process store when conf.Storage.Driver is "memory".
// DB is nil in the latter case.
type Repositories struct {
	dig.Out
	DB           *sqlx.DB
	Registration registration.Repository
	Student      student.Repository
	Fees         fees.Repository
	Audit        audit.Repository
}

type serverParams struct {
	dig.In
	Conf            *core.Config
	Logger          core.Logger
	Validate        *validator.Validate
	RegistrationSvc *registration.Service
	StudentSvc      *student.Service
	FeesSvc         *fees.Service
	Recorder        *audit.Recorder
	Sessions        session.Store
	Uploads         *upload.Store
	PDF             *export.PDFRenderer
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(conf.RollbarToken != "" && !conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(conf.RollbarToken != "" && !conf.Debug)
	return logger
}

func newRepositories(conf *core.Config, loggerParam DBLoggerParam) Repositories {
	if conf.Storage.Driver == core.StorageDriverMemory {
		loggerParam.Logger.Warn("using the in-memory store: data is lost on restart")
		db := inmemdb.Open()
		return Repositories{
			Registration: inmemdb.NewRegistrationRepository(db),
			Student:      inmemdb.NewStudentRepository(db),
			Fees:         inmemdb.NewStudentFeesRepository(db),
			Audit:        inmemdb.NewAuditRepository(db),
		}
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Repositories{
		DB:           db,
		Registration: sqlxrepos.NewRegistrationRepository(db),
		Student:      boiledrepos.NewStudentRepository(db),
		Fees:         sqlxrepos.NewStudentFeesRepository(db),
		Audit:        boiledrepos.NewAuditRepository(db),
	}
}

func newSessionStore(conf *core.Config, logger core.Logger) session.Store {
	if conf.Session.RedisURL == "" {
		return session.NewMemoryStore()
	}
	client, err := redisstore.Open(context.Background(), conf.Session.RedisURL)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	return redisstore.NewSessionStore(client)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridApiKey == "" {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newUploadStore(conf *core.Config, logger core.Logger) *upload.Store {
	store, err := upload.NewStore(conf.Upload)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up uploads: %v", err), err)
	}
	return store
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Validate:        p.Validate,
		RegistrationSvc: p.RegistrationSvc,
		StudentSvc:      p.StudentSvc,
		FeesSvc:         p.FeesSvc,
		Recorder:        p.Recorder,
		Sessions:        p.Sessions,
		Uploads:         p.Uploads,
		PDF:             p.PDF,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newRepositories))
	must(c.Provide(newSessionStore))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(audit.NewRecorder))
	must(c.Provide(registration.NewService))
	must(c.Provide(func(svc *registration.Service) student.SchoolChecker { return svc }))
	must(c.Provide(func(svc *registration.Service) fees.CandidateCounter { return svc }))
	must(c.Provide(student.NewService))
	must(c.Provide(fees.NewService))
	must(c.Provide(newUploadStore))
	must(c.Provide(export.NewPDFRenderer))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}

package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
	"github.com/pblportal/registry/core/fees"
	"github.com/pblportal/registry/core/registration"
	"github.com/pblportal/registry/core/session"
	"github.com/pblportal/registry/core/student"
	"github.com/pblportal/registry/services/export"
	"github.com/pblportal/registry/services/upload"
)

type (
	ServerDeps struct {
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
		DisableReqLogs  bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.Sessions),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.deps.Uploads != nil && s.deps.Uploads.MaxBytes() > 0 {
		// multipart framing on top of the file itself
		s.app.Use(middleware.BodyLimit(bodyLimit(s.deps.Uploads.MaxBytes() + 1<<20)))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	if s.deps.Uploads != nil {
		s.app.Static(strings.TrimSuffix(s.deps.Uploads.PublicPrefix(), "/"), s.deps.Uploads.Dir())
	}

	g := s.app.Group("/api")
	g.POST("/login", s.login)

	authed := g.Group("", s.auth.jwt(), s.auth.checkRevoked, actorMiddleware)
	authed.POST("/logout", s.logout)
	authed.POST("/refresh-token", s.refreshToken)

	s.registerDraftAPI(authed.Group("/drafts", adminMiddleware))
	s.registerSchoolAPI(authed)
	s.registerStudentAPI(authed)
	authed.POST("/upload/deposit-slip", s.uploadDepositSlip)
	authed.GET("/audit-logs", s.queryAuditLogs, adminMiddleware)
}

func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors reports the listener failure that stopped the server.
func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// SignalShutdown asks the application to stop gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{
		"app":     s.deps.Conf.AppName,
		"version": s.deps.Conf.Build,
		"time":    time.Now().UTC(),
	})
}

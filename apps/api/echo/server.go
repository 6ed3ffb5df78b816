package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
	"github.com/trezcool/evidencehub/core/coverage"
	"github.com/trezcool/evidencehub/core/evidence"
	"github.com/trezcool/evidencehub/core/gateway"
	"github.com/trezcool/evidencehub/core/iqa"
	"github.com/trezcool/evidencehub/core/requirement"
	"github.com/trezcool/evidencehub/core/review"
	"github.com/trezcool/evidencehub/core/submission"
	"github.com/trezcool/evidencehub/services/metrics"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Translator     ut.Translator
		CatalogueSvc   *catalogue.Service
		EvidenceSvc    *evidence.Service
		RequirementSvc *requirement.Service
		SubmissionSvc  *submission.Service
		CoverageSvc    *coverage.Service
		GatewaySvc     *gateway.Service
		IQASvc         *iqa.Service
		ReviewSvc      *review.Service
	}

	Server struct {
		ServerDeps
		app      *echo.Echo
		jwt      echo.MiddlewareFunc
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Server.ReadTimeout = s.Conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = s.Conf.Server.WriteTimeout

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.Conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.Conf.Debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(metrics.Middleware())

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Conf, s.Logger, s.Translator, s.signalShutdown)
	s.app.Debug = s.Conf.Debug

	s.app.GET("/", s.home)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")
	s.jwt = middleware.JWTWithConfig(newJWTConfig(s.Conf))

	registerCatalogueAPI(v1, s.jwt, s.CatalogueSvc)
	registerEvidenceAPI(v1, s.jwt, s.EvidenceSvc, s.ReviewSvc)
	registerRequirementAPI(v1, s.jwt, s.RequirementSvc)
	registerSubmissionAPI(v1, s.jwt, s.SubmissionSvc)
	registerCoverageAPI(v1, s.jwt, s.CoverageSvc)
	registerGatewayAPI(v1, s.jwt, s.GatewaySvc)
	registerIQAAPI(v1, s.jwt, s.IQASvc)
}

// Start blocks until the listener stops; a failure is delivered through Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
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
	return ctx.String(http.StatusOK, "Welcome to "+s.Conf.AppName+" API!")
}

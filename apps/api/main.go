package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/evidencehub/apps/api/echo"
	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
	"github.com/trezcool/evidencehub/core/coverage"
	"github.com/trezcool/evidencehub/core/evidence"
	"github.com/trezcool/evidencehub/core/gateway"
	"github.com/trezcool/evidencehub/core/iqa"
	"github.com/trezcool/evidencehub/core/requirement"
	"github.com/trezcool/evidencehub/core/review"
	"github.com/trezcool/evidencehub/core/roster"
	"github.com/trezcool/evidencehub/core/submission"
	aireviewsvc "github.com/trezcool/evidencehub/services/aireview"
	cataloguesvc "github.com/trezcool/evidencehub/services/catalogue"
	emailsvc "github.com/trezcool/evidencehub/services/email"
	eventsvc "github.com/trezcool/evidencehub/services/events"
	logsvc "github.com/trezcool/evidencehub/services/logger"
	"github.com/trezcool/evidencehub/services/metrics"
	"github.com/trezcool/evidencehub/services/notify"
	rostersvc "github.com/trezcool/evidencehub/services/roster"
	"github.com/trezcool/evidencehub/storage/database"
	inmemdb "github.com/trezcool/evidencehub/storage/database/inmem"
	sqlxrepos "github.com/trezcool/evidencehub/storage/database/sqlx"
)

const dbSetupTimeout = 30 * time.Second

// repositories groups one implementation of every store contract.
type repositories struct {
	catalogue   catalogue.Repository
	evidence    evidence.Repository
	requirement requirement.Repository
	submission  submission.Repository
	gateway     gateway.Repository
	sampling    iqa.Repository
	close       func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	initValidators(validate, translator)

	gradePolicy, err := submission.NewGradePolicy(conf.Policy)
	if err != nil {
		logger.Fatal(fmt.Sprintf("invalid grade policy: %v", err), err)
	}
	gatewayPolicy, err := gateway.NewPolicy(conf.Policy)
	if err != nil {
		logger.Fatal(fmt.Sprintf("invalid gateway policy: %v", err), err)
	}

	// set up storage
	repos, err := setUpRepositories(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up storage: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	students, err := setUpRoster(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up roster: %v", err), err)
	}

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(log.New(os.Stdout, "EMAIL : ", log.LstdFlags), logger, conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(logger, conf)
	}

	// set up services
	bus := eventsvc.NewBus(logger)

	catalogueSvc := catalogue.NewService(repos.catalogue, validate)
	if conf.CatalogueFile != "" {
		if err = seedCatalogue(catalogueSvc, conf.CatalogueFile); err != nil {
			logger.Fatal(fmt.Sprintf("loading catalogue: %v", err), err)
		}
	}
	evidenceSvc := evidence.NewService(repos.evidence, catalogueSvc, bus, validate, logger, conf)
	requirementSvc := requirement.NewService(repos.requirement, catalogueSvc, bus, validate, conf)
	submissionSvc := submission.NewService(repos.submission, repos.evidence, bus, validate, gradePolicy, logger, conf)
	evidenceSvc.SetBundleChecker(submissionSvc)
	coverageSvc := coverage.NewService(catalogueSvc, evidenceSvc, submissionSvc, requirementSvc, logger, conf)
	gatewaySvc := gateway.NewService(repos.gateway, students, coverageSvc, bus, gatewayPolicy, conf)
	iqaSvc := iqa.NewService(repos.sampling, submissionSvc, bus, validate, conf)

	// a nil *Client must not end up in the interface
	var reviewer review.Reviewer
	if c := aireviewsvc.New(conf); c != nil {
		reviewer = c
	}
	reviewSvc := review.NewService(reviewer, evidenceSvc, catalogueSvc, logger)

	// subscribers run in registration order: caches first
	bus.Subscribe(coverageSvc.HandleEvent)
	bus.Subscribe(metrics.HandleEvent)
	bus.Subscribe(
		notify.NewNotifier(students, mailSvc, logger, conf).HandleEvent,
		core.EventSubmissionTransitioned, core.EventGatewayPassed,
	)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			Translator:     translator,
			CatalogueSvc:   catalogueSvc,
			EvidenceSvc:    evidenceSvc,
			RequirementSvc: requirementSvc,
			SubmissionSvc:  submissionSvc,
			CoverageSvc:    coverageSvc,
			GatewaySvc:     gatewaySvc,
			IQASvc:         iqaSvc,
			ReviewSvc:      reviewSvc,
		},
	)

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func initValidators(validate *validator.Validate, translator ut.Translator) {
	core.InitValidators(validate, translator)
	catalogue.InitValidators(validate, translator)
	submission.InitValidators(validate, translator)
}

func setUpRepositories(conf *core.Config) (repositories, error) {
	if conf.Database.Engine == "memory" {
		db := inmemdb.NewDB()
		return repositories{
			catalogue:   inmemdb.NewCatalogueRepository(db),
			evidence:    inmemdb.NewEvidenceRepository(db),
			requirement: inmemdb.NewRequirementRepository(db),
			submission:  inmemdb.NewSubmissionRepository(db),
			gateway:     inmemdb.NewGatewayRepository(db),
			sampling:    inmemdb.NewSamplingRepository(db),
			close:       func() error { return nil },
		}, nil
	}

	sqlDB, err := setUpDB(conf)
	if err != nil {
		return repositories{}, err
	}
	db := sqlxrepos.NewDB(sqlDB)
	return repositories{
		catalogue:   sqlxrepos.NewCatalogueRepository(db),
		evidence:    sqlxrepos.NewEvidenceRepository(db),
		requirement: sqlxrepos.NewRequirementRepository(db),
		submission:  sqlxrepos.NewSubmissionRepository(db),
		gateway:     sqlxrepos.NewGatewayRepository(db),
		sampling:    sqlxrepos.NewSamplingRepository(db),
		close:       db.Close,
	}, nil
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbSetupTimeout)
	defer cancel()

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(ctx, db); err != nil {
		return nil, err
	}

	if err = database.Migrate(db, "up"); err != nil {
		return nil, err
	}
	return db, nil
}

func setUpRoster(conf *core.Config) (roster.Directory, error) {
	if conf.Roster.BaseURL != "" {
		return rostersvc.NewClient(conf), nil
	}
	dir := inmemdb.NewStudentDirectory()
	if conf.Roster.File != "" {
		students, err := rostersvc.LoadFile(conf.Roster.File)
		if err != nil {
			return nil, err
		}
		dir.Add(students...)
	}
	return dir, nil
}

func seedCatalogue(svc *catalogue.Service, path string) error {
	qs, err := cataloguesvc.LoadFile(path)
	if err != nil {
		return err
	}
	for _, q := range qs {
		if _, err = svc.Load(context.Background(), q); err != nil {
			return errors.Wrapf(err, "loading qualification %q", q.Code)
		}
	}
	return nil
}

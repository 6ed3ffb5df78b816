package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
	"github.com/trezcool/evidencehub/core/iqa"
	"github.com/trezcool/evidencehub/core/submission"
	"github.com/trezcool/evidencehub/storage/database"
	sqlxrepos "github.com/trezcool/evidencehub/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	db, err := openDB(conf)
	errAndDie(err)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	catalogue.InitValidators(validate, translator)
	submission.InitValidators(validate, translator)

	gradePolicy, err := submission.NewGradePolicy(conf.Policy)
	errAndDie(err)

	// set up services
	xdb := sqlxrepos.NewDB(db)
	submissionSvc := submission.NewService(
		sqlxrepos.NewSubmissionRepository(xdb),
		sqlxrepos.NewEvidenceRepository(xdb),
		core.NopPublisher{},
		validate,
		gradePolicy,
		core.NopLogger{},
		conf,
	)

	// start CLI
	cli := commandLine{
		conf:         conf,
		db:           db,
		catalogueSvc: catalogue.NewService(sqlxrepos.NewCatalogueRepository(xdb), validate),
		iqaSvc:       iqa.NewService(sqlxrepos.NewSamplingRepository(xdb), submissionSvc, core.NopPublisher{}, validate, conf),
		out:          os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func openDB(conf *core.Config) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}

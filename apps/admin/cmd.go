package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
	"github.com/trezcool/evidencehub/core/iqa"
)

var (
	readSecretFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf         *core.Config
	db           *sql.DB
	catalogueSvc *catalogue.Service
	iqaSvc       *iqa.Service
	out          io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  loadcatalogue -file FILE - load (or replace) the qualifications of a YAML catalogue")
	fmt.Fprintln(cli.out, "  candidates [-qualification ID] [-assessor ID] [-limit N] - list IQA sampling candidates")
	fmt.Fprintln(cli.out, "  token -sub ID -roles ROLE[,ROLE] [-name NAME] [-ttl DURATION] [-prompt-secret] - sign a JWT for testing")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loadCatalogueCmd := flag.NewFlagSet("loadcatalogue", flag.ContinueOnError)
	loadCatalogueFile := loadCatalogueCmd.String("file", "", "Path to the YAML catalogue.")

	candidatesCmd := flag.NewFlagSet("candidates", flag.ContinueOnError)
	candidatesQual := candidatesCmd.String("qualification", "", "Only consider this qualification.")
	candidatesAssessor := candidatesCmd.String("assessor", "", "Only consider this assessor.")
	candidatesLimit := candidatesCmd.Int("limit", 10, "Maximum number of candidates.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenSub := tokenCmd.String("sub", "", "The user ID.")
	tokenName := tokenCmd.String("name", "", "The user's display name.")
	tokenRoles := tokenCmd.String("roles", "", "Comma separated roles.")
	tokenTTL := tokenCmd.Duration("ttl", time.Hour, "Token lifetime.")
	tokenPrompt := tokenCmd.Bool("prompt-secret", false, "Prompt for the signing secret instead of using the configured one.")

	for _, fs := range []*flag.FlagSet{loadCatalogueCmd, candidatesCmd, tokenCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "loadcatalogue":
		if err := loadCatalogueCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loadCatalogueFile == "" {
			loadCatalogueCmd.Usage()
			return errHelp
		}
		return cli.loadCatalogue(*loadCatalogueFile)
	case "candidates":
		if err := candidatesCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.candidates(iqa.CandidateFilter{
			QualificationID: *candidatesQual,
			AssessorID:      *candidatesAssessor,
			Limit:           *candidatesLimit,
		})
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenSub == "" || *tokenRoles == "" {
			tokenCmd.Usage()
			return errHelp
		}
		secret := cli.conf.SecretKey
		if *tokenPrompt {
			fmt.Fprint(cli.out, "Enter signing secret:")
			s, err := readSecretFunc(int(syscall.Stdin))
			fmt.Fprintln(cli.out)
			if err != nil {
				return err
			}
			if len(s) == 0 {
				tokenCmd.Usage()
				return errHelp
			}
			secret = string(s)
		}
		return cli.token(*tokenSub, *tokenName, *tokenRoles, *tokenTTL, secret)
	default:
		cli.printUsage()
		return errHelp
	}
}

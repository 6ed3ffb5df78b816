package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	echoapi "github.com/trezcool/evidencehub/apps/api/echo"
	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/iqa"
	appfs "github.com/trezcool/evidencehub/fs"
	cataloguesvc "github.com/trezcool/evidencehub/services/catalogue"
)

var gooseRunFunc = goose.RunFS // mockable

func (cli *commandLine) migrate(args []string) error {
	var arguments []string
	if len(args) > 1 {
		arguments = args[1:]
	}
	return gooseRunFunc(args[0], cli.db, appfs.FS, "migrations", arguments...)
}

// loadCatalogue replaces every qualification found in the file; nothing is saved if one is invalid.
func (cli *commandLine) loadCatalogue(path string) error {
	qs, err := cataloguesvc.LoadFile(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	for _, q := range qs {
		if err = cli.catalogueSvc.Validate(q); err != nil {
			return errors.Wrapf(err, "qualification %q", q.Code)
		}
	}
	for _, q := range qs {
		saved, err := cli.catalogueSvc.Load(ctx, q)
		if err != nil {
			return errors.Wrapf(err, "loading qualification %q", q.Code)
		}
		fmt.Fprintf(cli.out, "loaded %s (%s): %d categories\n", saved.Code, saved.ID, len(saved.Categories))
	}
	return nil
}

func (cli *commandLine) candidates(filter iqa.CandidateFilter) error {
	cands, err := cli.iqaSvc.Candidates(context.Background(), filter)
	if err != nil {
		return errors.Wrap(err, "selecting candidates")
	}
	if len(cands) == 0 {
		fmt.Fprintln(cli.out, "no candidates")
		return nil
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SUBMISSION\tASSESSOR\tSTUDENT\tCATEGORY\tGRADE\tSIGNED OFF\tSAMPLED")
	for _, c := range cands {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			c.SubmissionID, c.AssessorID, c.StudentID, c.CategoryID, c.Grade,
			c.SignedOffAt.Format(time.RFC3339), c.AssessorSamples)
	}
	return w.Flush()
}

func (cli *commandLine) token(sub, name, roles string, ttl time.Duration, secret string) error {
	actor := core.Actor{ID: sub, Name: name, Roles: core.CleanStrings(strings.Split(roles, ","), true /* lower */)}
	for _, r := range actor.Roles {
		if !core.ContainsString(core.AllRoles, r) {
			return core.NewFieldError("roles", fmt.Sprintf("unknown role %q", r))
		}
	}

	token, err := echoapi.GenerateToken(secret, echoapi.NewClaims(cli.conf, actor, ttl))
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

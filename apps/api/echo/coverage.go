package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/coverage"
)

const studentQualificationPath = "/students/:studentID/qualifications/:qualificationID"

type (
	coverageApi struct {
		svc *coverage.Service
	}

	CoverageResponse struct {
		Summary    coverage.Summary `json:"summary"`
		Categories []coverage.Entry `json:"categories"`
	}

	CategoryCoverageResponse struct {
		coverage.Entry
		KSB []coverage.KSBGroup `json:"ksb"`
	}
)

func registerCoverageAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *coverage.Service) {
	api := coverageApi{svc: svc}

	cg := g.Group(studentQualificationPath+"/coverage", jwt)
	cg.GET("", withActor(api.coverage))
	cg.GET("/:categoryID", withActor(api.category))
}

func (api *coverageApi) coverage(ctx echo.Context, actor core.Actor) error {
	studentID := ctx.Param("studentID")
	if err := checkStudentAccess(actor, studentID); err != nil {
		return err
	}

	entries, err := api.svc.Coverage(ctx.Request().Context(), studentID, ctx.Param("qualificationID"))
	if err != nil {
		return errors.Wrap(err, "computing coverage")
	}
	if entries == nil {
		entries = []coverage.Entry{}
	}
	return ctx.JSON(http.StatusOK, CoverageResponse{Summary: coverage.Summarize(entries), Categories: entries})
}

func (api *coverageApi) category(ctx echo.Context, actor core.Actor) error {
	studentID := ctx.Param("studentID")
	if err := checkStudentAccess(actor, studentID); err != nil {
		return err
	}

	entry, err := api.svc.Category(ctx.Request().Context(), studentID, ctx.Param("qualificationID"), ctx.Param("categoryID"))
	if err != nil {
		return errors.Wrap(err, "computing category coverage")
	}
	return ctx.JSON(http.StatusOK, CategoryCoverageResponse{Entry: entry, KSB: coverage.GroupKSB(entry.Criteria)})
}

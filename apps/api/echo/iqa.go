package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/iqa"
)

type iqaApi struct {
	svc *iqa.Service
}

func registerIQAAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *iqa.Service) {
	api := iqaApi{svc: svc}

	ig := g.Group("/iqa", jwt, rolesMiddleware(core.RoleIQA))
	ig.GET("/candidates", api.candidates)
	ig.GET("/stats", api.stats)
	ig.POST("/samples", withActor(api.sample))
	ig.GET("/samples", api.query)
	ig.GET("/samples/:id", api.retrieve)
	ig.POST("/samples/:id/verification", withActor(api.verify))
}

func (api *iqaApi) candidates(ctx echo.Context) error {
	var filter iqa.CandidateFilter
	if err := bind(ctx, &filter, "CandidateFilter"); err != nil {
		return err
	}

	cands, err := api.svc.Candidates(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "selecting sampling candidates")
	}
	if cands == nil {
		cands = []iqa.Candidate{}
	}
	return ctx.JSON(http.StatusOK, cands)
}

func (api *iqaApi) stats(ctx echo.Context) error {
	st, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing sampling stats")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *iqaApi) sample(ctx echo.Context, actor core.Actor) error {
	var data SampleRequest
	if err := bind(ctx, &data, "SampleRequest"); err != nil {
		return err
	}

	rec, err := api.svc.Sample(ctx.Request().Context(), actor, data.SubmissionID)
	if err != nil {
		return errors.Wrap(err, "sampling submission")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *iqaApi) query(ctx echo.Context) error {
	var filter iqa.QueryFilter
	if err := bind(ctx, &filter, "QueryFilter"); err != nil {
		return err
	}

	recs, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying sampling records")
	}
	if recs == nil {
		recs = []iqa.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *iqaApi) retrieve(ctx echo.Context) error {
	rec, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting sampling record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *iqaApi) verify(ctx echo.Context, actor core.Actor) error {
	var data iqa.Verification
	if err := bind(ctx, &data, "Verification"); err != nil {
		return err
	}

	rec, err := api.svc.CompleteVerification(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "completing verification")
	}
	return ctx.JSON(http.StatusOK, rec)
}

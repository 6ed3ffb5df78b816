package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/evidence"
	"github.com/trezcool/evidencehub/core/review"
)

type evidenceApi struct {
	svc    *evidence.Service
	review *review.Service
}

func registerEvidenceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *evidence.Service, rvw *review.Service) {
	api := evidenceApi{svc: svc, review: rvw}

	eg := g.Group("/evidence", jwt)
	eg.POST("", withActor(api.create))
	eg.GET("", withActor(api.query))

	dg := eg.Group("/:id")
	dg.GET("", withActor(api.retrieve))
	dg.POST("/withdraw", withActor(api.withdraw))
	dg.POST("/links", withActor(api.link), rolesMiddleware(core.RoleAssessor))
	dg.DELETE("/links/:code", withActor(api.unlink), rolesMiddleware(core.RoleAssessor))
	dg.POST("/links/:code/confirm", withActor(api.confirm), rolesMiddleware(core.RoleAssessor))
	dg.POST("/ai-suggestion", withActor(api.suggest), rolesMiddleware(core.RoleAssessor))
}

func (api *evidenceApi) create(ctx echo.Context, actor core.Actor) error {
	var data evidence.NewItem
	if err := bind(ctx, &data, "NewItem"); err != nil {
		return err
	}
	if data.StudentID == "" {
		data.StudentID = actor.ID
	}

	item, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating evidence")
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *evidenceApi) query(ctx echo.Context, actor core.Actor) error {
	var filter evidence.QueryFilter
	if err := bind(ctx, &filter, "QueryFilter"); err != nil {
		return err
	}
	scopeStudent(actor, &filter.StudentID)

	items, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying evidence")
	}
	if items == nil {
		items = []evidence.Item{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *evidenceApi) retrieve(ctx echo.Context, actor core.Actor) error {
	item, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting evidence")
	}
	if err = checkStudentAccess(actor, item.StudentID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *evidenceApi) withdraw(ctx echo.Context, actor core.Actor) error {
	item, err := api.svc.Withdraw(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "withdrawing evidence")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *evidenceApi) link(ctx echo.Context, actor core.Actor) error {
	var data LinkRequest
	if err := bind(ctx, &data, "LinkRequest"); err != nil {
		return err
	}

	item, err := api.svc.LinkCriteria(ctx.Request().Context(), actor, ctx.Param("id"), data.Codes)
	if err != nil {
		return errors.Wrap(err, "linking criteria")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *evidenceApi) unlink(ctx echo.Context, actor core.Actor) error {
	item, err := api.svc.UnlinkCriterion(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "unlinking criterion")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *evidenceApi) confirm(ctx echo.Context, actor core.Actor) error {
	item, err := api.svc.ConfirmCriterion(ctx.Request().Context(), actor, ctx.Param("id"), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "confirming criterion")
	}
	return ctx.JSON(http.StatusOK, item)
}

// suggest returns an AI suggestion for the assessor; nothing is applied to the workflow.
func (api *evidenceApi) suggest(ctx echo.Context, actor core.Actor) error {
	sug, err := api.review.Suggest(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "suggesting review")
	}
	return ctx.JSON(http.StatusOK, sug)
}

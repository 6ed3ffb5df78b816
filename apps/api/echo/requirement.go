package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/requirement"
)

type requirementApi struct {
	svc *requirement.Service
}

func registerRequirementAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *requirement.Service) {
	api := requirementApi{svc: svc}

	rg := g.Group("/requirements", jwt)
	rg.POST("", withActor(api.create), rolesMiddleware(core.RoleTutor))
	rg.GET("", withActor(api.query))

	dg := rg.Group("/:id")
	dg.GET("", withActor(api.retrieve))
	dg.PUT("", withActor(api.update), rolesMiddleware(core.RoleTutor))
	dg.DELETE("", withActor(api.destroy), rolesMiddleware(core.RoleTutor))
	dg.POST("/complete", withActor(api.complete), rolesMiddleware(core.RoleTutor))
	dg.POST("/reactivate", withActor(api.reactivate), rolesMiddleware(core.RoleTutor))
	dg.POST("/cancel", withActor(api.cancel), rolesMiddleware(core.RoleTutor))
}

func (api *requirementApi) create(ctx echo.Context, actor core.Actor) error {
	var data requirement.NewRequirement
	if err := bind(ctx, &data, "NewRequirement"); err != nil {
		return err
	}

	req, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating requirement")
	}
	return ctx.JSON(http.StatusCreated, req)
}

func (api *requirementApi) query(ctx echo.Context, actor core.Actor) error {
	var filter requirement.QueryFilter
	if err := bind(ctx, &filter, "QueryFilter"); err != nil {
		return err
	}
	scopeStudent(actor, &filter.StudentID)

	reqs, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying requirements")
	}
	if reqs == nil {
		reqs = []requirement.Requirement{}
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *requirementApi) retrieve(ctx echo.Context, actor core.Actor) error {
	req, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting requirement")
	}
	if err = checkStudentAccess(actor, req.StudentID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *requirementApi) update(ctx echo.Context, actor core.Actor) error {
	var data requirement.UpdateRequirement
	if err := bind(ctx, &data, "UpdateRequirement"); err != nil {
		return err
	}

	req, err := api.svc.Update(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating requirement")
	}
	return ctx.JSON(http.StatusOK, req)
}

// destroy answers 204 when the requirement was erased, and the cancelled requirement otherwise.
func (api *requirementApi) destroy(ctx echo.Context, actor core.Actor) error {
	req, erased, err := api.svc.Delete(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "deleting requirement")
	}
	if erased {
		return ctx.NoContent(http.StatusNoContent)
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *requirementApi) complete(ctx echo.Context, actor core.Actor) error {
	req, err := api.svc.MarkComplete(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "completing requirement")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *requirementApi) reactivate(ctx echo.Context, actor core.Actor) error {
	req, err := api.svc.Reactivate(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "reactivating requirement")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *requirementApi) cancel(ctx echo.Context, actor core.Actor) error {
	req, err := api.svc.Cancel(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "cancelling requirement")
	}
	return ctx.JSON(http.StatusOK, req)
}

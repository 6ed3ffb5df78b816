package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core/catalogue"
)

type catalogueApi struct {
	svc *catalogue.Service
}

func registerCatalogueAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *catalogue.Service) {
	api := catalogueApi{svc: svc}

	qg := g.Group("/qualifications", jwt)
	qg.GET("", api.list)
	qg.GET("/:id", api.retrieve)
	qg.GET("/:id/categories/:categoryID", api.category)
}

func (api *catalogueApi) list(ctx echo.Context) error {
	qs, err := api.svc.ListQualifications(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing qualifications")
	}
	if qs == nil {
		qs = []catalogue.Qualification{}
	}
	return ctx.JSON(http.StatusOK, qs)
}

func (api *catalogueApi) retrieve(ctx echo.Context) error {
	q, err := api.svc.GetQualification(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting qualification")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *catalogueApi) category(ctx echo.Context) error {
	cat, err := api.svc.GetCategory(ctx.Request().Context(), ctx.Param("id"), ctx.Param("categoryID"))
	if err != nil {
		return errors.Wrap(err, "getting category")
	}
	return ctx.JSON(http.StatusOK, cat)
}

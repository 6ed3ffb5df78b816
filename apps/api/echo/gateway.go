package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/gateway"
)

type gatewayApi struct {
	svc *gateway.Service
}

func registerGatewayAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *gateway.Service) {
	api := gatewayApi{svc: svc}
	staff := rolesMiddleware(core.RoleTutor, core.RoleAssessor)

	gg := g.Group(studentQualificationPath+"/gateway", jwt)
	gg.GET("", withActor(api.status))
	gg.PUT("/checklist/:key", withActor(api.setChecklistItem), staff)
	gg.PUT("/ojt-hours", withActor(api.updateOJTHours), staff)
	gg.POST("/epa-booking", withActor(api.bookEPA), staff)
}

func (api *gatewayApi) status(ctx echo.Context, actor core.Actor) error {
	studentID := ctx.Param("studentID")
	if err := checkStudentAccess(actor, studentID); err != nil {
		return err
	}

	st, err := api.svc.GetStatus(ctx.Request().Context(), studentID, ctx.Param("qualificationID"))
	if err != nil {
		return errors.Wrap(err, "getting gateway status")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *gatewayApi) setChecklistItem(ctx echo.Context, actor core.Actor) error {
	var data ChecklistRequest
	if err := bind(ctx, &data, "ChecklistRequest"); err != nil {
		return err
	}
	if data.Completed == nil {
		return core.NewFieldError("completed", "this field is required")
	}

	st, err := api.svc.SetChecklistItem(
		ctx.Request().Context(),
		actor,
		ctx.Param("studentID"),
		ctx.Param("qualificationID"),
		ctx.Param("key"),
		*data.Completed,
	)
	if err != nil {
		return errors.Wrap(err, "setting checklist item")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *gatewayApi) updateOJTHours(ctx echo.Context, actor core.Actor) error {
	var data gateway.OJTUpdate
	if err := bind(ctx, &data, "OJTUpdate"); err != nil {
		return err
	}

	st, err := api.svc.UpdateOJTHours(ctx.Request().Context(), actor, ctx.Param("studentID"), ctx.Param("qualificationID"), data)
	if err != nil {
		return errors.Wrap(err, "updating OJT hours")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *gatewayApi) bookEPA(ctx echo.Context, actor core.Actor) error {
	var data EPABookingRequest
	if err := bind(ctx, &data, "EPABookingRequest"); err != nil {
		return err
	}

	st, err := api.svc.BookEPA(ctx.Request().Context(), actor, ctx.Param("studentID"), ctx.Param("qualificationID"), data.Date)
	if err != nil {
		return errors.Wrap(err, "booking EPA")
	}
	return ctx.JSON(http.StatusOK, st)
}

package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/submission"
)

type submissionApi struct {
	svc *submission.Service
}

func registerSubmissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *submission.Service) {
	api := submissionApi{svc: svc}

	sg := g.Group("/submissions", jwt)
	sg.POST("", withActor(api.create))
	sg.GET("", withActor(api.query))

	dg := sg.Group("/:id")
	dg.GET("", withActor(api.retrieve))
	dg.POST("/resubmit", withActor(api.resubmit))

	dg.POST("/review", withActor(api.startReview), rolesMiddleware(core.RoleAssessor))
	dg.POST("/feedback", withActor(api.feedback), rolesMiddleware(core.RoleAssessor))
	dg.POST("/request-evidence", withActor(api.requestEvidence), rolesMiddleware(core.RoleAssessor))
	dg.POST("/sign-off", withActor(api.signOff), rolesMiddleware(core.RoleAssessor))

	dg.POST("/cancel", withActor(api.cancel), rolesMiddleware(core.RoleAdmin))
}

func (api *submissionApi) create(ctx echo.Context, actor core.Actor) error {
	var data submission.NewSubmission
	if err := bind(ctx, &data, "NewSubmission"); err != nil {
		return err
	}
	if data.StudentID == "" {
		data.StudentID = actor.ID
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "submitting")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *submissionApi) query(ctx echo.Context, actor core.Actor) error {
	var filter submission.QueryFilter
	if err := bind(ctx, &filter, "QueryFilter"); err != nil {
		return err
	}
	scopeStudent(actor, &filter.StudentID)

	subs, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []submission.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionApi) retrieve(ctx echo.Context, actor core.Actor) error {
	sub, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	if err = checkStudentAccess(actor, sub.StudentID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) startReview(ctx echo.Context, actor core.Actor) error {
	sub, err := api.svc.StartReview(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting review")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) feedback(ctx echo.Context, actor core.Actor) error {
	var data submission.Feedback
	if err := bind(ctx, &data, "Feedback"); err != nil {
		return err
	}

	sub, err := api.svc.SubmitFeedback(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "submitting feedback")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) requestEvidence(ctx echo.Context, actor core.Actor) error {
	var data MoreEvidenceRequest
	if err := bind(ctx, &data, "MoreEvidenceRequest"); err != nil {
		return err
	}

	sub, err := api.svc.RequestMoreEvidence(ctx.Request().Context(), actor, ctx.Param("id"), data.Request)
	if err != nil {
		return errors.Wrap(err, "requesting more evidence")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) resubmit(ctx echo.Context, actor core.Actor) error {
	sub, err := api.svc.Resubmit(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "resubmitting")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) signOff(ctx echo.Context, actor core.Actor) error {
	sub, err := api.svc.SignOff(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "signing off")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) cancel(ctx echo.Context, actor core.Actor) error {
	var data ReasonRequest
	if err := bind(ctx, &data, "ReasonRequest"); err != nil {
		return err
	}

	sub, err := api.svc.Cancel(ctx.Request().Context(), actor, ctx.Param("id"), data.Reason)
	if err != nil {
		return errors.Wrap(err, "cancelling submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

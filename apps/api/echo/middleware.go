package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
)

// rolesMiddleware only lets through callers holding one of `roles`. Admins always pass.
func rolesMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			actor, err := getContextActor(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context actor")
			}
			if actor.HasRole(core.RoleAdmin) || actor.HasRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func isStaff(actor core.Actor) bool {
	return actor.HasRole(core.RoleTutor, core.RoleAssessor, core.RoleIQA, core.RoleAdmin)
}

// checkStudentAccess lets staff through and students on their own records only.
func checkStudentAccess(actor core.Actor, studentID string) error {
	if isStaff(actor) || actor.ID == studentID {
		return nil
	}
	return errHttpForbidden
}

// scopeStudent pins a list filter to the caller when the caller is a student.
func scopeStudent(actor core.Actor, studentID *string) {
	if !isStaff(actor) {
		*studentID = actor.ID
	}
}

package echoapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
)

// Request bodies that have no counterpart in the core packages.
type (
	LinkRequest struct {
		Codes []string `json:"codes"`
	}

	ReasonRequest struct {
		Reason string `json:"reason"`
	}

	MoreEvidenceRequest struct {
		Request string `json:"request"`
	}

	SampleRequest struct {
		SubmissionID string `json:"submission_id"`
	}

	ChecklistRequest struct {
		Completed *bool `json:"completed"`
	}

	EPABookingRequest struct {
		Date time.Time `json:"date"`
	}
)

// bind decodes the request into `dest`, reporting malformed payloads as validation errors.
func bind(ctx echo.Context, dest interface{}, name string) error {
	if err := ctx.Bind(dest); err != nil {
		if herr, ok := err.(*echo.HTTPError); ok {
			return core.NewValidationError(errors.Errorf("invalid %s: %v", name, herr.Message))
		}
		return errors.Wrapf(err, "binding to %s", name)
	}
	return nil
}

// withActor wraps handlers that need the authenticated caller.
func withActor(h func(ctx echo.Context, actor core.Actor) error) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := getContextActor(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context actor")
		}
		return h(ctx, actor)
	}
}

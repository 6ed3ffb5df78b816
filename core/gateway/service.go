package gateway

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/coverage"
	"github.com/trezcool/evidencehub/core/roster"
)

type (
	Repository interface {
		// GetRecord returns a core.NotFoundError when the student has no gateway record yet.
		GetRecord(ctx context.Context, studentID, qualificationID string) (Record, error)
		// SaveRecord inserts the record when its Version is 0, else updates it if the stored
		// version still matches; a mismatch is a core.ConflictError.
		SaveRecord(ctx context.Context, rec Record) (Record, error)
	}

	CoverageReader interface {
		Coverage(ctx context.Context, studentID, qualificationID string) ([]coverage.Entry, error)
	}

	Service struct {
		repo         Repository
		students     roster.Directory
		coverage     CoverageReader
		events       core.EventPublisher
		policy       Policy
		storeTimeout time.Duration
	}
)

func NewService(
	repo Repository,
	students roster.Directory,
	cov CoverageReader,
	events core.EventPublisher,
	policy Policy,
	conf *core.Config,
) *Service {
	return &Service{
		repo:         repo,
		students:     students,
		coverage:     cov,
		events:       events,
		policy:       policy,
		storeTimeout: conf.StoreTimeout,
	}
}

func (svc *Service) Policy() Policy {
	return svc.policy
}

func isStaff(actor core.Actor) bool {
	return actor.HasRole(core.RoleTutor, core.RoleAssessor, core.RoleAdmin)
}

// GetStatus derives the readiness of a student; a student without a record starts from scratch.
func (svc *Service) GetStatus(ctx context.Context, studentID, qualificationID string) (Status, error) {
	if err := svc.checkEnrolment(ctx, studentID, qualificationID); err != nil {
		return Status{}, err
	}
	rec, err := svc.load(ctx, studentID, qualificationID)
	if err != nil {
		return Status{}, err
	}
	st := Calculate(svc.policy, rec)

	if svc.coverage != nil {
		entries, err := svc.coverage.Coverage(ctx, studentID, qualificationID)
		if err != nil {
			return Status{}, errors.Wrap(err, "computing coverage")
		}
		sum := coverage.Summarize(entries)
		st.Coverage = &sum
	}
	return st, nil
}

// SetChecklistItem marks a catalogue checklist item (un)completed. Staff only.
func (svc *Service) SetChecklistItem(ctx context.Context, actor core.Actor, studentID, qualificationID, key string, completed bool) (Status, error) {
	if !isStaff(actor) {
		return Status{}, core.ErrForbidden
	}
	key = core.CleanString(key, true /* lower */)
	if key == KeyOJTHoursVerified {
		return Status{}, core.NewFieldError("key", "this item is derived from the OJT hours")
	}
	if _, ok := svc.policy.Def(key); !ok {
		return Status{}, core.NewFieldError("key", "unknown checklist item")
	}

	return svc.mutate(ctx, actor, studentID, qualificationID, func(rec *Record) error {
		if !completed {
			delete(rec.Checklist, key)
			return nil
		}
		if item, ok := rec.Checklist[key]; ok && item.Completed {
			return nil
		}
		now := core.NowFunc()
		rec.Checklist[key] = ChecklistItem{Completed: true, CompletedAt: &now, CompletedBy: actor.ID}
		return nil
	})
}

// OJTUpdate sets the off-the-job hours; Required is optional and overrides the policy default.
type OJTUpdate struct {
	Hours    float64  `json:"hours" validate:"min=0"`
	Required *float64 `json:"required" validate:"omitempty,gt=0"`
}

// UpdateOJTHours records completed hours. Exceeding the required hours is valid.
func (svc *Service) UpdateOJTHours(ctx context.Context, actor core.Actor, studentID, qualificationID string, upd OJTUpdate) (Status, error) {
	if !isStaff(actor) {
		return Status{}, core.ErrForbidden
	}
	if upd.Hours < 0 {
		return Status{}, core.NewFieldError("hours", "hours cannot be negative")
	}
	if upd.Required != nil && *upd.Required <= 0 {
		return Status{}, core.NewFieldError("required", "required hours must be positive")
	}
	return svc.mutate(ctx, actor, studentID, qualificationID, func(rec *Record) error {
		rec.OJTHoursCompleted = upd.Hours
		if upd.Required != nil {
			rec.OJTHoursRequired = *upd.Required
		}
		return nil
	})
}

// BookEPA sets (or moves) the end-point assessment date once the gateway is passed.
func (svc *Service) BookEPA(ctx context.Context, actor core.Actor, studentID, qualificationID string, date time.Time) (Status, error) {
	if !isStaff(actor) {
		return Status{}, core.ErrForbidden
	}
	if date.IsZero() {
		return Status{}, core.NewFieldError("date", "this field is required")
	}
	return svc.mutate(ctx, actor, studentID, qualificationID, func(rec *Record) error {
		if !Calculate(svc.policy, *rec).GatewayPassed {
			return core.ErrGatewayNotPassed
		}
		d := date.UTC()
		rec.EPABookedDate = &d
		return nil
	})
}

func (svc *Service) mutate(ctx context.Context, actor core.Actor, studentID, qualificationID string, fn func(rec *Record) error) (Status, error) {
	if err := svc.checkEnrolment(ctx, studentID, qualificationID); err != nil {
		return Status{}, err
	}

	var before, after Status
	err := core.RetryOnce(ctx, "gateway", studentID+"/"+qualificationID, func(ctx context.Context) error {
		ctx, cancel := core.WithStoreTimeout(ctx, svc.storeTimeout)
		defer cancel()

		rec, err := svc.load(ctx, studentID, qualificationID)
		if err != nil {
			return err
		}
		before = Calculate(svc.policy, rec)
		if err = fn(&rec); err != nil {
			return err
		}
		rec.UpdatedAt = core.NowFunc()
		if rec, err = svc.repo.SaveRecord(ctx, rec); err != nil {
			return err
		}
		after = Calculate(svc.policy, rec)
		return nil
	})
	if err != nil {
		return Status{}, err
	}

	if after.GatewayPassed && !before.GatewayPassed {
		svc.events.Publish(ctx, core.Event{
			Type:            core.EventGatewayPassed,
			StudentID:       studentID,
			QualificationID: qualificationID,
			ActorID:         actor.ID,
			From:            string(before.ReadinessStatus),
			To:              string(after.ReadinessStatus),
			At:              core.NowFunc(),
		})
	}
	return after, nil
}

// load returns the stored record or a fresh one carrying the policy defaults.
func (svc *Service) load(ctx context.Context, studentID, qualificationID string) (Record, error) {
	rec, err := svc.repo.GetRecord(ctx, studentID, qualificationID)
	switch {
	case core.IsNotFound(err):
		rec = Record{
			StudentID:        studentID,
			QualificationID:  qualificationID,
			OJTHoursRequired: svc.policy.OJTHoursRequired,
		}
	case err != nil:
		return Record{}, err
	}
	if rec.Checklist == nil {
		rec.Checklist = make(map[string]ChecklistItem)
	}
	return rec, nil
}

func (svc *Service) checkEnrolment(ctx context.Context, studentID, qualificationID string) error {
	if svc.students == nil {
		return nil
	}
	student, err := svc.students.GetStudent(ctx, studentID)
	if err != nil {
		return err
	}
	if !student.EnrolledIn(qualificationID) {
		return core.NewNotFoundError("enrolment", studentID+"/"+qualificationID)
	}
	return nil
}

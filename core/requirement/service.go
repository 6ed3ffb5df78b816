package requirement

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
)

type (
	Repository interface {
		CreateRequirement(ctx context.Context, req Requirement) (Requirement, error)
		GetRequirement(ctx context.Context, id string) (Requirement, error)
		QueryRequirements(ctx context.Context, filter QueryFilter) ([]Requirement, error)
		UpdateRequirement(ctx context.Context, req Requirement) (Requirement, error)
		// MarkContributed flags every given requirement as having contributed to a complete coverage entry.
		MarkContributed(ctx context.Context, ids []string) error
		DeleteRequirement(ctx context.Context, id string) error
	}

	CategoryLookup interface {
		GetCategory(ctx context.Context, qualificationID, categoryID string) (catalogue.Category, error)
	}

	Service struct {
		repo         Repository
		catalogue    CategoryLookup
		events       core.EventPublisher
		validate     *validator.Validate
		storeTimeout time.Duration
	}
)

func NewService(repo Repository, cat CategoryLookup, events core.EventPublisher, validate *validator.Validate, conf *core.Config) *Service {
	return &Service{
		repo:         repo,
		catalogue:    cat,
		events:       events,
		validate:     validate,
		storeTimeout: conf.StoreTimeout,
	}
}

func canManage(actor core.Actor) bool {
	return actor.HasRole(core.RoleTutor, core.RoleAdmin)
}

func (svc *Service) Create(ctx context.Context, actor core.Actor, nr NewRequirement) (Requirement, error) {
	if !canManage(actor) {
		return Requirement{}, core.ErrForbidden
	}
	nr.Clean()
	if err := svc.validate.Struct(nr); err != nil {
		return Requirement{}, err
	}
	if _, err := svc.catalogue.GetCategory(ctx, nr.QualificationID, nr.CategoryID); err != nil {
		return Requirement{}, err
	}

	now := core.NowFunc()
	req := Requirement{
		StudentID:        nr.StudentID,
		TutorID:          actor.ID,
		QualificationID:  nr.QualificationID,
		CategoryID:       nr.CategoryID,
		Title:            nr.Title,
		EvidenceTypes:    nr.EvidenceTypes,
		QuantityRequired: nr.QuantityRequired,
		Mandatory:        nr.Mandatory,
		DueDate:          nr.DueDate,
		Guidance:         nr.Guidance,
		Status:           StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	ctx, cancel := core.WithStoreTimeout(ctx, svc.storeTimeout)
	defer cancel()
	req, err := svc.repo.CreateRequirement(ctx, req)
	if err != nil {
		return Requirement{}, errors.Wrap(err, "creating requirement")
	}
	svc.publish(ctx, req)
	return req, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Requirement, error) {
	return svc.repo.GetRequirement(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Requirement, error) {
	return svc.repo.QueryRequirements(ctx, filter)
}

// Update modifies a requirement; only the owning tutor may do so.
func (svc *Service) Update(ctx context.Context, actor core.Actor, id string, ur UpdateRequirement) (Requirement, error) {
	ur.Title = core.CleanString(ur.Title)
	ur.EvidenceTypes = core.CleanStrings(ur.EvidenceTypes, true /* lower */)
	if err := svc.validate.Struct(ur); err != nil {
		return Requirement{}, err
	}
	return svc.mutate(ctx, actor, id, func(req *Requirement) error {
		if req.Status == StatusCancelled {
			return core.NewStateTransitionError("requirement", string(req.Status), "update")
		}
		if ur.Title != "" {
			req.Title = ur.Title
		}
		if len(ur.EvidenceTypes) > 0 {
			req.EvidenceTypes = ur.EvidenceTypes
		}
		if ur.QuantityRequired > 0 {
			req.QuantityRequired = ur.QuantityRequired
		}
		if ur.Mandatory != nil {
			req.Mandatory = *ur.Mandatory
		}
		if ur.DueDate != nil {
			req.DueDate = ur.DueDate
		}
		if ur.Guidance != nil {
			req.Guidance = core.CleanString(*ur.Guidance)
		}
		return nil
	})
}

func (svc *Service) MarkComplete(ctx context.Context, actor core.Actor, id string) (Requirement, error) {
	return svc.setStatus(ctx, actor, id, StatusCompleted, "mark complete", StatusActive)
}

// Reactivate moves a completed requirement back to active.
func (svc *Service) Reactivate(ctx context.Context, actor core.Actor, id string) (Requirement, error) {
	return svc.setStatus(ctx, actor, id, StatusActive, "reactivate", StatusCompleted)
}

// Cancel soft-deletes the requirement.
func (svc *Service) Cancel(ctx context.Context, actor core.Actor, id string) (Requirement, error) {
	return svc.setStatus(ctx, actor, id, StatusCancelled, "cancel", StatusActive, StatusCompleted)
}

// Delete erases a requirement that never contributed to a complete coverage entry.
// A requirement that did is cancelled instead so that historical coverage stays reproducible;
// the returned bool reports whether the record was erased.
func (svc *Service) Delete(ctx context.Context, actor core.Actor, id string) (Requirement, bool, error) {
	req, err := svc.repo.GetRequirement(ctx, id)
	if err != nil {
		return Requirement{}, false, err
	}
	if err = checkOwner(actor, req); err != nil {
		return Requirement{}, false, err
	}

	if req.Contributed {
		if req.Status == StatusCancelled {
			return req, false, nil
		}
		req, err = svc.Cancel(ctx, actor, id)
		return req, false, err
	}

	ctx, cancel := core.WithStoreTimeout(ctx, svc.storeTimeout)
	defer cancel()
	if err = svc.repo.DeleteRequirement(ctx, id); err != nil {
		return Requirement{}, false, errors.Wrap(err, "deleting requirement")
	}
	svc.publish(ctx, req)
	return req, true, nil
}

// MarkContributed is called by the coverage aggregator when a category is complete.
func (svc *Service) MarkContributed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return svc.repo.MarkContributed(ctx, ids)
}

func (svc *Service) setStatus(ctx context.Context, actor core.Actor, id string, to Status, action string, from ...Status) (Requirement, error) {
	return svc.mutate(ctx, actor, id, func(req *Requirement) error {
		for _, s := range from {
			if req.Status == s {
				req.Status = to
				return nil
			}
		}
		return core.NewStateTransitionError("requirement", string(req.Status), action)
	})
}

func (svc *Service) mutate(ctx context.Context, actor core.Actor, id string, fn func(req *Requirement) error) (Requirement, error) {
	var saved Requirement
	err := core.RetryOnce(ctx, "requirement", id, func(ctx context.Context) error {
		ctx, cancel := core.WithStoreTimeout(ctx, svc.storeTimeout)
		defer cancel()

		req, err := svc.repo.GetRequirement(ctx, id)
		if err != nil {
			return err
		}
		if err = checkOwner(actor, req); err != nil {
			return err
		}
		if err = fn(&req); err != nil {
			return err
		}
		req.UpdatedAt = core.NowFunc()
		saved, err = svc.repo.UpdateRequirement(ctx, req)
		return err
	})
	if err != nil {
		return Requirement{}, err
	}
	svc.publish(ctx, saved)
	return saved, nil
}

// checkOwner only lets the tutor who authored the requirement (or an admin) change it.
func checkOwner(actor core.Actor, req Requirement) error {
	if actor.HasRole(core.RoleAdmin) {
		return nil
	}
	if !actor.HasRole(core.RoleTutor) || actor.ID != req.TutorID {
		return core.ErrForbidden
	}
	return nil
}

func (svc *Service) publish(ctx context.Context, req Requirement) {
	svc.events.Publish(ctx, core.Event{
		Type:            core.EventRequirementChanged,
		StudentID:       req.StudentID,
		QualificationID: req.QualificationID,
		CategoryID:      req.CategoryID,
		RecordID:        req.ID,
		At:              req.UpdatedAt,
	})
}

package evidence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/catalogue"
)

type (
	Repository interface {
		CreateItem(ctx context.Context, item Item) (Item, error)
		GetItem(ctx context.Context, id string) (Item, error)
		QueryItems(ctx context.Context, filter QueryFilter) ([]Item, error)
		// UpdateItem saves the item if its stored version still equals item.Version,
		// returns a core.ConflictError otherwise.
		UpdateItem(ctx context.Context, item Item) (Item, error)
	}

	CategoryLookup interface {
		GetCategory(ctx context.Context, qualificationID, categoryID string) (catalogue.Category, error)
	}

	// BundleChecker tells whether an item is referenced by a live (non-cancelled) submission.
	BundleChecker interface {
		IsItemBundled(ctx context.Context, itemID string) (bool, error)
	}

	Service struct {
		repo         Repository
		catalogue    CategoryLookup
		bundles      BundleChecker
		events       core.EventPublisher
		validate     *validator.Validate
		logger       core.Logger
		storeTimeout time.Duration
	}
)

func NewService(
	repo Repository,
	cat CategoryLookup,
	events core.EventPublisher,
	validate *validator.Validate,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:         repo,
		catalogue:    cat,
		events:       events,
		validate:     validate,
		logger:       logger,
		storeTimeout: conf.StoreTimeout,
	}
}

// SetBundleChecker plugs the submission workflow in once both services exist.
func (svc *Service) SetBundleChecker(bc BundleChecker) {
	svc.bundles = bc
}

// Create records a new portfolio item. Only the owning student (or an admin) may create it.
func (svc *Service) Create(ctx context.Context, actor core.Actor, ni NewItem) (Item, error) {
	ni.Clean()
	if err := svc.validate.Struct(ni); err != nil {
		return Item{}, err
	}
	if actor.ID != ni.StudentID && !actor.HasRole(core.RoleAdmin) {
		return Item{}, core.ErrForbidden
	}
	if len(ni.Files) == 0 && ni.Description == "" && ni.ReflectionNotes == "" {
		return Item{}, core.NewFieldError("files", "at least one file, a description or reflection notes is required")
	}
	if _, err := svc.catalogue.GetCategory(ctx, ni.QualificationID, ni.CategoryID); err != nil {
		return Item{}, err
	}

	now := core.NowFunc()
	item := Item{
		StudentID:       ni.StudentID,
		QualificationID: ni.QualificationID,
		CategoryID:      ni.CategoryID,
		Title:           ni.Title,
		Description:     ni.Description,
		TimeSpent:       ni.TimeSpent,
		Files:           ni.Files,
		ReflectionNotes: ni.ReflectionNotes,
		Status:          StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	ctx, cancel := core.WithStoreTimeout(ctx, svc.storeTimeout)
	defer cancel()
	item, err := svc.repo.CreateItem(ctx, item)
	if err != nil {
		return Item{}, errors.Wrap(err, "creating item")
	}
	svc.publish(ctx, core.EventEvidenceChanged, item)
	return item, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Item, error) {
	return svc.repo.GetItem(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Item, error) {
	return svc.repo.QueryItems(ctx, filter)
}

// LinkCriteria annotates the item with criterion codes of its category. Assessors only.
func (svc *Service) LinkCriteria(ctx context.Context, actor core.Actor, itemID string, codes []string) (Item, error) {
	if !actor.HasRole(core.RoleAssessor, core.RoleAdmin) {
		return Item{}, core.ErrForbidden
	}
	codes = core.CleanStrings(codes)
	if len(codes) == 0 {
		return Item{}, core.NewFieldError("codes", "at least one criterion code is required")
	}

	return svc.mutate(ctx, itemID, core.EventCriterionLinkChanged, func(item *Item) error {
		if !item.IsActive() {
			return core.NewStateTransitionError("evidence", string(item.Status), "link criteria")
		}
		cat, err := svc.catalogue.GetCategory(ctx, item.QualificationID, item.CategoryID)
		if err != nil {
			return err
		}
		var unknown []core.FieldError
		for _, code := range codes {
			if _, ok := cat.Criterion(code); !ok {
				unknown = append(unknown, core.FieldError{Field: "codes", Error: fmt.Sprintf("unknown criterion %q for this category", code)})
			}
		}
		if len(unknown) > 0 {
			return core.NewValidationError(errors.New("unknown criteria"), unknown...)
		}

		now := core.NowFunc()
		for _, code := range codes {
			if _, ok := item.Link(code); ok {
				continue
			}
			item.Links = append(item.Links, CriterionLink{Code: code, LinkedBy: actor.ID, LinkedAt: now})
		}
		return nil
	})
}

// UnlinkCriterion removes a criterion link. Assessors only.
func (svc *Service) UnlinkCriterion(ctx context.Context, actor core.Actor, itemID, code string) (Item, error) {
	if !actor.HasRole(core.RoleAssessor, core.RoleAdmin) {
		return Item{}, core.ErrForbidden
	}
	return svc.mutate(ctx, itemID, core.EventCriterionLinkChanged, func(item *Item) error {
		links := make([]CriterionLink, 0, len(item.Links))
		for _, l := range item.Links {
			if l.Code != code {
				links = append(links, l)
			}
		}
		if len(links) == len(item.Links) {
			return core.NewNotFoundError("criterion link", code)
		}
		item.Links = links
		return nil
	})
}

// ConfirmCriterion records the assessor's explicit confirmation of a linked criterion.
func (svc *Service) ConfirmCriterion(ctx context.Context, actor core.Actor, itemID, code string) (Item, error) {
	if !actor.HasRole(core.RoleAssessor, core.RoleAdmin) {
		return Item{}, core.ErrForbidden
	}
	return svc.mutate(ctx, itemID, core.EventCriterionLinkChanged, func(item *Item) error {
		for i, l := range item.Links {
			if l.Code != code {
				continue
			}
			if l.Confirmed {
				return nil
			}
			now := core.NowFunc()
			item.Links[i].Confirmed = true
			item.Links[i].ConfirmedBy = actor.ID
			item.Links[i].ConfirmedAt = &now
			return nil
		}
		return core.NewNotFoundError("criterion link", code)
	})
}

// Withdraw removes the item from the portfolio without erasing it.
// Items bundled in a live submission cannot be withdrawn.
func (svc *Service) Withdraw(ctx context.Context, actor core.Actor, itemID string) (Item, error) {
	return svc.mutate(ctx, itemID, core.EventEvidenceChanged, func(item *Item) error {
		if actor.ID != item.StudentID && !actor.HasRole(core.RoleAdmin) {
			return core.ErrForbidden
		}
		if !item.IsActive() {
			return core.NewStateTransitionError("evidence", string(item.Status), "withdraw")
		}
		if svc.bundles != nil {
			bundled, err := svc.bundles.IsItemBundled(ctx, item.ID)
			if err != nil {
				return errors.Wrap(err, "checking submissions")
			}
			if bundled {
				return core.NewFieldError("id", "evidence is part of a submission and cannot be withdrawn")
			}
		}
		item.Status = StatusWithdrawn
		return nil
	})
}

// mutate applies fn to a fresh copy of the item and saves it under optimistic concurrency.
// Nothing is saved (nor published) when fn fails.
func (svc *Service) mutate(ctx context.Context, itemID string, evt core.EventType, fn func(item *Item) error) (Item, error) {
	var saved Item
	err := core.RetryOnce(ctx, "evidence", itemID, func(ctx context.Context) error {
		ctx, cancel := core.WithStoreTimeout(ctx, svc.storeTimeout)
		defer cancel()

		item, err := svc.repo.GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if err = fn(&item); err != nil {
			return err
		}
		item.UpdatedAt = core.NowFunc()
		saved, err = svc.repo.UpdateItem(ctx, item)
		return err
	})
	if err != nil {
		return Item{}, err
	}

	svc.publish(ctx, evt, saved)
	return saved, nil
}

func (svc *Service) publish(ctx context.Context, typ core.EventType, item Item) {
	svc.events.Publish(ctx, core.Event{
		Type:            typ,
		StudentID:       item.StudentID,
		QualificationID: item.QualificationID,
		CategoryID:      item.CategoryID,
		RecordID:        item.ID,
		At:              item.UpdatedAt,
	})
}

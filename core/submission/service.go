package submission

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/evidence"
)

type (
	Repository interface {
		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		QuerySubmissions(ctx context.Context, filter QueryFilter) ([]Submission, error)
		// UpdateSubmission saves the submission if its stored version still equals sub.Version,
		// returns a core.ConflictError otherwise.
		UpdateSubmission(ctx context.Context, sub Submission) (Submission, error)
	}

	ItemLookup interface {
		GetItem(ctx context.Context, id string) (evidence.Item, error)
	}

	Service struct {
		repo         Repository
		items        ItemLookup
		events       core.EventPublisher
		validate     *validator.Validate
		policy       GradePolicy
		logger       core.Logger
		storeTimeout time.Duration
	}
)

func NewService(
	repo Repository,
	items ItemLookup,
	events core.EventPublisher,
	validate *validator.Validate,
	policy GradePolicy,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:         repo,
		items:        items,
		events:       events,
		validate:     validate,
		policy:       policy,
		logger:       logger,
		storeTimeout: conf.StoreTimeout,
	}
}

// Submit bundles active items of one category into a new attempt.
func (svc *Service) Submit(ctx context.Context, actor core.Actor, ns NewSubmission) (Submission, error) {
	ns.Clean()
	if err := svc.validate.Struct(ns); err != nil {
		return Submission{}, err
	}
	if actor.ID != ns.StudentID && !actor.HasRole(core.RoleAdmin) {
		return Submission{}, core.ErrForbidden
	}

	for _, id := range ns.ItemIDs {
		item, err := svc.items.GetItem(ctx, id)
		if err != nil {
			return Submission{}, err
		}
		switch {
		case item.StudentID != ns.StudentID:
			// other students' evidence is invisible
			return Submission{}, core.NewNotFoundError("evidence", id)
		case !item.IsActive():
			return Submission{}, core.NewFieldError("item_ids", "evidence "+id+" has been withdrawn")
		case item.QualificationID != ns.QualificationID || item.CategoryID != ns.CategoryID:
			return Submission{}, core.NewFieldError("item_ids", "evidence "+id+" belongs to another category")
		}
	}

	now := core.NowFunc()
	sub := Submission{
		StudentID:       ns.StudentID,
		QualificationID: ns.QualificationID,
		CategoryID:      ns.CategoryID,
		ItemIDs:         ns.ItemIDs,
		Status:          StatusSubmitted,
		AttemptNumber:   1,
		SubmittedAt:     now,
		UpdatedAt:       now,
	}

	ctx, cancel := core.WithStoreTimeout(ctx, svc.storeTimeout)
	defer cancel()
	sub, err := svc.repo.CreateSubmission(ctx, sub)
	if err != nil {
		return Submission{}, errors.Wrap(err, "creating submission")
	}
	svc.publish(ctx, sub, actor, "")
	return sub, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Submission, error) {
	return svc.repo.GetSubmission(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, filter)
}

// IsItemBundled reports whether a live submission references the item.
func (svc *Service) IsItemBundled(ctx context.Context, itemID string) (bool, error) {
	subs, err := svc.repo.QuerySubmissions(ctx, QueryFilter{ItemID: itemID})
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		if sub.Status != StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

// StartReview claims the submission for a reviewer.
// Calling it again by the same reviewer is a no-op; by another reviewer it conflicts.
func (svc *Service) StartReview(ctx context.Context, actor core.Actor, id string) (Submission, error) {
	if !actor.HasRole(core.RoleAssessor, core.RoleAdmin) {
		return Submission{}, core.ErrForbidden
	}

	sub, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, err
	}
	if sub.Status == StatusUnderReview {
		if sub.ReviewerID == actor.ID {
			return sub, nil
		}
		return Submission{}, core.NewConflictError("submission", id, "already under review by another assessor")
	}

	return svc.transition(ctx, actor, id, ActionStartReview, StatusUnderReview, func(sub *Submission) error {
		now := core.NowFunc()
		sub.ReviewerID = actor.ID
		sub.ReviewStartedAt = &now
		return nil
	})
}

// SubmitFeedback grades the attempt; the grade policy decides whether it is approved.
func (svc *Service) SubmitFeedback(ctx context.Context, actor core.Actor, id string, fb Feedback) (Submission, error) {
	if !actor.HasRole(core.RoleAssessor, core.RoleAdmin) {
		return Submission{}, core.ErrForbidden
	}
	fb.Clean()
	if err := svc.validate.Struct(fb); err != nil {
		return Submission{}, err
	}
	next, err := svc.policy.Next(fb.Grade)
	if err != nil {
		return Submission{}, err
	}

	return svc.transition(ctx, actor, id, ActionSubmitFeedback, next, func(sub *Submission) error {
		if err := checkReviewer(actor, *sub); err != nil {
			return err
		}
		sub.Feedback = fb.Text
		sub.Grade = fb.Grade
		sub.Strengths = fb.Strengths
		sub.Improvements = fb.Improvements
		sub.SuggestionSimilarity = nil
		if fb.Suggestion != "" {
			ratio := Similarity(fb.Suggestion, fb.Text)
			sub.SuggestionSimilarity = &ratio
		}
		return nil
	})
}

// RequestMoreEvidence sends the attempt back to the student; the request becomes the current feedback
// and whatever feedback the attempt carried is kept as previous.
func (svc *Service) RequestMoreEvidence(ctx context.Context, actor core.Actor, id, request string) (Submission, error) {
	if !actor.HasRole(core.RoleAssessor, core.RoleAdmin) {
		return Submission{}, core.ErrForbidden
	}
	if request = core.CleanString(request); request == "" {
		return Submission{}, core.NewFieldError("request", "this field cannot be blank")
	}

	return svc.transition(ctx, actor, id, ActionRequestMoreEvidence, StatusResubmissionRequested, func(sub *Submission) error {
		if err := checkReviewer(actor, *sub); err != nil {
			return err
		}
		archive(sub)
		sub.Feedback = request
		return nil
	})
}

// Resubmit opens the next attempt: feedback is archived as previous, then cleared.
func (svc *Service) Resubmit(ctx context.Context, actor core.Actor, id string) (Submission, error) {
	return svc.transition(ctx, actor, id, ActionResubmit, StatusResubmitted, func(sub *Submission) error {
		if actor.ID != sub.StudentID && !actor.HasRole(core.RoleAdmin) {
			return core.ErrForbidden
		}
		archive(sub)
		sub.Feedback = ""
		sub.Grade = ""
		sub.Strengths = ""
		sub.Improvements = ""
		sub.SuggestionSimilarity = nil
		sub.ReviewerID = ""
		sub.ReviewStartedAt = nil
		sub.AttemptNumber++
		sub.SubmittedAt = core.NowFunc()
		return nil
	})
}

func (svc *Service) SignOff(ctx context.Context, actor core.Actor, id string) (Submission, error) {
	if !actor.HasRole(core.RoleAssessor, core.RoleAdmin) {
		return Submission{}, core.ErrForbidden
	}
	return svc.transition(ctx, actor, id, ActionSignOff, StatusSignedOff, func(sub *Submission) error {
		now := core.NowFunc()
		sub.SignedOffBy = actor.ID
		sub.SignedOffAt = &now
		return nil
	})
}

// Cancel withdraws a non-terminal submission. Admins only.
func (svc *Service) Cancel(ctx context.Context, actor core.Actor, id, reason string) (Submission, error) {
	if !actor.HasRole(core.RoleAdmin) {
		return Submission{}, core.ErrForbidden
	}
	if reason = core.CleanString(reason); reason == "" {
		return Submission{}, core.NewFieldError("reason", "this field cannot be blank")
	}
	return svc.transition(ctx, actor, id, ActionCancel, StatusCancelled, func(sub *Submission) error {
		sub.CancelledReason = reason
		return nil
	})
}

// transition applies a workflow move all-or-nothing under optimistic concurrency.
// The idempotency key is the submission id and the target status: if a write timed out
// but landed, the retry finds the submission already there and returns it.
func (svc *Service) transition(
	ctx context.Context,
	actor core.Actor,
	id string,
	action Action,
	to Status,
	fn func(sub *Submission) error,
) (Submission, error) {
	if !to.Valid() {
		return Submission{}, errors.Errorf("submission: undefined target status %q", to)
	}

	var (
		saved   Submission
		from    Status
		attempt int
	)
	err := core.RetryOnce(ctx, "submission", id+":"+string(to), func(ctx context.Context) error {
		attempt++
		ctx, cancel := core.WithStoreTimeout(ctx, svc.storeTimeout)
		defer cancel()

		sub, err := svc.repo.GetSubmission(ctx, id)
		if err != nil {
			return err
		}
		if attempt > 1 && sub.Status == to {
			saved = sub
			return nil
		}
		if !CanTransition(sub.Status, action) {
			if action == ActionStartReview && sub.Status == StatusUnderReview {
				// claimed by a concurrent StartReview
				return core.NewConflictError("submission", id, "already under review by another assessor")
			}
			return core.NewStateTransitionError("submission", string(sub.Status), string(action))
		}
		from = sub.Status
		if err = fn(&sub); err != nil {
			return err
		}
		sub.Status = to
		sub.UpdatedAt = core.NowFunc()
		saved, err = svc.repo.UpdateSubmission(ctx, sub)
		return err
	})
	if err != nil {
		return Submission{}, err
	}

	svc.logger.Debug("submission transitioned", map[string]interface{}{
		"submission": saved.ID,
		"from":       from,
		"to":         saved.Status,
	}, actor)
	svc.publish(ctx, saved, actor, from)
	return saved, nil
}

func (svc *Service) publish(ctx context.Context, sub Submission, actor core.Actor, from Status) {
	svc.events.Publish(ctx, core.Event{
		Type:            core.EventSubmissionTransitioned,
		StudentID:       sub.StudentID,
		QualificationID: sub.QualificationID,
		CategoryID:      sub.CategoryID,
		SubmissionID:    sub.ID,
		ActorID:         actor.ID,
		From:            string(from),
		To:              string(sub.Status),
		At:              sub.UpdatedAt,
	})
}

// archive keeps the current feedback and grade as the previous ones, when there are any.
func archive(sub *Submission) {
	if sub.Feedback != "" {
		sub.PreviousFeedback = sub.Feedback
	}
	if sub.Grade != "" {
		sub.PreviousGrade = sub.Grade
	}
}

func checkReviewer(actor core.Actor, sub Submission) error {
	if sub.ReviewerID != actor.ID && !actor.HasRole(core.RoleAdmin) {
		return core.NewConflictError("submission", sub.ID, "under review by another assessor")
	}
	return nil
}

// Similarity returns how close (0..1) two texts are, word by word.
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(strings.Fields(a), strings.Fields(b)).Ratio()
}
